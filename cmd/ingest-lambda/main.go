package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/ecomonitor/ecomonitor-stack/internal/app"
	"github.com/ecomonitor/ecomonitor-stack/internal/config"
	"github.com/ecomonitor/ecomonitor-stack/internal/handlers"
	"github.com/ecomonitor/ecomonitor-stack/internal/logging"
)

func main() {
	cfg, err := config.Load(os.Getenv("ECOMON_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("ingest-lambda"))
	logging.SetDefault(logger)

	// Clients are built once per execution environment and reused across invocations.
	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize pipeline: %v", err)
	}
	defer a.Close()

	lambda.Start(handlers.NewLambdaHandler(a.Processor, logger).Handle)
}
