// Package handlers adapts pipeline results to the invoking environments:
// AWS Lambda, HTTP and the JetStream notification consumer.
package handlers

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"

	"github.com/ecomonitor/ecomonitor-stack/internal/logging"
	"github.com/ecomonitor/ecomonitor-stack/internal/service"
)

// LambdaResponse is the API-Gateway-style value returned to the Lambda runtime.
type LambdaResponse struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// LambdaHandler runs one pipeline invocation per S3 trigger.
type LambdaHandler struct {
	processor *service.Processor
	logger    *logging.Logger
}

func NewLambdaHandler(p *service.Processor, logger *logging.Logger) *LambdaHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &LambdaHandler{processor: p, logger: logger}
}

// Handle is registered with lambda.Start. The error return is always nil;
// failures are reported through the status code.
func (h *LambdaHandler) Handle(ctx context.Context, evt events.S3Event) (LambdaResponse, error) {
	requestID := ""
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		requestID = lc.AwsRequestID
	}
	if requestID == "" {
		requestID = logging.NewRequestID()
	}

	res := h.processor.Process(ctx, evt, requestID)

	body, err := json.Marshal(res.Message)
	if err != nil {
		body = []byte(`""`)
	}
	h.logger.InfoContext(logging.WithRequestID(ctx, requestID), "invocation finished",
		logging.Outcome(res.Outcome.String()),
		logging.Status(res.StatusCode()),
		logging.Duration(res.Duration),
	)
	return LambdaResponse{StatusCode: res.StatusCode(), Body: string(body)}, nil
}
