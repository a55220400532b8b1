package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ecomonitor/ecomonitor-stack/internal/app"
	"github.com/ecomonitor/ecomonitor-stack/internal/event"
	"github.com/ecomonitor/ecomonitor-stack/internal/handlers"
	"github.com/ecomonitor/ecomonitor-stack/internal/logging"
)

var (
	processBucket string
	processKey    string
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run the pipeline once for a stored object",
	Long: `Builds an object-created notification for --bucket/--key and runs one
pipeline invocation. The result is printed as JSON; a non-success outcome
exits non-zero.`,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVar(&processBucket, "bucket", "", "bucket holding the object (default: objectstore.bucket)")
	processCmd.Flags().StringVar(&processKey, "key", "", "object key")
	_ = processCmd.MarkFlagRequired("key")
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, _ []string) error {
	bucket := processBucket
	if bucket == "" {
		bucket = cfg.ObjectStore.Bucket
	}

	a, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	requestID := logging.NewRequestID()
	res := a.Processor.Process(cmd.Context(), event.ObjectCreated(bucket, processKey, 0, time.Now()), requestID)

	out, err := json.MarshalIndent(handlers.EventResponse{
		Outcome:   res.Outcome.String(),
		Message:   res.Message,
		RequestID: requestID,
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if !res.OK() {
		return fmt.Errorf("invocation finished with status %d", res.StatusCode())
	}
	return nil
}
