package handlers

import (
	"context"

	"github.com/aws/aws-lambda-go/events"

	"github.com/ecomonitor/ecomonitor-stack/internal/event"
	"github.com/ecomonitor/ecomonitor-stack/internal/logging"
	"github.com/ecomonitor/ecomonitor-stack/internal/messaging"
	"github.com/ecomonitor/ecomonitor-stack/internal/service"
)

// EventConsumer handles object-created notifications delivered by JetStream.
type EventConsumer struct {
	processor *service.Processor
	logger    *logging.Logger
}

func NewEventConsumer(p *service.Processor, logger *logging.Logger) *EventConsumer {
	if logger == nil {
		logger = logging.Default()
	}
	return &EventConsumer{processor: p, logger: logger}
}

// Handle runs the pipeline once for msg. It never returns an error, so the
// message is always acked: failures have already been counted and alerted,
// and redelivery is left to the publisher.
func (c *EventConsumer) Handle(ctx context.Context, msg *messaging.Message) error {
	requestID := msg.Header(messaging.HeaderMsgID)
	if requestID == "" {
		requestID = logging.NewRequestID()
	}
	ctx = logging.WithRequestID(ctx, requestID)

	evt, err := event.Decode(msg.Data)
	if err != nil {
		c.logger.ErrorContext(ctx, "undecodable notification", "subject", msg.Subject, logging.Error(err))
		evt = events.S3Event{}
	}

	res := c.processor.Process(ctx, evt, requestID)
	c.logger.InfoContext(ctx, "notification processed",
		"subject", msg.Subject,
		logging.Outcome(res.Outcome.String()),
		logging.Status(res.StatusCode()),
		logging.Duration(res.Duration),
	)
	return nil
}
