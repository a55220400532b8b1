package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/ecomonitor/ecomonitor-stack/internal/logging"
	"github.com/ecomonitor/ecomonitor-stack/internal/model"
)

// Reading is the payload a simulated device publishes.
type Reading struct {
	DeviceID   string      `json:"device_id"`
	Type       string      `json:"type"`
	SensorType string      `json:"sensor_type"`
	Timestamp  int64       `json:"timestamp"`
	Value      json.Number `json:"value"`
	Category   string      `json:"category"`
}

// Publisher delivers an encoded reading for kind to the telemetry transport.
type Publisher interface {
	Publish(ctx context.Context, kind model.SensorType, payload []byte) error
	Name() string
}

// Producer generates and publishes readings for one sensor kind.
type Producer struct {
	kind     Kind
	deviceID string
	faker    *gofakeit.Faker
	pub      Publisher
	logger   *logging.Logger
	now      func() time.Time
}

// Option configures a Producer.
type Option func(*Producer)

// WithSeed makes the generated values reproducible.
func WithSeed(seed int64) Option {
	return func(p *Producer) { p.faker = gofakeit.New(seed) }
}

// WithDeviceID overrides the kind's default device id.
func WithDeviceID(id string) Option {
	return func(p *Producer) { p.deviceID = id }
}

func WithClock(now func() time.Time) Option {
	return func(p *Producer) { p.now = now }
}

func WithLogger(l *logging.Logger) Option {
	return func(p *Producer) { p.logger = l }
}

func NewProducer(kind Kind, pub Publisher, opts ...Option) *Producer {
	p := &Producer{
		kind:     kind,
		deviceID: kind.DeviceID,
		faker:    gofakeit.New(0),
		pub:      pub,
		logger:   logging.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Next draws one reading without publishing it.
func (p *Producer) Next() Reading {
	value := p.kind.Value(p.faker)
	f, _ := value.Float64()
	return Reading{
		DeviceID:   p.deviceID,
		Type:       string(p.kind.Type),
		SensorType: string(p.kind.Type),
		Timestamp:  p.now().Unix(),
		Value:      value,
		Category:   p.kind.Classifier.Classify(f),
	}
}

// Emit generates one reading and publishes it.
func (p *Producer) Emit(ctx context.Context) (Reading, error) {
	reading := p.Next()
	payload, err := json.Marshal(reading)
	if err != nil {
		return reading, fmt.Errorf("marshal reading: %w", err)
	}
	if err := p.pub.Publish(ctx, p.kind.Type, payload); err != nil {
		return reading, fmt.Errorf("publish %s reading via %s: %w", p.kind.Type, p.pub.Name(), err)
	}
	p.logger.InfoContext(ctx, "published reading",
		logging.SensorType(string(p.kind.Type)),
		logging.DeviceID(reading.DeviceID),
		"value", reading.Value.String(),
		"category", reading.Category,
	)
	return reading, nil
}

// Run emits one reading immediately and then every interval until ctx is
// done. Publish failures are logged and do not stop the loop. count > 0
// stops after that many readings.
func (p *Producer) Run(ctx context.Context, interval time.Duration, count int) error {
	if interval <= 0 {
		return fmt.Errorf("simulator interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	emitted := 0
	for {
		if _, err := p.Emit(ctx); err != nil {
			p.logger.ErrorContext(ctx, "failed to publish reading", logging.SensorType(string(p.kind.Type)), logging.Error(err))
		}
		emitted++
		if count > 0 && emitted >= count {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
