// Package metrics records named pipeline counts and measurements.
package metrics

import (
	"context"
	"time"

	"github.com/ecomonitor/ecomonitor-stack/internal/logging"
)

// Unit of a datum, using CloudWatch unit names.
type Unit string

const (
	UnitCount        Unit = "Count"
	UnitBytes        Unit = "Bytes"
	UnitMilliseconds Unit = "Milliseconds"
)

// Dimension is an optional name/value tag on a datum.
type Dimension struct {
	Name  string
	Value string
}

// Datum is one named value.
type Datum struct {
	Name       string
	Value      float64
	Unit       Unit
	Dimensions []Dimension
	Timestamp  time.Time
}

// Sink delivers data points to a backend.
type Sink interface {
	Put(ctx context.Context, d Datum) error
	Type() string
}

// Recorder is the fire-and-forget front of a Sink: delivery errors are logged
// and never returned. A nil Recorder or nil sink drops everything.
type Recorder struct {
	sink   Sink
	logger *logging.Logger
	now    func() time.Time
}

// NewRecorder wraps sink.
func NewRecorder(sink Sink, logger *logging.Logger) *Recorder {
	if logger == nil {
		logger = logging.Default()
	}
	return &Recorder{sink: sink, logger: logger, now: time.Now}
}

// Count records a single occurrence of name.
func (r *Recorder) Count(ctx context.Context, name string, dims ...Dimension) {
	r.Measure(ctx, name, 1, UnitCount, dims...)
}

// Measure records value in unit under name.
func (r *Recorder) Measure(ctx context.Context, name string, value float64, unit Unit, dims ...Dimension) {
	if r == nil || r.sink == nil {
		return
	}
	d := Datum{
		Name:       name,
		Value:      value,
		Unit:       unit,
		Dimensions: dims,
		Timestamp:  r.now().UTC(),
	}
	if err := r.sink.Put(ctx, d); err != nil {
		r.logger.ErrorContext(ctx, "failed to put custom metric",
			"metric", name,
			logging.Backend(r.sink.Type()),
			logging.Error(err),
		)
	}
}

// Fanout delivers to every sink, continuing past failures.
type Fanout []Sink

func (f Fanout) Type() string { return "fanout" }

func (f Fanout) Put(ctx context.Context, d Datum) error {
	var first error
	for _, s := range f {
		if err := s.Put(ctx, d); err != nil && first == nil {
			first = err
		}
	}
	return first
}
