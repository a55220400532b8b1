package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/ecomonitor/ecomonitor-stack/internal/pipeline"
)

// Processor wraps the pipeline and captures per-outcome telemetry for the
// health endpoint.
type Processor struct {
	pipeline  *pipeline.Pipeline
	startedAt time.Time
	outcomes  [len(outcomeNames)]atomic.Uint64
	last      atomic.Pointer[Failure]

	mu     sync.RWMutex
	checks []namedCheck
}

var outcomeNames = [...]string{
	pipeline.Success:          pipeline.Success.String(),
	pipeline.NotFound:         pipeline.NotFound.String(),
	pipeline.Malformed:        pipeline.Malformed.String(),
	pipeline.ValidationFailed: pipeline.ValidationFailed.String(),
	pipeline.GenericFailure:   pipeline.GenericFailure.String(),
}

// Check reports whether a dependency is ready to serve.
type Check func(ctx context.Context) error

type namedCheck struct {
	name  string
	check Check
}

// NewProcessor creates a new Processor instance.
func NewProcessor(p *pipeline.Pipeline) *Processor {
	return &Processor{
		pipeline:  p,
		startedAt: time.Now().UTC(),
	}
}

// AddCheck registers a readiness check.
func (p *Processor) AddCheck(name string, check Check) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checks = append(p.checks, namedCheck{name: name, check: check})
}

// Process runs the pipeline for one notification and records the outcome.
func (p *Processor) Process(ctx context.Context, evt events.S3Event, requestID string) pipeline.Result {
	res := p.pipeline.Process(ctx, evt, requestID)

	if int(res.Outcome) < len(p.outcomes) {
		p.outcomes[res.Outcome].Add(1)
	}
	if !res.OK() {
		f := &Failure{
			Outcome: res.Outcome.String(),
			Bucket:  res.Location.Bucket,
			Key:     res.Location.Key,
			Message: res.Message,
			At:      time.Now().UTC(),
		}
		p.last.Store(f)
	}
	return res
}

// Failure describes the most recent non-successful invocation.
type Failure struct {
	Outcome string    `json:"outcome"`
	Bucket  string    `json:"bucket,omitempty"`
	Key     string    `json:"key,omitempty"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Stats is a snapshot of processor telemetry.
type Stats struct {
	UptimeSeconds int64             `json:"uptime_seconds"`
	Processed     uint64            `json:"processed"`
	Succeeded     uint64            `json:"succeeded"`
	Failed        uint64            `json:"failed"`
	Outcomes      map[string]uint64 `json:"outcomes"`
	LastFailure   *Failure          `json:"last_failure,omitempty"`
}

// Health returns live status for health checks.
func (p *Processor) Health() Stats {
	stats := Stats{
		UptimeSeconds: int64(time.Since(p.startedAt).Seconds()),
		Outcomes:      make(map[string]uint64, len(outcomeNames)),
		LastFailure:   p.last.Load(),
	}
	for i, name := range outcomeNames {
		n := p.outcomes[i].Load()
		stats.Outcomes[name] = n
		stats.Processed += n
		if pipeline.Outcome(i) != pipeline.Success {
			stats.Failed += n
		}
	}
	stats.Succeeded = stats.Outcomes[pipeline.Success.String()]
	return stats
}

// Ready runs every registered check and returns the failures by name.
func (p *Processor) Ready(ctx context.Context) map[string]string {
	p.mu.RLock()
	checks := append([]namedCheck(nil), p.checks...)
	p.mu.RUnlock()

	failures := make(map[string]string)
	for _, c := range checks {
		if err := c.check(ctx); err != nil {
			failures[c.name] = err.Error()
		}
	}
	return failures
}

// ReadyErr is Ready folded into a single error.
func (p *Processor) ReadyErr(ctx context.Context) error {
	failures := p.Ready(ctx)
	if len(failures) == 0 {
		return nil
	}
	return fmt.Errorf("%d dependency checks failed: %v", len(failures), failures)
}
