package pipeline

import (
	"net/http"
	"time"

	"github.com/ecomonitor/ecomonitor-stack/internal/event"
	"github.com/ecomonitor/ecomonitor-stack/internal/model"
)

// Outcome is the terminal state of one invocation.
type Outcome int

const (
	Success Outcome = iota
	NotFound
	Malformed
	ValidationFailed
	GenericFailure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case NotFound:
		return "not_found"
	case Malformed:
		return "malformed"
	case ValidationFailed:
		return "validation_failed"
	case GenericFailure:
		return "generic_failure"
	default:
		return "unknown"
	}
}

// StatusCode maps the outcome onto the HTTP-style status the boundary returns.
func (o Outcome) StatusCode() int {
	switch o {
	case Success:
		return http.StatusOK
	case NotFound:
		return http.StatusNotFound
	case ValidationFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Outcomes lists every outcome in declaration order.
func Outcomes() []Outcome {
	return []Outcome{Success, NotFound, Malformed, ValidationFailed, GenericFailure}
}

// Stage is the last step an invocation completed.
type Stage string

const (
	StageStart        Stage = "start"
	StageFetched      Stage = "fetched"
	StageParsed       Stage = "parsed"
	StageTypeInferred Stage = "type_inferred"
	StageNormalized   Stage = "normalized"
	StagePersisted    Stage = "persisted"
)

// Result is what Process returns for every invocation. Message is the
// human-readable body; Err is set for every outcome but Success.
type Result struct {
	Outcome  Outcome
	Message  string
	Location event.Location
	Stage    Stage
	Record   *model.CanonicalRecord
	Err      error
	Duration time.Duration
}

func (r Result) StatusCode() int {
	return r.Outcome.StatusCode()
}

func (r Result) OK() bool {
	return r.Outcome == Success
}
