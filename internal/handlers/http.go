package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/ecomonitor/ecomonitor-stack/internal/event"
	"github.com/ecomonitor/ecomonitor-stack/internal/logging"
	"github.com/ecomonitor/ecomonitor-stack/internal/service"
)

// maxEventBytes bounds the notification body accepted over HTTP.
const maxEventBytes = 1 << 20

// EventHandler serves the pipeline over HTTP.
type EventHandler struct {
	processor *service.Processor
	logger    *logging.Logger
}

func NewEventHandler(p *service.Processor, logger *logging.Logger) *EventHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &EventHandler{processor: p, logger: logger}
}

// EventResponse is the body of POST /api/v1/events.
type EventResponse struct {
	Outcome   string `json:"outcome"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Events handles POST /api/v1/events with an S3 event notification body.
func (h *EventHandler) Events(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "invalid_request", err.Error())
		return
	}
	requestID := logging.RequestID(r.Context())
	evt, err := event.Decode(body)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "undecodable notification", logging.Error(err))
		evt = events.S3Event{}
	}

	res := h.processor.Process(r.Context(), evt, requestID)
	writeJSON(w, res.StatusCode(), EventResponse{
		Outcome:   res.Outcome.String(),
		Message:   res.Message,
		RequestID: requestID,
	})
}

// Health handles GET /healthz.
func (h *EventHandler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, h.processor.Health())
}

// Ready handles GET /readyz.
func (h *EventHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	type readyBody struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks,omitempty"`
	}
	failures := h.processor.Ready(r.Context())
	if len(failures) > 0 {
		h.logger.WarnContext(r.Context(), "readiness check failed", "checks", failures)
		writeJSON(w, http.StatusServiceUnavailable, readyBody{Status: "not_ready", Checks: failures})
		return
	}
	writeJSON(w, http.StatusOK, readyBody{Status: "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	type errorBody struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	writeJSON(w, status, errorBody{Code: code, Message: message})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method is not allowed")
}
