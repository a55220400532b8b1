package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecomonitor/ecomonitor-stack/internal/event"
	"github.com/ecomonitor/ecomonitor-stack/internal/handlers"
	"github.com/ecomonitor/ecomonitor-stack/internal/logging"
	"github.com/ecomonitor/ecomonitor-stack/internal/metrics"
	"github.com/ecomonitor/ecomonitor-stack/internal/objectstore"
	"github.com/ecomonitor/ecomonitor-stack/internal/pipeline"
	"github.com/ecomonitor/ecomonitor-stack/internal/service"
	"github.com/ecomonitor/ecomonitor-stack/internal/store"
)

func TestRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPrometheusSink(reg)
	require.NoError(t, err)

	objects := objectstore.NewMemoryStore()
	require.NoError(t, objects.Put(context.Background(), "raw", "readings/co2/lab/1.json", []byte(`{"co2": 640}`)))

	pipe := pipeline.New(pipeline.Deps{
		Objects: objects,
		Store:   store.NewMemoryStore(),
		Metrics: metrics.NewRecorder(sink, logging.Discard()),
		Logger:  logging.Discard(),
	})
	processor := service.NewProcessor(pipe)
	router := NewRouter(handlers.NewEventHandler(processor, logging.Discard()), reg)

	processor.Process(context.Background(), event.ObjectCreated("raw", "readings/co2/lab/1.json", 0, time.Now()), "r1")

	t.Run("healthz", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get(logging.HeaderRequestID))
	})

	t.Run("readyz", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("metrics", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `ecomon_pipeline_events_total{metric="co2_sensor_data_processed",sensor_type="co2"} 1`)
	})

	t.Run("events", func(t *testing.T) {
		body := `{"Records":[{"s3":{"bucket":{"name":"raw"},"object":{"key":"readings/co2/lab/1.json"}}}]}`
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(body)))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"outcome":"success"`)
	})
}
