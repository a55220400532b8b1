package metrics

import (
	"context"
	"regexp"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink maps named pipeline data onto two labelled collectors:
// counts become ecomon_pipeline_events_total{metric,sensor_type} and every
// other unit is observed on ecomon_pipeline_measurement{metric,unit}.
type PrometheusSink struct {
	events       *prometheus.CounterVec
	measurements *prometheus.HistogramVec
}

// NewPrometheusSink registers the collectors with reg.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	s := &PrometheusSink{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ecomon",
				Subsystem: "pipeline",
				Name:      "events_total",
				Help:      "Pipeline events by metric name",
			},
			[]string{"metric", "sensor_type"},
		),
		measurements: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ecomon",
				Subsystem: "pipeline",
				Name:      "measurement",
				Help:      "Pipeline measurements such as object size",
				Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
			},
			[]string{"metric", "unit"},
		),
	}

	for _, c := range []prometheus.Collector{s.events, s.measurements} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *PrometheusSink) Type() string { return "prometheus" }

func (s *PrometheusSink) Put(_ context.Context, d Datum) error {
	metric := SnakeCase(d.Name)
	if d.Unit == UnitCount {
		s.events.WithLabelValues(metric, dimension(d.Dimensions, "SensorType")).Add(d.Value)
		return nil
	}
	s.measurements.WithLabelValues(metric, strings.ToLower(string(d.Unit))).Observe(d.Value)
	return nil
}

// Events exposes the counter vector for tests and health reporting.
func (s *PrometheusSink) Events() *prometheus.CounterVec {
	return s.events
}

func dimension(dims []Dimension, name string) string {
	for _, d := range dims {
		if d.Name == name {
			return d.Value
		}
	}
	return ""
}

var (
	camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	acronymEnd    = regexp.MustCompile(`([A-Z]+)([A-Z][a-z])`)
)

// SnakeCase converts a CloudWatch-style metric name to a Prometheus label value:
// "S3FileNotFoundErrors" becomes "s3_file_not_found_errors".
func SnakeCase(name string) string {
	s := acronymEnd.ReplaceAllString(name, "${1}_${2}")
	s = camelBoundary.ReplaceAllString(s, "${1}_${2}")
	return strings.ToLower(s)
}
