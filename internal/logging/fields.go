package logging

import (
	"log/slog"
	"time"
)

// Common field names for consistent logging across services.
const (
	FieldService    = "service"
	FieldRequestID  = "request_id"
	FieldBucket     = "bucket"
	FieldKey        = "key"
	FieldSensorType = "sensor_type"
	FieldDeviceID   = "device_id"
	FieldStatus     = "status"
	FieldOutcome    = "outcome"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldBackend    = "backend"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// Bucket returns a slog attribute for an object store bucket.
func Bucket(name string) slog.Attr {
	return slog.String(FieldBucket, name)
}

// Key returns a slog attribute for an object key.
func Key(key string) slog.Attr {
	return slog.String(FieldKey, key)
}

// SensorType returns a slog attribute for the resolved sensor type.
func SensorType(t string) slog.Attr {
	return slog.String(FieldSensorType, t)
}

// DeviceID returns a slog attribute for a device ID.
func DeviceID(id string) slog.Attr {
	return slog.String(FieldDeviceID, id)
}

// Status returns a slog attribute for a result status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Outcome returns a slog attribute for a pipeline outcome.
func Outcome(name string) slog.Attr {
	return slog.String(FieldOutcome, name)
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Int64(FieldDuration, d.Milliseconds())
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

// Backend returns a slog attribute naming a pluggable backend.
func Backend(name string) slog.Attr {
	return slog.String(FieldBackend, name)
}
