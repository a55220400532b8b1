// Package store persists canonical sensor records to a durable backend.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ecomonitor/ecomonitor-stack/internal/model"
)

var (
	// ErrValidation marks a record the backend refused to accept.
	ErrValidation = errors.New("record failed store validation")
	// ErrNotFound is returned by Get when no record matches the key.
	ErrNotFound = errors.New("record not found")
)

// ValidationError carries the backend's reason for rejecting a record.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation failed: %s: %v", e.Reason, e.Err)
	}
	return "validation failed: " + e.Reason
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Store is a durable key/attribute store addressed by (device_id, timestamp).
// Put has replace semantics: a record with an existing key overwrites it.
type Store interface {
	Put(ctx context.Context, rec model.CanonicalRecord) error
	Get(ctx context.Context, deviceID, timestamp string) (model.CanonicalRecord, error)
	Name() string
}

// checkKeys applies the key-attribute rules DynamoDB enforces for string keys.
func checkKeys(rec model.CanonicalRecord) error {
	if rec.DeviceID == "" {
		return &ValidationError{Reason: "key attribute device_id must be a non-empty string"}
	}
	if rec.Timestamp == "" {
		return &ValidationError{Reason: "key attribute timestamp must be a non-empty string"}
	}
	return nil
}

// payload is the record item minus the string-coerced canonical columns.
func payload(rec model.CanonicalRecord) map[string]any {
	item := rec.Item()
	delete(item, model.FieldDeviceID)
	delete(item, model.FieldTimestamp)
	delete(item, model.FieldReadingDate)
	return item
}

func decodeObject(r io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeValue(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func encodeValue(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
