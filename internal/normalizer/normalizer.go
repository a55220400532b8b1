package normalizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ecomonitor/ecomonitor-stack/internal/model"
)

// DateLayout is the reading_date format.
const DateLayout = "2006-01-02"

// Canonicalizer applies the canonical-record rules to a parsed reading.
// It never rejects input; missing fields are synthesized.
type Canonicalizer struct {
	Now func() time.Time
}

// New returns a Canonicalizer backed by the wall clock.
func New() *Canonicalizer {
	return &Canonicalizer{Now: time.Now}
}

// Input bundles what canonicalization needs besides the reading itself.
type Input struct {
	Key          string
	InferredType model.SensorType
	RequestID    string
}

// Canonicalize builds the record to persist. The reading is not modified.
//
//   - device_id: kept when present, else "{type}_sensor_{parent segment}" or "{type}_sensor_default"
//   - timestamp: kept when present, else the invocation request ID
//   - reading_date: always today's UTC date
//   - sensor_type: kept when present, else the inferred type
//
// Only timestamp, device_id and reading_date are coerced to strings.
func (c *Canonicalizer) Canonicalize(reading model.SensorReading, in Input) model.CanonicalRecord {
	fields := reading.Clone()

	if _, ok := fields[model.FieldSensorType]; !ok {
		fields[model.FieldSensorType] = string(in.InferredType)
	}
	sensorType := Stringify(fields[model.FieldSensorType])

	if _, ok := fields[model.FieldDeviceID]; !ok {
		fields[model.FieldDeviceID] = SynthesizeDeviceID(sensorType, in.Key)
	}
	if _, ok := fields[model.FieldTimestamp]; !ok {
		fields[model.FieldTimestamp] = in.RequestID
	}
	fields[model.FieldReadingDate] = c.now().UTC().Format(DateLayout)

	for _, name := range []string{model.FieldTimestamp, model.FieldDeviceID, model.FieldReadingDate} {
		fields[name] = Stringify(fields[name])
	}

	rec := model.RecordFromItem(fields)
	rec.SensorType = sensorType
	return rec
}

func (c *Canonicalizer) now() time.Time {
	if c == nil || c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// SynthesizeDeviceID derives a device id from the sensor type and the object key's
// second-to-last path segment.
func SynthesizeDeviceID(sensorType, key string) string {
	parts := strings.Split(key, "/")
	if len(parts) >= 2 {
		return fmt.Sprintf("%s_sensor_%s", sensorType, parts[len(parts)-2])
	}
	return fmt.Sprintf("%s_sensor_default", sensorType)
}

// Stringify renders a decoded JSON value as a string without losing its text.
func Stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return "null"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(t); err != nil {
			return fmt.Sprint(t)
		}
		return strings.TrimSuffix(buf.String(), "\n")
	}
}
