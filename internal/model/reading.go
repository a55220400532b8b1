// Package model holds the data shapes that flow through the ingestion pipeline.
package model

import (
	"encoding/json"
	"fmt"
	"sort"
)

// SensorType names the environmental domain a reading belongs to.
type SensorType string

const (
	SensorTemperature SensorType = "temperature"
	SensorHumidity    SensorType = "humidity"
	SensorAQI         SensorType = "aqi"
	SensorCO2         SensorType = "co2"
	SensorUnknown     SensorType = "unknown"
)

// Known returns the sensor kinds a producer exists for, in inference priority order.
func Known() []SensorType {
	return []SensorType{SensorTemperature, SensorHumidity, SensorAQI, SensorCO2}
}

// ParseSensorType maps a string onto a known kind.
func ParseSensorType(s string) (SensorType, error) {
	for _, t := range Known() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown sensor type %q", s)
}

// Canonical field names.
const (
	FieldDeviceID    = "device_id"
	FieldTimestamp   = "timestamp"
	FieldReadingDate = "reading_date"
	FieldSensorType  = "sensor_type"
)

// RawObject is the triggering artifact written by a producer. Key is already decoded.
type RawObject struct {
	Bucket  string
	Key     string
	Content []byte
}

// Size returns the content length in bytes.
func (o RawObject) Size() int {
	return len(o.Content)
}

// SensorReading is the parsed, schema-less form of a raw object's JSON content.
// Numeric values are json.Number so the original decimal literal is never rounded.
type SensorReading map[string]any

// Has reports whether field is present, regardless of its value.
func (r SensorReading) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// Clone returns a shallow copy of the reading.
func (r SensorReading) Clone() SensorReading {
	out := make(SensorReading, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// CanonicalRecord is the normalized record submitted to the durable store.
// DeviceID, Timestamp and ReadingDate mirror the string values held in Fields
// under their canonical names. SensorType is the resolved type name; the
// sensor_type value in Fields is passed through as found.
type CanonicalRecord struct {
	DeviceID    string
	Timestamp   string
	ReadingDate string
	SensorType  string
	Fields      map[string]any
}

// Item returns the full attribute map as persisted, canonical fields included.
func (c CanonicalRecord) Item() map[string]any {
	item := make(map[string]any, len(c.Fields)+4)
	for k, v := range c.Fields {
		item[k] = v
	}
	item[FieldDeviceID] = c.DeviceID
	item[FieldTimestamp] = c.Timestamp
	item[FieldReadingDate] = c.ReadingDate
	if _, ok := item[FieldSensorType]; !ok && c.SensorType != "" {
		item[FieldSensorType] = c.SensorType
	}
	return item
}

// Attributes returns the non-canonical fields only.
func (c CanonicalRecord) Attributes() map[string]any {
	out := make(map[string]any, len(c.Fields))
	for k, v := range c.Fields {
		switch k {
		case FieldDeviceID, FieldTimestamp, FieldReadingDate, FieldSensorType:
			continue
		}
		out[k] = v
	}
	return out
}

// FieldNames returns the sorted attribute names, canonical ones included.
func (c CanonicalRecord) FieldNames() []string {
	item := c.Item()
	names := make([]string, 0, len(item))
	for k := range item {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// MarshalJSON renders the full item; numbers keep their original literal.
func (c CanonicalRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Item())
}

// RecordFromItem rebuilds a record from a stored attribute map.
func RecordFromItem(item map[string]any) CanonicalRecord {
	rec := CanonicalRecord{Fields: make(map[string]any, len(item))}
	for k, v := range item {
		rec.Fields[k] = v
	}
	rec.DeviceID, _ = item[FieldDeviceID].(string)
	rec.Timestamp, _ = item[FieldTimestamp].(string)
	rec.ReadingDate, _ = item[FieldReadingDate].(string)
	switch st := item[FieldSensorType].(type) {
	case string:
		rec.SensorType = st
	case nil:
	default:
		rec.SensorType = fmt.Sprint(st)
	}
	return rec
}
