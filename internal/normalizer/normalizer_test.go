package normalizer_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecomonitor/ecomonitor-stack/internal/model"
	"github.com/ecomonitor/ecomonitor-stack/internal/normalizer"
)

func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2024, 6, 10, 23, 30, 0, 0, time.FixedZone("UTC-5", -5*3600))
	}
}

func TestInferrer_FromKey(t *testing.T) {
	inf := normalizer.NewInferrer()

	tests := []struct {
		key  string
		want model.SensorType
	}{
		{"readings/temperature/zoneA/2024.json", model.SensorTemperature},
		{"readings/HUMIDITY/zoneA/1.json", model.SensorHumidity},
		{"aqi-001/1.json", model.SensorAQI},
		{"sensors/co2/1.json", model.SensorCO2},
		{"co2/temperature/1.json", model.SensorTemperature},
		{"humidity-and-aqi.json", model.SensorHumidity},
		{"readings/pressure/1.json", model.SensorUnknown},
		{"", model.SensorUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, inf.FromKey(tt.key))
			assert.Equal(t, tt.want, inf.FromKey(tt.key), "inference must be idempotent")
		})
	}
}

func TestInferrer_CustomRules(t *testing.T) {
	inf := normalizer.NewInferrer(normalizer.Rule{Token: "co2", Type: model.SensorCO2})
	assert.Equal(t, model.SensorCO2, inf.FromKey("temperature/co2.json"))
}

func TestInferrer_ResolveNeverOverridesDeclaredType(t *testing.T) {
	inf := normalizer.NewInferrer()
	keys := []string{"temperature/x.json", "co2.json", "nothing", "aqi/humidity"}

	for _, key := range keys {
		reading := model.SensorReading{"sensor_type": "custom-kind"}
		assert.Equal(t, "custom-kind", inf.Resolve(key, reading), key)
	}

	assert.Equal(t, "aqi", inf.Resolve("aqi/1.json", model.SensorReading{}))
}

func TestSynthesizeDeviceID(t *testing.T) {
	assert.Equal(t, "temperature_sensor_zoneA", normalizer.SynthesizeDeviceID("temperature", "readings/temperature/zoneA/2024.json"))
	assert.Equal(t, "co2_sensor_readings", normalizer.SynthesizeDeviceID("co2", "readings/co2.json"))
	assert.Equal(t, "aqi_sensor_default", normalizer.SynthesizeDeviceID("aqi", "aqi.json"))
	assert.Equal(t, "unknown_sensor_", normalizer.SynthesizeDeviceID("unknown", "/x.json"))
}

func TestCanonicalize_SynthesizesMissingFields(t *testing.T) {
	c := &normalizer.Canonicalizer{Now: fixedClock()}
	reading := model.SensorReading{"temperature": json.Number("24.5")}

	rec := c.Canonicalize(reading, normalizer.Input{
		Key:          "readings/temperature/zoneA/2024.json",
		InferredType: model.SensorTemperature,
		RequestID:    "req-123",
	})

	assert.Equal(t, "temperature_sensor_zoneA", rec.DeviceID)
	assert.Equal(t, "req-123", rec.Timestamp)
	assert.Equal(t, "2024-06-11", rec.ReadingDate, "reading_date is the UTC date")
	assert.Equal(t, "temperature", rec.SensorType)
	assert.Equal(t, json.Number("24.5"), rec.Fields["temperature"])
	assert.NotContains(t, reading, "device_id", "input reading must not be mutated")
}

func TestCanonicalize_CoercesPresentFieldsToString(t *testing.T) {
	c := &normalizer.Canonicalizer{Now: fixedClock()}
	reading := model.SensorReading{
		"device_id":    json.Number("1001"),
		"timestamp":    json.Number("1718000000"),
		"reading_date": "1999-01-01",
		"sensor_type":  "humidity",
		"value":        json.Number("91.23"),
		"ok":           true,
	}

	rec := c.Canonicalize(reading, normalizer.Input{
		Key:          "readings/temperature/zoneA/1.json",
		InferredType: model.SensorTemperature,
		RequestID:    "req-1",
	})

	item := rec.Item()
	assert.Equal(t, "1001", item["device_id"])
	assert.Equal(t, "1718000000", item["timestamp"])
	assert.Equal(t, "2024-06-11", item["reading_date"], "reading_date always reflects the current date")
	assert.Equal(t, "humidity", item["sensor_type"], "declared type is authoritative")
	assert.Equal(t, json.Number("91.23"), item["value"])
	assert.Equal(t, true, item["ok"])
}

func TestCanonicalize_SensorTypePassesThroughUnchanged(t *testing.T) {
	c := &normalizer.Canonicalizer{Now: fixedClock()}
	rec := c.Canonicalize(model.SensorReading{"sensor_type": json.Number("7")}, normalizer.Input{
		Key:          "a/b.json",
		InferredType: model.SensorUnknown,
		RequestID:    "r",
	})

	assert.Equal(t, json.Number("7"), rec.Item()["sensor_type"])
	assert.Equal(t, "7_sensor_a", rec.DeviceID)
	assert.Equal(t, "7", rec.SensorType)
}

func TestCanonicalize_Idempotent(t *testing.T) {
	c := &normalizer.Canonicalizer{Now: fixedClock()}
	in := normalizer.Input{Key: "x/co2/dev9/1.json", InferredType: model.SensorCO2, RequestID: "req-9"}
	reading := model.SensorReading{"value": json.Number("812")}

	first := c.Canonicalize(reading, in)
	second := c.Canonicalize(reading, in)
	require.Equal(t, first, second)

	again := c.Canonicalize(model.SensorReading(first.Item()), in)
	assert.Equal(t, first.Item(), again.Item())
}

func TestStringify(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"abc", "abc"},
		{json.Number("24.50"), "24.50"},
		{true, "true"},
		{nil, "null"},
		{float64(3), "3"},
		{map[string]any{"a": json.Number("1")}, `{"a":1}`},
		{[]any{"x", json.Number("2")}, `["x",2]`},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizer.Stringify(tt.in))
	}
}
