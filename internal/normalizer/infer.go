// Package normalizer turns parsed sensor readings into canonical records.
package normalizer

import (
	"strings"

	"github.com/ecomonitor/ecomonitor-stack/internal/model"
)

// Rule maps a key token onto a sensor type.
type Rule struct {
	Token string
	Type  model.SensorType
}

// DefaultRules is evaluated top to bottom; the first token found in the key wins.
var DefaultRules = []Rule{
	{Token: "temperature", Type: model.SensorTemperature},
	{Token: "humidity", Type: model.SensorHumidity},
	{Token: "aqi", Type: model.SensorAQI},
	{Token: "co2", Type: model.SensorCO2},
}

// Inferrer resolves a sensor type from an object key.
type Inferrer struct {
	rules []Rule
}

// NewInferrer creates an Inferrer over rules. With no rules, DefaultRules is used.
func NewInferrer(rules ...Rule) *Inferrer {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Inferrer{rules: rules}
}

// FromKey matches the key case-insensitively against the rule table.
func (i *Inferrer) FromKey(key string) model.SensorType {
	lower := strings.ToLower(key)
	for _, r := range i.rules {
		if strings.Contains(lower, r.Token) {
			return r.Type
		}
	}
	return model.SensorUnknown
}

// Resolve returns the reading's declared sensor_type when present, the key
// inference otherwise. The declared value is never overridden.
func (i *Inferrer) Resolve(key string, reading model.SensorReading) string {
	if v, ok := reading[model.FieldSensorType]; ok {
		return Stringify(v)
	}
	return string(i.FromKey(key))
}
