// Package simulator produces synthetic environmental readings and publishes
// them on the device telemetry transport.
package simulator

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/ecomonitor/ecomonitor-stack/internal/model"
)

// Band is one row of a classification table. A value falls in the band when
// it is below Upper, or equal to it when Inclusive is set.
type Band struct {
	Upper     float64
	Inclusive bool
	Category  string
}

func (b Band) contains(v float64) bool {
	if b.Inclusive {
		return v <= b.Upper
	}
	return v < b.Upper
}

// Classifier maps a value to the category of the first matching band.
type Classifier struct {
	Bands    []Band
	Fallback string
}

func (c Classifier) Classify(v float64) string {
	for _, b := range c.Bands {
		if b.contains(v) {
			return b.Category
		}
	}
	return c.Fallback
}

// Kind describes one simulated sensor.
type Kind struct {
	Type       model.SensorType
	DeviceID   string
	Generate   func(f *gofakeit.Faker) float64
	Decimals   int
	Classifier Classifier
}

// Value draws a reading and renders it with the kind's precision.
func (k Kind) Value(f *gofakeit.Faker) json.Number {
	v := k.Generate(f)
	if k.Decimals == 0 {
		return json.Number(strconv.FormatInt(int64(v), 10))
	}
	scale := math.Pow10(k.Decimals)
	return json.Number(strconv.FormatFloat(math.Round(v*scale)/scale, 'f', -1, 64))
}

var kinds = []Kind{
	{
		Type:     model.SensorTemperature,
		DeviceID: "temp-001",
		Generate: func(f *gofakeit.Faker) float64 { return f.Float64Range(20.0, 27.0) },
		Decimals: 2,
		Classifier: Classifier{
			Bands: []Band{
				{Upper: 22, Inclusive: true, Category: "cool"},
				{Upper: 25, Inclusive: true, Category: "comfortable"},
			},
			Fallback: "warm",
		},
	},
	{
		Type:     model.SensorHumidity,
		DeviceID: "humidity-001",
		Generate: func(f *gofakeit.Faker) float64 { return f.Float64Range(30.0, 60.0) },
		Decimals: 2,
		Classifier: Classifier{
			Bands: []Band{
				{Upper: 40, Category: "dry"},
				{Upper: 50, Inclusive: true, Category: "comfortable"},
			},
			Fallback: "humid",
		},
	},
	{
		Type:     model.SensorAQI,
		DeviceID: "aqi-001",
		Generate: func(f *gofakeit.Faker) float64 { return float64(f.IntRange(0, 150)) },
		Classifier: Classifier{
			Bands: []Band{
				{Upper: 50, Inclusive: true, Category: "good"},
				{Upper: 100, Inclusive: true, Category: "moderate"},
			},
			Fallback: "unhealthy_for_sensitive_groups",
		},
	},
	{
		Type:     model.SensorCO2,
		DeviceID: "co2-001",
		Generate: func(f *gofakeit.Faker) float64 { return float64(f.IntRange(400, 1200)) },
		Classifier: Classifier{
			Bands: []Band{
				{Upper: 600, Inclusive: true, Category: "excellent"},
				{Upper: 800, Inclusive: true, Category: "good"},
				{Upper: 1000, Inclusive: true, Category: "fair"},
			},
			Fallback: "poor",
		},
	},
}

// Kinds returns every simulated sensor in inference priority order.
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

// KindFor looks up the simulated sensor for name.
func KindFor(name string) (Kind, error) {
	t, err := model.ParseSensorType(name)
	if err != nil {
		return Kind{}, err
	}
	for _, k := range kinds {
		if k.Type == t {
			return k, nil
		}
	}
	return Kind{}, fmt.Errorf("no simulator for sensor type %q", name)
}
