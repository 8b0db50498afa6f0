package threshold

import "github.com/shopspring/decimal"

const (
	FieldPressure        = "pressure"
	FieldTemperature     = "temperature"
	FieldFlowRate        = "flowRate"
	FieldContainedVolume = "containedVolume"
	FieldAlertTolerance  = "alertTolerance"
)

// Constraint describes the input bounds the console renders for one quantity.
// Max is nil when the quantity has no upper bound.
type Constraint struct {
	Field string   `json:"field"`
	Min   float64  `json:"min"`
	Max   *float64 `json:"max,omitempty"`
	Unit  string   `json:"unit"`
	Step  float64  `json:"step"`
}

func Constraints(s Schema) []Constraint {
	out := []Constraint{
		{Field: FieldPressure, Min: 0, Max: limit(pressureLimitMax), Unit: "bar", Step: 0.1},
		{Field: FieldTemperature, Min: temperatureLimitMin.InexactFloat64(), Max: limit(temperatureLimitMax), Unit: "°C", Step: 0.1},
		{Field: FieldFlowRate, Min: 0, Unit: "m³/h", Step: 1},
	}
	if s.ContainedVolume {
		out = append(out, Constraint{Field: FieldContainedVolume, Min: 0, Unit: "m³", Step: 1})
	}
	out = append(out, Constraint{Field: FieldAlertTolerance, Min: 0, Max: limit(toleranceLimitMax), Unit: "%", Step: 0.5})
	return out
}

// Unit returns the unit of field, or "" when the field is unknown.
func Unit(field string) string {
	for _, c := range Constraints(Schema{ContainedVolume: true, Product: true}) {
		if c.Field == field {
			return c.Unit
		}
	}
	return ""
}

// DefaultRecord seeds a create form. Pipeline and product are left for the user.
func DefaultRecord(s Schema) Record {
	r := Record{
		PressureMin:    decPtr(0),
		PressureMax:    decPtr(100),
		TemperatureMin: decPtr(0),
		TemperatureMax: decPtr(100),
		FlowRateMin:    decPtr(0),
		FlowRateMax:    decPtr(1000),
		AlertTolerance: decPtr(5),
		Active:         Bool(true),
	}
	if s.ContainedVolume {
		r.ContainedVolumeMin = decPtr(0)
		r.ContainedVolumeMax = decPtr(10000)
	}
	return r
}

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func limit(d decimal.Decimal) *float64 {
	f := d.InexactFloat64()
	return &f
}
