// Package threshold holds the Flow Threshold ruleset: the record shape,
// the validator, the constraints table and the default record for create forms.
package threshold

import (
	"fmt"

	"github.com/shopspring/decimal"
)

func init() {
	// The backend API speaks JSON numbers, not quoted decimals.
	decimal.MarshalJSONWithoutQuotes = true
}

// Record is a threshold as edited in a form. Any field may be absent.
type Record struct {
	PressureMin        *decimal.Decimal `json:"pressureMin"`
	PressureMax        *decimal.Decimal `json:"pressureMax"`
	TemperatureMin     *decimal.Decimal `json:"temperatureMin"`
	TemperatureMax     *decimal.Decimal `json:"temperatureMax"`
	FlowRateMin        *decimal.Decimal `json:"flowRateMin"`
	FlowRateMax        *decimal.Decimal `json:"flowRateMax"`
	ContainedVolumeMin *decimal.Decimal `json:"containedVolumeMin,omitempty"`
	ContainedVolumeMax *decimal.Decimal `json:"containedVolumeMax,omitempty"`
	AlertTolerance     *decimal.Decimal `json:"alertTolerance"`
	Active             *bool            `json:"active"`
	PipelineID         *int64           `json:"pipelineId"`
	ProductID          *int64           `json:"productId,omitempty"`
}

// Merge returns a copy of r with every field set in patch taking precedence.
func (r Record) Merge(patch Record) Record {
	out := r
	if patch.PressureMin != nil {
		out.PressureMin = patch.PressureMin
	}
	if patch.PressureMax != nil {
		out.PressureMax = patch.PressureMax
	}
	if patch.TemperatureMin != nil {
		out.TemperatureMin = patch.TemperatureMin
	}
	if patch.TemperatureMax != nil {
		out.TemperatureMax = patch.TemperatureMax
	}
	if patch.FlowRateMin != nil {
		out.FlowRateMin = patch.FlowRateMin
	}
	if patch.FlowRateMax != nil {
		out.FlowRateMax = patch.FlowRateMax
	}
	if patch.ContainedVolumeMin != nil {
		out.ContainedVolumeMin = patch.ContainedVolumeMin
	}
	if patch.ContainedVolumeMax != nil {
		out.ContainedVolumeMax = patch.ContainedVolumeMax
	}
	if patch.AlertTolerance != nil {
		out.AlertTolerance = patch.AlertTolerance
	}
	if patch.Active != nil {
		out.Active = patch.Active
	}
	if patch.PipelineID != nil {
		out.PipelineID = patch.PipelineID
	}
	if patch.ProductID != nil {
		out.ProductID = patch.ProductID
	}
	return out
}

// Schema lists the optional field groups a deployment's backend carries.
type Schema struct {
	ContainedVolume bool
	Product         bool
}

const (
	SchemaNameBase    = "base"
	SchemaNameVolume  = "volume"
	SchemaNameProduct = "product"
)

var (
	SchemaBase    = Schema{}
	SchemaVolume  = Schema{ContainedVolume: true}
	SchemaProduct = Schema{Product: true}
)

func ParseSchema(name string) (Schema, error) {
	switch name {
	case SchemaNameBase, "":
		return SchemaBase, nil
	case SchemaNameVolume:
		return SchemaVolume, nil
	case SchemaNameProduct:
		return SchemaProduct, nil
	default:
		return Schema{}, fmt.Errorf("unknown threshold schema %q", name)
	}
}

func (s Schema) String() string {
	switch {
	case s.ContainedVolume && s.Product:
		return "volume+product"
	case s.ContainedVolume:
		return SchemaNameVolume
	case s.Product:
		return SchemaNameProduct
	default:
		return SchemaNameBase
	}
}

// Dec is a shorthand for building records in code.
func Dec(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

func Bool(v bool) *bool {
	return &v
}

func ID(v int64) *int64 {
	return &v
}
