package threshold

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRecord() Record {
	return Record{
		PressureMin:    Dec(0),
		PressureMax:    Dec(100),
		TemperatureMin: Dec(0),
		TemperatureMax: Dec(100),
		FlowRateMin:    Dec(0),
		FlowRateMax:    Dec(1000),
		AlertTolerance: Dec(5),
		Active:         Bool(true),
		PipelineID:     ID(7),
	}
}

func mustDec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestValidate_ValidBaseRecord(t *testing.T) {
	errs := Validate(validRecord(), SchemaBase)

	require.NotNil(t, errs)
	assert.Empty(t, errs)
	assert.True(t, IsValid(validRecord(), SchemaBase))
}

func TestValidate_ValidRecordFromJSON(t *testing.T) {
	body := `{"pressureMin":0,"pressureMax":100,"temperatureMin":0,"temperatureMax":100,
		"flowRateMin":0,"flowRateMax":1000,"alertTolerance":5,"active":true,"pipelineId":7}`

	var r Record
	require.NoError(t, json.Unmarshal([]byte(body), &r))

	assert.Empty(t, Validate(r, SchemaBase))
}

func TestValidate_EmptyRecordListsRequiredFieldsInOrder(t *testing.T) {
	tests := []struct {
		name   string
		schema Schema
		want   []string
	}{
		{
			name:   "base",
			schema: SchemaBase,
			want: []string{
				MsgPressureMinRequired, MsgPressureMaxRequired,
				MsgTemperatureMinRequired, MsgTemperatureMaxRequired,
				MsgFlowRateMinRequired, MsgFlowRateMaxRequired,
				MsgAlertToleranceRequired, MsgActiveRequired, MsgPipelineRequired,
			},
		},
		{
			name:   "volume",
			schema: SchemaVolume,
			want: []string{
				MsgPressureMinRequired, MsgPressureMaxRequired,
				MsgTemperatureMinRequired, MsgTemperatureMaxRequired,
				MsgFlowRateMinRequired, MsgFlowRateMaxRequired,
				MsgContainedVolMinRequired, MsgContainedVolMaxRequired,
				MsgAlertToleranceRequired, MsgActiveRequired, MsgPipelineRequired,
			},
		},
		{
			name:   "product",
			schema: SchemaProduct,
			want: []string{
				MsgPressureMinRequired, MsgPressureMaxRequired,
				MsgTemperatureMinRequired, MsgTemperatureMaxRequired,
				MsgFlowRateMinRequired, MsgFlowRateMaxRequired,
				MsgAlertToleranceRequired, MsgActiveRequired, MsgPipelineRequired,
				MsgProductRequired,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Validate(Record{}, tt.schema))
		})
	}
}

func TestValidate_NullFieldsAreMissing(t *testing.T) {
	var r Record
	require.NoError(t, json.Unmarshal([]byte(`{"pressureMin":null,"active":null,"pipelineId":null}`), &r))

	errs := Validate(r, SchemaBase)
	assert.Contains(t, errs, MsgPressureMinRequired)
	assert.Contains(t, errs, MsgActiveRequired)
	assert.Contains(t, errs, MsgPipelineRequired)
}

func TestValidate_PressureOrderOnly(t *testing.T) {
	r := validRecord()
	r.PressureMin = Dec(50)
	r.PressureMax = Dec(10)

	assert.Equal(t, []string{MsgPressureOrder}, Validate(r, SchemaBase))
}

func TestValidate_Boundaries(t *testing.T) {
	tests := []struct {
		name  string
		patch Record
		want  []string
	}{
		{"pressure max at limit", Record{PressureMax: Dec(500)}, []string{}},
		{"pressure max above limit", Record{PressureMax: mustDec("500.01")}, []string{MsgPressureMaxLimit}},
		{"pressure min zero", Record{PressureMin: Dec(0)}, []string{}},
		{"pressure min negative", Record{PressureMin: mustDec("-0.01")}, []string{MsgPressureMinNegative}},
		{"temperature min at limit", Record{TemperatureMin: Dec(-50)}, []string{}},
		{"temperature min below limit", Record{TemperatureMin: mustDec("-50.1")}, []string{MsgTemperatureMinLimit}},
		{"temperature max at limit", Record{TemperatureMax: Dec(200)}, []string{}},
		{"temperature max above limit", Record{TemperatureMax: mustDec("200.5")}, []string{MsgTemperatureMaxLimit}},
		{"tolerance zero", Record{AlertTolerance: Dec(0)}, []string{}},
		{"tolerance fifty", Record{AlertTolerance: Dec(50)}, []string{}},
		{"tolerance above fifty", Record{AlertTolerance: mustDec("50.01")}, []string{MsgAlertToleranceLimit}},
		{"tolerance negative", Record{AlertTolerance: mustDec("-1")}, []string{MsgAlertToleranceNegative}},
		{"pipeline placeholder", Record{PipelineID: ID(0)}, []string{MsgPipelineRequired}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRecord().Merge(tt.patch)
			assert.Equal(t, tt.want, Validate(r, SchemaBase))
		})
	}
}

func TestValidate_FlowRateMaxZeroOnlyFailsOrdering(t *testing.T) {
	r := validRecord()
	r.FlowRateMax = Dec(0)

	assert.Equal(t, []string{MsgFlowRateOrder}, Validate(r, SchemaBase))

	r.FlowRateMin = mustDec("-1")
	assert.Equal(t, []string{MsgFlowRateMinNegative}, Validate(r, SchemaBase))
}

func TestValidate_NegativeFlowRateMax(t *testing.T) {
	r := validRecord()
	r.FlowRateMax = mustDec("-5")

	assert.Equal(t, []string{MsgFlowRateMaxNegative, MsgFlowRateOrder}, Validate(r, SchemaBase))
}

func TestValidate_MultipleMessagesForOneField(t *testing.T) {
	r := validRecord()
	r.PressureMin = mustDec("-1")
	r.PressureMax = mustDec("-2")

	assert.Equal(t, []string{MsgPressureMinNegative, MsgPressureOrder}, Validate(r, SchemaBase))
}

func TestValidate_OrderFollowsFields(t *testing.T) {
	r := Record{
		PressureMin:        Dec(10),
		PressureMax:        Dec(600),
		TemperatureMin:     Dec(-60),
		TemperatureMax:     Dec(20),
		FlowRateMin:        Dec(5),
		FlowRateMax:        Dec(5),
		ContainedVolumeMin: mustDec("-1"),
		ContainedVolumeMax: mustDec("-3"),
		AlertTolerance:     Dec(80),
		Active:             Bool(false),
		PipelineID:         ID(0),
	}

	want := []string{
		MsgPressureMaxLimit,
		MsgTemperatureMinLimit,
		MsgFlowRateOrder,
		MsgContainedVolMinNegative,
		MsgContainedVolMaxNegative,
		MsgContainedVolOrder,
		MsgAlertToleranceLimit,
		MsgPipelineRequired,
	}
	assert.Equal(t, want, Validate(r, SchemaVolume))
	assert.Equal(t, Validate(r, SchemaVolume), Validate(r, SchemaVolume))
}

func TestValidate_SchemaIgnoresFieldsItDoesNotCarry(t *testing.T) {
	r := validRecord()
	r.ContainedVolumeMin = Dec(10)
	r.ContainedVolumeMax = Dec(1)

	assert.Equal(t, []string{MsgProductRequired}, Validate(r, SchemaProduct))
	assert.Equal(t, []string{MsgContainedVolOrder}, Validate(r, SchemaVolume))
}

func TestValidate_ProductZeroIsSelected(t *testing.T) {
	r := validRecord()
	r.ProductID = ID(0)

	assert.Empty(t, Validate(r, SchemaProduct))
}

func TestValidate_DefaultRecordMergedWithPipeline(t *testing.T) {
	r := DefaultRecord(SchemaVolume).Merge(Record{PipelineID: ID(3)})

	assert.Empty(t, Validate(r, SchemaVolume))
}

func TestValidator_BindsSchema(t *testing.T) {
	v := NewValidator(SchemaProduct)

	assert.Equal(t, SchemaProduct, v.Schema())
	assert.Equal(t, []string{MsgProductRequired}, v.Validate(validRecord()))
	assert.False(t, v.IsValid(validRecord()))
	assert.True(t, v.IsValid(validRecord().Merge(Record{ProductID: ID(2)})))
	assert.Nil(t, v.DefaultRecord().ProductID)
	assert.Len(t, v.Constraints(), 4)
}
