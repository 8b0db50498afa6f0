package threshold

import "github.com/shopspring/decimal"

var (
	zero = decimal.Zero

	pressureLimitMax    = decimal.NewFromInt(500)
	temperatureLimitMin = decimal.NewFromInt(-50)
	temperatureLimitMax = decimal.NewFromInt(200)
	toleranceLimitMax   = decimal.NewFromInt(50)
)

const (
	MsgPressureMinRequired     = "Minimum pressure is required"
	MsgPressureMinNegative     = "Minimum pressure must be zero or positive"
	MsgPressureMaxRequired     = "Maximum pressure is required"
	MsgPressureMaxLimit        = "Maximum pressure exceeds absolute limit (500 bar)"
	MsgPressureOrder           = "Minimum pressure must be less than maximum pressure"
	MsgTemperatureMinRequired  = "Minimum temperature is required"
	MsgTemperatureMinLimit     = "Minimum temperature below absolute limit (-50°C)"
	MsgTemperatureMaxRequired  = "Maximum temperature is required"
	MsgTemperatureMaxLimit     = "Maximum temperature exceeds absolute limit (200°C)"
	MsgTemperatureOrder        = "Minimum temperature must be less than maximum temperature"
	MsgFlowRateMinRequired     = "Minimum flow rate is required"
	MsgFlowRateMinNegative     = "Minimum flow rate must be zero or positive"
	MsgFlowRateMaxRequired     = "Maximum flow rate is required"
	MsgFlowRateMaxNegative     = "Maximum flow rate must be positive"
	MsgFlowRateOrder           = "Minimum flow rate must be less than maximum flow rate"
	MsgContainedVolMinRequired = "Minimum contained volume is required"
	MsgContainedVolMinNegative = "Minimum contained volume must be zero or positive"
	MsgContainedVolMaxRequired = "Maximum contained volume is required"
	MsgContainedVolMaxNegative = "Maximum contained volume must be positive"
	MsgContainedVolOrder       = "Minimum contained volume must be less than maximum contained volume"
	MsgAlertToleranceRequired  = "Alert tolerance is required"
	MsgAlertToleranceNegative  = "Alert tolerance cannot be negative"
	MsgAlertToleranceLimit     = "Alert tolerance cannot exceed 50%"
	MsgActiveRequired          = "Active status is required"
	MsgPipelineRequired        = "Pipeline is required"
	MsgProductRequired         = "Product is required"
)

// Validate checks r against the threshold rules and returns the failures in a
// fixed field order. An empty, non-nil slice means the record may be submitted.
//
// Maximum flow rate and maximum contained volume only reject negatives, so a
// zero maximum passes the bound check and fails the ordering check instead
// whenever the minimum is zero as well.
func Validate(r Record, s Schema) []string {
	errs := make([]string, 0)

	errs = checkPair(errs, r.PressureMin, r.PressureMax, pairRules{
		minRequired: MsgPressureMinRequired,
		minBad:      isNegative,
		minMsg:      MsgPressureMinNegative,
		maxRequired: MsgPressureMaxRequired,
		maxBad:      func(v decimal.Decimal) bool { return v.GreaterThan(pressureLimitMax) },
		maxMsg:      MsgPressureMaxLimit,
		order:       MsgPressureOrder,
	})

	errs = checkPair(errs, r.TemperatureMin, r.TemperatureMax, pairRules{
		minRequired: MsgTemperatureMinRequired,
		minBad:      func(v decimal.Decimal) bool { return v.LessThan(temperatureLimitMin) },
		minMsg:      MsgTemperatureMinLimit,
		maxRequired: MsgTemperatureMaxRequired,
		maxBad:      func(v decimal.Decimal) bool { return v.GreaterThan(temperatureLimitMax) },
		maxMsg:      MsgTemperatureMaxLimit,
		order:       MsgTemperatureOrder,
	})

	errs = checkPair(errs, r.FlowRateMin, r.FlowRateMax, pairRules{
		minRequired: MsgFlowRateMinRequired,
		minBad:      isNegative,
		minMsg:      MsgFlowRateMinNegative,
		maxRequired: MsgFlowRateMaxRequired,
		maxBad:      isNegative,
		maxMsg:      MsgFlowRateMaxNegative,
		order:       MsgFlowRateOrder,
	})

	if s.ContainedVolume {
		errs = checkPair(errs, r.ContainedVolumeMin, r.ContainedVolumeMax, pairRules{
			minRequired: MsgContainedVolMinRequired,
			minBad:      isNegative,
			minMsg:      MsgContainedVolMinNegative,
			maxRequired: MsgContainedVolMaxRequired,
			maxBad:      isNegative,
			maxMsg:      MsgContainedVolMaxNegative,
			order:       MsgContainedVolOrder,
		})
	}

	switch {
	case r.AlertTolerance == nil:
		errs = append(errs, MsgAlertToleranceRequired)
	case r.AlertTolerance.LessThan(zero):
		errs = append(errs, MsgAlertToleranceNegative)
	case r.AlertTolerance.GreaterThan(toleranceLimitMax):
		errs = append(errs, MsgAlertToleranceLimit)
	}

	if r.Active == nil {
		errs = append(errs, MsgActiveRequired)
	}

	// 0 is the "not selected" placeholder of the pipeline dropdown.
	if r.PipelineID == nil || *r.PipelineID == 0 {
		errs = append(errs, MsgPipelineRequired)
	}

	if s.Product && r.ProductID == nil {
		errs = append(errs, MsgProductRequired)
	}

	return errs
}

func IsValid(r Record, s Schema) bool {
	return len(Validate(r, s)) == 0
}

type pairRules struct {
	minRequired string
	minBad      func(decimal.Decimal) bool
	minMsg      string
	maxRequired string
	maxBad      func(decimal.Decimal) bool
	maxMsg      string
	order       string
}

func checkPair(errs []string, lo, hi *decimal.Decimal, rules pairRules) []string {
	if lo == nil {
		errs = append(errs, rules.minRequired)
	} else if rules.minBad(*lo) {
		errs = append(errs, rules.minMsg)
	}

	if hi == nil {
		errs = append(errs, rules.maxRequired)
	} else if rules.maxBad(*hi) {
		errs = append(errs, rules.maxMsg)
	}

	if lo != nil && hi != nil && lo.GreaterThanOrEqual(*hi) {
		errs = append(errs, rules.order)
	}

	return errs
}

func isNegative(v decimal.Decimal) bool {
	return v.LessThan(zero)
}

// Validator binds the ruleset to the schema of one deployment.
type Validator struct {
	schema Schema
}

func NewValidator(s Schema) *Validator {
	return &Validator{schema: s}
}

func (v *Validator) Schema() Schema {
	return v.schema
}

func (v *Validator) Validate(r Record) []string {
	return Validate(r, v.schema)
}

func (v *Validator) IsValid(r Record) bool {
	return IsValid(r, v.schema)
}

func (v *Validator) DefaultRecord() Record {
	return DefaultRecord(v.schema)
}

func (v *Validator) Constraints() []Constraint {
	return Constraints(v.schema)
}
