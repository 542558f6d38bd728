package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/SscSPs/payroll_engine/internal/apperrors"
	"github.com/SscSPs/payroll_engine/internal/core/formula"
)

// ConfigKind is the discriminator stored in the config envelope. It equals the
// calculation type, except for tax components which use ConfigKindTax.
type ConfigKind string

const ConfigKindTax ConfigKind = "tax"

// ComponentConfig is the calculation parameters of a component. Implementations
// are FixedConfig, PercentageConfig, FormulaConfig, HourlyRateConfig,
// TieredConfig, ExternalConfig and TaxConfig.
type ComponentConfig interface {
	Kind() ConfigKind
	Validate() error
}

// FixedConfig pays a constant amount every period.
type FixedConfig struct {
	Amount decimal.Decimal `json:"amount"`
}

// PercentageConfig pays Percentage percent of the sum of the basis values.
// Basis entries are component codes or variable names.
type PercentageConfig struct {
	Percentage decimal.Decimal `json:"percentage"`
	Basis      []string        `json:"basis"`
}

// FormulaConfig evaluates an expression. Tree is parsed when the config is
// decoded and is never serialized.
type FormulaConfig struct {
	Expression string       `json:"expression"`
	Tree       formula.Node `json:"-"`
}

// HourlyRateConfig pays hours × rate × multiplier. A nil Rate uses the
// employee's hourly_rate variable.
type HourlyRateConfig struct {
	Rate          *decimal.Decimal `json:"rate,omitempty"`
	HoursVariable string           `json:"hoursVariable"`
	Multiplier    decimal.Decimal  `json:"multiplier"`
}

// TierMethod selects how tiers combine.
type TierMethod string

const (
	TierGraduated TierMethod = "graduated" // each tier rates its own slice of the basis
	TierFlat      TierMethod = "flat"      // the tier containing the basis rates all of it
)

// Tier is one band of a tiered component. To is exclusive; nil is open ended.
type Tier struct {
	From       decimal.Decimal  `json:"from"`
	To         *decimal.Decimal `json:"to,omitempty"`
	Percentage decimal.Decimal  `json:"percentage"`
	Amount     decimal.Decimal  `json:"amount"`
}

// TieredConfig applies banded rates to a single basis value.
type TieredConfig struct {
	Basis  string     `json:"basis"`
	Method TierMethod `json:"method"`
	Tiers  []Tier     `json:"tiers"`
}

// ExternalConfig takes its amount from a variable supplied by a collaborator,
// e.g. a time-data extra such as "commission".
type ExternalConfig struct {
	Variable string `json:"variable"`
}

// TaxConfig marks a tax component. Basis restricts the taxable lines considered;
// empty means every taxable line executed before the component.
type TaxConfig struct {
	Basis []string `json:"basis,omitempty"`
}

func (FixedConfig) Kind() ConfigKind      { return ConfigKind(CalcFixed) }
func (PercentageConfig) Kind() ConfigKind { return ConfigKind(CalcPercentage) }
func (FormulaConfig) Kind() ConfigKind    { return ConfigKind(CalcFormula) }
func (HourlyRateConfig) Kind() ConfigKind { return ConfigKind(CalcHourlyRate) }
func (TieredConfig) Kind() ConfigKind     { return ConfigKind(CalcTiered) }
func (ExternalConfig) Kind() ConfigKind   { return ConfigKind(CalcExternal) }
func (TaxConfig) Kind() ConfigKind        { return ConfigKindTax }

func (c FixedConfig) Validate() error { return nil }

func (c PercentageConfig) Validate() error {
	if len(c.Basis) == 0 {
		return configError("percentage basis is empty")
	}
	if c.Percentage.IsNegative() {
		return configError("percentage is negative")
	}
	return nil
}

func (c FormulaConfig) Validate() error {
	if strings.TrimSpace(c.Expression) == "" {
		return configError("formula expression is empty")
	}
	if c.Tree == nil {
		return configError("formula %q is not parsed", c.Expression)
	}
	return nil
}

func (c HourlyRateConfig) Validate() error {
	if c.Rate != nil && c.Rate.IsNegative() {
		return configError("hourly rate is negative")
	}
	if c.Multiplier.IsNegative() {
		return configError("hourly multiplier is negative")
	}
	return nil
}

func (c TieredConfig) Validate() error {
	if c.Basis == "" {
		return configError("tier basis is empty")
	}
	if c.Method != TierGraduated && c.Method != TierFlat {
		return configError("unknown tier method %q", c.Method)
	}
	if len(c.Tiers) == 0 {
		return configError("no tiers")
	}
	for i, t := range c.Tiers {
		if t.To != nil && !t.To.GreaterThan(t.From) {
			return configError("tier %d is empty", i)
		}
		if i == 0 {
			continue
		}
		prev := c.Tiers[i-1]
		if prev.To == nil || !prev.To.Equal(t.From) {
			return configError("tier %d does not start where tier %d ends", i, i-1)
		}
	}
	if c.Tiers[len(c.Tiers)-1].To != nil {
		return configError("top tier must be open ended")
	}
	return nil
}

func (c ExternalConfig) Validate() error {
	if c.Variable == "" {
		return configError("external variable is empty")
	}
	return nil
}

func (c TaxConfig) Validate() error { return nil }

// Apply evaluates the tiers against basis.
func (c TieredConfig) Apply(basis decimal.Decimal) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	total := decimal.Zero
	for _, t := range c.Tiers {
		if basis.LessThan(t.From) {
			break
		}
		inTier := t.To == nil || basis.LessThan(*t.To)
		switch c.Method {
		case TierFlat:
			if inTier {
				return basis.Mul(t.Percentage).Div(hundred).Add(t.Amount)
			}
		case TierGraduated:
			upper := basis
			if !inTier {
				upper = *t.To
			}
			total = total.Add(upper.Sub(t.From).Mul(t.Percentage).Div(hundred)).Add(t.Amount)
		}
	}
	return total
}

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperrors.ErrConfigValidation, fmt.Sprintf(format, args...))
}

type configEnvelope struct {
	Type ConfigKind `json:"type"`
}

// MarshalComponentConfig encodes cfg as {"type": kind, ...fields}.
func MarshalComponentConfig(cfg ComponentConfig) ([]byte, error) {
	if cfg == nil {
		return nil, configError("missing configuration")
	}
	body, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s config: %w", cfg.Kind(), err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("failed to encode %s config: %w", cfg.Kind(), err)
	}
	kind, _ := json.Marshal(cfg.Kind())
	fields["type"] = kind
	return json.Marshal(fields)
}

// UnmarshalComponentConfig decodes an envelope and parses formula expressions.
func UnmarshalComponentConfig(data []byte) (ComponentConfig, error) {
	var env configEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, configError("malformed configuration: %v", err)
	}

	var cfg ComponentConfig
	var err error
	switch env.Type {
	case ConfigKind(CalcFixed):
		var c FixedConfig
		err = json.Unmarshal(data, &c)
		cfg = c
	case ConfigKind(CalcPercentage):
		var c PercentageConfig
		err = json.Unmarshal(data, &c)
		cfg = c
	case ConfigKind(CalcFormula):
		var c FormulaConfig
		if err = json.Unmarshal(data, &c); err == nil {
			c.Tree, err = formula.Parse(c.Expression)
		}
		cfg = c
	case ConfigKind(CalcHourlyRate):
		c := HourlyRateConfig{}
		err = json.Unmarshal(data, &c)
		cfg = c.withDefaults()
	case ConfigKind(CalcTiered):
		var c TieredConfig
		err = json.Unmarshal(data, &c)
		cfg = c
	case ConfigKind(CalcExternal):
		var c ExternalConfig
		err = json.Unmarshal(data, &c)
		cfg = c
	case ConfigKindTax:
		var c TaxConfig
		err = json.Unmarshal(data, &c)
		cfg = c
	default:
		return nil, configError("unknown configuration type %q", env.Type)
	}
	if err != nil {
		return nil, configError("%s configuration: %v", env.Type, err)
	}
	return cfg, nil
}

// NewFormulaConfig parses expression into a ready-to-evaluate config.
func NewFormulaConfig(expression string) (FormulaConfig, error) {
	tree, err := formula.Parse(expression)
	if err != nil {
		return FormulaConfig{}, err
	}
	return FormulaConfig{Expression: expression, Tree: tree}, nil
}

func (c HourlyRateConfig) withDefaults() HourlyRateConfig {
	if c.HoursVariable == "" {
		c.HoursVariable = VarHoursWorked
	}
	if c.Multiplier.IsZero() {
		c.Multiplier = decimal.NewFromInt(1)
	}
	return c
}

// NewHourlyRateConfig fills the default hours variable and multiplier.
func NewHourlyRateConfig(rate *decimal.Decimal, hoursVariable string, multiplier decimal.Decimal) HourlyRateConfig {
	return HourlyRateConfig{Rate: rate, HoursVariable: hoursVariable, Multiplier: multiplier}.withDefaults()
}

// ValidateComponent checks that the component's config matches its category and
// calculation type and that the config itself is consistent.
func ValidateComponent(c *PayStructureComponent) error {
	if c.Config == nil {
		return configError("%s has no configuration", c.Code)
	}
	if c.Category == CategoryTax {
		if _, ok := c.Config.(TaxConfig); !ok {
			return configError("%s is a tax component but has %s configuration", c.Code, c.Config.Kind())
		}
		if c.TaxRuleSetID == nil {
			return configError("%s has no tax rule set", c.Code)
		}
		return nil
	}
	if c.Config.Kind() != ConfigKind(c.CalculationType) {
		return configError("%s declares %s but has %s configuration", c.Code, c.CalculationType, c.Config.Kind())
	}
	if err := c.Config.Validate(); err != nil {
		return fmt.Errorf("%s: %w", c.Code, err)
	}
	switch cfg := c.Config.(type) {
	case FixedConfig:
		return c.Bounds.CheckAmount(c.Code, cfg.Amount)
	case PercentageConfig:
		return c.Bounds.CheckPercentage(c.Code, cfg.Percentage)
	case HourlyRateConfig:
		if cfg.Rate != nil {
			return c.Bounds.CheckAmount(c.Code, *cfg.Rate)
		}
	}
	return nil
}
