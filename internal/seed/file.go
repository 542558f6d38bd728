// Package seed loads reference data (templates, tax tables, allowances,
// approval rules, exchange rates and worker assignments) from YAML.
package seed

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/SscSPs/payroll_engine/internal/core/domain"
)

// File is the root of a seed document.
type File struct {
	Version       int            `yaml:"version"`
	Organization  string         `yaml:"organization"`
	Actor         string         `yaml:"actor"`
	Employees     []Employee     `yaml:"employees"`
	ExchangeRates []ExchangeRate `yaml:"exchangeRates"`
	TaxRuleSets   []TaxRuleSet   `yaml:"taxRuleSets"`
	Allowances    []Allowance    `yaml:"allowances"`
	ApprovalRules []ApprovalRule `yaml:"approvalRules"`
	Templates     []Template     `yaml:"templates"`
	Workers       []Worker       `yaml:"workers"`
}

// Employee is an HRIS fixture row with its compensation and time entries.
type Employee struct {
	ID               string      `yaml:"id"`
	Status           string      `yaml:"status"`
	HireDate         string      `yaml:"hireDate"`
	TerminationDate  string      `yaml:"terminationDate"`
	AnnualSalary     string      `yaml:"annualSalary"`
	HourlyRate       string      `yaml:"hourlyRate"`
	Currency         string      `yaml:"currency"`
	CompensationFrom string      `yaml:"compensationFrom"`
	TimeEntries      []TimeEntry `yaml:"timeEntries"`
}

// TimeEntry is one approved block of hours.
type TimeEntry struct {
	Date  string `yaml:"date"`
	Type  string `yaml:"type"`
	Hours string `yaml:"hours"`
}

type ExchangeRate struct {
	From          string `yaml:"from"`
	To            string `yaml:"to"`
	Rate          string `yaml:"rate"`
	EffectiveFrom string `yaml:"effectiveFrom"`
}

type TaxRuleSet struct {
	Code          string       `yaml:"code"`
	Jurisdiction  string       `yaml:"jurisdiction"`
	Method        string       `yaml:"method"`
	Mode          string       `yaml:"mode"`
	FlatRate      string       `yaml:"flatRate"`
	EffectiveFrom string       `yaml:"effectiveFrom"`
	EffectiveTo   string       `yaml:"effectiveTo"`
	Brackets      []TaxBracket `yaml:"brackets"`
}

type TaxBracket struct {
	Min   string `yaml:"min"`
	Max   string `yaml:"max"` // empty for the top bracket
	Rate  string `yaml:"rate"`
	Fixed string `yaml:"fixed"`
}

type Allowance struct {
	Type            string `yaml:"type"`
	Name            string `yaml:"name"`
	CalculationType string `yaml:"calculationType"`
	Amount          string `yaml:"amount"`
	Percentage      string `yaml:"percentage"`
	AnnualCap       string `yaml:"annualCap"`
	TaxFree         bool   `yaml:"taxFree"`
	EffectiveFrom   string `yaml:"effectiveFrom"`
}

type ApprovalRule struct {
	Name              string `yaml:"name"`
	Priority          int    `yaml:"priority"`
	Disabled          bool   `yaml:"disabled"`
	Operation         string `yaml:"operation"`
	ThresholdAmount   string `yaml:"thresholdAmount"`
	VariancePercent   string `yaml:"variancePercent"`
	Condition         string `yaml:"condition"`
	RequiredApprovals int    `yaml:"requiredApprovals"`
	ApproverRole      string `yaml:"approverRole"`
	TTL               string `yaml:"ttl"`
}

type Template struct {
	Code          string      `yaml:"code"`
	Name          string      `yaml:"name"`
	Version       string      `yaml:"version"`
	BaseCurrency  string      `yaml:"baseCurrency"`
	PayFrequency  string      `yaml:"payFrequency"`
	EffectiveFrom string      `yaml:"effectiveFrom"`
	EffectiveTo   string      `yaml:"effectiveTo"`
	Default       bool        `yaml:"default"`
	Publish       *bool       `yaml:"publish"` // defaults to true
	Components    []Component `yaml:"components"`
}

type Component struct {
	Code            string         `yaml:"code"`
	Name            string         `yaml:"name"`
	Category        string         `yaml:"category"`
	CalculationType string         `yaml:"calculationType"`
	Sequence        int            `yaml:"sequence"`
	DependsOn       []string       `yaml:"dependsOn"`
	Taxable         bool           `yaml:"taxable"`
	AffectsGross    bool           `yaml:"affectsGross"`
	AffectsNet      bool           `yaml:"affectsNet"`
	TaxRuleSet      string         `yaml:"taxRuleSet"` // code of a seeded tax rule set
	AllowanceType   string         `yaml:"allowanceType"`
	Config          map[string]any `yaml:"config"`
	Bounds          Bounds         `yaml:"bounds"`
}

type Bounds struct {
	MinAmount     string `yaml:"minAmount"`
	MaxAmount     string `yaml:"maxAmount"`
	MinPercentage string `yaml:"minPercentage"`
	MaxPercentage string `yaml:"maxPercentage"`
	AnnualCap     string `yaml:"annualCap"`
	PeriodCap     string `yaml:"periodCap"`
}

type Worker struct {
	Employee        string     `yaml:"employee"`
	Template        string     `yaml:"template"` // code@version of a seeded template
	EffectiveFrom   string     `yaml:"effectiveFrom"`
	EffectiveTo     string     `yaml:"effectiveTo"`
	BaseSalary      string     `yaml:"baseSalary"`
	PayFrequency    string     `yaml:"payFrequency"`
	PaymentCurrency string     `yaml:"paymentCurrency"`
	Overrides       []Override `yaml:"overrides"`
}

type Override struct {
	Component  string `yaml:"component"`
	Disabled   bool   `yaml:"disabled"`
	Amount     string `yaml:"amount"`
	Percentage string `yaml:"percentage"`
	Formula    string `yaml:"formula"`
	Rate       string `yaml:"rate"`
	Reason     string `yaml:"reason"`
}

// Parse decodes and checks a seed document.
func Parse(b []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	if f.Version != 1 {
		return nil, errors.New("seed: unsupported version")
	}
	if f.Organization == "" {
		return nil, errors.New("seed: missing organization")
	}
	if f.Actor == "" {
		f.Actor = "seed"
	}
	return &f, nil
}

// Load reads and parses the seed document at path.
func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// TemplateKey names a template as code@version.
func TemplateKey(code, version string) string {
	return code + "@" + version
}

func parseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("seed: %s: %q is not a YYYY-MM-DD date", field, s)
	}
	return t, nil
}

func parseOptionalDate(field, s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := parseDate(field, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("seed: %s: %q is not a number", field, s)
	}
	return d, nil
}

func parseOptionalDecimal(field, s string) (*decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	d, err := parseDecimal(field, s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// componentConfig builds the typed configuration from the YAML map. Tax
// components always use the tax configuration.
func componentConfig(c Component) (domain.ComponentConfig, error) {
	fields := make(map[string]any, len(c.Config)+1)
	for k, v := range c.Config {
		fields[k] = v
	}
	if domain.ComponentCategory(c.Category) == domain.CategoryTax {
		fields["type"] = string(domain.ConfigKindTax)
	} else {
		fields["type"] = c.CalculationType
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("seed: component %s config: %w", c.Code, err)
	}
	cfg, err := domain.UnmarshalComponentConfig(raw)
	if err != nil {
		return nil, fmt.Errorf("seed: component %s: %w", c.Code, err)
	}
	return cfg, nil
}

func (b Bounds) toDomain(code string) (domain.ComponentBounds, error) {
	var out domain.ComponentBounds
	targets := []struct {
		name string
		raw  string
		dst  **decimal.Decimal
	}{
		{"minAmount", b.MinAmount, &out.MinAmount},
		{"maxAmount", b.MaxAmount, &out.MaxAmount},
		{"minPercentage", b.MinPercentage, &out.MinPercentage},
		{"maxPercentage", b.MaxPercentage, &out.MaxPercentage},
		{"annualCap", b.AnnualCap, &out.AnnualCap},
		{"periodCap", b.PeriodCap, &out.PeriodCap},
	}
	for _, t := range targets {
		d, err := parseOptionalDecimal(code+" "+t.name, t.raw)
		if err != nil {
			return out, err
		}
		*t.dst = d
	}
	return out, nil
}
