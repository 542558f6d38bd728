package models

import (
	"time"
)

// PayStructureTemplate is the pay_structure_templates row.
type PayStructureTemplate struct {
	TemplateID     string     `db:"template_id"`
	OrganizationID string     `db:"organization_id"`
	Code           string     `db:"code"`
	Name           string     `db:"name"`
	Version        string     `db:"version"`
	Status         string     `db:"status"`
	IsDefault      bool       `db:"is_default"`
	EffectiveFrom  time.Time  `db:"effective_from"`
	EffectiveTo    *time.Time `db:"effective_to"`
	BaseCurrency   string     `db:"base_currency"`
	PayFrequency   string     `db:"pay_frequency"`
	PublishedAt    *time.Time `db:"published_at"`
	AuditFields
}

// PayStructureComponent is the pay_structure_components row. Config and
// Bounds are stored as JSONB.
type PayStructureComponent struct {
	ComponentID     string   `db:"component_id"`
	TemplateID      string   `db:"template_id"`
	Code            string   `db:"code"`
	Name            string   `db:"name"`
	Category        string   `db:"category"`
	CalculationType string   `db:"calculation_type"`
	SequenceOrder   int      `db:"sequence_order"`
	DependsOn       []string `db:"depends_on"`
	IsTaxable       bool     `db:"is_taxable"`
	AffectsGross    bool     `db:"affects_gross"`
	AffectsNet      bool     `db:"affects_net"`
	TaxRuleSetID    *string  `db:"tax_rule_set_id"`
	AllowanceType   string   `db:"allowance_type"`
	Config          []byte   `db:"config"`
	Bounds          []byte   `db:"bounds"`
}
