package mapping

import (
	"encoding/json"
	"fmt"

	"github.com/SscSPs/payroll_engine/internal/core/domain"
	"github.com/SscSPs/payroll_engine/internal/models"
)

// ToModelTemplate converts a domain template header to its row.
func ToModelTemplate(d domain.PayStructureTemplate) models.PayStructureTemplate {
	return models.PayStructureTemplate{
		TemplateID:     d.TemplateID,
		OrganizationID: d.OrganizationID,
		Code:           d.Code,
		Name:           d.Name,
		Version:        d.Version,
		Status:         string(d.Status),
		IsDefault:      d.IsDefault,
		EffectiveFrom:  d.From,
		EffectiveTo:    d.To,
		BaseCurrency:   d.BaseCurrency,
		PayFrequency:   string(d.PayFrequency),
		PublishedAt:    d.PublishedAt,
		AuditFields:    ToModelAuditFields(d.AuditFields),
	}
}

// ToDomainTemplate converts a template row to a domain template without components.
func ToDomainTemplate(m models.PayStructureTemplate) domain.PayStructureTemplate {
	return domain.PayStructureTemplate{
		TemplateID:     m.TemplateID,
		OrganizationID: m.OrganizationID,
		Code:           m.Code,
		Name:           m.Name,
		Version:        m.Version,
		Status:         domain.TemplateStatus(m.Status),
		IsDefault:      m.IsDefault,
		DateRange:      domain.DateRange{From: m.EffectiveFrom, To: m.EffectiveTo},
		BaseCurrency:   m.BaseCurrency,
		PayFrequency:   domain.PayFrequency(m.PayFrequency),
		PublishedAt:    m.PublishedAt,
		AuditFields:    ToDomainAuditFields(m.AuditFields),
	}
}

// ToModelComponent converts a domain component to its row, encoding the
// typed configuration and bounds as JSON.
func ToModelComponent(d domain.PayStructureComponent) (models.PayStructureComponent, error) {
	cfg, err := domain.MarshalComponentConfig(d.Config)
	if err != nil {
		return models.PayStructureComponent{}, fmt.Errorf("component %s config: %w", d.Code, err)
	}
	bounds, err := json.Marshal(d.Bounds)
	if err != nil {
		return models.PayStructureComponent{}, fmt.Errorf("component %s bounds: %w", d.Code, err)
	}
	dependsOn := d.DependsOn
	if dependsOn == nil {
		dependsOn = []string{}
	}
	return models.PayStructureComponent{
		ComponentID:     d.ComponentID,
		TemplateID:      d.TemplateID,
		Code:            d.Code,
		Name:            d.Name,
		Category:        string(d.Category),
		CalculationType: string(d.CalculationType),
		SequenceOrder:   d.SequenceOrder,
		DependsOn:       dependsOn,
		IsTaxable:       d.IsTaxable,
		AffectsGross:    d.AffectsGross,
		AffectsNet:      d.AffectsNet,
		TaxRuleSetID:    d.TaxRuleSetID,
		AllowanceType:   d.AllowanceType,
		Config:          cfg,
		Bounds:          bounds,
	}, nil
}

// ToDomainComponent converts a component row back to the domain type.
func ToDomainComponent(m models.PayStructureComponent) (domain.PayStructureComponent, error) {
	cfg, err := domain.UnmarshalComponentConfig(m.Config)
	if err != nil {
		return domain.PayStructureComponent{}, fmt.Errorf("component %s config: %w", m.Code, err)
	}
	var bounds domain.ComponentBounds
	if len(m.Bounds) > 0 {
		if err := json.Unmarshal(m.Bounds, &bounds); err != nil {
			return domain.PayStructureComponent{}, fmt.Errorf("component %s bounds: %w", m.Code, err)
		}
	}
	return domain.PayStructureComponent{
		ComponentID:     m.ComponentID,
		TemplateID:      m.TemplateID,
		Code:            m.Code,
		Name:            m.Name,
		Category:        domain.ComponentCategory(m.Category),
		CalculationType: domain.CalculationType(m.CalculationType),
		SequenceOrder:   m.SequenceOrder,
		DependsOn:       m.DependsOn,
		IsTaxable:       m.IsTaxable,
		AffectsGross:    m.AffectsGross,
		AffectsNet:      m.AffectsNet,
		TaxRuleSetID:    m.TaxRuleSetID,
		AllowanceType:   m.AllowanceType,
		Config:          cfg,
		Bounds:          bounds,
	}, nil
}
