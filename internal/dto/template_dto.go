package dto

import (
	"time"

	"github.com/SscSPs/payroll_engine/internal/core/domain"
)

// PublishTemplateRequest activates a draft template.
type PublishTemplateRequest struct {
	MakeDefault bool `json:"makeDefault"`
}

// TemplateResponse defines the data returned for a pay structure template.
type TemplateResponse struct {
	TemplateID     string                `json:"templateID"`
	Code           string                `json:"code"`
	Version        string                `json:"version"`
	Status         domain.TemplateStatus `json:"status"`
	IsDefault      bool                  `json:"isDefault"`
	EffectiveFrom  time.Time             `json:"effectiveFrom"`
	EffectiveTo    *time.Time            `json:"effectiveTo,omitempty"`
	BaseCurrency   string                `json:"baseCurrency"`
	PayFrequency   domain.PayFrequency   `json:"payFrequency"`
	PublishedAt    *time.Time            `json:"publishedAt,omitempty"`
	ComponentCodes []string              `json:"componentCodes"`
}

// ToTemplateResponse converts a domain.PayStructureTemplate to TemplateResponse DTO.
func ToTemplateResponse(t *domain.PayStructureTemplate) TemplateResponse {
	codes := make([]string, len(t.Components))
	for i, c := range t.Components {
		codes[i] = c.Code
	}
	return TemplateResponse{
		TemplateID:     t.TemplateID,
		Code:           t.Code,
		Version:        t.Version,
		Status:         t.Status,
		IsDefault:      t.IsDefault,
		EffectiveFrom:  t.From,
		EffectiveTo:    t.To,
		BaseCurrency:   t.BaseCurrency,
		PayFrequency:   t.PayFrequency,
		PublishedAt:    t.PublishedAt,
		ComponentCodes: codes,
	}
}
