package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/mod/semver"

	"github.com/SscSPs/payroll_engine/internal/apperrors"
	"github.com/SscSPs/payroll_engine/internal/core/domain"
	"github.com/SscSPs/payroll_engine/internal/core/formula"
	portsrepo "github.com/SscSPs/payroll_engine/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/payroll_engine/internal/core/ports/services"
	"github.com/SscSPs/payroll_engine/internal/core/tax"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// NewValidator returns the validator used for domain structs. Component codes
// double as formula variable names, so they must be identifiers.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
		return identifierPattern.MatchString(fl.Field().String())
	})
	return v
}

// templateService implements the TemplateSvcFacade interface
type templateService struct {
	BaseService
	templates portsrepo.TemplateRepositoryFacade
	workers   portsrepo.WorkerStructureRepository
	taxRules  portsrepo.TaxRuleSetRepository
	validate  *validator.Validate
}

// NewTemplateService creates a new template service.
func NewTemplateService(templates portsrepo.TemplateRepositoryFacade, workers portsrepo.WorkerStructureRepository, taxRules portsrepo.TaxRuleSetRepository) portssvc.TemplateSvcFacade {
	return &templateService{
		templates: templates,
		workers:   workers,
		taxRules:  taxRules,
		validate:  NewValidator(),
	}
}

var _ portssvc.TemplateSvcFacade = (*templateService)(nil)

func (s *templateService) GetTemplate(ctx context.Context, organizationID, templateID string) (*domain.PayStructureTemplate, error) {
	template, err := s.templates.FindTemplateByID(ctx, organizationID, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return template, nil
}

func (s *templateService) CreateDraft(ctx context.Context, template domain.PayStructureTemplate, creatorID string) (*domain.PayStructureTemplate, error) {
	if template.OrganizationID == "" {
		return nil, fmt.Errorf("%w: organization is required", apperrors.ErrValidation)
	}
	if !semver.IsValid(CanonicalVersion(template.Version)) {
		return nil, fmt.Errorf("%w: %q is not a semantic version", apperrors.ErrValidation, template.Version)
	}
	if err := s.validate.Struct(template); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	now := s.Now()
	template.TemplateID = uuid.NewString()
	template.Status = domain.TemplateDraft
	template.IsDefault = false
	template.PublishedAt = nil
	template.AuditFields = domain.AuditFields{CreatedAt: now, CreatedBy: creatorID, LastUpdatedAt: now, LastUpdatedBy: creatorID}
	for i := range template.Components {
		template.Components[i].ComponentID = uuid.NewString()
		template.Components[i].TemplateID = template.TemplateID
	}

	if err := s.templates.SaveTemplate(ctx, template); err != nil {
		s.LogError(ctx, err, "Failed to save draft template", slog.String("code", template.Code))
		return nil, fmt.Errorf("failed to save template: %w", err)
	}
	s.LogInfo(ctx, "Draft template created",
		slog.String("template_id", template.TemplateID),
		slog.String("code", template.Code),
		slog.String("version", template.Version))
	return &template, nil
}

func (s *templateService) AddComponent(ctx context.Context, organizationID, templateID string, component domain.PayStructureComponent) error {
	template, err := s.templates.FindTemplateByID(ctx, organizationID, templateID)
	if err != nil {
		return fmt.Errorf("failed to load template: %w", err)
	}
	if !template.IsMutable() {
		return fmt.Errorf("%w: template %s %s is %s and cannot change", apperrors.ErrConflict, template.Code, template.Version, template.Status)
	}
	if err := s.validate.Struct(component); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	if existing, ok := template.Component(component.Code); ok {
		component.ComponentID = existing.ComponentID
	} else {
		component.ComponentID = uuid.NewString()
	}
	component.TemplateID = templateID
	return s.templates.SaveComponent(ctx, organizationID, component)
}

func (s *templateService) Publish(ctx context.Context, organizationID, templateID string, makeDefault bool, publisherID string) (*domain.PayStructureTemplate, error) {
	template, err := s.templates.FindTemplateByID(ctx, organizationID, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	if err := s.ValidateForPublish(ctx, template); err != nil {
		s.LogWarn(ctx, "Template failed publish validation",
			slog.String("template_id", templateID),
			slog.String("error", err.Error()))
		return nil, err
	}
	if err := template.TransitionTo(domain.TemplateActive); err != nil {
		return nil, err
	}

	now := s.Now()
	template.PublishedAt = &now
	template.IsDefault = makeDefault
	template.LastUpdatedAt = now
	template.LastUpdatedBy = publisherID

	if err := s.templates.UpdateTemplateStatus(ctx, *template); err != nil {
		return nil, fmt.Errorf("failed to publish template: %w", err)
	}
	s.LogInfo(ctx, "Template published",
		slog.String("template_id", templateID),
		slog.String("version", template.Version),
		slog.Bool("default", makeDefault))
	return template, nil
}

// ValidateForPublish runs every check a template must pass before it becomes immutable.
func (s *templateService) ValidateForPublish(ctx context.Context, template *domain.PayStructureTemplate) error {
	if err := s.validate.Struct(template); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrConfigValidation, err)
	}
	if len(template.Components) == 0 {
		return fmt.Errorf("%w: template %s has no components", apperrors.ErrConfigValidation, template.Code)
	}

	codes := make(map[string]bool, len(template.Components))
	for _, c := range template.Components {
		codes[c.Code] = true
	}

	for i := range template.Components {
		c := &template.Components[i]
		if err := domain.ValidateComponent(c); err != nil {
			return err
		}
		for _, ref := range referencedCodes(c) {
			if codes[ref] && !slices.Contains(c.DependsOn, ref) {
				return fmt.Errorf("%w: %s uses %s but does not depend on it", apperrors.ErrConfigValidation, c.Code, ref)
			}
		}
		if c.Category == domain.CategoryTax {
			ruleSet, err := s.taxRules.FindTaxRuleSetByID(ctx, template.OrganizationID, *c.TaxRuleSetID)
			if err != nil {
				if errors.Is(err, apperrors.ErrNotFound) {
					return fmt.Errorf("%w: %s references missing tax rule set %s", apperrors.ErrConfigValidation, c.Code, *c.TaxRuleSetID)
				}
				return fmt.Errorf("failed to load tax rule set: %w", err)
			}
			if err := tax.ValidateRuleSet(ruleSet); err != nil {
				return fmt.Errorf("%s: %w", c.Code, err)
			}
		}
	}

	_, err := OrderComponents(template.Components, nil)
	return err
}

// referencedCodes lists the names a component reads from other lines.
func referencedCodes(c *domain.PayStructureComponent) []string {
	switch cfg := c.Config.(type) {
	case domain.PercentageConfig:
		return cfg.Basis
	case domain.FormulaConfig:
		return formula.VariableNames(cfg.Tree)
	case domain.TieredConfig:
		return []string{cfg.Basis}
	case domain.ExternalConfig:
		return []string{cfg.Variable}
	case domain.TaxConfig:
		return cfg.Basis
	case domain.HourlyRateConfig:
		return []string{cfg.HoursVariable}
	}
	return nil
}

func (s *templateService) Deprecate(ctx context.Context, organizationID, templateID, userID string) (*domain.PayStructureTemplate, error) {
	return s.advance(ctx, organizationID, templateID, userID, domain.TemplateDeprecated)
}

func (s *templateService) Archive(ctx context.Context, organizationID, templateID, userID string) (*domain.PayStructureTemplate, error) {
	return s.advance(ctx, organizationID, templateID, userID, domain.TemplateArchived)
}

func (s *templateService) advance(ctx context.Context, organizationID, templateID, userID string, next domain.TemplateStatus) (*domain.PayStructureTemplate, error) {
	template, err := s.templates.FindTemplateByID(ctx, organizationID, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	if err := template.TransitionTo(next); err != nil {
		return nil, err
	}
	// a deprecated template stops being the default so a successor can take over
	template.IsDefault = false
	template.LastUpdatedAt = s.Now()
	template.LastUpdatedBy = userID
	if err := s.templates.UpdateTemplateStatus(ctx, *template); err != nil {
		return nil, fmt.Errorf("failed to update template status: %w", err)
	}
	return template, nil
}

func (s *templateService) AssignWorker(ctx context.Context, structure domain.WorkerPayStructure, creatorID string) (*domain.WorkerPayStructure, error) {
	if structure.EmployeeID == "" || structure.OrganizationID == "" {
		return nil, fmt.Errorf("%w: employee and organization are required", apperrors.ErrValidation)
	}
	if structure.To != nil && !structure.To.After(structure.From) {
		return nil, fmt.Errorf("%w: effective range is empty", apperrors.ErrValidation)
	}
	if structure.PaymentCurrency != nil && len(*structure.PaymentCurrency) != 3 {
		return nil, fmt.Errorf("%w: payment currency must be a 3 letter code", apperrors.ErrValidation)
	}
	if structure.PayFrequency != nil {
		if _, err := structure.PayFrequency.PeriodsPerYear(); err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
	}

	template, err := s.templates.FindTemplateByID(ctx, structure.OrganizationID, structure.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load template: %w", err)
	}
	if template.Status != domain.TemplateActive {
		return nil, fmt.Errorf("%w: workers can only be assigned to active templates", apperrors.ErrValidation)
	}

	structure.WorkerStructureID = uuid.NewString()
	seen := map[string]bool{}
	for i := range structure.Overrides {
		o := &structure.Overrides[i]
		if err := o.Validate(); err != nil {
			return nil, err
		}
		if err := o.ParseFormula(); err != nil {
			return nil, err
		}
		if seen[o.ComponentCode] {
			return nil, fmt.Errorf("%w: several overrides for %s", apperrors.ErrValidation, o.ComponentCode)
		}
		seen[o.ComponentCode] = true
		component, ok := template.Component(o.ComponentCode)
		if !ok {
			return nil, fmt.Errorf("%w: template has no component %s", apperrors.ErrValidation, o.ComponentCode)
		}
		if !o.Disabled {
			if _, err := o.ApplyTo(*component); err != nil {
				return nil, err
			}
		}
		o.OverrideID = uuid.NewString()
		o.WorkerStructureID = structure.WorkerStructureID
	}

	now := s.Now()
	structure.AuditFields = domain.AuditFields{CreatedAt: now, CreatedBy: creatorID, LastUpdatedAt: now, LastUpdatedBy: creatorID}
	if err := s.workers.SaveWorkerStructure(ctx, structure); err != nil {
		return nil, fmt.Errorf("failed to save worker structure: %w", err)
	}
	return &structure, nil
}
