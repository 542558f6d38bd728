package services

import (
	"context"
	"time"

	"github.com/SscSPs/payroll_engine/internal/core/domain"
)

// TemplateResolverSvc resolves the effective, ordered pay components of an employee.
type TemplateResolverSvc interface {
	// Resolve returns the structure covering asOf with overrides applied and
	// components in execution order.
	Resolve(ctx context.Context, organizationID, employeeID string, asOf time.Time) (*domain.ResolvedStructure, error)
}

// TemplateReaderSvc defines read operations for templates.
type TemplateReaderSvc interface {
	GetTemplate(ctx context.Context, organizationID, templateID string) (*domain.PayStructureTemplate, error)
}

// TemplateWriterSvc defines write operations for templates.
type TemplateWriterSvc interface {
	// CreateDraft stores a new draft template with its components.
	CreateDraft(ctx context.Context, template domain.PayStructureTemplate, creatorID string) (*domain.PayStructureTemplate, error)

	// AddComponent adds or replaces a component of a draft template.
	AddComponent(ctx context.Context, organizationID, templateID string, component domain.PayStructureComponent) error

	// Publish validates a draft and makes it active, optionally as the organization default.
	Publish(ctx context.Context, organizationID, templateID string, makeDefault bool, publisherID string) (*domain.PayStructureTemplate, error)

	// Deprecate and Archive advance a published template's lifecycle.
	Deprecate(ctx context.Context, organizationID, templateID, userID string) (*domain.PayStructureTemplate, error)
	Archive(ctx context.Context, organizationID, templateID, userID string) (*domain.PayStructureTemplate, error)

	// AssignWorker stores a worker structure after validating its overrides.
	AssignWorker(ctx context.Context, structure domain.WorkerPayStructure, creatorID string) (*domain.WorkerPayStructure, error)
}

// TemplateSvcFacade combines template reads and writes.
type TemplateSvcFacade interface {
	TemplateReaderSvc
	TemplateWriterSvc
}
