package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/payroll_engine/internal/core/domain"
)

// TemplateReader defines read operations for pay structure templates.
type TemplateReader interface {
	// FindTemplateByID retrieves a template with its components.
	FindTemplateByID(ctx context.Context, organizationID, templateID string) (*domain.PayStructureTemplate, error)

	// FindDefaultTemplates lists active default templates of the organization
	// whose effective range covers asOf, without components.
	FindDefaultTemplates(ctx context.Context, organizationID string, asOf time.Time) ([]domain.PayStructureTemplate, error)
}

// TemplateWriter defines write operations for pay structure templates.
type TemplateWriter interface {
	// SaveTemplate inserts a new draft template with its components.
	SaveTemplate(ctx context.Context, template domain.PayStructureTemplate) error

	// SaveComponent inserts or replaces a component. It fails with ErrConflict
	// when the owning template is no longer a draft.
	SaveComponent(ctx context.Context, organizationID string, component domain.PayStructureComponent) error

	// UpdateTemplateStatus persists a lifecycle change. Marking a template as
	// default fails with ErrConflict if another default overlaps its range.
	UpdateTemplateStatus(ctx context.Context, template domain.PayStructureTemplate) error
}

// TemplateRepositoryFacade combines template reads and writes.
type TemplateRepositoryFacade interface {
	TemplateReader
	TemplateWriter
}
