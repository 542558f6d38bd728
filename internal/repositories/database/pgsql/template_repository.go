package pgsql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SscSPs/payroll_engine/internal/apperrors"
	"github.com/SscSPs/payroll_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/payroll_engine/internal/core/ports/repositories"
	"github.com/SscSPs/payroll_engine/internal/models"
	"github.com/SscSPs/payroll_engine/internal/utils/mapping"
)

// PgxTemplateRepository stores pay structure templates and their components.
type PgxTemplateRepository struct {
	BaseRepository
}

func newPgxTemplateRepository(pool *pgxpool.Pool) *PgxTemplateRepository {
	return &PgxTemplateRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.TemplateRepositoryFacade = (*PgxTemplateRepository)(nil)

const templateColumns = `
	template_id, organization_id, code, name, version, status, is_default,
	effective_from, effective_to, base_currency, pay_frequency, published_at,
	created_at, created_by, last_updated_at, last_updated_by`

const componentColumns = `
	component_id, template_id, code, name, category, calculation_type, sequence_order,
	depends_on, is_taxable, affects_gross, affects_net, tax_rule_set_id, allowance_type,
	config, bounds`

// FindTemplateByID retrieves a template with its components.
func (r *PgxTemplateRepository) FindTemplateByID(ctx context.Context, organizationID, templateID string) (*domain.PayStructureTemplate, error) {
	rows, err := r.Pool.Query(ctx,
		`SELECT`+templateColumns+` FROM pay_structure_templates WHERE organization_id = $1 AND template_id = $2`,
		organizationID, templateID)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to query template", err)
	}
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[models.PayStructureTemplate])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("template not found: " + templateID)
		}
		return nil, apperrors.NewAppError(500, "failed to scan template", err)
	}

	template := mapping.ToDomainTemplate(row)
	template.Components, err = r.findComponents(ctx, templateID)
	if err != nil {
		return nil, err
	}
	return &template, nil
}

func (r *PgxTemplateRepository) findComponents(ctx context.Context, templateID string) ([]domain.PayStructureComponent, error) {
	rows, err := r.Pool.Query(ctx,
		`SELECT`+componentColumns+` FROM pay_structure_components WHERE template_id = $1 ORDER BY sequence_order, code`,
		templateID)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to query components", err)
	}
	modelComponents, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.PayStructureComponent])
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to scan components", err)
	}

	components := make([]domain.PayStructureComponent, 0, len(modelComponents))
	for _, m := range modelComponents {
		c, err := mapping.ToDomainComponent(m)
		if err != nil {
			return nil, apperrors.NewAppError(500, "stored component is unreadable", err)
		}
		components = append(components, c)
	}
	return components, nil
}

// FindDefaultTemplates lists active default templates covering asOf.
func (r *PgxTemplateRepository) FindDefaultTemplates(ctx context.Context, organizationID string, asOf time.Time) ([]domain.PayStructureTemplate, error) {
	rows, err := r.Pool.Query(ctx, `SELECT`+templateColumns+`
		FROM pay_structure_templates
		WHERE organization_id = $1 AND is_default AND status = $2
		  AND effective_from <= $3 AND (effective_to IS NULL OR effective_to > $3)
		ORDER BY effective_from DESC`,
		organizationID, string(domain.TemplateActive), asOf)
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to query default templates", err)
	}
	modelTemplates, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.PayStructureTemplate])
	if err != nil {
		return nil, apperrors.NewAppError(500, "failed to scan default templates", err)
	}
	templates := make([]domain.PayStructureTemplate, len(modelTemplates))
	for i, m := range modelTemplates {
		templates[i] = mapping.ToDomainTemplate(m)
	}
	return templates, nil
}

// SaveTemplate inserts a new draft template with its components.
func (r *PgxTemplateRepository) SaveTemplate(ctx context.Context, template domain.PayStructureTemplate) error {
	m := mapping.ToModelTemplate(template)
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO pay_structure_templates (`+templateColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
			m.TemplateID, m.OrganizationID, m.Code, m.Name, m.Version, m.Status, m.IsDefault,
			m.EffectiveFrom, m.EffectiveTo, m.BaseCurrency, m.PayFrequency, m.PublishedAt,
			m.CreatedAt, m.CreatedBy, m.LastUpdatedAt, m.LastUpdatedBy,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperrors.NewDuplicateError(fmt.Sprintf("template %s %s already exists", m.Code, m.Version))
			}
			return apperrors.NewAppError(500, "failed to insert template", err)
		}
		for _, c := range template.Components {
			c.TemplateID = template.TemplateID
			if err := upsertComponent(ctx, tx, c); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveComponent inserts or replaces a component of a draft template.
func (r *PgxTemplateRepository) SaveComponent(ctx context.Context, organizationID string, component domain.PayStructureComponent) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx,
			`SELECT status FROM pay_structure_templates WHERE organization_id = $1 AND template_id = $2 FOR UPDATE`,
			organizationID, component.TemplateID,
		).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NewNotFoundError("template not found: " + component.TemplateID)
			}
			return apperrors.NewAppError(500, "failed to lock template", err)
		}
		if domain.TemplateStatus(status) != domain.TemplateDraft {
			return apperrors.NewConflictError("template " + component.TemplateID + " is " + status + " and cannot change")
		}
		return upsertComponent(ctx, tx, component)
	})
}

func upsertComponent(ctx context.Context, tx pgx.Tx, component domain.PayStructureComponent) error {
	m, err := mapping.ToModelComponent(component)
	if err != nil {
		return apperrors.NewAppError(500, "failed to encode component", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO pay_structure_components (`+componentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (template_id, code) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			calculation_type = EXCLUDED.calculation_type,
			sequence_order = EXCLUDED.sequence_order,
			depends_on = EXCLUDED.depends_on,
			is_taxable = EXCLUDED.is_taxable,
			affects_gross = EXCLUDED.affects_gross,
			affects_net = EXCLUDED.affects_net,
			tax_rule_set_id = EXCLUDED.tax_rule_set_id,
			allowance_type = EXCLUDED.allowance_type,
			config = EXCLUDED.config,
			bounds = EXCLUDED.bounds`,
		m.ComponentID, m.TemplateID, m.Code, m.Name, m.Category, m.CalculationType, m.SequenceOrder,
		m.DependsOn, m.IsTaxable, m.AffectsGross, m.AffectsNet, m.TaxRuleSetID, m.AllowanceType,
		m.Config, m.Bounds,
	)
	if err != nil {
		return apperrors.NewAppError(500, "failed to save component "+component.Code, err)
	}
	return nil
}

// UpdateTemplateStatus persists a lifecycle change. Default templates of one
// organization are serialized with an advisory lock so two overlapping
// defaults can never both commit.
func (r *PgxTemplateRepository) UpdateTemplateStatus(ctx context.Context, template domain.PayStructureTemplate) error {
	m := mapping.ToModelTemplate(template)
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		if m.IsDefault {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "default-template:"+m.OrganizationID); err != nil {
				return apperrors.NewAppError(500, "failed to lock default templates", err)
			}
			var overlapping int
			err := tx.QueryRow(ctx, `
				SELECT count(*) FROM pay_structure_templates
				WHERE organization_id = $1 AND template_id <> $2 AND is_default AND status = $3
				  AND effective_from < COALESCE($5, 'infinity'::timestamptz)
				  AND COALESCE(effective_to, 'infinity'::timestamptz) > $4`,
				m.OrganizationID, m.TemplateID, string(domain.TemplateActive), m.EffectiveFrom, m.EffectiveTo,
			).Scan(&overlapping)
			if err != nil {
				return apperrors.NewAppError(500, "failed to check default overlap", err)
			}
			if overlapping > 0 {
				return apperrors.NewConflictError("another default template overlaps " + m.Code + " " + m.Version)
			}
		}

		tag, err := tx.Exec(ctx, `
			UPDATE pay_structure_templates
			SET status = $3, is_default = $4, published_at = $5, effective_to = $6,
			    last_updated_at = $7, last_updated_by = $8
			WHERE organization_id = $1 AND template_id = $2`,
			m.OrganizationID, m.TemplateID, m.Status, m.IsDefault, m.PublishedAt, m.EffectiveTo,
			m.LastUpdatedAt, m.LastUpdatedBy,
		)
		if err != nil {
			return apperrors.NewAppError(500, "failed to update template status", err)
		}
		if tag.RowsAffected() == 0 {
			return apperrors.NewNotFoundError("template not found: " + m.TemplateID)
		}
		return nil
	})
}
