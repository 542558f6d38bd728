package repositories

import (
	"context"

	"github.com/SscSPs/payroll_engine/internal/core/domain"
)

// TaxRuleSetRepository persists tax rule sets and their brackets.
type TaxRuleSetRepository interface {
	// FindTaxRuleSetByID retrieves a rule set with brackets ordered by income_min.
	FindTaxRuleSetByID(ctx context.Context, organizationID, taxRuleSetID string) (*domain.TaxRuleSet, error)

	// SaveTaxRuleSet inserts a rule set and its brackets.
	SaveTaxRuleSet(ctx context.Context, ruleSet domain.TaxRuleSet) error
}
