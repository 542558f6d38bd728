package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/payroll_engine/internal/core/domain"
)

// AllowanceReader defines read operations for allowances and their usage.
type AllowanceReader interface {
	// FindAllowance returns the allowance of the given type effective at asOf.
	FindAllowance(ctx context.Context, organizationID, allowanceType string, asOf time.Time) (*domain.Allowance, error)

	// FindUsage returns the usage row for key, or ErrNotFound.
	FindUsage(ctx context.Context, key domain.AllowanceKey) (*domain.EmployeeAllowanceUsage, error)

	// FindUsageEntry returns what sourceRef consumed from the usage row, or ErrNotFound.
	FindUsageEntry(ctx context.Context, usageID, sourceRef string) (*domain.AllowanceUsageEntry, error)

	// FindUsageEntriesBySourcePrefix lists the entries whose source ref starts with prefix.
	FindUsageEntriesBySourcePrefix(ctx context.Context, organizationID, prefix string) ([]domain.AllowanceUsageEntry, error)

	// FindUsageByID returns a usage row by id.
	FindUsageByID(ctx context.Context, usageID string) (*domain.EmployeeAllowanceUsage, error)
}

// AllowanceWriter defines write operations for allowances and their usage.
type AllowanceWriter interface {
	// SaveAllowance inserts an allowance definition.
	SaveAllowance(ctx context.Context, allowance domain.Allowance) error

	// CreateUsage inserts a zero-initialised usage row. A concurrent insert for
	// the same key fails with ErrDuplicate.
	CreateUsage(ctx context.Context, usage domain.EmployeeAllowanceUsage) error

	// UpdateUsage writes usage and upserts entry in one transaction, only if the
	// stored version still equals expectedVersion (ErrConflict otherwise). An
	// entry with a zero amount is deleted.
	UpdateUsage(ctx context.Context, usage domain.EmployeeAllowanceUsage, expectedVersion int64, entry domain.AllowanceUsageEntry) error
}

// AllowanceRepositoryFacade combines allowance reads and writes.
type AllowanceRepositoryFacade interface {
	AllowanceReader
	AllowanceWriter
}
