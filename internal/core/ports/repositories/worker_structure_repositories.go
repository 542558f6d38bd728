package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/payroll_engine/internal/core/domain"
)

// WorkerStructureRepository persists worker pay structure assignments.
type WorkerStructureRepository interface {
	// FindCurrentWorkerStructure returns the assignment covering asOf with its
	// overrides, or ErrNotFound.
	FindCurrentWorkerStructure(ctx context.Context, organizationID, employeeID string, asOf time.Time) (*domain.WorkerPayStructure, error)

	// SaveWorkerStructure inserts an assignment and its overrides. Overlapping
	// assignments for the same employee fail with ErrConflict.
	SaveWorkerStructure(ctx context.Context, structure domain.WorkerPayStructure) error
}
