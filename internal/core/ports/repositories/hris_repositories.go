package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/payroll_engine/internal/core/domain"
)

// EmployeeDirectory is the read-only view of HRIS employee and compensation data.
type EmployeeDirectory interface {
	// GetEmployee returns the employee snapshot with compensation effective at asOf.
	GetEmployee(ctx context.Context, organizationID, employeeID string, asOf time.Time) (*domain.EmployeeSnapshot, error)
}

// TimeDataSource is the read-only view of approved time entries.
type TimeDataSource interface {
	// GetTimeData totals approved time entries in [periodStart, periodEnd].
	GetTimeData(ctx context.Context, organizationID, employeeID string, periodStart, periodEnd time.Time) (*domain.TimeData, error)
}
