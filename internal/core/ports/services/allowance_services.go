package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SscSPs/payroll_engine/internal/core/domain"
)

// AllowanceRequest identifies one application of an amount against an annual cap.
type AllowanceRequest struct {
	OrganizationID string
	EmployeeID     string
	AllowanceType  string
	CalendarYear   int
	Requested      decimal.Decimal
	Cap            decimal.Decimal
	// SourceRef identifies the paycheck line; reapplying it replaces its earlier usage.
	SourceRef string
}

// AllowanceSvc enforces per-employee annual allowance caps.
type AllowanceSvc interface {
	// ApplyAllowance applies min(requested, cap - used) and reports the excess
	// for the caller to reclassify.
	ApplyAllowance(ctx context.Context, req AllowanceRequest) (domain.AllowanceResult, error)

	// ReleaseAllowance reverts every usage recorded under sources starting with sourcePrefix.
	ReleaseAllowance(ctx context.Context, organizationID, sourcePrefix string) error

	// GetAllowance returns the allowance definition of the type effective at asOf.
	GetAllowance(ctx context.Context, organizationID, allowanceType string, asOf time.Time) (*domain.Allowance, error)
}
