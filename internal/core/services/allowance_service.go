package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/SscSPs/payroll_engine/internal/apperrors"
	"github.com/SscSPs/payroll_engine/internal/core/domain"
	portsrepo "github.com/SscSPs/payroll_engine/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/payroll_engine/internal/core/ports/services"
)

const defaultAllowanceRetries = 5

// allowanceService implements the AllowanceSvc interface
type allowanceService struct {
	BaseService
	repo       portsrepo.AllowanceRepositoryFacade
	locks      *keyedMutex
	maxRetries int
}

// AllowanceOption is a functional option for configuring the allowance service
type AllowanceOption func(*allowanceService)

// WithAllowanceMaxRetries bounds the optimistic update retries.
func WithAllowanceMaxRetries(n int) AllowanceOption {
	return func(s *allowanceService) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// NewAllowanceService creates the allowance cap tracker.
func NewAllowanceService(repo portsrepo.AllowanceRepositoryFacade, options ...AllowanceOption) portssvc.AllowanceSvc {
	svc := &allowanceService{
		repo:       repo,
		locks:      newKeyedMutex(),
		maxRetries: defaultAllowanceRetries,
	}
	for _, option := range options {
		option(svc)
	}
	return svc
}

var _ portssvc.AllowanceSvc = (*allowanceService)(nil)

func (s *allowanceService) GetAllowance(ctx context.Context, organizationID, allowanceType string, asOf time.Time) (*domain.Allowance, error) {
	return s.repo.FindAllowance(ctx, organizationID, allowanceType, asOf)
}

func lockKey(k domain.AllowanceKey) string {
	return fmt.Sprintf("%s|%s|%s|%d", k.OrganizationID, k.EmployeeID, k.AllowanceType, k.CalendarYear)
}

func (s *allowanceService) ApplyAllowance(ctx context.Context, req portssvc.AllowanceRequest) (domain.AllowanceResult, error) {
	if req.Requested.IsNegative() {
		return domain.AllowanceResult{}, fmt.Errorf("%w: requested allowance is negative", apperrors.ErrValidation)
	}
	if req.Cap.IsNegative() {
		return domain.AllowanceResult{}, fmt.Errorf("%w: allowance cap is negative", apperrors.ErrConfigValidation)
	}
	if req.SourceRef == "" {
		return domain.AllowanceResult{}, fmt.Errorf("%w: allowance source is required", apperrors.ErrValidation)
	}
	key := domain.AllowanceKey{
		OrganizationID: req.OrganizationID,
		EmployeeID:     req.EmployeeID,
		AllowanceType:  req.AllowanceType,
		CalendarYear:   req.CalendarYear,
	}

	unlock := s.locks.Lock(lockKey(key))
	defer unlock()

	var result domain.AllowanceResult
	err := s.retry(ctx, key, func() error {
		var err error
		result, err = s.apply(ctx, key, req)
		return err
	})
	if err != nil {
		return domain.AllowanceResult{}, err
	}
	if result.Capped() {
		s.LogInfo(ctx, "Allowance cap reached",
			slog.String("employee_id", req.EmployeeID),
			slog.String("allowance_type", req.AllowanceType),
			slog.String("applied", result.Applied.String()),
			slog.String("excess", result.Excess.String()))
	}
	return result, nil
}

// retry reruns fn while it loses optimistic races.
func (s *allowanceService) retry(ctx context.Context, key domain.AllowanceKey, fn func() error) error {
	var err error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = fn()
		if !errors.Is(err, apperrors.ErrConflict) && !errors.Is(err, apperrors.ErrDuplicate) {
			return err
		}
		s.LogDebug(ctx, "Allowance usage changed concurrently, retrying",
			slog.String("key", lockKey(key)),
			slog.Int("attempt", attempt+1))
	}
	return fmt.Errorf("allowance usage %s still contended after %d attempts: %w", lockKey(key), s.maxRetries+1, err)
}

func (s *allowanceService) apply(ctx context.Context, key domain.AllowanceKey, req portssvc.AllowanceRequest) (domain.AllowanceResult, error) {
	usage, err := s.loadOrCreateUsage(ctx, key, req.Cap)
	if err != nil {
		return domain.AllowanceResult{}, err
	}

	// Reapplying a source replaces what it consumed before.
	previous := decimal.Zero
	entry, err := s.repo.FindUsageEntry(ctx, usage.UsageID, req.SourceRef)
	switch {
	case err == nil:
		previous = entry.Amount
	case !errors.Is(err, apperrors.ErrNotFound):
		return domain.AllowanceResult{}, fmt.Errorf("failed to load allowance usage entry: %w", err)
	}

	usedByOthers := usage.AmountUsed.Sub(previous)
	available := decimal.Max(req.Cap.Sub(usedByOthers), decimal.Zero)
	applied := decimal.Min(req.Requested, available)
	newUsed := usedByOthers.Add(applied)

	updated := *usage
	updated.AmountUsed = newUsed
	updated.AmountRemaining = decimal.Max(req.Cap.Sub(newUsed), decimal.Zero)
	updated.Version = usage.Version + 1
	updated.UpdatedAt = s.Now()

	err = s.repo.UpdateUsage(ctx, updated, usage.Version, domain.AllowanceUsageEntry{
		UsageID:   usage.UsageID,
		SourceRef: req.SourceRef,
		Amount:    applied,
		CreatedAt: updated.UpdatedAt,
	})
	if err != nil {
		return domain.AllowanceResult{}, err
	}

	return domain.AllowanceResult{
		Applied:   applied,
		Remaining: updated.AmountRemaining,
		Excess:    req.Requested.Sub(applied),
	}, nil
}

func (s *allowanceService) loadOrCreateUsage(ctx context.Context, key domain.AllowanceKey, annualCap decimal.Decimal) (*domain.EmployeeAllowanceUsage, error) {
	usage, err := s.repo.FindUsage(ctx, key)
	if err == nil {
		return usage, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to load allowance usage: %w", err)
	}

	fresh := domain.EmployeeAllowanceUsage{
		UsageID:         uuid.NewString(),
		OrganizationID:  key.OrganizationID,
		EmployeeID:      key.EmployeeID,
		AllowanceType:   key.AllowanceType,
		CalendarYear:    key.CalendarYear,
		AmountUsed:      decimal.Zero,
		AmountRemaining: annualCap,
		UpdatedAt:       s.Now(),
	}
	// ErrDuplicate means another writer created the row first; the caller retries.
	if err := s.repo.CreateUsage(ctx, fresh); err != nil {
		return nil, err
	}
	return &fresh, nil
}

func (s *allowanceService) ReleaseAllowance(ctx context.Context, organizationID, sourcePrefix string) error {
	if sourcePrefix == "" {
		return fmt.Errorf("%w: release prefix is required", apperrors.ErrValidation)
	}
	entries, err := s.repo.FindUsageEntriesBySourcePrefix(ctx, organizationID, sourcePrefix)
	if err != nil {
		return fmt.Errorf("failed to list allowance usage entries: %w", err)
	}

	for _, entry := range entries {
		usage, err := s.repo.FindUsageByID(ctx, entry.UsageID)
		if err != nil {
			return fmt.Errorf("failed to load allowance usage %s: %w", entry.UsageID, err)
		}
		key := domain.AllowanceKey{
			OrganizationID: usage.OrganizationID,
			EmployeeID:     usage.EmployeeID,
			AllowanceType:  usage.AllowanceType,
			CalendarYear:   usage.CalendarYear,
		}
		if err := s.release(ctx, key, entry); err != nil {
			return err
		}
	}
	return nil
}

func (s *allowanceService) release(ctx context.Context, key domain.AllowanceKey, entry domain.AllowanceUsageEntry) error {
	unlock := s.locks.Lock(lockKey(key))
	defer unlock()

	return s.retry(ctx, key, func() error {
		usage, err := s.repo.FindUsageByID(ctx, entry.UsageID)
		if err != nil {
			return err
		}
		current, err := s.repo.FindUsageEntry(ctx, entry.UsageID, entry.SourceRef)
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		annualCap := usage.AmountUsed.Add(usage.AmountRemaining)
		updated := *usage
		updated.AmountUsed = decimal.Max(usage.AmountUsed.Sub(current.Amount), decimal.Zero)
		updated.AmountRemaining = decimal.Max(annualCap.Sub(updated.AmountUsed), decimal.Zero)
		updated.Version = usage.Version + 1
		updated.UpdatedAt = s.Now()
		return s.repo.UpdateUsage(ctx, updated, usage.Version, domain.AllowanceUsageEntry{
			UsageID:   entry.UsageID,
			SourceRef: entry.SourceRef,
			Amount:    decimal.Zero,
		})
	})
}
