// Package tax applies progressive or flat tax rule sets to taxable income.
// Everything here is pure; callers own persistence and concurrency.
package tax

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/SscSPs/payroll_engine/internal/apperrors"
	"github.com/SscSPs/payroll_engine/internal/core/domain"
)

var hundred = decimal.NewFromInt(100)

// ValidateRuleSet checks a rule set before it is stored. Brackets must start at
// zero, be contiguous and non-overlapping, end with an open bracket, and carry
// fixed amounts equal to the tax accumulated below them.
func ValidateRuleSet(rs *domain.TaxRuleSet) error {
	switch rs.CalculationMode {
	case domain.TaxModeAggregated, domain.TaxModeComponentBased, domain.TaxModeProportionalDistribution:
	default:
		return fmt.Errorf("%w: unknown calculation mode %q", apperrors.ErrConfigValidation, rs.CalculationMode)
	}

	switch rs.CalculationMethod {
	case domain.TaxMethodFlat:
		if rs.FlatRate.IsNegative() {
			return fmt.Errorf("%w: %s flat rate is negative", apperrors.ErrConfigValidation, rs.Code)
		}
		return nil
	case domain.TaxMethodBracket:
	default:
		return fmt.Errorf("%w: unknown calculation method %q", apperrors.ErrConfigValidation, rs.CalculationMethod)
	}

	if rs.CalculationMode == domain.TaxModeComponentBased {
		return fmt.Errorf("%w: %s uses component_based mode with progressive brackets", apperrors.ErrInvalidCalculationMode, rs.Code)
	}
	if len(rs.Brackets) == 0 {
		return fmt.Errorf("%w: %s has no brackets", apperrors.ErrConfigValidation, rs.Code)
	}
	if !rs.Brackets[0].IncomeMin.IsZero() {
		return fmt.Errorf("%w: %s first bracket must start at 0", apperrors.ErrConfigValidation, rs.Code)
	}

	accumulated := decimal.Zero
	for i, b := range rs.Brackets {
		if b.RatePercentage.IsNegative() {
			return fmt.Errorf("%w: %s bracket %d has a negative rate", apperrors.ErrConfigValidation, rs.Code, i)
		}
		if i > 0 {
			prev := rs.Brackets[i-1]
			if prev.IncomeMax == nil || !prev.IncomeMax.Equal(b.IncomeMin) {
				return fmt.Errorf("%w: %s bracket %d does not start where bracket %d ends", apperrors.ErrConfigValidation, rs.Code, i, i-1)
			}
		}
		if b.IncomeMax != nil && !b.IncomeMax.GreaterThan(b.IncomeMin) {
			return fmt.Errorf("%w: %s bracket %d is empty", apperrors.ErrConfigValidation, rs.Code, i)
		}
		if !b.FixedAmount.IsZero() && !b.FixedAmount.Equal(domain.RoundMoney(accumulated)) {
			return fmt.Errorf("%w: %s bracket %d fixed amount %s does not match tax below it (%s)",
				apperrors.ErrConfigValidation, rs.Code, i, b.FixedAmount, domain.RoundMoney(accumulated))
		}
		if b.IncomeMax != nil {
			accumulated = accumulated.Add(b.IncomeMax.Sub(b.IncomeMin).Mul(b.RatePercentage).Div(hundred))
		}
	}
	if rs.Brackets[len(rs.Brackets)-1].IncomeMax != nil {
		return fmt.Errorf("%w: %s top bracket must be open ended", apperrors.ErrConfigValidation, rs.Code)
	}
	return nil
}

// ComputeTax returns the tax on amount, rounded to cents. Bracket rule sets
// walk their bands marginally and the open top band absorbs the remainder.
// Non-positive income owes nothing.
func ComputeTax(amount decimal.Decimal, rs *domain.TaxRuleSet) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}
	if rs.CalculationMethod == domain.TaxMethodFlat {
		return domain.RoundMoney(amount.Mul(rs.FlatRate).Div(hundred))
	}

	for i := len(rs.Brackets) - 1; i >= 0; i-- {
		b := rs.Brackets[i]
		if amount.LessThan(b.IncomeMin) {
			continue
		}
		// Tax below this bracket, either the declared quick-calc base or the
		// sum over lower bands when no base is declared.
		base := b.FixedAmount
		if base.IsZero() {
			base = taxBelow(rs.Brackets[:i])
		}
		portion := amount.Sub(b.IncomeMin)
		if b.IncomeMax != nil && amount.GreaterThan(*b.IncomeMax) {
			portion = b.IncomeMax.Sub(b.IncomeMin)
		}
		return domain.RoundMoney(base.Add(portion.Mul(b.RatePercentage).Div(hundred)))
	}
	return decimal.Zero
}

func taxBelow(brackets []domain.TaxBracket) decimal.Decimal {
	total := decimal.Zero
	for _, b := range brackets {
		if b.IncomeMax == nil {
			break
		}
		total = total.Add(b.IncomeMax.Sub(b.IncomeMin).Mul(b.RatePercentage).Div(hundred))
	}
	return total
}

// Calculate applies the rule set's calculation mode to the taxable inputs of one
// paycheck and returns the tax line.
func Calculate(rs *domain.TaxRuleSet, inputs []domain.TaxableInput) (domain.TaxResult, error) {
	total := decimal.Zero
	for _, in := range inputs {
		total = total.Add(in.Amount)
	}
	result := domain.TaxResult{TaxableTotal: total}

	switch rs.CalculationMode {
	case domain.TaxModeAggregated:
		result.Total = ComputeTax(total, rs)
		return result, nil

	case domain.TaxModeComponentBased:
		if rs.CalculationMethod != domain.TaxMethodFlat {
			return result, fmt.Errorf("%w: %s applies component_based mode to progressive brackets", apperrors.ErrInvalidCalculationMode, rs.Code)
		}
		result.Total = decimal.Zero
		for _, in := range inputs {
			tax := ComputeTax(in.Amount, rs)
			result.Total = result.Total.Add(tax)
			result.Breakdown = append(result.Breakdown, domain.TaxAttribution{
				SourceCode:    in.SourceCode,
				TaxableAmount: in.Amount,
				TaxAmount:     tax,
			})
		}
		return result, nil

	case domain.TaxModeProportionalDistribution:
		result.Total = ComputeTax(total, rs)
		result.Breakdown = Distribute(result.Total, inputs)
		return result, nil
	}
	return result, fmt.Errorf("%w: unknown calculation mode %q", apperrors.ErrInvalidCalculationMode, rs.CalculationMode)
}

// Distribute splits tax across inputs by their share of the positive taxable
// total. Shares are rounded to cents and the rounding residue goes to the
// largest contributor (the first one on ties), so the parts always sum to tax.
func Distribute(tax decimal.Decimal, inputs []domain.TaxableInput) []domain.TaxAttribution {
	positive := decimal.Zero
	largest := -1
	for i, in := range inputs {
		if !in.Amount.IsPositive() {
			continue
		}
		positive = positive.Add(in.Amount)
		if largest < 0 || in.Amount.GreaterThan(inputs[largest].Amount) {
			largest = i
		}
	}

	out := make([]domain.TaxAttribution, len(inputs))
	distributed := decimal.Zero
	for i, in := range inputs {
		out[i] = domain.TaxAttribution{SourceCode: in.SourceCode, TaxableAmount: in.Amount, TaxAmount: decimal.Zero}
		if largest < 0 || !in.Amount.IsPositive() {
			continue
		}
		share := domain.RoundMoney(tax.Mul(in.Amount).Div(positive))
		out[i].TaxAmount = share
		distributed = distributed.Add(share)
	}
	if largest >= 0 {
		out[largest].TaxAmount = out[largest].TaxAmount.Add(tax.Sub(distributed))
	}
	return out
}
