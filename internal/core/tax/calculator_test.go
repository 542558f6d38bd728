package tax

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SscSPs/payroll_engine/internal/apperrors"
	"github.com/SscSPs/payroll_engine/internal/core/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func progressive(mode domain.TaxCalculationMode) *domain.TaxRuleSet {
	return &domain.TaxRuleSet{
		Code:              "NL-BOX1",
		CalculationMethod: domain.TaxMethodBracket,
		CalculationMode:   mode,
		Brackets: []domain.TaxBracket{
			{IncomeMin: d("0"), IncomeMax: dp("3500"), RatePercentage: d("8")},
			{IncomeMin: d("3500"), IncomeMax: dp("7000"), RatePercentage: d("18"), FixedAmount: d("280")},
			{IncomeMin: d("7000"), IncomeMax: dp("10500"), RatePercentage: d("28"), FixedAmount: d("910")},
			{IncomeMin: d("10500"), RatePercentage: d("38"), FixedAmount: d("1890")},
		},
	}
}

func TestComputeTax(t *testing.T) {
	rs := progressive(domain.TaxModeAggregated)
	require.NoError(t, ValidateRuleSet(rs))

	tests := []struct{ income, want string }{
		{"5000", "550"},
		{"0", "0"},
		{"-10", "0"},
		{"3500", "280"},
		{"7000", "910"},
		{"10500", "1890"},
		{"20000", "5500"},
		{"1234.56", "98.76"},
	}
	for _, tt := range tests {
		t.Run(tt.income, func(t *testing.T) {
			got := ComputeTax(d(tt.income), rs)
			assert.True(t, d(tt.want).Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestComputeTax_WithoutQuickCalcBase(t *testing.T) {
	rs := progressive(domain.TaxModeAggregated)
	for i := range rs.Brackets {
		rs.Brackets[i].FixedAmount = decimal.Zero
	}
	assert.Equal(t, "550", ComputeTax(d("5000"), rs).String())
	assert.Equal(t, "5500", ComputeTax(d("20000"), rs).String())
}

func TestComputeTax_ContinuousAndNonDecreasing(t *testing.T) {
	rs := progressive(domain.TaxModeAggregated)
	cent := d("0.01")

	prev := ComputeTax(decimal.Zero, rs)
	for income := decimal.Zero; income.LessThanOrEqual(d("12000")); income = income.Add(d("0.5")) {
		got := ComputeTax(income, rs)
		assert.True(t, got.GreaterThanOrEqual(prev), "tax decreased at %s", income)
		prev = got
	}

	for _, b := range rs.Brackets[1:] {
		below := ComputeTax(b.IncomeMin.Sub(cent), rs)
		at := ComputeTax(b.IncomeMin, rs)
		// one cent of income can move tax by at most one cent at the top rate
		assert.True(t, at.Sub(below).LessThanOrEqual(cent), "cliff at %s", b.IncomeMin)
	}
}

func TestValidateRuleSet(t *testing.T) {
	t.Run("gap", func(t *testing.T) {
		rs := progressive(domain.TaxModeAggregated)
		rs.Brackets[1].IncomeMin = d("3600")
		assert.ErrorIs(t, ValidateRuleSet(rs), apperrors.ErrConfigValidation)
	})
	t.Run("closed top bracket", func(t *testing.T) {
		rs := progressive(domain.TaxModeAggregated)
		rs.Brackets[3].IncomeMax = dp("99999")
		assert.ErrorIs(t, ValidateRuleSet(rs), apperrors.ErrConfigValidation)
	})
	t.Run("cliff fixed amount", func(t *testing.T) {
		rs := progressive(domain.TaxModeAggregated)
		rs.Brackets[2].FixedAmount = d("1000")
		assert.ErrorIs(t, ValidateRuleSet(rs), apperrors.ErrConfigValidation)
	})
	t.Run("component based on brackets", func(t *testing.T) {
		rs := progressive(domain.TaxModeComponentBased)
		assert.ErrorIs(t, ValidateRuleSet(rs), apperrors.ErrInvalidCalculationMode)
	})
	t.Run("flat component based", func(t *testing.T) {
		rs := &domain.TaxRuleSet{Code: "SOC", CalculationMethod: domain.TaxMethodFlat, CalculationMode: domain.TaxModeComponentBased, FlatRate: d("7.65")}
		assert.NoError(t, ValidateRuleSet(rs))
	})
}

func TestCalculate_Modes(t *testing.T) {
	inputs := []domain.TaxableInput{
		{SourceCode: "BASIC", Amount: d("4000")},
		{SourceCode: "BONUS", Amount: d("1000")},
	}

	t.Run("aggregated has no breakdown", func(t *testing.T) {
		res, err := Calculate(progressive(domain.TaxModeAggregated), inputs)
		require.NoError(t, err)
		assert.Equal(t, "550", res.Total.String())
		assert.Equal(t, "5000", res.TaxableTotal.String())
		assert.Empty(t, res.Breakdown)
	})

	t.Run("proportional", func(t *testing.T) {
		res, err := Calculate(progressive(domain.TaxModeProportionalDistribution), inputs)
		require.NoError(t, err)
		assert.Equal(t, "550", res.Total.String())
		require.Len(t, res.Breakdown, 2)
		assert.Equal(t, "440", res.Breakdown[0].TaxAmount.String())
		assert.Equal(t, "110", res.Breakdown[1].TaxAmount.String())
	})

	t.Run("component based rejects brackets", func(t *testing.T) {
		_, err := Calculate(progressive(domain.TaxModeComponentBased), inputs)
		assert.ErrorIs(t, err, apperrors.ErrInvalidCalculationMode)
	})

	t.Run("component based flat", func(t *testing.T) {
		rs := &domain.TaxRuleSet{CalculationMethod: domain.TaxMethodFlat, CalculationMode: domain.TaxModeComponentBased, FlatRate: d("10")}
		res, err := Calculate(rs, inputs)
		require.NoError(t, err)
		assert.Equal(t, "500", res.Total.String())
		assert.Equal(t, "400", res.Breakdown[0].TaxAmount.String())
		assert.Equal(t, "100", res.Breakdown[1].TaxAmount.String())
	})
}

func TestDistribute_SumsExactlyToAggregate(t *testing.T) {
	rs := progressive(domain.TaxModeProportionalDistribution)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 500; i++ {
		n := 1 + rng.Intn(6)
		inputs := make([]domain.TaxableInput, n)
		for j := range inputs {
			inputs[j] = domain.TaxableInput{
				SourceCode: string(rune('A' + j)),
				Amount:     decimal.New(rng.Int63n(900000), -2),
			}
		}
		res, err := Calculate(rs, inputs)
		require.NoError(t, err)

		sum := decimal.Zero
		for _, a := range res.Breakdown {
			sum = sum.Add(a.TaxAmount)
		}
		require.True(t, sum.Equal(res.Total), "case %d: parts %s != total %s", i, sum, res.Total)
	}
}

func TestDistribute_ResidueToLargest(t *testing.T) {
	parts := Distribute(d("100"), []domain.TaxableInput{
		{SourceCode: "A", Amount: d("1")},
		{SourceCode: "B", Amount: d("1")},
		{SourceCode: "C", Amount: d("1")},
	})
	assert.Equal(t, "33.34", parts[0].TaxAmount.String())
	assert.Equal(t, "33.33", parts[1].TaxAmount.String())
	assert.Equal(t, "33.33", parts[2].TaxAmount.String())
}

func TestDistribute_IgnoresNonPositive(t *testing.T) {
	parts := Distribute(d("50"), []domain.TaxableInput{
		{SourceCode: "BASIC", Amount: d("500")},
		{SourceCode: "LOSS", Amount: d("-100")},
	})
	assert.Equal(t, "50", parts[0].TaxAmount.String())
	assert.True(t, parts[1].TaxAmount.IsZero())
}
