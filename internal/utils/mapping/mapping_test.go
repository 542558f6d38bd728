package mapping

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SscSPs/payroll_engine/internal/core/domain"
)

func TestComponentMappingKeepsConfigAndBounds(t *testing.T) {
	maxPct := decimal.NewFromInt(20)
	taxID := "trs-1"
	in := domain.PayStructureComponent{
		ComponentID:     "c-1",
		TemplateID:      "t-1",
		Code:            "PENSION",
		Name:            "Pension",
		Category:        domain.CategoryDeduction,
		CalculationType: domain.CalcPercentage,
		DependsOn:       []string{"BASE"},
		AffectsNet:      true,
		TaxRuleSetID:    &taxID,
		Config:          domain.PercentageConfig{Percentage: decimal.NewFromInt(5), Basis: []string{"BASE"}},
		Bounds:          domain.ComponentBounds{MaxPercentage: &maxPct},
	}

	row, err := ToModelComponent(in)
	require.NoError(t, err)
	assert.Equal(t, "percentage", row.CalculationType)
	assert.JSONEq(t, `{"maxPercentage":"20"}`, string(row.Bounds))

	out, err := ToDomainComponent(row)
	require.NoError(t, err)
	cfg, ok := out.Config.(domain.PercentageConfig)
	require.True(t, ok)
	assert.True(t, cfg.Percentage.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, []string{"BASE"}, cfg.Basis)
	require.NotNil(t, out.Bounds.MaxPercentage)
	assert.True(t, out.Bounds.MaxPercentage.Equal(maxPct))
	assert.Equal(t, "trs-1", *out.TaxRuleSetID)
}

func TestToModelComponentDefaultsDependsOn(t *testing.T) {
	row, err := ToModelComponent(domain.PayStructureComponent{
		Code:            "BASE",
		CalculationType: domain.CalcFixed,
		Config:          domain.FixedConfig{Amount: decimal.NewFromInt(100)},
	})
	require.NoError(t, err)
	assert.NotNil(t, row.DependsOn)
	assert.Empty(t, row.DependsOn)
}

func TestRunComponentMappingKeepsTaxBreakdown(t *testing.T) {
	line := domain.PayrollRunComponent{
		RunComponentID: "l-1",
		ComponentCode:  "INCOME_TAX",
		Category:       domain.CategoryTax,
		Amount:         decimal.RequireFromString("120.50"),
		TaxBreakdown: []domain.TaxAttribution{
			{SourceCode: "BASE", TaxableAmount: decimal.NewFromInt(1000), TaxAmount: decimal.RequireFromString("120.50")},
		},
	}
	row, err := ToModelRunComponent(line)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(row.ComponentConfigSnapshot))

	back, err := ToDomainRunComponent(row)
	require.NoError(t, err)
	require.Len(t, back.TaxBreakdown, 1)
	assert.Equal(t, "BASE", back.TaxBreakdown[0].SourceCode)
	assert.True(t, back.Amount.Equal(line.Amount))
}

func TestTemplateMappingKeepsDateRange(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tpl := domain.PayStructureTemplate{
		TemplateID:   "t-1",
		Code:         "STD",
		Version:      "v1.0.0",
		Status:       domain.TemplateActive,
		DateRange:    domain.DateRange{From: from},
		BaseCurrency: "EUR",
		PayFrequency: domain.FrequencyMonthly,
	}
	back := ToDomainTemplate(ToModelTemplate(tpl))
	assert.Equal(t, from, back.From)
	assert.Nil(t, back.To)
	assert.Equal(t, domain.FrequencyMonthly, back.PayFrequency)
}
