package services_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/SscSPs/payroll_engine/internal/apperrors"
	"github.com/SscSPs/payroll_engine/internal/core/domain"
	portssvc "github.com/SscSPs/payroll_engine/internal/core/ports/services"
	"github.com/SscSPs/payroll_engine/internal/core/services"
)

func formulaComponent(code, expr string, seq int, deps ...string) domain.PayStructureComponent {
	cfg, err := domain.NewFormulaConfig(expr)
	if err != nil {
		panic(err)
	}
	return domain.PayStructureComponent{
		Code:            code,
		Name:            code,
		Category:        domain.CategoryEarning,
		CalculationType: domain.CalcFormula,
		SequenceOrder:   seq,
		DependsOn:       deps,
		IsTaxable:       true,
		AffectsGross:    true,
		AffectsNet:      true,
		Config:          cfg,
	}
}

func percentageComponent(code string, pct string, seq int, basis ...string) domain.PayStructureComponent {
	return domain.PayStructureComponent{
		Code:            code,
		Name:            code,
		Category:        domain.CategoryDeduction,
		CalculationType: domain.CalcPercentage,
		SequenceOrder:   seq,
		DependsOn:       basis,
		AffectsNet:      true,
		Config:          domain.PercentageConfig{Percentage: d(pct), Basis: basis},
	}
}

func taxComponent(code, ruleSetID string, seq int, deps ...string) domain.PayStructureComponent {
	return domain.PayStructureComponent{
		Code:            code,
		Name:            code,
		Category:        domain.CategoryTax,
		CalculationType: domain.CalcExternal,
		SequenceOrder:   seq,
		DependsOn:       deps,
		AffectsNet:      true,
		TaxRuleSetID:    sp(ruleSetID),
		Config:          domain.TaxConfig{},
	}
}

func codes(components []domain.PayStructureComponent) []string {
	out := make([]string, 0, len(components))
	for _, c := range components {
		out = append(out, c.Code)
	}
	return out
}

func TestOrderComponents(t *testing.T) {
	components := []domain.PayStructureComponent{
		percentageComponent("PENSION", "5", 10, "BASE"),
		formulaComponent("BONUS", "BASE * 0.1", 1, "BASE"),
		formulaComponent("BASE", "base_salary", 5),
		formulaComponent("ALLOWANCE", "100", 5),
	}

	ordered, err := services.OrderComponents(components, nil)
	require.NoError(t, err)
	// BONUS has the lowest sequence but must wait for BASE; ties break on code
	assert.Equal(t, []string{"ALLOWANCE", "BASE", "BONUS", "PENSION"}, codes(ordered))

	ordered, err = services.OrderComponents(components, map[string]bool{"BASE": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"BONUS", "ALLOWANCE", "PENSION"}, codes(ordered))
}

func TestOrderComponents_Errors(t *testing.T) {
	tests := []struct {
		name       string
		components []domain.PayStructureComponent
		want       error
		message    string
	}{
		{
			name: "cycle",
			components: []domain.PayStructureComponent{
				formulaComponent("A", "B + 1", 1, "B"),
				formulaComponent("B", "C + 1", 2, "C"),
				formulaComponent("C", "A + 1", 3, "A"),
				formulaComponent("D", "1", 4),
			},
			want:    apperrors.ErrDependencyCycle,
			message: "A -> B -> C -> A",
		},
		{
			name: "self dependency",
			components: []domain.PayStructureComponent{
				formulaComponent("A", "A + 1", 1, "A"),
			},
			want:    apperrors.ErrDependencyCycle,
			message: "A -> A",
		},
		{
			name: "unknown dependency",
			components: []domain.PayStructureComponent{
				formulaComponent("A", "1", 1, "MISSING"),
			},
			want:    apperrors.ErrConfigValidation,
			message: "MISSING",
		},
		{
			name: "duplicate code",
			components: []domain.PayStructureComponent{
				formulaComponent("A", "1", 1),
				formulaComponent("A", "2", 2),
			},
			want:    apperrors.ErrConfigValidation,
			message: "duplicate",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := services.OrderComponents(tt.components, nil)
			require.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestCanonicalVersion(t *testing.T) {
	assert.Equal(t, "v1.2.0", services.CanonicalVersion("1.2.0"))
	assert.Equal(t, "v1.2.0", services.CanonicalVersion("v1.2.0"))
	assert.Equal(t, "", services.CanonicalVersion(""))
}

type TemplateServiceTestSuite struct {
	suite.Suite
	repo     *memTemplates
	service  portssvc.TemplateSvcFacade
	resolver portssvc.TemplateResolverSvc
}

func (suite *TemplateServiceTestSuite) SetupTest() {
	suite.repo = newMemTemplates()
	suite.Require().NoError(suite.repo.SaveTaxRuleSet(context.Background(), domain.TaxRuleSet{
		TaxRuleSetID:      "tax-flat",
		OrganizationID:    "org-1",
		Code:              "FLAT10",
		CalculationMethod: domain.TaxMethodFlat,
		CalculationMode:   domain.TaxModeAggregated,
		FlatRate:          d("10"),
		DateRange:         domain.DateRange{From: date(2024, 1, 1)},
	}))
	suite.service = services.NewTemplateService(suite.repo, suite.repo, suite.repo)
	suite.resolver = services.NewTemplateResolver(suite.repo, suite.repo)
}

func (suite *TemplateServiceTestSuite) draft(version string, components ...domain.PayStructureComponent) *domain.PayStructureTemplate {
	t, err := suite.service.CreateDraft(context.Background(), domain.PayStructureTemplate{
		OrganizationID: "org-1",
		Code:           "SALARIED",
		Name:           "Salaried staff",
		Version:        version,
		DateRange:      domain.DateRange{From: date(2024, 1, 1)},
		BaseCurrency:   "USD",
		PayFrequency:   domain.FrequencyMonthly,
		Components:     components,
	}, "author")
	suite.Require().NoError(err)
	return t
}

func (suite *TemplateServiceTestSuite) standardComponents() []domain.PayStructureComponent {
	return []domain.PayStructureComponent{
		formulaComponent("BASE", "base_salary", 1),
		percentageComponent("PENSION", "5", 10, "BASE"),
		taxComponent("INCOME_TAX", "tax-flat", 20, "BASE"),
	}
}

func (suite *TemplateServiceTestSuite) TestCreateDraft() {
	t := suite.draft("1.0.0", suite.standardComponents()...)
	suite.Equal(domain.TemplateDraft, t.Status)
	suite.NotEmpty(t.TemplateID)
	suite.False(t.IsDefault)
	for _, c := range t.Components {
		suite.NotEmpty(c.ComponentID)
		suite.Equal(t.TemplateID, c.TemplateID)
	}
}

func (suite *TemplateServiceTestSuite) TestCreateDraft_Validation() {
	base := domain.PayStructureTemplate{
		OrganizationID: "org-1",
		Code:           "X",
		Version:        "1.0.0",
		BaseCurrency:   "USD",
		PayFrequency:   domain.FrequencyMonthly,
	}

	badVersion := base
	badVersion.Version = "one"
	_, err := suite.service.CreateDraft(context.Background(), badVersion, "author")
	suite.ErrorIs(err, apperrors.ErrValidation)

	badCurrency := base
	badCurrency.BaseCurrency = "usd"
	_, err = suite.service.CreateDraft(context.Background(), badCurrency, "author")
	suite.ErrorIs(err, apperrors.ErrValidation)

	badCode := base
	badCode.Components = []domain.PayStructureComponent{formulaComponent("not-an-identifier", "1", 1)}
	_, err = suite.service.CreateDraft(context.Background(), badCode, "author")
	suite.ErrorIs(err, apperrors.ErrValidation)
}

func (suite *TemplateServiceTestSuite) TestPublish_MakesTemplateImmutable() {
	t := suite.draft("1.0.0", suite.standardComponents()...)

	published, err := suite.service.Publish(context.Background(), "org-1", t.TemplateID, true, "publisher")
	suite.Require().NoError(err)
	suite.Equal(domain.TemplateActive, published.Status)
	suite.True(published.IsDefault)
	suite.NotNil(published.PublishedAt)

	err = suite.service.AddComponent(context.Background(), "org-1", t.TemplateID, formulaComponent("BONUS", "100", 5))
	suite.ErrorIs(err, apperrors.ErrConflict)

	_, err = suite.service.Publish(context.Background(), "org-1", t.TemplateID, false, "publisher")
	suite.ErrorIs(err, apperrors.ErrInvalidTransition)
}

func (suite *TemplateServiceTestSuite) TestPublish_RejectsInvalidTemplates() {
	tests := []struct {
		name       string
		components []domain.PayStructureComponent
		want       error
	}{
		{"no components", nil, apperrors.ErrConfigValidation},
		{"cycle", []domain.PayStructureComponent{
			formulaComponent("A", "B", 1, "B"),
			formulaComponent("B", "A", 2, "A"),
		}, apperrors.ErrDependencyCycle},
		{"undeclared reference", []domain.PayStructureComponent{
			formulaComponent("BASE", "base_salary", 1),
			formulaComponent("BONUS", "BASE * 0.1", 2),
		}, apperrors.ErrConfigValidation},
		{"missing tax rule set", []domain.PayStructureComponent{
			formulaComponent("BASE", "base_salary", 1),
			taxComponent("INCOME_TAX", "tax-missing", 20, "BASE"),
		}, apperrors.ErrConfigValidation},
		{"config does not match type", []domain.PayStructureComponent{{
			Code:            "BASE",
			Name:            "Base",
			Category:        domain.CategoryEarning,
			CalculationType: domain.CalcFixed,
			Config:          domain.PercentageConfig{Percentage: d("5"), Basis: []string{"gross_pay"}},
		}}, apperrors.ErrConfigValidation},
	}
	for i, tt := range tests {
		suite.Run(tt.name, func() {
			t := suite.draft("1.0."+string(rune('0'+i)), tt.components...)
			_, err := suite.service.Publish(context.Background(), "org-1", t.TemplateID, false, "publisher")
			suite.ErrorIs(err, tt.want)
			stored, findErr := suite.service.GetTemplate(context.Background(), "org-1", t.TemplateID)
			suite.Require().NoError(findErr)
			suite.Equal(domain.TemplateDraft, stored.Status)
		})
	}
}

func (suite *TemplateServiceTestSuite) TestPublish_ProgressiveComponentBasedIsRejected() {
	suite.Require().NoError(suite.repo.SaveTaxRuleSet(context.Background(), domain.TaxRuleSet{
		TaxRuleSetID:      "tax-bad",
		OrganizationID:    "org-1",
		Code:              "BAD",
		CalculationMethod: domain.TaxMethodBracket,
		CalculationMode:   domain.TaxModeComponentBased,
		Brackets:          []domain.TaxBracket{{IncomeMin: d("0"), RatePercentage: d("10")}},
	}))
	t := suite.draft("2.0.0",
		formulaComponent("BASE", "base_salary", 1),
		taxComponent("INCOME_TAX", "tax-bad", 20, "BASE"))

	_, err := suite.service.Publish(context.Background(), "org-1", t.TemplateID, false, "publisher")
	suite.ErrorIs(err, apperrors.ErrInvalidCalculationMode)
}

func (suite *TemplateServiceTestSuite) TestLifecycle() {
	t := suite.draft("1.0.0", suite.standardComponents()...)

	_, err := suite.service.Archive(context.Background(), "org-1", t.TemplateID, "admin")
	suite.ErrorIs(err, apperrors.ErrInvalidTransition)

	_, err = suite.service.Publish(context.Background(), "org-1", t.TemplateID, true, "admin")
	suite.Require().NoError(err)
	deprecated, err := suite.service.Deprecate(context.Background(), "org-1", t.TemplateID, "admin")
	suite.Require().NoError(err)
	suite.Equal(domain.TemplateDeprecated, deprecated.Status)
	suite.False(deprecated.IsDefault)

	archived, err := suite.service.Archive(context.Background(), "org-1", t.TemplateID, "admin")
	suite.Require().NoError(err)
	suite.Equal(domain.TemplateArchived, archived.Status)
}

func (suite *TemplateServiceTestSuite) TestAssignWorker_ValidatesOverrides() {
	t := suite.draft("1.0.0", suite.standardComponents()...)
	worker := domain.WorkerPayStructure{
		OrganizationID: "org-1",
		EmployeeID:     "emp-1",
		TemplateID:     t.TemplateID,
		DateRange:      domain.DateRange{From: date(2024, 1, 1)},
	}

	_, err := suite.service.AssignWorker(context.Background(), worker, "admin")
	suite.ErrorIs(err, apperrors.ErrValidation, "drafts cannot be assigned")

	_, err = suite.service.Publish(context.Background(), "org-1", t.TemplateID, false, "admin")
	suite.Require().NoError(err)

	unknown := worker
	unknown.Overrides = []domain.ComponentOverride{{ComponentCode: "NOPE", Percentage: dp("3"), Reason: "x"}}
	_, err = suite.service.AssignWorker(context.Background(), unknown, "admin")
	suite.ErrorIs(err, apperrors.ErrValidation)

	noReason := worker
	noReason.Overrides = []domain.ComponentOverride{{ComponentCode: "PENSION", Percentage: dp("3")}}
	_, err = suite.service.AssignWorker(context.Background(), noReason, "admin")
	suite.ErrorIs(err, apperrors.ErrValidation)

	wrongKind := worker
	wrongKind.Overrides = []domain.ComponentOverride{{ComponentCode: "PENSION", Amount: dp("30"), Reason: "flat"}}
	_, err = suite.service.AssignWorker(context.Background(), wrongKind, "admin")
	suite.ErrorIs(err, apperrors.ErrConfigValidation)

	good := worker
	good.Overrides = []domain.ComponentOverride{{ComponentCode: "PENSION", Percentage: dp("8"), Reason: "opted up"}}
	saved, err := suite.service.AssignWorker(context.Background(), good, "admin")
	suite.Require().NoError(err)
	suite.NotEmpty(saved.Overrides[0].OverrideID)

	_, err = suite.service.AssignWorker(context.Background(), good, "admin")
	suite.ErrorIs(err, apperrors.ErrConflict, "overlapping assignment")
}

func (suite *TemplateServiceTestSuite) TestResolve_WorkerOverrides() {
	t := suite.draft("1.0.0", append(suite.standardComponents(), formulaComponent("BONUS", "BASE * 0.1", 5, "BASE"))...)
	_, err := suite.service.Publish(context.Background(), "org-1", t.TemplateID, false, "admin")
	suite.Require().NoError(err)
	_, err = suite.service.AssignWorker(context.Background(), domain.WorkerPayStructure{
		OrganizationID:  "org-1",
		EmployeeID:      "emp-1",
		TemplateID:      t.TemplateID,
		DateRange:       domain.DateRange{From: date(2024, 1, 1)},
		PaymentCurrency: sp("EUR"),
		Overrides: []domain.ComponentOverride{
			{ComponentCode: "PENSION", Percentage: dp("8"), Reason: "opted up"},
			{ComponentCode: "BONUS", Disabled: true, Reason: "not eligible"},
		},
	}, "admin")
	suite.Require().NoError(err)

	resolved, err := suite.resolver.Resolve(context.Background(), "org-1", "emp-1", date(2024, 1, 31))
	suite.Require().NoError(err)
	suite.Equal([]string{"BASE", "PENSION", "INCOME_TAX"}, codes(resolved.Components))
	suite.True(resolved.Disabled["BONUS"])
	suite.Equal("EUR", resolved.PaymentCurrency())
	suite.Equal(domain.FrequencyMonthly, resolved.PayFrequency())

	pension := resolved.Components[1].Config.(domain.PercentageConfig)
	suite.True(d("8").Equal(pension.Percentage))

	// the template itself is untouched
	stored, err := suite.service.GetTemplate(context.Background(), "org-1", t.TemplateID)
	suite.Require().NoError(err)
	c, _ := stored.Component("PENSION")
	suite.True(d("5").Equal(c.Config.(domain.PercentageConfig).Percentage))
}

func (suite *TemplateServiceTestSuite) TestResolve_PicksHighestDefaultVersion() {
	for _, v := range []string{"1.9.0", "1.10.0"} {
		t := suite.draft(v, suite.standardComponents()...)
		stored := suite.repo.templates[t.TemplateID]
		stored.Status = domain.TemplateActive
		stored.IsDefault = true
		suite.repo.put(stored)
	}

	resolved, err := suite.resolver.Resolve(context.Background(), "org-1", "emp-9", date(2024, 1, 31))
	suite.Require().NoError(err)
	suite.Equal("1.10.0", resolved.Template.Version)
	suite.Nil(resolved.WorkerStructure)
	suite.Equal("USD", resolved.PaymentCurrency())
}

func (suite *TemplateServiceTestSuite) TestResolve_NoApplicableStructure() {
	_, err := suite.resolver.Resolve(context.Background(), "org-1", "emp-9", date(2024, 1, 31))
	suite.ErrorIs(err, apperrors.ErrNoApplicableStructure)

	t := suite.draft("1.0.0", suite.standardComponents()...)
	suite.Require().NoError(suite.repo.SaveWorkerStructure(context.Background(), domain.WorkerPayStructure{
		OrganizationID: "org-1",
		EmployeeID:     "emp-1",
		TemplateID:     t.TemplateID,
		DateRange:      domain.DateRange{From: date(2024, 1, 1)},
	}))
	_, err = suite.resolver.Resolve(context.Background(), "org-1", "emp-1", date(2024, 1, 31))
	suite.ErrorIs(err, apperrors.ErrNoApplicableStructure, "draft templates never resolve")
}

func (suite *TemplateServiceTestSuite) TestResolve_CachedTemplateStaysInItsOrganization() {
	t := suite.draft("1.0.0", suite.standardComponents()...)
	_, err := suite.service.Publish(context.Background(), "org-1", t.TemplateID, false, "admin")
	suite.Require().NoError(err)
	suite.Require().NoError(suite.repo.SaveWorkerStructure(context.Background(), domain.WorkerPayStructure{
		WorkerStructureID: "ws-1",
		OrganizationID:    "org-1",
		EmployeeID:        "emp-1",
		TemplateID:        t.TemplateID,
		DateRange:         domain.DateRange{From: date(2024, 1, 1)},
	}))

	// caches the published template for org-1
	resolved, err := suite.resolver.Resolve(context.Background(), "org-1", "emp-1", date(2024, 1, 31))
	suite.Require().NoError(err)
	suite.Equal(t.TemplateID, resolved.Template.TemplateID)

	suite.Require().NoError(suite.repo.SaveWorkerStructure(context.Background(), domain.WorkerPayStructure{
		WorkerStructureID: "ws-other",
		OrganizationID:    "org-2",
		EmployeeID:        "emp-7",
		TemplateID:        t.TemplateID,
		DateRange:         domain.DateRange{From: date(2024, 1, 1)},
	}))
	_, err = suite.resolver.Resolve(context.Background(), "org-2", "emp-7", date(2024, 1, 31))
	suite.ErrorIs(err, apperrors.ErrNoApplicableStructure)
}

func TestTemplateServiceTestSuite(t *testing.T) {
	suite.Run(t, new(TemplateServiceTestSuite))
}
