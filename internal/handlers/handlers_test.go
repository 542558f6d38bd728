package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/SscSPs/payroll_engine/internal/apperrors"
	"github.com/SscSPs/payroll_engine/internal/core/domain"
	portssvc "github.com/SscSPs/payroll_engine/internal/core/ports/services"
	"github.com/SscSPs/payroll_engine/internal/dto"
	"github.com/SscSPs/payroll_engine/internal/handlers"
	"github.com/SscSPs/payroll_engine/internal/middleware"
)

// --- Mock PayrollRunService ---
type MockPayrollRunService struct {
	mock.Mock
}

func (m *MockPayrollRunService) GetRun(ctx context.Context, organizationID, runID string) (*domain.PayrollRun, error) {
	args := m.Called(ctx, organizationID, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PayrollRun), args.Error(1)
}
func (m *MockPayrollRunService) GetRunSummary(ctx context.Context, organizationID, runID string) (*domain.RunSummary, error) {
	args := m.Called(ctx, organizationID, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RunSummary), args.Error(1)
}
func (m *MockPayrollRunService) GetPaycheck(ctx context.Context, organizationID, runID, employeeID string) (*domain.Paycheck, error) {
	args := m.Called(ctx, organizationID, runID, employeeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Paycheck), args.Error(1)
}
func (m *MockPayrollRunService) CreateRun(ctx context.Context, organizationID string, req dto.CreatePayrollRunRequest, creatorID string) (*domain.PayrollRun, error) {
	args := m.Called(ctx, organizationID, req, creatorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PayrollRun), args.Error(1)
}
func (m *MockPayrollRunService) CalculateRun(ctx context.Context, organizationID, runID string, opts portssvc.CalculateOptions) (*domain.RunSummary, error) {
	args := m.Called(ctx, organizationID, runID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RunSummary), args.Error(1)
}
func (m *MockPayrollRunService) ResumeRun(ctx context.Context, organizationID, runID string) (*domain.RunSummary, error) {
	args := m.Called(ctx, organizationID, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RunSummary), args.Error(1)
}
func (m *MockPayrollRunService) ApproveRun(ctx context.Context, organizationID, runID, userID string) (*domain.PayrollRun, error) {
	return m.runResult(m.Called(ctx, organizationID, runID, userID))
}
func (m *MockPayrollRunService) StartProcessing(ctx context.Context, organizationID, runID string) (*domain.PayrollRun, error) {
	return m.runResult(m.Called(ctx, organizationID, runID))
}
func (m *MockPayrollRunService) MarkProcessed(ctx context.Context, organizationID, runID string) (*domain.PayrollRun, error) {
	return m.runResult(m.Called(ctx, organizationID, runID))
}
func (m *MockPayrollRunService) CancelRun(ctx context.Context, organizationID, runID, userID string) (*domain.PayrollRun, error) {
	return m.runResult(m.Called(ctx, organizationID, runID, userID))
}
func (m *MockPayrollRunService) runResult(args mock.Arguments) (*domain.PayrollRun, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PayrollRun), args.Error(1)
}

var _ portssvc.PayrollRunSvcFacade = (*MockPayrollRunService)(nil)

// --- Mock ApprovalService ---
type MockApprovalService struct {
	mock.Mock
}

func (m *MockApprovalService) GetRequest(ctx context.Context, organizationID, requestID string) (*domain.CurrencyApprovalRequest, error) {
	return m.requestResult(m.Called(ctx, organizationID, requestID))
}
func (m *MockApprovalService) RecordAction(ctx context.Context, organizationID, requestID, approverID string, req dto.ApprovalActionRequest) (*domain.CurrencyApprovalRequest, error) {
	return m.requestResult(m.Called(ctx, organizationID, requestID, approverID, req))
}
func (m *MockApprovalService) Cancel(ctx context.Context, organizationID, requestID, userID string) (*domain.CurrencyApprovalRequest, error) {
	return m.requestResult(m.Called(ctx, organizationID, requestID, userID))
}
func (m *MockApprovalService) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}
func (m *MockApprovalService) Check(ctx context.Context, op portssvc.GatedOperation) (*domain.CurrencyApprovalRequest, error) {
	return m.requestResult(m.Called(ctx, op))
}
func (m *MockApprovalService) requestResult(args mock.Arguments) (*domain.CurrencyApprovalRequest, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CurrencyApprovalRequest), args.Error(1)
}

var _ portssvc.ApprovalSvcFacade = (*MockApprovalService)(nil)

// --- Mock ExchangeRateService ---
type MockExchangeRateService struct {
	mock.Mock
}

func (m *MockExchangeRateService) GetExchangeRate(ctx context.Context, organizationID, fromCode, toCode string, asOf time.Time) (*domain.ExchangeRate, error) {
	args := m.Called(ctx, organizationID, fromCode, toCode, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExchangeRate), args.Error(1)
}
func (m *MockExchangeRateService) CreateExchangeRate(ctx context.Context, organizationID string, req dto.CreateExchangeRateRequest, creatorUserID string) (*domain.ExchangeRate, error) {
	args := m.Called(ctx, organizationID, req, creatorUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExchangeRate), args.Error(1)
}

var _ portssvc.ExchangeRateSvcFacade = (*MockExchangeRateService)(nil)

// --- Mock TemplateService ---
type MockTemplateService struct {
	mock.Mock
}

func (m *MockTemplateService) GetTemplate(ctx context.Context, organizationID, templateID string) (*domain.PayStructureTemplate, error) {
	return m.templateResult(m.Called(ctx, organizationID, templateID))
}
func (m *MockTemplateService) CreateDraft(ctx context.Context, template domain.PayStructureTemplate, creatorID string) (*domain.PayStructureTemplate, error) {
	return m.templateResult(m.Called(ctx, template, creatorID))
}
func (m *MockTemplateService) AddComponent(ctx context.Context, organizationID, templateID string, component domain.PayStructureComponent) error {
	return m.Called(ctx, organizationID, templateID, component).Error(0)
}
func (m *MockTemplateService) Publish(ctx context.Context, organizationID, templateID string, makeDefault bool, publisherID string) (*domain.PayStructureTemplate, error) {
	return m.templateResult(m.Called(ctx, organizationID, templateID, makeDefault, publisherID))
}
func (m *MockTemplateService) Deprecate(ctx context.Context, organizationID, templateID, userID string) (*domain.PayStructureTemplate, error) {
	return m.templateResult(m.Called(ctx, organizationID, templateID, userID))
}
func (m *MockTemplateService) Archive(ctx context.Context, organizationID, templateID, userID string) (*domain.PayStructureTemplate, error) {
	return m.templateResult(m.Called(ctx, organizationID, templateID, userID))
}
func (m *MockTemplateService) AssignWorker(ctx context.Context, structure domain.WorkerPayStructure, creatorID string) (*domain.WorkerPayStructure, error) {
	args := m.Called(ctx, structure, creatorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WorkerPayStructure), args.Error(1)
}
func (m *MockTemplateService) templateResult(args mock.Arguments) (*domain.PayStructureTemplate, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PayStructureTemplate), args.Error(1)
}

var _ portssvc.TemplateSvcFacade = (*MockTemplateService)(nil)

// --- Stub StatementRenderer ---
type stubRenderer struct {
	err error
}

func (s stubRenderer) Render(w io.Writer, _ *domain.PayrollRun, p *domain.Paycheck) error {
	if s.err != nil {
		return s.err
	}
	_, err := fmt.Fprintf(w, "%%PDF-1.3 statement for %s", p.EmployeeID)
	return err
}

// --- Test Suite ---
type HandlerTestSuite struct {
	suite.Suite
	router          *gin.Engine
	runService      *MockPayrollRunService
	approvalService *MockApprovalService
	rateService     *MockExchangeRateService
	templateService *MockTemplateService
	jwtSecret       string
	orgID           string
	userID          string
}

const testIssuer = "payroll-engine-test"

// generateTestToken creates a JWT scoped to the suite's organization.
func (suite *HandlerTestSuite) generateTestToken(userID string) string {
	claims := middleware.EngineClaims{
		OrganizationID: suite.orgID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(1 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(suite.jwtSecret))
	if err != nil {
		suite.FailNow("Failed to sign test token", err.Error())
	}
	return signed
}

func (suite *HandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	suite.router = gin.New()
	suite.jwtSecret = "test-secret-key-that-is-long-enough"
	suite.orgID = "org-" + uuid.NewString()
	suite.userID = uuid.NewString()

	suite.runService = new(MockPayrollRunService)
	suite.approvalService = new(MockApprovalService)
	suite.rateService = new(MockExchangeRateService)
	suite.templateService = new(MockTemplateService)

	v1 := suite.router.Group("/api/v1", middleware.AuthMiddleware(suite.jwtSecret, testIssuer))
	handlers.RegisterPayrollRunRoutes(v1, suite.runService, stubRenderer{})
	handlers.RegisterApprovalRoutes(v1, suite.approvalService)
	handlers.RegisterExchangeRateRoutes(v1, suite.rateService)
	handlers.RegisterTemplateRoutes(v1, suite.templateService)
}

func (suite *HandlerTestSuite) TearDownTest() {
	suite.runService.AssertExpectations(suite.T())
	suite.approvalService.AssertExpectations(suite.T())
	suite.rateService.AssertExpectations(suite.T())
	suite.templateService.AssertExpectations(suite.T())
}

func (suite *HandlerTestSuite) do(method, url string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		suite.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req, _ := http.NewRequest(method, url, reader)
	req.Header.Set("Authorization", "Bearer "+suite.generateTestToken(suite.userID))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *HandlerTestSuite) decode(w *httptest.ResponseRecorder, out any) {
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

// --- Test Cases ---

func (suite *HandlerTestSuite) TestMissingTokenIsUnauthorized() {
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/runs/run-1", nil)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *HandlerTestSuite) TestCreateRun_Success() {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	req := dto.CreatePayrollRunRequest{
		Name:        "January",
		PeriodStart: start,
		PeriodEnd:   start.AddDate(0, 1, -1),
		PayDate:     start.AddDate(0, 1, 0),
		EmployeeIDs: []string{"emp-1", "emp-2"},
	}
	suite.runService.On("CreateRun", mock.Anything, suite.orgID, mock.MatchedBy(func(r dto.CreatePayrollRunRequest) bool {
		return r.Name == "January" && len(r.EmployeeIDs) == 2
	}), suite.userID).Return(&domain.PayrollRun{
		RunID:          "run-1",
		OrganizationID: suite.orgID,
		Name:           "January",
		Status:         domain.RunDraft,
		EmployeeIDs:    req.EmployeeIDs,
	}, nil).Once()

	w := suite.do(http.MethodPost, "/api/v1/runs", req)

	suite.Equal(http.StatusCreated, w.Code)
	var resp dto.PayrollRunResponse
	suite.decode(w, &resp)
	suite.Equal("run-1", resp.RunID)
	suite.Equal(domain.RunDraft, resp.Status)
	suite.Equal(2, resp.EmployeeCount)
}

func (suite *HandlerTestSuite) TestCreateRun_PeriodEndBeforeStart() {
	start := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	w := suite.do(http.MethodPost, "/api/v1/runs", dto.CreatePayrollRunRequest{
		Name:        "January",
		PeriodStart: start,
		PeriodEnd:   start.AddDate(0, 0, -30),
		PayDate:     start,
		EmployeeIDs: []string{"emp-1"},
	})
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *HandlerTestSuite) TestCalculateRun_WithoutBodyCalculatesEveryone() {
	summary := &domain.RunSummary{RunID: "run-1", Status: domain.RunCalculated, Succeeded: 1, Failed: 1}
	suite.runService.On("CalculateRun", mock.Anything, suite.orgID, "run-1", portssvc.CalculateOptions{}).
		Return(summary, nil).Once()

	w := suite.do(http.MethodPost, "/api/v1/runs/run-1/calculate", nil)

	suite.Equal(http.StatusOK, w.Code)
	var resp domain.RunSummary
	suite.decode(w, &resp)
	suite.Equal(1, resp.Failed)
	suite.Equal(domain.RunCalculated, resp.Status)
}

func (suite *HandlerTestSuite) TestCalculateRun_Subset() {
	suite.runService.On("CalculateRun", mock.Anything, suite.orgID, "run-1",
		portssvc.CalculateOptions{EmployeeIDs: []string{"emp-2"}}).
		Return(&domain.RunSummary{RunID: "run-1", Status: domain.RunCalculated, Succeeded: 1}, nil).Once()

	w := suite.do(http.MethodPost, "/api/v1/runs/run-1/calculate", dto.CalculatePayrollRunRequest{EmployeeIDs: []string{"emp-2"}})
	suite.Equal(http.StatusOK, w.Code)
}

func (suite *HandlerTestSuite) TestApproveRun_InvalidTransitionIsConflict() {
	suite.runService.On("ApproveRun", mock.Anything, suite.orgID, "run-1", suite.userID).
		Return(nil, fmt.Errorf("%w: run run-1 cannot move from draft to approved", apperrors.ErrInvalidTransition)).Once()

	w := suite.do(http.MethodPost, "/api/v1/runs/run-1/approve", nil)
	suite.Equal(http.StatusConflict, w.Code)
}

func (suite *HandlerTestSuite) TestGetRun_NotFound() {
	suite.runService.On("GetRun", mock.Anything, suite.orgID, "missing").
		Return(nil, apperrors.NewNotFoundError("payroll run missing")).Once()

	w := suite.do(http.MethodGet, "/api/v1/runs/missing", nil)
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *HandlerTestSuite) TestGetRun_IncludesSummary() {
	suite.runService.On("GetRun", mock.Anything, suite.orgID, "run-1").
		Return(&domain.PayrollRun{RunID: "run-1", Status: domain.RunCalculated, TotalNet: decimal.NewFromInt(900)}, nil).Once()
	suite.runService.On("GetRunSummary", mock.Anything, suite.orgID, "run-1").
		Return(&domain.RunSummary{RunID: "run-1", Status: domain.RunCalculated, Succeeded: 3}, nil).Once()

	w := suite.do(http.MethodGet, "/api/v1/runs/run-1", nil)

	suite.Equal(http.StatusOK, w.Code)
	var resp dto.RunSummaryResponse
	suite.decode(w, &resp)
	suite.True(decimal.NewFromInt(900).Equal(resp.Run.TotalNet))
	suite.Equal(3, resp.Summary.Succeeded)
}

func (suite *HandlerTestSuite) TestStatement_ReturnsPDF() {
	suite.runService.On("GetRun", mock.Anything, suite.orgID, "run-1").
		Return(&domain.PayrollRun{RunID: "run-1"}, nil).Once()
	suite.runService.On("GetPaycheck", mock.Anything, suite.orgID, "run-1", "emp-1").
		Return(&domain.Paycheck{RunID: "run-1", EmployeeID: "emp-1", Status: domain.PaycheckSucceeded}, nil).Once()

	w := suite.do(http.MethodGet, "/api/v1/runs/run-1/paychecks/emp-1/statement", nil)

	suite.Equal(http.StatusOK, w.Code)
	suite.Equal("application/pdf", w.Header().Get("Content-Type"))
	suite.Contains(w.Header().Get("Content-Disposition"), "statement-run-1-emp-1.pdf")
	suite.True(bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))
}

func (suite *HandlerTestSuite) TestCreateExchangeRate_ApprovalRequired() {
	req := dto.CreateExchangeRateRequest{
		FromCurrencyCode: "USD",
		ToCurrencyCode:   "EUR",
		Rate:             decimal.RequireFromString("1.25"),
		EffectiveFrom:    time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	suite.rateService.On("CreateExchangeRate", mock.Anything, suite.orgID, mock.AnythingOfType("dto.CreateExchangeRateRequest"), suite.userID).
		Return(nil, &apperrors.ApprovalError{RequestID: "apr-9", Err: apperrors.ErrApprovalRequired}).Once()

	w := suite.do(http.MethodPost, "/api/v1/exchange-rates", req)

	suite.Equal(http.StatusAccepted, w.Code)
	var body map[string]string
	suite.decode(w, &body)
	suite.Equal("apr-9", body["approvalRequestID"])
}

func (suite *HandlerTestSuite) TestCreateExchangeRate_SamePairRejected() {
	w := suite.do(http.MethodPost, "/api/v1/exchange-rates", dto.CreateExchangeRateRequest{
		FromCurrencyCode: "USD",
		ToCurrencyCode:   "USD",
		Rate:             decimal.NewFromInt(1),
		EffectiveFrom:    time.Now(),
	})
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *HandlerTestSuite) TestGetExchangeRate_AsOfDate() {
	asOf := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	suite.rateService.On("GetExchangeRate", mock.Anything, suite.orgID, "USD", "EUR", asOf).
		Return(&domain.ExchangeRate{ExchangeRateID: "rate-1", FromCurrencyCode: "USD", ToCurrencyCode: "EUR", Rate: decimal.RequireFromString("0.9")}, nil).Once()

	w := suite.do(http.MethodGet, "/api/v1/exchange-rates/usd/eur?asOf=2024-03-15", nil)

	suite.Equal(http.StatusOK, w.Code)
	var resp dto.ExchangeRateResponse
	suite.decode(w, &resp)
	suite.Equal("rate-1", resp.ExchangeRateID)
}

func (suite *HandlerTestSuite) TestGetExchangeRate_NoRateIsUnprocessable() {
	suite.rateService.On("GetExchangeRate", mock.Anything, suite.orgID, "USD", "JPY", mock.AnythingOfType("time.Time")).
		Return(nil, fmt.Errorf("%w: USD/JPY", apperrors.ErrNoExchangeRate)).Once()

	w := suite.do(http.MethodGet, "/api/v1/exchange-rates/USD/JPY", nil)
	suite.Equal(http.StatusUnprocessableEntity, w.Code)
}

func (suite *HandlerTestSuite) TestRecordAction_Success() {
	action := dto.ApprovalActionRequest{Decision: domain.DecisionApprove, ApproverRole: "finance"}
	suite.approvalService.On("RecordAction", mock.Anything, suite.orgID, "apr-1", suite.userID, action).
		Return(&domain.CurrencyApprovalRequest{
			ApprovalRequestID: "apr-1",
			Status:            domain.ApprovalPending,
			RequiredApprovals: 2,
			CurrentApprovals:  1,
		}, nil).Once()

	w := suite.do(http.MethodPost, "/api/v1/approvals/apr-1/actions", action)

	suite.Equal(http.StatusOK, w.Code)
	var resp dto.ApprovalRequestResponse
	suite.decode(w, &resp)
	suite.Equal(1, resp.CurrentApprovals)
	suite.Equal(domain.ApprovalPending, resp.Status)
}

func (suite *HandlerTestSuite) TestRecordAction_ErrorMapping() {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"second action by same approver", apperrors.NewDuplicateError("approver already acted"), http.StatusConflict},
		{"role not allowed", fmt.Errorf("%w: role intern", apperrors.ErrForbidden), http.StatusForbidden},
		{"request expired", &apperrors.ApprovalError{RequestID: "apr-1", Err: apperrors.ErrApprovalExpired}, http.StatusUnprocessableEntity},
		{"storage failure", fmt.Errorf("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		suite.Run(tc.name, func() {
			suite.approvalService.On("RecordAction", mock.Anything, suite.orgID, "apr-1", suite.userID, mock.Anything).
				Return(nil, tc.err).Once()

			w := suite.do(http.MethodPost, "/api/v1/approvals/apr-1/actions",
				dto.ApprovalActionRequest{Decision: domain.DecisionReject, ApproverRole: "finance"})
			suite.Equal(tc.status, w.Code)
		})
	}
}

func (suite *HandlerTestSuite) TestRecordAction_InvalidDecision() {
	w := suite.do(http.MethodPost, "/api/v1/approvals/apr-1/actions", map[string]string{
		"decision":     "maybe",
		"approverRole": "finance",
	})
	suite.Equal(http.StatusBadRequest, w.Code)
}

func (suite *HandlerTestSuite) TestPublishTemplate_AsDefault() {
	suite.templateService.On("Publish", mock.Anything, suite.orgID, "tpl-1", true, suite.userID).
		Return(&domain.PayStructureTemplate{TemplateID: "tpl-1", Version: "1.0.0", Status: domain.TemplateActive, IsDefault: true}, nil).Once()

	w := suite.do(http.MethodPost, "/api/v1/templates/tpl-1/publish", dto.PublishTemplateRequest{MakeDefault: true})

	suite.Equal(http.StatusOK, w.Code)
	var resp dto.TemplateResponse
	suite.decode(w, &resp)
	suite.True(resp.IsDefault)
	suite.Equal(domain.TemplateActive, resp.Status)
}

func (suite *HandlerTestSuite) TestPublishTemplate_CycleIsBadRequest() {
	suite.templateService.On("Publish", mock.Anything, suite.orgID, "tpl-1", false, suite.userID).
		Return(nil, fmt.Errorf("%w: A -> B -> A", apperrors.ErrDependencyCycle)).Once()

	w := suite.do(http.MethodPost, "/api/v1/templates/tpl-1/publish", nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}

func TestHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}

func TestTokenFromAnotherIssuerIsRejected(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	v1 := router.Group("/api/v1", middleware.AuthMiddleware("secret", "payroll-engine"))
	handlers.RegisterTemplateRoutes(v1, new(MockTemplateService))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.EngineClaims{
		OrganizationID: "org-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/templates/tpl-1", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
