package apperrors

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
var ErrDuplicate = errors.New("resource already exists")

// ErrConflict indicates a concurrent modification or a write that violates a structural invariant.
var ErrConflict = errors.New("conflicting modification")

// ErrForbidden indicates the caller is not allowed to perform the action.
var ErrForbidden = errors.New("forbidden")

// ErrInvalidTransition indicates a state machine transition that is not allowed.
var ErrInvalidTransition = errors.New("invalid state transition")

// Calculation engine errors. They are scoped to a single employee/component and
// recorded on the paycheck; none of them aborts a payroll run.
var (
	ErrNoApplicableStructure  = errors.New("no applicable pay structure")
	ErrDependencyCycle        = errors.New("component dependency cycle")
	ErrUnboundVariable        = errors.New("unbound variable")
	ErrDivisionByZero         = errors.New("division by zero")
	ErrInvalidCalculationMode = errors.New("invalid tax calculation mode")
	ErrNoExchangeRate         = errors.New("no exchange rate")
	ErrApprovalRequired       = errors.New("approval required")
	ErrAllowanceCapExceeded   = errors.New("allowance cap exceeded")
	ErrConfigValidation       = errors.New("component configuration invalid")
	ErrInvalidFormula         = errors.New("invalid formula")
	ErrApprovalRejected       = errors.New("approval rejected")
	ErrApprovalExpired        = errors.New("approval expired")
	ErrRateLookupTimeout      = errors.New("exchange rate lookup timed out")
	ErrCancelled              = errors.New("calculation cancelled")
)

// ErrorKind is the stable name of an engine error used in run summaries.
type ErrorKind string

const (
	KindNoApplicableStructure  ErrorKind = "NoApplicableStructure"
	KindDependencyCycle        ErrorKind = "DependencyCycle"
	KindUnboundVariable        ErrorKind = "UnboundVariable"
	KindDivisionByZero         ErrorKind = "DivisionByZero"
	KindInvalidCalculationMode ErrorKind = "InvalidCalculationMode"
	KindNoExchangeRate         ErrorKind = "NoExchangeRate"
	KindApprovalRequired       ErrorKind = "ApprovalRequired"
	KindAllowanceCapExceeded   ErrorKind = "AllowanceCapExceeded"
	KindConfigValidation       ErrorKind = "ConfigValidationError"
	KindInvalidFormula         ErrorKind = "InvalidFormula"
	KindApprovalRejected       ErrorKind = "ApprovalRejected"
	KindApprovalExpired        ErrorKind = "ApprovalExpired"
	KindRateLookupTimeout      ErrorKind = "RateLookupTimeout"
	KindNotFound               ErrorKind = "NotFound"
	KindValidation             ErrorKind = "ValidationError"
	KindCancelled              ErrorKind = "Cancelled"
	KindInternal               ErrorKind = "InternalError"
)

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrNoApplicableStructure, KindNoApplicableStructure},
	{ErrDependencyCycle, KindDependencyCycle},
	{ErrUnboundVariable, KindUnboundVariable},
	{ErrDivisionByZero, KindDivisionByZero},
	{ErrInvalidCalculationMode, KindInvalidCalculationMode},
	{ErrNoExchangeRate, KindNoExchangeRate},
	{ErrApprovalRequired, KindApprovalRequired},
	{ErrAllowanceCapExceeded, KindAllowanceCapExceeded},
	{ErrConfigValidation, KindConfigValidation},
	{ErrInvalidFormula, KindInvalidFormula},
	{ErrApprovalRejected, KindApprovalRejected},
	{ErrApprovalExpired, KindApprovalExpired},
	{ErrRateLookupTimeout, KindRateLookupTimeout},
	{ErrCancelled, KindCancelled},
	{ErrNotFound, KindNotFound},
	{ErrValidation, KindValidation},
}

// KindOf maps an error to its engine error kind. Unknown errors are internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// AppError is an error carrying an HTTP-like status code for the transport layer.
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates an AppError wrapping err.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// NewNotFoundError creates a 404 error that matches ErrNotFound.
func NewNotFoundError(message string) *AppError {
	return &AppError{Code: 404, Message: message, Err: ErrNotFound}
}

// NewValidationError creates a 400 error that matches ErrValidation.
func NewValidationError(message string) *AppError {
	return &AppError{Code: 400, Message: message, Err: ErrValidation}
}

// NewConflictError creates a 409 error that matches ErrConflict.
func NewConflictError(message string) *AppError {
	return &AppError{Code: 409, Message: message, Err: ErrConflict}
}

// NewDuplicateError creates a 409 error that matches ErrDuplicate.
func NewDuplicateError(message string) *AppError {
	return &AppError{Code: 409, Message: message, Err: ErrDuplicate}
}

// CalculationError ties an engine error to the employee and component that triggered it.
type CalculationError struct {
	Kind          ErrorKind
	EmployeeID    string
	ComponentCode string
	Err           error
}

// NewCalculationError classifies err and attaches the failing employee and component.
func NewCalculationError(employeeID, componentCode string, err error) *CalculationError {
	var existing *CalculationError
	if errors.As(err, &existing) {
		if existing.ComponentCode == "" {
			existing.ComponentCode = componentCode
		}
		if existing.EmployeeID == "" {
			existing.EmployeeID = employeeID
		}
		return existing
	}
	return &CalculationError{
		Kind:          KindOf(err),
		EmployeeID:    employeeID,
		ComponentCode: componentCode,
		Err:           err,
	}
}

func (e *CalculationError) Error() string {
	if e.ComponentCode != "" {
		return fmt.Sprintf("employee %s component %s: %v", e.EmployeeID, e.ComponentCode, e.Err)
	}
	return fmt.Sprintf("employee %s: %v", e.EmployeeID, e.Err)
}

func (e *CalculationError) Unwrap() error {
	return e.Err
}

// ApprovalError ties an approval gate outcome to the request that caused it.
type ApprovalError struct {
	RequestID string
	Err       error
}

func (e *ApprovalError) Error() string {
	return fmt.Sprintf("%v (approval request %s)", e.Err, e.RequestID)
}

func (e *ApprovalError) Unwrap() error {
	return e.Err
}
