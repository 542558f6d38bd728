package services

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/SscSPs/payroll_engine/internal/apperrors"
	"github.com/SscSPs/payroll_engine/internal/core/domain"
	portssvc "github.com/SscSPs/payroll_engine/internal/core/ports/services"
)

// Variables visible to approval rule conditions.
var newApprovalRuleEnv = func() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("rate", cel.DoubleType),
		cel.Variable("variance_percent", cel.DoubleType),
		cel.Variable("from_currency", cel.StringType),
		cel.Variable("to_currency", cel.StringType),
		cel.Variable("operation", cel.StringType),
	)
}

// ruleMatcher evaluates approval rules, caching compiled conditions by text.
type ruleMatcher struct {
	programs sync.Map
}

// CompileCondition checks that a rule condition is a valid boolean CEL expression.
func (m *ruleMatcher) CompileCondition(expr string) (cel.Program, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("expression required")
	}
	if cached, ok := m.programs.Load(expr); ok {
		return cached.(cel.Program), nil
	}
	env, err := newApprovalRuleEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: approval condition: %v", apperrors.ErrConfigValidation, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: approval condition must be boolean", apperrors.ErrConfigValidation)
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	m.programs.Store(expr, program)
	return program, nil
}

// Matches reports whether every condition the rule sets holds for op.
func (m *ruleMatcher) Matches(rule domain.CurrencyApprovalRule, op portssvc.GatedOperation) (bool, error) {
	if !rule.Enabled || rule.OperationType != op.OperationType {
		return false, nil
	}
	if rule.ThresholdAmount != nil && op.Amount.Abs().LessThan(*rule.ThresholdAmount) {
		return false, nil
	}
	if rule.VariancePercent != nil && op.VariancePercent.Abs().LessThan(*rule.VariancePercent) {
		return false, nil
	}
	if strings.TrimSpace(rule.Condition) == "" {
		return true, nil
	}

	program, err := m.CompileCondition(rule.Condition)
	if err != nil {
		return false, err
	}
	out, _, err := program.Eval(map[string]any{
		"amount":           op.Amount.InexactFloat64(),
		"rate":             op.Rate.InexactFloat64(),
		"variance_percent": op.VariancePercent.InexactFloat64(),
		"from_currency":    op.From,
		"to_currency":      op.To,
		"operation":        string(op.OperationType),
	})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate approval rule %s: %w", rule.Name, err)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: approval rule %s did not yield a boolean", apperrors.ErrConfigValidation, rule.Name)
	}
	return matched, nil
}
