package formula

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/SscSPs/payroll_engine/internal/apperrors"
)

// Variables binds variable names to values for one evaluation.
type Variables map[string]decimal.Decimal

// divisionEpsilon is the magnitude under which a divisor is treated as zero.
var divisionEpsilon = decimal.New(1, -9)

// value is either a number or a boolean.
type value struct {
	num    decimal.Decimal
	b      bool
	isBool bool
}

func number(d decimal.Decimal) value { return value{num: d} }
func boolean(b bool) value           { return value{b: b, isBool: true} }

// Evaluate computes the numeric result of n. It has no side effects and never
// mutates vars, so concurrent calls with the same inputs return the same value.
func Evaluate(n Node, vars Variables) (decimal.Decimal, error) {
	v, err := eval(n, vars)
	if err != nil {
		return decimal.Zero, err
	}
	if v.isBool {
		// A bare condition evaluates to 1 or 0 so IF-less flag formulas still work.
		if v.b {
			return decimal.NewFromInt(1), nil
		}
		return decimal.Zero, nil
	}
	return v.num, nil
}

// EvaluateBool evaluates n as a condition. Numbers are true when non-zero.
func EvaluateBool(n Node, vars Variables) (bool, error) {
	v, err := eval(n, vars)
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}

func eval(n Node, vars Variables) (value, error) {
	switch t := n.(type) {
	case Literal:
		return number(t.Value), nil
	case BoolLiteral:
		return boolean(t.Value), nil
	case VarRef:
		d, ok := vars[t.Name]
		if !ok {
			return value{}, fmt.Errorf("%w: %s", apperrors.ErrUnboundVariable, t.Name)
		}
		return number(d), nil
	case UnaryOp:
		return evalUnary(t, vars)
	case BinaryOp:
		return evalBinary(t, vars)
	case Conditional:
		c, err := eval(t.Cond, vars)
		if err != nil {
			return value{}, err
		}
		if truthy(c) {
			return eval(t.Then, vars)
		}
		return eval(t.Else, vars)
	case Call:
		return evalCall(t, vars)
	case nil:
		return value{}, fmt.Errorf("%w: empty expression", apperrors.ErrInvalidFormula)
	default:
		return value{}, fmt.Errorf("%w: unknown node %T", apperrors.ErrInvalidFormula, n)
	}
}

func evalUnary(t UnaryOp, vars Variables) (value, error) {
	v, err := eval(t.Operand, vars)
	if err != nil {
		return value{}, err
	}
	switch t.Op {
	case OpNot:
		return boolean(!truthy(v)), nil
	case OpNeg:
		d, err := asNumber(v, t)
		if err != nil {
			return value{}, err
		}
		return number(d.Neg()), nil
	}
	return value{}, fmt.Errorf("%w: unknown operator %s", apperrors.ErrInvalidFormula, t.Op)
}

func evalBinary(t BinaryOp, vars Variables) (value, error) {
	left, err := eval(t.Left, vars)
	if err != nil {
		return value{}, err
	}

	switch t.Op {
	case OpAnd:
		if !truthy(left) {
			return boolean(false), nil
		}
		right, err := eval(t.Right, vars)
		if err != nil {
			return value{}, err
		}
		return boolean(truthy(right)), nil
	case OpOr:
		if truthy(left) {
			return boolean(true), nil
		}
		right, err := eval(t.Right, vars)
		if err != nil {
			return value{}, err
		}
		return boolean(truthy(right)), nil
	}

	right, err := eval(t.Right, vars)
	if err != nil {
		return value{}, err
	}

	if t.Op == OpEq || t.Op == OpNe {
		eq := equal(left, right)
		if t.Op == OpNe {
			eq = !eq
		}
		return boolean(eq), nil
	}

	l, err := asNumber(left, t)
	if err != nil {
		return value{}, err
	}
	r, err := asNumber(right, t)
	if err != nil {
		return value{}, err
	}

	switch t.Op {
	case OpAdd:
		return number(l.Add(r)), nil
	case OpSub:
		return number(l.Sub(r)), nil
	case OpMul:
		return number(l.Mul(r)), nil
	case OpDiv:
		if r.Abs().LessThan(divisionEpsilon) {
			return value{}, fmt.Errorf("%w: %s", apperrors.ErrDivisionByZero, t.String())
		}
		return number(l.Div(r)), nil
	case OpLt:
		return boolean(l.LessThan(r)), nil
	case OpLe:
		return boolean(l.LessThanOrEqual(r)), nil
	case OpGt:
		return boolean(l.GreaterThan(r)), nil
	case OpGe:
		return boolean(l.GreaterThanOrEqual(r)), nil
	}
	return value{}, fmt.Errorf("%w: unknown operator %s", apperrors.ErrInvalidFormula, t.Op)
}

func evalCall(t Call, vars Variables) (value, error) {
	args := make([]decimal.Decimal, len(t.Args))
	for i, a := range t.Args {
		v, err := eval(a, vars)
		if err != nil {
			return value{}, err
		}
		d, err := asNumber(v, t)
		if err != nil {
			return value{}, err
		}
		args[i] = d
	}

	switch t.Name {
	case FuncRound:
		places := int32(0)
		if len(args) == 2 {
			places = int32(args[1].IntPart())
		}
		return number(args[0].Round(places)), nil
	case FuncMin:
		return number(decimal.Min(args[0], args[1:]...)), nil
	case FuncMax:
		return number(decimal.Max(args[0], args[1:]...)), nil
	case FuncAbs:
		return number(args[0].Abs()), nil
	}
	return value{}, fmt.Errorf("%w: unknown function %s", apperrors.ErrInvalidFormula, t.Name)
}

func truthy(v value) bool {
	if v.isBool {
		return v.b
	}
	return !v.num.IsZero()
}

func equal(a, b value) bool {
	if a.isBool || b.isBool {
		return truthy(a) == truthy(b)
	}
	return a.num.Equal(b.num)
}

func asNumber(v value, at Node) (decimal.Decimal, error) {
	if v.isBool {
		return decimal.Zero, fmt.Errorf("%w: boolean used as a number in %s", apperrors.ErrInvalidFormula, at.String())
	}
	return v.num, nil
}
