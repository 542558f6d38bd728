package formula

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	celast "github.com/google/cel-go/common/ast"
	"github.com/google/cel-go/common/operators"
	"github.com/google/cel-go/common/types"
	"github.com/shopspring/decimal"

	"github.com/SscSPs/payroll_engine/internal/apperrors"
)

// The CEL environment is only used for its parser; formulas are never compiled
// or evaluated by CEL.
var parserEnv = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv()
})

var binaryOperators = map[string]BinaryOperator{
	operators.Add:           OpAdd,
	operators.Subtract:      OpSub,
	operators.Multiply:      OpMul,
	operators.Divide:        OpDiv,
	operators.Equals:        OpEq,
	operators.NotEquals:     OpNe,
	operators.Less:          OpLt,
	operators.LessEquals:    OpLe,
	operators.Greater:       OpGt,
	operators.GreaterEquals: OpGe,
	operators.LogicalAnd:    OpAnd,
	operators.LogicalOr:     OpOr,
}

// Parse turns formula text into a typed tree. It accepts arithmetic, comparisons,
// && || ! and ?:, plus the spreadsheet style functions IF, AND, OR, NOT, ROUND,
// MIN, MAX and ABS.
func Parse(text string) (Node, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: expression is empty", apperrors.ErrInvalidFormula)
	}
	env, err := parserEnv()
	if err != nil {
		return nil, fmt.Errorf("formula parser unavailable: %w", err)
	}
	parsed, issues := env.Parse(text)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrInvalidFormula, issues.Err().Error())
	}
	return convert(parsed.NativeRep().Expr())
}

// MustParse is Parse for expressions known to be valid, such as test fixtures.
func MustParse(text string) Node {
	n, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return n
}

func convert(e celast.Expr) (Node, error) {
	switch e.Kind() {
	case celast.LiteralKind:
		return convertLiteral(e)
	case celast.IdentKind:
		return VarRef{Name: e.AsIdent()}, nil
	case celast.SelectKind:
		name, err := dottedName(e)
		if err != nil {
			return nil, err
		}
		return VarRef{Name: name}, nil
	case celast.CallKind:
		return convertCall(e.AsCall())
	default:
		return nil, fmt.Errorf("%w: unsupported expression", apperrors.ErrInvalidFormula)
	}
}

func convertLiteral(e celast.Expr) (Node, error) {
	switch v := e.AsLiteral().(type) {
	case types.Int:
		return Literal{Value: decimal.NewFromInt(int64(v))}, nil
	case types.Uint:
		d, err := decimal.NewFromString(strconv.FormatUint(uint64(v), 10))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidFormula, err)
		}
		return Literal{Value: d}, nil
	case types.Double:
		return Literal{Value: decimal.NewFromFloat(float64(v))}, nil
	case types.Bool:
		return BoolLiteral{Value: bool(v)}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported literal %v", apperrors.ErrInvalidFormula, v)
	}
}

// dottedName flattens select chains such as time.hours_worked into one variable name.
func dottedName(e celast.Expr) (string, error) {
	switch e.Kind() {
	case celast.IdentKind:
		return e.AsIdent(), nil
	case celast.SelectKind:
		sel := e.AsSelect()
		if sel.IsTestOnly() {
			return "", fmt.Errorf("%w: has() is not supported", apperrors.ErrInvalidFormula)
		}
		prefix, err := dottedName(sel.Operand())
		if err != nil {
			return "", err
		}
		return prefix + "." + sel.FieldName(), nil
	default:
		return "", fmt.Errorf("%w: unsupported field access", apperrors.ErrInvalidFormula)
	}
}

func convertCall(call celast.CallExpr) (Node, error) {
	if call.IsMemberFunction() {
		return nil, fmt.Errorf("%w: member functions are not supported (%s)", apperrors.ErrInvalidFormula, call.FunctionName())
	}
	args := make([]Node, 0, len(call.Args()))
	for _, a := range call.Args() {
		n, err := convert(a)
		if err != nil {
			return nil, err
		}
		args = append(args, n)
	}

	name := call.FunctionName()
	if op, ok := binaryOperators[name]; ok {
		return foldBinary(op, args)
	}
	switch name {
	case operators.Conditional:
		return conditional(args)
	case operators.LogicalNot:
		return unary(OpNot, args)
	case operators.Negate:
		return unary(OpNeg, args)
	}

	switch strings.ToUpper(name) {
	case "IF":
		return conditional(args)
	case "AND":
		return foldBinary(OpAnd, args)
	case "OR":
		return foldBinary(OpOr, args)
	case "NOT":
		return unary(OpNot, args)
	case FuncRound:
		if len(args) != 1 && len(args) != 2 {
			return nil, arityError(FuncRound, "1 or 2", len(args))
		}
		return Call{Name: FuncRound, Args: args}, nil
	case FuncMin, FuncMax:
		if len(args) < 1 {
			return nil, arityError(strings.ToUpper(name), "at least 1", len(args))
		}
		return Call{Name: strings.ToUpper(name), Args: args}, nil
	case FuncAbs:
		if len(args) != 1 {
			return nil, arityError(FuncAbs, "1", len(args))
		}
		return Call{Name: FuncAbs, Args: args}, nil
	}
	return nil, fmt.Errorf("%w: unknown function %s", apperrors.ErrInvalidFormula, name)
}

func foldBinary(op BinaryOperator, args []Node) (Node, error) {
	if len(args) < 2 {
		return nil, arityError(string(op), "at least 2", len(args))
	}
	n := args[0]
	for _, a := range args[1:] {
		n = BinaryOp{Op: op, Left: n, Right: a}
	}
	return n, nil
}

func conditional(args []Node) (Node, error) {
	if len(args) != 3 {
		return nil, arityError("IF", "3", len(args))
	}
	return Conditional{Cond: args[0], Then: args[1], Else: args[2]}, nil
}

func unary(op UnaryOperator, args []Node) (Node, error) {
	if len(args) != 1 {
		return nil, arityError(string(op), "1", len(args))
	}
	// Fold negative numeric constants so they render and compare as literals.
	if lit, ok := args[0].(Literal); ok && op == OpNeg {
		return Literal{Value: lit.Value.Neg()}, nil
	}
	return UnaryOp{Op: op, Operand: args[0]}, nil
}

func arityError(fn, want string, got int) error {
	return fmt.Errorf("%w: %s expects %s argument(s), got %d", apperrors.ErrInvalidFormula, fn, want, got)
}
