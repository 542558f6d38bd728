// Package formula holds the typed expression tree used by formula-based pay
// components, its parser and a pure evaluator over decimal values.
package formula

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Node is one node of a parsed formula. The set of implementations is closed.
type Node interface {
	String() string
	isNode()
}

// BinaryOperator is an arithmetic, comparison or boolean operator.
type BinaryOperator string

const (
	OpAdd BinaryOperator = "+"
	OpSub BinaryOperator = "-"
	OpMul BinaryOperator = "*"
	OpDiv BinaryOperator = "/"
	OpEq  BinaryOperator = "=="
	OpNe  BinaryOperator = "!="
	OpLt  BinaryOperator = "<"
	OpLe  BinaryOperator = "<="
	OpGt  BinaryOperator = ">"
	OpGe  BinaryOperator = ">="
	OpAnd BinaryOperator = "&&"
	OpOr  BinaryOperator = "||"
)

// UnaryOperator is a prefix operator.
type UnaryOperator string

const (
	OpNeg UnaryOperator = "-"
	OpNot UnaryOperator = "!"
)

// Function names accepted in Call nodes.
const (
	FuncRound = "ROUND"
	FuncMin   = "MIN"
	FuncMax   = "MAX"
	FuncAbs   = "ABS"
)

// Literal is a numeric constant.
type Literal struct {
	Value decimal.Decimal
}

// BoolLiteral is a boolean constant.
type BoolLiteral struct {
	Value bool
}

// VarRef references a binding in the evaluation variables.
type VarRef struct {
	Name string
}

// UnaryOp applies Op to Operand.
type UnaryOp struct {
	Op      UnaryOperator
	Operand Node
}

// BinaryOp applies Op to Left and Right.
type BinaryOp struct {
	Op    BinaryOperator
	Left  Node
	Right Node
}

// Conditional is IF(Cond, Then, Else). Only the selected branch is evaluated.
type Conditional struct {
	Cond Node
	Then Node
	Else Node
}

// Call invokes a named function.
type Call struct {
	Name string
	Args []Node
}

func (Literal) isNode()     {}
func (BoolLiteral) isNode() {}
func (VarRef) isNode()      {}
func (UnaryOp) isNode()     {}
func (BinaryOp) isNode()    {}
func (Conditional) isNode() {}
func (Call) isNode()        {}

func (n Literal) String() string { return n.Value.String() }

func (n BoolLiteral) String() string {
	if n.Value {
		return "true"
	}
	return "false"
}

func (n VarRef) String() string { return n.Name }

func (n UnaryOp) String() string { return string(n.Op) + n.Operand.String() }

func (n BinaryOp) String() string {
	return "(" + n.Left.String() + " " + string(n.Op) + " " + n.Right.String() + ")"
}

func (n Conditional) String() string {
	return "IF(" + n.Cond.String() + ", " + n.Then.String() + ", " + n.Else.String() + ")"
}

func (n Call) String() string {
	args := make([]string, len(n.Args))
	for i, a := range n.Args {
		args[i] = a.String()
	}
	return n.Name + "(" + strings.Join(args, ", ") + ")"
}

// VariableNames returns the sorted, de-duplicated names referenced by the tree.
func VariableNames(n Node) []string {
	seen := map[string]struct{}{}
	walk(n, func(v VarRef) { seen[v.Name] = struct{}{} })
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func walk(n Node, visit func(VarRef)) {
	switch t := n.(type) {
	case VarRef:
		visit(t)
	case UnaryOp:
		walk(t.Operand, visit)
	case BinaryOp:
		walk(t.Left, visit)
		walk(t.Right, visit)
	case Conditional:
		walk(t.Cond, visit)
		walk(t.Then, visit)
		walk(t.Else, visit)
	case Call:
		for _, a := range t.Args {
			walk(a, visit)
		}
	}
}
