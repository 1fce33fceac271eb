// Package querylanguage holds the request side of a query: a small
// predicate language used by where filters, and the parameters parsed from
// a list or mutation request.
//
// Predicates are expression trees that print in a readable form:
//
//	querylanguage.And(
//	    querylanguage.FieldEQ("status", "active"),
//	    querylanguage.HasEdgeWith("user", querylanguage.FieldIn("id", 1, 2)),
//	).String()
//	// status == "active" && has_edge(user, id in [1,2])
//
// The exposure engine translates them into SQL predicates of a model.
package querylanguage

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// An Op represents an operator.
type Op int

// Operators.
const (
	OpAnd   Op = iota // &&
	OpOr              // ||
	OpNot             // !
	OpEQ              // ==
	OpNEQ             // !=
	OpGT              // >
	OpGTE             // >=
	OpLT              // <
	OpLTE             // <=
	OpIn              // in
	OpNotIn           // not in
)

var ops = [...]string{
	OpAnd:   "&&",
	OpOr:    "||",
	OpNot:   "!",
	OpEQ:    "==",
	OpNEQ:   "!=",
	OpGT:    ">",
	OpGTE:   ">=",
	OpLT:    "<",
	OpLTE:   "<=",
	OpIn:    "in",
	OpNotIn: "not in",
}

// String returns the text form of the operator.
func (o Op) String() string {
	if int(o) < len(ops) {
		return ops[o]
	}
	return "Op(" + strconv.Itoa(int(o)) + ")"
}

// A Func represents a function expression.
type Func string

// Functions.
const (
	FuncEqualFold    Func = "equal_fold"
	FuncContains     Func = "contains"
	FuncContainsFold Func = "contains_fold"
	FuncHasPrefix    Func = "has_prefix"
	FuncHasSuffix    Func = "has_suffix"
	FuncHasEdge      Func = "has_edge"
)

type (
	// Expr is a node of a query expression.
	Expr interface {
		fmt.Stringer
		expr()
	}

	// P is a predicate: an expression evaluating to a boolean.
	P interface {
		Expr
		Negate() P
	}

	// Field is a column reference.
	Field struct {
		Name string
	}

	// Edge is a relation reference.
	Edge struct {
		Name string
	}

	// Value is a literal.
	Value struct {
		V any
	}

	// UnaryExpr is a unary predicate, such as a negation.
	UnaryExpr struct {
		Op Op
		X  Expr
	}

	// BinaryExpr is a binary predicate.
	BinaryExpr struct {
		Op   Op
		X, Y Expr
	}

	// NaryExpr joins more than two predicates with the same operator.
	NaryExpr struct {
		Op Op
		Xs []Expr
	}

	// CallExpr is a function call.
	CallExpr struct {
		Func Func
		Args []Expr
	}
)

// F returns a field reference.
func F(name string) *Field { return &Field{Name: name} }

// V returns a literal.
func V(v any) *Value { return &Value{V: v} }

// Not negates x.
func Not(x P) P { return &UnaryExpr{Op: OpNot, X: x} }

// And joins predicates with &&.
func And(x, y P, z ...P) P {
	if len(z) == 0 {
		return &BinaryExpr{Op: OpAnd, X: x, Y: y}
	}
	return &NaryExpr{Op: OpAnd, Xs: append([]Expr{x, y}, exprs(z)...)}
}

// Or joins predicates with ||.
func Or(x, y P, z ...P) P {
	if len(z) == 0 {
		return &BinaryExpr{Op: OpOr, X: x, Y: y}
	}
	return &NaryExpr{Op: OpOr, Xs: append([]Expr{x, y}, exprs(z)...)}
}

// All joins any number of predicates with &&. It returns nil for none.
func All(ps ...P) P {
	switch len(ps) {
	case 0:
		return nil
	case 1:
		return ps[0]
	}
	return And(ps[0], ps[1], ps[2:]...)
}

func exprs(ps []P) []Expr {
	xs := make([]Expr, len(ps))
	for i, p := range ps {
		xs[i] = p
	}
	return xs
}

// EQ returns x == y.
func EQ(x, y Expr) P { return &BinaryExpr{Op: OpEQ, X: x, Y: y} }

// NEQ returns x != y.
func NEQ(x, y Expr) P { return &BinaryExpr{Op: OpNEQ, X: x, Y: y} }

// GT returns x > y.
func GT(x, y Expr) P { return &BinaryExpr{Op: OpGT, X: x, Y: y} }

// GTE returns x >= y.
func GTE(x, y Expr) P { return &BinaryExpr{Op: OpGTE, X: x, Y: y} }

// LT returns x < y.
func LT(x, y Expr) P { return &BinaryExpr{Op: OpLT, X: x, Y: y} }

// LTE returns x <= y.
func LTE(x, y Expr) P { return &BinaryExpr{Op: OpLTE, X: x, Y: y} }

// FieldEQ returns name == v.
func FieldEQ(name string, v any) P { return EQ(F(name), V(v)) }

// FieldNEQ returns name != v.
func FieldNEQ(name string, v any) P { return NEQ(F(name), V(v)) }

// FieldGT returns name > v.
func FieldGT(name string, v any) P { return GT(F(name), V(v)) }

// FieldGTE returns name >= v.
func FieldGTE(name string, v any) P { return GTE(F(name), V(v)) }

// FieldLT returns name < v.
func FieldLT(name string, v any) P { return LT(F(name), V(v)) }

// FieldLTE returns name <= v.
func FieldLTE(name string, v any) P { return LTE(F(name), V(v)) }

// FieldIn returns name in [vs...].
func FieldIn(name string, vs ...any) P {
	return &BinaryExpr{Op: OpIn, X: F(name), Y: V(vs)}
}

// FieldNotIn returns name not in [vs...].
func FieldNotIn(name string, vs ...any) P {
	return &BinaryExpr{Op: OpNotIn, X: F(name), Y: V(vs)}
}

// FieldNil returns name == nil.
func FieldNil(name string) P { return EQ(F(name), V(nil)) }

// FieldNotNil returns name != nil.
func FieldNotNil(name string) P { return NEQ(F(name), V(nil)) }

// FieldEqualFold returns equal_fold(name, v).
func FieldEqualFold(name, v string) P { return call(FuncEqualFold, F(name), V(v)) }

// FieldContains returns contains(name, v).
func FieldContains(name, v string) P { return call(FuncContains, F(name), V(v)) }

// FieldContainsFold returns contains_fold(name, v).
func FieldContainsFold(name, v string) P { return call(FuncContainsFold, F(name), V(v)) }

// FieldHasPrefix returns has_prefix(name, v).
func FieldHasPrefix(name, v string) P { return call(FuncHasPrefix, F(name), V(v)) }

// FieldHasSuffix returns has_suffix(name, v).
func FieldHasSuffix(name, v string) P { return call(FuncHasSuffix, F(name), V(v)) }

// HasEdge matches records with at least one related record through name.
func HasEdge(name string) P { return call(FuncHasEdge, &Edge{Name: name}) }

// HasEdgeWith matches records with at least one related record through
// name satisfying all of ps.
func HasEdgeWith(name string, ps ...P) P {
	args := append([]Expr{&Edge{Name: name}}, exprs(ps)...)
	return call(FuncHasEdge, args...)
}

func call(fn Func, args ...Expr) P { return &CallExpr{Func: fn, Args: args} }

func (*Field) expr()      {}
func (*Edge) expr()       {}
func (*Value) expr()      {}
func (*UnaryExpr) expr()  {}
func (*BinaryExpr) expr() {}
func (*NaryExpr) expr()   {}
func (*CallExpr) expr()   {}

// Negate negates the predicate.
func (e *UnaryExpr) Negate() P { return Not(e) }

// Negate negates the predicate.
func (e *BinaryExpr) Negate() P { return Not(e) }

// Negate negates the predicate.
func (e *NaryExpr) Negate() P { return Not(e) }

// Negate negates the predicate.
func (e *CallExpr) Negate() P { return Not(e) }

// String implements fmt.Stringer.
func (f *Field) String() string { return f.Name }

// String implements fmt.Stringer.
func (e *Edge) String() string { return e.Name }

// String implements fmt.Stringer. Literals print as JSON, nil as "nil".
func (v *Value) String() string {
	if v.V == nil {
		return "nil"
	}
	buf, err := json.Marshal(v.V)
	if err != nil {
		return fmt.Sprint(v.V)
	}
	return string(buf)
}

// String implements fmt.Stringer.
func (e *UnaryExpr) String() string {
	return fmt.Sprintf("%s(%s)", e.Op, e.X)
}

// String implements fmt.Stringer.
func (e *BinaryExpr) String() string {
	return fmt.Sprintf("%s %s %s", e.X, e.Op, e.Y)
}

// String implements fmt.Stringer.
func (e *NaryExpr) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, x := range e.Xs {
		if i > 0 {
			sb.WriteString(" " + e.Op.String() + " ")
		}
		sb.WriteString(x.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// String implements fmt.Stringer.
func (e *CallExpr) String() string {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", e.Func, strings.Join(args, ", "))
}

// Walk calls fn for every node of x in depth-first order. Returning false
// stops the descent into the children of a node.
func Walk(x Expr, fn func(Expr) bool) {
	if x == nil || !fn(x) {
		return
	}
	switch x := x.(type) {
	case *UnaryExpr:
		Walk(x.X, fn)
	case *BinaryExpr:
		Walk(x.X, fn)
		Walk(x.Y, fn)
	case *NaryExpr:
		for _, y := range x.Xs {
			Walk(y, fn)
		}
	case *CallExpr:
		for _, y := range x.Args {
			Walk(y, fn)
		}
	}
}
