package exposure

import (
	"context"
	"fmt"
	"strings"

	"github.com/syssam/ormapi"
	"github.com/syssam/ormapi/dialect/sql"
	"github.com/syssam/ormapi/dialect/sql/sqlgraph"
	"github.com/syssam/ormapi/graph"
	ql "github.com/syssam/ormapi/querylanguage"
	"github.com/syssam/ormapi/schema/edge"
	"github.com/syssam/ormapi/schema/field"
)

// hop is one relation of a qualified path.
type hop struct {
	owner   ormapi.Model
	rel     *edge.Descriptor
	related ormapi.Model
}

func (h hop) step() *sqlgraph.Step {
	return ormapi.Step(h.owner, h.rel, h.related)
}

// resolve resolves the relation names of path, starting at m.
func resolve(r graph.Resolver, m ormapi.Model, path []string) ([]hop, error) {
	hops := make([]hop, 0, len(path))
	for _, name := range path {
		d, ok := ormapi.Relation(m, name)
		if !ok {
			return nil, fmt.Errorf("model %s has no relation %q", m.Name(), name)
		}
		related, ok := r.Resolve(d.Model)
		if !ok {
			return nil, fmt.Errorf("relation %q references unknown model %q", name, d.Model)
		}
		hops = append(hops, hop{owner: m, rel: d, related: related})
		m = related
	}
	return hops, nil
}

// splitField splits "user.posts.title" into its relation path and field.
func splitField(qualified string) ([]string, string) {
	parts := strings.Split(qualified, ".")
	return parts[:len(parts)-1], parts[len(parts)-1]
}

// through returns a predicate matching the rows of q whose related rows at
// the end of hops satisfy leaf. Every related row must be listable.
func through(ctx context.Context, q *sql.Selector, hops []hop, leaf func(*sql.Selector) sql.P) sql.P {
	if len(hops) == 0 {
		return leaf(q)
	}
	return sqlgraph.NeighborsP(q, hops[0].step(), func(s *sql.Selector) {
		hops[0].related.Listable(ctx, s)
		s.Where(through(ctx, s, hops[1:], leaf))
	})
}

// target returns the model at the end of hops.
func target(m ormapi.Model, hops []hop) ormapi.Model {
	if len(hops) == 0 {
		return m
	}
	return hops[len(hops)-1].related
}

// filterP translates a filter parameter into a predicate of q.
func (e *Engine) filterP(ctx context.Context, q *sql.Selector, m ormapi.Model, ex *Exposure, f ql.Filter) (sql.P, error) {
	key := ql.KeyFilter + "." + f.Key()
	if !ex.HasField(f.Field) {
		return nil, ormapi.ValidationErrorf(key, "Filtering by %s is not allowed.", f.Field)
	}
	path, name := splitField(f.Field)
	hops, err := resolve(e.resolver, m, path)
	if err != nil {
		return nil, ormapi.ValidationErrorf(key, "%s.", err)
	}
	if f.Op != "" {
		info := target(m, hops).FieldExtraInfo()[name]
		if !info.HasOp(f.Op) {
			return nil, ormapi.ValidationErrorf(key, "The %s filter does not support the %s operator.", f.Field, f.Op)
		}
		v := f.Values[0]
		return through(ctx, q, hops, func(s *sql.Selector) sql.P {
			return sql.Compare(s.C(name), f.Op, compareValue(info, v))
		}), nil
	}
	return through(ctx, q, hops, func(s *sql.Selector) sql.P {
		ps := make([]sql.P, len(f.Values))
		for i, v := range f.Values {
			ps[i] = sql.ContainsFold(s.C(name), v)
		}
		return sql.Or(ps...)
	}), nil
}

// compareValue converts a comparison filter value to the type of the field.
func compareValue(info field.Info, v string) any {
	if info.Type.TimeLike() {
		if t, ok := field.ParseTime(v); ok {
			if info.Type == field.TypeDate {
				return t.Format("2006-01-02")
			}
			return t.UTC().Format("2006-01-02 15:04:05")
		}
	}
	return v
}

// order applies a sort parameter to q. Sorting through relations is only
// possible along belongsTo paths.
func (e *Engine) order(q *sql.Selector, m ormapi.Model, ex *Exposure, s ql.Sort) error {
	if !ex.HasField(s.Field) {
		return ormapi.ValidationErrorf(ql.KeySort, "Sorting by %s is not allowed.", s.Field)
	}
	path, name := splitField(s.Field)
	if len(path) == 0 {
		q.OrderBy(q.C(name), s.Desc)
		return nil
	}
	hops, err := resolve(e.resolver, m, path)
	if err != nil {
		return ormapi.ValidationErrorf(ql.KeySort, "%s.", err)
	}
	for _, h := range hops {
		if h.rel.Kind != edge.KindBelongsTo {
			return ormapi.ValidationErrorf(ql.KeySort, "Sorting by %s is not allowed: %s is a %s relation.", s.Field, h.rel.Name, h.rel.Kind)
		}
	}
	expr, err := neighborValue(q, hops, name)
	if err != nil {
		return err
	}
	q.OrderExpr(expr, s.Desc)
	return nil
}

func neighborValue(q *sql.Selector, hops []hop, name string) (func(*sql.Builder), error) {
	to, err := sqlgraph.NeighborSelect(q, hops[0].step())
	if err != nil {
		return nil, err
	}
	if len(hops) == 1 {
		return to.Columns(to.C(name)).Build, nil
	}
	inner, err := neighborValue(to, hops[1:], name)
	if err != nil {
		return nil, err
	}
	return to.AppendSelectExpr(func(b *sql.Builder) { b.Nested(inner) }).Build, nil
}

// whereP translates a whereFilters predicate of m into a predicate of q.
// Conditions are not restricted to the exposure of m, but field and
// relation names must exist.
func (e *Engine) whereP(q *sql.Selector, m ormapi.Model, x ql.Expr) (sql.P, error) {
	switch x := x.(type) {
	case *ql.UnaryExpr:
		p, err := e.whereP(q, m, x.X)
		if err != nil {
			return nil, err
		}
		return sql.Not(p), nil
	case *ql.NaryExpr:
		ps := make([]sql.P, len(x.Xs))
		for i, y := range x.Xs {
			p, err := e.whereP(q, m, y)
			if err != nil {
				return nil, err
			}
			ps[i] = p
		}
		if x.Op == ql.OpOr {
			return sql.Or(ps...), nil
		}
		return sql.And(ps...), nil
	case *ql.BinaryExpr:
		return e.binaryP(q, m, x)
	case *ql.CallExpr:
		return e.callP(q, m, x)
	}
	return nil, whereErr("unsupported expression %s", x)
}

func (e *Engine) binaryP(q *sql.Selector, m ormapi.Model, x *ql.BinaryExpr) (sql.P, error) {
	switch x.Op {
	case ql.OpAnd, ql.OpOr:
		l, err := e.whereP(q, m, x.X)
		if err != nil {
			return nil, err
		}
		r, err := e.whereP(q, m, x.Y)
		if err != nil {
			return nil, err
		}
		if x.Op == ql.OpOr {
			return sql.Or(l, r), nil
		}
		return sql.And(l, r), nil
	}
	f, ok := x.X.(*ql.Field)
	if !ok || !sql.ValidIdentifier(f.Name) || strings.Contains(f.Name, ".") {
		return nil, whereErr("invalid field in %s", x)
	}
	column := q.C(f.Name)
	if y, ok := x.Y.(*ql.Field); ok {
		if !sql.ValidIdentifier(y.Name) || strings.Contains(y.Name, ".") {
			return nil, whereErr("invalid field in %s", x)
		}
		return sql.ColumnsOp(column, opName[x.Op], q.C(y.Name)), nil
	}
	v, ok := x.Y.(*ql.Value)
	if !ok {
		return nil, whereErr("invalid operand in %s", x)
	}
	switch x.Op {
	case ql.OpIn, ql.OpNotIn:
		vs, ok := v.V.([]any)
		if !ok {
			return nil, whereErr("%s expects a list", x)
		}
		if x.Op == ql.OpIn {
			return sql.In(column, vs...), nil
		}
		return sql.NotIn(column, vs...), nil
	case ql.OpEQ:
		if v.V == nil {
			return sql.IsNull(column), nil
		}
	case ql.OpNEQ:
		if v.V == nil {
			return sql.NotNull(column), nil
		}
	}
	name, ok := opName[x.Op]
	if !ok {
		return nil, whereErr("unsupported operator in %s", x)
	}
	return sql.Compare(column, name, v.V), nil
}

var opName = map[ql.Op]string{
	ql.OpEQ:  "eq",
	ql.OpNEQ: "ne",
	ql.OpGT:  "gt",
	ql.OpGTE: "ge",
	ql.OpLT:  "lt",
	ql.OpLTE: "le",
}

func (e *Engine) callP(q *sql.Selector, m ormapi.Model, x *ql.CallExpr) (sql.P, error) {
	if x.Func == ql.FuncHasEdge {
		edg, ok := x.Args[0].(*ql.Edge)
		if !ok {
			return nil, whereErr("invalid relation in %s", x)
		}
		hops, err := resolve(e.resolver, m, []string{edg.Name})
		if err != nil {
			return nil, whereErr("%s", err)
		}
		var ps []ql.Expr
		if len(x.Args) > 1 {
			ps = x.Args[1:]
		}
		var inner error
		p := sqlgraph.NeighborsP(q, hops[0].step(), func(s *sql.Selector) {
			for _, y := range ps {
				p, err := e.whereP(s, hops[0].related, y)
				if err != nil {
					inner = err
					return
				}
				s.Where(p)
			}
		})
		if inner != nil {
			return nil, inner
		}
		return p, nil
	}
	if len(x.Args) != 2 {
		return nil, whereErr("%s expects a field and a value", x)
	}
	f, ok := x.Args[0].(*ql.Field)
	if !ok || !sql.ValidIdentifier(f.Name) || strings.Contains(f.Name, ".") {
		return nil, whereErr("invalid field in %s", x)
	}
	v, ok := x.Args[1].(*ql.Value)
	if !ok {
		return nil, whereErr("%s expects a string value", x)
	}
	s, ok := v.V.(string)
	if !ok {
		return nil, whereErr("%s expects a string value", x)
	}
	column := q.C(f.Name)
	switch x.Func {
	case ql.FuncEqualFold:
		return sql.EqualFold(column, s), nil
	case ql.FuncContains:
		return sql.Contains(column, s), nil
	case ql.FuncContainsFold:
		return sql.ContainsFold(column, s), nil
	case ql.FuncHasPrefix:
		return sql.HasPrefix(column, s), nil
	case ql.FuncHasSuffix:
		return sql.HasSuffix(column, s), nil
	}
	return nil, whereErr("unsupported function %s", x.Func)
}

func whereErr(format string, a ...any) error {
	return ormapi.ValidationErrorf(ql.KeyWhereFilters, "Invalid condition: "+format+".", a...)
}

func errUnknownModel(d *edge.Descriptor) error {
	return fmt.Errorf("relation %q references unknown model %q", d.Name, d.Model)
}
