package sqlgraph

import (
	"fmt"
	"strconv"
	"strings"

	dsql "github.com/syssam/ormapi/dialect/sql"
)

// Rel is an edge relation type.
type Rel int

// Relation types.
const (
	_   Rel = iota
	M2O     // many-to-one: the source row holds the reference
	O2M     // one-to-many: the target rows hold the reference
	M2M     // many-to-many: a pivot table holds both references
)

// String returns the relation name.
func (r Rel) String() string {
	switch r {
	case M2O:
		return "M2O"
	case O2M:
		return "O2M"
	case M2M:
		return "M2M"
	}
	return "Rel(" + strconv.Itoa(int(r)) + ")"
}

// Endpoint is one side of a step: a table and the column joined on.
type Endpoint struct {
	Table  string
	Column string
}

// Step describes how to move from rows of one table to their neighbors in
// another. For M2M steps, From.Column and To.Column are the columns
// referenced by the pivot keys.
type Step struct {
	Rel   Rel
	From  Endpoint
	To    Endpoint
	Pivot *Pivot
}

// StepOption configures a Step.
type StepOption func(*Step)

// From sets the source of the step.
func From(table, column string) StepOption {
	return func(s *Step) { s.From = Endpoint{Table: table, Column: column} }
}

// To sets the target of the step.
func To(table, column string) StepOption {
	return func(s *Step) { s.To = Endpoint{Table: table, Column: column} }
}

// Edge sets the relation type of the step. M2M steps take the pivot table
// and its source and target key columns.
func Edge(rel Rel, pivot ...string) StepOption {
	return func(s *Step) {
		s.Rel = rel
		if rel == M2M && len(pivot) == 3 {
			s.Pivot = &Pivot{Table: pivot[0], OwnerKey: pivot[1], RelatedKey: pivot[2]}
		}
	}
}

// NewStep returns a step built from the options.
//
//	step := sqlgraph.NewStep(
//	    sqlgraph.From("users", "id"),
//	    sqlgraph.To("posts", "user_id"),
//	    sqlgraph.Edge(sqlgraph.O2M),
//	)
func NewStep(opts ...StepOption) *Step {
	s := &Step{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Err reports an incomplete step.
func (s *Step) Err() error {
	switch {
	case s.Rel < M2O || s.Rel > M2M:
		return fmt.Errorf("sqlgraph: invalid relation %s", s.Rel)
	case s.From.Table == "" || s.From.Column == "" || s.To.Table == "" || s.To.Column == "":
		return fmt.Errorf("sqlgraph: incomplete %s step", s.Rel)
	case s.Rel == M2M && s.Pivot == nil:
		return fmt.Errorf("sqlgraph: M2M step from %s to %s without a pivot table", s.From.Table, s.To.Table)
	}
	return nil
}

// NextAlias returns the alias of a sub-select nested inside q: "t1" for a
// top-level selector, "t<n+1>" inside "t<n>".
func NextAlias(q *dsql.Selector) string {
	if n, err := strconv.Atoi(strings.TrimPrefix(q.Alias(), "t")); err == nil && strings.HasPrefix(q.Alias(), "t") {
		return "t" + strconv.Itoa(n+1)
	}
	return "t1"
}

// HasNeighbors restricts q to rows with at least one neighbor through s.
func HasNeighbors(q *dsql.Selector, s *Step) {
	HasNeighborsWith(q, s, nil)
}

// HasNeighborsWith restricts q to rows with at least one neighbor through s
// matching pred. The selector passed to pred reads the target table.
func HasNeighborsWith(q *dsql.Selector, s *Step, pred func(*dsql.Selector)) {
	q.Where(NeighborsP(q, s, pred))
}

// NeighborsP returns the EXISTS predicate used by HasNeighborsWith.
func NeighborsP(q *dsql.Selector, s *Step, pred func(*dsql.Selector)) dsql.P {
	if err := s.Err(); err != nil {
		return func(b *dsql.Builder) { b.AddError(err) }
	}
	if s.Rel != M2M {
		to := dsql.SelectTable(s.To.Table, NextAlias(q)).SetDialect(q.Dialect())
		to.Where(dsql.ColumnsEQ(to.C(s.To.Column), q.C(s.From.Column)))
		if pred != nil {
			pred(to)
		}
		return dsql.Exists(to)
	}
	pivot := dsql.SelectTable(s.Pivot.Table, NextAlias(q)).SetDialect(q.Dialect())
	pivot.Where(dsql.ColumnsEQ(pivot.C(s.Pivot.OwnerKey), q.C(s.From.Column)))
	to := dsql.SelectTable(s.To.Table, NextAlias(pivot)).SetDialect(q.Dialect())
	to.Where(dsql.ColumnsEQ(to.C(s.To.Column), pivot.C(s.Pivot.RelatedKey)))
	if pred != nil {
		pred(to)
	}
	pivot.Where(dsql.Exists(to))
	return dsql.Exists(pivot)
}

// NeighborSelect returns a sub-select over the single neighbor of the row
// of q through an M2O step, limited to one row. Callers set its columns;
// it is used to order rows by a column of their parent:
//
//	to, err := sqlgraph.NeighborSelect(q, step)
//	q.OrderExpr(to.Columns(to.C("name")).Build, false)
func NeighborSelect(q *dsql.Selector, s *Step) (*dsql.Selector, error) {
	if err := s.Err(); err != nil {
		return nil, err
	}
	if s.Rel != M2O {
		return nil, fmt.Errorf("sqlgraph: %s step from %s to %s has no single neighbor", s.Rel, s.From.Table, s.To.Table)
	}
	to := dsql.SelectTable(s.To.Table, NextAlias(q)).SetDialect(q.Dialect())
	to.Where(dsql.ColumnsEQ(to.C(s.To.Column), q.C(s.From.Column))).Limit(1)
	return to, nil
}
