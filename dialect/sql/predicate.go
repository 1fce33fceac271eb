package sql

import (
	"fmt"
	"strings"

	"github.com/syssam/ormapi/dialect"
)

// P is a predicate rendered into the WHERE clause of a statement.
// Models declare their listable baseline with it:
//
//	func (Post) Listable(s *sql.Selector) {
//	    s.Where(sql.EQ(s.C("published"), true))
//	}
type P func(*Builder)

func binary(column, op string, v any) P {
	return func(b *Builder) {
		b.Ident(column).WriteString(" " + op + " ").Arg(v)
	}
}

// EQ returns a "=" predicate.
func EQ(column string, v any) P { return binary(column, "=", v) }

// NEQ returns a "<>" predicate.
func NEQ(column string, v any) P { return binary(column, "<>", v) }

// GT returns a ">" predicate.
func GT(column string, v any) P { return binary(column, ">", v) }

// GTE returns a ">=" predicate.
func GTE(column string, v any) P { return binary(column, ">=", v) }

// LT returns a "<" predicate.
func LT(column string, v any) P { return binary(column, "<", v) }

// LTE returns a "<=" predicate.
func LTE(column string, v any) P { return binary(column, "<=", v) }

// comparisonOps maps filter operator names to SQL operators.
var comparisonOps = map[string]string{
	"gt": ">",
	"ge": ">=",
	"lt": "<",
	"le": "<=",
	"eq": "=",
	"ne": "<>",
}

// ComparisonOp returns the SQL operator for a filter operator name
// (gt, ge, lt, le, eq, ne).
func ComparisonOp(name string) (string, bool) {
	op, ok := comparisonOps[name]
	return op, ok
}

// Compare returns a predicate for one of the named comparison operators.
func Compare(column, name string, v any) P {
	op, ok := comparisonOps[name]
	if !ok {
		return func(b *Builder) {
			b.AddError(fmt.Errorf("dialect/sql: unknown comparison operator %q", name))
		}
	}
	return binary(column, op, v)
}

// In returns an "IN" predicate. An empty list never matches.
func In(column string, vs ...any) P {
	return func(b *Builder) {
		if len(vs) == 0 {
			b.WriteString("1 = 0")
			return
		}
		b.Ident(column).WriteString(" IN ").Nested(func(b *Builder) { b.Args(vs...) })
	}
}

// NotIn returns a "NOT IN" predicate. An empty list always matches.
func NotIn(column string, vs ...any) P {
	return func(b *Builder) {
		if len(vs) == 0 {
			b.WriteString("1 = 1")
			return
		}
		b.Ident(column).WriteString(" NOT IN ").Nested(func(b *Builder) { b.Args(vs...) })
	}
}

// IsNull returns an "IS NULL" predicate.
func IsNull(column string) P {
	return func(b *Builder) { b.Ident(column).WriteString(" IS NULL") }
}

// NotNull returns an "IS NOT NULL" predicate.
func NotNull(column string) P {
	return func(b *Builder) { b.Ident(column).WriteString(" IS NOT NULL") }
}

// ColumnsEQ returns a predicate comparing two columns, used for correlating
// sub-selects with their outer statement.
func ColumnsEQ(c1, c2 string) P {
	return func(b *Builder) {
		b.Ident(c1).WriteString(" = ").Ident(c2)
	}
}

// ContainsFold returns a case-insensitive partial match predicate.
func ContainsFold(column, sub string) P {
	return func(b *Builder) {
		pattern := "%" + escapeLike(sub) + "%"
		switch b.Dialect() {
		case dialect.Postgres:
			b.Ident(column).WriteString("::text ILIKE ").Arg(pattern)
		case dialect.MySQL:
			b.WriteString("LOWER(").Ident(column).WriteString(") LIKE ").Arg(strings.ToLower(pattern))
		default:
			b.WriteString("LOWER(").Ident(column).WriteString(") LIKE ").Arg(strings.ToLower(pattern)).WriteString(` ESCAPE '\'`)
		}
	}
}

// Contains returns a partial match predicate.
func Contains(column, sub string) P {
	return like(column, "%"+escapeLike(sub)+"%")
}

// HasPrefix returns a prefix match predicate.
func HasPrefix(column, prefix string) P {
	return like(column, escapeLike(prefix)+"%")
}

// HasSuffix returns a suffix match predicate.
func HasSuffix(column, suffix string) P {
	return like(column, "%"+escapeLike(suffix))
}

func like(column, pattern string) P {
	return func(b *Builder) {
		b.Ident(column).WriteString(" LIKE ").Arg(pattern)
		if b.Dialect() == dialect.SQLite {
			b.WriteString(` ESCAPE '\'`)
		}
	}
}

// ColumnsOp returns a predicate comparing two columns with one of the named
// comparison operators.
func ColumnsOp(c1, name, c2 string) P {
	return func(b *Builder) {
		op, ok := comparisonOps[name]
		if !ok {
			b.AddError(fmt.Errorf("dialect/sql: unknown comparison operator %q", name))
			return
		}
		b.Ident(c1).WriteString(" " + op + " ").Ident(c2)
	}
}

// EqualFold returns a predicate comparing a column with v ignoring case and
// surrounding whitespace.
func EqualFold(column, v string) P {
	return func(b *Builder) {
		b.WriteString("LOWER(TRIM(").Ident(column).WriteString(")) = ").Arg(strings.ToLower(strings.TrimSpace(v)))
	}
}

// escapeLike escapes the LIKE wildcards of s using a backslash, which is
// the default escape character of MySQL and Postgres.
func escapeLike(s string) string {
	if !strings.ContainsAny(s, `%_\`) {
		return s
	}
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// And groups predicates with the AND operator.
func And(preds ...P) P {
	return join("AND", preds)
}

// Or groups predicates with the OR operator.
func Or(preds ...P) P {
	return join("OR", preds)
}

func join(op string, preds []P) P {
	return func(b *Builder) {
		switch len(preds) {
		case 0:
			if op == "AND" {
				b.WriteString("1 = 1")
			} else {
				b.WriteString("1 = 0")
			}
			return
		case 1:
			preds[0](b)
			return
		}
		for i, p := range preds {
			if i > 0 {
				b.WriteString(" " + op + " ")
			}
			b.Nested(p)
		}
	}
}

// Not negates a predicate.
func Not(p P) P {
	return func(b *Builder) {
		b.WriteString("NOT ").Nested(p)
	}
}

// Exists returns an "EXISTS" predicate over a sub-select.
func Exists(s *Selector) P {
	return func(b *Builder) {
		b.WriteString("EXISTS ").Nested(s.Build)
	}
}

// ExprP returns a predicate from a raw expression. Each "?" in expr is
// replaced by the dialect placeholder of the corresponding argument.
func ExprP(expr string, args ...any) P {
	return func(b *Builder) {
		parts := strings.Split(expr, "?")
		if len(parts)-1 != len(args) {
			b.AddError(fmt.Errorf("dialect/sql: expression %q expects %d args, got %d", expr, len(parts)-1, len(args)))
			return
		}
		for i, part := range parts {
			b.WriteString(part)
			if i < len(args) {
				b.Arg(args[i])
			}
		}
	}
}

// FullText returns a full-text search predicate over columns. MySQL uses
// MATCH ... AGAINST, Postgres a tsvector built from the columns; other
// dialects fall back to OR-ed partial matches.
func FullText(columns []string, query string) P {
	return func(b *Builder) {
		if len(columns) == 0 {
			b.WriteString("1 = 0")
			return
		}
		switch b.Dialect() {
		case dialect.MySQL:
			b.WriteString("MATCH").Nested(func(b *Builder) { b.IdentComma(columns...) })
			b.WriteString(" AGAINST ").Nested(func(b *Builder) {
				b.Arg(query).WriteString(" IN NATURAL LANGUAGE MODE")
			})
		case dialect.Postgres:
			b.WriteString("to_tsvector('simple', ")
			for i, c := range columns {
				if i > 0 {
					b.WriteString(" || ' ' || ")
				}
				b.WriteString("coalesce(").Ident(c).WriteString("::text, '')")
			}
			b.WriteString(") @@ plainto_tsquery('simple', ").Arg(query).WriteByte(')')
		default:
			preds := make([]P, len(columns))
			for i, c := range columns {
				preds[i] = ContainsFold(c, query)
			}
			Or(preds...)(b)
		}
	}
}
