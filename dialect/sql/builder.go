package sql

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/syssam/ormapi/dialect"
)

// validIdentifierRe matches table and column names, optionally qualified
// with a table or alias prefix.
var validIdentifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)?$`)

// isValidIdentifier reports if s can be used as a (qualified) identifier.
func isValidIdentifier(s string) bool {
	return s != "" && len(s) <= 128 && validIdentifierRe.MatchString(s)
}

// ValidIdentifier reports whether s is a safe table or column reference.
func ValidIdentifier(s string) bool { return isValidIdentifier(s) }

// Querier wraps the basic Query method that is implemented
// by the different builders in this file.
type Querier interface {
	// Query returns the query representation of the element
	// and its arguments (if any).
	Query() (string, []any)
}

// Builder is the base query builder for the sql dsl. Predicates and
// sub-selects write into the same Builder, which keeps Postgres
// placeholders numbered across the whole statement.
type Builder struct {
	sb      *strings.Builder
	dialect string
	args    []any
	errs    []error
}

// NewBuilder returns an empty builder for the given dialect.
func NewBuilder(dialect string) *Builder {
	return &Builder{sb: &strings.Builder{}, dialect: dialect}
}

// Dialect returns the dialect of the builder.
func (b *Builder) Dialect() string { return b.dialect }

// WriteString writes s verbatim.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// WriteByte writes a single byte.
func (b *Builder) WriteByte(c byte) *Builder {
	b.sb.WriteByte(c)
	return b
}

// Pad adds a space to the query.
func (b *Builder) Pad() *Builder {
	return b.WriteByte(' ')
}

// Quote quotes the given identifier with the dialect quoting characters.
// Qualified identifiers (alias.column) are quoted per part.
func (b *Builder) Quote(ident string) string {
	q := `"`
	if b.dialect == dialect.MySQL {
		q = "`"
	}
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		parts[i] = q + p + q
	}
	return strings.Join(parts, ".")
}

// Ident writes a quoted identifier. Invalid identifiers are recorded as
// builder errors and never written.
func (b *Builder) Ident(ident string) *Builder {
	if !isValidIdentifier(ident) {
		b.AddError(fmt.Errorf("dialect/sql: invalid identifier %q", ident))
		return b
	}
	return b.WriteString(b.Quote(ident))
}

// IdentComma writes a comma separated list of quoted identifiers.
func (b *Builder) IdentComma(idents ...string) *Builder {
	for i, ident := range idents {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Ident(ident)
	}
	return b
}

// Arg appends an input argument and writes its placeholder.
func (b *Builder) Arg(a any) *Builder {
	b.args = append(b.args, a)
	if b.dialect == dialect.Postgres {
		b.WriteString("$" + strconv.Itoa(len(b.args)))
		return b
	}
	return b.WriteByte('?')
}

// Args appends a list of arguments, comma separated.
func (b *Builder) Args(a ...any) *Builder {
	for i := range a {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Arg(a[i])
	}
	return b
}

// Nested wraps the output of f with parentheses.
func (b *Builder) Nested(f func(*Builder)) *Builder {
	b.WriteByte('(')
	f(b)
	return b.WriteByte(')')
}

// AddError appends an error to the builder errors.
func (b *Builder) AddError(err error) *Builder {
	if err != nil {
		b.errs = append(b.errs, err)
	}
	return b
}

// Err returns a concatenated error of all errors encountered during
// the query-building, or were added manually by calling AddError.
func (b *Builder) Err() error {
	return errors.Join(b.errs...)
}

// String returns the accumulated string.
func (b *Builder) String() string {
	return b.sb.String()
}

// Query implements the Querier interface.
func (b *Builder) Query() (string, []any) {
	return b.String(), b.args
}

// Selector is a builder for the SELECT statement.
type Selector struct {
	dialect string
	table   string
	as      string
	columns []string
	exprs   []func(*Builder)
	where   []P
	order   []order
	limit   *int
	offset  *int
	count   bool
}

type order struct {
	column string
	expr   func(*Builder)
	desc   bool
}

// Select returns a new selector for the SELECT statement.
//
//	sql.Select("id", "title").From("posts").Where(sql.EQ("user_id", 1))
func Select(columns ...string) *Selector {
	return &Selector{columns: columns}
}

// SelectTable returns a selector over table using alias as its name inside
// the statement.
func SelectTable(table, alias string) *Selector {
	return &Selector{table: table, as: alias}
}

// From sets the source table of the SELECT statement.
func (s *Selector) From(table string) *Selector {
	s.table = table
	return s
}

// As sets the alias of the source table.
func (s *Selector) As(alias string) *Selector {
	s.as = alias
	return s
}

// Table returns the source table name.
func (s *Selector) Table() string { return s.table }

// Alias returns the table alias, or the table name when no alias is set.
func (s *Selector) Alias() string {
	if s.as != "" {
		return s.as
	}
	return s.table
}

// C returns a formatted string for a selected column from this statement.
func (s *Selector) C(column string) string {
	if strings.Contains(column, ".") {
		return column
	}
	return s.Alias() + "." + column
}

// Columns replaces the selected columns. An empty list selects all columns.
func (s *Selector) Columns(columns ...string) *Selector {
	s.columns = columns
	return s
}

// SelectedColumns returns the selected columns.
func (s *Selector) SelectedColumns() []string { return s.columns }

// AppendSelectExpr appends a raw expression to the selected columns.
func (s *Selector) AppendSelectExpr(f func(*Builder)) *Selector {
	s.exprs = append(s.exprs, f)
	return s
}

// Where appends a predicate to the statement. Multiple calls are AND-ed.
func (s *Selector) Where(p P) *Selector {
	if p != nil {
		s.where = append(s.where, p)
	}
	return s
}

// HasWhere reports whether any predicate was added.
func (s *Selector) HasWhere() bool { return len(s.where) > 0 }

// OrderBy appends an ordering term on a column.
func (s *Selector) OrderBy(column string, desc bool) *Selector {
	s.order = append(s.order, order{column: column, desc: desc})
	return s
}

// OrderExpr appends an ordering term on a raw expression, such as a
// correlated sub-select.
func (s *Selector) OrderExpr(f func(*Builder), desc bool) *Selector {
	s.order = append(s.order, order{expr: f, desc: desc})
	return s
}

// Limit adds the LIMIT clause.
func (s *Selector) Limit(limit int) *Selector {
	s.limit = &limit
	return s
}

// Offset adds the OFFSET clause.
func (s *Selector) Offset(offset int) *Selector {
	s.offset = &offset
	return s
}

// SetDialect sets the dialect used to render the statement.
func (s *Selector) SetDialect(dialect string) *Selector {
	s.dialect = dialect
	return s
}

// Dialect returns the dialect of the statement.
func (s *Selector) Dialect() string { return s.dialect }

// Clone returns a shallow copy of the selector that can be modified
// without affecting the original.
func (s *Selector) Clone() *Selector {
	c := *s
	c.columns = append([]string(nil), s.columns...)
	c.exprs = append(([]func(*Builder))(nil), s.exprs...)
	c.where = append([]P(nil), s.where...)
	c.order = append([]order(nil), s.order...)
	return &c
}

// CountSelector returns a copy of the statement selecting COUNT(*) without
// ordering and paging.
func (s *Selector) CountSelector() *Selector {
	c := s.Clone()
	c.count = true
	c.order = nil
	c.limit = nil
	c.offset = nil
	return c
}

// Query returns the statement and its arguments.
func (s *Selector) Query() (string, []any) {
	b := NewBuilder(s.dialect)
	s.build(b)
	return b.Query()
}

// QueryErr is like Query but also returns rendering errors, such as
// invalid identifiers.
func (s *Selector) QueryErr() (string, []any, error) {
	b := NewBuilder(s.dialect)
	s.build(b)
	q, args := b.Query()
	return q, args, b.Err()
}

// Build renders the statement into b, sharing its argument list.
func (s *Selector) Build(b *Builder) {
	s.build(b)
}

func (s *Selector) build(b *Builder) {
	b.WriteString("SELECT ")
	switch {
	case s.count:
		b.WriteString("COUNT(*)")
	case len(s.columns) == 0 && len(s.exprs) == 0:
		if s.as != "" {
			b.Ident(s.as).WriteString(".*")
		} else {
			b.WriteByte('*')
		}
	default:
		b.IdentComma(s.columns...)
		for i, f := range s.exprs {
			if i > 0 || len(s.columns) > 0 {
				b.WriteString(", ")
			}
			f(b)
		}
	}
	b.WriteString(" FROM ").Ident(s.table)
	if s.as != "" {
		b.WriteString(" AS ").Ident(s.as)
	}
	if len(s.where) > 0 {
		b.WriteString(" WHERE ")
		And(s.where...)(b)
	}
	if len(s.order) > 0 {
		b.WriteString(" ORDER BY ")
		for i, o := range s.order {
			if i > 0 {
				b.WriteString(", ")
			}
			if o.expr != nil {
				b.Nested(o.expr)
			} else {
				b.Ident(o.column)
			}
			if o.desc {
				b.WriteString(" DESC")
			} else {
				b.WriteString(" ASC")
			}
		}
	}
	if s.limit != nil {
		b.WriteString(" LIMIT ").WriteString(strconv.Itoa(*s.limit))
	}
	if s.offset != nil {
		if s.limit == nil {
			switch s.dialect {
			case dialect.MySQL:
				b.WriteString(" LIMIT 18446744073709551615")
			case dialect.SQLite:
				b.WriteString(" LIMIT -1")
			}
		}
		b.WriteString(" OFFSET ").WriteString(strconv.Itoa(*s.offset))
	}
}

// InsertBuilder is a builder for the INSERT statement.
type InsertBuilder struct {
	dialect   string
	table     string
	columns   []string
	values    []any
	returning string
}

// Insert creates a builder for the INSERT statement.
//
//	sql.Insert("users").Columns("name").Values("a8m").Returning("id")
func Insert(table string) *InsertBuilder {
	return &InsertBuilder{table: table}
}

// SetDialect sets the dialect used to render the statement.
func (i *InsertBuilder) SetDialect(dialect string) *InsertBuilder {
	i.dialect = dialect
	return i
}

// Set appends a column and its value.
func (i *InsertBuilder) Set(column string, v any) *InsertBuilder {
	i.columns = append(i.columns, column)
	i.values = append(i.values, v)
	return i
}

// Returning adds the RETURNING clause, rendered only for Postgres.
func (i *InsertBuilder) Returning(column string) *InsertBuilder {
	i.returning = column
	return i
}

// Query returns the statement and its arguments.
func (i *InsertBuilder) Query() (string, []any) {
	q, args, _ := i.QueryErr()
	return q, args
}

// QueryErr is like Query but also returns rendering errors.
func (i *InsertBuilder) QueryErr() (string, []any, error) {
	b := NewBuilder(i.dialect)
	i.build(b)
	q, args := b.Query()
	return q, args, b.Err()
}

func (i *InsertBuilder) build(b *Builder) {
	b.WriteString("INSERT INTO ").Ident(i.table)
	if len(i.columns) == 0 {
		switch i.dialect {
		case dialect.MySQL:
			b.WriteString(" VALUES ()")
		default:
			b.WriteString(" DEFAULT VALUES")
		}
	} else {
		b.Pad().Nested(func(b *Builder) { b.IdentComma(i.columns...) })
		b.WriteString(" VALUES ").Nested(func(b *Builder) { b.Args(i.values...) })
	}
	if i.returning != "" && i.dialect == dialect.Postgres {
		b.WriteString(" RETURNING ").Ident(i.returning)
	}
}

// UpdateBuilder is a builder for the UPDATE statement.
type UpdateBuilder struct {
	dialect string
	table   string
	columns []string
	values  []any
	where   []P
}

// Update creates a builder for the UPDATE statement.
//
//	sql.Update("users").Set("name", "foo").Where(sql.EQ("id", 1))
func Update(table string) *UpdateBuilder {
	return &UpdateBuilder{table: table}
}

// SetDialect sets the dialect used to render the statement.
func (u *UpdateBuilder) SetDialect(dialect string) *UpdateBuilder {
	u.dialect = dialect
	return u
}

// Set sets a column to a given value.
func (u *UpdateBuilder) Set(column string, v any) *UpdateBuilder {
	u.columns = append(u.columns, column)
	u.values = append(u.values, v)
	return u
}

// Empty reports whether the statement has no columns to set.
func (u *UpdateBuilder) Empty() bool { return len(u.columns) == 0 }

// Where appends a predicate. Multiple calls are AND-ed.
func (u *UpdateBuilder) Where(p P) *UpdateBuilder {
	u.where = append(u.where, p)
	return u
}

// Query returns the statement and its arguments.
func (u *UpdateBuilder) Query() (string, []any) {
	q, args, _ := u.QueryErr()
	return q, args
}

// QueryErr is like Query but also returns rendering errors.
func (u *UpdateBuilder) QueryErr() (string, []any, error) {
	b := NewBuilder(u.dialect)
	b.WriteString("UPDATE ").Ident(u.table).WriteString(" SET ")
	for i, c := range u.columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Ident(c).WriteString(" = ").Arg(u.values[i])
	}
	if len(u.where) > 0 {
		b.WriteString(" WHERE ")
		And(u.where...)(b)
	}
	q, args := b.Query()
	return q, args, b.Err()
}

// DeleteBuilder is a builder for the DELETE statement.
type DeleteBuilder struct {
	dialect string
	table   string
	where   []P
}

// Delete creates a builder for the DELETE statement.
//
//	sql.Delete("users").Where(sql.EQ("id", 1))
func Delete(table string) *DeleteBuilder {
	return &DeleteBuilder{table: table}
}

// SetDialect sets the dialect used to render the statement.
func (d *DeleteBuilder) SetDialect(dialect string) *DeleteBuilder {
	d.dialect = dialect
	return d
}

// Where appends a predicate. Multiple calls are AND-ed.
func (d *DeleteBuilder) Where(p P) *DeleteBuilder {
	d.where = append(d.where, p)
	return d
}

// Query returns the statement and its arguments.
func (d *DeleteBuilder) Query() (string, []any) {
	q, args, _ := d.QueryErr()
	return q, args
}

// QueryErr is like Query but also returns rendering errors.
func (d *DeleteBuilder) QueryErr() (string, []any, error) {
	b := NewBuilder(d.dialect)
	b.WriteString("DELETE FROM ").Ident(d.table)
	if len(d.where) > 0 {
		b.WriteString(" WHERE ")
		And(d.where...)(b)
	}
	q, args := b.Query()
	return q, args, b.Err()
}
