// Package schema reads table metadata (ordered columns, keys and foreign
// keys) from a live database or from a DDL dump.
package schema

import (
	"cmp"
	"slices"
)

// KeyRole is the role a column plays in the keys of its table.
type KeyRole string

// Key roles, as reported by the MySQL information schema.
const (
	KeyNone     KeyRole = ""
	KeyPrimary  KeyRole = "PRI"
	KeyUnique   KeyRole = "UNI"
	KeyMultiple KeyRole = "MUL"
)

// Column describes a table column.
type Column struct {
	Name          string
	Type          string // raw database type
	Nullable      bool
	AutoIncrement bool
	Key           KeyRole
	Default       string
	HasDefault    bool
}

// ForeignKey describes a single-column foreign key. Composite constraints
// are reported as one ForeignKey per column pair.
type ForeignKey struct {
	Symbol    string
	Column    string
	RefTable  string
	RefColumn string
}

// Index describes a table index.
type Index struct {
	Name    string
	Unique  bool
	Columns []string
}

// Table describes a table. Columns keep their schema order and foreign
// keys are ordered by the position of their column.
type Table struct {
	Name        string
	Columns     []*Column
	PrimaryKey  []string
	ForeignKeys []*ForeignKey
	Indexes     []*Index
}

// Column returns the column named name.
func (t *Table) Column(name string) (*Column, bool) {
	i := slices.IndexFunc(t.Columns, func(c *Column) bool { return c.Name == name })
	if i < 0 {
		return nil, false
	}
	return t.Columns[i], true
}

// ForeignKey returns the foreign key declared on column.
func (t *Table) ForeignKey(column string) (*ForeignKey, bool) {
	i := slices.IndexFunc(t.ForeignKeys, func(fk *ForeignKey) bool { return fk.Column == column })
	if i < 0 {
		return nil, false
	}
	return t.ForeignKeys[i], true
}

// AutoIncrement returns the auto-increment column of the table, if any.
func (t *Table) AutoIncrement() (*Column, bool) {
	i := slices.IndexFunc(t.Columns, func(c *Column) bool { return c.AutoIncrement })
	if i < 0 {
		return nil, false
	}
	return t.Columns[i], true
}

func (t *Table) position(column string) int {
	return slices.IndexFunc(t.Columns, func(c *Column) bool { return c.Name == column })
}

// finalize orders the foreign keys by column position and derives the key
// role of every column.
func (t *Table) finalize() {
	slices.SortStableFunc(t.ForeignKeys, func(a, b *ForeignKey) int {
		return cmp.Compare(t.position(a.Column), t.position(b.Column))
	})
	for _, c := range t.Columns {
		switch {
		case slices.Contains(t.PrimaryKey, c.Name):
			c.Key = KeyPrimary
		case slices.ContainsFunc(t.Indexes, func(idx *Index) bool {
			return idx.Unique && len(idx.Columns) == 1 && idx.Columns[0] == c.Name
		}):
			c.Key = KeyUnique
		case slices.ContainsFunc(t.Indexes, func(idx *Index) bool {
			return len(idx.Columns) > 0 && idx.Columns[0] == c.Name
		}):
			c.Key = KeyMultiple
		default:
			if _, ok := t.ForeignKey(c.Name); ok {
				c.Key = KeyMultiple
			}
		}
	}
}

// Reference is an incoming foreign key: FK is declared on Table.
type Reference struct {
	Table *Table
	FK    *ForeignKey
}

// Snapshot is the metadata of a set of tables at one point in time.
type Snapshot struct {
	Tables []*Table // ordered by name
}

// NewSnapshot returns a snapshot of tables, ordered by name.
func NewSnapshot(tables []*Table) *Snapshot {
	tables = slices.Clone(tables)
	slices.SortFunc(tables, func(a, b *Table) int { return cmp.Compare(a.Name, b.Name) })
	for _, t := range tables {
		t.finalize()
	}
	return &Snapshot{Tables: tables}
}

// Table returns the table named name.
func (s *Snapshot) Table(name string) (*Table, bool) {
	i, ok := slices.BinarySearchFunc(s.Tables, name, func(t *Table, name string) int {
		return cmp.Compare(t.Name, name)
	})
	if !ok {
		return nil, false
	}
	return s.Tables[i], true
}

// Names returns the table names in lexical order.
func (s *Snapshot) Names() []string {
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.Name
	}
	return names
}

// Incoming returns the foreign keys referencing table, ordered by the name
// of the declaring table and then by column position.
func (s *Snapshot) Incoming(table string) []Reference {
	var refs []Reference
	for _, t := range s.Tables {
		for _, fk := range t.ForeignKeys {
			if fk.RefTable == table {
				refs = append(refs, Reference{Table: t, FK: fk})
			}
		}
	}
	return refs
}
