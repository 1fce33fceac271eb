package schema

import (
	"fmt"
	"strings"
)

// Issue is a problem found in a table that affects relationship inference
// or record operations.
type Issue struct {
	Table   string
	Column  string
	Message string
}

func (e *Issue) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Message)
}

// Report holds the results of a snapshot check. Errors make a table
// unusable as a model, warnings degrade what is inferred for it.
type Report struct {
	Errors   []*Issue
	Warnings []*Issue
}

// HasErrors returns true if there are any errors.
func (r *Report) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any warnings.
func (r *Report) HasWarnings() bool {
	return len(r.Warnings) > 0
}

func (r *Report) errorf(t *Table, column, format string, a ...any) {
	r.Errors = append(r.Errors, &Issue{Table: t.Name, Column: column, Message: fmt.Sprintf(format, a...)})
}

func (r *Report) warnf(t *Table, column, format string, a ...any) {
	r.Warnings = append(r.Warnings, &Issue{Table: t.Name, Column: column, Message: fmt.Sprintf(format, a...)})
}

// String returns a human-readable summary of the report.
func (r *Report) String() string {
	var sb strings.Builder
	if len(r.Errors) > 0 {
		sb.WriteString("Errors:\n")
		for _, e := range r.Errors {
			sb.WriteString("  - ")
			sb.WriteString(e.Error())
			sb.WriteString("\n")
		}
	}
	if len(r.Warnings) > 0 {
		sb.WriteString("Warnings:\n")
		for _, w := range r.Warnings {
			sb.WriteString("  - ")
			sb.WriteString(w.Error())
			sb.WriteString("\n")
		}
	}
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}
	return sb.String()
}

// ValidateTable checks a single table definition.
func ValidateTable(t *Table) *Report {
	r := &Report{}
	switch len(t.PrimaryKey) {
	case 0:
		r.warnf(t, "", "table has no primary key; records cannot be addressed by id")
	case 1:
	default:
		r.warnf(t, "", "composite primary key (%s); only the first column is used as id", strings.Join(t.PrimaryKey, ", "))
	}

	names := make(map[string]bool)
	auto := 0
	for _, c := range t.Columns {
		if names[c.Name] {
			r.errorf(t, c.Name, "duplicate column name")
		}
		names[c.Name] = true
		if c.AutoIncrement {
			auto++
		}
	}
	if auto > 1 {
		r.errorf(t, "", "table has %d auto-increment columns", auto)
	}

	idxNames := make(map[string]bool)
	for _, idx := range t.Indexes {
		if idx.Name != "" && idxNames[idx.Name] {
			r.errorf(t, "", "duplicate index name: %s", idx.Name)
		}
		idxNames[idx.Name] = true
		for _, col := range idx.Columns {
			if !names[col] {
				r.errorf(t, "", "index %q references non-existent column %q", idx.Name, col)
			}
		}
	}

	for _, fk := range t.ForeignKeys {
		if !names[fk.Column] {
			r.errorf(t, "", "foreign key references non-existent column %q", fk.Column)
		}
	}
	return r
}

// ValidateSchema checks every table of s and the targets of their foreign
// keys.
func ValidateSchema(s *Snapshot) *Report {
	r := &Report{}
	seen := make(map[string]bool)
	for _, t := range s.Tables {
		if seen[t.Name] {
			r.errorf(t, "", "duplicate table name")
		}
		seen[t.Name] = true

		tr := ValidateTable(t)
		r.Errors = append(r.Errors, tr.Errors...)
		r.Warnings = append(r.Warnings, tr.Warnings...)
	}
	for _, t := range s.Tables {
		for _, fk := range t.ForeignKeys {
			ref, ok := s.Table(fk.RefTable)
			if !ok {
				r.warnf(t, fk.Column, "foreign key references unknown table %q; relation is omitted", fk.RefTable)
				continue
			}
			if _, ok := ref.Column(fk.RefColumn); !ok {
				r.errorf(t, fk.Column, "foreign key references non-existent column %s.%s", fk.RefTable, fk.RefColumn)
				continue
			}
			if len(ref.PrimaryKey) == 1 && ref.PrimaryKey[0] != fk.RefColumn {
				r.warnf(t, fk.Column, "foreign key references %s.%s, which is not the primary key", fk.RefTable, fk.RefColumn)
			}
		}
	}
	return r
}
