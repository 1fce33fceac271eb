package ormapi

import (
	"context"
	"slices"

	"github.com/syssam/ormapi/compiler/naming"
	"github.com/syssam/ormapi/dialect/sql"
	"github.com/syssam/ormapi/schema/edge"
	"github.com/syssam/ormapi/schema/field"
)

// Record is a stored row or a request payload, keyed by column or relation
// name.
type Record = map[string]any

// Model is the declaration surface of a resource. Generated models embed
// BaseModel and override what their table needs.
//
//	type Post struct{ ormapi.BaseModel }
//
//	func (Post) Name() string        { return "Post" }
//	func (Post) Table() string       { return "posts" }
//	func (Post) Fillable() []string  { return []string{"title", "user_id"} }
//	func (Post) ParentRelationships() edge.Relations {
//	    return edge.Relations{edge.BelongsTo("user", "User").ForeignKey("user_id")}
//	}
type Model interface {
	// Name is the unique model name used by relation descriptors.
	Name() string
	// Table is the table the model is stored in.
	Table() string
	// PrimaryKey is the primary key column.
	PrimaryKey() string
	// Fillable lists the columns a client payload may set.
	Fillable() []string
	// Rules returns the validation rules of a payload.
	Rules() field.Rules
	// FieldExtraInfo describes the columns that need special handling:
	// comparison filters, files and sanitizing.
	FieldExtraInfo() field.Infos
	// SearchableFields lists the columns matched by full-text search.
	SearchableFields() []string

	ParentRelationships() edge.Relations
	SpouseRelationships() edge.Relations
	ChildRelationships() edge.Relations

	// Listable restricts every list query to the rows visible in ctx.
	Listable(ctx context.Context, s *sql.Selector)

	// The hooks below return a privacy decision: nil, privacy.Allow or
	// privacy.Skip permit the operation, any other error denies it.
	Creatable(ctx context.Context, payload Record) error
	Readable(ctx context.Context, record Record) error
	Updatable(ctx context.Context, payload, record Record) error
	Deletable(ctx context.Context, record Record) error
}

// BaseModel provides the permissive defaults of a Model: "id" primary key,
// no relations, no rules and every hook allowing.
type BaseModel struct{}

// PrimaryKey returns "id".
func (BaseModel) PrimaryKey() string { return "id" }

// Fillable returns no columns.
func (BaseModel) Fillable() []string { return nil }

// Rules returns no rules.
func (BaseModel) Rules() field.Rules { return nil }

// FieldExtraInfo returns no field metadata.
func (BaseModel) FieldExtraInfo() field.Infos { return nil }

// SearchableFields returns no fields.
func (BaseModel) SearchableFields() []string { return nil }

// ParentRelationships returns no relations.
func (BaseModel) ParentRelationships() edge.Relations { return nil }

// SpouseRelationships returns no relations.
func (BaseModel) SpouseRelationships() edge.Relations { return nil }

// ChildRelationships returns no relations.
func (BaseModel) ChildRelationships() edge.Relations { return nil }

// Listable does not restrict list queries.
func (BaseModel) Listable(context.Context, *sql.Selector) {}

// Creatable allows.
func (BaseModel) Creatable(context.Context, Record) error { return nil }

// Readable allows.
func (BaseModel) Readable(context.Context, Record) error { return nil }

// Updatable allows.
func (BaseModel) Updatable(context.Context, Record, Record) error { return nil }

// Deletable allows.
func (BaseModel) Deletable(context.Context, Record) error { return nil }

// RelationsOf returns the relations of m for category c.
func RelationsOf(m Model, c edge.Category) edge.Relations {
	switch c {
	case edge.Parent:
		return m.ParentRelationships()
	case edge.Spouse:
		return m.SpouseRelationships()
	case edge.Child:
		return m.ChildRelationships()
	}
	return nil
}

// Relations returns every relation of m in category order: parents,
// spouses, children.
func Relations(m Model) []*edge.Descriptor {
	var ds []*edge.Descriptor
	for _, c := range edge.Categories {
		ds = append(ds, RelationsOf(m, c).Descriptors()...)
	}
	return ds
}

// Relation returns the relation of m named name.
func Relation(m Model, name string) (*edge.Descriptor, bool) {
	for _, d := range Relations(m) {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

// Fields returns the fillable columns of m followed by its primary key.
func Fields(m Model) []string {
	fields := slices.Clone(m.Fillable())
	if pk := m.PrimaryKey(); !slices.Contains(fields, pk) {
		fields = append(fields, pk)
	}
	return fields
}

// Writable returns the entries of payload that m allows to be written.
func Writable(m Model, payload Record) Record {
	out := make(Record)
	for _, f := range m.Fillable() {
		if v, ok := payload[f]; ok {
			out[f] = v
		}
	}
	return out
}

// DisplayName returns the human-readable singular name of m, used in
// response messages.
func DisplayName(m Model) string {
	return naming.DisplayName(m.Table())
}

// RouteName returns the URL segment m is served under.
func RouteName(m Model) string {
	return naming.RouteName(m.Table())
}
