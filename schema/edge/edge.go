package edge

import (
	"context"
	"fmt"
)

// Kind is the relationship kind of a descriptor.
type Kind uint8

// Relationship kinds.
const (
	KindBelongsTo Kind = iota + 1
	KindHasMany
	KindBelongsToMany
)

// String returns the conventional name of the kind.
func (k Kind) String() string {
	switch k {
	case KindBelongsTo:
		return "belongsTo"
	case KindHasMany:
		return "hasMany"
	case KindBelongsToMany:
		return "belongsToMany"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Category returns the relationship category the kind is declared in.
func (k Kind) Category() Category {
	switch k {
	case KindBelongsTo:
		return Parent
	case KindHasMany:
		return Child
	case KindBelongsToMany:
		return Spouse
	}
	return 0
}

// Category groups relations on a model.
type Category uint8

// Relationship categories.
const (
	Parent Category = iota + 1
	Spouse
	Child
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case Parent:
		return "parent"
	case Spouse:
		return "spouse"
	case Child:
		return "child"
	default:
		return fmt.Sprintf("Category(%d)", c)
	}
}

// Categories lists the categories in traversal order.
var Categories = []Category{Parent, Spouse, Child}

// Predicate decides whether owner may be linked to, or unlinked from,
// related. It returns a privacy decision.
type Predicate func(ctx context.Context, owner, related map[string]any) error

// MessageFunc produces the user-visible message of a denied predicate.
type MessageFunc func(owner, related map[string]any) string

// Config holds the per-relation authorization options.
type Config struct {
	Attachable    Predicate
	Detachable    Predicate
	AttachMessage MessageFunc
	DetachMessage MessageFunc
}

// Pivot describes the join table of a belongsToMany relation.
type Pivot struct {
	Table string
	// ForeignPivotKey references the owning model.
	ForeignPivotKey string
	// RelatedPivotKey references the related model.
	RelatedPivotKey string
}

// Descriptor describes a single relation of a model.
type Descriptor struct {
	Kind  Kind
	Name  string
	Model string // related model name
	// ForeignKey is the column holding the reference: on the owner for
	// belongsTo, on the related model for hasMany. Unused for belongsToMany.
	ForeignKey string
	// References is the referenced column: the related key for belongsTo,
	// the owner key for hasMany and belongsToMany. Empty means the primary
	// key of the referenced model.
	References string
	Pivot      *Pivot
	Config     Config
}

// Descriptor implements the Edge interface.
func (d *Descriptor) Descriptor() *Descriptor { return d }

// Err reports an incomplete declaration.
func (d *Descriptor) Err() error {
	switch {
	case d.Name == "":
		return fmt.Errorf("edge: %s relation without a name", d.Kind)
	case d.Model == "":
		return fmt.Errorf("edge: relation %q without a related model", d.Name)
	case d.Kind == KindBelongsToMany && (d.Pivot == nil || d.Pivot.Table == ""):
		return fmt.Errorf("edge: belongsToMany relation %q without a pivot table", d.Name)
	case d.Kind != KindBelongsToMany && d.ForeignKey == "":
		return fmt.Errorf("edge: %s relation %q without a foreign key", d.Kind, d.Name)
	}
	return nil
}

// Edge is implemented by relation builders and descriptors.
type Edge interface {
	Descriptor() *Descriptor
}

// Relations is an ordered list of relations of one category.
type Relations []Edge

// Get returns the descriptor named name.
func (r Relations) Get(name string) (*Descriptor, bool) {
	for _, e := range r {
		if d := e.Descriptor(); d.Name == name {
			return d, true
		}
	}
	return nil, false
}

// Names returns the relation names in declaration order.
func (r Relations) Names() []string {
	names := make([]string, len(r))
	for i, e := range r {
		names[i] = e.Descriptor().Name
	}
	return names
}

// Descriptors returns the descriptors in declaration order.
func (r Relations) Descriptors() []*Descriptor {
	ds := make([]*Descriptor, len(r))
	for i, e := range r {
		ds[i] = e.Descriptor()
	}
	return ds
}

// Builder for relation descriptors.
type Builder struct {
	desc *Descriptor
}

// BelongsTo declares a many-to-one relation: the owner holds a foreign key
// referencing one row of model.
func BelongsTo(name, model string) *Builder {
	return &Builder{desc: &Descriptor{Kind: KindBelongsTo, Name: name, Model: model}}
}

// HasMany declares a one-to-many relation: rows of model hold a foreign key
// referencing the owner.
func HasMany(name, model string) *Builder {
	return &Builder{desc: &Descriptor{Kind: KindHasMany, Name: name, Model: model}}
}

// BelongsToMany declares a many-to-many relation through a pivot table.
func BelongsToMany(name, model string) *Builder {
	return &Builder{desc: &Descriptor{Kind: KindBelongsToMany, Name: name, Model: model}}
}

// ForeignKey sets the foreign key column.
func (b *Builder) ForeignKey(column string) *Builder {
	b.desc.ForeignKey = column
	return b
}

// References sets the referenced column when it is not the primary key.
func (b *Builder) References(column string) *Builder {
	b.desc.References = column
	return b
}

// Through sets the pivot table and its two key columns.
func (b *Builder) Through(table, foreignPivotKey, relatedPivotKey string) *Builder {
	b.desc.Pivot = &Pivot{Table: table, ForeignPivotKey: foreignPivotKey, RelatedPivotKey: relatedPivotKey}
	return b
}

// Attachable sets the predicate consulted before linking a record.
func (b *Builder) Attachable(p Predicate) *Builder {
	b.desc.Config.Attachable = p
	return b
}

// Detachable sets the predicate consulted before unlinking a record.
func (b *Builder) Detachable(p Predicate) *Builder {
	b.desc.Config.Detachable = p
	return b
}

// AttachMessage sets the message producer for denied attaches.
func (b *Builder) AttachMessage(f MessageFunc) *Builder {
	b.desc.Config.AttachMessage = f
	return b
}

// DetachMessage sets the message producer for denied detaches.
func (b *Builder) DetachMessage(f MessageFunc) *Builder {
	b.desc.Config.DetachMessage = f
	return b
}

// Descriptor implements the Edge interface.
func (b *Builder) Descriptor() *Descriptor {
	return b.desc
}
