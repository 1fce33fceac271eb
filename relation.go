package ormapi

import (
	"github.com/syssam/ormapi/dialect/sql/sqlgraph"
	"github.com/syssam/ormapi/schema/edge"
)

// Keys returns the columns joining owner to related through d. For
// belongsTo the owner key is the foreign key; for hasMany the related key
// is. For belongsToMany both are primary keys, referenced by the pivot.
func Keys(owner Model, d *edge.Descriptor, related Model) (ownerKey, relatedKey string) {
	switch d.Kind {
	case edge.KindBelongsTo:
		relatedKey = d.References
		if relatedKey == "" {
			relatedKey = related.PrimaryKey()
		}
		return d.ForeignKey, relatedKey
	case edge.KindHasMany:
		ownerKey = d.References
		if ownerKey == "" {
			ownerKey = owner.PrimaryKey()
		}
		return ownerKey, d.ForeignKey
	default:
		return owner.PrimaryKey(), related.PrimaryKey()
	}
}

// Step returns the graph step from the rows of owner to their related rows
// through d.
func Step(owner Model, d *edge.Descriptor, related Model) *sqlgraph.Step {
	ownerKey, relatedKey := Keys(owner, d, related)
	opts := []sqlgraph.StepOption{
		sqlgraph.From(owner.Table(), ownerKey),
		sqlgraph.To(related.Table(), relatedKey),
	}
	switch d.Kind {
	case edge.KindBelongsTo:
		opts = append(opts, sqlgraph.Edge(sqlgraph.M2O))
	case edge.KindHasMany:
		opts = append(opts, sqlgraph.Edge(sqlgraph.O2M))
	case edge.KindBelongsToMany:
		if p := d.Pivot; p != nil {
			opts = append(opts, sqlgraph.Edge(sqlgraph.M2M, p.Table, p.ForeignPivotKey, p.RelatedPivotKey))
		} else {
			opts = append(opts, sqlgraph.Edge(sqlgraph.M2M))
		}
	}
	return sqlgraph.NewStep(opts...)
}

// Pivot returns the pivot of a belongsToMany relation, keyed from the side
// of the owner.
func Pivot(d *edge.Descriptor) sqlgraph.Pivot {
	if d.Pivot == nil {
		return sqlgraph.Pivot{}
	}
	return sqlgraph.Pivot{Table: d.Pivot.Table, OwnerKey: d.Pivot.ForeignPivotKey, RelatedKey: d.Pivot.RelatedPivotKey}
}
