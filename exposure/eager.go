package exposure

import (
	"context"
	"slices"
	"strings"

	"github.com/syssam/ormapi"
	"github.com/syssam/ormapi/contrib/dataloader"
	"github.com/syssam/ormapi/dialect/sql"
	"github.com/syssam/ormapi/dialect/sql/sqlgraph"
	"github.com/syssam/ormapi/privacy"
	ql "github.com/syssam/ormapi/querylanguage"
	"github.com/syssam/ormapi/schema/edge"
)

// include is a tree of requested relations.
type include struct {
	order    []string
	children map[string]*include
}

func (n *include) child(name string) *include {
	if c, ok := n.children[name]; ok {
		return c
	}
	if n.children == nil {
		n.children = make(map[string]*include)
	}
	c := &include{}
	n.children[name] = c
	n.order = append(n.order, name)
	return c
}

// includes builds the include tree of the requested relation paths. Every
// path must be exposed.
func includes(ex *Exposure, paths []string) (*include, error) {
	root := &include{}
	for _, path := range paths {
		if !ex.HasRelation(path) {
			return nil, ormapi.ValidationErrorf(ql.KeyInclude, "Including %s is not allowed.", path)
		}
		n := root
		for _, name := range strings.Split(path, ".") {
			n = n.child(name)
		}
	}
	return root, nil
}

// load attaches the included relations to records, one query per relation
// and chunk of keys. belongsTo relations hold a record or nil, the others a
// list of records.
func (e *Engine) load(ctx context.Context, st *sqlgraph.Store, m ormapi.Model, records []ormapi.Record, tree *include) error {
	if len(records) == 0 {
		return nil
	}
	for _, name := range tree.order {
		d, ok := ormapi.Relation(m, name)
		if !ok {
			return ormapi.ValidationErrorf(ql.KeyInclude, "Model %s has no relation %s.", m.Name(), name)
		}
		related, ok := e.resolver.Resolve(d.Model)
		if !ok {
			return ormapi.NewQueryError(m.Name(), "eager-load", errUnknownModel(d))
		}
		loaded, err := e.loadRelation(ctx, st, m, d, related, records)
		if err != nil {
			return ormapi.NewQueryError(m.Name(), "eager-load "+name, err)
		}
		e.logger.DebugContext(ctx, "relation loaded", "model", m.Name(), "relation", name, "records", len(loaded))
		if err := e.load(ctx, st, related, loaded, tree.children[name]); err != nil {
			return err
		}
	}
	return nil
}

// loadRelation attaches relation d to records and returns the distinct
// related records.
func (e *Engine) loadRelation(ctx context.Context, st *sqlgraph.Store, m ormapi.Model, d *edge.Descriptor, related ormapi.Model, records []ormapi.Record) ([]ormapi.Record, error) {
	ownerKey, relatedKey := ormapi.Keys(m, d, related)
	values := make(map[string]any)
	var keys []string
	for _, r := range records {
		if v := r[ownerKey]; v != nil {
			k := sqlgraph.Key(v)
			if _, ok := values[k]; !ok {
				values[k] = v
				keys = append(keys, k)
			}
		}
	}
	byKey := func(column string) dataloader.KeyFunc[string, ormapi.Record] {
		return func(r ormapi.Record) string { return sqlgraph.Key(r[column]) }
	}
	rows := dataloader.New(func(ctx context.Context, keys []string) ([]ormapi.Record, error) {
		q := st.Select(related.Table(), "t0")
		q.Where(sql.In(q.C(relatedKey), lookup(values, keys)...)).OrderBy(q.C(related.PrimaryKey()), false)
		related.Listable(ctx, q)
		rs, err := st.QueryRecords(ctx, q)
		if err != nil {
			return nil, err
		}
		return readable(ctx, related, rs), nil
	}, byKey(relatedKey))

	var loaded []ormapi.Record
	switch d.Kind {
	case edge.KindBelongsTo, edge.KindHasMany:
		groups, err := rows.LoadGroups(ctx, keys)
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			g := groups[sqlgraph.Key(r[ownerKey])]
			switch {
			case d.Kind == edge.KindHasMany && g == nil:
				r[d.Name] = []ormapi.Record{}
			case d.Kind == edge.KindHasMany:
				r[d.Name] = g
			case len(g) > 0:
				r[d.Name] = g[0]
			default:
				r[d.Name] = nil
			}
		}
		for _, k := range keys {
			loaded = append(loaded, groups[k]...)
		}
	case edge.KindBelongsToMany:
		p := ormapi.Pivot(d)
		links, err := dataloader.New(func(ctx context.Context, keys []string) ([]ormapi.Record, error) {
			q := st.Select(p.Table, "t0")
			q.Columns(q.C(p.OwnerKey), q.C(p.RelatedKey)).Where(sql.In(q.C(p.OwnerKey), lookup(values, keys)...))
			return st.QueryRecords(ctx, q)
		}, byKey(p.OwnerKey)).LoadGroups(ctx, keys)
		if err != nil {
			return nil, err
		}
		var ids []string
		for _, k := range keys {
			for _, l := range links[k] {
				id := sqlgraph.Key(l[p.RelatedKey])
				if _, ok := values[id]; !ok {
					values[id] = l[p.RelatedKey]
				}
				ids = append(ids, id)
			}
		}
		groups, err := rows.LoadGroups(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			list := []ormapi.Record{}
			for _, l := range links[sqlgraph.Key(r[ownerKey])] {
				if g := groups[sqlgraph.Key(l[p.RelatedKey])]; len(g) > 0 {
					list = append(list, g[0])
				}
			}
			r[d.Name] = list
		}
		for _, id := range dataloader.Unique(ids) {
			loaded = append(loaded, groups[id]...)
		}
	}
	return loaded, nil
}

// readable drops the records of m its readable hook refuses.
func readable(ctx context.Context, m ormapi.Model, records []ormapi.Record) []ormapi.Record {
	return slices.DeleteFunc(records, func(r ormapi.Record) bool {
		return !privacy.Allowed(m.Readable(ctx, r))
	})
}

// lookup returns the original values of keys.
func lookup(values map[string]any, keys []string) []any {
	vs := make([]any, len(keys))
	for i, k := range keys {
		vs[i] = values[k]
	}
	return vs
}
