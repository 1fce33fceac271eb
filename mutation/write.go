package mutation

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"strconv"
	"strings"

	"github.com/syssam/ormapi"
	"github.com/syssam/ormapi/compiler/naming"
	"github.com/syssam/ormapi/dialect/sql"
	"github.com/syssam/ormapi/dialect/sql/sqlgraph"
	"github.com/syssam/ormapi/graph"
	"github.com/syssam/ormapi/privacy"
	ql "github.com/syssam/ormapi/querylanguage"
	"github.com/syssam/ormapi/schema/edge"
	"github.com/syssam/ormapi/schema/field"
	"github.com/syssam/ormapi/storage"
)

// create inserts item as a record of m. Parents are written first so their
// keys can be stored with the record; spouses and children follow. The
// returned record holds the results of the nested relations under their
// names.
func (w *writer) create(ctx context.Context, m ormapi.Model, item, forced ormapi.Record, at string, g graph.Guard) (ormapi.Record, error) {
	if err := ormapi.Authorize(m.Creatable(ctx, item), string(privacy.OpCreate), m.Name(), denied(privacy.OpCreate, m)); err != nil {
		return nil, err
	}
	fields, uploads := w.fields(m, item)
	for k := range uploads {
		fields[k] = nil
	}
	maps.Copy(fields, forced)
	parents, err := w.parents(ctx, m, item, fields, maps.Clone(fields), at, g)
	if err != nil {
		return nil, err
	}
	id, err := w.st.Insert(ctx, m.Table(), m.PrimaryKey(), fields)
	if err != nil {
		return nil, w.writeErr(m, "create", at, err)
	}
	if err := w.upload(ctx, m, id, uploads, nil, at); err != nil {
		return nil, err
	}
	record, err := w.load(ctx, m, id, true)
	if err != nil {
		return nil, err
	}
	w.logger.DebugContext(ctx, "record created", "model", m.Name(), "id", id, "path", g.Path())
	maps.Copy(record, parents)
	if err := w.relations(ctx, m, record, item, at, g); err != nil {
		return nil, err
	}
	return record, nil
}

// update writes item to the record of m with primary key id.
func (w *writer) update(ctx context.Context, m ormapi.Model, id any, item, forced ormapi.Record, at string, g graph.Guard, nested bool) (ormapi.Record, error) {
	record, err := w.load(ctx, m, id, nested)
	if err != nil {
		return nil, err
	}
	if err := ormapi.Authorize(m.Updatable(ctx, item, record), string(privacy.OpUpdate), m.Name(), denied(privacy.OpUpdate, m)); err != nil {
		return nil, err
	}
	fields, uploads := w.fields(m, item)
	infos := m.FieldExtraInfo()
	for _, k := range infos.Files() {
		v, ok := fields[k]
		switch {
		case uploads[k] != nil:
			delete(fields, k)
		case ok && v != record[k]:
			w.release(record[k], infos[k].Disk)
		}
	}
	maps.Copy(fields, forced)
	pk := m.PrimaryKey()
	delete(fields, pk)
	owner := maps.Clone(record)
	maps.Copy(owner, fields)
	parents, err := w.parents(ctx, m, item, fields, owner, at, g)
	if err != nil {
		return nil, err
	}
	if _, err := w.st.Update(ctx, m.Table(), fields, sql.EQ(pk, record[pk])); err != nil {
		return nil, w.writeErr(m, "update", at, err)
	}
	if err := w.upload(ctx, m, record[pk], uploads, record, at); err != nil {
		return nil, err
	}
	if record, err = w.load(ctx, m, record[pk], nested); err != nil {
		return nil, err
	}
	w.logger.DebugContext(ctx, "record updated", "model", m.Name(), "id", record[pk], "path", g.Path())
	maps.Copy(record, parents)
	if err := w.relations(ctx, m, record, item, at, g); err != nil {
		return nil, err
	}
	return record, nil
}

// upsert updates the existing record referenced by item, or creates it
// when item has no primary key. Items holding only a primary key are
// references and are loaded as is.
func (w *writer) upsert(ctx context.Context, m ormapi.Model, item, forced ormapi.Record, at string, g graph.Guard) (ormapi.Record, error) {
	id := item[m.PrimaryKey()]
	switch {
	case id == nil:
		return w.create(ctx, m, item, forced, at, g)
	case len(item) == 1 && len(forced) == 0:
		return w.load(ctx, m, id, true)
	default:
		return w.update(ctx, m, id, item, forced, at, g, true)
	}
}

// fields returns the writable fields of item, sanitized, and the uploaded
// files it carries.
func (w *writer) fields(m ormapi.Model, item ormapi.Record) (ormapi.Record, map[string]*storage.File) {
	infos := m.FieldExtraInfo()
	fields := ormapi.Writable(m, item)
	uploads := make(map[string]*storage.File)
	for k, v := range fields {
		info := infos[k]
		switch {
		case info.Type == field.TypeFile:
			if f, ok := v.(*storage.File); ok {
				uploads[k] = f
			}
		case info.Type == field.TypeJSON:
			switch v.(type) {
			case map[string]any, []any:
				if buf, err := json.Marshal(v); err == nil {
					fields[k] = string(buf)
				}
			}
		default:
			fields[k] = info.Clean(v)
		}
	}
	return fields, uploads
}

// upload stores the uploaded files of the record of m with primary key id
// under "<model>/<id>", and writes their locations. The files they replace
// are released.
func (w *writer) upload(ctx context.Context, m ormapi.Model, id any, uploads map[string]*storage.File, old ormapi.Record, at string) error {
	if len(uploads) == 0 {
		return nil
	}
	if w.storage == nil {
		return ormapi.NewMutationError(m.Name(), "upload", errors.New("mutation: no file storage configured"))
	}
	infos := m.FieldExtraInfo()
	folder := m.Name() + "/" + sqlgraph.Key(id)
	locations := make(ormapi.Record, len(uploads))
	for _, k := range sqlgraph.SortedKeys(uploads) {
		disk := infos[k].Disk
		rel, err := w.storage.Store(ctx, uploads[k], folder, disk)
		if err != nil {
			return ormapi.NewMutationError(m.Name(), "upload "+at+k, err)
		}
		w.stored = append(w.stored, file{path: rel, disk: disk})
		locations[k] = w.storage.URL(rel, disk)
		if old != nil {
			w.release(old[k], disk)
		}
	}
	if _, err := w.st.Update(ctx, m.Table(), locations, sql.EQ(m.PrimaryKey(), id)); err != nil {
		return w.writeErr(m, "update", at, err)
	}
	return nil
}

// parents writes the belongsTo relations present in item and sets their
// keys in fields. owner is the record as it will be stored, passed to the
// attach predicates.
func (w *writer) parents(ctx context.Context, m ormapi.Model, item, fields, owner ormapi.Record, at string, g graph.Guard) (ormapi.Record, error) {
	out := make(ormapi.Record)
	for _, d := range m.ParentRelationships().Descriptors() {
		v, ok := item[d.Name]
		if !ok {
			continue
		}
		related, err := w.model(d)
		if err != nil {
			return nil, err
		}
		next, err := g.Enter(d.Name)
		if err != nil {
			return nil, ormapi.ValidationErrorf(at+d.Name, "The %s relation is nested too deeply.", d.Name)
		}
		if v == nil {
			fields[d.ForeignKey] = nil
			out[d.Name] = nil
			continue
		}
		sub, err := reference(related, v, at+d.Name)
		if err != nil {
			return nil, err
		}
		record, err := w.upsert(ctx, related, sub, nil, at+d.Name+".", next)
		if err != nil {
			return nil, err
		}
		if err := allow(ctx, privacy.OpAttach, m, d, related, owner, record); err != nil {
			return nil, err
		}
		_, key := ormapi.Keys(m, d, related)
		fields[d.ForeignKey] = record[key]
		owner[d.ForeignKey] = record[key]
		out[d.Name] = record
	}
	return out, nil
}

// relations writes the spouse and child relations present in item.
func (w *writer) relations(ctx context.Context, m ormapi.Model, record, item ormapi.Record, at string, g graph.Guard) error {
	for _, c := range []edge.Category{edge.Spouse, edge.Child} {
		for _, d := range ormapi.RelationsOf(m, c).Descriptors() {
			v, ok := item[d.Name]
			if !ok {
				continue
			}
			related, err := w.model(d)
			if err != nil {
				return err
			}
			next, err := g.Enter(d.Name)
			if err != nil {
				return ormapi.ValidationErrorf(at+d.Name, "The %s relation is nested too deeply.", d.Name)
			}
			items, err := list(v, at+d.Name)
			if err != nil {
				return err
			}
			var results []ormapi.Record
			if c == edge.Spouse {
				results, err = w.spouses(ctx, m, d, related, record, items, at+d.Name, next)
			} else {
				results, err = w.children(ctx, m, d, related, record, items, at+d.Name, next)
			}
			if err != nil {
				return err
			}
			record[d.Name] = results
		}
	}
	return nil
}

// children synchronizes the hasMany relation d of record with items. Items
// with a primary key are updated, or moved to record; the others are
// created. Linked records missing from items are detached.
func (w *writer) children(ctx context.Context, m ormapi.Model, d *edge.Descriptor, related ormapi.Model, record ormapi.Record, items []any, at string, g graph.Guard) ([]ormapi.Record, error) {
	ownerKey, fk := ormapi.Keys(m, d, related)
	owner, pk := record[ownerKey], related.PrimaryKey()
	q := w.st.Select(related.Table(), "")
	current, err := w.st.QueryColumn(ctx, q.Columns(pk).Where(sql.EQ(fk, owner)).OrderBy(pk, false))
	if err != nil {
		return nil, ormapi.NewQueryError(related.Name(), "fetch", err)
	}
	linked := keys(current)
	results := make([]ormapi.Record, 0, len(items))
	if w.params.Directive(g.Path()).Action == ql.ActionDetach {
		for i, x := range items {
			sub, err := reference(related, x, index(at, i))
			if err != nil {
				return nil, err
			}
			id := sub[pk]
			if id == nil || !linked[sqlgraph.Key(id)] {
				continue
			}
			child, err := w.load(ctx, related, id, true)
			if err != nil {
				return nil, err
			}
			if err := w.detachChild(ctx, m, d, related, record, child, fk, index(at, i)+"."); err != nil {
				return nil, err
			}
			results = append(results, child)
		}
		return results, nil
	}
	seen := make(map[string]bool)
	for i, x := range items {
		pos := index(at, i) + "."
		sub, err := reference(related, x, index(at, i))
		if err != nil {
			return nil, err
		}
		var child ormapi.Record
		switch id := sub[pk]; {
		case id != nil && linked[sqlgraph.Key(id)]:
			child, err = w.upsert(ctx, related, sub, nil, pos, g)
		case id != nil:
			existing, err := w.load(ctx, related, id, true)
			if err != nil {
				return nil, err
			}
			if err := allow(ctx, privacy.OpAttach, m, d, related, record, existing); err != nil {
				return nil, err
			}
			child, err = w.update(ctx, related, id, sub, ormapi.Record{fk: owner}, pos, g, true)
			if err != nil {
				return nil, err
			}
		default:
			if err := allow(ctx, privacy.OpAttach, m, d, related, record, sub); err != nil {
				return nil, err
			}
			child, err = w.create(ctx, related, sub, ormapi.Record{fk: owner}, pos, g)
		}
		if err != nil {
			return nil, err
		}
		seen[sqlgraph.Key(child[pk])] = true
		results = append(results, child)
	}
	for _, id := range current {
		if seen[sqlgraph.Key(id)] {
			continue
		}
		child, err := w.load(ctx, related, id, true)
		if err != nil {
			return nil, err
		}
		if err := w.detachChild(ctx, m, d, related, record, child, fk, at+"."); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// detachChild unlinks child from record: the foreign key is cleared when it
// is nullable, otherwise the child is deleted.
func (w *writer) detachChild(ctx context.Context, m ormapi.Model, d *edge.Descriptor, related ormapi.Model, record, child ormapi.Record, fk, at string) error {
	if err := allow(ctx, privacy.OpDetach, m, d, related, record, child); err != nil {
		return err
	}
	if !related.FieldExtraInfo()[fk].Nullable {
		return w.remove(ctx, related, child, at)
	}
	pk := related.PrimaryKey()
	if _, err := w.st.Update(ctx, related.Table(), ormapi.Record{fk: nil}, sql.EQ(pk, child[pk])); err != nil {
		return w.writeErr(related, "detach", at, err)
	}
	w.logger.DebugContext(ctx, "record detached", "model", related.Name(), "id", child[pk], "relation", d.Name)
	return nil
}

// spouses synchronizes the belongsToMany relation d of record with items.
// Links are only written when missing, and linked records missing from
// items are detached.
func (w *writer) spouses(ctx context.Context, m ormapi.Model, d *edge.Descriptor, related ormapi.Model, record ormapi.Record, items []any, at string, g graph.Guard) ([]ormapi.Record, error) {
	ownerKey, relatedKey := ormapi.Keys(m, d, related)
	owner, p := record[ownerKey], ormapi.Pivot(d)
	current, err := w.st.RelatedIDs(ctx, p, owner)
	if err != nil {
		return nil, ormapi.NewQueryError(m.Name(), "fetch "+d.Name, err)
	}
	linked := keys(current)
	dir := w.params.Directive(g.Path())
	results := make([]ormapi.Record, 0, len(items))
	if dir.Action == ql.ActionDetach {
		for i, x := range items {
			sub, err := reference(related, x, index(at, i))
			if err != nil {
				return nil, err
			}
			id := sub[related.PrimaryKey()]
			if id == nil {
				continue
			}
			spouse, err := w.load(ctx, related, id, true)
			if err != nil {
				return nil, err
			}
			if err := w.detach(ctx, m, d, related, record, spouse, index(at, i)); err != nil {
				return nil, err
			}
			results = append(results, spouse)
		}
		return results, nil
	}
	seen := make(map[string]bool)
	for i, x := range items {
		pos := index(at, i) + "."
		sub, err := reference(related, x, index(at, i))
		if err != nil {
			return nil, err
		}
		var spouse ormapi.Record
		if sub[related.PrimaryKey()] == nil && dir.Action == ql.ActionCreateOrAttachSimilar {
			if spouse, err = w.similar(ctx, related, sub, dir); err != nil {
				return nil, err
			}
		}
		if spouse == nil {
			if spouse, err = w.upsert(ctx, related, sub, nil, pos, g); err != nil {
				return nil, err
			}
		}
		id := spouse[relatedKey]
		if k := sqlgraph.Key(id); !linked[k] {
			if err := allow(ctx, privacy.OpAttach, m, d, related, record, spouse); err != nil {
				return nil, err
			}
			if _, err := w.st.Attach(ctx, p, owner, id); err != nil {
				return nil, w.writeErr(m, "attach", pos, err)
			}
			linked[k] = true
			w.logger.DebugContext(ctx, "record attached", "model", m.Name(), "relation", d.Name, "id", id)
		}
		seen[sqlgraph.Key(id)] = true
		results = append(results, spouse)
	}
	for _, id := range current {
		if seen[sqlgraph.Key(id)] {
			continue
		}
		spouse, ok, err := w.first(ctx, related, relatedKey, id)
		switch {
		case err != nil:
			return nil, ormapi.NewQueryError(related.Name(), "fetch", err)
		case !ok:
			spouse = ormapi.Record{relatedKey: id}
		}
		if err := w.detach(ctx, m, d, related, record, spouse, at); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// detach removes the pivot link between record and spouse.
func (w *writer) detach(ctx context.Context, m ormapi.Model, d *edge.Descriptor, related ormapi.Model, record, spouse ormapi.Record, at string) error {
	if err := allow(ctx, privacy.OpDetach, m, d, related, record, spouse); err != nil {
		return err
	}
	ownerKey, relatedKey := ormapi.Keys(m, d, related)
	if _, err := w.st.Detach(ctx, ormapi.Pivot(d), record[ownerKey], spouse[relatedKey]); err != nil {
		return w.writeErr(m, "detach", at, err)
	}
	w.logger.DebugContext(ctx, "record detached", "model", m.Name(), "relation", d.Name, "id", spouse[relatedKey])
	return nil
}

// similar returns an existing record of m whose compared field matches the
// one of item, or nil.
func (w *writer) similar(ctx context.Context, m ormapi.Model, item ormapi.Record, dir ql.Directive) (ormapi.Record, error) {
	v, ok := item[dir.CompareOn].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return nil, nil
	}
	if !sql.ValidIdentifier(dir.CompareOn) {
		return nil, ormapi.ValidationErrorf(ql.KeyM2MRelConfigs, "Cannot compare on %q.", dir.CompareOn)
	}
	pk := m.PrimaryKey()
	q := w.st.Select(m.Table(), "").OrderBy(pk, false)
	if dir.CompareMode != ql.CompareSluggify {
		record, _, err := w.st.QueryRecord(ctx, q.Where(sql.EqualFold(dir.CompareOn, v)))
		if err != nil {
			return nil, ormapi.NewQueryError(m.Name(), "fetch", err)
		}
		return record, nil
	}
	slug := naming.Slug(v)
	if slug == "" {
		return nil, nil
	}
	// Rows sharing the slug contain its longest word.
	records, err := w.st.QueryRecords(ctx, q.Where(sql.ContainsFold(dir.CompareOn, longestWord(slug))))
	if err != nil {
		return nil, ormapi.NewQueryError(m.Name(), "fetch", err)
	}
	for _, r := range records {
		if s, ok := r[dir.CompareOn].(string); ok && naming.Slug(s) == slug {
			return r, nil
		}
	}
	return nil, nil
}

func longestWord(slug string) string {
	var word string
	for _, w := range strings.Split(slug, "-") {
		if len(w) > len(word) {
			word = w
		}
	}
	return word
}

// reference returns the payload item of a relation: an object, or the
// primary key of an existing record.
func reference(m ormapi.Model, v any, at string) (ormapi.Record, error) {
	switch v := v.(type) {
	case map[string]any:
		return v, nil
	case string, float64, int, int64, json.Number:
		return ormapi.Record{m.PrimaryKey(): v}, nil
	}
	return nil, ormapi.ValidationErrorf(at, "The %s field must be an object or an id.", attribute(at))
}

// list returns the items of a to-many relation. Null clears the relation.
func list(v any, at string) ([]any, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case []any:
		return v, nil
	case []map[string]any:
		items := make([]any, len(v))
		for i, x := range v {
			items[i] = x
		}
		return items, nil
	}
	return nil, ormapi.ValidationErrorf(at, "The %s field must be an array.", attribute(at))
}

func keys(ids []any) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[sqlgraph.Key(id)] = true
	}
	return m
}

func index(at string, i int) string {
	return at + "." + strconv.Itoa(i)
}

// attribute returns the name of the field or relation at path, skipping
// list indexes.
func attribute(path string) string {
	parts := strings.Split(path, ".")
	for i := len(parts) - 1; i >= 0; i-- {
		if _, err := strconv.Atoi(parts[i]); err != nil {
			return strings.ReplaceAll(parts[i], "_", " ")
		}
	}
	return path
}
