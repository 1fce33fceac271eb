// Package mutation writes records of models together with the related
// records nested in their payload. Every top-level operation runs in a
// single transaction.
package mutation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/syssam/ormapi"
	"github.com/syssam/ormapi/dialect"
	"github.com/syssam/ormapi/dialect/sql"
	"github.com/syssam/ormapi/dialect/sql/sqlgraph"
	"github.com/syssam/ormapi/graph"
	"github.com/syssam/ormapi/privacy"
	ql "github.com/syssam/ormapi/querylanguage"
	"github.com/syssam/ormapi/schema/edge"
	"github.com/syssam/ormapi/storage"
)

// Engine creates, updates and deletes records.
type Engine struct {
	drv      dialect.Driver
	resolver graph.Resolver
	storage  storage.Storage
	maxDepth int
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithStorage sets the storage of uploaded files. Payloads carrying files
// fail without one.
func WithStorage(s storage.Storage) Option {
	return func(e *Engine) { e.storage = s }
}

// WithMaxDepth bounds the nesting of payloads.
func WithMaxDepth(n int) Option {
	return func(e *Engine) { e.maxDepth = n }
}

// WithLogger sets the logger of the engine.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New returns an engine writing through drv. Related models are resolved
// with r.
func New(drv dialect.Driver, r graph.Resolver, opts ...Option) *Engine {
	e := &Engine{
		drv:      drv,
		resolver: r,
		maxDepth: graph.DefaultMaxDepth,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Create validates body and creates a record of m with the related records
// it carries. Directives found in body are moved to p.
func (e *Engine) Create(ctx context.Context, m ormapi.Model, body ormapi.Record, p *ql.Params) (ormapi.Record, error) {
	return e.save(ctx, m, nil, body, p)
}

// Update validates body and updates the record of m with primary key id.
// Only the fields present in body are checked and written.
func (e *Engine) Update(ctx context.Context, m ormapi.Model, id any, body ormapi.Record, p *ql.Params) (ormapi.Record, error) {
	return e.save(ctx, m, id, body, p)
}

func (e *Engine) save(ctx context.Context, m ormapi.Model, id any, body ormapi.Record, p *ql.Params) (ormapi.Record, error) {
	if p == nil {
		p = ql.NewParams()
	}
	payload, err := p.Extract(body)
	if err != nil {
		return nil, err
	}
	if id != nil {
		delete(payload, m.PrimaryKey())
	}
	if err := e.Validate(m, payload, id != nil); err != nil {
		return nil, err
	}
	var out ormapi.Record
	err = e.run(ctx, p, func(ctx context.Context, w *writer) (err error) {
		g := graph.NewGuard(e.maxDepth)
		if id == nil {
			out, err = w.create(ctx, m, payload, nil, "", g)
		} else {
			out, err = w.update(ctx, m, id, payload, nil, "", g, false)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	e.logger.InfoContext(ctx, "record saved", "model", m.Name(), "id", out[m.PrimaryKey()], "created", id == nil)
	return out, nil
}

// Delete deletes the record of m with primary key id and returns it. The
// parent relations listed in p.ParentsToDelete are deleted with it.
func (e *Engine) Delete(ctx context.Context, m ormapi.Model, id any, p *ql.Params) (ormapi.Record, error) {
	if p == nil {
		p = ql.NewParams()
	}
	parents := make([]*edge.Descriptor, 0, len(p.ParentsToDelete))
	for _, name := range p.ParentsToDelete {
		d, ok := m.ParentRelationships().Get(name)
		if !ok {
			return nil, ormapi.ValidationErrorf(ql.KeyParentsToDelete, "%s is not a parent relation of %s.", name, ormapi.DisplayName(m))
		}
		parents = append(parents, d)
	}
	var out ormapi.Record
	err := e.run(ctx, p, func(ctx context.Context, w *writer) error {
		record, err := w.load(ctx, m, id, false)
		if err != nil {
			return err
		}
		if err := ormapi.Authorize(m.Deletable(ctx, record), string(privacy.OpDelete), m.Name(), denied(privacy.OpDelete, m)); err != nil {
			return err
		}
		type cascade struct {
			d      *edge.Descriptor
			model  ormapi.Model
			record ormapi.Record
		}
		var cascades []cascade
		for _, d := range parents {
			related, err := w.model(d)
			if err != nil {
				return err
			}
			v := record[d.ForeignKey]
			if v == nil {
				continue
			}
			_, key := ormapi.Keys(m, d, related)
			parent, ok, err := w.first(ctx, related, key, v)
			switch {
			case err != nil:
				return ormapi.NewQueryError(related.Name(), "fetch", err)
			case !ok:
				continue
			}
			if err := ormapi.Authorize(related.Deletable(ctx, parent), string(privacy.OpDelete), related.Name(), denied(privacy.OpDelete, related)); err != nil {
				return err
			}
			cascades = append(cascades, cascade{d: d, model: related, record: parent})
		}
		// The row goes first: the parents are still referenced by it.
		if err := w.remove(ctx, m, record, ""); err != nil {
			return err
		}
		for _, c := range cascades {
			if err := w.remove(ctx, c.model, c.record, c.d.Name+"."); err != nil {
				return err
			}
			record[c.d.Name] = c.record
		}
		out = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.InfoContext(ctx, "record deleted", "model", m.Name(), "id", id, "parents", len(parents))
	return out, nil
}

// run runs fn in a transaction. Files stored by a failed transaction are
// deleted after the rollback; files released by a successful one after the
// commit.
func (e *Engine) run(ctx context.Context, p *ql.Params, fn func(context.Context, *writer) error) error {
	w := &writer{Engine: e, params: p}
	err := sql.RunTx(ctx, e.drv, func(tx dialect.Tx) error {
		w.st = sqlgraph.New(e.drv.Dialect(), tx)
		return fn(ctx, w)
	})
	if err != nil {
		w.purge(ctx, w.stored, "discarding stored file")
		return err
	}
	w.purge(ctx, w.released, "deleting released file")
	return nil
}

// file is a file written to or to be removed from storage.
type file struct {
	path string
	disk string
}

// writer holds the state of one transaction.
type writer struct {
	*Engine
	params   *ql.Params
	st       *sqlgraph.Store
	stored   []file
	released []file
}

func (w *writer) purge(ctx context.Context, files []file, msg string) {
	for _, f := range files {
		if err := w.storage.Delete(ctx, f.path, f.disk); err != nil {
			w.logger.WarnContext(ctx, msg, "path", f.path, "disk", f.disk, "error", err)
			continue
		}
		w.logger.DebugContext(ctx, msg, "path", f.path, "disk", f.disk)
	}
}

// model resolves the related model of d.
func (w *writer) model(d *edge.Descriptor) (ormapi.Model, error) {
	m, ok := w.resolver.Resolve(d.Model)
	if !ok {
		return nil, fmt.Errorf("mutation: relation %q references unknown model %q", d.Name, d.Model)
	}
	return m, nil
}

// first returns the first record of m whose column equals v.
func (w *writer) first(ctx context.Context, m ormapi.Model, column string, v any) (ormapi.Record, bool, error) {
	q := w.st.Select(m.Table(), "")
	return w.st.QueryRecord(ctx, q.Where(sql.EQ(column, v)))
}

// load returns the record of m with primary key id. Nested lookups fail
// with a NotFoundError marked as nested.
func (w *writer) load(ctx context.Context, m ormapi.Model, id any, nested bool) (ormapi.Record, error) {
	record, ok, err := w.first(ctx, m, m.PrimaryKey(), id)
	switch {
	case err != nil:
		return nil, ormapi.NewQueryError(m.Name(), "fetch", err)
	case !ok:
		nf := ormapi.NewNotFoundError(m.Name(), id)
		nf.Nested = nested
		return nil, nf
	}
	return record, nil
}

// remove deletes record and releases its stored files.
func (w *writer) remove(ctx context.Context, m ormapi.Model, record ormapi.Record, at string) error {
	pk := m.PrimaryKey()
	if _, err := w.st.Delete(ctx, m.Table(), sql.EQ(pk, record[pk])); err != nil {
		return w.writeErr(m, "delete", at, err)
	}
	infos := m.FieldExtraInfo()
	for _, k := range infos.Files() {
		w.release(record[k], infos[k].Disk)
	}
	w.logger.DebugContext(ctx, "record deleted", "model", m.Name(), "id", record[pk])
	return nil
}

// release schedules the file at location for deletion after commit.
func (w *writer) release(location any, disk string) {
	s, ok := location.(string)
	if !ok || s == "" || w.storage == nil {
		return
	}
	w.released = append(w.released, file{path: storage.Relative(w.storage, s, disk), disk: disk})
}

// writeErr translates a store error of a write. Constraint violations are
// reported as validation errors of the payload.
func (w *writer) writeErr(m ormapi.Model, op, at string, err error) error {
	if !sqlgraph.IsConstraintError(err) {
		return ormapi.NewMutationError(m.Name(), op, err)
	}
	key, attr := strings.TrimSuffix(at, "."), ormapi.DisplayName(m)
	if c := sqlgraph.ConstraintColumn(err); c != "" {
		key, attr = at+c, strings.ReplaceAll(c, "_", " ")
	}
	if key == "" {
		key = m.Table()
	}
	switch {
	case sqlgraph.IsUniqueConstraintError(err):
		return ormapi.ValidationErrorf(key, "The %s has already been taken.", attr)
	case sqlgraph.IsNotNullConstraintError(err):
		return ormapi.ValidationErrorf(key, "The %s field is required.", attr)
	case sqlgraph.IsForeignKeyConstraintError(err) && op == "delete":
		return ormapi.ValidationErrorf(key, "The %s is still referenced by other records.", attr)
	case sqlgraph.IsForeignKeyConstraintError(err):
		return ormapi.ValidationErrorf(key, "The %s references a missing record.", attr)
	}
	return ormapi.ValidationErrorf(key, "The %s is invalid.", attr)
}

// allow evaluates the attach or detach predicate of d.
func allow(ctx context.Context, op privacy.Op, m ormapi.Model, d *edge.Descriptor, related ormapi.Model, owner, record ormapi.Record) error {
	pred, msg := d.Config.Attachable, d.Config.AttachMessage
	if op == privacy.OpDetach {
		pred, msg = d.Config.Detachable, d.Config.DetachMessage
	}
	if pred == nil {
		return nil
	}
	decision := pred(ctx, owner, record)
	if privacy.Allowed(decision) {
		return nil
	}
	if msg != nil {
		return &ormapi.AuthorizationError{Op: string(op), Model: m.Name(), Message: msg(owner, record)}
	}
	return ormapi.Authorize(decision, string(op), m.Name(), denied(op, related))
}

func denied(op privacy.Op, m ormapi.Model) string {
	verb := string(op)
	if op == privacy.OpRead {
		verb = "view"
	}
	return fmt.Sprintf("You are not allowed to %s this %s.", verb, ormapi.DisplayName(m))
}
