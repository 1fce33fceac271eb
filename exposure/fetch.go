package exposure

import (
	"context"
	"slices"

	"github.com/syssam/ormapi"
	"github.com/syssam/ormapi/dialect"
	"github.com/syssam/ormapi/dialect/sql"
	ql "github.com/syssam/ormapi/querylanguage"
	"github.com/syssam/ormapi/schema/edge"
)

// Page is a page of a collection.
type Page struct {
	Data     []ormapi.Record `json:"data"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PerPage  int             `json:"per_page"`
	LastPage int             `json:"last_page"`
}

// FetchCollection returns the page of records of m requested by p. Fields,
// filters, sorts and includes are restricted to the exposure of m; the
// listable condition of m always applies.
func (e *Engine) FetchCollection(ctx context.Context, m ormapi.Model, p *ql.Params) (*Page, error) {
	if p == nil {
		p = ql.NewParams()
	}
	ex, err := e.Exposure(ctx, m)
	if err != nil {
		return nil, err
	}
	st := e.store(e.drv)
	q := st.Select(m.Table(), "t0")
	tree, err := includes(ex, p.Include)
	if err != nil {
		return nil, err
	}
	if err := e.columns(q, m, p.Fields, tree); err != nil {
		return nil, err
	}
	for _, f := range p.Filters {
		pred, err := e.filterP(ctx, q, m, ex, f)
		if err != nil {
			return nil, err
		}
		q.Where(pred)
	}
	for _, s := range p.Sort {
		if err := e.order(q, m, ex, s); err != nil {
			return nil, err
		}
	}
	m.Listable(ctx, q)
	if p.Search != "" && len(ex.Searchable) > 0 {
		columns := make([]string, len(ex.Searchable))
		for i, c := range ex.Searchable {
			columns[i] = q.C(c)
		}
		q.Where(sql.FullText(columns, p.Search))
	}
	if p.Where != nil {
		pred, err := e.whereP(q, m, p.Where)
		if err != nil {
			return nil, err
		}
		q.Where(pred)
	}
	total, err := st.Count(ctx, q)
	if err != nil {
		return nil, ormapi.NewQueryError(m.Name(), "count", err)
	}
	if len(p.Sort) == 0 {
		q.OrderBy(q.C(m.PrimaryKey()), false)
	}
	records, err := st.QueryRecords(ctx, q.Limit(p.PerPage).Offset(p.Offset()))
	if err != nil {
		return nil, ormapi.NewQueryError(m.Name(), "list", err)
	}
	if records == nil {
		records = []ormapi.Record{}
	}
	if err := e.load(ctx, st, m, records, tree); err != nil {
		return nil, err
	}
	e.logger.DebugContext(ctx, "collection fetched", "model", m.Name(), "total", total, "page", p.Page, "per_page", p.PerPage)
	return &Page{
		Data:     records,
		Total:    total,
		Page:     p.Page,
		PerPage:  p.PerPage,
		LastPage: max(1, (total+p.PerPage-1)/p.PerPage),
	}, nil
}

// FetchByID returns the record of m with primary key id, with the fields
// and includes requested by p. The readable hook of m decides whether the
// record may be returned.
func (e *Engine) FetchByID(ctx context.Context, m ormapi.Model, id any, p *ql.Params) (ormapi.Record, error) {
	return e.Find(ctx, e.drv, m, id, p)
}

// Find is like FetchByID but reads through eq, such as an open
// transaction.
func (e *Engine) Find(ctx context.Context, eq dialect.ExecQuerier, m ormapi.Model, id any, p *ql.Params) (ormapi.Record, error) {
	if p == nil {
		p = ql.NewParams()
	}
	ex, err := e.Exposure(ctx, m)
	if err != nil {
		return nil, err
	}
	tree, err := includes(ex, p.Include)
	if err != nil {
		return nil, err
	}
	st := e.store(eq)
	q := st.Select(m.Table(), "t0")
	if err := e.columns(q, m, p.Fields, tree); err != nil {
		return nil, err
	}
	record, ok, err := st.QueryRecord(ctx, q.Where(sql.EQ(q.C(m.PrimaryKey()), id)))
	switch {
	case err != nil:
		return nil, ormapi.NewQueryError(m.Name(), "fetch", err)
	case !ok:
		return nil, ormapi.NewNotFoundError(m.Name(), id)
	}
	if err := ormapi.Authorize(m.Readable(ctx, record), "read", m.Name(), "You are not allowed to view this "+ormapi.DisplayName(m)+"."); err != nil {
		return nil, err
	}
	if err := e.load(ctx, st, m, []ormapi.Record{record}, tree); err != nil {
		return nil, err
	}
	return record, nil
}

// columns restricts the selected columns of q to the requested fields of
// m. The keys needed to load the included relations are always selected.
func (e *Engine) columns(q *sql.Selector, m ormapi.Model, fields []string, tree *include) error {
	if len(fields) == 0 {
		return nil
	}
	allowed := ormapi.Fields(m)
	selected := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		if !slices.Contains(allowed, f) {
			return ormapi.ValidationErrorf(ql.KeyFields, "Selecting %s is not allowed.", f)
		}
		selected = append(selected, f)
	}
	need := []string{m.PrimaryKey()}
	for _, name := range tree.order {
		d, ok := ormapi.Relation(m, name)
		if ok && d.Kind == edge.KindBelongsTo {
			need = append(need, d.ForeignKey)
		}
		if ok && d.Kind == edge.KindHasMany && d.References != "" {
			need = append(need, d.References)
		}
	}
	for _, c := range need {
		if !slices.Contains(selected, c) {
			selected = append(selected, c)
		}
	}
	for i, c := range selected {
		selected[i] = q.C(c)
	}
	q.Columns(selected...)
	return nil
}
