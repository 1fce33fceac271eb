// Package sqlgraph executes generic record statements: rows are read into
// column maps, written from column maps, and many-to-many links are kept in
// pivot tables.
package sqlgraph

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/syssam/ormapi/dialect"
	dsql "github.com/syssam/ormapi/dialect/sql"
)

// Store runs record statements for one dialect against an ExecQuerier,
// which is either a driver or an open transaction.
type Store struct {
	dialect string
	eq      dialect.ExecQuerier
}

// New returns a Store for the given dialect and ExecQuerier.
func New(dialect string, eq dialect.ExecQuerier) *Store {
	return &Store{dialect: dialect, eq: eq}
}

// Dialect returns the dialect of the store.
func (s *Store) Dialect() string { return s.dialect }

// Select returns a selector over table bound to the store dialect.
func (s *Store) Select(table, alias string) *dsql.Selector {
	return dsql.SelectTable(table, alias).SetDialect(s.dialect)
}

// QueryRecords runs the selector and returns every row as a column map.
func (s *Store) QueryRecords(ctx context.Context, sel *dsql.Selector) ([]map[string]any, error) {
	query, args, err := sel.SetDialect(s.dialect).QueryErr()
	if err != nil {
		return nil, err
	}
	rows := &dsql.Rows{}
	if err := s.eq.Query(ctx, query, args, rows); err != nil {
		return nil, err
	}
	defer rows.Close()
	return ScanRecords(rows)
}

// QueryRecord returns the first row of the selector. The boolean reports
// whether a row was found.
func (s *Store) QueryRecord(ctx context.Context, sel *dsql.Selector) (map[string]any, bool, error) {
	records, err := s.QueryRecords(ctx, sel.Clone().Limit(1))
	if err != nil || len(records) == 0 {
		return nil, false, err
	}
	return records[0], true, nil
}

// QueryColumn returns the values of the first selected column.
func (s *Store) QueryColumn(ctx context.Context, sel *dsql.Selector) ([]any, error) {
	query, args, err := sel.SetDialect(s.dialect).QueryErr()
	if err != nil {
		return nil, err
	}
	rows := &dsql.Rows{}
	if err := s.eq.Query(ctx, query, args, rows); err != nil {
		return nil, err
	}
	defer rows.Close()
	var values []any
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("sqlgraph: scanning column: %w", err)
		}
		values = append(values, normalize(v))
	}
	return values, rows.Err()
}

// Count returns the number of rows matched by the selector, ignoring its
// ordering and paging.
func (s *Store) Count(ctx context.Context, sel *dsql.Selector) (int, error) {
	values, err := s.QueryColumn(ctx, sel.CountSelector())
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, nil
	}
	n, ok := ToInt64(values[0])
	if !ok {
		return 0, fmt.Errorf("sqlgraph: unexpected count type %T", values[0])
	}
	return int(n), nil
}

// Exists reports whether the selector matches at least one row.
func (s *Store) Exists(ctx context.Context, sel *dsql.Selector) (bool, error) {
	n, err := s.Count(ctx, sel)
	return n > 0, err
}

// Insert writes a row and returns its primary key. When fields carries an
// explicit primary key value it is returned as is.
func (s *Store) Insert(ctx context.Context, table, pk string, fields map[string]any) (any, error) {
	ins := dsql.Insert(table).SetDialect(s.dialect)
	for _, c := range SortedKeys(fields) {
		ins.Set(c, fields[c])
	}
	if id, ok := fields[pk]; ok && id != nil {
		query, args, err := ins.QueryErr()
		if err != nil {
			return nil, err
		}
		return id, s.eq.Exec(ctx, query, args, nil)
	}
	if s.dialect == dialect.Postgres {
		query, args, err := ins.Returning(pk).QueryErr()
		if err != nil {
			return nil, err
		}
		rows := &dsql.Rows{}
		if err := s.eq.Query(ctx, query, args, rows); err != nil {
			return nil, err
		}
		defer rows.Close()
		if !rows.Next() {
			return nil, fmt.Errorf("sqlgraph: insert into %s returned no rows", table)
		}
		var id any
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlgraph: scanning inserted id: %w", err)
		}
		return normalize(id), rows.Err()
	}
	query, args, err := ins.QueryErr()
	if err != nil {
		return nil, err
	}
	var res sql.Result
	if err := s.eq.Exec(ctx, query, args, &res); err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("sqlgraph: reading last insert id: %w", err)
	}
	return id, nil
}

// Update sets fields on the rows matching where and returns the number of
// affected rows.
func (s *Store) Update(ctx context.Context, table string, fields map[string]any, where dsql.P) (int64, error) {
	if len(fields) == 0 {
		return 0, nil
	}
	upd := dsql.Update(table).SetDialect(s.dialect).Where(where)
	for _, c := range SortedKeys(fields) {
		upd.Set(c, fields[c])
	}
	query, args, err := upd.QueryErr()
	if err != nil {
		return 0, err
	}
	return s.exec(ctx, query, args)
}

// Delete removes the rows matching where.
func (s *Store) Delete(ctx context.Context, table string, where dsql.P) (int64, error) {
	query, args, err := dsql.Delete(table).SetDialect(s.dialect).Where(where).QueryErr()
	if err != nil {
		return 0, err
	}
	return s.exec(ctx, query, args)
}

func (s *Store) exec(ctx context.Context, query string, args []any) (int64, error) {
	var res sql.Result
	if err := s.eq.Exec(ctx, query, args, &res); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Pivot describes a many-to-many join table.
type Pivot struct {
	Table string
	// OwnerKey references the owning side of the relation.
	OwnerKey string
	// RelatedKey references the related side of the relation.
	RelatedKey string
}

// RelatedIDs returns the related keys linked to owner.
func (s *Store) RelatedIDs(ctx context.Context, p Pivot, owner any) ([]any, error) {
	sel := s.Select(p.Table, "").Columns(p.RelatedKey).Where(dsql.EQ(p.OwnerKey, owner))
	return s.QueryColumn(ctx, sel)
}

// Linked reports whether owner and related are linked.
func (s *Store) Linked(ctx context.Context, p Pivot, owner, related any) (bool, error) {
	sel := s.Select(p.Table, "").Where(dsql.And(
		dsql.EQ(p.OwnerKey, owner),
		dsql.EQ(p.RelatedKey, related),
	))
	return s.Exists(ctx, sel)
}

// Attach links owner and related. It is a no-op when the link already
// exists, and reports whether a row was written.
func (s *Store) Attach(ctx context.Context, p Pivot, owner, related any) (bool, error) {
	linked, err := s.Linked(ctx, p, owner, related)
	if err != nil || linked {
		return false, err
	}
	query, args, err := dsql.Insert(p.Table).SetDialect(s.dialect).
		Set(p.OwnerKey, owner).
		Set(p.RelatedKey, related).
		QueryErr()
	if err != nil {
		return false, err
	}
	return true, s.eq.Exec(ctx, query, args, nil)
}

// Detach removes the link between owner and related.
func (s *Store) Detach(ctx context.Context, p Pivot, owner, related any) (int64, error) {
	return s.Delete(ctx, p.Table, dsql.And(
		dsql.EQ(p.OwnerKey, owner),
		dsql.EQ(p.RelatedKey, related),
	))
}

// ScanRecords reads all remaining rows into column maps. Byte slices are
// converted to strings.
func ScanRecords(rows dsql.ColumnScanner) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sqlgraph: reading columns: %w", err)
	}
	var records []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("sqlgraph: scanning row: %w", err)
		}
		record := make(map[string]any, len(columns))
		for i, c := range columns {
			record[c] = normalize(values[i])
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func normalize(v any) any {
	switch v := v.(type) {
	case []byte:
		return string(v)
	default:
		return v
	}
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Key returns a canonical string for a primary or foreign key value, so
// that ids read from the store (int64), decoded from JSON (float64) or taken
// from a URL (string) compare equal.
func Key(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}

// ToInt64 converts numeric values returned by drivers to int64.
func ToInt64(v any) (int64, bool) {
	switch v := v.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case uint64:
		return int64(v), true
	case float64:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}
