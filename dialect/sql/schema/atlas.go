package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ariga.io/atlas/sql/migrate"
	"ariga.io/atlas/sql/mysql"
	"ariga.io/atlas/sql/postgres"
	atlas "ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/sqlite"

	"github.com/syssam/ormapi/dialect"
)

// AtlasInspector reads table metadata from a live database through the
// atlas inspectors of its dialect.
type AtlasInspector struct {
	cfg Config
	drv migrate.Driver
}

// NewAtlasInspector returns an inspector over cfg.DB.
func NewAtlasInspector(cfg Config) (*AtlasInspector, error) {
	if cfg.DB == nil {
		return nil, errors.New("schema: live inspection requires a database connection")
	}
	var (
		drv migrate.Driver
		err error
	)
	switch cfg.Dialect {
	case dialect.MySQL:
		drv, err = mysql.Open(cfg.DB)
	case dialect.Postgres:
		drv, err = postgres.Open(cfg.DB)
	case dialect.SQLite:
		drv, err = sqlite.Open(cfg.DB)
	default:
		return nil, fmt.Errorf("schema: unsupported dialect %q", cfg.Dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("schema: opening %s inspector: %w", cfg.Dialect, err)
	}
	return &AtlasInspector{cfg: cfg, drv: drv}, nil
}

// Inspect implements the Inspector interface.
func (i *AtlasInspector) Inspect(ctx context.Context) (*Snapshot, error) {
	s, err := i.drv.InspectSchema(ctx, i.cfg.Schema, &atlas.InspectOptions{})
	if err != nil {
		return nil, fmt.Errorf("schema: inspecting %s schema %q: %w", i.cfg.Dialect, i.cfg.Schema, err)
	}
	tables := make([]*Table, 0, len(s.Tables))
	for _, t := range s.Tables {
		if i.cfg.excluded(t.Name) {
			continue
		}
		tables = append(tables, i.table(t))
	}
	return NewSnapshot(tables), nil
}

func (i *AtlasInspector) table(t *atlas.Table) *Table {
	tt := &Table{Name: t.Name}
	if t.PrimaryKey != nil {
		for _, p := range t.PrimaryKey.Parts {
			if p.C != nil {
				tt.PrimaryKey = append(tt.PrimaryKey, p.C.Name)
			}
		}
	}
	for _, c := range t.Columns {
		col := &Column{
			Name:          c.Name,
			AutoIncrement: i.autoIncrement(t, c, tt.PrimaryKey),
		}
		if c.Type != nil {
			col.Type = c.Type.Raw
			col.Nullable = c.Type.Null
		}
		switch d := c.Default.(type) {
		case *atlas.Literal:
			col.Default, col.HasDefault = d.V, true
		case *atlas.RawExpr:
			col.Default, col.HasDefault = d.X, true
		}
		tt.Columns = append(tt.Columns, col)
	}
	for _, fk := range t.ForeignKeys {
		if fk.RefTable == nil {
			continue
		}
		for j, c := range fk.Columns {
			if j >= len(fk.RefColumns) {
				break
			}
			tt.ForeignKeys = append(tt.ForeignKeys, &ForeignKey{
				Symbol:    fk.Symbol,
				Column:    c.Name,
				RefTable:  fk.RefTable.Name,
				RefColumn: fk.RefColumns[j].Name,
			})
		}
	}
	for _, idx := range t.Indexes {
		index := &Index{Name: idx.Name, Unique: idx.Unique}
		for _, p := range idx.Parts {
			if p.C != nil {
				index.Columns = append(index.Columns, p.C.Name)
			}
		}
		tt.Indexes = append(tt.Indexes, index)
	}
	return tt
}

func (i *AtlasInspector) autoIncrement(t *atlas.Table, c *atlas.Column, pk []string) bool {
	for _, a := range c.Attrs {
		switch a.(type) {
		case *mysql.AutoIncrement, *postgres.Identity, *sqlite.AutoIncrement:
			return true
		}
	}
	if c.Type != nil {
		if _, ok := c.Type.Type.(*postgres.SerialType); ok {
			return true
		}
	}
	if i.cfg.Dialect != dialect.SQLite || len(pk) != 1 || pk[0] != c.Name {
		return false
	}
	for _, a := range t.Attrs {
		if _, ok := a.(*sqlite.AutoIncrement); ok {
			return true
		}
	}
	// A single INTEGER primary key aliases the rowid.
	return c.Type != nil && strings.EqualFold(c.Type.Raw, "integer")
}
