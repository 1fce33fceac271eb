package schema

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	"github.com/pingcap/tidb/pkg/parser/format"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"
)

// DDLInspector reads table metadata from MySQL CREATE TABLE statements,
// such as the output of mysqldump --no-data.
type DDLInspector struct {
	cfg Config
}

// NewDDLInspector returns an inspector over cfg.DDL. A DDL value that
// names an existing file is read from disk.
func NewDDLInspector(cfg Config) *DDLInspector {
	return &DDLInspector{cfg: cfg}
}

// Inspect implements the Inspector interface.
func (i *DDLInspector) Inspect(context.Context) (*Snapshot, error) {
	ddl := i.cfg.DDL
	if !strings.Contains(ddl, "\n") && !strings.Contains(strings.ToUpper(ddl), "CREATE") {
		b, err := os.ReadFile(ddl)
		if err != nil {
			return nil, fmt.Errorf("schema: reading ddl file: %w", err)
		}
		ddl = string(b)
	}
	return ParseDDL(ddl, i.cfg.Exclude...)
}

// ParseDDL parses the CREATE TABLE statements of ddl. Other statements are
// ignored. Tables matching exclude are skipped.
func ParseDDL(ddl string, exclude ...string) (*Snapshot, error) {
	stmts, _, err := parser.New().Parse(ddl, "", "")
	if err != nil {
		return nil, fmt.Errorf("schema: parsing ddl: %w", err)
	}
	cfg := Config{Exclude: exclude}
	var tables []*Table
	for _, stmt := range stmts {
		create, ok := stmt.(*ast.CreateTableStmt)
		if !ok || cfg.excluded(create.Table.Name.O) {
			continue
		}
		tables = append(tables, parseTable(create))
	}
	return NewSnapshot(tables), nil
}

func parseTable(stmt *ast.CreateTableStmt) *Table {
	t := &Table{Name: stmt.Table.Name.O}
	for _, def := range stmt.Cols {
		c := &Column{
			Name:     def.Name.Name.O,
			Type:     def.Tp.String(),
			Nullable: true,
		}
		for _, opt := range def.Options {
			switch opt.Tp {
			case ast.ColumnOptionNotNull:
				c.Nullable = false
			case ast.ColumnOptionNull:
				c.Nullable = true
			case ast.ColumnOptionPrimaryKey:
				c.Nullable = false
				t.PrimaryKey = append(t.PrimaryKey, c.Name)
			case ast.ColumnOptionAutoIncrement:
				c.AutoIncrement = true
			case ast.ColumnOptionUniqKey:
				t.Indexes = append(t.Indexes, &Index{Name: c.Name, Unique: true, Columns: []string{c.Name}})
			case ast.ColumnOptionDefaultValue:
				c.HasDefault = true
				if opt.Expr != nil {
					c.Default = exprText(opt.Expr)
				}
			case ast.ColumnOptionReference:
				if ref := opt.Refer; ref != nil && len(ref.IndexPartSpecifications) > 0 && ref.IndexPartSpecifications[0].Column != nil {
					t.ForeignKeys = append(t.ForeignKeys, &ForeignKey{
						Column:    c.Name,
						RefTable:  ref.Table.Name.O,
						RefColumn: ref.IndexPartSpecifications[0].Column.Name.O,
					})
				}
			}
		}
		t.Columns = append(t.Columns, c)
	}
	for _, cons := range stmt.Constraints {
		columns := keyColumns(cons.Keys)
		switch cons.Tp {
		case ast.ConstraintPrimaryKey:
			t.PrimaryKey = columns
			for _, name := range columns {
				if c, ok := t.Column(name); ok {
					c.Nullable = false
				}
			}
		case ast.ConstraintUniq, ast.ConstraintUniqKey, ast.ConstraintUniqIndex:
			t.Indexes = append(t.Indexes, &Index{Name: cons.Name, Unique: true, Columns: columns})
		case ast.ConstraintIndex, ast.ConstraintKey:
			t.Indexes = append(t.Indexes, &Index{Name: cons.Name, Columns: columns})
		case ast.ConstraintForeignKey:
			if cons.Refer == nil {
				continue
			}
			refs := keyColumns(cons.Refer.IndexPartSpecifications)
			for j, name := range columns {
				if j >= len(refs) {
					break
				}
				t.ForeignKeys = append(t.ForeignKeys, &ForeignKey{
					Symbol:    cons.Name,
					Column:    name,
					RefTable:  cons.Refer.Table.Name.O,
					RefColumn: refs[j],
				})
			}
		}
	}
	return t
}

func keyColumns(parts []*ast.IndexPartSpecification) []string {
	var columns []string
	for _, p := range parts {
		if p.Column != nil {
			columns = append(columns, p.Column.Name.O)
		}
	}
	return columns
}

func exprText(e ast.ExprNode) string {
	var sb strings.Builder
	if err := e.Restore(format.NewRestoreCtx(format.DefaultRestoreFlags, &sb)); err != nil {
		return ""
	}
	s := strings.TrimSpace(sb.String())
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		s = strings.ReplaceAll(s[1:len(s)-1], "''", "'")
	}
	return s
}
