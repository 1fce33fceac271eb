package load

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/syssam/ormapi/compiler/naming"
	"github.com/syssam/ormapi/dialect/sql/schema"
	"github.com/syssam/ormapi/schema/edge"
	"github.com/syssam/ormapi/schema/field"
)

// Pivot declares a many-to-many relation explicitly. Declared pivot tables
// are not matched by the naming convention.
type Pivot struct {
	// Table is the owning table.
	Table string `yaml:"table" toml:"table"`
	// Pivot is the join table.
	Pivot string `yaml:"pivot" toml:"pivot"`
	// ForeignPivotKey references Table. Defaults to "<singular table>_id".
	ForeignPivotKey string `yaml:"foreign_pivot_key" toml:"foreign_pivot_key"`
	// RelatedPivotKey references RelatedTable. Defaults to
	// "<singular related table>_id".
	RelatedPivotKey string `yaml:"related_pivot_key" toml:"related_pivot_key"`
	RelatedTable    string `yaml:"related_table" toml:"related_table"`
	// Name overrides the inferred relation name on Table.
	Name string `yaml:"name" toml:"name"`
}

// Inferencer derives relations from the foreign keys of a snapshot.
type Inferencer struct {
	snapshot *schema.Snapshot
	namer    *naming.Namer
	pivots   []Pivot
	logger   *slog.Logger
}

// Option configures the Inferencer.
type Option func(*Inferencer)

// WithNamer sets the namer used for model and relation names.
func WithNamer(n *naming.Namer) Option {
	return func(i *Inferencer) {
		i.namer = n
	}
}

// WithPivots declares many-to-many relations explicitly.
func WithPivots(pivots ...Pivot) Option {
	return func(i *Inferencer) {
		i.pivots = append(i.pivots, pivots...)
	}
}

// WithLogger sets the logger for inference output.
func WithLogger(l *slog.Logger) Option {
	return func(i *Inferencer) {
		i.logger = l
	}
}

// NewInferencer returns an Inferencer over s.
func NewInferencer(s *schema.Snapshot, opts ...Option) *Inferencer {
	i := &Inferencer{
		snapshot: s,
		namer:    naming.New(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// ModelName returns the model name of table.
func (i *Inferencer) ModelName(table string) string {
	return i.namer.ModelName(table)
}

// relations holds the three relation lists of a table, named against each
// other in declaration order.
type relations struct {
	belongsTo, hasMany, belongsToMany []*edge.Descriptor
}

// BelongsTo returns one relation per outgoing foreign key of table, in
// column order.
func (i *Inferencer) BelongsTo(table string) []*edge.Descriptor {
	return i.infer(table).belongsTo
}

// HasMany returns one relation per incoming foreign key of table, grouped
// by child table. Groups of more than one foreign key are qualified by
// the foreign key column.
func (i *Inferencer) HasMany(table string) []*edge.Descriptor {
	return i.infer(table).hasMany
}

// BelongsToMany returns the many-to-many relations of table: the declared
// pivots first, then the pivot tables named "<a>_<b>" where a or b is
// table. The name is split at its first underscore only, so a pivot of a
// table whose own name holds an underscore is not detected and must be
// declared.
func (i *Inferencer) BelongsToMany(table string) []*edge.Descriptor {
	return i.infer(table).belongsToMany
}

func (i *Inferencer) infer(table string) relations {
	var rs relations
	t, ok := i.snapshot.Table(table)
	if !ok {
		return rs
	}
	existing := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		existing = append(existing, c.Name)
	}
	assign := func(d *edge.Descriptor) *edge.Descriptor {
		existing = append(existing, d.Name)
		return d
	}

	for _, fk := range t.ForeignKeys {
		if _, ok := i.snapshot.Table(fk.RefTable); !ok {
			i.logger.Debug("omitting relation to unknown table", "table", table, "column", fk.Column, "references", fk.RefTable)
			continue
		}
		name := i.namer.RelationName(fk.Column, existing, naming.Options{})
		d := edge.BelongsTo(name, i.ModelName(fk.RefTable)).ForeignKey(fk.Column).Descriptor()
		if ref, ok := i.snapshot.Table(fk.RefTable); ok && !isPrimaryKey(ref, fk.RefColumn) {
			d.References = fk.RefColumn
		}
		rs.belongsTo = append(rs.belongsTo, assign(d))
	}

	refs := i.snapshot.Incoming(table)
	for start := 0; start < len(refs); {
		end := start + 1
		for end < len(refs) && refs[end].Table.Name == refs[start].Table.Name {
			end++
		}
		group := refs[start:end]
		for _, ref := range group {
			opts := naming.Options{Plural: true}
			if len(group) > 1 {
				opts.ConflictKey = ref.FK.Column
			}
			name := i.namer.RelationName(ref.Table.Name, existing, opts)
			d := edge.HasMany(name, i.ModelName(ref.Table.Name)).ForeignKey(ref.FK.Column).Descriptor()
			if !isPrimaryKey(t, ref.FK.RefColumn) {
				d.References = ref.FK.RefColumn
			}
			rs.hasMany = append(rs.hasMany, assign(d))
		}
		start = end
	}

	for _, p := range i.declared(table) {
		name := p.Name
		if name == "" {
			name = i.namer.RelationName(p.RelatedTable, existing, naming.Options{Plural: true})
		}
		d := edge.BelongsToMany(name, i.ModelName(p.RelatedTable)).
			Through(p.Pivot, p.ForeignPivotKey, p.RelatedPivotKey).
			Descriptor()
		rs.belongsToMany = append(rs.belongsToMany, assign(d))
	}
	for _, p := range i.conventional(table) {
		name := i.namer.RelationName(p.RelatedTable, existing, naming.Options{Plural: true})
		d := edge.BelongsToMany(name, i.ModelName(p.RelatedTable)).
			Through(p.Pivot, p.ForeignPivotKey, p.RelatedPivotKey).
			Descriptor()
		rs.belongsToMany = append(rs.belongsToMany, assign(d))
	}
	return rs
}

// declared returns the declared pivots of table, including the inverse
// side of pivots declared on the related table.
func (i *Inferencer) declared(table string) []Pivot {
	var pivots []Pivot
	for _, p := range i.pivots {
		if _, ok := i.snapshot.Table(p.RelatedTable); !ok {
			continue
		}
		switch {
		case p.Table == table:
			pivots = append(pivots, i.keys(p))
		case p.RelatedTable == table:
			inv := i.keys(p)
			inv.Table, inv.RelatedTable = p.RelatedTable, p.Table
			inv.ForeignPivotKey, inv.RelatedPivotKey = inv.RelatedPivotKey, inv.ForeignPivotKey
			inv.Name = ""
			pivots = append(pivots, inv)
		}
	}
	return pivots
}

// conventional returns the pivots of table detected by name.
func (i *Inferencer) conventional(table string) []Pivot {
	var pivots []Pivot
	for _, t := range i.snapshot.Tables {
		if i.isDeclared(t.Name) {
			continue
		}
		first, second, ok := strings.Cut(t.Name, "_")
		if !ok || first == second {
			continue
		}
		var related string
		switch table {
		case first:
			related = second
		case second:
			related = first
		default:
			continue
		}
		if _, ok := i.snapshot.Table(related); !ok {
			continue
		}
		pivots = append(pivots, i.keys(Pivot{Table: table, Pivot: t.Name, RelatedTable: related}))
	}
	return pivots
}

func (i *Inferencer) isDeclared(pivot string) bool {
	return slices.ContainsFunc(i.pivots, func(p Pivot) bool { return p.Pivot == pivot })
}

// keys fills the missing pivot keys of p, preferring the foreign keys of
// the pivot table over the "<singular>_id" convention.
func (i *Inferencer) keys(p Pivot) Pivot {
	t, _ := i.snapshot.Table(p.Pivot)
	lookup := func(target string) string {
		if t != nil {
			for _, fk := range t.ForeignKeys {
				if fk.RefTable == target {
					return fk.Column
				}
			}
		}
		return naming.Singular(target) + "_id"
	}
	if p.ForeignPivotKey == "" {
		p.ForeignPivotKey = lookup(p.Table)
	}
	if p.RelatedPivotKey == "" {
		p.RelatedPivotKey = lookup(p.RelatedTable)
	}
	return p
}

func isPrimaryKey(t *schema.Table, column string) bool {
	return column == "" || len(t.PrimaryKey) == 0 || t.PrimaryKey[0] == column
}

// Spec returns the model spec of table: fields in column order, every
// non auto-increment column fillable, rules inferred from nullability and
// type, and the inferred relations.
func (i *Inferencer) Spec(table string) (*Spec, error) {
	t, ok := i.snapshot.Table(table)
	if !ok {
		return nil, fmt.Errorf("load: unknown table %q", table)
	}
	s := &Spec{
		Name:       i.ModelName(table),
		Table:      table,
		PrimaryKey: "id",
		Rules:      make(field.Rules),
	}
	if len(t.PrimaryKey) > 0 {
		s.PrimaryKey = t.PrimaryKey[0]
	}
	for _, c := range t.Columns {
		f := &Field{
			Name:          c.Name,
			Type:          FieldType(c.Type),
			DBType:        c.Type,
			Nullable:      c.Nullable,
			AutoIncrement: c.AutoIncrement,
			Unique:        c.Key == schema.KeyUnique,
			Default:       c.Default,
		}
		s.Fields = append(s.Fields, f)
		if c.AutoIncrement {
			s.PrimaryKey = c.Name
			continue
		}
		s.Fillable = append(s.Fillable, c.Name)
		s.Rules[c.Name] = Rule(f)
	}
	rs := i.infer(table)
	for _, group := range []struct {
		ds  []*edge.Descriptor
		dst *[]*Edge
	}{
		{rs.belongsTo, &s.Parents},
		{rs.belongsToMany, &s.Spouses},
		{rs.hasMany, &s.Children},
	} {
		for _, d := range group.ds {
			e, err := NewEdge(d)
			if err != nil {
				return nil, fmt.Errorf("load: table %q: %w", table, err)
			}
			*group.dst = append(*group.dst, e)
		}
	}
	i.logger.Debug("inferred model", "table", table, "model", s.Name,
		"parents", len(s.Parents), "spouses", len(s.Spouses), "children", len(s.Children))
	return s, nil
}

// Load infers the spec of every table of the snapshot.
func (i *Inferencer) Load() (*Graph, error) {
	g := &Graph{}
	for _, t := range i.snapshot.Tables {
		s, err := i.Spec(t.Name)
		if err != nil {
			return nil, err
		}
		if err := g.add(s); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Load inspects the database behind in and infers its models.
func Load(ctx context.Context, in schema.Inspector, opts ...Option) (*Graph, error) {
	s, err := in.Inspect(ctx)
	if err != nil {
		return nil, err
	}
	return NewInferencer(s, opts...).Load()
}

var intTypes = []string{
	"int", "integer", "tinyint", "smallint", "mediumint", "bigint",
	"int2", "int4", "int8", "serial", "smallserial", "bigserial", "year",
}

var sizeRe = regexp.MustCompile(`^\s*(?:var)?char\s*\(\s*(\d+)\s*\)`)

// FieldType maps a raw column type to a field type.
func FieldType(dbType string) field.Type {
	t := strings.ToLower(strings.TrimSpace(dbType))
	base, _, _ := strings.Cut(t, "(")
	base = strings.TrimSpace(strings.TrimSuffix(base, " unsigned"))
	switch {
	case t == "tinyint(1)", base == "bool", base == "boolean", base == "bit":
		return field.TypeBool
	case slices.Contains(intTypes, base):
		return field.TypeInt
	case base == "decimal", base == "numeric", base == "float", base == "double", base == "real",
		strings.HasPrefix(base, "double"), strings.HasPrefix(base, "float"):
		return field.TypeFloat
	case base == "date":
		return field.TypeDate
	case strings.HasPrefix(base, "datetime"), strings.HasPrefix(base, "timestamp"), strings.HasPrefix(base, "time"):
		return field.TypeTime
	case base == "json", base == "jsonb":
		return field.TypeJSON
	case base == "uuid":
		return field.TypeUUID
	case strings.Contains(base, "text"), strings.Contains(base, "blob"), base == "clob":
		return field.TypeText
	}
	return field.TypeString
}

// Rule returns the inferred validation rule of f: "nullable" for nullable
// columns, "sometimes|required" otherwise, followed by the type rule.
func Rule(f *Field) string {
	parts := []string{"sometimes", "required"}
	if f.Nullable {
		parts = []string{"nullable"}
	}
	switch f.Type {
	case field.TypeInt:
		parts = append(parts, "integer")
	case field.TypeFloat:
		parts = append(parts, "numeric")
	case field.TypeBool:
		parts = append(parts, "boolean")
	case field.TypeTime, field.TypeDate:
		parts = append(parts, "date")
	case field.TypeUUID:
		parts = append(parts, "uuid")
	case field.TypeText:
		parts = append(parts, "string")
	case field.TypeString:
		parts = append(parts, "string")
		if m := sizeRe.FindStringSubmatch(strings.ToLower(f.DBType)); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				parts = append(parts, "max:"+m[1])
			}
		}
	}
	return strings.Join(parts, "|")
}
