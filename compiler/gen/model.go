package gen

import (
	"go/token"
	"slices"

	"github.com/dave/jennifer/jen"

	"github.com/syssam/ormapi/compiler/load"
	"github.com/syssam/ormapi/compiler/naming"
	"github.com/syssam/ormapi/schema/edge"
	"github.com/syssam/ormapi/schema/field"
)

const (
	ormapiPkg = "github.com/syssam/ormapi"
	edgePkg   = "github.com/syssam/ormapi/schema/edge"
	fieldPkg  = "github.com/syssam/ormapi/schema/field"
	apiPkg    = "github.com/syssam/ormapi/api"
)

// builders maps field types to their field package constructor.
var builders = map[field.Type]string{
	field.TypeString: "String",
	field.TypeText:   "Text",
	field.TypeInt:    "Int",
	field.TypeFloat:  "Float",
	field.TypeBool:   "Bool",
	field.TypeTime:   "Time",
	field.TypeDate:   "Date",
	field.TypeJSON:   "JSON",
	field.TypeUUID:   "UUID",
	field.TypeFile:   "File",
}

// FileName returns the name of the Go file generated for s.
func FileName(s *load.Spec) string {
	return naming.Snake(s.Name) + ".go"
}

// Check reports the specs of g that cannot be generated: model names that
// are not Go identifiers and relations to models missing from g.
func Check(g *load.Graph) error {
	for _, s := range g.Specs {
		if !token.IsIdentifier(s.Name) || !token.IsExported(s.Name) {
			return NewSchemaError(s.Name, "", "model name must be an exported Go identifier", nil)
		}
		for _, e := range s.Edges() {
			if _, ok := g.Spec(e.Model); !ok {
				return NewEdgeError(s.Name, e.Model, e.Name, "related model is not part of the schema", nil)
			}
		}
	}
	return nil
}

// Model returns the Go file declaring the model of s.
func Model(s *load.Spec, cfg *Config) *jen.File {
	f := jen.NewFilePathName(cfg.Package, cfg.Name())
	if cfg.Header != "" {
		f.HeaderComment(cfg.Header)
	}
	f.ImportName(ormapiPkg, "ormapi")
	f.ImportName(edgePkg, "edge")
	f.ImportName(fieldPkg, "field")

	f.Commentf("%s is the model stored in the %q table.", s.Name, s.Table)
	f.Type().Id(s.Name).Struct(jen.Qual(ormapiPkg, "BaseModel"))

	str := func(name, v string) {
		f.Func().Params(jen.Id(s.Name)).Id(name).Params().String().Block(jen.Return(jen.Lit(v)))
	}
	strs := func(name string, vs []string) {
		lits := make([]jen.Code, len(vs))
		for i, v := range vs {
			lits[i] = jen.Lit(v)
		}
		f.Func().Params(jen.Id(s.Name)).Id(name).Params().Index().String().Block(
			jen.Return(jen.Index().String().ValuesFunc(func(g *jen.Group) {
				for _, l := range lits {
					g.Add(l)
				}
			})),
		)
	}

	str("Name", s.Name)
	str("Table", s.Table)
	if s.PrimaryKey != "" && s.PrimaryKey != "id" {
		str("PrimaryKey", s.PrimaryKey)
	}
	if len(s.Fillable) > 0 {
		strs("Fillable", s.Fillable)
	}
	if len(s.Searchable) > 0 {
		strs("SearchableFields", s.Searchable)
	}
	if len(s.Rules) > 0 {
		f.Func().Params(jen.Id(s.Name)).Id("Rules").Params().Qual(fieldPkg, "Rules").Block(
			jen.Return(jen.Qual(fieldPkg, "Rules").Values(jen.DictFunc(func(d jen.Dict) {
				for _, k := range s.Rules.Keys() {
					d[jen.Lit(k)] = jen.Lit(s.Rules[k])
				}
			}))),
		)
	}
	if infos := fieldInfos(s); len(infos) > 0 {
		f.Func().Params(jen.Id(s.Name)).Id("FieldExtraInfo").Params().Qual(fieldPkg, "Infos").Block(
			jen.Return(jen.Qual(fieldPkg, "Infos").Values(jen.DictFunc(func(d jen.Dict) {
				for k, v := range infos {
					d[jen.Lit(k)] = v
				}
			}))),
		)
	}
	relations(f, s.Name, "ParentRelationships", s.Parents)
	relations(f, s.Name, "SpouseRelationships", s.Spouses)
	relations(f, s.Name, "ChildRelationships", s.Children)

	f.Var().Id("_").Qual(ormapiPkg, "Model").Op("=").Parens(jen.Op("*").Id(s.Name)).Parens(jen.Nil())
	return f
}

func fieldInfos(s *load.Spec) map[string]*jen.Statement {
	infos := make(map[string]*jen.Statement)
	for _, fd := range s.Fields {
		b, ok := builders[fd.Type]
		if !ok || fd.Name == s.PrimaryKey {
			continue
		}
		st := jen.Qual(fieldPkg, b).Call()
		if fd.Nullable {
			st.Dot("Optional").Call()
		}
		infos[fd.Name] = st
	}
	return infos
}

func relations(f *jen.File, model, method string, edges []*load.Edge) {
	if len(edges) == 0 {
		return
	}
	f.Func().Params(jen.Id(model)).Id(method).Params().Qual(edgePkg, "Relations").Block(
		jen.Return(jen.Qual(edgePkg, "Relations").ValuesFunc(func(g *jen.Group) {
			for _, e := range edges {
				g.Line().Add(relation(e))
			}
			g.Line()
		})),
	)
}

var kindBuilders = map[edge.Kind]string{
	edge.KindBelongsTo:     "BelongsTo",
	edge.KindHasMany:       "HasMany",
	edge.KindBelongsToMany: "BelongsToMany",
}

func relation(e *load.Edge) *jen.Statement {
	st := jen.Qual(edgePkg, kindBuilders[e.Kind()]).Call(jen.Lit(e.Name), jen.Lit(e.Model))
	if e.ForeignKey != "" {
		st.Dot("ForeignKey").Call(jen.Lit(e.ForeignKey))
	}
	if e.References != "" {
		st.Dot("References").Call(jen.Lit(e.References))
	}
	if p := e.Pivot; p != nil {
		st.Dot("Through").Call(jen.Lit(p.Table), jen.Lit(p.ForeignPivotKey), jen.Lit(p.RelatedPivotKey))
	}
	return st
}

// names returns the model names of g in lexical order.
func names(g *load.Graph) []string {
	ns := make([]string, len(g.Specs))
	for i, s := range g.Specs {
		ns[i] = s.Name
	}
	slices.Sort(ns)
	return ns
}
