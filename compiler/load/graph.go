package load

import (
	"fmt"

	"github.com/syssam/ormapi"
	"github.com/syssam/ormapi/schema/edge"
	"github.com/syssam/ormapi/schema/field"
)

// Graph holds the specs of a schema, ordered by table name.
type Graph struct {
	Specs   []*Spec
	byName  map[string]*Spec
	byTable map[string]*Spec
}

func (g *Graph) add(s *Spec) error {
	if g.byName == nil {
		g.byName = make(map[string]*Spec)
		g.byTable = make(map[string]*Spec)
	}
	if prev, ok := g.byName[s.Name]; ok {
		return fmt.Errorf("load: tables %q and %q map to the same model %q", prev.Table, s.Table, s.Name)
	}
	g.byName[s.Name] = s
	g.byTable[s.Table] = s
	g.Specs = append(g.Specs, s)
	return nil
}

// Spec returns the spec of the model named name.
func (g *Graph) Spec(name string) (*Spec, bool) {
	s, ok := g.byName[name]
	return s, ok
}

// Table returns the spec of the model stored in table.
func (g *Graph) Table(table string) (*Spec, bool) {
	s, ok := g.byTable[table]
	return s, ok
}

// Models returns runtime models for every spec.
func (g *Graph) Models() []ormapi.Model {
	models := make([]ormapi.Model, len(g.Specs))
	for i, s := range g.Specs {
		models[i] = NewModel(s)
	}
	return models
}

// Registry returns a registry holding the models of the graph.
func (g *Graph) Registry() (*ormapi.Registry, error) {
	r := ormapi.NewRegistry()
	if err := r.Register(g.Models()...); err != nil {
		return nil, err
	}
	return r, nil
}

// Model serves a spec as an ormapi.Model, with the permissive hooks of
// ormapi.BaseModel. It backs schemas served without generated code.
type Model struct {
	ormapi.BaseModel
	spec     *Spec
	parents  edge.Relations
	spouses  edge.Relations
	children edge.Relations
}

// NewModel returns the runtime model of s.
func NewModel(s *Spec) *Model {
	m := &Model{spec: s}
	for _, e := range s.Parents {
		m.parents = append(m.parents, e.Descriptor())
	}
	for _, e := range s.Spouses {
		m.spouses = append(m.spouses, e.Descriptor())
	}
	for _, e := range s.Children {
		m.children = append(m.children, e.Descriptor())
	}
	return m
}

// Spec returns the spec of the model.
func (m *Model) Spec() *Spec { return m.spec }

// Name implements ormapi.Model.
func (m *Model) Name() string { return m.spec.Name }

// Table implements ormapi.Model.
func (m *Model) Table() string { return m.spec.Table }

// PrimaryKey implements ormapi.Model.
func (m *Model) PrimaryKey() string { return m.spec.PrimaryKey }

// Fillable implements ormapi.Model.
func (m *Model) Fillable() []string { return m.spec.Fillable }

// Rules implements ormapi.Model.
func (m *Model) Rules() field.Rules { return m.spec.Rules }

// FieldExtraInfo implements ormapi.Model.
func (m *Model) FieldExtraInfo() field.Infos { return m.spec.Infos() }

// SearchableFields implements ormapi.Model.
func (m *Model) SearchableFields() []string { return m.spec.Searchable }

// ParentRelationships implements ormapi.Model.
func (m *Model) ParentRelationships() edge.Relations { return m.parents }

// SpouseRelationships implements ormapi.Model.
func (m *Model) SpouseRelationships() edge.Relations { return m.spouses }

// ChildRelationships implements ormapi.Model.
func (m *Model) ChildRelationships() edge.Relations { return m.children }

var _ ormapi.Model = (*Model)(nil)
