package load

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/syssam/ormapi"
	"github.com/syssam/ormapi/schema/edge"
	"github.com/syssam/ormapi/schema/field"
)

// Spec describes a model that was inferred from a table or loaded from a
// hand-written ormapi.Model.
type Spec struct {
	Name       string      `json:"name,omitempty"`
	Table      string      `json:"table,omitempty"`
	PrimaryKey string      `json:"primary_key,omitempty"`
	Fields     []*Field    `json:"fields,omitempty"`
	Fillable   []string    `json:"fillable,omitempty"`
	Rules      field.Rules `json:"rules,omitempty"`
	Searchable []string    `json:"searchable,omitempty"`
	Parents    []*Edge     `json:"parents,omitempty"`
	Spouses    []*Edge     `json:"spouses,omitempty"`
	Children   []*Edge     `json:"children,omitempty"`
}

// Field describes a column of a model.
type Field struct {
	Name          string     `json:"name,omitempty"`
	Type          field.Type `json:"type,omitempty"`
	DBType        string     `json:"db_type,omitempty"`
	Nullable      bool       `json:"nullable,omitempty"`
	AutoIncrement bool       `json:"auto_increment,omitempty"`
	Unique        bool       `json:"unique,omitempty"`
	Default       string     `json:"default,omitempty"`
}

// Edge describes a relation of a model.
type Edge struct {
	Type       string      `json:"type,omitempty"`
	Name       string      `json:"name,omitempty"`
	Model      string      `json:"model,omitempty"`
	ForeignKey string      `json:"foreign_key,omitempty"`
	References string      `json:"references,omitempty"`
	Pivot      *edge.Pivot `json:"pivot,omitempty"`
}

var kinds = map[string]edge.Kind{
	edge.KindBelongsTo.String():     edge.KindBelongsTo,
	edge.KindHasMany.String():       edge.KindHasMany,
	edge.KindBelongsToMany.String(): edge.KindBelongsToMany,
}

// NewEdge creates a loaded edge from an edge descriptor.
// It returns an error if the descriptor is incomplete.
func NewEdge(ed *edge.Descriptor) (*Edge, error) {
	if err := ed.Err(); err != nil {
		return nil, err
	}
	e := &Edge{
		Type:       ed.Kind.String(),
		Name:       ed.Name,
		Model:      ed.Model,
		ForeignKey: ed.ForeignKey,
		References: ed.References,
	}
	if ed.Pivot != nil {
		p := *ed.Pivot
		e.Pivot = &p
	}
	return e, nil
}

// Kind returns the relationship kind of the edge.
func (e *Edge) Kind() edge.Kind {
	return kinds[e.Type]
}

// Descriptor returns the relation descriptor of the edge.
func (e *Edge) Descriptor() *edge.Descriptor {
	d := &edge.Descriptor{
		Kind:       e.Kind(),
		Name:       e.Name,
		Model:      e.Model,
		ForeignKey: e.ForeignKey,
		References: e.References,
	}
	if e.Pivot != nil {
		p := *e.Pivot
		d.Pivot = &p
	}
	return d
}

// Field returns the field named name.
func (s *Spec) Field(name string) (*Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// Edges returns every relation of the spec: parents, spouses and children.
func (s *Spec) Edges() []*Edge {
	edges := make([]*Edge, 0, len(s.Parents)+len(s.Spouses)+len(s.Children))
	edges = append(edges, s.Parents...)
	edges = append(edges, s.Spouses...)
	return append(edges, s.Children...)
}

// Infos returns the extra field information of the spec.
func (s *Spec) Infos() field.Infos {
	infos := make(field.Infos, len(s.Fields))
	for _, f := range s.Fields {
		infos[f.Name] = field.Info{Type: f.Type, Nullable: f.Nullable}
	}
	return infos
}

// MarshalModel encodes a hand-written model into a JSON that can be
// decoded into a Spec. Declaration methods that panic are reported as
// errors.
func MarshalModel(m ormapi.Model) (b []byte, err error) {
	s, err := NewSpec(m)
	if err != nil {
		return nil, err
	}
	return json.Marshal(s)
}

// NewSpec loads the declarations of m into a Spec.
func NewSpec(m ormapi.Model) (*Spec, error) {
	s := &Spec{
		Name:       m.Name(),
		Table:      m.Table(),
		PrimaryKey: m.PrimaryKey(),
		Fillable:   m.Fillable(),
		Searchable: m.SearchableFields(),
	}
	if s.Name == "" {
		s.Name = indirect(reflect.TypeOf(m)).Name()
	}
	rules, err := safeRules(m)
	if err != nil {
		return nil, fmt.Errorf("model %q: %w", s.Name, err)
	}
	s.Rules = rules
	infos, err := safeInfos(m)
	if err != nil {
		return nil, fmt.Errorf("model %q: %w", s.Name, err)
	}
	for _, name := range ormapi.Fields(m) {
		info := infos[name]
		s.Fields = append(s.Fields, &Field{
			Name:          name,
			Type:          info.Type,
			Nullable:      info.Nullable,
			AutoIncrement: name == s.PrimaryKey,
		})
	}
	for _, c := range edge.Categories {
		relations, err := safeRelations(m, c)
		if err != nil {
			return nil, fmt.Errorf("model %q: %w", s.Name, err)
		}
		for _, r := range relations {
			e, err := NewEdge(r.Descriptor())
			if err != nil {
				return nil, fmt.Errorf("model %q: %w", s.Name, err)
			}
			switch c {
			case edge.Parent:
				s.Parents = append(s.Parents, e)
			case edge.Spouse:
				s.Spouses = append(s.Spouses, e)
			case edge.Child:
				s.Children = append(s.Children, e)
			}
		}
	}
	return s, nil
}

// UnmarshalSpec decodes the given buffer to a loaded spec.
func UnmarshalSpec(buf []byte) (*Spec, error) {
	s := &Spec{}
	if err := json.Unmarshal(buf, s); err != nil {
		return nil, err
	}
	for _, e := range s.Edges() {
		if e.Kind() == 0 {
			return nil, fmt.Errorf("model %q: relation %q has unknown type %q", s.Name, e.Name, e.Type)
		}
	}
	return s, nil
}

func safeRules(m ormapi.Model) (rules field.Rules, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("%T.Rules panics: %v", m, v)
		}
	}()
	return m.Rules(), nil
}

func safeInfos(m ormapi.Model) (infos field.Infos, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("%T.FieldExtraInfo panics: %v", m, v)
		}
	}()
	return m.FieldExtraInfo(), nil
}

func safeRelations(m ormapi.Model, c edge.Category) (relations edge.Relations, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("%T %s relationships panic: %v", m, c, v)
		}
	}()
	return ormapi.RelationsOf(m, c), nil
}

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
