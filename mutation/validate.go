package mutation

import (
	"encoding/json"
	"strconv"

	"github.com/syssam/ormapi"
	"github.com/syssam/ormapi/graph"
	"github.com/syssam/ormapi/schema/edge"
	"github.com/syssam/ormapi/schema/field"
)

// Rules returns the validation rules of a payload of m. The rules of every
// relation reachable from m are nested under its path ("tags.*.name",
// "user.*.posts.*.title"). The foreign key of a hasMany relation is left
// out of the nested rules since the owner sets it.
func Rules(m ormapi.Model, r graph.Resolver, opts graph.Options) (field.Rules, error) {
	rules := field.Rules{}.Merge(m.Rules())
	prefixes := make(map[string]string)
	err := graph.Walk(m, r, func(s graph.Step) error {
		prefix := s.Relation.Name
		if p := s.Prefix(); p != "" {
			prefix = prefixes[p] + ".*." + prefix
		}
		prefixes[s.Qualified()] = prefix
		rules = rules.Merge(s.Related.Rules().Nest(prefix, except(s.Owner, s.Relation, s.Related)...))
		return nil
	}, opts)
	if err != nil {
		return nil, err
	}
	return rules, nil
}

// except returns the fields of related set by the owner of d.
func except(owner ormapi.Model, d *edge.Descriptor, related ormapi.Model) []string {
	if d.Kind != edge.KindHasMany {
		return nil
	}
	_, fk := ormapi.Keys(owner, d, related)
	return []string{fk}
}

// Validate checks payload against the rules of m and of the related models
// it nests. Items referencing an existing record, and the payload itself
// when existing is set, are only checked for the fields they carry.
func (e *Engine) Validate(m ormapi.Model, payload ormapi.Record, existing bool) error {
	errs := make(field.Errors)
	if err := e.validate(m, payload, "", nil, existing, graph.NewGuard(e.maxDepth), errs); err != nil {
		return err
	}
	if len(errs) == 0 {
		return nil
	}
	return ormapi.NewValidationError(errs)
}

func (e *Engine) validate(m ormapi.Model, item ormapi.Record, at string, skip []string, existing bool, g graph.Guard, errs field.Errors) error {
	rules := m.Rules().Without(skip...)
	if existing {
		rules = rules.Sometimes()
	}
	for k, msgs := range field.Validate(item, rules) {
		errs[at+k] = append(errs[at+k], msgs...)
	}
	return graph.Walk(m, e.resolver, func(s graph.Step) error {
		v, ok := item[s.Relation.Name]
		if !ok {
			return nil
		}
		key := at + s.Relation.Name
		next, err := g.Enter(s.Relation.Name)
		if err != nil {
			errs.Add(key, "The "+attribute(key)+" relation is nested too deeply.")
			return nil
		}
		if s.Relation.Kind == edge.KindBelongsTo {
			if v == nil {
				return nil
			}
			return e.validateItem(s.Related, v, key, nil, next, errs)
		}
		items, err := list(v, key)
		if err != nil {
			errs.Add(key, "The "+attribute(key)+" field must be an array.")
			return nil
		}
		skip := except(m, s.Relation, s.Related)
		for i, x := range items {
			if err := e.validateItem(s.Related, x, key+"."+strconv.Itoa(i), skip, next, errs); err != nil {
				return err
			}
		}
		return nil
	}, graph.Options{MaxDepth: 1})
}

func (e *Engine) validateItem(m ormapi.Model, v any, key string, skip []string, g graph.Guard, errs field.Errors) error {
	switch v := v.(type) {
	case map[string]any:
		return e.validate(m, v, key+".", skip, v[m.PrimaryKey()] != nil, g, errs)
	case string, float64, int, int64, json.Number:
		return nil
	}
	errs.Add(key, "The "+attribute(key)+" field must be an object or an id.")
	return nil
}
