package ormapi

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/syssam/ormapi/schema/edge"
)

// Registry holds the models served by an application, by name and by
// route. It resolves the related model of relation descriptors.
type Registry struct {
	mu     sync.RWMutex
	models map[string]Model
	routes map[string]string
	order  []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		models: make(map[string]Model),
		routes: make(map[string]string),
	}
}

// Register adds models to the registry. The batch is checked as a whole:
// relation names must be unique within each model and must not shadow a
// field, and every related model must be registered, either before or in
// the same batch. On failure nothing is registered.
func (r *Registry) Register(models ...Model) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	batch := make(map[string]Model, len(models))
	var errs []error
	for _, m := range models {
		name := m.Name()
		if _, ok := r.models[name]; ok {
			errs = append(errs, fmt.Errorf("ormapi: model %q already registered", name))
			continue
		}
		if _, ok := batch[name]; ok {
			errs = append(errs, fmt.Errorf("ormapi: model %q registered twice", name))
			continue
		}
		batch[name] = m
	}
	for _, m := range models {
		errs = append(errs, r.check(m, batch)...)
	}
	if err := NewAggregateError(errs...); err != nil {
		return err
	}
	for _, m := range models {
		r.models[m.Name()] = m
		r.routes[RouteName(m)] = m.Name()
		r.order = append(r.order, m.Name())
	}
	return nil
}

func (r *Registry) check(m Model, batch map[string]Model) []error {
	var (
		errs []error
		seen = make(map[string]string)
	)
	for _, f := range Fields(m) {
		seen[strings.ToLower(f)] = "field"
	}
	for _, c := range edge.Categories {
		for _, d := range RelationsOf(m, c).Descriptors() {
			if err := d.Err(); err != nil {
				errs = append(errs, fmt.Errorf("ormapi: model %q: %w", m.Name(), err))
				continue
			}
			if d.Kind.Category() != c {
				errs = append(errs, fmt.Errorf("ormapi: model %q: %s relation %q declared as %s", m.Name(), d.Kind, d.Name, c))
			}
			key := strings.ToLower(d.Name)
			if prev, ok := seen[key]; ok {
				errs = append(errs, fmt.Errorf("ormapi: model %q: relation %q collides with a %s of the same name", m.Name(), d.Name, prev))
			}
			seen[key] = c.String() + " relation"
			_, known := r.models[d.Model]
			if _, inBatch := batch[d.Model]; !known && !inBatch {
				errs = append(errs, fmt.Errorf("ormapi: model %q: relation %q references unknown model %q", m.Name(), d.Name, d.Model))
			}
		}
	}
	return errs
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(models ...Model) {
	if err := r.Register(models...); err != nil {
		panic(err)
	}
}

// Resolve returns the model registered under name.
func (r *Registry) Resolve(name string) (Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	return m, ok
}

// ByRoute returns the model served under the route segment.
func (r *Registry) ByRoute(route string) (Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.routes[route]
	if !ok {
		return nil, false
	}
	return r.models[name], true
}

// Models returns the registered models in registration order.
func (r *Registry) Models() []Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	models := make([]Model, len(r.order))
	for i, name := range r.order {
		models[i] = r.models[name]
	}
	return models
}

// Names returns the registered model names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(slices.Values(r.order))
}
