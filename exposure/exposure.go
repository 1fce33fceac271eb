// Package exposure serves the read side of models: it computes which fields
// and relations a model exposes to clients, and answers list and fetch
// requests restricted to that exposure.
package exposure

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/ormapi"
	"github.com/syssam/ormapi/dialect"
	"github.com/syssam/ormapi/dialect/sql/sqlgraph"
	"github.com/syssam/ormapi/graph"
)

// Exposure is the set of fields and relations a model exposes.
type Exposure struct {
	// Fields holds the fillable fields and primary key of the model, then
	// the fillable fields of every reachable relation, qualified with the
	// relation path ("user.name").
	Fields []string `msgpack:"fields" json:"fields"`
	// Relations holds the includable relation paths ("user", "user.posts").
	Relations []string `msgpack:"relations" json:"relations"`
	// Searchable holds the full-text searchable fields of the model itself.
	Searchable []string `msgpack:"searchable" json:"searchable"`
}

// HasField reports whether field is exposed.
func (e *Exposure) HasField(field string) bool {
	return slices.Contains(e.Fields, field)
}

// HasRelation reports whether the relation path is exposed.
func (e *Exposure) HasRelation(path string) bool {
	return slices.Contains(e.Relations, path)
}

// Compute walks the relationship graph of m and returns its exposure.
// The result only depends on the declarations of the models involved.
func Compute(m ormapi.Model, r graph.Resolver, opts graph.Options) (*Exposure, error) {
	e := &Exposure{
		Fields:     ormapi.Fields(m),
		Relations:  []string{},
		Searchable: slices.Clone(m.SearchableFields()),
	}
	err := graph.Walk(m, r, func(s graph.Step) error {
		path := s.Qualified()
		e.Relations = append(e.Relations, path)
		for _, f := range s.Related.Fillable() {
			e.Fields = append(e.Fields, path+"."+f)
		}
		return nil
	}, opts)
	if err != nil {
		return nil, err
	}
	if e.Searchable == nil {
		e.Searchable = []string{}
	}
	return e, nil
}

// Engine answers read requests against a driver.
type Engine struct {
	drv      dialect.Driver
	resolver graph.Resolver
	cache    ormapi.Cache
	ttl      time.Duration
	maxDepth int
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache memoizes computed exposures in c for ttl. Zero ttl keeps them
// until the cache is cleared.
func WithCache(c ormapi.Cache, ttl time.Duration) Option {
	return func(e *Engine) {
		e.cache = c
		e.ttl = ttl
	}
}

// WithMaxDepth bounds the relation paths of computed exposures.
func WithMaxDepth(n int) Option {
	return func(e *Engine) { e.maxDepth = n }
}

// WithLogger sets the logger of the engine.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine returns an engine reading through drv. Related models are
// resolved with r.
func NewEngine(drv dialect.Driver, r graph.Resolver, opts ...Option) *Engine {
	e := &Engine{
		drv:      drv,
		resolver: r,
		maxDepth: graph.DefaultMaxDepth,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CacheKey returns the cache key of the exposure of model name.
func CacheKey(name string) string {
	return "ormapi:exposure:" + name
}

// Exposure returns the exposure of m, from the cache when one is set.
func (e *Engine) Exposure(ctx context.Context, m ormapi.Model) (*Exposure, error) {
	key := CacheKey(m.Name())
	if e.cache != nil {
		buf, err := e.cache.Get(ctx, key)
		switch {
		case err != nil:
			e.logger.WarnContext(ctx, "reading cached exposure", "model", m.Name(), "error", err)
		case buf != nil:
			var ex Exposure
			derr := msgpack.Unmarshal(buf, &ex)
			if derr == nil {
				return &ex, nil
			}
			e.logger.WarnContext(ctx, "decoding cached exposure", "model", m.Name(), "error", derr)
		}
	}
	ex, err := Compute(m, e.resolver, graph.Options{MaxDepth: e.maxDepth})
	if err != nil {
		return nil, fmt.Errorf("exposure: computing %s: %w", m.Name(), err)
	}
	e.logger.DebugContext(ctx, "exposure computed", "model", m.Name(), "fields", len(ex.Fields), "relations", len(ex.Relations))
	if e.cache != nil {
		buf, err := msgpack.Marshal(ex)
		if err == nil {
			err = e.cache.Set(ctx, key, buf, e.ttl)
		}
		if err != nil {
			e.logger.WarnContext(ctx, "caching exposure", "model", m.Name(), "error", err)
		}
	}
	return ex, nil
}

func (e *Engine) store(eq dialect.ExecQuerier) *sqlgraph.Store {
	return sqlgraph.New(e.drv.Dialect(), eq)
}
