package schema

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
)

// Inspector reads the metadata of a set of tables.
type Inspector interface {
	Inspect(ctx context.Context) (*Snapshot, error)
}

// Config holds the inputs of an inspector. Live inspectors use Dialect,
// DB and Schema; DDL inspectors use DDL.
type Config struct {
	Dialect string
	DB      *sql.DB
	Schema  string
	DDL     string
	Exclude []string
}

// excluded reports whether table is skipped. Patterns ending with "*"
// match by prefix.
func (c Config) excluded(table string) bool {
	if strings.HasPrefix(table, "sqlite_") || table == "atlas_schema_revisions" {
		return true
	}
	return slices.ContainsFunc(c.Exclude, func(p string) bool {
		if prefix, ok := strings.CutSuffix(p, "*"); ok {
			return strings.HasPrefix(table, prefix)
		}
		return p == table
	})
}

var (
	registry = make(map[string]func(Config) (Inspector, error))
	mu       sync.RWMutex
)

// Register makes an inspector available under source.
func Register(source string, fn func(Config) (Inspector, error)) {
	mu.Lock()
	defer mu.Unlock()
	registry[source] = fn
}

// NewInspector returns the inspector registered under source, "live" or
// "ddl" by default.
func NewInspector(source string, cfg Config) (Inspector, error) {
	mu.RLock()
	fn, ok := registry[source]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("schema: unknown inspection source %q (known: %s)", source, strings.Join(Sources(), ", "))
	}
	return fn(cfg)
}

// Sources returns the registered inspection sources.
func Sources() []string {
	mu.RLock()
	defer mu.RUnlock()
	sources := make([]string, 0, len(registry))
	for s := range registry {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	return sources
}

func init() {
	Register("live", func(cfg Config) (Inspector, error) { return NewAtlasInspector(cfg) })
	Register("ddl", func(cfg Config) (Inspector, error) { return NewDDLInspector(cfg), nil })
}
