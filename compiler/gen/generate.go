package gen

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/ormapi/compiler/load"
)

// OpenAPIFile is the name of the generated OpenAPI document.
const OpenAPIFile = "openapi.json"

// Generator writes the model package of a graph.
type Generator struct {
	graph  *load.Graph
	cfg    *Config
	logger *slog.Logger
	prefix string

	mu    sync.Mutex
	files []string
}

// New returns a Generator for g.
func New(g *load.Graph, opts ...Option) (*Generator, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}
	if err := Check(g); err != nil {
		return nil, err
	}
	return &Generator{graph: g, cfg: cfg, logger: slog.Default(), prefix: "/api"}, nil
}

// WithLogger sets the logger of the generator.
func (g *Generator) WithLogger(l *slog.Logger) *Generator {
	if l != nil {
		g.logger = l
	}
	return g
}

// WithPrefix sets the route prefix written to the OpenAPI document.
func (g *Generator) WithPrefix(prefix string) *Generator {
	g.prefix = prefix
	return g
}

// Config returns the configuration of the generator.
func (g *Generator) Config() *Config { return g.cfg }

// Files returns the paths written by the last run, relative to the target.
func (g *Generator) Files() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.files...)
}

// Generate writes one file per model, the graph-level files and, when
// enabled, the OpenAPI document.
func (g *Generator) Generate(ctx context.Context) error {
	if err := os.MkdirAll(g.cfg.Target, 0o755); err != nil {
		return NewGenerationError("setup", g.cfg.Target, "create target directory", err)
	}
	g.files = nil
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Workers)
	for _, s := range g.graph.Specs {
		eg.Go(func() error {
			return g.write(ctx, "model", FileName(s), func(path string) error {
				return writeJen(path, Model(s, g.cfg))
			})
		})
	}
	data := newGraphData(g.graph, g.cfg)
	for _, t := range GraphTemplates {
		eg.Go(func() error {
			return g.write(ctx, t.Name, t.Format, func(path string) error {
				return writeTemplate(path, t, data)
			})
		})
	}
	if g.cfg.OpenAPI {
		eg.Go(func() error {
			return g.write(ctx, "openapi", OpenAPIFile, func(path string) error {
				doc, err := Document(g.graph, g.cfg, g.prefix)
				if err != nil {
					return err
				}
				if err := doc.Validate(ctx); err != nil {
					return err
				}
				return writeJSON(path, doc)
			})
		})
	}
	return eg.Wait()
}

func (g *Generator) write(ctx context.Context, phase, name string, fn func(string) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(filepath.Join(g.cfg.Target, name)); err != nil {
		if IsGenerationError(err) || IsEdgeError(err) {
			return err
		}
		return NewGenerationError(phase, name, "", err)
	}
	g.mu.Lock()
	g.files = append(g.files, name)
	g.mu.Unlock()
	g.logger.Debug("file generated", "phase", phase, "file", name)
	return nil
}

// Generate is a convenience function writing the model package of g.
func Generate(ctx context.Context, g *load.Graph, opts ...Option) error {
	gen, err := New(g, opts...)
	if err != nil {
		return err
	}
	return gen.Generate(ctx)
}
