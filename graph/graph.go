package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/ormapi"
	"github.com/syssam/ormapi/schema/edge"
)

// DefaultMaxDepth bounds walks that do not set Options.MaxDepth.
const DefaultMaxDepth = 5

// SkipRelation is returned by a visitor to keep Walk from expanding the
// related model of the current step.
var SkipRelation = errors.New("graph: skip relation")

// Resolver resolves related model names. *ormapi.Registry implements it.
type Resolver interface {
	Resolve(name string) (ormapi.Model, bool)
}

// Options configures a walk.
type Options struct {
	// MaxDepth bounds the number of relations in a path. Zero means
	// DefaultMaxDepth.
	MaxDepth int
	// Visited holds the names of the models already expanded. It is
	// updated by Walk; callers may seed it to exclude models.
	Visited map[string]bool
	// Categories restricts the walk to the given relation categories.
	// Empty means all of them.
	Categories []edge.Category
}

// Step is a single relation reached by a walk.
type Step struct {
	// Path holds the relation names leading to Relation, Relation included.
	Path     []string
	Depth    int
	Owner    ormapi.Model
	Relation *edge.Descriptor
	Related  ormapi.Model
}

// Qualified returns the dotted path of the step, such as "user.posts".
func (s Step) Qualified() string {
	return strings.Join(s.Path, ".")
}

// Prefix returns the dotted path of the owner, empty at the root.
func (s Step) Prefix() string {
	return strings.Join(s.Path[:len(s.Path)-1], ".")
}

// Visitor is called for every step of a walk.
type Visitor func(Step) error

// Walk calls visit for every relation reachable from m. The related model
// of a step is expanded when the path is shorter than the maximum depth and
// the model was not expanded before in the same walk.
func Walk(m ormapi.Model, r Resolver, visit Visitor, opts Options) error {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.Visited == nil {
		opts.Visited = make(map[string]bool)
	}
	if len(opts.Categories) == 0 {
		opts.Categories = edge.Categories
	}
	w := &walker{resolver: r, visit: visit, opts: opts}
	return w.walk(m, nil, 0)
}

type walker struct {
	resolver Resolver
	visit    Visitor
	opts     Options
}

func (w *walker) walk(m ormapi.Model, path []string, depth int) error {
	if depth >= w.opts.MaxDepth || w.opts.Visited[m.Name()] {
		return nil
	}
	w.opts.Visited[m.Name()] = true
	for _, c := range w.opts.Categories {
		for _, d := range ormapi.RelationsOf(m, c).Descriptors() {
			related, ok := w.resolver.Resolve(d.Model)
			if !ok {
				return fmt.Errorf("graph: model %q: relation %q references unknown model %q", m.Name(), d.Name, d.Model)
			}
			step := Step{
				Path:     append(path[:len(path):len(path)], d.Name),
				Depth:    depth,
				Owner:    m,
				Relation: d,
				Related:  related,
			}
			switch err := w.visit(step); {
			case errors.Is(err, SkipRelation):
				continue
			case err != nil:
				return err
			}
			if err := w.walk(related, step.Path, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// Guard bounds recursion that follows data rather than declarations, such
// as a nested payload. A Guard is a value; Enter returns the guard of the
// next level.
type Guard struct {
	max  int
	path []string
}

// NewGuard returns a guard allowing max nested levels. Zero means
// DefaultMaxDepth.
func NewGuard(max int) Guard {
	if max <= 0 {
		max = DefaultMaxDepth
	}
	return Guard{max: max}
}

// ErrTooDeep is returned by Guard.Enter when the maximum depth is reached.
var ErrTooDeep = errors.New("graph: maximum depth reached")

// Enter returns the guard for the relation name one level down.
func (g Guard) Enter(name string) (Guard, error) {
	if g.max == 0 {
		g.max = DefaultMaxDepth
	}
	if len(g.path) >= g.max {
		return g, fmt.Errorf("%w at %s.%s", ErrTooDeep, g.Path(), name)
	}
	return Guard{max: g.max, path: append(g.path[:len(g.path):len(g.path)], name)}, nil
}

// Depth returns the number of levels entered.
func (g Guard) Depth() int { return len(g.path) }

// Path returns the dotted path of the guard, or "$" at the root.
func (g Guard) Path() string {
	if len(g.path) == 0 {
		return "$"
	}
	return strings.Join(g.path, ".")
}
