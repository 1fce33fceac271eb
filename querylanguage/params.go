package querylanguage

import (
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/syssam/ormapi"
	"github.com/syssam/ormapi/dialect/sql"
)

// Paging defaults.
const (
	DefaultPage    = 1
	DefaultPerPage = 1500
)

// Reserved request keys. Body keys with these names are directives and are
// never persisted.
const (
	KeyFilter          = "filter"
	KeySort            = "sort"
	KeyInclude         = "include"
	KeyFields          = "fields"
	KeySearch          = "search"
	KeyPage            = "page"
	KeyPerPage         = "per_page"
	KeyWhereFilters    = "whereFilters"
	KeyM2MRelConfigs   = "m2mRelConfigs"
	KeyParentsToDelete = "parentsToDelete"
)

// Filter is a filter[field] or filter[field-op] parameter. An empty Op is a
// partial match of any of the values.
type Filter struct {
	Field  string
	Op     string
	Values []string
}

// Key returns the filter key as sent by clients.
func (f Filter) Key() string {
	if f.Op == "" {
		return f.Field
	}
	return f.Field + "-" + f.Op
}

// Sort is a single sort key.
type Sort struct {
	Field string
	Desc  bool
}

// Action is the strategy applied to the items of a nested relation.
type Action string

// Nested relation actions.
const (
	// ActionSync diffs the payload items against the linked records.
	ActionSync Action = ""
	// ActionDetach unlinks the payload items instead of creating them.
	ActionDetach Action = "detach"
	// ActionCreateOrAttachSimilar links an existing record similar to a
	// payload item without id, and creates it only when none exists.
	ActionCreateOrAttachSimilar Action = "createOrAttachSimilar"
)

// CompareMode is the similarity used by ActionCreateOrAttachSimilar.
type CompareMode string

// Compare modes.
const (
	// CompareExact matches values ignoring case and surrounding whitespace.
	CompareExact CompareMode = "exact"
	// CompareSluggify matches values with the same slug.
	CompareSluggify CompareMode = "sluggify"
)

// Directive configures how the payload items of one relation are applied.
type Directive struct {
	Action      Action      `json:"action,omitempty"`
	CompareOn   string      `json:"compareOn,omitempty"`
	CompareMode CompareMode `json:"compareMode,omitempty"`
}

func (d *Directive) check(path string) error {
	switch d.Action {
	case ActionSync, ActionDetach:
	case ActionCreateOrAttachSimilar:
		if d.CompareOn == "" {
			d.CompareOn = "name"
		}
		if d.CompareMode == "" {
			d.CompareMode = CompareExact
		}
	default:
		return ormapi.ValidationErrorf(KeyM2MRelConfigs+"."+path, "Unknown action %q.", d.Action)
	}
	switch d.CompareMode {
	case "", CompareExact, CompareSluggify:
	default:
		return ormapi.ValidationErrorf(KeyM2MRelConfigs+"."+path, "Unknown compare mode %q.", d.CompareMode)
	}
	return nil
}

// Params are the parameters of a request.
type Params struct {
	Filters []Filter
	Sort    []Sort
	Include []string
	Fields  []string
	Search  string
	Page    int
	PerPage int
	// Where holds the whereFilters conditions. They are not restricted to
	// the exposed fields of a model and must only be accepted from trusted
	// callers.
	Where P
	// Directives are keyed by relation path, such as "tags" or "posts.tags".
	Directives      map[string]Directive
	ParentsToDelete []string
}

// NewParams returns parameters holding the paging defaults.
func NewParams() *Params {
	return &Params{Page: DefaultPage, PerPage: DefaultPerPage}
}

// Directive returns the directive of a relation path. A directive keyed by
// the bare relation name applies at every depth.
func (p *Params) Directive(path string) Directive {
	if d, ok := p.Directives[path]; ok {
		return d
	}
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return p.Directives[path[i+1:]]
	}
	return Directive{}
}

// Offset returns the number of records skipped by the requested page.
func (p *Params) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Parse parses the query string parameters of a request.
func Parse(q url.Values) (*Params, error) {
	p := NewParams()
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		vs := q[k]
		if len(vs) == 0 {
			continue
		}
		if name, ok := bracket(k, KeyFilter); ok {
			f, err := parseFilter(name, vs)
			if err != nil {
				return nil, err
			}
			p.Filters = append(p.Filters, f)
			continue
		}
		var err error
		switch k {
		case KeySort:
			p.Sort = parseSort(list(vs))
		case KeyInclude:
			p.Include = list(vs)
		case KeyFields:
			p.Fields = list(vs)
		case KeySearch:
			p.Search = strings.TrimSpace(vs[0])
		case KeyPage:
			p.Page, err = positive(k, vs[0])
		case KeyPerPage:
			p.PerPage, err = positive(k, vs[0])
		case KeyWhereFilters:
			p.Where, err = ParseWhere(vs[0])
		case KeyM2MRelConfigs:
			err = p.setDirectives(vs[0])
		case KeyParentsToDelete:
			p.ParentsToDelete, err = strList(k, vs)
		}
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Extract moves the directives carried by a mutation body into p, and
// returns the body without them.
func (p *Params) Extract(body map[string]any) (map[string]any, error) {
	payload := make(map[string]any, len(body))
	for k, v := range body {
		var err error
		switch k {
		case KeyM2MRelConfigs:
			err = p.setDirectives(v)
		case KeyParentsToDelete:
			p.ParentsToDelete, err = strList(k, v)
		case KeyWhereFilters:
			p.Where, err = ParseWhere(v)
		default:
			payload[k] = v
		}
		if err != nil {
			return nil, err
		}
	}
	return payload, nil
}

func (p *Params) setDirectives(v any) error {
	ds := make(map[string]Directive)
	if err := decode(v, &ds); err != nil {
		return ormapi.ValidationErrorf(KeyM2MRelConfigs, "The %s parameter must be an object of relation directives.", KeyM2MRelConfigs)
	}
	for path, d := range ds {
		if err := d.check(path); err != nil {
			return err
		}
		ds[path] = d
	}
	p.Directives = ds
	return nil
}

// decode decodes v, either JSON text or an already decoded value, into dst.
func decode(v, dst any) error {
	raw, ok := v.(string)
	if !ok {
		buf, err := json.Marshal(v)
		if err != nil {
			return err
		}
		raw = string(buf)
	}
	return json.Unmarshal([]byte(raw), dst)
}

// bracket returns name from a "prefix[name]" key.
func bracket(k, prefix string) (string, bool) {
	rest, ok := strings.CutPrefix(k, prefix+"[")
	if !ok || !strings.HasSuffix(rest, "]") || len(rest) == 1 {
		return "", false
	}
	return rest[:len(rest)-1], true
}

func parseFilter(name string, vs []string) (Filter, error) {
	f := Filter{Field: name}
	if i := strings.LastIndexByte(name, '-'); i > 0 {
		if _, ok := sql.ComparisonOp(name[i+1:]); ok {
			f.Field, f.Op = name[:i], name[i+1:]
		}
	}
	if f.Op != "" {
		f.Values = []string{strings.TrimSpace(vs[0])}
		return f, nil
	}
	f.Values = list(vs)
	if len(f.Values) == 0 {
		return f, ormapi.ValidationErrorf(KeyFilter+"."+name, "The filter %s requires a value.", name)
	}
	return f, nil
}

func parseSort(keys []string) []Sort {
	sorts := make([]Sort, 0, len(keys))
	for _, k := range keys {
		s := Sort{Field: k}
		if rest, ok := strings.CutPrefix(k, "-"); ok {
			s = Sort{Field: rest, Desc: true}
		}
		sorts = append(sorts, s)
	}
	return sorts
}

// list splits comma separated values and drops the empty ones.
func list(vs []string) []string {
	var out []string
	for _, v := range vs {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func strList(key string, v any) ([]string, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.HasPrefix(strings.TrimSpace(v), "[") {
			var out []string
			if err := json.Unmarshal([]byte(v), &out); err != nil {
				return nil, ormapi.ValidationErrorf(key, "The %s parameter must be a list of names.", key)
			}
			return out, nil
		}
		return list([]string{v}), nil
	case []string:
		if len(v) == 1 {
			return strList(key, v[0])
		}
		return list(v), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			s, ok := x.(string)
			if !ok {
				return nil, ormapi.ValidationErrorf(key, "The %s parameter must be a list of names.", key)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, ormapi.ValidationErrorf(key, "The %s parameter must be a list of names.", key)
}

func positive(key, v string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 {
		return 0, ormapi.ValidationErrorf(key, "The %s must be a positive integer.", strings.ReplaceAll(key, "_", " "))
	}
	return n, nil
}

// ParseWhere parses whereFilters conditions, given as JSON text or as a
// decoded JSON object. Every key is a condition, and all of them must hold:
//
//	{"status": "active"}          status == "active"
//	{"id": [1, 2]}                id in [1,2]
//	{"deleted_at": null}          deleted_at == nil
//	{"user": {"name": "a8m"}}     has_edge(user, name == "a8m")
//
// An empty object returns a nil predicate.
func ParseWhere(v any) (P, error) {
	var m map[string]any
	switch v := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		m = v
	default:
		if err := decode(v, &m); err != nil {
			return nil, ormapi.ValidationErrorf(KeyWhereFilters, "The %s parameter must be a JSON object.", KeyWhereFilters)
		}
	}
	return where(m, KeyWhereFilters)
}

func where(m map[string]any, path string) (P, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	ps := make([]P, 0, len(keys))
	for _, k := range keys {
		switch v := m[k].(type) {
		case nil:
			ps = append(ps, FieldNil(k))
		case []any:
			ps = append(ps, FieldIn(k, v...))
		case map[string]any:
			inner, err := where(v, path+"."+k)
			if err != nil {
				return nil, err
			}
			if inner == nil {
				ps = append(ps, HasEdge(k))
			} else {
				ps = append(ps, HasEdgeWith(k, inner))
			}
		case string, bool, float64, json.Number:
			ps = append(ps, FieldEQ(k, v))
		default:
			return nil, ormapi.ValidationErrorf(path+"."+k, "Unsupported condition of type %s.", fmt.Sprintf("%T", v))
		}
	}
	return All(ps...), nil
}
