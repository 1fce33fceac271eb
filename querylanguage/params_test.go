package querylanguage_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/ormapi"
	"github.com/syssam/ormapi/querylanguage"
)

func TestParse_Defaults(t *testing.T) {
	p, err := querylanguage.Parse(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 1500, p.PerPage)
	assert.Zero(t, p.Offset())
	assert.Nil(t, p.Where)
	assert.Empty(t, p.Filters)
}

func TestParse(t *testing.T) {
	q := url.Values{
		"filter[title]":         {"go,rust"},
		"filter[created_at-gt]": {"2024-01-01"},
		"filter[user.name]":     {"a8m"},
		"sort":                  {"-created_at,title"},
		"include":               {"user, tags"},
		"fields":                {"id,title"},
		"search":                {" databases "},
		"page":                  {"3"},
		"per_page":              {"20"},
		"parentsToDelete":       {"user,editor"},
	}
	p, err := querylanguage.Parse(q)
	require.NoError(t, err)
	assert.Equal(t, []querylanguage.Filter{
		{Field: "created_at", Op: "gt", Values: []string{"2024-01-01"}},
		{Field: "title", Values: []string{"go", "rust"}},
		{Field: "user.name", Values: []string{"a8m"}},
	}, p.Filters)
	assert.Equal(t, []querylanguage.Sort{{Field: "created_at", Desc: true}, {Field: "title"}}, p.Sort)
	assert.Equal(t, []string{"user", "tags"}, p.Include)
	assert.Equal(t, []string{"id", "title"}, p.Fields)
	assert.Equal(t, "databases", p.Search)
	assert.Equal(t, 40, p.Offset())
	assert.Equal(t, []string{"user", "editor"}, p.ParentsToDelete)
	assert.Equal(t, "created_at-gt", p.Filters[0].Key())
}

func TestParse_FilterDashWithoutOperator(t *testing.T) {
	p, err := querylanguage.Parse(url.Values{"filter[e-mail]": {"x"}})
	require.NoError(t, err)
	require.Len(t, p.Filters, 1)
	assert.Equal(t, "e-mail", p.Filters[0].Field)
	assert.Empty(t, p.Filters[0].Op)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		q    url.Values
		path string
	}{
		{name: "page", q: url.Values{"page": {"0"}}, path: "page"},
		{name: "per_page", q: url.Values{"per_page": {"many"}}, path: "per_page"},
		{name: "empty filter", q: url.Values{"filter[title]": {" , "}}, path: "filter.title"},
		{name: "where", q: url.Values{"whereFilters": {"[1"}}, path: "whereFilters"},
		{name: "action", q: url.Values{"m2mRelConfigs": {`{"tags":{"action":"merge"}}`}}, path: "m2mRelConfigs.tags"},
		{name: "mode", q: url.Values{"m2mRelConfigs": {`{"tags":{"action":"createOrAttachSimilar","compareMode":"fuzzy"}}`}}, path: "m2mRelConfigs.tags"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := querylanguage.Parse(tt.q)
			require.Error(t, err)
			var verr *ormapi.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Messages, tt.path)
		})
	}
}

func TestParseWhere(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: `{}`, want: ""},
		{in: `{"status":"active"}`, want: `status == "active"`},
		{in: `{"id":[1,2],"status":"active"}`, want: `id in [1,2] && status == "active"`},
		{in: `{"a":1,"b":null,"c":true}`, want: `(a == 1 && b == nil && c == true)`},
		{in: `{"user":{"name":"a8m"}}`, want: `has_edge(user, name == "a8m")`},
		{in: `{"tags":{}}`, want: `has_edge(tags)`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := querylanguage.ParseWhere(tt.in)
			require.NoError(t, err)
			if tt.want == "" {
				assert.Nil(t, p)
				return
			}
			assert.Equal(t, tt.want, p.String())
		})
	}
}

func TestParseWhere_Decoded(t *testing.T) {
	p, err := querylanguage.ParseWhere(map[string]any{"user": map[string]any{"id": []any{float64(7)}}})
	require.NoError(t, err)
	assert.Equal(t, `has_edge(user, id in [7])`, p.String())

	_, err = querylanguage.ParseWhere(map[string]any{"id": map[string]int{"a": 1}})
	assert.True(t, ormapi.IsValidationError(err))
}

func TestExtract(t *testing.T) {
	p := querylanguage.NewParams()
	payload, err := p.Extract(map[string]any{
		"name": "post",
		"tags": []any{map[string]any{"name": "ACME Corp"}},
		"m2mRelConfigs": map[string]any{
			"tags":       map[string]any{"action": "createOrAttachSimilar", "compareMode": "sluggify"},
			"post.links": map[string]any{"action": "detach"},
		},
		"parentsToDelete": []any{"user"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"name": "post",
		"tags": []any{map[string]any{"name": "ACME Corp"}},
	}, payload)
	assert.Equal(t, []string{"user"}, p.ParentsToDelete)

	d := p.Directive("tags")
	assert.Equal(t, querylanguage.ActionCreateOrAttachSimilar, d.Action)
	assert.Equal(t, "name", d.CompareOn)
	assert.Equal(t, querylanguage.CompareSluggify, d.CompareMode)
	assert.Equal(t, d, p.Directive("comments.tags"), "bare names apply at every depth")
	assert.Equal(t, querylanguage.ActionDetach, p.Directive("post.links").Action)
	assert.Equal(t, querylanguage.Directive{}, p.Directive("links"))
}

func TestWalk(t *testing.T) {
	p := querylanguage.And(
		querylanguage.FieldEQ("a", 1),
		querylanguage.HasEdgeWith("user", querylanguage.FieldEQ("b", 2)),
	)
	var fields []string
	querylanguage.Walk(p, func(x querylanguage.Expr) bool {
		if f, ok := x.(*querylanguage.Field); ok {
			fields = append(fields, f.Name)
		}
		_, call := x.(*querylanguage.CallExpr)
		return !call
	})
	assert.Equal(t, []string{"a"}, fields)
}
