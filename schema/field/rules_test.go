package field_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/ormapi/schema/field"
)

func TestParse(t *testing.T) {
	t.Parallel()
	cs := field.Parse("sometimes|required| max:255 |in:a,b")
	require.Len(t, cs, 4)
	assert.Equal(t, "sometimes", cs[0].Name)
	assert.Equal(t, "max", cs[2].Name)
	assert.Equal(t, []string{"255"}, cs[2].Params)
	assert.Equal(t, []string{"a", "b"}, cs[3].Params)
}

func TestRules_Nest(t *testing.T) {
	t.Parallel()
	rules := field.Rules{"body": "required", "post_id": "required"}
	nested := rules.Nest("comments", "post_id")
	assert.Equal(t, field.Rules{"comments.*.body": "required"}, nested)
}

func TestRules_Sometimes(t *testing.T) {
	t.Parallel()
	rules := field.Rules{"name": "required|string", "email": "sometimes|email"}.Sometimes()
	assert.Equal(t, field.Rules{"name": "sometimes|required|string", "email": "sometimes|email"}, rules)
	assert.Nil(t, field.Validate(map[string]any{"id": 1}, rules))
	assert.NotNil(t, field.Validate(map[string]any{"name": ""}, rules))
	assert.Equal(t, field.Rules{"email": "sometimes|email"}, rules.Without("name"))
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		payload map[string]any
		rules   field.Rules
		want    field.Errors
	}{
		{
			name:    "valid",
			payload: map[string]any{"title": "hello", "views": float64(3)},
			rules:   field.Rules{"title": "required|string|max:10", "views": "integer|min:1"},
		},
		{
			name:    "missing required",
			payload: map[string]any{},
			rules:   field.Rules{"title": "required"},
			want:    field.Errors{"title": {"The title field is required."}},
		},
		{
			name:    "sometimes skips absent keys",
			payload: map[string]any{},
			rules:   field.Rules{"title": "sometimes|required"},
		},
		{
			name:    "sometimes validates present keys",
			payload: map[string]any{"title": "  "},
			rules:   field.Rules{"title": "sometimes|required"},
			want:    field.Errors{"title": {"The title field is required."}},
		},
		{
			name:    "nullable accepts nil",
			payload: map[string]any{"published_at": nil},
			rules:   field.Rules{"published_at": "nullable|date"},
		},
		{
			name:    "type errors",
			payload: map[string]any{"views": "many", "at": "yesterday", "kind": "c"},
			rules:   field.Rules{"views": "integer", "at": "date", "kind": "in:a,b"},
			want: field.Errors{
				"views": {"The views field must be an integer."},
				"at":    {"The at field must be a valid date."},
				"kind":  {"The selected kind is invalid."},
			},
		},
		{
			name: "nested list",
			payload: map[string]any{"comments": []any{
				map[string]any{"body": "ok"},
				map[string]any{},
			}},
			rules: field.Rules{"comments.*.body": "required|string"},
			want:  field.Errors{"comments.1.body": {"The comments.1.body field is required."}},
		},
		{
			name:    "nested object",
			payload: map[string]any{"user": map[string]any{"email": "nope"}},
			rules:   field.Rules{"user.*.email": "email"},
			want:    field.Errors{"user.email": {"The user.email field must be a valid email address."}},
		},
		{
			name:    "absent relation is not validated",
			payload: map[string]any{},
			rules:   field.Rules{"comments.*.body": "required"},
		},
		{
			name:    "max on strings counts characters",
			payload: map[string]any{"code": "héllo"},
			rules:   field.Rules{"code": "max:4"},
			want:    field.Errors{"code": {"The code field must not be greater than 4 characters."}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, field.Validate(tt.payload, tt.rules))
		})
	}
}

func TestInfo(t *testing.T) {
	t.Parallel()
	assert.Equal(t, field.ComparisonOps, field.Time().Ops())
	assert.Empty(t, field.String().Ops())
	assert.True(t, field.Int().Comparable("gt").HasOp("gt"))
	assert.False(t, field.Int().Comparable("gt").HasOp("lt"))

	clean := field.Text().Sanitized().Clean("<b>bold</b> text")
	assert.Equal(t, "bold text", clean)
	assert.Equal(t, "<b>raw</b>", field.Text().Clean("<b>raw</b>"))

	infos := field.Infos{"cover": field.File(), "avatar": field.File().OnDisk("public"), "name": field.String()}
	assert.Equal(t, []string{"avatar", "cover"}, infos.Files())

	typ, ok := field.ParseType("TIME")
	require.True(t, ok)
	assert.Equal(t, field.TypeTime, typ)
}
