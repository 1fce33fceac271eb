package load

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/ormapi"
	"github.com/syssam/ormapi/schema/edge"
	"github.com/syssam/ormapi/schema/field"
)

type article struct{ ormapi.BaseModel }

func (article) Name() string       { return "Article" }
func (article) Table() string      { return "articles" }
func (article) Fillable() []string { return []string{"title", "author_id"} }
func (article) Rules() field.Rules { return field.Rules{"title": "required|max:120"} }
func (article) FieldExtraInfo() field.Infos {
	return field.Infos{"title": field.String(), "author_id": field.Int().Optional()}
}
func (article) ParentRelationships() edge.Relations {
	return edge.Relations{edge.BelongsTo("author", "User").ForeignKey("author_id")}
}
func (article) SpouseRelationships() edge.Relations {
	return edge.Relations{edge.BelongsToMany("tags", "Tag").Through("article_tag", "article_id", "tag_id")}
}

type broken struct{ article }

func (broken) Name() string { return "Broken" }
func (broken) ChildRelationships() edge.Relations {
	panic("not declared")
}

type incomplete struct{ article }

func (incomplete) Name() string { return "Incomplete" }
func (incomplete) ChildRelationships() edge.Relations {
	return edge.Relations{edge.HasMany("comments", "Comment")}
}

func TestMarshalModel(t *testing.T) {
	b, err := MarshalModel(article{})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"type":"belongsToMany"`)
	assert.Contains(t, string(b), `"type":"string"`)

	s, err := UnmarshalSpec(b)
	require.NoError(t, err)
	assert.Equal(t, "Article", s.Name)
	assert.Equal(t, "articles", s.Table)
	assert.Equal(t, "id", s.PrimaryKey)
	assert.Equal(t, field.Rules{"title": "required|max:120"}, s.Rules)
	require.Len(t, s.Fields, 3)
	assert.Equal(t, field.TypeInt, s.Fields[1].Type)
	assert.True(t, s.Fields[1].Nullable)
	assert.True(t, s.Fields[2].AutoIncrement)

	require.Len(t, s.Parents, 1)
	d := s.Parents[0].Descriptor()
	assert.Equal(t, edge.KindBelongsTo, d.Kind)
	assert.Equal(t, "author_id", d.ForeignKey)
	require.Len(t, s.Spouses, 1)
	assert.Equal(t, &edge.Pivot{Table: "article_tag", ForeignPivotKey: "article_id", RelatedPivotKey: "tag_id"}, s.Spouses[0].Descriptor().Pivot)
	assert.Empty(t, s.Children)
}

func TestMarshalModel_Errors(t *testing.T) {
	_, err := MarshalModel(broken{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic")

	_, err = MarshalModel(incomplete{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without a foreign key")

	_, err = UnmarshalSpec([]byte(`{"name":"X","parents":[{"type":"hasOne","name":"y"}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown type "hasOne"`)
}

func TestModel(t *testing.T) {
	g, err := NewInferencer(blog(t)).Load()
	require.NoError(t, err)
	s, ok := g.Spec("Post")
	require.True(t, ok)
	m := NewModel(s)

	assert.Equal(t, "Post", m.Name())
	assert.Equal(t, "posts", m.Table())
	assert.Equal(t, s.Fillable, m.Fillable())
	assert.Equal(t, []string{"editor", "user"}, m.ParentRelationships().Names())
	assert.Equal(t, []string{"tags"}, m.SpouseRelationships().Names())
	assert.Equal(t, []string{"comments", "posts_tags"}, m.ChildRelationships().Names())
	assert.Equal(t, field.TypeBool, m.FieldExtraInfo()["published"].Type)
	assert.NoError(t, m.Creatable(context.Background(), nil))

	d, ok := ormapi.Relation(m, "tags")
	require.True(t, ok)
	assert.Equal(t, "posts_tags", d.Pivot.Table)
}
