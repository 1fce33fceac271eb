package load

import (
	"context"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/ormapi/dialect/sql/schema"
	"github.com/syssam/ormapi/schema/edge"
	"github.com/syssam/ormapi/schema/field"
)

func parse(t *testing.T, ddl string) *schema.Snapshot {
	t.Helper()
	s, err := schema.ParseDDL(ddl)
	require.NoError(t, err)
	return s
}

func blog(t *testing.T) *schema.Snapshot {
	t.Helper()
	b, err := os.ReadFile("testdata/blog.sql")
	require.NoError(t, err)
	return parse(t, string(b))
}

func TestInferencer_PostsUsers(t *testing.T) {
	i := NewInferencer(parse(t, `
		CREATE TABLE users (id INT AUTO_INCREMENT PRIMARY KEY);
		CREATE TABLE posts (id INT AUTO_INCREMENT PRIMARY KEY, user_id INT NOT NULL, FOREIGN KEY (user_id) REFERENCES users (id));
	`))
	want := []*edge.Descriptor{{Kind: edge.KindBelongsTo, Name: "user", Model: "User", ForeignKey: "user_id"}}
	if diff := cmp.Diff(want, i.BelongsTo("posts")); diff != "" {
		t.Errorf("BelongsTo(posts) mismatch (-want +got):\n%s", diff)
	}
	want = []*edge.Descriptor{{Kind: edge.KindHasMany, Name: "posts", Model: "Post", ForeignKey: "user_id"}}
	if diff := cmp.Diff(want, i.HasMany("users")); diff != "" {
		t.Errorf("HasMany(users) mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, i.BelongsTo("users"))
	assert.Empty(t, i.HasMany("posts"))
	assert.Empty(t, i.BelongsToMany("posts"))
	assert.Empty(t, i.BelongsTo("missing"))
}

func TestInferencer_BelongsTo(t *testing.T) {
	i := NewInferencer(blog(t))

	// Column order, not constraint order.
	got := i.BelongsTo("posts")
	require.Len(t, got, 2)
	assert.Equal(t, "editor", got[0].Name)
	assert.Equal(t, "editor_id", got[0].ForeignKey)
	assert.Equal(t, "user", got[1].Name)
	assert.Equal(t, "User", got[1].Model)

	// The relation name collides with the "post" column; the foreign key to
	// the missing archives table is omitted.
	got = i.BelongsTo("comments")
	require.Len(t, got, 1)
	assert.Equal(t, "post_rel", got[0].Name)
	assert.Equal(t, "Post", got[0].Model)

	got = i.BelongsTo("users")
	require.Len(t, got, 1)
	assert.Equal(t, "manager", got[0].Name)
	assert.Equal(t, "User", got[0].Model)
}

func TestInferencer_HasMany(t *testing.T) {
	i := NewInferencer(blog(t))

	got := i.HasMany("users")
	names := make([]string, len(got))
	for j, d := range got {
		names[j] = d.Name
		assert.Equal(t, edge.KindHasMany, d.Kind)
	}
	// posts has two foreign keys to users and is qualified; users has one.
	assert.Equal(t, []string{"posts_where_editor_id", "posts_where_user_id", "users"}, names)
	assert.Equal(t, "editor_id", got[0].ForeignKey)
	assert.Equal(t, "Post", got[0].Model)
	assert.Equal(t, "manager_id", got[2].ForeignKey)

	got = i.HasMany("posts")
	require.Len(t, got, 2)
	assert.Equal(t, "comments", got[0].Name)
	assert.Equal(t, "post_id", got[0].ForeignKey)
	assert.Equal(t, "posts_tags", got[1].Name)
	assert.Equal(t, "PostsTag", got[1].Model)
}

func TestInferencer_BelongsToMany(t *testing.T) {
	t.Run("Convention", func(t *testing.T) {
		i := NewInferencer(blog(t))
		want := []*edge.Descriptor{{
			Kind:  edge.KindBelongsToMany,
			Name:  "tags",
			Model: "Tag",
			Pivot: &edge.Pivot{Table: "posts_tags", ForeignPivotKey: "post_id", RelatedPivotKey: "tag_id"},
		}}
		if diff := cmp.Diff(want, i.BelongsToMany("posts")); diff != "" {
			t.Errorf("BelongsToMany(posts) mismatch (-want +got):\n%s", diff)
		}
		got := i.BelongsToMany("tags")
		require.Len(t, got, 1)
		assert.Equal(t, "posts", got[0].Name)
		assert.Equal(t, &edge.Pivot{Table: "posts_tags", ForeignPivotKey: "tag_id", RelatedPivotKey: "post_id"}, got[0].Pivot)
		assert.Empty(t, i.BelongsToMany("users"))
	})
	t.Run("ConventionKeys", func(t *testing.T) {
		i := NewInferencer(parse(t, `
			CREATE TABLE roles (id INT PRIMARY KEY);
			CREATE TABLE users (id INT PRIMARY KEY);
			CREATE TABLE roles_users (role_id INT, user_id INT);
			CREATE TABLE users_archive (id INT PRIMARY KEY);
		`))
		got := i.BelongsToMany("users")
		require.Len(t, got, 1)
		assert.Equal(t, "roles", got[0].Name)
		assert.Equal(t, &edge.Pivot{Table: "roles_users", ForeignPivotKey: "user_id", RelatedPivotKey: "role_id"}, got[0].Pivot)
	})
	t.Run("Declared", func(t *testing.T) {
		i := NewInferencer(parse(t, `
			CREATE TABLE posts (id INT PRIMARY KEY);
			CREATE TABLE tags (id INT PRIMARY KEY);
			CREATE TABLE post_tag (p INT, t INT);
			CREATE TABLE posts_tags (post_id INT, tag_id INT);
		`), WithPivots(Pivot{
			Table:           "posts",
			Pivot:           "post_tag",
			ForeignPivotKey: "p",
			RelatedPivotKey: "t",
			RelatedTable:    "tags",
			Name:            "labels",
		}, Pivot{
			Table:        "posts",
			Pivot:        "posts_tags",
			RelatedTable: "tags",
		}))
		got := i.BelongsToMany("posts")
		require.Len(t, got, 2)
		assert.Equal(t, "labels", got[0].Name)
		assert.Equal(t, &edge.Pivot{Table: "post_tag", ForeignPivotKey: "p", RelatedPivotKey: "t"}, got[0].Pivot)
		assert.Equal(t, "tags", got[1].Name)
		assert.Equal(t, &edge.Pivot{Table: "posts_tags", ForeignPivotKey: "post_id", RelatedPivotKey: "tag_id"}, got[1].Pivot)

		got = i.BelongsToMany("tags")
		require.Len(t, got, 2)
		assert.Equal(t, "posts", got[0].Name)
		assert.Equal(t, &edge.Pivot{Table: "post_tag", ForeignPivotKey: "t", RelatedPivotKey: "p"}, got[0].Pivot)
		assert.Equal(t, "posts_rel", got[1].Name)
	})
}

func TestInferencer_Deterministic(t *testing.T) {
	a, err := NewInferencer(blog(t)).Load()
	require.NoError(t, err)
	b, err := NewInferencer(blog(t)).Load()
	require.NoError(t, err)
	if diff := cmp.Diff(a.Specs, b.Specs); diff != "" {
		t.Errorf("inference is not deterministic (-first +second):\n%s", diff)
	}
}

func TestInferencer_Spec(t *testing.T) {
	i := NewInferencer(blog(t))
	s, err := i.Spec("posts")
	require.NoError(t, err)
	assert.Equal(t, "Post", s.Name)
	assert.Equal(t, "id", s.PrimaryKey)
	assert.Equal(t, []string{"title", "body", "published", "published_at", "editor_id", "user_id"}, s.Fillable)
	assert.Equal(t, field.Rules{
		"title":        "sometimes|required|string|max:255",
		"body":         "nullable|string",
		"published":    "sometimes|required|boolean",
		"published_at": "nullable|date",
		"editor_id":    "nullable|integer",
		"user_id":      "sometimes|required|integer",
	}, s.Rules)
	f, ok := s.Field("published_at")
	require.True(t, ok)
	assert.Equal(t, field.TypeTime, f.Type)
	assert.True(t, s.Infos()["published_at"].Type.TimeLike())
	assert.Equal(t, []string{"editor", "user"}, edgeNames(s.Parents))
	assert.Equal(t, []string{"tags"}, edgeNames(s.Spouses))
	assert.Equal(t, []string{"comments", "posts_tags"}, edgeNames(s.Children))

	_, err = i.Spec("missing")
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	in, err := schema.NewInspector("ddl", schema.Config{DDL: "testdata/blog.sql"})
	require.NoError(t, err)
	g, err := Load(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, g.Specs, 5)
	s, ok := g.Table("posts_tags")
	require.True(t, ok)
	assert.Equal(t, "PostsTag", s.Name)
	assert.Equal(t, "post_id", s.PrimaryKey)

	r, err := g.Registry()
	require.NoError(t, err)
	assert.Equal(t, []string{"Comment", "Post", "PostsTag", "Tag", "User"}, r.Names())
	m, ok := r.ByRoute("posts-tags")
	require.True(t, ok)
	assert.Equal(t, "posts_tags", m.Table())
}

func TestLoad_ModelNameClash(t *testing.T) {
	_, err := NewInferencer(parse(t, `
		CREATE TABLE category (id INT PRIMARY KEY);
		CREATE TABLE categories (id INT PRIMARY KEY);
	`)).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `map to the same model "Category"`)
}

func TestFieldType(t *testing.T) {
	tests := map[string]field.Type{
		"int(11)":                  field.TypeInt,
		"BIGINT UNSIGNED":          field.TypeInt,
		"INTEGER":                  field.TypeInt,
		"tinyint(1)":               field.TypeBool,
		"boolean":                  field.TypeBool,
		"decimal(10,2)":            field.TypeFloat,
		"double precision":         field.TypeFloat,
		"date":                     field.TypeDate,
		"datetime":                 field.TypeTime,
		"timestamp with time zone": field.TypeTime,
		"jsonb":                    field.TypeJSON,
		"uuid":                     field.TypeUUID,
		"longtext":                 field.TypeText,
		"varchar(255)":             field.TypeString,
		"point":                    field.TypeString,
	}
	for in, want := range tests {
		assert.Equal(t, want, FieldType(in), in)
	}
}

func edgeNames(edges []*Edge) []string {
	names := make([]string, len(edges))
	for i, e := range edges {
		names[i] = e.Name
	}
	return names
}
