package gen

import (
	"context"
	"encoding/json"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/ormapi/compiler/load"
	"github.com/syssam/ormapi/dialect/sql/schema"
)

const blogDDL = `
CREATE TABLE users (
  id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
  email VARCHAR(191) NOT NULL UNIQUE,
  name VARCHAR(255) NULL
);
CREATE TABLE posts (
  id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
  title VARCHAR(255) NOT NULL,
  body TEXT NULL,
  published_at DATETIME NULL,
  user_id BIGINT NOT NULL,
  FOREIGN KEY (user_id) REFERENCES users (id)
);
CREATE TABLE tags (
  id INT NOT NULL AUTO_INCREMENT PRIMARY KEY,
  name VARCHAR(64) NOT NULL
);
CREATE TABLE posts_tags (
  post_id BIGINT NOT NULL,
  tag_id INT NOT NULL,
  PRIMARY KEY (post_id, tag_id),
  FOREIGN KEY (post_id) REFERENCES posts (id),
  FOREIGN KEY (tag_id) REFERENCES tags (id)
);
`

func blog(t *testing.T) *load.Graph {
	t.Helper()
	s, err := schema.ParseDDL(blogDDL)
	require.NoError(t, err)
	g, err := load.NewInferencer(s).Load()
	require.NoError(t, err)
	return g
}

func read(t *testing.T, dir, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(b)
}

func TestGenerate(t *testing.T) {
	target := t.TempDir()
	g, err := New(blog(t),
		WithTarget(target),
		WithPackage("github.com/acme/blog/models"),
		WithOpenAPI("Blog API", "2.0.0"),
		WithWorkers(2),
	)
	require.NoError(t, err)
	require.NoError(t, g.Generate(context.Background()))

	assert.ElementsMatch(t, []string{
		"post.go", "posts_tag.go", "tag.go", "user.go",
		"registry.go", "routes.go", OpenAPIFile,
	}, g.Files())

	fset := token.NewFileSet()
	for _, name := range g.Files() {
		if filepath.Ext(name) != ".go" {
			continue
		}
		f, err := parser.ParseFile(fset, filepath.Join(target, name), nil, parser.ParseComments)
		require.NoError(t, err, name)
		assert.Equal(t, "models", f.Name.Name, name)
		assert.True(t, isGenerated(f.Comments), name)
	}
	_, err = os.Stat(filepath.Join(target, "routes.go.error"))
	assert.True(t, os.IsNotExist(err))

	post := read(t, target, "post.go")
	for _, snippet := range []string{
		"type Post struct {",
		"ormapi.BaseModel",
		`return "posts"`,
		`"sometimes|required|string|max:255"`,
		`edge.BelongsTo("user", "User").ForeignKey("user_id")`,
		`edge.BelongsToMany("tags", "Tag").Through("posts_tags", "post_id", "tag_id")`,
		"field.Time().Optional()",
		"var _ ormapi.Model = (*Post)(nil)",
	} {
		assert.Contains(t, post, snippet)
	}
	assert.NotContains(t, post, "PrimaryKey()")

	registry := read(t, target, "registry.go")
	assert.Contains(t, registry, "func Registry() *ormapi.Registry")
	assert.Contains(t, registry, "PostsTag{},")

	routes := read(t, target, "routes.go")
	assert.Contains(t, routes, `"net/http"`)
	assert.Contains(t, routes, `h.Mount(mux, prefix+"/posts-tags", PostsTag{})`)
	assert.Contains(t, routes, `h.Mount(mux, prefix+"/users", User{})`)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(read(t, target, OpenAPIFile)), &doc))
	assert.Equal(t, "3.0.3", doc["openapi"])
	assert.Contains(t, doc["paths"], "/api/posts/{id}")
}

func TestGenerate_NoOpenAPI(t *testing.T) {
	target := t.TempDir()
	require.NoError(t, Generate(context.Background(), blog(t), WithTarget(target)))
	_, err := os.Stat(filepath.Join(target, OpenAPIFile))
	assert.True(t, os.IsNotExist(err))
	// The package name defaults to the target directory, reduced to an identifier.
	assert.Contains(t, read(t, target, "tag.go"), "package "+(&Config{Target: target}).Name())
	assert.True(t, token.IsIdentifier((&Config{Target: target}).Name()))
}

func TestGenerate_TargetName(t *testing.T) {
	tests := []struct {
		dir  string
		want string
	}{
		{"001", "package p001"},
		{"blog-models", "package blogmodels"},
	}
	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			target := filepath.Join(t.TempDir(), tt.dir)
			require.NoError(t, Generate(context.Background(), blog(t), WithTarget(target)))
			for _, name := range []string{"tag.go", "registry.go", "routes.go"} {
				src := read(t, target, name)
				assert.Contains(t, src, tt.want)
				_, err := parser.ParseFile(token.NewFileSet(), name, src, parser.PackageClauseOnly)
				assert.NoError(t, err, name)
			}
		})
	}
}

func TestNew_Errors(t *testing.T) {
	_, err := New(blog(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingConfig)

	g := blog(t)
	g.Specs[0].Parents = append(g.Specs[0].Parents, &load.Edge{Type: "belongsTo", Name: "archive", Model: "Archive", ForeignKey: "archive_id"})
	_, err = New(g, WithTarget(t.TempDir()))
	require.Error(t, err)
	assert.True(t, IsEdgeError(err))
	assert.ErrorIs(t, err, ErrInvalidEdge)

	g = blog(t)
	g.Specs[0].Name = "post"
	_, err = New(g, WithTarget(t.TempDir()))
	require.Error(t, err)
	assert.True(t, IsSchemaError(err))
}

func TestGenerate_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Generate(ctx, blog(t), WithTarget(t.TempDir()))
	require.ErrorIs(t, err, context.Canceled)
}

func isGenerated(groups []*ast.CommentGroup) bool {
	for _, g := range groups {
		if g.Text() == DefaultHeader+"\n" {
			return true
		}
	}
	return false
}
