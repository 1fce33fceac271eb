package schema

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func TestAtlasInspector_SQLite(t *testing.T) {
	db, err := sql.Open("sqlite", "file:inspect?mode=memory&cache=shared&_pragma=foreign_keys(1)")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	for _, stmt := range []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, email TEXT NOT NULL UNIQUE, bio TEXT)`,
		`CREATE TABLE posts (
			id INTEGER PRIMARY KEY,
			title TEXT NOT NULL DEFAULT 'untitled',
			reviewer_id INTEGER REFERENCES users (id),
			user_id INTEGER NOT NULL REFERENCES users (id)
		)`,
		`CREATE TABLE audit (line TEXT)`,
	} {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}

	i, err := NewInspector("live", Config{Dialect: "sqlite", DB: db, Exclude: []string{"audit"}})
	require.NoError(t, err)
	s, err := i.Inspect(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"posts", "users"}, s.Names())

	users, _ := s.Table("users")
	assert.Equal(t, []string{"id", "email", "bio"}, columnNames(users))
	assert.Equal(t, []string{"id"}, users.PrimaryKey)
	id, ok := users.AutoIncrement()
	require.True(t, ok)
	assert.Equal(t, "id", id.Name)
	email, _ := users.Column("email")
	assert.False(t, email.Nullable)
	bio, _ := users.Column("bio")
	assert.True(t, bio.Nullable)

	posts, _ := s.Table("posts")
	_, ok = posts.AutoIncrement()
	assert.True(t, ok, "INTEGER PRIMARY KEY aliases the rowid")
	title, _ := posts.Column("title")
	assert.True(t, title.HasDefault)
	require.Len(t, posts.ForeignKeys, 2)
	assert.Equal(t, "reviewer_id", posts.ForeignKeys[0].Column)
	assert.Equal(t, "user_id", posts.ForeignKeys[1].Column)
	assert.Equal(t, "users", posts.ForeignKeys[1].RefTable)
	assert.Equal(t, "id", posts.ForeignKeys[1].RefColumn)

	assert.Len(t, s.Incoming("users"), 2)
}

func TestAtlasInspector_UnsupportedDialect(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	_, err = NewAtlasInspector(Config{Dialect: "oracle", DB: db})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported dialect "oracle"`)
}
