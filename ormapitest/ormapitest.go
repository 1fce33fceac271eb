// Package ormapitest provides a small blog schema, its models and an
// in-memory SQLite database for tests.
//
//	drv := ormapitest.Open(t)
//	ormapitest.Exec(t, drv, `INSERT INTO users (name) VALUES ('a8m')`)
//	engine := exposure.NewEngine(drv, ormapitest.Registry())
package ormapitest

import (
	"context"
	stdsql "database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/ormapi"
	"github.com/syssam/ormapi/dialect"
	"github.com/syssam/ormapi/dialect/sql"
	"github.com/syssam/ormapi/privacy"
	"github.com/syssam/ormapi/schema/edge"
	"github.com/syssam/ormapi/schema/field"
)

// Schema is the SQLite schema of the blog models.
const Schema = `
CREATE TABLE users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	email TEXT,
	avatar TEXT
);
CREATE TABLE posts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	body TEXT,
	status TEXT NOT NULL DEFAULT 'published',
	published_at DATETIME,
	user_id INTEGER REFERENCES users (id)
);
CREATE TABLE comments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	body TEXT NOT NULL,
	post_id INTEGER NOT NULL REFERENCES posts (id) ON DELETE CASCADE
);
CREATE TABLE tags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL
);
CREATE TABLE post_tags (
	post_id INTEGER NOT NULL REFERENCES posts (id) ON DELETE CASCADE,
	tag_id INTEGER NOT NULL REFERENCES tags (id) ON DELETE CASCADE,
	PRIMARY KEY (post_id, tag_id)
);
`

// Open returns a driver over a fresh in-memory database holding Schema.
// The database is closed when the test ends.
func Open(t testing.TB) *sql.Driver {
	t.Helper()
	db, err := stdsql.Open("sqlite", "file::memory:?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	drv := sql.OpenDB(dialect.SQLite, db)
	Exec(t, drv, Schema)
	return drv
}

// Exec runs the semicolon separated statements.
func Exec(t testing.TB, drv dialect.ExecQuerier, stmts string) {
	t.Helper()
	for _, stmt := range strings.Split(stmts, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		require.NoError(t, drv.Exec(context.Background(), stmt, []any{}, nil), stmt)
	}
}

// Count returns the number of rows of table matching the optional where
// clause.
func Count(t testing.TB, drv dialect.ExecQuerier, table, where string, args ...any) int {
	t.Helper()
	query := "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}
	rows := &sql.Rows{}
	require.NoError(t, drv.Query(context.Background(), query, args, rows))
	defer rows.Close()
	require.True(t, rows.Next())
	var n int
	require.NoError(t, rows.Scan(&n))
	return n
}

// Registry returns a registry holding the blog models.
func Registry() *ormapi.Registry {
	r := ormapi.NewRegistry()
	r.MustRegister(User{}, Post{}, Comment{}, Tag{})
	return r
}

// User writes posts. Users named "root" cannot be deleted.
type User struct{ ormapi.BaseModel }

func (User) Name() string  { return "User" }
func (User) Table() string { return "users" }

func (User) Fillable() []string { return []string{"name", "email", "avatar"} }

func (User) Rules() field.Rules {
	return field.Rules{
		"name":   "required|string|max:255",
		"email":  "nullable|email",
		"avatar": "nullable",
	}
}

func (User) FieldExtraInfo() field.Infos {
	return field.Infos{"avatar": field.File().Optional()}
}

func (User) SearchableFields() []string { return []string{"name"} }

func (User) ChildRelationships() edge.Relations {
	return edge.Relations{edge.HasMany("posts", "Post").ForeignKey("user_id")}
}

func (User) Deletable(_ context.Context, record ormapi.Record) error {
	if record["name"] == "root" {
		return privacy.Denyf("the root user cannot be deleted")
	}
	return nil
}

// Post is the central model: it has a parent, spouses and children.
// Drafts are not listed, posts titled "forbidden" cannot be created and
// locked posts cannot be updated.
type Post struct{ ormapi.BaseModel }

func (Post) Name() string  { return "Post" }
func (Post) Table() string { return "posts" }

func (Post) Fillable() []string {
	return []string{"title", "body", "status", "published_at", "user_id"}
}

func (Post) Rules() field.Rules {
	return field.Rules{
		"title":        "required|string|max:255",
		"body":         "nullable|string",
		"status":       "sometimes|in:draft,published,locked",
		"published_at": "nullable|date",
		"user_id":      "nullable|integer",
	}
}

func (Post) FieldExtraInfo() field.Infos {
	return field.Infos{
		"body":         field.Text().Sanitized().Optional(),
		"published_at": field.Time().Optional(),
		"user_id":      field.Int().Optional(),
	}
}

func (Post) SearchableFields() []string { return []string{"title", "body"} }

func (Post) ParentRelationships() edge.Relations {
	return edge.Relations{edge.BelongsTo("user", "User").ForeignKey("user_id")}
}

func (Post) SpouseRelationships() edge.Relations {
	return edge.Relations{
		edge.BelongsToMany("tags", "Tag").
			Through("post_tags", "post_id", "tag_id").
			Detachable(func(_ context.Context, _, tag map[string]any) error {
				if tag["name"] == "pinned" {
					return privacy.Deny
				}
				return nil
			}).
			DetachMessage(func(_, tag map[string]any) string {
				return "The pinned tag cannot be removed."
			}),
	}
}

func (Post) ChildRelationships() edge.Relations {
	return edge.Relations{edge.HasMany("comments", "Comment").ForeignKey("post_id")}
}

func (Post) Listable(_ context.Context, s *sql.Selector) {
	s.Where(sql.NEQ(s.C("status"), "draft"))
}

func (Post) Creatable(_ context.Context, payload ormapi.Record) error {
	if payload["title"] == "forbidden" {
		return privacy.Denyf("this title is reserved")
	}
	return nil
}

func (Post) Updatable(_ context.Context, _, record ormapi.Record) error {
	if record["status"] == "locked" {
		return privacy.Deny
	}
	return nil
}

// Comment belongs to a post.
type Comment struct{ ormapi.BaseModel }

func (Comment) Name() string  { return "Comment" }
func (Comment) Table() string { return "comments" }

func (Comment) Fillable() []string { return []string{"body", "post_id"} }

func (Comment) Rules() field.Rules {
	return field.Rules{
		"body":    "required|string",
		"post_id": "required|integer",
	}
}

func (Comment) FieldExtraInfo() field.Infos {
	return field.Infos{"post_id": field.Int()}
}

func (Comment) ParentRelationships() edge.Relations {
	return edge.Relations{edge.BelongsTo("post", "Post").ForeignKey("post_id")}
}

// Tag labels posts. Tags named "hidden" are not readable.
type Tag struct{ ormapi.BaseModel }

func (Tag) Name() string  { return "Tag" }
func (Tag) Table() string { return "tags" }

func (Tag) Fillable() []string { return []string{"name"} }

func (Tag) Rules() field.Rules {
	return field.Rules{"name": "required|string"}
}

func (Tag) SpouseRelationships() edge.Relations {
	return edge.Relations{edge.BelongsToMany("posts", "Post").Through("post_tags", "tag_id", "post_id")}
}

func (Tag) Readable(_ context.Context, record ormapi.Record) error {
	if record["name"] == "hidden" {
		return privacy.Denyf("tag %v is hidden", record["id"])
	}
	return nil
}
