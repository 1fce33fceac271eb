package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/ormapi/dialect"
)

func TestSelector(t *testing.T) {
	tests := []struct {
		name      string
		input     Querier
		wantQuery string
		wantArgs  []any
	}{
		{
			name:      "select all with alias",
			input:     SelectTable("posts", "t").SetDialect(dialect.MySQL),
			wantQuery: "SELECT `t`.* FROM `posts` AS `t`",
		},
		{
			name: "postgres placeholders",
			input: Select("id", "title").From("posts").SetDialect(dialect.Postgres).
				Where(EQ("user_id", 1)).
				Where(Or(GT("views", 10), IsNull("views"))),
			wantQuery: `SELECT "id", "title" FROM "posts" WHERE ("user_id" = $1) AND (("views" > $2) OR ("views" IS NULL))`,
			wantArgs:  []any{1, 10},
		},
		{
			name: "order and paging",
			input: Select().From("posts").SetDialect(dialect.SQLite).
				OrderBy("created_at", true).OrderBy("id", false).Limit(10).Offset(20),
			wantQuery: `SELECT * FROM "posts" ORDER BY "created_at" DESC, "id" ASC LIMIT 10 OFFSET 20`,
		},
		{
			name:      "offset without limit",
			input:     Select().From("posts").SetDialect(dialect.MySQL).Offset(5),
			wantQuery: "SELECT * FROM `posts` LIMIT 18446744073709551615 OFFSET 5",
		},
		{
			name: "in and not in",
			input: Select("id").From("tags").SetDialect(dialect.SQLite).
				Where(In("id", 1, 2)).Where(NotIn("name")),
			wantQuery: `SELECT "id" FROM "tags" WHERE ("id" IN (?, ?)) AND (1 = 1)`,
			wantArgs:  []any{1, 2},
		},
		{
			name: "exists sub-select",
			input: func() Querier {
				outer := SelectTable("users", "t").SetDialect(dialect.Postgres)
				inner := SelectTable("posts", "p").Where(ColumnsEQ("p.user_id", "t.id")).Where(EQ("p.title", "go"))
				return outer.Where(EQ("t.active", true)).Where(Exists(inner))
			}(),
			wantQuery: `SELECT "t".* FROM "users" AS "t" WHERE ("t"."active" = $1) AND (EXISTS (SELECT "p".* FROM "posts" AS "p" WHERE ("p"."user_id" = "t"."id") AND ("p"."title" = $2)))`,
			wantArgs:  []any{true, "go"},
		},
		{
			name:      "count selector drops paging",
			input:     Select("id").From("posts").OrderBy("id", false).Limit(3).CountSelector(),
			wantQuery: `SELECT COUNT(*) FROM "posts"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := tt.input.Query()
			assert.Equal(t, tt.wantQuery, query)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestSelector_InvalidIdentifier(t *testing.T) {
	_, _, err := Select("id; DROP TABLE users").From("users").QueryErr()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid identifier")
}

func TestSelector_Clone(t *testing.T) {
	s := Select().From("posts").Where(EQ("id", 1))
	c := s.Clone().Where(EQ("title", "go"))
	q1, _ := s.Query()
	q2, _ := c.Query()
	assert.Equal(t, `SELECT * FROM "posts" WHERE "id" = ?`, q1)
	assert.Equal(t, `SELECT * FROM "posts" WHERE ("id" = ?) AND ("title" = ?)`, q2)
}

func TestInsertUpdateDelete(t *testing.T) {
	tests := []struct {
		name      string
		input     Querier
		wantQuery string
		wantArgs  []any
	}{
		{
			name:      "insert returning",
			input:     Insert("users").SetDialect(dialect.Postgres).Set("name", "a8m").Set("age", 30).Returning("id"),
			wantQuery: `INSERT INTO "users" ("name", "age") VALUES ($1, $2) RETURNING "id"`,
			wantArgs:  []any{"a8m", 30},
		},
		{
			name:      "insert returning ignored on mysql",
			input:     Insert("users").SetDialect(dialect.MySQL).Set("name", "a8m").Returning("id"),
			wantQuery: "INSERT INTO `users` (`name`) VALUES (?)",
			wantArgs:  []any{"a8m"},
		},
		{
			name:      "insert default values",
			input:     Insert("users").SetDialect(dialect.SQLite),
			wantQuery: `INSERT INTO "users" DEFAULT VALUES`,
		},
		{
			name:      "update",
			input:     Update("users").SetDialect(dialect.Postgres).Set("name", "foo").Where(EQ("id", 1)),
			wantQuery: `UPDATE "users" SET "name" = $1 WHERE "id" = $2`,
			wantArgs:  []any{"foo", 1},
		},
		{
			name:      "delete",
			input:     Delete("post_tag").Where(And(EQ("post_id", 1), EQ("tag_id", 2))),
			wantQuery: `DELETE FROM "post_tag" WHERE ("post_id" = ?) AND ("tag_id" = ?)`,
			wantArgs:  []any{1, 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := tt.input.Query()
			assert.Equal(t, tt.wantQuery, query)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		name      string
		dialect   string
		pred      P
		wantQuery string
		wantArgs  []any
	}{
		{name: "compare", dialect: dialect.SQLite, pred: Compare("views", "ge", 3), wantQuery: `"views" >= ?`, wantArgs: []any{3}},
		{name: "contains fold postgres", dialect: dialect.Postgres, pred: ContainsFold("title", "Go_"), wantQuery: `"title"::text ILIKE $1`, wantArgs: []any{`%Go\_%`}},
		{name: "contains fold mysql", dialect: dialect.MySQL, pred: ContainsFold("title", "Go"), wantQuery: "LOWER(`title`) LIKE ?", wantArgs: []any{"%go%"}},
		{name: "equal fold", dialect: dialect.SQLite, pred: EqualFold("name", " ACME Corp "), wantQuery: `LOWER(TRIM("name")) = ?`, wantArgs: []any{"acme corp"}},
		{name: "has prefix", dialect: dialect.SQLite, pred: HasPrefix("path", "/api_"), wantQuery: `"path" LIKE ? ESCAPE '\'`, wantArgs: []any{`/api\_%`}},
		{name: "has suffix mysql", dialect: dialect.MySQL, pred: HasSuffix("name", "admin"), wantQuery: "`name` LIKE ?", wantArgs: []any{"%admin"}},
		{name: "columns op", dialect: dialect.Postgres, pred: ColumnsOp("current", "lt", "total"), wantQuery: `"current" < "total"`},
		{name: "not", dialect: dialect.SQLite, pred: Not(IsNull("a")), wantQuery: `NOT ("a" IS NULL)`},
		{name: "expr", dialect: dialect.Postgres, pred: ExprP("length(title) > ?", 3), wantQuery: `length(title) > $1`, wantArgs: []any{3}},
		{name: "empty or", dialect: dialect.SQLite, pred: Or(), wantQuery: `1 = 0`},
		{name: "full text mysql", dialect: dialect.MySQL, pred: FullText([]string{"title", "body"}, "go"), wantQuery: "MATCH(`title`, `body`) AGAINST (? IN NATURAL LANGUAGE MODE)", wantArgs: []any{"go"}},
		{
			name:      "full text postgres",
			dialect:   dialect.Postgres,
			pred:      FullText([]string{"title", "body"}, "go"),
			wantQuery: `to_tsvector('simple', coalesce("title"::text, '') || ' ' || coalesce("body"::text, '')) @@ plainto_tsquery('simple', $1)`,
			wantArgs:  []any{"go"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(tt.dialect)
			tt.pred(b)
			require.NoError(t, b.Err())
			query, args := b.Query()
			assert.Equal(t, tt.wantQuery, query)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestCompare_UnknownOperator(t *testing.T) {
	b := NewBuilder(dialect.SQLite)
	Compare("views", "between", 1)(b)
	assert.Error(t, b.Err())
	_, ok := ComparisonOp("le")
	assert.True(t, ok)
}
