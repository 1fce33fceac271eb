package sqlgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/ormapi/dialect"
	"github.com/syssam/ormapi/dialect/sql"
)

func TestHasNeighborsWith(t *testing.T) {
	tests := []struct {
		name  string
		from  string
		step  *Step
		query string
		args  []any
	}{
		{
			name: "O2M",
			from: "users",
			step: NewStep(From("users", "id"), To("posts", "user_id"), Edge(O2M)),
			query: `SELECT "t0".* FROM "users" AS "t0" WHERE EXISTS (SELECT "t1".* FROM "posts" AS "t1" ` +
				`WHERE ("t1"."user_id" = "t0"."id") AND ("t1"."title" = ?))`,
			args: []any{"go"},
		},
		{
			name: "M2O",
			from: "posts",
			step: NewStep(From("posts", "user_id"), To("users", "id"), Edge(M2O)),
			query: `SELECT "t0".* FROM "posts" AS "t0" WHERE EXISTS (SELECT "t1".* FROM "users" AS "t1" ` +
				`WHERE ("t1"."id" = "t0"."user_id") AND ("t1"."title" = ?))`,
			args: []any{"go"},
		},
		{
			name: "M2M",
			from: "posts",
			step: NewStep(From("posts", "id"), To("tags", "id"), Edge(M2M, "post_tags", "post_id", "tag_id")),
			query: `SELECT "t0".* FROM "posts" AS "t0" WHERE EXISTS (SELECT "t1".* FROM "post_tags" AS "t1" ` +
				`WHERE ("t1"."post_id" = "t0"."id") AND (EXISTS (SELECT "t2".* FROM "tags" AS "t2" ` +
				`WHERE ("t2"."id" = "t1"."tag_id") AND ("t2"."title" = ?))))`,
			args: []any{"go"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := sql.SelectTable(tt.from, "t0").SetDialect(dialect.SQLite)
			HasNeighborsWith(q, tt.step, func(s *sql.Selector) {
				s.Where(sql.EQ(s.C("title"), "go"))
			})
			query, args, err := q.QueryErr()
			require.NoError(t, err)
			assert.Equal(t, tt.query, query)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestHasNeighbors_MySQL(t *testing.T) {
	q := sql.SelectTable("users", "").SetDialect(dialect.MySQL)
	HasNeighbors(q, NewStep(From("users", "id"), To("posts", "user_id"), Edge(O2M)))
	query, _, err := q.QueryErr()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM `users` WHERE EXISTS (SELECT `t1`.* FROM `posts` AS `t1` WHERE `t1`.`user_id` = `users`.`id`)", query)
}

func TestNeighborSelect(t *testing.T) {
	q := sql.SelectTable("posts", "t0").SetDialect(dialect.SQLite)
	to, err := NeighborSelect(q, NewStep(From("posts", "user_id"), To("users", "id"), Edge(M2O)))
	require.NoError(t, err)
	q.OrderExpr(to.Columns(to.C("name")).Build, true)
	query, _, err := q.QueryErr()
	require.NoError(t, err)
	assert.Equal(t, `SELECT "t0".* FROM "posts" AS "t0" ORDER BY (SELECT "t1"."name" FROM "users" AS "t1" `+
		`WHERE "t1"."id" = "t0"."user_id" LIMIT 1) DESC`, query)

	_, err = NeighborSelect(q, NewStep(From("users", "id"), To("posts", "user_id"), Edge(O2M)))
	require.Error(t, err)
}

func TestStep_Err(t *testing.T) {
	assert.Error(t, NewStep(From("a", "id"), To("b", "a_id")).Err())
	assert.Error(t, NewStep(From("a", "id"), To("b", ""), Edge(O2M)).Err())
	assert.Error(t, NewStep(From("a", "id"), To("b", "id"), Edge(M2M)).Err())
	assert.NoError(t, NewStep(From("a", "id"), To("b", "id"), Edge(M2M, "a_b", "a_id", "b_id")).Err())

	q := sql.SelectTable("a", "").SetDialect(dialect.SQLite)
	HasNeighbors(q, NewStep(From("a", "id"), To("b", "id"), Edge(M2M)))
	_, _, err := q.QueryErr()
	assert.Error(t, err)
}

func TestNextAlias(t *testing.T) {
	for alias, want := range map[string]string{"": "t1", "tags": "t1", "t0": "t1", "t9": "t10"} {
		assert.Equal(t, want, NextAlias(sql.SelectTable("x", alias)), alias)
	}
}
