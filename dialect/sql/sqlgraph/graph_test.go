package sqlgraph

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/ormapi/dialect"
	"github.com/syssam/ormapi/dialect/sql"
)

func newStore(t *testing.T, name string) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(name, sql.OpenDB(name, db)), mock
}

func TestStore_QueryRecords(t *testing.T) {
	s, mock := newStore(t, dialect.SQLite)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "t".* FROM "posts" AS "t" WHERE "t"."user_id" = ?`)).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).AddRow(int64(1), []byte("hello")).AddRow(int64(2), "world"))

	sel := s.Select("posts", "t")
	records, err := s.QueryRecords(context.Background(), sel.Where(sql.EQ(sel.C("user_id"), 1)))
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{
		{"id": int64(1), "title": "hello"},
		{"id": int64(2), "title": "world"},
	}, records)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Count(t *testing.T) {
	s, mock := newStore(t, dialect.Postgres)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "posts" WHERE "views" > $1`)).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))
	n, err := s.Count(context.Background(), s.Select("posts", "").Where(sql.GT("views", 10)).Limit(5))
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Insert(t *testing.T) {
	ctx := context.Background()
	t.Run("last insert id", func(t *testing.T) {
		s, mock := newStore(t, dialect.MySQL)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `posts` (`title`, `user_id`) VALUES (?, ?)")).
			WithArgs("hello", 3).
			WillReturnResult(sqlmock.NewResult(42, 1))
		id, err := s.Insert(ctx, "posts", "id", map[string]any{"user_id": 3, "title": "hello"})
		require.NoError(t, err)
		assert.Equal(t, int64(42), id)
		require.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("returning", func(t *testing.T) {
		s, mock := newStore(t, dialect.Postgres)
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "posts" ("title") VALUES ($1) RETURNING "id"`)).
			WithArgs("hello").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))
		id, err := s.Insert(ctx, "posts", "id", map[string]any{"title": "hello"})
		require.NoError(t, err)
		assert.Equal(t, int64(9), id)
		require.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("explicit key", func(t *testing.T) {
		s, mock := newStore(t, dialect.SQLite)
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "tags" ("code", "name") VALUES (?, ?)`)).
			WithArgs("go", "Go").
			WillReturnResult(sqlmock.NewResult(0, 1))
		id, err := s.Insert(ctx, "tags", "code", map[string]any{"code": "go", "name": "Go"})
		require.NoError(t, err)
		assert.Equal(t, "go", id)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_Attach(t *testing.T) {
	ctx := context.Background()
	s, mock := newStore(t, dialect.SQLite)
	p := Pivot{Table: "post_tag", OwnerKey: "post_id", RelatedKey: "tag_id"}
	exists := regexp.QuoteMeta(`SELECT COUNT(*) FROM "post_tag" WHERE ("post_id" = ?) AND ("tag_id" = ?)`)

	mock.ExpectQuery(exists).WithArgs(1, 2).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "post_tag" ("post_id", "tag_id") VALUES (?, ?)`)).
		WithArgs(1, 2).
		WillReturnResult(sqlmock.NewResult(1, 1))
	written, err := s.Attach(ctx, p, 1, 2)
	require.NoError(t, err)
	assert.True(t, written)

	mock.ExpectQuery(exists).WithArgs(1, 2).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	written, err = s.Attach(ctx, p, 1, 2)
	require.NoError(t, err)
	assert.False(t, written, "attaching twice must not write a second link")

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "post_tag" WHERE ("post_id" = ?) AND ("tag_id" = ?)`)).
		WithArgs(1, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	n, err := s.Detach(ctx, p, 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestKey(t *testing.T) {
	for _, v := range []any{int64(5), 5, float64(5), "5", []byte("5")} {
		assert.Equal(t, "5", Key(v))
	}
	assert.Equal(t, "1.5", Key(1.5))
	assert.Empty(t, Key(nil))
}

func TestConstraintErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		unique  bool
		fk      bool
		notNull bool
		column  string
	}{
		{name: "postgres unique", err: &pq.Error{Code: "23505"}, unique: true},
		{name: "postgres not null", err: &pq.Error{Code: "23502", Column: "title"}, notNull: true, column: "title"},
		{name: "mysql foreign key", err: &mysql.MySQLError{Number: 1452}, fk: true},
		{name: "mysql bad null", err: &mysql.MySQLError{Number: 1048}, notNull: true},
		{name: "sqlite not null", err: errors.New("NOT NULL constraint failed: posts.title"), notNull: true, column: "title"},
		{name: "unrelated", err: errors.New("connection refused")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.unique, IsUniqueConstraintError(tt.err))
			assert.Equal(t, tt.fk, IsForeignKeyConstraintError(tt.err))
			assert.Equal(t, tt.notNull, IsNotNullConstraintError(tt.err))
			assert.Equal(t, tt.unique || tt.fk || tt.notNull, IsConstraintError(tt.err))
			assert.Equal(t, tt.column, ConstraintColumn(tt.err))
		})
	}
}
