//go:build integration

package schema

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
)

func TestAtlasInspector_MySQL(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	container, err := mysql.Run(ctx, "mysql:8.0",
		mysql.WithDatabase("blog"),
		mysql.WithUsername("root"),
		mysql.WithPassword("testpass"),
	)
	require.NoError(t, err, "failed to start MySQL container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})
	dsn, err := container.ConnectionString(ctx, "parseTime=true", "multiStatements=true")
	require.NoError(t, err)
	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.ExecContext(ctx, blogDDL)
	require.NoError(t, err)

	i, err := NewInspector("live", Config{Dialect: "mysql", DB: db, Schema: "blog"})
	require.NoError(t, err)
	live, err := i.Inspect(ctx)
	require.NoError(t, err)
	parsed, err := ParseDDL(blogDDL)
	require.NoError(t, err)

	// Live inspection and DDL parsing agree on what inference consumes.
	require.Equal(t, parsed.Names(), live.Names())
	for _, want := range parsed.Tables {
		got, _ := live.Table(want.Name)
		assert.Equal(t, columnNames(want), columnNames(got), want.Name)
		assert.Equal(t, want.PrimaryKey, got.PrimaryKey, want.Name)
		require.Len(t, got.ForeignKeys, len(want.ForeignKeys), want.Name)
		for j, fk := range want.ForeignKeys {
			assert.Equal(t, fk.Column, got.ForeignKeys[j].Column)
			assert.Equal(t, fk.RefTable, got.ForeignKeys[j].RefTable)
		}
		for _, c := range want.Columns {
			gc, _ := got.Column(c.Name)
			assert.Equal(t, c.Nullable, gc.Nullable, "%s.%s", want.Name, c.Name)
			assert.Equal(t, c.AutoIncrement, gc.AutoIncrement, "%s.%s", want.Name, c.Name)
		}
	}
}
