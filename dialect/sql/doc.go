// Package sql provides the SQL statement builders and the database/sql
// backed driver used by the record store.
//
// # Builders
//
//   - Builder: low-level writer with identifier quoting and placeholders
//   - Selector: SELECT with predicates, ordering and paging
//   - InsertBuilder: INSERT with RETURNING on Postgres
//   - UpdateBuilder and DeleteBuilder: UPDATE and DELETE with predicates
//
// Identifiers are validated before they are written. A builder that was
// given an invalid identifier renders nothing for it and reports the error
// from QueryErr, so request supplied field names never reach the statement.
//
// # Dialects
//
//	sel := sql.SelectTable("posts", "t").SetDialect(dialect.Postgres)
//	sel.Where(sql.EQ(sel.C("user_id"), 1)).OrderBy(sel.C("id"), true)
//	query, args, err := sel.QueryErr()
//	// SELECT "t".* FROM "posts" AS "t" WHERE "t"."user_id" = $1 ORDER BY "t"."id" DESC
//
// # Predicates
//
//	sql.EQ("name", "john")                 // name = ?
//	sql.Compare("views", "ge", 10)         // views >= ?
//	sql.In("id", 1, 2, 3)                  // id IN (?, ?, ?)
//	sql.ContainsFold("title", "go")        // case-insensitive LIKE
//	sql.FullText([]string{"title"}, "go")  // MATCH/tsvector per dialect
//
// # Transactions
//
// RunTx runs a function inside a transaction and rolls it back when the
// function fails or panics:
//
//	err := sql.RunTx(ctx, drv, func(tx dialect.Tx) error {
//	    return tx.Exec(ctx, query, args, nil)
//	})
package sql
