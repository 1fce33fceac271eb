// Package dialect defines the store abstraction used by the query exposure
// and nested mutation engines.
//
// Records are generic column maps, so the engines never depend on a concrete
// database. Everything they need is expressed by three interfaces:
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// Driver.Tx returns a Tx that satisfies the same ExecQuerier contract, which
// lets the mutation engine run a whole nested write tree against a single
// transaction handle.
//
// Sub-packages:
//
//   - dialect/sql: database/sql backed driver, SQL builder and predicates
//   - dialect/sql/sqlgraph: generic row CRUD and pivot helpers
//   - dialect/sql/schema: table, column and foreign-key inspection
package dialect
