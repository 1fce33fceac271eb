// Package gen writes the Go package serving a loaded schema.
//
// For every model of a load.Graph it renders, with jennifer, a type
// embedding ormapi.BaseModel whose declaration methods return the inferred
// table, fillable fields, rules, field information and relations. Hooks
// such as Listable or Creatable are written by hand in other files of the
// same package. Two graph-level files are rendered from templates:
//
//	registry.go  func Registry() *ormapi.Registry
//	routes.go    func Routes(mux *http.ServeMux, h *api.Handler, prefix string)
//
// With WithOpenAPI, an openapi.json document describing the HTTP surface is
// written as well. Nested input schemas carry the inferred validation rules
// of their payload in the "x-rules" extension.
//
// Files are written in parallel, bounded by WithWorkers:
//
//	g, err := load.Load(ctx, inspector)
//	if err != nil {
//		return err
//	}
//	err = gen.Generate(ctx, g,
//		gen.WithTarget("./models"),
//		gen.WithPackage("github.com/acme/blog/models"),
//		gen.WithOpenAPI("Blog API", "1.0.0"),
//	)
//
// # Error Handling
//
// Failures are reported with typed errors matching the package sentinels:
//
//   - SchemaError (ErrInvalidSchema): a model name that is not an exported identifier
//   - ConfigError (ErrMissingConfig): an invalid option
//   - EdgeError (ErrInvalidEdge): a relation to a model outside the graph
//   - GenerationError (ErrGenerationFailed): a file that could not be rendered or written
package gen
