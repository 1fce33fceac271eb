package gen

import (
	"net/http"
	"slices"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/syssam/ormapi/compiler/load"
	"github.com/syssam/ormapi/compiler/naming"
	"github.com/syssam/ormapi/graph"
	"github.com/syssam/ormapi/mutation"
	ql "github.com/syssam/ormapi/querylanguage"
	"github.com/syssam/ormapi/schema/edge"
	"github.com/syssam/ormapi/schema/field"
)

const errorSchema = "Error"

func schemaRef(name string) string { return "#/components/schemas/" + name }

// Document returns the OpenAPI document of the HTTP surface served for g
// under prefix.
func Document(g *load.Graph, cfg *Config, prefix string) (*openapi3.T, error) {
	r, err := g.Registry()
	if err != nil {
		return nil, NewGenerationError("openapi", "", "building registry", err)
	}
	errs := openapi3.NewObjectSchema().
		WithProperty("message", openapi3.NewStringSchema()).
		WithProperty("errors", openapi3.NewObjectSchema().WithAnyAdditionalProperties())
	errRef := openapi3.NewSchemaRef(schemaRef(errorSchema), errs)
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info:    &openapi3.Info{Title: cfg.Title, Version: cfg.Version},
		Paths:   openapi3.NewPaths(),
		Components: &openapi3.Components{
			Schemas: openapi3.Schemas{
				errorSchema: openapi3.NewSchemaRef("", errs),
			},
		},
	}
	// Schemas are created before they are filled so that relations can
	// reference models declared later.
	records := make(map[string]*openapi3.Schema, len(g.Specs))
	inputs := make(map[string]*openapi3.Schema, len(g.Specs))
	for _, s := range g.Specs {
		records[s.Name] = openapi3.NewObjectSchema()
		inputs[s.Name] = openapi3.NewObjectSchema()
		doc.Components.Schemas[s.Name] = openapi3.NewSchemaRef("", records[s.Name])
		doc.Components.Schemas[s.Name+"Input"] = openapi3.NewSchemaRef("", inputs[s.Name])
	}
	recordRef := func(name string) *openapi3.SchemaRef {
		return openapi3.NewSchemaRef(schemaRef(name), records[name])
	}
	inputRef := func(name string) *openapi3.SchemaRef {
		return openapi3.NewSchemaRef(schemaRef(name+"Input"), inputs[name])
	}
	for _, s := range g.Specs {
		m, _ := r.Resolve(s.Name)
		rules, err := mutation.Rules(m, r, graph.Options{})
		if err != nil {
			return nil, NewGenerationError("openapi", s.Name, "computing rules", err)
		}
		record, input := records[s.Name], inputs[s.Name]
		for _, f := range s.Fields {
			record.WithProperty(f.Name, fieldSchema(f))
			if slices.Contains(s.Fillable, f.Name) {
				input.WithProperty(f.Name, fieldSchema(f))
				if required(rules[f.Name]) {
					input.Required = append(input.Required, f.Name)
				}
			}
		}
		for _, e := range s.Edges() {
			if _, ok := records[e.Model]; !ok {
				return nil, NewEdgeError(s.Name, e.Model, e.Name, "related model is not part of the schema", nil)
			}
			if e.Kind() == edge.KindBelongsTo {
				record.WithPropertyRef(e.Name, recordRef(e.Model))
				input.WithPropertyRef(e.Name, inputRef(e.Model))
				continue
			}
			out := openapi3.NewArraySchema()
			out.Items = recordRef(e.Model)
			record.WithProperty(e.Name, out)
			in := openapi3.NewArraySchema()
			in.Items = inputRef(e.Model)
			input.WithProperty(e.Name, in)
		}
		if len(rules) > 0 {
			input.Extensions = map[string]any{"x-rules": map[string]string(rules)}
		}
		route := prefix + "/" + naming.RouteName(s.Table)
		doc.Paths.Set(route, collection(s, recordRef(s.Name), inputRef(s.Name), errRef))
		doc.Paths.Set(route+"/{id}", item(s, recordRef(s.Name), inputRef(s.Name), errRef))
	}
	return doc, nil
}

func fieldSchema(f *load.Field) *openapi3.Schema {
	var s *openapi3.Schema
	switch f.Type {
	case field.TypeInt:
		s = openapi3.NewIntegerSchema()
	case field.TypeFloat:
		s = openapi3.NewFloat64Schema()
	case field.TypeBool:
		s = openapi3.NewBoolSchema()
	case field.TypeTime:
		s = openapi3.NewDateTimeSchema()
	case field.TypeDate:
		s = openapi3.NewStringSchema().WithFormat("date")
	case field.TypeUUID:
		s = openapi3.NewUUIDSchema()
	case field.TypeJSON:
		s = openapi3.NewSchema()
	default:
		s = openapi3.NewStringSchema()
	}
	s.Nullable = f.Nullable
	return s
}

// required reports whether a rule requires its key on every payload.
func required(rule string) bool {
	cs := field.Parse(rule)
	has := func(name string) bool {
		return slices.ContainsFunc(cs, func(c field.Constraint) bool { return c.Name == name })
	}
	return has("required") && !has("sometimes")
}

func envelope(key string, v *openapi3.SchemaRef) *openapi3.SchemaRef {
	s := openapi3.NewObjectSchema().WithProperty("message", openapi3.NewStringSchema())
	s.WithPropertyRef(key, v)
	return openapi3.NewSchemaRef("", s)
}

func page(record *openapi3.SchemaRef) *openapi3.SchemaRef {
	data := openapi3.NewArraySchema()
	data.Items = record
	s := openapi3.NewObjectSchema().
		WithProperty("data", data).
		WithProperty("total", openapi3.NewIntegerSchema()).
		WithProperty("page", openapi3.NewIntegerSchema()).
		WithProperty("per_page", openapi3.NewIntegerSchema()).
		WithProperty("last_page", openapi3.NewIntegerSchema())
	return openapi3.NewSchemaRef("", s)
}

func failure(description string, errs *openapi3.SchemaRef) *openapi3.Response {
	return openapi3.NewResponse().
		WithDescription(description).
		WithJSONSchemaRef(errs)
}

func operation(id, summary, tag string) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.OperationID = id
	op.Summary = summary
	op.Tags = []string{tag}
	return op
}

func query(name, description string, s *openapi3.Schema) *openapi3.ParameterRef {
	p := openapi3.NewQueryParameter(name).WithSchema(s).WithDescription(description)
	return &openapi3.ParameterRef{Value: p}
}

func collection(s *load.Spec, record, input, errs *openapi3.SchemaRef) *openapi3.PathItem {
	display := naming.DisplayName(s.Table)
	list := operation("list"+naming.Plural(s.Name), display+" list", s.Name)
	list.Parameters = openapi3.Parameters{
		query(ql.KeyInclude, "Comma separated relation paths to load.", openapi3.NewStringSchema()),
		query(ql.KeyFields, "Comma separated fields to select.", openapi3.NewStringSchema()),
		query(ql.KeySort, "Comma separated fields, prefixed with - for descending order.", openapi3.NewStringSchema()),
		query(ql.KeySearch, "Full-text search over the searchable fields.", openapi3.NewStringSchema()),
		query(ql.KeyPage, "Page number.", openapi3.NewIntegerSchema().WithMin(1)),
		query(ql.KeyPerPage, "Page size.", openapi3.NewIntegerSchema().WithMin(1)),
	}
	list.AddResponse(http.StatusOK, openapi3.NewResponse().
		WithDescription(display+" list").
		WithJSONSchemaRef(envelope("data", page(record))))
	list.AddResponse(http.StatusUnprocessableEntity, failure("The given data was invalid.", errs))

	create := operation("create"+s.Name, "Create a "+display, s.Name)
	create.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchemaRef(input)}
	create.AddResponse(http.StatusCreated, openapi3.NewResponse().
		WithDescription(display+" created successfully!").
		WithJSONSchemaRef(envelope("item", record)))
	create.AddResponse(http.StatusForbidden, failure("Not allowed.", errs))
	create.AddResponse(http.StatusUnprocessableEntity, failure("The given data was invalid.", errs))
	return &openapi3.PathItem{Get: list, Post: create}
}

func item(s *load.Spec, record, input, errs *openapi3.SchemaRef) *openapi3.PathItem {
	display := naming.DisplayName(s.Table)
	notFound := failure(display+" not found", errs)

	get := operation("get"+s.Name, "Retrieve a "+display, s.Name)
	get.Parameters = openapi3.Parameters{
		query(ql.KeyInclude, "Comma separated relation paths to load.", openapi3.NewStringSchema()),
		query(ql.KeyFields, "Comma separated fields to select.", openapi3.NewStringSchema()),
	}
	get.AddResponse(http.StatusOK, openapi3.NewResponse().
		WithDescription(display+" retrieved").
		WithJSONSchemaRef(envelope("item", record)))
	get.AddResponse(http.StatusForbidden, failure("Not allowed.", errs))
	get.AddResponse(http.StatusNotFound, notFound)

	update := func(id, method string) *openapi3.Operation {
		op := operation(id+s.Name, method+" a "+display, s.Name)
		op.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchemaRef(input)}
		op.AddResponse(http.StatusOK, openapi3.NewResponse().
			WithDescription(display+" updated successfully!").
			WithJSONSchemaRef(envelope("item", record)))
		op.AddResponse(http.StatusForbidden, failure("Not allowed.", errs))
		op.AddResponse(http.StatusNotFound, notFound)
		op.AddResponse(http.StatusUnprocessableEntity, failure("The given data was invalid.", errs))
		return op
	}

	del := operation("delete"+s.Name, "Delete a "+display, s.Name)
	del.Parameters = openapi3.Parameters{
		query(ql.KeyParentsToDelete, "Comma separated parent relations deleted with the record.", openapi3.NewStringSchema()),
	}
	del.AddResponse(http.StatusOK, openapi3.NewResponse().
		WithDescription(display+" deleted successfully").
		WithJSONSchemaRef(envelope("item", record)))
	del.AddResponse(http.StatusForbidden, failure("Not allowed.", errs))
	del.AddResponse(http.StatusNotFound, notFound)
	del.AddResponse(http.StatusUnprocessableEntity, failure("The given data was invalid.", errs))

	id := openapi3.NewPathParameter("id").WithSchema(openapi3.NewStringSchema())
	return &openapi3.PathItem{
		Parameters: openapi3.Parameters{{Value: id}},
		Get:        get,
		Put:        update("replace", "Replace"),
		Patch:      update("update", "Update"),
		Delete:     del,
	}
}

// OperationIDs returns the operation ids of doc, sorted.
func OperationIDs(doc *openapi3.T) []string {
	var ids []string
	for _, p := range doc.Paths.Map() {
		for _, op := range p.Operations() {
			ids = append(ids, op.OperationID)
		}
	}
	slices.Sort(ids)
	return ids
}
