// Package graph walks the declared relationship graph of models.
//
// Walk visits every relation reachable from a model: parents, spouses and
// children, in that order. A relation is always visited, but its related
// model is expanded only once per walk and never beyond the maximum depth,
// so cyclic graphs terminate:
//
//	err := graph.Walk(post, registry, func(s graph.Step) error {
//	    fmt.Println(s.Qualified(), "->", s.Related.Name())
//	    return nil
//	}, graph.Options{})
//
// The exposure engine uses it to compute filterable fields and includable
// relations, the mutation engine to infer nested validation rules.
package graph
