// Package naming turns table and column identifiers into the names used by
// models, relations, routes and messages.
//
// Identifiers are split into lowercase words on underscores, case changes
// and letter to digit boundaries. Identifiers without any boundary, such as
// "userid", can additionally be segmented with a DictionarySplitter:
//
//	n := naming.New(naming.WithSplitter(dict))
//	n.Split("userid")                               // [user id]
//	n.RelationName("author_id", nil, naming.Options{}) // author
//	naming.RouteName("order_items")                 // order-items
//	naming.DisplayName("order_items")               // Order Item
package naming
