// Package load infers models and their relations from a schema snapshot.
//
// Outgoing foreign keys become belongsTo (parent) relations, incoming
// foreign keys hasMany (child) relations, and pivot tables named
// "<table>_<table>" or declared with WithPivots belongsToMany (spouse)
// relations. Names are derived by compiler/naming and are unique within a
// model.
package load
