// Package schema groups the building blocks models are declared with:
//
//   - [field]: field metadata and validation rules
//   - [edge]: relation descriptors
//
// # Declaring a model
//
// A model embeds ormapi.BaseModel and overrides what its table needs:
//
//	type Post struct{ ormapi.BaseModel }
//
//	func (Post) Name() string  { return "Post" }
//	func (Post) Table() string { return "posts" }
//
//	func (Post) Fillable() []string { return []string{"title", "body", "user_id"} }
//
//	func (Post) Rules() field.Rules {
//	    return field.Rules{
//	        "title":   "required|string|max:255",
//	        "body":    "nullable|string",
//	        "user_id": "required|integer",
//	    }
//	}
//
//	func (Post) FieldExtraInfo() field.Infos {
//	    return field.Infos{"body": field.Text().Sanitized().Optional()}
//	}
//
// # Relations
//
// Relations are grouped by the side the foreign key lives on:
//
//	// Parent: posts.user_id references users.id
//	edge.BelongsTo("user", "User").ForeignKey("user_id")
//
//	// Spouse: rows linked through the posts_tags pivot table
//	edge.BelongsToMany("tags", "Tag").Through("posts_tags", "post_id", "tag_id")
//
//	// Child: comments.post_id references posts.id
//	edge.HasMany("comments", "Comment").ForeignKey("post_id")
//
// Models inferred from a database are generated by the compiler/gen
// package; hand-written models can reuse the helpers of contrib/mixin.
package schema
