// Package edge declares the relationships of a model.
//
// A model groups its relations in three categories, each returned by its own
// method so that a model with no relations of a kind simply returns nil:
//
//	func (Post) ParentRelationships() edge.Relations {
//	    return edge.Relations{
//	        edge.BelongsTo("user", "User").ForeignKey("user_id"),
//	    }
//	}
//
//	func (Post) ChildRelationships() edge.Relations {
//	    return edge.Relations{
//	        edge.HasMany("comments", "Comment").ForeignKey("post_id"),
//	    }
//	}
//
//	func (Post) SpouseRelationships() edge.Relations {
//	    return edge.Relations{
//	        edge.BelongsToMany("tags", "Tag").Through("post_tag", "post_id", "tag_id"),
//	    }
//	}
//
// Every descriptor carries an explicit Kind; nothing is inferred by calling
// into the model at request time.
//
// # Attach and detach predicates
//
// Relations may restrict which records are linked or unlinked by the nested
// mutation engine:
//
//	edge.BelongsToMany("tags", "Tag").
//	    Through("post_tag", "post_id", "tag_id").
//	    Attachable(func(ctx context.Context, post, tag map[string]any) error {
//	        if tag["locked"] == true {
//	            return privacy.Denyf("tag %v is locked", tag["name"])
//	        }
//	        return nil
//	    })
//
// Predicates return a privacy decision: nil, privacy.Allow and privacy.Skip
// permit the operation, anything else denies it.
package edge
