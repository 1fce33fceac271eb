package ormapi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/ormapi"
	"github.com/syssam/ormapi/dialect/sql/sqlgraph"
	"github.com/syssam/ormapi/schema/edge"
)

type tag struct{ ormapi.BaseModel }

func (tag) Name() string  { return "Tag" }
func (tag) Table() string { return "tags" }

func TestStep(t *testing.T) {
	belongs, _ := ormapi.Relation(post{}, "user")
	s := ormapi.Step(post{}, belongs, user{})
	assert.Equal(t, sqlgraph.M2O, s.Rel)
	assert.Equal(t, sqlgraph.Endpoint{Table: "posts", Column: "user_id"}, s.From)
	assert.Equal(t, sqlgraph.Endpoint{Table: "users", Column: "id"}, s.To)

	many, _ := ormapi.Relation(user{}, "posts")
	s = ormapi.Step(user{}, many, post{})
	assert.Equal(t, sqlgraph.O2M, s.Rel)
	assert.Equal(t, sqlgraph.Endpoint{Table: "users", Column: "id"}, s.From)
	assert.Equal(t, sqlgraph.Endpoint{Table: "posts", Column: "user_id"}, s.To)

	d := edge.BelongsToMany("tags", "Tag").Through("post_tag", "post_id", "tag_id").Descriptor()
	s = ormapi.Step(post{}, d, tag{})
	assert.Equal(t, sqlgraph.M2M, s.Rel)
	assert.Equal(t, &sqlgraph.Pivot{Table: "post_tag", OwnerKey: "post_id", RelatedKey: "tag_id"}, s.Pivot)
	assert.Equal(t, *s.Pivot, ormapi.Pivot(d))
	assert.NoError(t, s.Err())

	ref := edge.BelongsTo("author", "User").ForeignKey("author_email").References("email").Descriptor()
	ownerKey, relatedKey := ormapi.Keys(post{}, ref, user{})
	assert.Equal(t, "author_email", ownerKey)
	assert.Equal(t, "email", relatedKey)
}
