package gen

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/ormapi/compiler/load"
	"github.com/syssam/ormapi/schema/edge"
	"github.com/syssam/ormapi/schema/field"
)

func TestModel(t *testing.T) {
	s := &load.Spec{
		Name:       "OrderItem",
		Table:      "order_items",
		PrimaryKey: "item_no",
		Fields: []*load.Field{
			{Name: "item_no", Type: field.TypeInt, AutoIncrement: true},
			{Name: "sku", Type: field.TypeString},
			{Name: "notes", Type: field.TypeText, Nullable: true},
			{Name: "order_id", Type: field.TypeInt},
		},
		Fillable:   []string{"sku", "notes", "order_id"},
		Rules:      field.Rules{"sku": "sometimes|required|string"},
		Searchable: []string{"sku"},
		Parents: []*load.Edge{{
			Type:       edge.KindBelongsTo.String(),
			Name:       "order",
			Model:      "Order",
			ForeignKey: "order_id",
			References: "number",
		}},
	}
	cfg, err := NewConfig(WithTarget(t.TempDir()), WithPackage("example.com/shop/models"), WithHeader(""))
	require.NoError(t, err)
	src := fmt.Sprintf("%#v", Model(s, cfg))

	for _, snippet := range []string{
		"package models",
		"type OrderItem struct {",
		`return "item_no"`,
		`return []string{"sku", "notes", "order_id"}`,
		`func (OrderItem) SearchableFields() []string`,
		"field.Text().Optional()",
		`edge.BelongsTo("order", "Order").ForeignKey("order_id").References("number")`,
	} {
		assert.Contains(t, src, snippet)
	}
	assert.NotContains(t, src, "Code generated")
	assert.NotContains(t, src, "SpouseRelationships")
	assert.NotContains(t, src, `"item_no": field`)
}

func TestCheck(t *testing.T) {
	g := blog(t)
	require.NoError(t, Check(g))
	assert.Equal(t, []string{"Post", "PostsTag", "Tag", "User"}, names(g))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "order_item.go", FileName(&load.Spec{Name: "OrderItem"}))
	assert.Equal(t, "user.go", FileName(&load.Spec{Name: "User"}))
}
