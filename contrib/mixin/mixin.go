// Package mixin provides common building blocks for hand-written models.
//
// These mixins are OPTIONAL and provided as convenient starting points.
// Go does not merge methods promoted from several embedded structs, so a
// model calls the mixins from its own methods:
//
//	type Order struct{ ormapi.BaseModel }
//
//	var tenant = mixin.TenantID{}
//
//	func (Order) FieldExtraInfo() field.Infos {
//	    return mixin.Merge(field.Infos{"total": field.Float()}, mixin.Time{}.Fields())
//	}
//
//	func (Order) Listable(ctx context.Context, s *sql.Selector) {
//	    mixin.SoftDelete{}.Listable(ctx, s)
//	    tenant.Listable(ctx, s)
//	}
//
//	func (Order) Readable(ctx context.Context, r ormapi.Record) error {
//	    return tenant.Readable(ctx, r)
//	}
package mixin

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/syssam/ormapi"
	"github.com/syssam/ormapi/dialect/sql"
	"github.com/syssam/ormapi/privacy"
	"github.com/syssam/ormapi/schema/field"
)

// Merge returns the union of infos. Later entries win.
func Merge(infos ...field.Infos) field.Infos {
	merged := make(field.Infos)
	for _, is := range infos {
		maps.Copy(merged, is)
	}
	return merged
}

// Time describes the created_at and updated_at timestamps.
type Time struct{}

// Fields returns the timestamp fields.
func (Time) Fields() field.Infos {
	return field.Infos{
		"created_at": field.Time().Optional(),
		"updated_at": field.Time().Optional(),
	}
}

// Rules returns the rules of the timestamps.
func (Time) Rules() field.Rules {
	return field.Rules{
		"created_at": "sometimes|nullable|date",
		"updated_at": "sometimes|nullable|date",
	}
}

// SoftDelete hides the rows whose deletion column is set.
type SoftDelete struct {
	// Column defaults to "deleted_at".
	Column string
}

func (m SoftDelete) column() string {
	if m.Column == "" {
		return "deleted_at"
	}
	return m.Column
}

// Fields returns the deletion field.
func (m SoftDelete) Fields() field.Infos {
	return field.Infos{m.column(): field.Time().Optional()}
}

// Listable restricts s to the rows that are not deleted.
func (m SoftDelete) Listable(_ context.Context, s *sql.Selector) {
	s.Where(sql.IsNull(s.C(m.column())))
}

// Readable denies deleted records.
func (m SoftDelete) Readable(_ context.Context, r ormapi.Record) error {
	if v, ok := r[m.column()]; ok && v != nil {
		return privacy.Denyf("record was deleted")
	}
	return privacy.Skip
}

// TenantID isolates the rows of a tenant, read from the viewer of the
// request context.
type TenantID struct {
	// Column defaults to "tenant_id".
	Column string
}

func (m TenantID) column() string {
	if m.Column == "" {
		return "tenant_id"
	}
	return m.Column
}

func (m TenantID) tenant(ctx context.Context) (string, error) {
	v := privacy.ViewerFromContext(ctx)
	if v == nil || v.GetTenantID() == "" {
		return "", privacy.Denyf("tenant required")
	}
	return v.GetTenantID(), nil
}

// Listable restricts s to the rows of the viewer tenant. Nothing matches
// without a tenant.
func (m TenantID) Listable(ctx context.Context, s *sql.Selector) {
	id, err := m.tenant(ctx)
	if err != nil {
		s.Where(sql.In(s.C(m.column())))
		return
	}
	s.Where(sql.EQ(s.C(m.column()), id))
}

// Readable denies records of other tenants.
func (m TenantID) Readable(ctx context.Context, r ormapi.Record) error {
	return m.check(ctx, r)
}

// Creatable denies payloads naming another tenant. A payload without the
// column is allowed.
func (m TenantID) Creatable(ctx context.Context, payload ormapi.Record) error {
	id, err := m.tenant(ctx)
	if err != nil {
		return err
	}
	if v, ok := payload[m.column()]; ok && fmt.Sprint(v) != id {
		return privacy.Denyf("cannot create records of tenant %v", v)
	}
	return privacy.Skip
}

// Updatable denies changes to records of other tenants, and moving a
// record to another tenant.
func (m TenantID) Updatable(ctx context.Context, payload, r ormapi.Record) error {
	if err := m.check(ctx, r); !errors.Is(err, privacy.Skip) {
		return err
	}
	return m.Creatable(ctx, payload)
}

// Deletable denies records of other tenants.
func (m TenantID) Deletable(ctx context.Context, r ormapi.Record) error {
	return m.check(ctx, r)
}

func (m TenantID) check(ctx context.Context, r ormapi.Record) error {
	id, err := m.tenant(ctx)
	if err != nil {
		return err
	}
	if fmt.Sprint(r[m.column()]) != id {
		return privacy.Denyf("record belongs to another tenant")
	}
	return privacy.Skip
}
