package privacy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/ormapi/privacy"
)

func TestViewerContext(t *testing.T) {
	t.Parallel()
	assert.Nil(t, privacy.ViewerFromContext(context.Background()))
	ctx := privacy.WithViewer(context.Background(), &privacy.SimpleViewer{UserID: "7"})
	viewer := privacy.ViewerFromContext(ctx)
	require.NotNil(t, viewer)
	assert.Equal(t, "7", viewer.GetID())
}

func TestOwnerPolicy(t *testing.T) {
	t.Parallel()
	policy := privacy.Policy{
		privacy.DenyIfNoViewer(),
		privacy.HasRole("admin"),
		privacy.IsOwner("user_id"),
		privacy.AlwaysDenyRule(),
	}
	record := map[string]any{"id": int64(1), "user_id": int64(7)}
	tests := []struct {
		name    string
		viewer  privacy.Viewer
		allowed bool
	}{
		{name: "anonymous"},
		{name: "owner", viewer: &privacy.SimpleViewer{UserID: "7"}, allowed: true},
		{name: "stranger", viewer: &privacy.SimpleViewer{UserID: "8"}},
		{name: "admin", viewer: &privacy.SimpleViewer{UserID: "8", Roles: []string{"admin"}}, allowed: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			if tt.viewer != nil {
				ctx = privacy.WithViewer(ctx, tt.viewer)
			}
			err := policy.Eval(ctx, privacy.Subject{Op: privacy.OpUpdate, Record: record})
			assert.Equal(t, tt.allowed, privacy.Allowed(err), "decision: %v", err)
		})
	}
}

func TestTenantRule(t *testing.T) {
	t.Parallel()
	rule := privacy.TenantRule("tenant_id")
	ctx := privacy.WithViewer(context.Background(), &privacy.SimpleViewer{UserID: "1", TenantID: "acme"})

	err := rule.Eval(ctx, privacy.Subject{Payload: map[string]any{"tenant_id": "acme"}})
	assert.ErrorIs(t, err, privacy.Allow)

	err = rule.Eval(ctx, privacy.Subject{Record: map[string]any{"tenant_id": "globex"}})
	assert.ErrorIs(t, err, privacy.Deny)
	assert.Equal(t, "tenant mismatch", privacy.Message(err))

	assert.ErrorIs(t, rule.Eval(context.Background(), privacy.Subject{}), privacy.Skip)
}
