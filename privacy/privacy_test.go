package privacy_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/ormapi/privacy"
)

func TestAllowed(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		decision error
		want     bool
	}{
		{name: "nil", want: true},
		{name: "allow", decision: privacy.Allow, want: true},
		{name: "skip", decision: privacy.Skipf("abstain"), want: true},
		{name: "deny", decision: privacy.Deny},
		{name: "denyf", decision: privacy.Denyf("no")},
		{name: "arbitrary error", decision: errors.New("boom")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, privacy.Allowed(tt.decision))
		})
	}
}

func TestMessage(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "published posts cannot be deleted", privacy.Message(privacy.Denyf("published posts cannot be deleted")))
	assert.Equal(t, "tag go is locked", privacy.Message(privacy.Denyf("tag %s is locked", "go")))
	assert.Empty(t, privacy.Message(privacy.Deny))
	assert.Empty(t, privacy.Message(nil))
	assert.Equal(t, "boom", privacy.Message(errors.New("boom")))
}

func TestPolicy_Eval(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	subject := privacy.Subject{Op: privacy.OpUpdate, Model: "Post"}

	t.Run("empty policy allows", func(t *testing.T) {
		assert.NoError(t, privacy.Policy{}.Eval(ctx, subject))
	})
	t.Run("first decision wins", func(t *testing.T) {
		p := privacy.Policy{
			privacy.ContextRule(func(context.Context) error { return privacy.Skip }),
			privacy.AlwaysAllowRule(),
			privacy.AlwaysDenyRule(),
		}
		assert.NoError(t, p.Eval(ctx, subject))
	})
	t.Run("deny", func(t *testing.T) {
		p := privacy.Policy{privacy.AlwaysDenyRule()}
		assert.ErrorIs(t, p.Eval(ctx, subject), privacy.Deny)
	})
	t.Run("operation filter", func(t *testing.T) {
		p := privacy.Policy{privacy.DenyOperationRule(privacy.OpDelete)}
		assert.NoError(t, p.Eval(ctx, subject))
		err := p.Eval(ctx, privacy.Subject{Op: privacy.OpDelete})
		assert.ErrorIs(t, err, privacy.Deny)
		assert.Equal(t, "operation delete is not allowed", privacy.Message(err))
	})
	t.Run("decision context", func(t *testing.T) {
		p := privacy.Policy{privacy.AlwaysDenyRule()}
		assert.NoError(t, p.Eval(privacy.DecisionContext(ctx, privacy.Allow), subject))
		assert.Equal(t, ctx, privacy.DecisionContext(ctx, privacy.Skip))
	})
}
