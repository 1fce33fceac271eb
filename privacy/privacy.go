package privacy

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Policy decision sentinel errors.
//
// These errors are used as return values from hooks and rules to indicate
// how the evaluation should proceed. Use errors.Is() to check for them:
//
//	if errors.Is(err, privacy.Deny) { ... }
var (
	// Allow may be returned by rules to indicate that the policy
	// evaluation should terminate with an allow decision.
	Allow = errors.New("privacy: allow rule")

	// Deny may be returned by rules to indicate that the policy
	// evaluation should terminate with a deny decision.
	Deny = errors.New("privacy: deny rule")

	// Skip may be returned by rules to indicate that the policy
	// evaluation should continue to the next rule in the chain.
	Skip = errors.New("privacy: skip rule")
)

// Allowf returns a formatted wrapped Allow decision.
func Allowf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Allow)...)
}

// Denyf returns a formatted wrapped Deny decision. The formatted text is
// the message shown to the client.
//
//	return privacy.Denyf("published posts cannot be edited")
func Denyf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Deny)...)
}

// Skipf returns a formatted wrapped Skip decision.
func Skipf(format string, a ...any) error {
	return fmt.Errorf(format+": %w", append(a, Skip)...)
}

// Allowed reports whether decision permits the operation. A nil decision,
// Allow and Skip permit; every other error denies.
func Allowed(decision error) bool {
	return decision == nil || errors.Is(decision, Allow) || errors.Is(decision, Skip)
}

// Message returns the human-readable part of a deny decision, or an empty
// string when the decision carries no custom text.
func Message(decision error) string {
	if decision == nil || decision == Deny {
		return ""
	}
	msg := decision.Error()
	msg = strings.TrimSuffix(msg, ": "+Deny.Error())
	return strings.TrimPrefix(msg, "privacy: ")
}

// Op identifies the operation being authorized.
type Op string

// Operations evaluated by rules.
const (
	OpCreate Op = "create"
	OpRead   Op = "read"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpAttach Op = "attach"
	OpDetach Op = "detach"
)

// Subject describes the operation under evaluation.
type Subject struct {
	Op    Op
	Model string
	// Relation is set for attach and detach.
	Relation string
	// Payload is the validated input of create and update.
	Payload map[string]any
	// Record is the stored row the operation applies to, if any.
	Record map[string]any
	// Related is the other side of an attach or detach.
	Related map[string]any
}

// Field returns the value of name, looked up in the payload first and then
// in the stored record.
func (s Subject) Field(name string) (any, bool) {
	if v, ok := s.Payload[name]; ok {
		return v, true
	}
	v, ok := s.Record[name]
	return v, ok
}

// Rule decides whether an operation is allowed.
type Rule interface {
	Eval(context.Context, Subject) error
}

// RuleFunc type is an adapter which allows the use of ordinary functions
// as rules.
type RuleFunc func(context.Context, Subject) error

// Eval returns f(ctx, s).
func (f RuleFunc) Eval(ctx context.Context, s Subject) error {
	return f(ctx, s)
}

// Policy combines multiple rules. Rules are evaluated in order until one
// returns a decision other than Skip.
//
//	func (Post) Updatable(ctx context.Context, payload, record ormapi.Record) error {
//	    return privacy.Policy{
//	        privacy.DenyIfNoViewer(),
//	        privacy.HasRole("admin"),
//	        privacy.IsOwner("user_id"),
//	        privacy.AlwaysDenyRule(),
//	    }.Eval(ctx, privacy.Subject{Op: privacy.OpUpdate, Payload: payload, Record: record})
//	}
type Policy []Rule

// Eval evaluates the policy. An Allow decision stops the evaluation with a
// nil error, a decision attached with DecisionContext short-circuits it.
func (p Policy) Eval(ctx context.Context, s Subject) error {
	if decision, ok := DecisionFromContext(ctx); ok {
		return decision
	}
	for _, rule := range p {
		switch decision := rule.Eval(ctx, s); {
		case decision == nil || errors.Is(decision, Skip):
		case errors.Is(decision, Allow):
			return nil
		default:
			return decision
		}
	}
	return nil
}

// AlwaysAllowRule returns a rule that always returns an Allow decision.
func AlwaysAllowRule() Rule {
	return fixedDecision{Allow}
}

// AlwaysDenyRule returns a rule that always returns a Deny decision.
func AlwaysDenyRule() Rule {
	return fixedDecision{Deny}
}

// ContextRule creates a rule from a context evaluation function.
func ContextRule(eval func(context.Context) error) Rule {
	return RuleFunc(func(ctx context.Context, _ Subject) error {
		return eval(ctx)
	})
}

// OnOperation evaluates the given rule only on the listed operations.
func OnOperation(rule Rule, ops ...Op) Rule {
	return RuleFunc(func(ctx context.Context, s Subject) error {
		for _, op := range ops {
			if s.Op == op {
				return rule.Eval(ctx, s)
			}
		}
		return Skip
	})
}

// DenyOperationRule returns a rule denying the specified operation.
func DenyOperationRule(op Op) Rule {
	rule := RuleFunc(func(_ context.Context, s Subject) error {
		return Denyf("operation %s is not allowed", s.Op)
	})
	return OnOperation(rule, op)
}

type decisionCtxKey struct{}

// DecisionContext creates a new context from the given parent context with
// a policy decision attach to it.
func DecisionContext(parent context.Context, decision error) context.Context {
	if decision == nil || errors.Is(decision, Skip) {
		return parent
	}
	return context.WithValue(parent, decisionCtxKey{}, decision)
}

// DecisionFromContext retrieves the policy decision from the context.
func DecisionFromContext(ctx context.Context) (error, bool) {
	decision, ok := ctx.Value(decisionCtxKey{}).(error)
	if ok && errors.Is(decision, Allow) {
		decision = nil
	}
	return decision, ok
}

type fixedDecision struct {
	decision error
}

func (f fixedDecision) Eval(context.Context, Subject) error {
	return f.decision
}
