// Package privacy provides the decision vocabulary returned by model
// authorization hooks, and composable rules evaluated against the
// operation being performed.
//
// # Decisions
//
// Every hook of a model (Creatable, Readable, Updatable, Deletable) and
// every per-relation Attachable or Detachable predicate returns an error:
//
//   - nil, Allow or Skip: the operation is permitted
//   - Deny or Denyf(...): the operation is rejected with an authorization error
//
// The text given to Denyf is shown to the client:
//
//	func (Post) Deletable(_ context.Context, record ormapi.Record) error {
//	    if record["published"] == true {
//	        return privacy.Denyf("published posts cannot be deleted")
//	    }
//	    return nil
//	}
//
// # Policies
//
// Rules are combined into a Policy and evaluated in order. The first rule
// returning Allow or Deny decides; Skip moves on to the next rule:
//
//	privacy.Policy{
//	    privacy.DenyIfNoViewer(),
//	    privacy.HasRole("admin"),
//	    privacy.IsOwner("user_id"),
//	    privacy.AlwaysDenyRule(),
//	}.Eval(ctx, privacy.Subject{Op: privacy.OpUpdate, Record: record})
//
// # Bypassing
//
// A decision attached with DecisionContext short-circuits every policy
// evaluated under that context, which is useful for system tasks:
//
//	ctx = privacy.DecisionContext(ctx, privacy.Allow)
package privacy
