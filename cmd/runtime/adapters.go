package main

import (
	"context"

	"github.com/nwalker85/agentfoundry-sub000/audit"
	"github.com/nwalker85/agentfoundry-sub000/authz"
)

// auditRecorder adapts *audit.Log's Entry-shaped Record method onto the
// narrower (action, outcome, metadata) signature that secretstore.Auditor
// and toolclient.Auditor both declare, pulling request_id/tenant back out
// of the metadata map when the caller stamped them in (toolclient.record
// does; secretstore.Client.record stamps only the path, so secret entries
// carry neither) rather than threading a second set of parameters through
// every call site.
type auditRecorder struct {
	log *audit.Log
}

func newAuditRecorder(log *audit.Log) *auditRecorder {
	return &auditRecorder{log: log}
}

func (a *auditRecorder) Record(ctx context.Context, action, outcome string, metadata map[string]any) {
	entry := audit.Entry{Action: action, Outcome: outcome, Metadata: metadata}
	if v, ok := metadata["request_id"].(string); ok {
		entry.RequestID = v
	}
	if v, ok := metadata["tenant"].(string); ok {
		entry.Tenant = v
	}
	a.log.Record(ctx, entry)
}

// secretChecker adapts *authz.Client's typed Check method onto
// secretstore.Checker's plain-string signature, so C2's Put path can
// authorize writes through the same oracle C3 exposes to every other
// caller instead of a bespoke secret-store-only check.
type secretChecker struct {
	az *authz.Client
}

func newSecretChecker(az *authz.Client) *secretChecker {
	return &secretChecker{az: az}
}

func (s *secretChecker) Check(ctx context.Context, actor, relation, objectType, objectID string) (bool, error) {
	return s.az.Check(ctx, actor, authz.Relation(relation), authz.Object{Type: authz.ObjectType(objectType), ID: objectID})
}
