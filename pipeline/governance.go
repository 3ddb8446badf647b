package pipeline

import (
	"github.com/nwalker85/agentfoundry-sub000/apperr"
	"github.com/nwalker85/agentfoundry-sub000/graph"
)

// PolicyViolationMessage is the fixed, non-leaking message surfaced to the
// originating actor when governance denies a request (§4.6, §8.4 scenario
// S2).
const PolicyViolationMessage = "request not permitted"

// GovernanceDenied builds the governance stage's short-circuit update: a
// final_response carrying the policy_violation payload, routed straight to
// io_out via the "violation" edge label. message overrides the default
// PolicyViolationMessage when non-empty; callers that don't need to
// distinguish denial reasons from their authorizer can pass "".
func GovernanceDenied(message string) (graph.State, string, error) {
	if message == "" {
		message = PolicyViolationMessage
	}
	return graph.State{"final_response": map[string]any{
		"error_kind": string(apperr.KindPolicyViolation),
		"message":    message,
	}}, "violation", nil
}

// GovernanceAllowed builds the governance stage's pass-through update: no
// state changes, routed to context via the unconditional edge.
func GovernanceAllowed() (graph.State, string, error) {
	return nil, "", nil
}
