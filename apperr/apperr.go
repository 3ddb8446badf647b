// Package apperr defines the error taxonomy from spec §7 as a small set of
// sentinel error kinds. Every error that can be surfaced to a transport
// (§6.1, §7 "User-visible behaviour") carries a Kind so channel adapters can
// render `{error_kind, message, request_id}` generically, regardless of
// which component raised it — grounded on the teacher's structured
// planner.ToolError/RetryHint pattern (_examples/goadesign-goa-ai/runtime/agent/planner).
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies a taxonomy entry from spec §7.
type Kind string

const (
	KindConfiguration       Kind = "configuration_error"
	KindBundleIntegrity     Kind = "bundle_integrity_error"
	KindUnauthorized        Kind = "unauthorized"
	KindUnknownTool         Kind = "unknown_tool"
	KindArgumentValidation  Kind = "argument_validation_error"
	KindNotFound            Kind = "not_found"
	KindDeadlineExceeded    Kind = "deadline_exceeded"
	KindRecursionLimit      Kind = "recursion_limit_exceeded"
	KindUnroutableState     Kind = "unroutable_state"
	KindAmbiguousEdge       Kind = "ambiguous_edge"
	KindWorkerQuorumFailure Kind = "worker_quorum_failure"
	KindRetriable           Kind = "retriable_error"
	KindTimeout             Kind = "timeout"
	KindInternal            Kind = "internal_error"
	KindPolicyViolation     Kind = "policy_violation"
)

// Error is the canonical error type carried across component boundaries. It
// never embeds secret values (§4.2 blind-write invariant; §4.10 audit
// redaction) — Message must always be safe to show to the originating actor,
// except for KindUnauthorized which adapters must render with the opaque
// text in Message rather than any wrapped Cause.
type Error struct {
	Kind      Kind
	Message   string
	RequestID string
	Cause     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error of the given kind.
func New(kind Kind, requestID, message string) *Error {
	return &Error{Kind: kind, RequestID: requestID, Message: message}
}

// Wrap constructs an Error of the given kind around an existing cause.
func Wrap(kind Kind, requestID, message string, cause error) *Error {
	return &Error{Kind: kind, RequestID: requestID, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err, defaulting to KindInternal when err is
// not (or does not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsUnauthorized reports whether err denotes an authorization denial.
func IsUnauthorized(err error) bool { return KindOf(err) == KindUnauthorized }

// IsRetriable reports whether err is retriable per §4.4's retry policy
// (retriable_error and timeout are retried; fatal_error is not).
func IsRetriable(err error) bool {
	k := KindOf(err)
	return k == KindRetriable || k == KindTimeout
}

// Render produces the channel-appropriate error payload from §7
// ("User-visible behaviour"): {error_kind, message, request_id}.
// Unauthorized errors always render with a fixed, non-leaking message.
func Render(err error, requestID string) map[string]any {
	k := KindOf(err)
	msg := err.Error()
	if k == KindUnauthorized {
		msg = "you are not authorized to perform this action"
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		msg = e.Message
		if k == KindUnauthorized {
			msg = "you are not authorized to perform this action"
		}
	}
	if requestID == "" {
		if e != nil {
			requestID = e.RequestID
		}
	}
	return map[string]any{
		"error_kind": string(k),
		"message":    msg,
		"request_id": requestID,
	}
}
