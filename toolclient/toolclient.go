// Package toolclient implements the Tool Protocol Client (C4): a uniform
// request/response envelope to tool servers with per-tool idempotency,
// retry, timeout and audit. Grounded on the teacher's tool executor
// (_examples/goadesign-goa-ai/runtime/toolregistry/executor/executor.go) for
// the span/attempt/retry-hint shape. Invalid-argument failures are returned
// as apperr.KindArgumentValidation errors wrapping the validator's error;
// no structured retry or repair metadata is attached to them.
package toolclient

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nwalker85/agentfoundry-sub000/apperr"
	"github.com/nwalker85/agentfoundry-sub000/telemetry"
)

// Outcome classifies a tool server's response (§4.4).
type Outcome string

const (
	OutcomeOK             Outcome = "ok"
	OutcomeRetriableError  Outcome = "retriable_error"
	OutcomeFatalError      Outcome = "fatal_error"
	OutcomeTimeout         Outcome = "timeout"
)

// Request is the uniform envelope sent to a tool server.
type Request struct {
	ToolName       string
	Arguments      map[string]any
	IdempotencyKey string
	Deadline       time.Time
	RequestID      string
	Tenant         string
}

// Response is the uniform envelope returned by a tool server.
type Response struct {
	Outcome Outcome
	Value   json.RawMessage
	Error   string
}

// DeriveIdempotencyKey computes hash(tool_name || canonical(arguments) ||
// stableSuffix) per §4.4. Canonicalization sorts map keys recursively so
// that semantically identical argument sets always hash the same (see
// store.Canonicalize, which this mirrors for determinism).
func DeriveIdempotencyKey(toolName string, arguments map[string]any, stableSuffix string) (string, error) {
	canon, err := canonicalize(arguments)
	if err != nil {
		return "", fmt.Errorf("toolclient: canonicalize arguments: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(toolName))
	h.Write([]byte{0})
	h.Write(canon)
	h.Write([]byte{0})
	h.Write([]byte(stableSuffix))
	return hex.EncodeToString(h.Sum(nil)), nil
}

func canonicalize(v any) ([]byte, error) {
	normalized, err := normalize(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(normalized)
}

func normalize(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			nv, err := normalize(val)
			if err != nil {
				return nil, err
			}
			out[k] = nv
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			nv, err := normalize(val)
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil
	default:
		return t, nil
	}
}

// Server is the transport to a single tool server, already routed to the
// namespace that owns the tool (§4.4 "a namespaced tool name ns.op routes to
// the server registered for ns").
type Server interface {
	Call(ctx context.Context, req Request) (Response, error)
}

// Registry resolves a namespaced tool name (ns.op) to the Server that
// implements namespace ns, and validates arguments against the tool's
// declared schema. Unknown tools fail with apperr.KindUnknownTool (§4.4).
type Registry interface {
	Resolve(toolName string) (Server, error)
	Validate(toolName string, arguments map[string]any) error
}

// IdempotencyCache caches (key -> response) with a TTL, and tracks in-flight
// calls so concurrent callers for the same key single-flight onto the first
// result (§4.4 "at-most-once semantics").
type IdempotencyCache interface {
	// Get returns a cached terminal response, or (false) if absent.
	Get(ctx context.Context, key string) (Response, bool)
	// Set stores a terminal response under key with the given TTL.
	Set(ctx context.Context, key string, resp Response, ttl time.Duration)
	// Reserve attempts to mark key as in-flight, returning true if this
	// caller won the race and must perform the call; false means another
	// caller is already in flight.
	Reserve(ctx context.Context, key string) bool
	// Release clears the in-flight marker (e.g. on failure, so a future
	// caller can retry rather than wait forever).
	Release(ctx context.Context, key string)
}

// Auditor records every call attempt (§4.10: "Attempts are recorded in
// C10").
type Auditor interface {
	Record(ctx context.Context, action, outcome string, metadata map[string]any)
}

// RetryPolicy implements §4.4's fixed backoff schedule: base 200ms, cap 5s,
// max 3 attempts, capped by the request's remaining deadline.
type RetryPolicy struct {
	Base        time.Duration
	Cap         time.Duration
	MaxAttempts int
}

// DefaultRetryPolicy is the policy mandated by §4.4.
var DefaultRetryPolicy = RetryPolicy{Base: 200 * time.Millisecond, Cap: 5 * time.Second, MaxAttempts: 3}

// backoff returns the delay before attempt n (1-indexed), exponential with a
// hard cap.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d > p.Cap {
			return p.Cap
		}
	}
	if d > p.Cap {
		d = p.Cap
	}
	return d
}

// DefaultIdempotencyTTL is the cache lifetime for a completed call (§4.4:
// "default 24h").
const DefaultIdempotencyTTL = 24 * time.Hour

// Client is the runtime-facing tool protocol client.
type Client struct {
	registry Registry
	cache    IdempotencyCache
	audit    Auditor
	policy   RetryPolicy
	ttl      time.Duration
	logger   telemetry.Logger
	tracer   telemetry.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option { return func(c *Client) { c.policy = p } }

// WithIdempotencyTTL overrides the default cache TTL.
func WithIdempotencyTTL(ttl time.Duration) Option { return func(c *Client) { c.ttl = ttl } }

// WithLogger configures the client logger; nil uses a noop logger.
func WithLogger(l telemetry.Logger) Option { return func(c *Client) { c.logger = l } }

// WithTracer configures the client tracer; nil uses a noop tracer.
func WithTracer(t telemetry.Tracer) Option { return func(c *Client) { c.tracer = t } }

// New constructs a Client.
func New(registry Registry, cache IdempotencyCache, audit Auditor, opts ...Option) *Client {
	c := &Client{
		registry: registry,
		cache:    cache,
		audit:    audit,
		policy:   DefaultRetryPolicy,
		ttl:      DefaultIdempotencyTTL,
		logger:   telemetry.NewNoopLogger(),
		tracer:   telemetry.NewNoopTracer(),
	}
	for _, o := range opts {
		if o != nil {
			o(c)
		}
	}
	return c
}

// Call invokes a tool, handling idempotency caching, single-flight dedup,
// argument validation, and retry with backoff, per §4.4.
func (c *Client) Call(ctx context.Context, req Request) (Response, error) {
	if c.cache != nil && req.IdempotencyKey != "" {
		if cached, ok := c.cache.Get(ctx, req.IdempotencyKey); ok {
			c.record(ctx, req, "cache_hit", nil)
			return cached, nil
		}
	}

	server, err := c.registry.Resolve(req.ToolName)
	if err != nil {
		c.record(ctx, req, "unknown_tool", nil)
		return Response{}, apperr.New(apperr.KindUnknownTool, req.RequestID, fmt.Sprintf("unknown tool %q", req.ToolName))
	}
	if err := c.registry.Validate(req.ToolName, req.Arguments); err != nil {
		c.record(ctx, req, "invalid_arguments", map[string]any{"error": err.Error()})
		return Response{}, apperr.Wrap(apperr.KindArgumentValidation, req.RequestID, "tool arguments failed schema validation", err)
	}

	if c.cache != nil && req.IdempotencyKey != "" {
		if !c.cache.Reserve(ctx, req.IdempotencyKey) {
			// Another caller is already in flight for this exact key: await
			// its terminal result rather than re-invoking the tool server, so
			// two concurrent callers never produce two side effects (§4.4 "a
			// second concurrent caller awaits the first result rather than
			// re-invoking", §8.1 at-most-once). Only the caller that actually
			// won Reserve may Release — a losing caller Releasing here would
			// clear the winner's in-flight marker out from under it.
			return c.awaitInFlight(ctx, req)
		}
		defer c.cache.Release(ctx, req.IdempotencyKey)
	}

	resp, err := c.callWithRetry(ctx, req, server)
	if err != nil {
		return Response{}, err
	}
	if c.cache != nil && req.IdempotencyKey != "" && resp.Outcome == OutcomeOK {
		c.cache.Set(ctx, req.IdempotencyKey, resp, c.ttl)
	}
	return resp, nil
}

// awaitInFlightPollInterval is how often a losing caller rechecks the cache
// while another caller is in flight for the same idempotency key.
const awaitInFlightPollInterval = 20 * time.Millisecond

// awaitInFlight blocks a caller that lost the Reserve race, polling the
// cache for the winning caller's terminal result instead of re-invoking the
// tool server (§4.4 "a second concurrent caller awaits the first result
// rather than re-invoking"; §8.1 at-most-once). It gives up with
// apperr.KindTimeout once ctx is cancelled or req.Deadline passes.
func (c *Client) awaitInFlight(ctx context.Context, req Request) (Response, error) {
	ticker := time.NewTicker(awaitInFlightPollInterval)
	defer ticker.Stop()
	for {
		if cached, ok := c.cache.Get(ctx, req.IdempotencyKey); ok {
			c.record(ctx, req, "single_flight_hit", nil)
			return cached, nil
		}
		deadline := req.Deadline
		if !deadline.IsZero() && time.Now().After(deadline) {
			c.record(ctx, req, "single_flight_timeout", nil)
			return Response{}, apperr.New(apperr.KindTimeout, req.RequestID, "timed out awaiting in-flight tool call")
		}
		select {
		case <-ctx.Done():
			c.record(ctx, req, "single_flight_timeout", nil)
			return Response{}, apperr.Wrap(apperr.KindTimeout, req.RequestID, "timed out awaiting in-flight tool call", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) callWithRetry(ctx context.Context, req Request, server Server) (Response, error) {
	tracer := c.tracer
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	ctx, span := tracer.Start(ctx, "toolclient.call")
	defer span.End()

	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if !req.Deadline.IsZero() && time.Now().After(req.Deadline) {
			c.record(ctx, req, "deadline_exceeded", map[string]any{"attempt": attempt})
			return Response{}, apperr.New(apperr.KindDeadlineExceeded, req.RequestID, "tool call deadline exceeded before attempt")
		}

		resp, err := server.Call(ctx, req)
		c.record(ctx, req, string(outcomeOrError(resp, err)), map[string]any{"attempt": attempt})
		if err != nil {
			lastErr = err
			if !isRetriable(err) {
				return Response{}, err
			}
		} else {
			switch resp.Outcome {
			case OutcomeOK:
				return resp, nil
			case OutcomeFatalError:
				return resp, apperr.New(apperr.KindInternal, req.RequestID, resp.Error)
			case OutcomeRetriableError, OutcomeTimeout:
				lastErr = apperr.New(apperr.KindRetriable, req.RequestID, resp.Error)
			}
		}

		if attempt == c.policy.MaxAttempts {
			break
		}
		delay := c.policy.backoff(attempt)
		if !req.Deadline.IsZero() {
			if remaining := time.Until(req.Deadline); remaining < delay {
				delay = remaining
			}
		}
		if delay > 0 {
			select {
			case <-ctx.Done():
				return Response{}, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	if lastErr == nil {
		lastErr = errors.New("toolclient: call failed with no error detail")
	}
	return Response{}, apperr.Wrap(apperr.KindRetriable, req.RequestID, "tool call exhausted retries", lastErr)
}

func outcomeOrError(resp Response, err error) Outcome {
	if err != nil {
		return OutcomeRetriableError
	}
	return resp.Outcome
}

func isRetriable(err error) bool {
	return apperr.IsRetriable(err)
}

func (c *Client) record(ctx context.Context, req Request, outcome string, extra map[string]any) {
	if c.audit == nil {
		return
	}
	meta := map[string]any{"tool": req.ToolName, "request_id": req.RequestID, "tenant": req.Tenant}
	for k, v := range extra {
		meta[k] = v
	}
	c.audit.Record(ctx, "tool.call", outcome, meta)
}
