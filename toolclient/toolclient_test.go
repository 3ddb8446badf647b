package toolclient_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nwalker85/agentfoundry-sub000/apperr"
	"github.com/nwalker85/agentfoundry-sub000/toolclient"
	"github.com/nwalker85/agentfoundry-sub000/toolclient/inmem"
)

type stubServer struct {
	calls     int
	responses []toolclient.Response
	errs      []error
}

func (s *stubServer) Call(context.Context, toolclient.Request) (toolclient.Response, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return toolclient.Response{}, s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return s.responses[len(s.responses)-1], nil
}

type recordingAuditor struct {
	outcomes []string
}

func (r *recordingAuditor) Record(_ context.Context, _, outcome string, _ map[string]any) {
	r.outcomes = append(r.outcomes, outcome)
}

func TestCall_UnknownToolFails(t *testing.T) {
	reg := inmem.NewRegistry()
	client := toolclient.New(reg, inmem.NewCache(), nil)

	_, err := client.Call(context.Background(), toolclient.Request{ToolName: "crm.lookup"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnknownTool, apperr.KindOf(err))
}

func TestCall_CachesSuccessByIdempotencyKey(t *testing.T) {
	server := &stubServer{responses: []toolclient.Response{{Outcome: toolclient.OutcomeOK, Value: []byte(`{"ok":true}`)}}}
	reg := inmem.NewRegistry()
	reg.Register("crm.lookup", server, nil)
	client := toolclient.New(reg, inmem.NewCache(), nil)

	key, err := toolclient.DeriveIdempotencyKey("crm.lookup", map[string]any{"id": "1"}, "req-1")
	require.NoError(t, err)

	req := toolclient.Request{ToolName: "crm.lookup", IdempotencyKey: key, Arguments: map[string]any{"id": "1"}}
	resp1, err := client.Call(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, toolclient.OutcomeOK, resp1.Outcome)

	resp2, err := client.Call(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, resp1, resp2)
	assert.Equal(t, 1, server.calls, "second call must be served from cache without invoking the server")
}

func TestCall_RetriesRetriableErrorThenSucceeds(t *testing.T) {
	server := &stubServer{responses: []toolclient.Response{
		{Outcome: toolclient.OutcomeRetriableError, Error: "try again"},
		{Outcome: toolclient.OutcomeRetriableError, Error: "try again"},
		{Outcome: toolclient.OutcomeOK, Value: []byte(`{"ok":true}`)},
	}}
	reg := inmem.NewRegistry()
	reg.Register("crm.lookup", server, nil)
	auditor := &recordingAuditor{}
	client := toolclient.New(reg, inmem.NewCache(), auditor,
		toolclient.WithRetryPolicy(toolclient.RetryPolicy{Base: time.Millisecond, Cap: 10 * time.Millisecond, MaxAttempts: 3}))

	resp, err := client.Call(context.Background(), toolclient.Request{ToolName: "crm.lookup"})
	require.NoError(t, err)
	assert.Equal(t, toolclient.OutcomeOK, resp.Outcome)
	assert.Equal(t, 3, server.calls)
}

func TestCall_FatalErrorDoesNotRetry(t *testing.T) {
	server := &stubServer{responses: []toolclient.Response{{Outcome: toolclient.OutcomeFatalError, Error: "boom"}}}
	reg := inmem.NewRegistry()
	reg.Register("crm.lookup", server, nil)
	client := toolclient.New(reg, inmem.NewCache(), nil)

	_, err := client.Call(context.Background(), toolclient.Request{ToolName: "crm.lookup"})
	require.Error(t, err)
	assert.Equal(t, 1, server.calls, "a fatal_error outcome must not be retried")
}

func TestCall_ExhaustsRetriesAndFails(t *testing.T) {
	server := &stubServer{responses: []toolclient.Response{{Outcome: toolclient.OutcomeRetriableError, Error: "down"}}}
	reg := inmem.NewRegistry()
	reg.Register("crm.lookup", server, nil)
	client := toolclient.New(reg, inmem.NewCache(), nil,
		toolclient.WithRetryPolicy(toolclient.RetryPolicy{Base: time.Millisecond, Cap: time.Millisecond, MaxAttempts: 3}))

	_, err := client.Call(context.Background(), toolclient.Request{ToolName: "crm.lookup"})
	require.Error(t, err)
	assert.Equal(t, 3, server.calls)
}

// blockingServer lets a test control exactly when the underlying call
// completes, so a losing Reserve race can be forced deterministically.
type blockingServer struct {
	calls   int32
	release chan struct{}
	resp    toolclient.Response
}

func (s *blockingServer) Call(ctx context.Context, _ toolclient.Request) (toolclient.Response, error) {
	atomic.AddInt32(&s.calls, 1)
	select {
	case <-s.release:
	case <-ctx.Done():
		return toolclient.Response{}, ctx.Err()
	}
	return s.resp, nil
}

func TestCall_ConcurrentCallersSingleFlightOntoOneInvocation(t *testing.T) {
	server := &blockingServer{release: make(chan struct{}), resp: toolclient.Response{Outcome: toolclient.OutcomeOK, Value: []byte(`{"ok":true}`)}}
	reg := inmem.NewRegistry()
	reg.Register("crm.lookup", server, nil)
	client := toolclient.New(reg, inmem.NewCache(), nil)

	req := toolclient.Request{ToolName: "crm.lookup", IdempotencyKey: "fixed-key", Arguments: map[string]any{"id": "1"}, Deadline: time.Now().Add(2 * time.Second)}

	var wg sync.WaitGroup
	results := make([]toolclient.Response, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = client.Call(context.Background(), req)
		}()
	}

	// Give both goroutines a chance to reach Reserve before releasing the
	// winner's in-flight call.
	time.Sleep(20 * time.Millisecond)
	close(server.release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, results[0], results[1])
	assert.Equal(t, int32(1), atomic.LoadInt32(&server.calls), "a losing caller must await the winner's result rather than re-invoking the server")
}

func TestCall_LosingCallerDoesNotReleaseWinnersInFlightMarker(t *testing.T) {
	cache := inmem.NewCache()
	server := &blockingServer{release: make(chan struct{}), resp: toolclient.Response{Outcome: toolclient.OutcomeOK, Value: []byte(`{"ok":true}`)}}
	reg := inmem.NewRegistry()
	reg.Register("crm.lookup", server, nil)
	client := toolclient.New(reg, cache, nil)

	req := toolclient.Request{ToolName: "crm.lookup", IdempotencyKey: "fixed-key", Arguments: map[string]any{"id": "1"}, Deadline: time.Now().Add(2 * time.Second)}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = client.Call(context.Background(), req)
	}()

	time.Sleep(20 * time.Millisecond)
	// A second, short-lived caller loses the Reserve race; once it gives up
	// it must not have cleared the winner's in-flight marker.
	loserCtx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := client.Call(loserCtx, req)
	require.Error(t, err)
	assert.Equal(t, apperr.KindTimeout, apperr.KindOf(err))

	assert.False(t, cache.Reserve(context.Background(), "fixed-key"), "winner's in-flight marker must still be held after a losing caller gives up")

	close(server.release)
	wg.Wait()
}

func TestDeriveIdempotencyKey_StableAcrossKeyOrder(t *testing.T) {
	k1, err := toolclient.DeriveIdempotencyKey("crm.lookup", map[string]any{"a": 1, "b": 2}, "s")
	require.NoError(t, err)
	k2, err := toolclient.DeriveIdempotencyKey("crm.lookup", map[string]any{"b": 2, "a": 1}, "s")
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}
