// Package audit implements the Audit Log (C10): an append-only, per-request
// sequenced log written asynchronously through a bounded buffer, with
// critical-action entries exempt from overflow drop, and a query path with
// tenant/actor/action/time-range filters and redaction at read time.
// Grounded on the teacher's run log store
// (_examples/goadesign-goa-ai/runtime/agent/runlog/inmem/inmem.go) for the
// monotonic per-key sequence and cursor-paginated List shape, generalized
// here from per-run events to per-request audit entries keyed additionally
// by tenant.
package audit

import (
	"context"
	"sync"
	"time"
)

// Entry is one audit record (§4.10). Metadata may contain hashes of
// inputs/outputs but must never carry plaintext secrets or bulk content —
// callers are responsible for pre-redacting before Record; Query applies a
// second redaction pass so stored entries remain raw for forensics.
type Entry struct {
	Sequence     int64
	Timestamp    time.Time
	RequestID    string
	Tenant       string
	Actor        string
	Action       string
	ResourceType string
	ResourceID   string
	Outcome      string
	Metadata     map[string]any
}

// criticalActions are never dropped on buffer overflow (§4.10): auth
// denials and fatal tool outcomes. Every action ∈ secret.* is also
// critical, checked separately by prefix below.
var criticalActions = map[string]bool{
	"auth.deny":  true,
	"tool.fatal": true,
}

// IsCritical reports whether action is exempt from overflow drop.
func IsCritical(action string) bool {
	if criticalActions[action] {
		return true
	}
	return len(action) >= 7 && action[:7] == "secret."
}

// Backend durably appends and queries audit entries. Implementations may
// be a flat append-only file or a columnar store (§6.3); audit itself only
// defines the buffering/drop policy and the in-process sequencing.
type Backend interface {
	Append(ctx context.Context, e Entry) error
	Query(ctx context.Context, f Filter) ([]Entry, error)
}

// Filter selects entries for a Query call (§4.10 "Query").
type Filter struct {
	Tenant string
	Actor  string
	Action string
	From   time.Time
	To     time.Time
	Cursor string
	Limit  int
}

// Metrics records buffer-overflow drops.
type Metrics interface {
	IncCounter(name string, value float64, tags ...string)
}

// Redactor strips sensitive fields from Metadata at query time, leaving
// the durable record untouched (§4.10 "Redaction rules are applied at
// query time so stored entries remain raw for forensics").
type Redactor interface {
	Redact(e Entry) Entry
}

// Log is the C10 client: a bounded-buffer async writer in front of a
// Backend.
type Log struct {
	backend  Backend
	metrics  Metrics
	redactor Redactor

	mu        sync.Mutex
	nextSeq   map[string]int64 // keyed by request_id, per §5 "totally ordered by request_id + sequence"
	queue     chan Entry
	done      chan struct{}
	wg        sync.WaitGroup
}

// DefaultBufferSize matches §5's "bounded buffering" for the 100ms-interval
// async flusher.
const DefaultBufferSize = 4096

// New constructs a Log and starts its background flusher goroutine. Stop
// must be called during graceful shutdown to drain in-flight entries
// within the process's grace window (§5 "5s grace").
func New(backend Backend, metrics Metrics, redactor Redactor, bufferSize int) *Log {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	l := &Log{
		backend:  backend,
		metrics:  metrics,
		redactor: redactor,
		nextSeq:  make(map[string]int64),
		queue:    make(chan Entry, bufferSize),
		done:     make(chan struct{}),
	}
	l.wg.Add(1)
	go l.flush()
	return l
}

// Record enqueues an entry for async append, stamping it with the next
// sequence number for its request_id. On buffer overflow, non-critical
// entries are dropped (with a warning metric); critical actions
// (auth.deny, secret.*, tool.fatal) always get a slot by writing
// synchronously to the backend instead of being dropped (§4.10).
func (l *Log) Record(ctx context.Context, e Entry) {
	e.Timestamp = time.Now().UTC()
	l.mu.Lock()
	l.nextSeq[e.RequestID]++
	e.Sequence = l.nextSeq[e.RequestID]
	l.mu.Unlock()

	select {
	case l.queue <- e:
	default:
		if IsCritical(e.Action) {
			_ = l.backend.Append(ctx, e) // critical entries are never dropped
			return
		}
		if l.metrics != nil {
			l.metrics.IncCounter("audit.buffer.overflow.dropped", 1, "action", e.Action)
		}
	}
}

func (l *Log) flush() {
	defer l.wg.Done()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var batch []Entry
	drain := func() {
		for _, e := range batch {
			_ = l.backend.Append(context.Background(), e)
		}
		batch = batch[:0]
	}

	for {
		select {
		case e, ok := <-l.queue:
			if !ok {
				drain()
				return
			}
			batch = append(batch, e)
		case <-ticker.C:
			drain()
		case <-l.done:
			// Drain whatever remains in the channel without blocking further.
			for {
				select {
				case e := <-l.queue:
					batch = append(batch, e)
				default:
					drain()
					return
				}
			}
		}
	}
}

// Stop signals the flusher to drain and exit. Safe to call once.
func (l *Log) Stop(ctx context.Context) error {
	close(l.done)
	waited := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Query reads entries matching f, applying redaction before returning them.
func (l *Log) Query(ctx context.Context, f Filter) ([]Entry, error) {
	entries, err := l.backend.Query(ctx, f)
	if err != nil {
		return nil, err
	}
	if l.redactor == nil {
		return entries, nil
	}
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = l.redactor.Redact(e)
	}
	return out, nil
}
