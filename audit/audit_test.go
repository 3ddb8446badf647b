package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nwalker85/agentfoundry-sub000/audit"
	"github.com/nwalker85/agentfoundry-sub000/audit/inmem"
)

type redactSecrets struct{}

func (redactSecrets) Redact(e audit.Entry) audit.Entry {
	if e.Metadata == nil {
		return e
	}
	cp := make(map[string]any, len(e.Metadata))
	for k, v := range e.Metadata {
		if k == "value" {
			cp[k] = "[redacted]"
			continue
		}
		cp[k] = v
	}
	e.Metadata = cp
	return e
}

func waitForEntries(t *testing.T, backend *inmem.Backend, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := backend.Query(context.Background(), audit.Filter{})
		require.NoError(t, err)
		if len(got) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d entries", n)
}

func TestRecord_SequenceNumbersAreMonotonicPerRequest(t *testing.T) {
	backend := inmem.New()
	l := audit.New(backend, nil, nil, 0)
	defer l.Stop(context.Background())

	l.Record(context.Background(), audit.Entry{RequestID: "r1", Action: "tool.call"})
	l.Record(context.Background(), audit.Entry{RequestID: "r1", Action: "tool.call"})
	l.Record(context.Background(), audit.Entry{RequestID: "r2", Action: "tool.call"})

	waitForEntries(t, backend, 3)
	got, err := backend.Query(context.Background(), audit.Filter{})
	require.NoError(t, err)

	var r1Seqs []int64
	for _, e := range got {
		if e.RequestID == "r1" {
			r1Seqs = append(r1Seqs, e.Sequence)
		}
	}
	assert.Equal(t, []int64{1, 2}, r1Seqs)
}

func TestQuery_AppliesRedactionWithoutMutatingBackend(t *testing.T) {
	backend := inmem.New()
	l := audit.New(backend, nil, redactSecrets{}, 0)
	defer l.Stop(context.Background())

	l.Record(context.Background(), audit.Entry{
		RequestID: "r1", Action: "secret.get", Metadata: map[string]any{"value": "sk-topsecret"},
	})
	waitForEntries(t, backend, 1)

	redacted, err := l.Query(context.Background(), audit.Filter{})
	require.NoError(t, err)
	require.Len(t, redacted, 1)
	assert.Equal(t, "[redacted]", redacted[0].Metadata["value"])

	raw, err := backend.Query(context.Background(), audit.Filter{})
	require.NoError(t, err)
	assert.Equal(t, "sk-topsecret", raw[0].Metadata["value"], "backend must retain the raw value for forensics")
}

func TestQuery_FiltersByTenantAndAction(t *testing.T) {
	backend := inmem.New()
	l := audit.New(backend, nil, nil, 0)
	defer l.Stop(context.Background())

	l.Record(context.Background(), audit.Entry{RequestID: "r1", Tenant: "t1", Action: "tool.call"})
	l.Record(context.Background(), audit.Entry{RequestID: "r2", Tenant: "t2", Action: "tool.call"})
	l.Record(context.Background(), audit.Entry{RequestID: "r3", Tenant: "t1", Action: "auth.deny"})
	waitForEntries(t, backend, 3)

	got, err := l.Query(context.Background(), audit.Filter{Tenant: "t1", Action: "auth.deny"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "r3", got[0].RequestID)
}

func TestIsCritical_MatchesExemptActionPrefixesAndNames(t *testing.T) {
	assert.True(t, audit.IsCritical("auth.deny"))
	assert.True(t, audit.IsCritical("tool.fatal"))
	assert.True(t, audit.IsCritical("secret.get"))
	assert.True(t, audit.IsCritical("secret.put"))
	assert.False(t, audit.IsCritical("tool.call"))
}

func TestRecord_CriticalActionSurvivesBufferOverflow(t *testing.T) {
	backend := inmem.New()
	l := audit.New(backend, nil, nil, 1) // tiny buffer, easy to overflow

	for i := 0; i < 50; i++ {
		l.Record(context.Background(), audit.Entry{RequestID: "r1", Action: "tool.call"})
	}
	l.Record(context.Background(), audit.Entry{RequestID: "r1", Action: "auth.deny"})
	defer l.Stop(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	var found bool
	for time.Now().Before(deadline) {
		got, err := backend.Query(context.Background(), audit.Filter{Action: "auth.deny"})
		require.NoError(t, err)
		if len(got) > 0 {
			found = true
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.True(t, found, "critical auth.deny entry must never be dropped on overflow")
}
