package secretstore_test

import (
	"context"
	"testing"

	"github.com/nwalker85/agentfoundry-sub000/secretstore"
	"github.com/nwalker85/agentfoundry-sub000/secretstore/inmem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChecker struct{ allow bool }

func (f fakeChecker) Check(context.Context, string, string, string, string) (bool, error) {
	return f.allow, nil
}

type recordingAuditor struct {
	actions []string
}

func (r *recordingAuditor) Record(_ context.Context, action, outcome string, _ map[string]any) {
	r.actions = append(r.actions, action+":"+outcome)
}

func TestGet_NotFound(t *testing.T) {
	backend := inmem.New()
	client := secretstore.New(backend, inmem.NewCache(0), fakeChecker{allow: true}, &recordingAuditor{})

	_, err := client.Get(context.Background(), secretstore.Path{Env: "prod", Tenant: "acme", Name: "api-key"})
	require.ErrorIs(t, err, secretstore.ErrNotFound)
}

func TestPut_DeniedNeverReachesBackend(t *testing.T) {
	backend := inmem.New()
	auditor := &recordingAuditor{}
	client := secretstore.New(backend, inmem.NewCache(0), fakeChecker{allow: false}, auditor)

	path := secretstore.Path{Env: "prod", Tenant: "acme", Name: "api-key"}
	err := client.Put(context.Background(), "u1", path, "super-secret")
	require.Error(t, err)
	assert.True(t, err != nil)

	_, describeErr := backend.Describe(context.Background(), path)
	require.NoError(t, describeErr)
	status, _ := backend.Describe(context.Background(), path)
	assert.False(t, status.Configured, "denied put must never reach the backend")
	assert.Contains(t, auditor.actions, "secret.put:denied")
}

func TestPut_AllowedWritesAndCaches(t *testing.T) {
	backend := inmem.New()
	cache := inmem.NewCache(0)
	client := secretstore.New(backend, cache, fakeChecker{allow: true}, &recordingAuditor{})

	path := secretstore.Path{Env: "prod", Tenant: "acme", Name: "api-key"}
	require.NoError(t, client.Put(context.Background(), "u1", path, "super-secret"))

	v, err := client.Get(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "super-secret", v)

	status, err := client.Status(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, status.Configured)
}

func TestStatus_NeverExposesValue(t *testing.T) {
	backend := inmem.New()
	client := secretstore.New(backend, nil, fakeChecker{allow: true}, nil)
	path := secretstore.Path{Env: "prod", Tenant: "acme", Domain: "billing", Name: "db-password"}
	require.NoError(t, client.Put(context.Background(), "u1", path, "hunter2"))

	status, err := client.Status(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, status.Configured)
	assert.NotContains(t, statusFields(status), "hunter2")
}

func statusFields(s secretstore.Status) string {
	return s.LastRotated
}
