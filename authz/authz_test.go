package authz_test

import (
	"context"
	"testing"

	"github.com/nwalker85/agentfoundry-sub000/apperr"
	"github.com/nwalker85/agentfoundry-sub000/authz"
	"github.com/nwalker85/agentfoundry-sub000/authz/inmem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck_DirectOwnerCanUpdate(t *testing.T) {
	backend := inmem.New()
	secret := authz.Object{Type: authz.ObjectSecret, ID: "prod/acme/api-key"}
	backend.Grant("u1", authz.RelationOwner, secret)

	client := authz.New(backend, nil)
	allowed, err := client.Check(context.Background(), "u1", authz.RelationCanUpdate, secret)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestCheck_UnrelatedActorDenied(t *testing.T) {
	backend := inmem.New()
	secret := authz.Object{Type: authz.ObjectSecret, ID: "prod/acme/api-key"}
	backend.Grant("u1", authz.RelationOwner, secret)

	client := authz.New(backend, nil)
	allowed, err := client.Check(context.Background(), "stranger", authz.RelationCanUpdate, secret)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestCheck_OrgAdminInheritsDownHierarchy(t *testing.T) {
	backend := inmem.New()
	org := authz.Object{Type: authz.ObjectOrganization, ID: "acme"}
	domain := authz.Object{Type: authz.ObjectDomain, ID: "billing"}
	secret := authz.Object{Type: authz.ObjectSecret, ID: "prod/acme/billing/db-password"}

	backend.Nest(domain, org)
	backend.Nest(secret, domain)
	backend.Grant("u1", authz.RelationAdmin, org)

	client := authz.New(backend, nil)

	allowed, err := client.Check(context.Background(), "u1", authz.RelationCanUpdate, secret)
	require.NoError(t, err)
	assert.True(t, allowed, "org admin must inherit can_update on nested secrets")

	allowed, err = client.Check(context.Background(), "u1", authz.RelationCanRead, domain)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestCheck_ViewerDoesNotInheritToChildren(t *testing.T) {
	backend := inmem.New()
	org := authz.Object{Type: authz.ObjectOrganization, ID: "acme"}
	domain := authz.Object{Type: authz.ObjectDomain, ID: "billing"}
	backend.Nest(domain, org)
	backend.Grant("u1", authz.RelationViewer, org)

	client := authz.New(backend, nil)
	allowed, err := client.Check(context.Background(), "u1", authz.RelationCanUpdate, domain)
	require.NoError(t, err)
	assert.False(t, allowed, "viewer relation must not propagate management rights down the hierarchy")
}

func TestRequire_DeniedReturnsUnauthorized(t *testing.T) {
	backend := inmem.New()
	agent := authz.Object{Type: authz.ObjectAgent, ID: "support-bot"}
	client := authz.New(backend, nil)

	err := client.Require(context.Background(), "u1", authz.RelationCanExecute, agent)
	require.Error(t, err)
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}

func TestCheck_UsesCacheOnSecondCall(t *testing.T) {
	backend := inmem.New()
	agent := authz.Object{Type: authz.ObjectAgent, ID: "support-bot"}
	backend.Grant("u1", authz.RelationExecutor, agent)
	cache := inmem.NewCache(0)
	client := authz.New(backend, cache)

	allowed, err := client.Check(context.Background(), "u1", authz.RelationCanExecute, agent)
	require.NoError(t, err)
	assert.True(t, allowed)

	cached, ok := cache.Get("u1", authz.RelationCanExecute, agent)
	require.True(t, ok)
	assert.True(t, cached)
}

func TestListObjects_ReturnsOnlyMatchingDirectGrants(t *testing.T) {
	backend := inmem.New()
	a1 := authz.Object{Type: authz.ObjectAgent, ID: "a1"}
	a2 := authz.Object{Type: authz.ObjectAgent, ID: "a2"}
	backend.Grant("u1", authz.RelationOwner, a1)
	backend.Grant("u1", authz.RelationOwner, a2)
	backend.Grant("u2", authz.RelationOwner, a1)

	client := authz.New(backend, nil)
	objs, err := client.ListObjects(context.Background(), "u1", authz.RelationOwner, authz.ObjectAgent)
	require.NoError(t, err)
	assert.ElementsMatch(t, []authz.Object{a1, a2}, objs)
}
