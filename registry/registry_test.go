package registry_test

import (
	"testing"

	"github.com/nwalker85/agentfoundry-sub000/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ResolvesFromEnv(t *testing.T) {
	t.Setenv("AGENTFOUNDRY_SVC_TOOL_GATEWAY_HOST", "tools.internal")

	reg, err := registry.Load([]string{registry.RoleToolGateway})
	require.NoError(t, err)

	ep, err := reg.Resolve(registry.RoleToolGateway)
	require.NoError(t, err)
	assert.Equal(t, "tools.internal", ep.Host)
	assert.Equal(t, 8081, ep.Port)
}

func TestLoad_MissingHostFails(t *testing.T) {
	_, err := registry.Load([]string{registry.RoleAuthz})
	require.Error(t, err)
	var cfgErr *registry.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestResolve_UnknownNameFails(t *testing.T) {
	t.Setenv("AGENTFOUNDRY_SVC_AUTHZ_HOST", "authz.internal")
	reg, err := registry.Load([]string{registry.RoleAuthz})
	require.NoError(t, err)

	_, err = reg.Resolve("does-not-exist")
	require.Error(t, err)
}

func TestLoad_PortOverrideMustParse(t *testing.T) {
	t.Setenv("AGENTFOUNDRY_SVC_AUDIT_SINK_HOST", "audit.internal")
	t.Setenv("AGENTFOUNDRY_SVC_AUDIT_SINK_PORT", "not-a-number")

	_, err := registry.Load([]string{registry.RoleAuditSink})
	require.Error(t, err)
}
