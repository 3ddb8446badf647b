// Package registry implements the Service Registry (C1): resolution of
// logical service names to network endpoints from environment variables
// read once at process start. Grounded on the teacher's frozen-after-boot
// cache shape (_examples/goadesign-goa-ai/runtime/registry/cache.go), but
// with no TTL/refresh — registry entries are immutable after boot per
// spec §4.1.
package registry

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Endpoint is a resolved network location for a logical service.
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) String() string { return fmt.Sprintf("%s:%d", e.Host, e.Port) }

// Internal ports are fixed per service role and never overridden by
// developer-facing external ports (§4.1: "external ports ... do not appear
// in runtime code paths").
const (
	RoleToolGateway  = "tool-gateway"
	RoleSecretStore  = "secret-store"
	RoleAuthz        = "authz"
	RoleSessionStore = "session-store"
	RoleAuditSink    = "audit-sink"
)

var internalPorts = map[string]int{
	RoleToolGateway:  8081,
	RoleSecretStore:  8082,
	RoleAuthz:        8083,
	RoleSessionStore: 8084,
	RoleAuditSink:    8085,
}

// Registry resolves logical service names to endpoints. Resolution is total:
// an unknown name fails rather than defaulting to localhost (§4.1).
type Registry struct {
	endpoints map[string]Endpoint
}

// ConfigurationError is returned for resolution failures and boot-time
// misconfiguration (§7 ConfigurationError, exit code 65 per §6.1).
type ConfigurationError struct {
	Name string
	Msg  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Name, e.Msg)
}

// Load reads AGENTFOUNDRY_SVC_<NAME>_HOST (and optionally _PORT, which must
// equal the role's fixed internal port if present) for every name in roles,
// and returns an immutable Registry. Load is meant to be called exactly once
// at process start (C8 Runtime Bundle Loader boot sequence).
func Load(roles []string) (*Registry, error) {
	eps := make(map[string]Endpoint, len(roles))
	for _, name := range roles {
		envName := "AGENTFOUNDRY_SVC_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_")) + "_HOST"
		host := os.Getenv(envName)
		if host == "" {
			return nil, &ConfigurationError{Name: name, Msg: fmt.Sprintf("missing required environment variable %s", envName)}
		}
		port, ok := internalPorts[name]
		if !ok {
			return nil, &ConfigurationError{Name: name, Msg: "unknown service role, no fixed internal port registered"}
		}
		portEnvName := "AGENTFOUNDRY_SVC_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_")) + "_PORT"
		if override := os.Getenv(portEnvName); override != "" {
			p, err := strconv.Atoi(override)
			if err != nil {
				return nil, &ConfigurationError{Name: name, Msg: fmt.Sprintf("invalid port override %q: %v", override, err)}
			}
			if p != port {
				return nil, &ConfigurationError{Name: name, Msg: fmt.Sprintf("port override %d does not match the fixed internal port %d", p, port)}
			}
		}
		eps[name] = Endpoint{Host: host, Port: port}
	}
	return &Registry{endpoints: eps}, nil
}

// Resolve returns the endpoint for a logical service name. Unknown names
// fail with ConfigurationError rather than defaulting to localhost.
func (r *Registry) Resolve(name string) (Endpoint, error) {
	ep, ok := r.endpoints[name]
	if !ok {
		return Endpoint{}, &ConfigurationError{Name: name, Msg: "unknown logical service name"}
	}
	return ep, nil
}

// MustResolve is a boot-time convenience that panics on failure. It must
// only be used during C8's bundle-load sequence, never on a request path.
func (r *Registry) MustResolve(name string) Endpoint {
	ep, err := r.Resolve(name)
	if err != nil {
		panic(err)
	}
	return ep
}
