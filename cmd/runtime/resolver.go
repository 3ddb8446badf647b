package main

import (
	"encoding/json"

	"github.com/nwalker85/agentfoundry-sub000/apperr"
	"github.com/nwalker85/agentfoundry-sub000/authz"
	"github.com/nwalker85/agentfoundry-sub000/bundle"
	"github.com/nwalker85/agentfoundry-sub000/graph"
	"github.com/nwalker85/agentfoundry-sub000/pipeline"
	"github.com/nwalker85/agentfoundry-sub000/secretstore"
	"github.com/nwalker85/agentfoundry-sub000/toolclient"
)

// manifestResolver binds a manifest's declared tool bindings and worker ids
// to live C2/C3/C4 clients, implementing bundle.Resolver (§4.8 "bind tool
// clients and secret scopes to the manifest's declarations"). Every
// fixed-stage handler it produces is generic: the manifest only names
// *which* tools and secret scopes a worker may reach, not bespoke Go code,
// since handler code cannot itself live in a content-addressed bundle
// asset (§9 "handlers are function values bound at compile").
type manifestResolver struct {
	tools   *toolclient.Client
	authz   *authz.Client
	secrets *secretstore.Client
}

func newManifestResolver(tools *toolclient.Client, az *authz.Client, secrets *secretstore.Client) *manifestResolver {
	return &manifestResolver{tools: tools, authz: az, secrets: secrets}
}

// ResolveHandlers binds the six fixed-stage handlers (§4.6).
func (r *manifestResolver) ResolveHandlers(m bundle.Manifest) (pipeline.Handlers, error) {
	return pipeline.Handlers{
		IOIn:          r.ioIn(),
		Governance:    r.governance(m),
		Context:       r.context(m),
		Supervisor:    r.supervisor(m),
		Coherence:     pipeline.DefaultCoherence(nil),
		Observability: r.observability(),
	}, nil
}

// ResolveWorkers binds each manifest-declared worker id to a handler that
// invokes the tool endpoint the manifest names for it (§6.4 "tools:
// [{name, endpoint-ref}]"); a worker id with no matching tool binding is a
// configuration error, since a worker with nothing to call can never
// produce a result.
func (r *manifestResolver) ResolveWorkers(m bundle.Manifest, workerIDs []string) ([]pipeline.WorkerSpec, error) {
	bindingByName := make(map[string]bundle.ToolBinding, len(m.Tools))
	for _, tb := range m.Tools {
		bindingByName[tb.Name] = tb
	}

	specs := make([]pipeline.WorkerSpec, 0, len(workerIDs))
	for _, id := range workerIDs {
		binding, ok := bindingByName[id]
		if !ok {
			return nil, apperr.New(apperr.KindConfiguration, "", "bundle: worker "+id+" has no matching tool binding in manifest")
		}
		specs = append(specs, pipeline.WorkerSpec{ID: id, Handler: r.worker(id, binding)})
	}
	return specs, nil
}

// ResolveFields declares no manifest-specific state fields beyond the
// standard set (§3.2); a richer manifest format could extend this from a
// declared schema.
func (r *manifestResolver) ResolveFields(bundle.Manifest) (map[string]graph.MergePolicy, error) {
	return nil, nil
}

// ioIn passes the adapter-seeded "messages"/"input_json" fields through
// unchanged; normalization, if any, happens at the channel boundary.
func (r *manifestResolver) ioIn() graph.Handler {
	return func(_ *graph.RequestContext, _ graph.State) (graph.State, string, error) {
		return graph.State{}, "", nil
	}
}

// governance enforces the executor-before-action invariant (§8.1): every
// request must hold can_execute on the manifest's agent object before any
// worker runs, short-circuiting straight to io_out on denial (§4.6).
func (r *manifestResolver) governance(m bundle.Manifest) graph.Handler {
	agent := authz.Object{Type: authz.ObjectAgent, ID: m.Instance}
	return func(rc *graph.RequestContext, _ graph.State) (graph.State, string, error) {
		if r.authz == nil {
			return pipeline.GovernanceAllowed()
		}
		allowed, err := r.authz.Check(rc.Ctx, rc.Actor, authz.RelationCanExecute, agent)
		if err != nil {
			return nil, "", err
		}
		if !allowed {
			return pipeline.GovernanceDenied("")
		}
		return pipeline.GovernanceAllowed()
	}
}

// context resolves the manifest's declared secret scopes to their
// configuration status (never values — §4.2 blind-write invariant) so
// downstream workers can see which scopes are ready without ever touching
// a secret value themselves.
func (r *manifestResolver) context(m bundle.Manifest) graph.Handler {
	return func(rc *graph.RequestContext, _ graph.State) (graph.State, string, error) {
		statuses := make(map[string]any, len(m.Secrets))
		if r.secrets != nil {
			for _, scope := range m.Secrets {
				path := secretstore.Path{Env: scope.Scope, Tenant: rc.Tenant, Name: scope.Name}
				st, err := r.secrets.Status(rc.Ctx, path)
				if err != nil {
					statuses[scope.Name] = map[string]any{"configured": false}
					continue
				}
				statuses[scope.Name] = map[string]any{"configured": st.Configured, "last_rotated": st.LastRotated}
			}
		}
		return graph.State{"context": map[string]any{"secret_scopes": statuses}}, "", nil
	}
}

// supervisor activates every manifest-declared worker for every request; a
// richer supervisor would route based on state["context"]/"messages", but
// routing policy itself is out of this exercise's scope (§9).
func (r *manifestResolver) supervisor(m bundle.Manifest) graph.DecisionFunc {
	ids := make([]string, len(m.Tools))
	for i, tb := range m.Tools {
		ids[i] = tb.Name
	}
	return func(_ *graph.RequestContext, _ graph.State) ([]string, error) {
		if len(ids) == 0 {
			return []string{""}, nil
		}
		return ids, nil
	}
}

// observability returns no state updates and records or emits nothing
// itself; the per-node trace is the TraceEvent the executor already appends
// for every node (§4.5).
func (r *manifestResolver) observability() graph.Handler {
	return func(_ *graph.RequestContext, _ graph.State) (graph.State, string, error) {
		return graph.State{}, "", nil
	}
}

// worker builds a graph.Handler that invokes the C4 tool endpoint binding
// names, passing the conversation so far as arguments and recording the
// result under worker_responses[id] in the shape pipeline.DefaultCoherence
// expects (§4.6, pipeline.WorkerResult).
func (r *manifestResolver) worker(id string, binding bundle.ToolBinding) graph.Handler {
	return func(rc *graph.RequestContext, state graph.State) (graph.State, string, error) {
		args := map[string]any{"messages": state["messages"]}
		key, err := toolclient.DeriveIdempotencyKey(binding.EndpointRef, args, rc.RequestID+":"+id)
		if err != nil {
			return nil, "", err
		}
		deadline := rc.Deadline
		resp, err := r.tools.Call(rc.Ctx, toolclient.Request{
			ToolName:       binding.EndpointRef,
			Arguments:      args,
			IdempotencyKey: key,
			Deadline:       deadline,
			RequestID:      rc.RequestID,
			Tenant:         rc.Tenant,
		})
		result := map[string]any{}
		if err != nil {
			result["error"] = err.Error()
		} else {
			var value any
			_ = json.Unmarshal(resp.Value, &value)
			result["value"] = value
		}
		return graph.State{"worker_responses": map[string]any{id: result}}, "", nil
	}
}
