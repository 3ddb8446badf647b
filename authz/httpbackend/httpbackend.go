// Package httpbackend implements authz.Backend as an HTTP client against
// the collaborator relationship-tuple service (§6.2), resolved via the
// Service Registry (C1). Grounded on the teacher's CLI HTTP client wiring
// (_examples/goadesign-goa-ai/example/cmd/assistant-cli/jsonrpc.go),
// adapted from a goa-generated endpoint caller to a small hand-written
// client since this repo has no DSL/codegen layer.
package httpbackend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	goahttp "goa.design/goa/v3/http"

	"github.com/nwalker85/agentfoundry-sub000/authz"
)

// Backend is an HTTP authz.Backend.
type Backend struct {
	doer    goahttp.Doer
	baseURL string
}

// New constructs a Backend that talks to baseURL (typically resolved from
// registry.Endpoint for registry.RoleAuthz). debug wraps the doer with
// goahttp's request/response logging.
func New(baseURL string, doer goahttp.Doer, debug bool) *Backend {
	if doer == nil {
		doer = &http.Client{}
	}
	if debug {
		doer = goahttp.NewDebugDoer(doer)
	}
	return &Backend{doer: doer, baseURL: baseURL}
}

type checkResponse struct {
	Allowed bool `json:"allowed"`
}

// Check calls GET {baseURL}/check?actor=...&relation=...&type=...&id=....
func (b *Backend) Check(ctx context.Context, actor string, relation authz.Relation, object authz.Object) (bool, error) {
	q := url.Values{
		"actor":    {actor},
		"relation": {string(relation)},
		"type":     {string(object.Type)},
		"id":       {object.ID},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/check?"+q.Encode(), nil)
	if err != nil {
		return false, err
	}
	resp, err := b.doer.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("authz/httpbackend: unexpected status %d", resp.StatusCode)
	}
	var out checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, err
	}
	return out.Allowed, nil
}

type listObjectsResponse struct {
	Objects []struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"objects"`
}

// ListObjects calls GET {baseURL}/list_objects?actor=...&relation=...&type=....
func (b *Backend) ListObjects(ctx context.Context, actor string, relation authz.Relation, objType authz.ObjectType) ([]authz.Object, error) {
	q := url.Values{
		"actor":    {actor},
		"relation": {string(relation)},
		"type":     {string(objType)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/list_objects?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.doer.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("authz/httpbackend: unexpected status %d", resp.StatusCode)
	}
	var out listObjectsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	objs := make([]authz.Object, 0, len(out.Objects))
	for _, o := range out.Objects {
		objs = append(objs, authz.Object{Type: authz.ObjectType(o.Type), ID: o.ID})
	}
	return objs, nil
}
