// Package httpbackend implements secretstore.Backend as an HTTP client
// against the collaborator secret-store service (§6.2: "Exposes describe,
// get_value, put_value, delete"), resolved via the Service Registry (C1).
// Grounded on the teacher's CLI HTTP client wiring
// (_examples/goadesign-goa-ai/example/cmd/assistant-cli/jsonrpc.go),
// adapted from a goa-generated endpoint caller to a small hand-written
// client since this repo has no DSL/codegen layer.
package httpbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	goahttp "goa.design/goa/v3/http"

	"github.com/nwalker85/agentfoundry-sub000/secretstore"
)

// Backend is an HTTP secretstore.Backend.
type Backend struct {
	doer    goahttp.Doer
	baseURL string
}

// New constructs a Backend that talks to baseURL (typically resolved from
// registry.Endpoint for registry.RoleSecretStore). debug wraps the doer
// with goahttp's request/response logging.
func New(baseURL string, doer goahttp.Doer, debug bool) *Backend {
	if doer == nil {
		doer = &http.Client{}
	}
	if debug {
		doer = goahttp.NewDebugDoer(doer)
	}
	return &Backend{doer: doer, baseURL: baseURL}
}

type getValueResponse struct {
	Value string `json:"value"`
}

// GetValue calls GET {baseURL}/secrets/{path}.
func (b *Backend) GetValue(ctx context.Context, path secretstore.Path) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/secrets/"+path.String(), nil)
	if err != nil {
		return "", err
	}
	resp, err := b.doer.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "", secretstore.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("secretstore/httpbackend: unexpected status %d", resp.StatusCode)
	}
	var out getValueResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Value, nil
}

type putValueRequest struct {
	Value string `json:"value"`
}

// PutValue calls PUT {baseURL}/secrets/{path}.
func (b *Backend) PutValue(ctx context.Context, path secretstore.Path, value string) error {
	body, err := json.Marshal(putValueRequest{Value: value})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, b.baseURL+"/secrets/"+path.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := b.doer.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("secretstore/httpbackend: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Describe calls GET {baseURL}/secrets/{path}/status — the only
// operation this backend's sibling UI-facing surface may call (§4.2).
func (b *Backend) Describe(ctx context.Context, path secretstore.Path) (secretstore.Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/secrets/"+path.String()+"/status", nil)
	if err != nil {
		return secretstore.Status{}, err
	}
	resp, err := b.doer.Do(req)
	if err != nil {
		return secretstore.Status{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return secretstore.Status{}, fmt.Errorf("secretstore/httpbackend: unexpected status %d", resp.StatusCode)
	}
	var out secretstore.Status
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return secretstore.Status{}, err
	}
	return out, nil
}
