package bundle_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nwalker85/agentfoundry-sub000/apperr"
	"github.com/nwalker85/agentfoundry-sub000/bundle"
	"github.com/nwalker85/agentfoundry-sub000/graph"
	"github.com/nwalker85/agentfoundry-sub000/pipeline"
)

const manifestYAML = `
apiVersion: v1
kind: InstanceManifest
tenant: acme
environment: prod
instance: assistant-1
graph: GRAPHREF
workers: []
tools: []
secrets: []
`

type stubResolver struct{}

func noopHandler(_ *graph.RequestContext, s graph.State) (graph.State, string, error) {
	return graph.State{}, "", nil
}

func noopDecision(_ *graph.RequestContext, s graph.State) ([]string, error) {
	return []string{""}, nil
}

func (stubResolver) ResolveHandlers(bundle.Manifest) (pipeline.Handlers, error) {
	return pipeline.Handlers{
		IOIn:          noopHandler,
		Governance:    noopHandler,
		Context:       noopHandler,
		Supervisor:    noopDecision,
		Coherence:     pipeline.DefaultCoherence(nil),
		Observability: noopHandler,
	}, nil
}

func (stubResolver) ResolveWorkers(bundle.Manifest, []string) ([]pipeline.WorkerSpec, error) {
	return nil, nil
}

func (stubResolver) ResolveFields(bundle.Manifest) (map[string]graph.MergePolicy, error) {
	return nil, nil
}

func buildBundle(t *testing.T) bundle.Bundle {
	t.Helper()
	graphAsset := []byte("workers: []\n")
	return bundle.NewBundle([][]byte{graphAsset})
}

func TestLoad_Succeeds(t *testing.T) {
	b := buildBundle(t)
	var graphRef string
	for h := range b.Assets {
		graphRef = h
	}
	manifest := replaceAll([]byte(manifestYAML), "GRAPHREF", graphRef)

	m, compiled, err := bundle.Load(manifest, b, stubResolver{})
	require.NoError(t, err)
	assert.Equal(t, "acme", m.Tenant)
	assert.NotNil(t, compiled)
}

func TestLoad_FailsOnUnresolvedGraphRef(t *testing.T) {
	b := buildBundle(t)
	manifest := replaceAll([]byte(manifestYAML), "GRAPHREF", "doesnotexist")

	_, _, err := bundle.Load(manifest, b, stubResolver{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindBundleIntegrity, apperr.KindOf(err))
}

func TestLoad_FailsOnTamperedBundleHash(t *testing.T) {
	b := buildBundle(t)
	var graphRef string
	for h := range b.Assets {
		graphRef = h
	}
	b.Hash = "tampered"
	manifest := replaceAll([]byte(manifestYAML), "GRAPHREF", graphRef)

	_, _, err := bundle.Load(manifest, b, stubResolver{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindBundleIntegrity, apperr.KindOf(err))
}

func TestParseManifest_RejectsWrongKind(t *testing.T) {
	_, err := bundle.ParseManifest([]byte("kind: SomethingElse\ntenant: a\nenvironment: e\ninstance: i\ngraph: g\n"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindConfiguration, apperr.KindOf(err))
}

func TestParseManifest_RejectsMissingRequiredField(t *testing.T) {
	_, err := bundle.ParseManifest([]byte("kind: InstanceManifest\ntenant: a\n"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindConfiguration, apperr.KindOf(err))
}

func replaceAll(data []byte, old, new string) []byte {
	return []byte(strings.ReplaceAll(string(data), old, new))
}
