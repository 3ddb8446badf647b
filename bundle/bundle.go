// Package bundle implements the Runtime Bundle Loader (C8): at process
// start, read an Instance Manifest, resolve its graph/worker refs against
// the accompanying content-addressed bundle, verify the bundle's content
// hash, and compile the pipeline graph (§4.8). Grounded on spec §6.4's
// manifest shape; YAML parsing follows the teacher's choice of
// gopkg.in/yaml.v3 for its own DSL/manifest tooling
// (_examples/goadesign-goa-ai/dsl).
package bundle

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/nwalker85/agentfoundry-sub000/apperr"
	"github.com/nwalker85/agentfoundry-sub000/graph"
	"github.com/nwalker85/agentfoundry-sub000/pipeline"
)

// ToolBinding names one manifest-declared tool endpoint (§6.4
// "tools: [{name, endpoint-ref}]").
type ToolBinding struct {
	Name        string `yaml:"name"`
	EndpointRef string `yaml:"endpoint-ref"`
}

// SecretScope names one manifest-declared secret scope (§6.4
// "secrets: [{name, scope}]").
type SecretScope struct {
	Name  string `yaml:"name"`
	Scope string `yaml:"scope"`
}

// Manifest is the human-editable Instance Manifest shape (§6.4).
type Manifest struct {
	APIVersion  string        `yaml:"apiVersion"`
	Kind        string        `yaml:"kind"` // must be "InstanceManifest"
	Tenant      string        `yaml:"tenant"`
	Domain      string        `yaml:"domain"`
	Environment string        `yaml:"environment"`
	Instance    string        `yaml:"instance"`
	Graph       string        `yaml:"graph"`   // content-hash ref into the bundle
	Workers     []string      `yaml:"workers"` // content-hash refs
	Tools       []ToolBinding `yaml:"tools"`
	Secrets     []SecretScope `yaml:"secrets"`
}

// Asset is one content-addressed blob inside a Bundle archive, keyed by the
// hex SHA-256 of its Data.
type Asset struct {
	Hash string
	Data []byte
}

// Bundle is the closure of all graphs, configs, and schemas a manifest
// references, addressed as a whole by its own content hash (§3.6).
type Bundle struct {
	Hash   string
	Assets map[string]Asset // keyed by Asset.Hash
}

// computeAssetHash returns the hex SHA-256 of data.
func computeAssetHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NewBundle builds a Bundle from raw asset blobs, computing each asset's
// hash and the bundle's own aggregate hash (SHA-256 over the sorted
// concatenation of asset hashes).
func NewBundle(blobs [][]byte) Bundle {
	assets := make(map[string]Asset, len(blobs))
	hashes := make([]string, 0, len(blobs))
	for _, data := range blobs {
		h := computeAssetHash(data)
		assets[h] = Asset{Hash: h, Data: data}
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)
	agg := sha256.New()
	for _, h := range hashes {
		agg.Write([]byte(h))
	}
	return Bundle{Hash: hex.EncodeToString(agg.Sum(nil)), Assets: assets}
}

// ParseManifest parses a YAML Instance Manifest document.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, apperr.Wrap(apperr.KindConfiguration, "", "bundle: malformed manifest", err)
	}
	if m.Kind != "InstanceManifest" {
		return Manifest{}, apperr.New(apperr.KindConfiguration, "", fmt.Sprintf("bundle: unexpected manifest kind %q", m.Kind))
	}
	if m.Tenant == "" || m.Environment == "" || m.Instance == "" || m.Graph == "" {
		return Manifest{}, apperr.New(apperr.KindConfiguration, "", "bundle: manifest missing required field (tenant/environment/instance/graph)")
	}
	return m, nil
}

// Resolve looks up a content-hash ref inside the bundle, failing with
// BundleIntegrityError if the ref is absent (§4.8 "Missing or mismatched
// bundle content fails with BundleIntegrityError").
func (b Bundle) Resolve(ref string) (Asset, error) {
	a, ok := b.Assets[ref]
	if !ok {
		return Asset{}, apperr.New(apperr.KindBundleIntegrity, "", fmt.Sprintf("bundle: unresolved ref %q", ref))
	}
	return a, nil
}

// Verify recomputes the bundle's aggregate content hash and confirms it
// matches b.Hash, and that every ref the manifest names resolves within
// the bundle.
func (b Bundle) Verify(m Manifest) error {
	recomputed := NewBundle(assetBlobs(b)).Hash
	if recomputed != b.Hash {
		return apperr.New(apperr.KindBundleIntegrity, "", "bundle: content hash mismatch")
	}
	if _, err := b.Resolve(m.Graph); err != nil {
		return err
	}
	for _, w := range m.Workers {
		if _, err := b.Resolve(w); err != nil {
			return err
		}
	}
	return nil
}

func assetBlobs(b Bundle) [][]byte {
	blobs := make([][]byte, 0, len(b.Assets))
	for _, a := range b.Assets {
		blobs = append(blobs, a.Data)
	}
	return blobs
}

// GraphSpec is the parsed form of a graph asset: the minimal declarative
// shape needed to assemble a pipeline.Handlers/WorkerSpec set. A real
// deployment's graph asset additionally names handler implementations by
// id; resolving those ids to concrete graph.Handler/DecisionFunc values is
// the Resolver's job below, since handler code cannot itself be serialized
// into a content-addressed blob.
type GraphSpec struct {
	Workers []string `yaml:"workers"` // worker ids, matching pipeline.WorkerSpec.ID
}

// Resolver maps manifest-declared handler/worker ids to the Go function
// values that implement them, bound at process boot (§4.8 "bind tool
// clients and secret scopes"; §9 "handlers are function values bound at
// compile").
type Resolver interface {
	ResolveHandlers(m Manifest) (pipeline.Handlers, error)
	ResolveWorkers(m Manifest, workerIDs []string) ([]pipeline.WorkerSpec, error)
	ResolveFields(m Manifest) (map[string]graph.MergePolicy, error)
}

// Load performs the full C8 boot sequence: parse the manifest, verify the
// bundle, resolve the graph asset, bind handlers via resolver, and compile
// the pipeline graph. Any failure here is fatal to process start (§4.8).
// Manifest and bundle failures carry KindBundleIntegrity (§6.1 exit code
// 64); resolver and pipeline-compile failures carry KindConfiguration
// (exit code 65).
func Load(manifestYAML []byte, b Bundle, resolver Resolver) (Manifest, *graph.Compiled, error) {
	m, err := ParseManifest(manifestYAML)
	if err != nil {
		return Manifest{}, nil, apperr.Wrap(apperr.KindBundleIntegrity, "", "bundle: invalid manifest", err)
	}
	if err := b.Verify(m); err != nil {
		return Manifest{}, nil, err
	}

	graphAsset, err := b.Resolve(m.Graph)
	if err != nil {
		return Manifest{}, nil, err
	}
	var spec GraphSpec
	if err := yaml.Unmarshal(graphAsset.Data, &spec); err != nil {
		return Manifest{}, nil, apperr.Wrap(apperr.KindBundleIntegrity, "", "bundle: malformed graph asset", err)
	}

	handlers, err := resolver.ResolveHandlers(m)
	if err != nil {
		return Manifest{}, nil, err
	}
	workers, err := resolver.ResolveWorkers(m, spec.Workers)
	if err != nil {
		return Manifest{}, nil, err
	}
	fields, err := resolver.ResolveFields(m)
	if err != nil {
		return Manifest{}, nil, err
	}

	compiled, err := pipeline.Build(handlers, workers, fields)
	if err != nil {
		return Manifest{}, nil, apperr.Wrap(apperr.KindConfiguration, "", "bundle: pipeline compile failed", err)
	}
	return m, compiled, nil
}
