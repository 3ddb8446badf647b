// Package store implements the Session & Draft Store (C7): per-conversation
// ephemeral state (TTL drafts) and committed, immutable, content-hashed
// versions. Grounded on the teacher's clone-on-read session store
// (_examples/goadesign-goa-ai/runtime/agent/session/inmem) for the
// copy-out-don't-share-pointers discipline, and its runlog store
// (_examples/goadesign-goa-ai/runtime/agent/runlog/inmem/inmem.go) for the
// monotonic per-key sequence pattern reused here as version_number.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Canonicalize produces a deterministic JSON encoding of v: object keys
// sorted recursively, so that two semantically identical snapshots always
// serialize byte-for-byte identically (required for content-hash commit
// idempotency, §4.7).
func Canonicalize(v any) ([]byte, error) {
	normalized, err := normalize(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(normalized)
}

// ContentHash returns the hex-encoded SHA-256 of v's canonical encoding.
func ContentHash(v any) (string, error) {
	canon, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}

// unmarshalCanonical decodes a canonical JSON encoding (as produced by
// Canonicalize) back into a generic value, for re-hashing or re-emitting a
// stored snapshot (used by Restore).
func unmarshalCanonical(canon []byte, out any) error {
	return json.Unmarshal(canon, out)
}

func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	return sortKeys(generic), nil
}

// sortKeys recursively rebuilds maps as sortedMap, whose MarshalJSON walks
// keys in sorted order, so json.Marshal's otherwise-unspecified map key
// order cannot introduce nondeterminism.
func sortKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(sortedMap, 0, len(t))
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, sortedEntry{key: k, value: sortKeys(t[k])})
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = sortKeys(e)
		}
		return out
	default:
		return t
	}
}

type sortedEntry struct {
	key   string
	value any
}

type sortedMap []sortedEntry

func (m sortedMap) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, e := range m {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyJSON, err := json.Marshal(e.key)
		if err != nil {
			return nil, err
		}
		buf = append(buf, keyJSON...)
		buf = append(buf, ':')
		valJSON, err := json.Marshal(e.value)
		if err != nil {
			return nil, err
		}
		buf = append(buf, valJSON...)
	}
	buf = append(buf, '}')
	return buf, nil
}
