package store

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// ErrNotFound is returned by Load/Get when no snapshot exists at the given
// key/version.
var ErrNotFound = errors.New("store: not found")

// ErrVersionConflict is returned by VersionBackend.Insert when the given
// version number is not strictly greater than the last recorded version
// for its graph_id (§4.7 invariant: version_number strictly increasing).
var ErrVersionConflict = errors.New("store: version conflict")

// DraftTTL is the fixed lifetime of a draft snapshot (§4.7: "per-key TTL
// 24h").
const DraftTTL = 24 * time.Hour

// DraftBackend persists ephemeral, per-conversation state. Writes overwrite
// with no history (§4.7).
type DraftBackend interface {
	Save(ctx context.Context, key string, snapshot []byte, ttl time.Duration) error
	Load(ctx context.Context, key string) ([]byte, error) // ErrNotFound if absent/expired
	List(ctx context.Context, owner string) ([]string, error)
}

// Version is one immutable, content-hashed commit for a graph_id (§4.7).
type Version struct {
	GraphID     string
	Number      int
	ContentHash string
	ParentHash  string // set by Restore; empty for ordinary commits
	Snapshot    []byte
	Message     string
	Actor       string
	CommittedAt time.Time
}

// VersionBackend persists immutable committed versions, keyed by graph_id
// and strictly increasing version number (§4.7 invariants).
type VersionBackend interface {
	// NextVersionNumber returns the version number to use for the next
	// commit on graphID (1 for a graph with no versions yet).
	NextVersionNumber(ctx context.Context, graphID string) (int, error)
	// FindByContentHash returns the existing version for (graphID, hash),
	// if any — used to make commit idempotent on a repeated hash.
	FindByContentHash(ctx context.Context, graphID, hash string) (Version, bool, error)
	Insert(ctx context.Context, v Version) error
	Get(ctx context.Context, graphID string, number int) (Version, error)
	ListVersions(ctx context.Context, graphID string, limit int) ([]Version, error)
}

// Metrics records non-fatal backend degradation (§4.7 "Failure": save
// unavailability is non-fatal but emits a warning metric).
type Metrics interface {
	IncCounter(name string, value float64, tags ...string)
}

// Store is the runtime-facing C7 client combining the Draft and Version
// APIs.
type Store struct {
	drafts   DraftBackend
	versions VersionBackend
	metrics  Metrics
}

// New constructs a Store.
func New(drafts DraftBackend, versions VersionBackend, metrics Metrics) *Store {
	return &Store{drafts: drafts, versions: versions, metrics: metrics}
}

// SaveDraft writes a draft snapshot with the fixed 24h TTL. Backend
// unavailability is non-fatal: the call still returns nil to the caller
// after emitting a warning metric (§4.7).
func (s *Store) SaveDraft(ctx context.Context, key string, snapshot []byte) error {
	if err := s.drafts.Save(ctx, key, snapshot, DraftTTL); err != nil {
		if s.metrics != nil {
			s.metrics.IncCounter("store.draft.save.failed", 1, "key", key)
		}
	}
	return nil
}

// LoadDraft reads a draft snapshot, returning ErrNotFound if absent or
// expired.
func (s *Store) LoadDraft(ctx context.Context, key string) ([]byte, error) {
	return s.drafts.Load(ctx, key)
}

// ListDrafts lists the draft keys owned by owner.
func (s *Store) ListDrafts(ctx context.Context, owner string) ([]string, error) {
	return s.drafts.List(ctx, owner)
}

// Commit writes a new immutable version. It is idempotent on content hash:
// committing a snapshot whose canonical encoding already exists for
// graphID returns the existing version rather than creating a duplicate
// (§4.7 invariant). Backend unavailability is fatal here and returned to
// the caller (§4.7 "Failure").
func (s *Store) Commit(ctx context.Context, graphID string, snapshot any, message, actor string) (Version, error) {
	canon, err := Canonicalize(snapshot)
	if err != nil {
		return Version{}, err
	}
	hash, err := ContentHash(snapshot)
	if err != nil {
		return Version{}, err
	}

	if existing, found, err := s.versions.FindByContentHash(ctx, graphID, hash); err != nil {
		return Version{}, err
	} else if found {
		return existing, nil
	}

	number, err := s.versions.NextVersionNumber(ctx, graphID)
	if err != nil {
		return Version{}, err
	}
	v := Version{
		GraphID:     graphID,
		Number:      number,
		ContentHash: hash,
		Snapshot:    canon,
		Message:     message,
		Actor:       actor,
		CommittedAt: time.Now().UTC(),
	}
	if err := s.versions.Insert(ctx, v); err != nil {
		return Version{}, err
	}
	return v, nil
}

// ListVersions returns up to limit versions for graphID, most recent
// first.
func (s *Store) ListVersions(ctx context.Context, graphID string, limit int) ([]Version, error) {
	return s.versions.ListVersions(ctx, graphID, limit)
}

// Get returns the snapshot for a specific version number.
func (s *Store) Get(ctx context.Context, graphID string, number int) (Version, error) {
	return s.versions.Get(ctx, graphID, number)
}

// Restore creates a new version whose snapshot equals the given historical
// version's snapshot, with ParentHash set to the restored version's
// content hash. It does not delete or otherwise affect later versions
// (§4.7).
func (s *Store) Restore(ctx context.Context, graphID string, number int, actor string) (Version, error) {
	old, err := s.versions.Get(ctx, graphID, number)
	if err != nil {
		return Version{}, err
	}
	var snapshot any
	if err := unmarshalCanonical(old.Snapshot, &snapshot); err != nil {
		return Version{}, err
	}
	hash, err := ContentHash(snapshot)
	if err != nil {
		return Version{}, err
	}
	latest, err := s.versions.ListVersions(ctx, graphID, 1)
	if err != nil {
		return Version{}, err
	}
	if len(latest) > 0 && latest[0].ContentHash == hash {
		return latest[0], nil
	}

	nextNum, err := s.versions.NextVersionNumber(ctx, graphID)
	if err != nil {
		return Version{}, err
	}
	v := Version{
		GraphID:     graphID,
		Number:      nextNum,
		ContentHash: hash,
		ParentHash:  old.ContentHash,
		Snapshot:    old.Snapshot,
		Message:     "restore of version " + strconv.Itoa(number),
		Actor:       actor,
		CommittedAt: time.Now().UTC(),
	}
	if err := s.versions.Insert(ctx, v); err != nil {
		return Version{}, err
	}
	return v, nil
}
