package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nwalker85/agentfoundry-sub000/store"
	"github.com/nwalker85/agentfoundry-sub000/store/inmem"
)

func newStore() *store.Store {
	return store.New(inmem.NewDraftBackend(), inmem.NewVersionBackend(), nil)
}

func TestCommit_IsIdempotentOnContentHash(t *testing.T) {
	s := newStore()
	ctx := context.Background()
	snapshot := map[string]any{"nodes": []any{"a", "b"}, "edges": 2}

	v1, err := s.Commit(ctx, "g1", snapshot, "first", "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Number)

	v2, err := s.Commit(ctx, "g1", snapshot, "duplicate commit", "bob")
	require.NoError(t, err)
	assert.Equal(t, v1.Number, v2.Number)
	assert.Equal(t, v1.ContentHash, v2.ContentHash)
	assert.Equal(t, "alice", v2.Actor, "commit of existing hash returns the original version, not a new one")
}

func TestCommit_KeyOrderDoesNotAffectContentHash(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	v1, err := s.Commit(ctx, "g2", map[string]any{"a": 1, "b": 2}, "m1", "alice")
	require.NoError(t, err)
	v2, err := s.Commit(ctx, "g2", map[string]any{"b": 2, "a": 1}, "m2", "alice")
	require.NoError(t, err)

	assert.Equal(t, v1.ContentHash, v2.ContentHash)
	assert.Equal(t, v1.Number, v2.Number, "key-order-only difference must not create a new version")
}

func TestCommit_VersionNumbersStrictlyIncrease(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	v1, err := s.Commit(ctx, "g3", map[string]any{"rev": 1}, "m1", "alice")
	require.NoError(t, err)
	v2, err := s.Commit(ctx, "g3", map[string]any{"rev": 2}, "m2", "alice")
	require.NoError(t, err)
	v3, err := s.Commit(ctx, "g3", map[string]any{"rev": 3}, "m3", "alice")
	require.NoError(t, err)

	assert.Equal(t, 1, v1.Number)
	assert.Equal(t, 2, v2.Number)
	assert.Equal(t, 3, v3.Number)
}

func TestRestore_CreatesNewVersionWithParentHashAndKeepsLaterVersions(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	v1, err := s.Commit(ctx, "g4", map[string]any{"rev": 1}, "m1", "alice")
	require.NoError(t, err)
	_, err = s.Commit(ctx, "g4", map[string]any{"rev": 2}, "m2", "alice")
	require.NoError(t, err)

	restored, err := s.Restore(ctx, "g4", v1.Number, "bob")
	require.NoError(t, err)

	assert.Equal(t, 3, restored.Number, "restore appends a new version rather than rewinding")
	assert.Equal(t, v1.ContentHash, restored.ParentHash)
	assert.Equal(t, "bob", restored.Actor)

	versions, err := s.ListVersions(ctx, "g4", 0)
	require.NoError(t, err)
	require.Len(t, versions, 3, "restore must not delete the later version it bypassed")
}

func TestRestore_OfSameContentIsIdempotent(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	v1, err := s.Commit(ctx, "g5", map[string]any{"rev": 1}, "m1", "alice")
	require.NoError(t, err)

	restored, err := s.Restore(ctx, "g5", v1.Number, "bob")
	require.NoError(t, err)
	assert.Equal(t, v1.Number, restored.Number, "restoring the latest version is a no-op commit of identical content")
}

func TestDraft_SaveAndLoadRoundTrip(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	require.NoError(t, s.SaveDraft(ctx, "tenant1:conv1", []byte(`{"step":1}`)))
	got, err := s.LoadDraft(ctx, "tenant1:conv1")
	require.NoError(t, err)
	assert.Equal(t, `{"step":1}`, string(got))
}

func TestDraft_LoadMissingKeyReturnsNotFound(t *testing.T) {
	s := newStore()
	_, err := s.LoadDraft(context.Background(), "tenant1:nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDraft_ListReturnsOnlyKeysOwnedByOwner(t *testing.T) {
	s := newStore()
	ctx := context.Background()
	require.NoError(t, s.SaveDraft(ctx, "tenant1:conv1", []byte(`{}`)))
	require.NoError(t, s.SaveDraft(ctx, "tenant1:conv2", []byte(`{}`)))
	require.NoError(t, s.SaveDraft(ctx, "tenant2:conv3", []byte(`{}`)))

	keys, err := s.ListDrafts(ctx, "tenant1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"tenant1:conv1", "tenant1:conv2"}, keys)
}

func TestDraft_SaveOverwritesWithNoHistory(t *testing.T) {
	s := newStore()
	ctx := context.Background()
	require.NoError(t, s.SaveDraft(ctx, "tenant1:conv1", []byte(`{"step":1}`)))
	require.NoError(t, s.SaveDraft(ctx, "tenant1:conv1", []byte(`{"step":2}`)))

	got, err := s.LoadDraft(ctx, "tenant1:conv1")
	require.NoError(t, err)
	assert.Equal(t, `{"step":2}`, string(got))
}

func TestGet_UnknownVersionReturnsNotFound(t *testing.T) {
	s := newStore()
	ctx := context.Background()
	_, err := s.Commit(ctx, "g6", map[string]any{"rev": 1}, "m1", "alice")
	require.NoError(t, err)

	_, err = s.Get(ctx, "g6", 99)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
