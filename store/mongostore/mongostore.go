// Package mongostore is the production Draft backend (C7), backed by
// MongoDB. Drafts are ephemeral, high-churn, per-conversation documents —
// a good fit for Mongo's TTL-indexed collections rather than a relational
// schema, mirroring the teacher's choice of a document store for its own
// session state (_examples/goadesign-goa-ai/runtime/agent/session).
package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/nwalker85/agentfoundry-sub000/store"
)

type draftDoc struct {
	Key      string    `bson:"_id"`
	Owner    string    `bson:"owner"`
	Snapshot []byte    `bson:"snapshot"`
	ExpireAt time.Time `bson:"expire_at"`
}

// DraftBackend implements store.DraftBackend over a Mongo collection. The
// collection is expected to carry a TTL index on expire_at (EnsureIndexes
// creates it) so expired drafts are reaped by Mongo itself in addition to
// being filtered out of reads here.
type DraftBackend struct {
	coll *mongo.Collection
}

// NewDraftBackend wraps an existing collection handle.
func NewDraftBackend(coll *mongo.Collection) *DraftBackend {
	return &DraftBackend{coll: coll}
}

// EnsureIndexes creates the TTL index on expire_at and a secondary index on
// owner for List. Safe to call repeatedly (CreateMany is idempotent on an
// equivalent existing index).
func (b *DraftBackend) EnsureIndexes(ctx context.Context) error {
	_, err := b.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expire_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
		{
			Keys: bson.D{{Key: "owner", Value: 1}},
		},
	})
	return err
}

func ownerOf(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i]
		}
	}
	return key
}

// Save upserts the draft document for key with a fresh expire_at.
func (b *DraftBackend) Save(ctx context.Context, key string, snapshot []byte, ttl time.Duration) error {
	doc := draftDoc{Key: key, Owner: ownerOf(key), Snapshot: snapshot, ExpireAt: time.Now().Add(ttl)}
	_, err := b.coll.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	return err
}

// Load returns the draft for key, or store.ErrNotFound if absent or past
// its expire_at (covers the window between Mongo's own TTL sweep cycles,
// which run roughly every 60s and are not instantaneous).
func (b *DraftBackend) Load(ctx context.Context, key string) ([]byte, error) {
	var doc draftDoc
	err := b.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if time.Now().After(doc.ExpireAt) {
		return nil, store.ErrNotFound
	}
	return doc.Snapshot, nil
}

// List returns the non-expired draft keys owned by owner.
func (b *DraftBackend) List(ctx context.Context, owner string) ([]string, error) {
	cur, err := b.coll.Find(ctx, bson.M{"owner": owner, "expire_at": bson.M{"$gt": time.Now()}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var keys []string
	for cur.Next(ctx) {
		var doc draftDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		keys = append(keys, doc.Key)
	}
	return keys, cur.Err()
}
