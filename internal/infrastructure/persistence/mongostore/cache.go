package mongostore

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"auditcache/internal/errs"
	"auditcache/internal/ports"
)

// Cache keeps keys in their own collection. A TTL index lets the server drop
// expired keys on its own; reads still filter on expires_at because the TTL
// monitor only runs about once a minute.
type Cache struct {
	coll *mongo.Collection
	now  func() time.Time
}

var _ ports.Cache = (*Cache)(nil)

func NewCache(db *mongo.Database) *Cache {
	return &Cache{coll: db.Collection(CacheCollection), now: time.Now}
}

func (c *Cache) EnsureIndexes(ctx context.Context) error {
	_, err := c.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return errs.Wrap(classify(err), "create cache ttl index")
	}
	return nil
}

func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, errors.New("key is required")
	}

	filter := bson.M{
		"_id": key,
		"$or": bson.A{
			bson.M{"expires_at": bson.M{"$exists": false}},
			bson.M{"expires_at": bson.M{"$gt": c.now().UTC()}},
		},
	}
	var doc cacheDocument
	if err := c.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", false, nil
		}
		return "", false, errs.Wrap(classify(err), "query cache by key")
	}
	return doc.Value, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("key is required")
	}

	now := c.now().UTC()
	doc := cacheDocument{Key: key, Value: value, UpdatedAt: now}
	if ttl > 0 {
		expiresAt := now.Add(ttl)
		doc.ExpiresAt = &expiresAt
	}

	_, err := c.coll.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return errs.Wrap(classify(err), "upsert cache key")
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("key is required")
	}
	if _, err := c.coll.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return errs.Wrap(classify(err), "delete cache key")
	}
	return nil
}

func (c *Cache) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := c.coll.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": now.UTC()}})
	if err != nil {
		return 0, errs.Wrap(classify(err), "purge expired cache keys")
	}
	return res.DeletedCount, nil
}
