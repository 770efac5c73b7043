package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/taxdesk/filing-client/internal/core/domain"
)

const kvCollection = "client_kv"

type kvDoc struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Mongo stores keys as documents of one collection.
type Mongo struct {
	col *mongo.Collection
}

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{col: db.Collection(kvCollection)}
}

func (m *Mongo) Get(ctx context.Context, key string) (string, error) {
	var d kvDoc
	if err := m.col.FindOne(ctx, bson.M{"_id": key}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", domain.ErrKeyNotFound
		}
		return "", fmt.Errorf("mongo kv get %s: %w", key, err)
	}
	return d.Value, nil
}

func (m *Mongo) Set(ctx context.Context, key, value string) error {
	_, err := m.col.ReplaceOne(ctx,
		bson.M{"_id": key},
		kvDoc{Key: key, Value: value, UpdatedAt: time.Now().UTC()},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("mongo kv set %s: %w", key, err)
	}
	return nil
}

func (m *Mongo) Delete(ctx context.Context, key string) error {
	if _, err := m.col.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("mongo kv delete %s: %w", key, err)
	}
	return nil
}

func (m *Mongo) DeletePrefix(ctx context.Context, prefix string) error {
	filter := bson.M{"_id": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}}
	if _, err := m.col.DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("mongo kv delete prefix %s: %w", prefix, err)
	}
	return nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.col.Database().Client().Ping(ctx, nil)
}
