package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/create-admin/internal/core/ports"
)

const DefaultCollection = "kv"

// Store is a KVStore keeping one document per key: {_id: <key>, value: <bytes>}.
type Store struct {
	client  *mongo.Client
	coll    *mongo.Collection
	timeout time.Duration
}

type kvDocument struct {
	Key   string `bson:"_id"`
	Value []byte `bson:"value"`
}

// NewStore uses collection of db. Each call is bounded by timeout, or the
// package default when zero. The store owns client and disconnects it on Close.
func NewStore(client *mongo.Client, db *mongo.Database, collection string, timeout time.Duration) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Store{client: client, coll: db.Collection(collection), timeout: timeout}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var doc kvDocument
	if err := s.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ports.ErrKeyNotFound
		}
		return nil, fmt.Errorf("find %s: %w", key, err)
	}
	return doc.Value, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.coll.ReplaceOne(ctx,
		bson.M{"_id": key},
		kvDocument{Key: key, Value: value},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("replace %s: %w", key, err)
	}
	return nil
}

// CompareAndSwap inserts when old is nil, relying on the _id unique index,
// and otherwise updates only the document still holding old.
func (s *Store) CompareAndSwap(ctx context.Context, key string, old, value []byte) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if old == nil {
		_, err := s.coll.InsertOne(ctx, kvDocument{Key: key, Value: value})
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("insert %s: %w", key, err)
		}
		return true, nil
	}

	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": key, "value": old},
		bson.M{"$set": bson.M{"value": value}},
	)
	if err != nil {
		return false, fmt.Errorf("update %s: %w", key, err)
	}
	return res.MatchedCount == 1, nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
