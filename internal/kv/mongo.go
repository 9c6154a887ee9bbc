package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(20)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

type entry struct {
	ID        string    `bson:"_id"`
	Namespace string    `bson:"namespace"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoStore keeps one document per key in the "storefront_kv" collection.
type MongoStore struct {
	collection *mongo.Collection
	namespace  string
}

func NewMongoStore(db *mongo.Database, namespace string) *MongoStore {
	return &MongoStore{
		collection: db.Collection("storefront_kv"),
		namespace:  namespace,
	}
}

func (m *MongoStore) Get(ctx context.Context, key string) (string, error) {
	var e entry
	err := m.collection.FindOne(ctx, bson.M{"_id": m.docID(key)}).Decode(&e)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get entry: %w", err)
	}
	return e.Value, nil
}

func (m *MongoStore) Set(ctx context.Context, key, value string) error {
	return m.SetMany(ctx, map[string]string{key: value})
}

// SetMany issues an ordered bulk upsert. Documents are written one by one, so
// a failure can leave a prefix applied.
func (m *MongoStore) SetMany(ctx context.Context, entries map[string]string) error {
	if len(entries) == 0 {
		return nil
	}
	now := time.Now()
	models := make([]mongo.WriteModel, 0, len(entries))
	for k, v := range entries {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": m.docID(k)}).
			SetReplacement(entry{ID: m.docID(k), Namespace: m.namespace, Value: v, UpdatedAt: now}).
			SetUpsert(true))
	}

	_, err := m.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	if err != nil {
		return fmt.Errorf("failed to upsert entries: %w", err)
	}
	return nil
}

func (m *MongoStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, m.docID(k))
	}
	if _, err := m.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		return fmt.Errorf("failed to delete entries: %w", err)
	}
	return nil
}

func (m *MongoStore) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "namespace", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (m *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.collection.Database().Client().Disconnect(ctx)
}

func (m *MongoStore) docID(key string) string {
	return m.namespace + ":" + key
}
