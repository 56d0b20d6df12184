package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoStore implements Store using MongoDB, one document per key.
type MongoStore struct {
	uri        string
	database   string
	collection string

	mu     sync.RWMutex
	client *mongo.Client
	coll   *mongo.Collection
	owned  bool
	health
}

// checkpointDoc is the MongoDB document structure for checkpoints.
type checkpointDoc struct {
	ID        string    `bson:"_id"`
	Value     string    `bson:"value"` // JSON state text, as stored by every backend
	UpdatedAt time.Time `bson:"updated_at"`
}

// NewMongoStore creates a store that connects to uri on Reconnect.
func NewMongoStore(uri, database, collection string) *MongoStore {
	return &MongoStore{uri: uri, database: database, collection: collection}
}

// NewMongoStoreForDatabase creates a store over an already connected database.
// Close leaves the client open.
func NewMongoStoreForDatabase(db *mongo.Database, collection string) *MongoStore {
	return &MongoStore{
		database:   db.Name(),
		collection: collection,
		client:     db.Client(),
		coll:       db.Collection(collection),
	}
}

// Healthy implements resilience.Connection.
func (s *MongoStore) Healthy(_ context.Context) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.coll != nil && !s.broken.Load()
}

// Reconnect implements resilience.Connection.
func (s *MongoStore) Reconnect(ctx context.Context) error {
	if s.uri == "" {
		s.broken.Store(false)
		return nil
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(s.uri))
	if err != nil {
		return fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return fmt.Errorf("ping mongodb: %w", err)
	}

	s.mu.Lock()
	old, oldOwned := s.client, s.owned
	s.client = client
	s.coll = client.Database(s.database).Collection(s.collection)
	s.owned = true
	s.broken.Store(false)
	s.mu.Unlock()

	if old != nil && oldOwned {
		_ = old.Disconnect(context.Background())
	}
	return nil
}

func (s *MongoStore) conn() (*mongo.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.coll == nil {
		return nil, ErrNotConnected
	}
	return s.coll, nil
}

func (s *MongoStore) Exists(ctx context.Context, key string) (bool, error) {
	coll, err := s.conn()
	if err != nil {
		return false, err
	}
	n, err := coll.CountDocuments(ctx, bson.M{"_id": key}, options.Count().SetLimit(1))
	if err != nil {
		return false, s.observe(fmt.Errorf("failed to check checkpoint %s: %w", key, err))
	}
	return n > 0, nil
}

func (s *MongoStore) Get(ctx context.Context, key string) (*State, error) {
	coll, err := s.conn()
	if err != nil {
		return nil, err
	}

	var doc checkpointDoc
	err = coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, s.observe(fmt.Errorf("failed to load checkpoint %s: %w", key, err))
	}

	state, err := ParseState([]byte(doc.Value))
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint %s: %w", key, err)
	}
	return &state, nil
}

func (s *MongoStore) Set(ctx context.Context, key string, st State) error {
	coll, err := s.conn()
	if err != nil {
		return err
	}

	data, err := st.Marshal()
	if err != nil {
		return err
	}
	doc := checkpointDoc{
		ID:        key,
		Value:     string(data),
		UpdatedAt: time.Now().UTC(),
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := coll.ReplaceOne(ctx, bson.M{"_id": key}, doc, opts); err != nil {
		return s.observe(fmt.Errorf("failed to save checkpoint %s: %w", key, err))
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	client, owned := s.client, s.owned
	s.client, s.coll, s.owned = nil, nil, false
	if client == nil || !owned {
		return nil
	}
	return client.Disconnect(ctx)
}
