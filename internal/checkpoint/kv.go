package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// natsConnect and jetStreamNew are variables to allow mocking in tests.
var (
	natsConnect = func(url string) (*nats.Conn, error) {
		return nats.Connect(url, nats.Name("searchsync"), nats.MaxReconnects(-1))
	}
	jetStreamNew = func(nc *nats.Conn) (jetstream.JetStream, error) {
		return jetstream.New(nc)
	}
)

// KVStore keeps states in a NATS JetStream key-value bucket.
type KVStore struct {
	url    string
	bucket string

	mu sync.RWMutex
	nc *nats.Conn
	kv jetstream.KeyValue
	health
}

// NewKVStore creates a store for bucket on the server at url.
// The bucket is created on first connect if missing.
func NewKVStore(url, bucket string) *KVStore {
	return &KVStore{url: url, bucket: bucket}
}

// NewKVStoreForBucket creates a store over an open bucket.
func NewKVStoreForBucket(kv jetstream.KeyValue) *KVStore {
	return &KVStore{bucket: kv.Bucket(), kv: kv}
}

// Healthy implements resilience.Connection.
func (s *KVStore) Healthy(_ context.Context) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.kv == nil || s.broken.Load() {
		return false
	}
	return s.nc == nil || s.nc.IsConnected()
}

// Reconnect implements resilience.Connection.
func (s *KVStore) Reconnect(ctx context.Context) error {
	if s.url == "" {
		s.broken.Store(false)
		return nil
	}

	nc, err := natsConnect(s.url)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	js, err := jetStreamNew(nc)
	if err != nil {
		nc.Close()
		return fmt.Errorf("create jetstream: %w", err)
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      s.bucket,
		Description: "searchsync watermarks",
		History:     1,
	})
	if err != nil {
		nc.Close()
		return fmt.Errorf("open bucket %s: %w", s.bucket, err)
	}

	s.mu.Lock()
	old := s.nc
	s.nc, s.kv = nc, kv
	s.broken.Store(false)
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}

func (s *KVStore) conn() (jetstream.KeyValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.kv == nil {
		return nil, ErrNotConnected
	}
	return s.kv, nil
}

func (s *KVStore) Exists(ctx context.Context, key string) (bool, error) {
	st, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return st != nil, nil
}

func (s *KVStore) Get(ctx context.Context, key string) (*State, error) {
	kv, err := s.conn()
	if err != nil {
		return nil, err
	}
	entry, err := kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.observe(fmt.Errorf("kv get %s: %w", key, err))
	}
	state, err := ParseState(entry.Value())
	if err != nil {
		return nil, fmt.Errorf("kv get %s: %w", key, err)
	}
	return &state, nil
}

func (s *KVStore) Set(ctx context.Context, key string, st State) error {
	kv, err := s.conn()
	if err != nil {
		return err
	}
	data, err := st.Marshal()
	if err != nil {
		return err
	}
	if _, err := kv.Put(ctx, key, data); err != nil {
		return s.observe(fmt.Errorf("kv put %s: %w", key, err))
	}
	return nil
}

func (s *KVStore) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nc != nil {
		s.nc.Close()
	}
	s.nc, s.kv = nil, nil
	return nil
}
