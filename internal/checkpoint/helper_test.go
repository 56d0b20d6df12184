package checkpoint

import (
	"context"
	"sync"
)

// flakyStore fails the first n calls with err, then delegates to a MemoryStore.
type flakyStore struct {
	*MemoryStore

	mu    sync.Mutex
	fails int
	err   error
	calls int
}

func newFlakyStore(fails int, err error) *flakyStore {
	return &flakyStore{MemoryStore: NewMemoryStore(), fails: fails, err: err}
}

func (f *flakyStore) fail() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fails > 0 {
		f.fails--
		return f.err
	}
	return nil
}

func (f *flakyStore) Get(ctx context.Context, key string) (*State, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.MemoryStore.Get(ctx, key)
}

func (f *flakyStore) Set(ctx context.Context, key string, s State) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.MemoryStore.Set(ctx, key, s)
}

func (f *flakyStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := f.fail(); err != nil {
		return false, err
	}
	return f.MemoryStore.Exists(ctx, key)
}

type fakeConn struct {
	mu         sync.Mutex
	healthy    bool
	reconnects int
}

func (c *fakeConn) Healthy(context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.healthy
}

func (c *fakeConn) Reconnect(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reconnects++
	c.healthy = true
	return nil
}
