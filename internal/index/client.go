// Package index writes film work documents to Elasticsearch.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/syntrixbase/searchsync/internal/config"
	"github.com/syntrixbase/searchsync/internal/resilience"
)

// Client owns one Elasticsearch client.
type Client struct {
	cfg elasticsearch.Config

	mu     sync.RWMutex
	es     *elasticsearch.Client
	broken atomic.Bool
}

// NewClient creates a client for cfg. Nothing is dialled until Reconnect.
// Retries are left to the guard, so the transport's own retry is disabled.
func NewClient(cfg config.ElasticsearchConfig) *Client {
	return &Client{cfg: elasticsearch.Config{
		Addresses:    cfg.Addresses,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DisableRetry: true,
	}}
}

// Healthy implements resilience.Connection.
func (c *Client) Healthy(_ context.Context) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.es != nil && !c.broken.Load()
}

// Reconnect implements resilience.Connection.
func (c *Client) Reconnect(ctx context.Context) error {
	es, err := elasticsearch.NewClient(c.cfg)
	if err != nil {
		return fmt.Errorf("create elasticsearch client: %w", err)
	}

	res, err := es.Ping(es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	if err := checkResponse("ping", res); err != nil {
		return err
	}

	c.mu.Lock()
	c.es = es
	c.broken.Store(false)
	c.mu.Unlock()
	return nil
}

func (c *Client) conn() (*elasticsearch.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.es == nil {
		return nil, ErrNotConnected
	}
	return c.es, nil
}

// observe marks the client broken after a transport failure.
func (c *Client) observe(err error) error {
	if err == nil {
		return nil
	}
	if _, isStatus := err.(*StatusError); !isStatus && resilience.IsTransient(err) {
		c.broken.Store(true)
	}
	return err
}

type errorBody struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// checkResponse closes res and converts an error status into a StatusError.
func checkResponse(op string, res *esapi.Response) error {
	defer res.Body.Close()
	if !res.IsError() {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	return statusError(op, res)
}

func statusError(op string, res *esapi.Response) *StatusError {
	data, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))

	reason := http.StatusText(res.StatusCode)
	var body errorBody
	if json.Unmarshal(data, &body) == nil && body.Error.Type != "" {
		reason = body.Error.Type + ": " + body.Error.Reason
	}
	return &StatusError{Op: op, Status: res.StatusCode, Reason: reason}
}
