package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/syntrixbase/searchsync/internal/model"
	"github.com/syntrixbase/searchsync/internal/resilience"
)

// Action is one upsert of a bulk request.
type Action struct {
	ID  string
	Doc any
}

// retryOnConflict lets the server reapply an update that raced another
// instance's write to the same document.
const retryOnConflict = 3

type bulkMeta struct {
	Update struct {
		Index           string `json:"_index"`
		ID              string `json:"_id"`
		RetryOnConflict int    `json:"retry_on_conflict,omitempty"`
	} `json:"update"`
}

type bulkDoc struct {
	Doc         any  `json:"doc"`
	DocAsUpsert bool `json:"doc_as_upsert"`
}

// EncodeBulk writes actions as NDJSON update + doc_as_upsert pairs.
func EncodeBulk(index string, actions []Action) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, a := range actions {
		var meta bulkMeta
		meta.Update.Index = index
		meta.Update.ID = a.ID
		meta.Update.RetryOnConflict = retryOnConflict
		if err := enc.Encode(meta); err != nil {
			return nil, fmt.Errorf("encode bulk meta %s: %w", a.ID, err)
		}
		if err := enc.Encode(bulkDoc{Doc: a.Doc, DocAsUpsert: true}); err != nil {
			return nil, fmt.Errorf("encode bulk doc %s: %w", a.ID, err)
		}
	}
	return buf.Bytes(), nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// Index is the destination index, every call guarded.
type Index struct {
	client *Client
	guard  *resilience.Guard
	name   string
}

// NewIndex creates an Index named name.
func NewIndex(client *Client, name string, guard *resilience.Guard) *Index {
	return &Index{client: client, guard: guard, name: name}
}

// Name returns the index name.
func (i *Index) Name() string { return i.name }

// Exists reports whether the index exists.
func (i *Index) Exists(ctx context.Context) (bool, error) {
	return resilience.Call(ctx, i.guard, "elasticsearch.exists", func(ctx context.Context) (bool, error) {
		es, err := i.client.conn()
		if err != nil {
			return false, err
		}
		res, err := es.Indices.Exists([]string{i.name}, es.Indices.Exists.WithContext(ctx))
		if err != nil {
			return false, i.client.observe(err)
		}
		if res.StatusCode == http.StatusNotFound {
			res.Body.Close()
			return false, nil
		}
		if err := checkResponse("exists", res); err != nil {
			return false, err
		}
		return true, nil
	})
}

// Create creates the index with schema. An index created concurrently by
// someone else counts as success.
func (i *Index) Create(ctx context.Context, schema []byte) error {
	return i.guard.Do(ctx, "elasticsearch.create", func(ctx context.Context) error {
		es, err := i.client.conn()
		if err != nil {
			return err
		}
		res, err := es.Indices.Create(i.name,
			es.Indices.Create.WithBody(bytes.NewReader(schema)),
			es.Indices.Create.WithContext(ctx),
		)
		if err != nil {
			return i.client.observe(err)
		}
		err = checkResponse("create", res)
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Status == http.StatusBadRequest &&
			strings.HasPrefix(statusErr.Reason, "resource_already_exists_exception") {
			return nil
		}
		return err
	})
}

// Ensure creates the index with schema unless it exists.
func (i *Index) Ensure(ctx context.Context, schema []byte) (bool, error) {
	exists, err := i.Exists(ctx)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := i.Create(ctx, schema); err != nil {
		return false, err
	}
	return true, nil
}

// Bulk upserts actions in one request. The request is idempotent, so a
// retryable item failure retries the whole request.
func (i *Index) Bulk(ctx context.Context, actions []Action) error {
	if len(actions) == 0 {
		return nil
	}
	body, err := EncodeBulk(i.name, actions)
	if err != nil {
		return err
	}

	return i.guard.Do(ctx, "elasticsearch.bulk", func(ctx context.Context) error {
		es, err := i.client.conn()
		if err != nil {
			return err
		}
		res, err := es.Bulk(bytes.NewReader(body),
			es.Bulk.WithIndex(i.name),
			es.Bulk.WithContext(ctx),
		)
		if err != nil {
			return i.client.observe(err)
		}
		defer res.Body.Close()
		if res.IsError() {
			return statusError("bulk", res)
		}

		var parsed bulkResponse
		if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
			return fmt.Errorf("decode bulk response: %w", err)
		}
		if !parsed.Errors {
			return nil
		}
		return itemsError(i.name, parsed)
	})
}

// Upsert writes docs keyed by film work id.
func (i *Index) Upsert(ctx context.Context, docs []model.Filmwork) error {
	actions := make([]Action, len(docs))
	for n, d := range docs {
		actions[n] = Action{ID: d.ID, Doc: d}
	}
	return i.Bulk(ctx, actions)
}

// itemsError returns a BulkError when any item failed permanently, otherwise a
// retryable StatusError for the first failed item.
func itemsError(index string, parsed bulkResponse) error {
	var (
		fatal     []ItemFailure
		retryable *StatusError
	)
	for _, item := range parsed.Items {
		for _, result := range item {
			if result.Error == nil && result.Status < 300 {
				continue
			}
			f := ItemFailure{ID: result.ID, Status: result.Status}
			if result.Error != nil {
				f.Type, f.Reason = result.Error.Type, result.Error.Reason
			}
			se := &StatusError{Op: "bulk item " + f.ID, Status: f.Status, Reason: f.Type + ": " + f.Reason, Item: true}
			if se.Retryable() {
				if retryable == nil {
					retryable = se
				}
				continue
			}
			fatal = append(fatal, f)
		}
	}
	if len(fatal) > 0 {
		return &BulkError{Index: index, Failures: fatal}
	}
	if retryable != nil {
		return retryable
	}
	return nil
}
