package index

import (
	"errors"
	"fmt"
	"strings"

	"github.com/syntrixbase/searchsync/internal/resilience"
)

// ErrNotConnected is returned when no client has been built yet.
var ErrNotConnected = errors.New("elasticsearch not connected")

// StatusError is a whole-request or per-item failure carrying an HTTP status.
type StatusError struct {
	Op     string
	Status int
	Reason string

	// Item is set when the status came from a bulk item rather than the response.
	Item bool
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("elasticsearch %s: status %d: %s", e.Op, e.Status, e.Reason)
}

// Retryable reports whether the status is expected to clear on its own.
// Any 5xx and version conflicts are retryable for bulk items; for whole
// responses only gateway and availability errors are.
func (e *StatusError) Retryable() bool {
	switch e.Status {
	case 429, 502, 503, 504:
		return true
	}
	if !e.Item {
		return false
	}
	return e.Status == 409 || e.Status >= 500
}

// ItemFailure is one document rejected by a bulk request.
type ItemFailure struct {
	ID     string
	Status int
	Type   string
	Reason string
}

// BulkError reports documents the index refused for reasons retrying cannot fix,
// such as a mapping conflict.
type BulkError struct {
	Index    string
	Failures []ItemFailure
}

func (e *BulkError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "bulk into %s: %d document(s) rejected", e.Index, len(e.Failures))
	for i, f := range e.Failures {
		if i == 3 {
			fmt.Fprintf(&b, "; ...")
			break
		}
		fmt.Fprintf(&b, "; %s: %d %s: %s", f.ID, f.Status, f.Type, f.Reason)
	}
	return b.String()
}

// IsRecoverable reports whether an index error is worth retrying.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	var bulkErr *BulkError
	if errors.As(err, &bulkErr) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return errors.Is(err, ErrNotConnected) || resilience.IsTransient(err)
}
