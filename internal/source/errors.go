package source

import (
	"database/sql"
	"database/sql/driver"
	"errors"

	"github.com/lib/pq"

	"github.com/syntrixbase/searchsync/internal/model"
	"github.com/syntrixbase/searchsync/internal/resilience"
)

// IsRecoverable reports whether a source error is worth retrying: lost or
// refused connections, server shutdown, resource exhaustion, and
// serialization conflicts.
func IsRecoverable(err error) bool {
	if err == nil || errors.Is(err, model.ErrContract) {
		return false
	}
	if isConnectionError(err) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "53": // insufficient_resources
			return true
		}
		switch pqErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return true
		}
	}
	return false
}

func isConnectionError(err error) bool {
	if errors.Is(err, model.ErrContract) {
		return false
	}
	if errors.Is(err, ErrNotConnected) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code.Class() == "08" { // connection_exception
			return true
		}
		switch pqErr.Code {
		case "57P01", "57P02", "57P03": // admin_shutdown, crash_shutdown, cannot_connect_now
			return true
		}
		return false
	}
	return resilience.IsTransient(err)
}
