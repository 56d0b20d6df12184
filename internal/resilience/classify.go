package resilience

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
)

// transientMessages are substrings of transport failures that carry no typed error.
var transientMessages = []string{
	"connection reset",
	"connection refused",
	"broken pipe",
	"unexpected eof",
	"i/o timeout",
	"timed out",
	"no such host",
	"network is unreachable",
	"temporary failure",
}

// IsTransient reports whether err looks like a recoverable transport failure.
// A cancelled context is never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	if errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, net.ErrClosed) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	if msg == "eof" || strings.HasSuffix(msg, ": eof") {
		return true
	}
	for _, m := range transientMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// Any combines classifiers; an error is recoverable if any of them says so.
func Any(classifiers ...Classifier) Classifier {
	return func(err error) bool {
		for _, c := range classifiers {
			if c != nil && c(err) {
				return true
			}
		}
		return false
	}
}
