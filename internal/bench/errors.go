package bench

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
)

// ErrConfig wraps every configuration validation failure. Surfaced
// before any worker starts; no partial run is attempted.
var ErrConfig = errors.New("invalid benchmark configuration")

// Error categories recorded per failed operation. They become the keys
// of the report's error counts.
const (
	CategoryTimeout     = "timeout"
	CategoryConnRefused = "connection_refused"
	CategoryStoreError  = "store_rejected"
)

// Categorize maps an operation error onto its report bucket. Anything
// that is neither a deadline nor a refused connection counts as the
// store rejecting the operation.
func Categorize(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CategoryTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return CategoryTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) || strings.Contains(err.Error(), "connection refused") {
		return CategoryConnRefused
	}
	return CategoryStoreError
}
