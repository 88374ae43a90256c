// Package delivery turns purchase notifications into Telegram messages and
// decides which delivery failures are worth retrying.
package delivery

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
)

// Category is the transient failure class of a delivery error.
type Category string

const (
	CategoryTimeout           Category = "timeout"
	CategoryConnectionRefused Category = "connection_refused"
	CategoryDNS               Category = "dns"
	CategoryIO                Category = "io"
)

// ErrPurchaseGone is returned when the purchase behind a notification no
// longer exists. It is never retried.
var ErrPurchaseGone = errors.New("purchase not found")

// TransportError marks an error as a transient transport failure of the
// given category, for failures the standard error types cannot express
// (e.g. HTTP 429 or 5xx answers from the Bot API).
type TransportError struct {
	Category Category
	Err      error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return string(e.Category)
	}
	return string(e.Category) + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// Classify maps err onto the closed set of transient categories. ok is false
// for anything unknown, which callers must treat as permanent.
func Classify(err error) (Category, bool) {
	if err == nil {
		return "", false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Category, true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout, true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return CategoryTimeout, true
		}
		return CategoryDNS, true
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return CategoryConnectionRefused, true
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return CategoryTimeout, true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) {
		return CategoryIO, true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return CategoryIO, true
	}

	return "", false
}

// IsRetryable reports whether err belongs to a transient category.
func IsRetryable(err error) bool {
	_, ok := Classify(err)
	return ok
}
