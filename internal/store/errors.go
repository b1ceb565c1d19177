package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	// ErrUnavailable marks transport failures: unreachable backend, timeouts,
	// dropped connections. Callers may retry.
	ErrUnavailable = errors.New("store unavailable")
	// ErrRejected marks the backend refusing the request: constraint or
	// validation failures. Retrying the same request will not help.
	ErrRejected = errors.New("store rejected request")

	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

// Classify wraps err with ErrUnavailable or ErrRejected. Errors that already
// carry one of them are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrRejected) {
		return err
	}
	if IsTransient(err) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return fmt.Errorf("%w: %w", ErrRejected, err)
}

// IsTransient reports whether err looks like a connectivity problem.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"connection refused",
		"connection reset",
		"connection closed",
		"broken pipe",
		"no such host",
		"i/o timeout",
		"unexpected eof",
		"use of closed network connection",
		"database is locked",
		"server closed",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
