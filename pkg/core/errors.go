package core

import (
	"context"
	"errors"
	"fmt"
	"net"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
)

// ErrNotConnected is returned when a remote call is attempted before a
// connection to the service model store has been established.
var ErrNotConnected = errors.New("service model store is not connected")

// ConfigurationError reports configuration that leaves the mirror without a sane default.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Reason)
}

// ConnectionError reports a failure to resolve or probe the remote store.
type ConnectionError struct {
	Stage string
	Err   error
}

func (e *ConnectionError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }

func (e *ConnectionError) Unwrap() error { return e.Err }

// ErrorCategory describes the class of an error encountered while mirroring.
type ErrorCategory string

const (
	// ErrorCategoryNone indicates no error.
	ErrorCategoryNone ErrorCategory = ""
	// ErrorCategoryNotFound indicates the remote object does not exist.
	ErrorCategoryNotFound ErrorCategory = "notfound"
	// ErrorCategoryConflict indicates a stale resourceVersion on write.
	ErrorCategoryConflict ErrorCategory = "conflict"
	// ErrorCategoryRBAC indicates insufficient permissions.
	ErrorCategoryRBAC ErrorCategory = "rbac"
	// ErrorCategoryUnavailable indicates the remote store cannot be reached or
	// no longer accepts our credentials.
	ErrorCategoryUnavailable ErrorCategory = "unavailable"
	// ErrorCategoryTransient indicates a retryable failure.
	ErrorCategoryTransient ErrorCategory = "transient"
	// ErrorCategoryPermanent indicates a non-retryable failure.
	ErrorCategoryPermanent ErrorCategory = "permanent"
)

// ClassifyError inspects an error and returns the appropriate category.
func ClassifyError(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryNone
	}
	if errors.Is(err, ErrNotConnected) {
		return ErrorCategoryUnavailable
	}
	// Walk the error chain to find a concrete classification.
	for current := err; current != nil; current = errors.Unwrap(current) {
		switch {
		case apierrors.IsNotFound(current):
			return ErrorCategoryNotFound
		case apierrors.IsConflict(current):
			return ErrorCategoryConflict
		case apierrors.IsForbidden(current):
			return ErrorCategoryRBAC
		case apierrors.IsUnauthorized(current), apierrors.IsServiceUnavailable(current):
			return ErrorCategoryUnavailable
		case apierrors.IsTooManyRequests(current), apierrors.IsTimeout(current), apierrors.IsServerTimeout(current), apierrors.IsInternalError(current):
			return ErrorCategoryTransient
		}
		if errors.Is(current, context.DeadlineExceeded) || errors.Is(current, context.Canceled) {
			return ErrorCategoryTransient
		}
		var opErr *net.OpError
		if errors.As(current, &opErr) && opErr.Op == "dial" {
			return ErrorCategoryUnavailable
		}
		if ne, ok := current.(net.Error); ok && ne.Timeout() {
			return ErrorCategoryTransient
		}
	}
	return ErrorCategoryPermanent
}

// IsRetryable reports whether an error is worth retrying within the same attempt.
func IsRetryable(err error) bool {
	return ClassifyError(err) == ErrorCategoryTransient
}
