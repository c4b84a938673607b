package api

import (
	"errors"
	"fmt"
	"net/http"

	"radhttpd/internal/node"
	"radhttpd/internal/store"
)

// Kind is the stable, machine-readable tag of an API error.
type Kind string

const (
	KindInvalidIdentifier   Kind = "invalid-identifier"
	KindNotFound            Kind = "not-found"
	KindStoreUnavailable    Kind = "store-unavailable"
	KindUpstreamUnavailable Kind = "upstream-unavailable"
	KindInternal            Kind = "internal"

	// Routing failures outside the handlers.
	KindRouteNotFound    Kind = "route-not-found"
	KindMethodNotAllowed Kind = "method-not-allowed"
	KindRateLimited      Kind = "rate-limited"

	// The client went away before the response was written.
	KindCanceled Kind = "canceled"
)

// Error is the body of every failed response. The cause is kept for logs and
// never serialized.
type Error struct {
	Message string `json:"error"`
	Kind    Kind   `json:"kind"`
	Code    int    `json:"code"`

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// ServerError reports whether the error is the server's fault.
func (e *Error) ServerError() bool {
	return e.Code >= http.StatusInternalServerError
}

func invalidIdentifier(what, value string, err error) *Error {
	return &Error{
		Message: fmt.Sprintf("invalid %s %q", what, value),
		Kind:    KindInvalidIdentifier,
		Code:    http.StatusBadRequest,
		cause:   err,
	}
}

// StatusClientClosedRequest is sent when the client cancels the request.
const StatusClientClosedRequest = 499

// canceled reports a request whose context ended while it was served. The
// store or node error it caused is kept as the cause.
func canceled(ctxErr, err error) *Error {
	return &Error{
		Message: "request canceled",
		Kind:    KindCanceled,
		Code:    StatusClientClosedRequest,
		cause:   fmt.Errorf("%w: %w", ctxErr, err),
	}
}

// translate classifies any error returned while serving a request. It is the
// only place where adapter errors become HTTP statuses.
func translate(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case store.IsNotFound(err):
		return &Error{Message: "not found", Kind: KindNotFound, Code: http.StatusNotFound, cause: err}
	case store.IsUnavailable(err):
		return &Error{Message: "local storage is unavailable", Kind: KindStoreUnavailable, Code: http.StatusServiceUnavailable, cause: err}
	case errors.Is(err, node.ErrUnreachable):
		return &Error{Message: "node is unreachable", Kind: KindUpstreamUnavailable, Code: http.StatusBadGateway, cause: err}
	default:
		return &Error{Message: "internal error", Kind: KindInternal, Code: http.StatusInternalServerError, cause: err}
	}
}
