package search

import (
	"fmt"
)

// Kind classifies a failed search.
type Kind string

const (
	// KindInvalidRequest marks params without a usable query; nothing was sent.
	KindInvalidRequest Kind = "invalid_request"
	// KindRequestTimeout marks a request cancelled by the gateway timeout.
	KindRequestTimeout Kind = "request_timeout"
	// KindNetworkError marks a request that never reached a server.
	KindNetworkError Kind = "network_error"
	// KindServiceNotFound marks an HTTP 404 from the webhook.
	KindServiceNotFound Kind = "service_not_found"
	// KindServerError marks an HTTP status of 500 or above.
	KindServerError Kind = "server_error"
	// KindUnexpectedResponse marks any other non-success status or an unreadable body.
	KindUnexpectedResponse Kind = "unexpected_response"
	// KindRateLimited marks a successful response whose message reports a limit.
	KindRateLimited Kind = "rate_limited"
)

// Sentinels for errors.Is; each matches any *Error of the same Kind.
var (
	ErrInvalidRequest     = &Error{Kind: KindInvalidRequest}
	ErrRequestTimeout     = &Error{Kind: KindRequestTimeout}
	ErrNetworkError       = &Error{Kind: KindNetworkError}
	ErrServiceNotFound    = &Error{Kind: KindServiceNotFound}
	ErrServerError        = &Error{Kind: KindServerError}
	ErrUnexpectedResponse = &Error{Kind: KindUnexpectedResponse}
	ErrRateLimited        = &Error{Kind: KindRateLimited}
)

// Error is the typed failure returned by Client.Search.
type Error struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	label := kindLabel(e.Kind)
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("search: %s (status %d): %v", label, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("search: %s (status %d)", label, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("search: %s: %v", label, e.Err)
	default:
		return "search: " + label
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any search error of the same kind, so the exported sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return other.Kind == e.Kind
}

func newError(kind Kind, statusCode int, cause error) *Error {
	return &Error{Kind: kind, StatusCode: statusCode, Err: cause}
}

func kindLabel(kind Kind) string {
	switch kind {
	case KindInvalidRequest:
		return "query is required"
	case KindRequestTimeout:
		return "request timeout"
	case KindNetworkError:
		return "network error"
	case KindServiceNotFound:
		return "service not found"
	case KindServerError:
		return "server error"
	case KindUnexpectedResponse:
		return "unexpected response"
	case KindRateLimited:
		return "rate limit reached"
	default:
		return string(kind)
	}
}
