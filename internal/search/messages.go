package search

import "errors"

const (
	MessageRateLimited     = "Search limit reached. Please try again tomorrow."
	MessageRequestTimeout  = "Internet is too slow. The request timed out. Please try again."
	MessageNetworkError    = "Connection failed. Please check your internet connection."
	MessageServiceNotFound = "Search service is offline. Please check the search workflow status."
	MessageServerError     = "The search service encountered an error. Please try again later."
	MessageInvalidRequest  = "Please enter a name to search for."
	MessageUnexpectedError = "An unexpected error occurred. Please try again."
)

// UserMessage returns the fixed human-readable message for err.
func UserMessage(err error) string {
	var searchErr *Error
	if !errors.As(err, &searchErr) {
		return MessageUnexpectedError
	}
	switch searchErr.Kind {
	case KindRateLimited:
		return MessageRateLimited
	case KindRequestTimeout:
		return MessageRequestTimeout
	case KindNetworkError:
		return MessageNetworkError
	case KindServiceNotFound:
		return MessageServiceNotFound
	case KindServerError:
		return MessageServerError
	case KindInvalidRequest:
		return MessageInvalidRequest
	default:
		return MessageUnexpectedError
	}
}
