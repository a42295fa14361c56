package cdbsapi

import (
	"fmt"
	"net/http"

	"cdbs/internal/services"
)

// ErrUnauthorized is matched by errors for expired or missing tokens.
var ErrUnauthorized = services.ErrUnauthorized

const unauthorizedMessage = "Unauthorized"

// Error reports a failed GraphQL call. StatusCode is zero when the transport
// succeeded and the backend answered with a GraphQL error.
type Error struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("cdbs %s: http %d: %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("cdbs %s: %s", e.Operation, e.Message)
}

func (e *Error) Unwrap() error {
	switch {
	case e.Message == unauthorizedMessage:
		return services.ErrUnauthorized
	case e.StatusCode == 0:
		return services.ErrValidation
	default:
		return (&services.HTTPStatusError{StatusCode: e.StatusCode}).Unwrap()
	}
}

// Unauthorized reports whether the backend rejected the token.
func (e *Error) Unauthorized() bool {
	return e.Message == unauthorizedMessage || e.StatusCode == http.StatusUnauthorized
}
