package services

import (
	"fmt"
	"net/http"
	"strings"
)

// HTTPStatusError reports a non-2xx response from the backend or a storage
// destination. It unwraps to the marker matching the status class.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return "unauthorized request"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not found"
	case http.StatusUnprocessableEntity:
		if body := strings.TrimSpace(e.Body); body != "" {
			return fmt.Sprintf("unprocessable entity: %s", body)
		}
		return "unprocessable entity"
	case http.StatusInternalServerError:
		return "internal server error"
	default:
		return fmt.Sprintf("request failed: http %d", e.StatusCode)
	}
}

func (e *HTTPStatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode == http.StatusUnprocessableEntity, e.StatusCode == http.StatusBadRequest:
		return ErrValidation
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusGatewayTimeout:
		return ErrTimeout
	default:
		return ErrTransient
	}
}

// IsSuccessStatus reports whether code is in the 2xx range.
func IsSuccessStatus(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}
