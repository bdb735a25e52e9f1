package platform

import (
	"errors"
	"fmt"
)

// GenericErrorText is shown when no server message is available.
const GenericErrorText = "Sorry, it seems something wrong has happened. Please try again in a few minutes."

// APIError is a failure the server answered with a non-2xx status.
type APIError struct {
	StatusCode int
	StatCode   string
	StatMsg    string
}

func (e *APIError) Error() string {
	if e.StatMsg != "" {
		return fmt.Sprintf("platform: status %d: %s", e.StatusCode, e.StatMsg)
	}
	return fmt.Sprintf("platform: status %d", e.StatusCode)
}

// UserMessage picks toast text for err: the server's stat_msg when the server
// answered, the error text when it answered without one, and a generic
// apology for transport failures.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatMsg != "" {
			return apiErr.StatMsg
		}
		return apiErr.Error()
	}
	return GenericErrorText
}
