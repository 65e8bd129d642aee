package auth

import "fmt"

// Error represents an authentication/authorization failure with the HTTP
// status it should surface as.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

var (
	ErrNoSession      = &Error{"NO_SESSION", "User not authenticated - no session cookie found", 401}
	ErrInvalidSession = &Error{"INVALID_SESSION", "User not authenticated", 401}
	ErrBadServiceKey  = &Error{"BAD_SERVICE_KEY", "Invalid service credentials", 401}
)
