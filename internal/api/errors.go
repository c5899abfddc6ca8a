package api

import (
	"errors"
	"fmt"
)

// AuthError indicates that the server rejected the request credentials.
// It is returned when a 401 response is received.
type AuthError struct {
	Path    string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Path, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// ServerError carries the message of an {"error": "..."} response body.
type ServerError struct {
	Path    string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error on %s: %s", e.Path, e.Message)
}

// IsServerError reports whether err (or any error in its chain) is a ServerError.
func IsServerError(err error) bool {
	var srvErr *ServerError
	return errors.As(err, &srvErr)
}

// ErrorResponse is the body the server sends when an endpoint fails.
type ErrorResponse struct {
	Error string `json:"error"`
}
