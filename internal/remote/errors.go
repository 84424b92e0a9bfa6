package remote

import "errors"

var (
	// ErrUnavailable is returned when the server cannot be reached or
	// answers with a server error.
	ErrUnavailable = errors.New("remote: server unavailable")

	// ErrUnauthorized is returned when the server rejects the credentials.
	ErrUnauthorized = errors.New("remote: unauthorized")

	// ErrBadRequest is returned when the server rejects a request as
	// invalid, e.g. for a narrow it does not understand.
	ErrBadRequest = errors.New("remote: bad request")
)
