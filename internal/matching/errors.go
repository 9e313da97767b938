package matching

import "errors"

var (
	// ErrSessionNotFound is returned when the session does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRoundNotFound is returned when the round does not exist in the session.
	ErrRoundNotFound = errors.New("round not found")
)
