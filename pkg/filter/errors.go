package filter

import "errors"

var (
	// ErrNoFilterStrings is returned when a matcher is built with an empty allow-list.
	ErrNoFilterStrings = errors.New("no filter strings given")
	ErrNoMatchers      = errors.New("no matchers given")
)
