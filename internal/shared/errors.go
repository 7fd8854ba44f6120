package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidPeriod indicates a period selector that could not be parsed.
	ErrInvalidPeriod = errors.New("invalid period selector")
)
