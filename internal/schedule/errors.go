package schedule

import "errors"

var (
	// ErrMalformedCommand is returned when a payload is not valid JSON.
	ErrMalformedCommand = errors.New("malformed schedule command")

	// ErrUnexpectedCommand is returned for JSON that is neither an array nor an object.
	ErrUnexpectedCommand = errors.New("unexpected schedule command")

	// ErrInvalidDuration is returned for durations that are not non-negative integers.
	ErrInvalidDuration = errors.New("invalid station duration")
)
