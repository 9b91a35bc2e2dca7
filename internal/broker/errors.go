package broker

import "errors"

var (
	// ErrMalformedMessage is returned when a payload cannot be decoded.
	ErrMalformedMessage = errors.New("broker: malformed message")

	// ErrClosed is returned by operations on a closed manager.
	ErrClosed = errors.New("broker: manager closed")
)
