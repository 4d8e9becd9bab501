package repo

import "errors"

var (
	// ErrInvalidInput is returned for an empty name or a non-positive amount.
	ErrInvalidInput = errors.New("invalid input")
	// ErrItemNotFound is returned when no reagent matches the requested name.
	ErrItemNotFound = errors.New("reagent not found")
	// ErrInsufficientStock is returned when a withdrawal exceeds the stored quantity.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrStorageCorrupt is returned when persisted records cannot be parsed.
	ErrStorageCorrupt = errors.New("storage corrupt")
	// ErrStorageUnavailable is returned when the backing storage cannot be read or written.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
