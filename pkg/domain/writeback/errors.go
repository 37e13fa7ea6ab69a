package writeback

import "errors"

var (
	// ErrInvalidDate indicates a value that matches none of the accepted date formats.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidNumber indicates a non-numeric value for a numeric field.
	ErrInvalidNumber = errors.New("invalid number")

	// ErrUnknownValueSource indicates a mapping with an unsupported value source.
	ErrUnknownValueSource = errors.New("unknown value source")

	// ErrInvalidMapping indicates a mapping that cannot be applied.
	ErrInvalidMapping = errors.New("invalid write-back mapping")
)
