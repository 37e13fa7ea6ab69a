package connection

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionNotFound indicates a team or portfolio names an unknown connection.
	ErrConnectionNotFound = errors.New("connection not found")

	// ErrConnectionRequired indicates an operation was called without a connection.
	ErrConnectionRequired = errors.New("connection required")

	// ErrUnknownFieldDefinition indicates a reference to an additional field
	// definition id the connection does not declare.
	ErrUnknownFieldDefinition = errors.New("unknown additional field definition")

	// ErrSecretNotResolved indicates a secret option whose value could not be resolved.
	ErrSecretNotResolved = errors.New("secret not resolved")
)

// ValidationError describes an invalid configuration value.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
