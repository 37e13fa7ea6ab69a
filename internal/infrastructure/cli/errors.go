package cli

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/worksync/pkg/domain/connection"
	"github.com/felixgeelhaar/worksync/pkg/storage"
)

// ExitPartialFailure is the exit code when some write-back updates failed.
const ExitPartialFailure = 2

// errPartialWriteBack reports a write-back run in which some updates failed.
var errPartialWriteBack = errors.New("some updates failed")

// CLIError wraps domain errors with user-facing messages and actionable hints.
type CLIError struct {
	Message  string
	Hint     string
	Err      error
	ExitCode int
}

func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a CLIError with a default exit code of 1.
func NewCLIError(msg, hint string, err error) *CLIError {
	return &CLIError{
		Message:  msg,
		Hint:     hint,
		Err:      err,
		ExitCode: 1,
	}
}

// MapError converts known domain errors into CLIErrors with actionable hints.
// Unmapped errors are returned as-is.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return err
	}

	var schemaErr *storage.SchemaError
	if errors.As(err, &schemaErr) {
		return NewCLIError("workspace file is invalid", "Fix the listed fields in .worksync/workspace.yaml", err)
	}

	var validationErr *connection.ValidationError
	if errors.As(err, &validationErr) {
		return NewCLIError("workspace configuration is invalid",
			fmt.Sprintf("Check the '%s' setting in .worksync/workspace.yaml", validationErr.Field), err)
	}

	switch {
	case errors.Is(err, errPartialWriteBack):
		e := NewCLIError("write-back incomplete", "Rerun with --log-level info to see each failure", err)
		e.ExitCode = ExitPartialFailure
		return e
	case errors.Is(err, storage.ErrNotInitialized):
		return NewCLIError("no workspace found", "Run 'worksync init' to create .worksync/workspace.yaml", err)
	case errors.Is(err, connection.ErrConnectionNotFound):
		return NewCLIError("connection not found", "Run 'worksync connection list' to see configured connections", err)
	case errors.Is(err, connection.ErrTeamNotFound):
		return NewCLIError("team not found", "Run 'worksync team list' to see configured teams", err)
	case errors.Is(err, connection.ErrPortfolioNotFound):
		return NewCLIError("portfolio not found", "Run 'worksync portfolio list' to see configured portfolios", err)
	case errors.Is(err, connection.ErrSecretNotResolved):
		return NewCLIError("secret option could not be resolved", "Export the environment variable named by the env: value", err)
	}

	return err
}
