package archive

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/quorumworks/council/pkg/council"
)

// GetRecord retrieves a single session record by ID and writes it as
// pretty-printed JSON to the writer. Returns an error if the session ID is
// not a valid UUID or the record does not exist.
func GetRecord(ctx context.Context, client *council.Client, sessionID string, w io.Writer) error {
	if _, err := uuid.Parse(sessionID); err != nil {
		return fmt.Errorf("invalid session ID format: must be a valid UUID")
	}

	record, err := client.GetRecord(ctx, sessionID)
	if err != nil {
		if council.IsNotFound(err) {
			return &SessionNotFoundError{SessionID: sessionID}
		}
		return fmt.Errorf("failed to fetch session record: %w", err)
	}

	if err := FormatSingleJSON(w, record); err != nil {
		return fmt.Errorf("failed to format session record: %w", err)
	}

	return nil
}

// SessionNotFoundError represents a specific "session not found" error,
// letting callers distinguish not-found from other failures.
type SessionNotFoundError struct {
	SessionID string
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("session with ID '%s' not found", e.SessionID)
}

// IsNotFound returns true if the error is a SessionNotFoundError.
func IsNotFound(err error) bool {
	_, ok := err.(*SessionNotFoundError)
	return ok
}
