package upload

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrBatchInProgress is returned by Start while a previous batch has not
	// reached confirmation.
	ErrBatchInProgress = errors.New("upload batch already in progress")
	// ErrAbandoned marks files settled by Pipeline.Abandon.
	ErrAbandoned = errors.New("upload abandoned")
)

// ReadFailure reports a local file whose bytes could not be read.
type ReadFailure struct {
	Filename string
	FileID   uuid.UUID
	Err      error
}

func (e *ReadFailure) Error() string {
	return fmt.Sprintf("read %s: %v", e.Filename, e.Err)
}

func (e *ReadFailure) Unwrap() error { return e.Err }

// TransferFailure reports a destination that rejected or never received a
// file's bytes. StatusCode is zero for network errors.
type TransferFailure struct {
	Filename   string
	FileID     uuid.UUID
	StatusCode int
	Err        error
}

func (e *TransferFailure) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transfer %s: http %d: %v", e.Filename, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transfer %s: %v", e.Filename, e.Err)
}

func (e *TransferFailure) Unwrap() error { return e.Err }

// ConfirmationFailure reports that the batch confirmation call failed. None of
// FileIDs should be considered durably stored.
type ConfirmationFailure struct {
	BatchID uuid.UUID
	FileIDs []uuid.UUID
	Err     error
}

func (e *ConfirmationFailure) Error() string {
	return fmt.Sprintf("confirm batch %s (%d files): %v", e.BatchID, len(e.FileIDs), e.Err)
}

func (e *ConfirmationFailure) Unwrap() error { return e.Err }

// FileFailure names a file that was excluded from confirmation and why.
type FileFailure struct {
	FileID   uuid.UUID
	Filename string
	Err      error
}
