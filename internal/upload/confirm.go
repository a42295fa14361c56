package upload

import (
	"context"

	"github.com/google/uuid"
)

// Confirmer tells the backend which files are durably stored and returns how
// many it accepted.
type Confirmer interface {
	ConfirmUploads(ctx context.Context, ids []uuid.UUID) (int, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, ids []uuid.UUID) (int, error)

func (f ConfirmFunc) ConfirmUploads(ctx context.Context, ids []uuid.UUID) (int, error) {
	return f(ctx, ids)
}

func confirmStage(ctx context.Context, confirmer Confirmer, batchID uuid.UUID, ids []uuid.UUID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, &ConfirmationFailure{BatchID: batchID, FileIDs: ids, Err: err}
	}
	count, err := confirmer.ConfirmUploads(ctx, ids)
	if err != nil {
		return 0, &ConfirmationFailure{BatchID: batchID, FileIDs: ids, Err: err}
	}
	return count, nil
}
