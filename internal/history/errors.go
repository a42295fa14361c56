package history

import (
	"errors"
	"fmt"

	"cdbs/internal/services"
)

var (
	// ErrBatchNotFound is returned when no batch matches the requested id.
	ErrBatchNotFound = fmt.Errorf("batch %w", services.ErrNotFound)
	// ErrAmbiguousID is returned when an id prefix matches several batches.
	ErrAmbiguousID = errors.New("batch id prefix is ambiguous")
)
