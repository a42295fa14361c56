package upload

import (
	"sync"

	"github.com/google/uuid"
)

// Settlement describes one file reaching a final state.
type Settlement struct {
	FileID      uuid.UUID
	Filename    string
	Err         error
	Outstanding int
	// Last is set on the single settlement that brought Outstanding to zero.
	Last bool
}

// Tracker counts the files of a batch that have not settled yet and collects
// their results. It is safe for concurrent use.
type Tracker struct {
	mu          sync.Mutex
	outstanding int
	names       map[uuid.UUID]string
	pending     map[uuid.UUID]struct{}
	succeeded   []uuid.UUID
	failed      []FileFailure
}

// NewTracker starts a tracker with every descriptor outstanding.
func NewTracker(descriptors []Descriptor) *Tracker {
	t := &Tracker{
		names:   make(map[uuid.UUID]string, len(descriptors)),
		pending: make(map[uuid.UUID]struct{}, len(descriptors)),
	}
	for _, d := range descriptors {
		if _, dup := t.pending[d.FileID]; dup {
			continue
		}
		t.names[d.FileID] = d.Filename
		t.pending[d.FileID] = struct{}{}
	}
	t.outstanding = len(t.pending)
	return t
}

// Settle records the result for id. A nil err counts as success. The second
// return is false when id is unknown or already settled; such calls change
// nothing.
func (t *Tracker) Settle(id uuid.UUID, err error) (Settlement, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.settleLocked(id, err)
}

// SettleRemaining fails every file still outstanding with err.
func (t *Tracker) SettleRemaining(err error) []Settlement {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(t.pending))
	for id := range t.pending {
		ids = append(ids, id)
	}
	out := make([]Settlement, 0, len(ids))
	for _, id := range ids {
		if s, ok := t.settleLocked(id, err); ok {
			out = append(out, s)
		}
	}
	return out
}

func (t *Tracker) settleLocked(id uuid.UUID, err error) (Settlement, bool) {
	if _, ok := t.pending[id]; !ok {
		return Settlement{}, false
	}
	delete(t.pending, id)
	name := t.names[id]
	if err == nil {
		t.succeeded = append(t.succeeded, id)
	} else {
		t.failed = append(t.failed, FileFailure{FileID: id, Filename: name, Err: err})
	}
	t.outstanding--
	return Settlement{
		FileID:      id,
		Filename:    name,
		Err:         err,
		Outstanding: t.outstanding,
		Last:        t.outstanding == 0,
	}, true
}

// Outstanding returns the number of files not yet settled.
func (t *Tracker) Outstanding() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outstanding
}

// Succeeded returns the ids that settled successfully, in settlement order.
func (t *Tracker) Succeeded() []uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]uuid.UUID(nil), t.succeeded...)
}

// Failed returns the files that settled with an error, in settlement order.
func (t *Tracker) Failed() []FileFailure {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]FileFailure(nil), t.failed...)
}
