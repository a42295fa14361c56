package upload

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// FileStatus is the lifecycle state of one file in a batch.
type FileStatus string

const (
	StatusPending      FileStatus = "pending"
	StatusReading      FileStatus = "reading"
	StatusTransferring FileStatus = "transferring"
	StatusCompleted    FileStatus = "completed"
	StatusFailed       FileStatus = "failed"
)

// task is the live handle for one file of a batch.
type task struct {
	file PendingFile

	mu     sync.Mutex
	status FileStatus
	err    error
}

func (t *task) setStatus(status FileStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == StatusCompleted || t.status == StatusFailed {
		return
	}
	t.status = status
}

func (t *task) finish(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
	if err != nil {
		t.status = StatusFailed
		return
	}
	t.status = StatusCompleted
}

// FileState is a point-in-time view of one file in a batch.
type FileState struct {
	Descriptor
	Status FileStatus
	Err    error
}

// Batch is the working set of one pipeline run: a task handle per filename
// and the tracker deciding when the batch is done.
type Batch struct {
	ID      uuid.UUID
	Started time.Time

	files    []PendingFile
	tasks    map[string]*task
	byID     map[uuid.UUID]*task
	tracker  *Tracker
	onSettle func(Settlement)

	// unobserved counts accepted settlements whose observers have not
	// returned yet; settled closes when it reaches zero.
	unobserved atomic.Int64

	settled   chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	abandoned bool
	mu        sync.Mutex
}

func newBatch(ctx context.Context, id uuid.UUID, files []PendingFile, observe func(Settlement)) *Batch {
	b := &Batch{
		ID:       id,
		Started:  time.Now().UTC(),
		files:    files,
		tasks:    make(map[string]*task, len(files)),
		byID:     make(map[uuid.UUID]*task, len(files)),
		settled:  make(chan struct{}),
		onSettle: observe,
	}
	descriptors := make([]Descriptor, 0, len(files))
	for _, f := range files {
		t := &task{file: f, status: StatusPending}
		b.tasks[f.Filename] = t
		b.byID[f.FileID] = t
		descriptors = append(descriptors, f.Descriptor)
	}
	b.tracker = NewTracker(descriptors)
	b.unobserved.Store(int64(b.tracker.Outstanding()))
	b.ctx, b.cancel = context.WithCancel(ctx)
	if len(files) == 0 {
		close(b.settled)
	}
	return b
}

// settle records a file result and reports whether it was accepted.
func (b *Batch) settle(id uuid.UUID, err error) bool {
	s, ok := b.tracker.Settle(id, err)
	if !ok {
		return false
	}
	b.observe(s)
	return true
}

// observe publishes an accepted settlement outside the tracker lock. Observers
// may run concurrently; all of them return before the batch counts as settled.
func (b *Batch) observe(s Settlement) {
	if t := b.byID[s.FileID]; t != nil {
		t.finish(s.Err)
	}
	if b.onSettle != nil {
		b.onSettle(s)
	}
	if b.unobserved.Add(-1) == 0 {
		close(b.settled)
	}
}

func (b *Batch) abandon(err error) int {
	b.mu.Lock()
	b.abandoned = true
	b.mu.Unlock()

	settlements := b.tracker.SettleRemaining(err)
	b.cancel()
	for _, s := range settlements {
		b.observe(s)
	}
	return len(settlements)
}

func (b *Batch) wasAbandoned() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.abandoned
}

// Size returns the number of files dispatched in the batch.
func (b *Batch) Size() int { return len(b.files) }

// Outstanding returns the number of files not yet settled.
func (b *Batch) Outstanding() int { return b.tracker.Outstanding() }

// Status returns the state of the named file.
func (b *Batch) Status(filename string) (FileStatus, bool) {
	t, ok := b.tasks[filename]
	if !ok {
		return "", false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status, true
}

// Files returns a snapshot of every file in dispatch order.
func (b *Batch) Files() []FileState {
	out := make([]FileState, 0, len(b.files))
	for _, f := range b.files {
		t := b.tasks[f.Filename]
		t.mu.Lock()
		out = append(out, FileState{Descriptor: f.Descriptor, Status: t.status, Err: t.err})
		t.mu.Unlock()
	}
	return out
}

// Done is closed once every file in the batch has settled.
func (b *Batch) Done() <-chan struct{} { return b.settled }
