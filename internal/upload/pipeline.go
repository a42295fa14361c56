package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"cdbs/internal/logging"
	"cdbs/internal/services"
)

const defaultMaxConcurrent = 4

// Outcome is delivered once per batch after confirmation.
type Outcome struct {
	BatchID    uuid.UUID
	Dispatched int
	// Confirmed is the count the backend reported. Compare it against
	// len(Succeeded), not Dispatched.
	Confirmed int
	Succeeded []uuid.UUID
	Failed    []FileFailure
	Abandoned bool
	Started   time.Time
	Finished  time.Time
	// Err is a *ConfirmationFailure when the confirmation call failed.
	Err error
}

// CountMismatch reports whether the backend confirmed a different number of
// files than the batch asked it to.
func (o Outcome) CountMismatch() bool {
	return o.Err == nil && o.Confirmed != len(o.Succeeded)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMaxConcurrent caps how many files are read and transferred at once.
func WithMaxConcurrent(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxConcurrent = n
		}
	}
}

// WithTransferTimeout bounds each destination PUT. Zero leaves transfers unbounded.
func WithTransferTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.transferTimeout = d
		}
	}
}

// WithSettleHook registers fn to observe every settlement. fn runs on the
// settling goroutine, possibly concurrently with other calls, and every call
// returns before confirmation starts.
func WithSettleHook(fn func(Settlement)) Option {
	return func(p *Pipeline) { p.onSettle = fn }
}

// WithStatusHook registers fn to observe per-file status changes.
func WithStatusHook(fn func(Descriptor, FileStatus)) Option {
	return func(p *Pipeline) { p.onStatus = fn }
}

// Pipeline uploads one batch at a time.
type Pipeline struct {
	transferer      Transferer
	confirmer       Confirmer
	logger          *slog.Logger
	maxConcurrent   int
	transferTimeout time.Duration
	onSettle        func(Settlement)
	onStatus        func(Descriptor, FileStatus)

	mu   sync.Mutex
	live *Batch
}

// NewPipeline builds a pipeline around the transfer and confirmation collaborators.
func NewPipeline(transferer Transferer, confirmer Confirmer, opts ...Option) (*Pipeline, error) {
	if transferer == nil {
		return nil, errors.New("transferer is required")
	}
	if confirmer == nil {
		return nil, errors.New("confirmer is required")
	}
	p := &Pipeline{
		transferer:    transferer,
		confirmer:     confirmer,
		logger:        logging.NewNop(),
		maxConcurrent: defaultMaxConcurrent,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.NewComponentLogger(p.logger, "upload")
	return p, nil
}

// Start dispatches files and returns without waiting. onComplete is called
// exactly once, from a pipeline goroutine, after confirmation has finished;
// by then the pipeline is ready for the next batch. Start fails with
// ErrBatchInProgress while another batch is live.
//
// Cancelling ctx fails every unfinished file and the confirmation call; use
// Abandon to give up on stragglers while still confirming what succeeded.
func (p *Pipeline) Start(ctx context.Context, files []PendingFile, onComplete func(Outcome)) (*Batch, error) {
	return p.StartWithID(ctx, uuid.New(), files, onComplete)
}

// StartWithID is Start with a caller-chosen batch id, so the batch can be
// recorded elsewhere before any file settles.
func (p *Pipeline) StartWithID(ctx context.Context, id uuid.UUID, files []PendingFile, onComplete func(Outcome)) (*Batch, error) {
	if id == uuid.Nil {
		return nil, services.Wrap(services.ErrValidation, "upload", "start", "batch id is required", nil)
	}
	if err := checkFiles(files); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.live != nil {
		live := p.live.ID
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: batch %s", ErrBatchInProgress, live)
	}
	batch := newBatch(ctx, id, files, p.onSettle)
	p.live = batch
	p.mu.Unlock()

	p.logger.Info("upload batch started",
		logging.String(logging.FieldBatchID, batch.ID.String()),
		logging.Int("files", len(files)),
		logging.Int("max_concurrent", p.maxConcurrent),
		logging.String(logging.FieldEventType, "batch_started"),
	)

	go p.dispatch(batch)
	go p.complete(ctx, batch, onComplete)
	return batch, nil
}

// Run is the blocking form of Start. The returned error is the start error or
// the confirmation failure; per-file failures are only listed in the outcome.
func (p *Pipeline) Run(ctx context.Context, files []PendingFile) (Outcome, error) {
	done := make(chan Outcome, 1)
	if _, err := p.Start(ctx, files, func(o Outcome) { done <- o }); err != nil {
		return Outcome{}, err
	}
	outcome := <-done
	return outcome, outcome.Err
}

// Abandon fails every file of the live batch that has not settled, which
// drives the batch to confirmation with whatever succeeded so far, and
// cancels in-flight work. Results that arrive afterwards are ignored. It
// returns the number of files it settled.
func (p *Pipeline) Abandon(reason string) int {
	p.mu.Lock()
	batch := p.live
	p.mu.Unlock()
	if batch == nil {
		return 0
	}
	err := fmt.Errorf("%w: %s", ErrAbandoned, reason)
	n := batch.abandon(err)
	logging.WarnWithContext(p.logger, "upload batch abandoned", "batch_abandoned",
		logging.String(logging.FieldBatchID, batch.ID.String()),
		logging.Int("abandoned_files", n),
		logging.String("reason", reason),
		logging.String(logging.FieldImpact, "unfinished files are excluded from confirmation"),
		logging.String(logging.FieldErrorHint, "re-run the upload for the abandoned files"),
	)
	return n
}

// Live returns the batch currently in flight, if any.
func (p *Pipeline) Live() (*Batch, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live, p.live != nil
}

func (p *Pipeline) dispatch(batch *Batch) {
	ctx := services.WithBatchID(batch.ctx, batch.ID.String())
	var g errgroup.Group
	g.SetLimit(p.maxConcurrent)
	for i, file := range batch.files {
		if ctx.Err() != nil {
			p.settleUndispatched(ctx, batch, batch.files[i:])
			break
		}
		g.Go(func() error {
			p.runFile(ctx, batch, file)
			return nil
		})
	}
	_ = g.Wait()
}

// settleUndispatched fails files that were never started because ctx ended.
func (p *Pipeline) settleUndispatched(ctx context.Context, batch *Batch, files []PendingFile) {
	for _, file := range files {
		logger := logging.WithContext(services.WithFilename(ctx, file.Filename), p.logger)
		p.settle(logger, batch, file, &ReadFailure{Filename: file.Filename, FileID: file.FileID, Err: ctx.Err()})
	}
}

func (p *Pipeline) runFile(ctx context.Context, batch *Batch, file PendingFile) {
	ctx = services.WithFilename(ctx, file.Filename)
	logger := logging.WithContext(ctx, p.logger)

	p.setStatus(batch, file, StatusReading)
	data, err := readStage(ctx, file)
	if err != nil {
		p.settle(logger, batch, file, err)
		return
	}

	p.setStatus(batch, file, StatusTransferring)
	transferCtx := ctx
	if p.transferTimeout > 0 {
		var cancel context.CancelFunc
		transferCtx, cancel = context.WithTimeout(ctx, p.transferTimeout)
		defer cancel()
	}
	err = transferStage(transferCtx, p.transferer, file.Descriptor, data)
	if err != nil && errors.Is(transferCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = services.Wrap(services.ErrTimeout, "upload", "transfer", fmt.Sprintf("no response within %s", p.transferTimeout), err)
	}
	p.settle(logger, batch, file, err)
}

func (p *Pipeline) setStatus(batch *Batch, file PendingFile, status FileStatus) {
	if t := batch.tasks[file.Filename]; t != nil {
		t.setStatus(status)
	}
	if p.onStatus != nil {
		p.onStatus(file.Descriptor, status)
	}
}

func (p *Pipeline) settle(logger *slog.Logger, batch *Batch, file PendingFile, err error) {
	if !batch.settle(file.FileID, err) {
		logger.Debug("late result ignored",
			logging.String(logging.FieldFileID, file.FileID.String()),
			logging.Bool("abandoned", batch.wasAbandoned()),
		)
		return
	}
	if err != nil {
		if p.onStatus != nil {
			p.onStatus(file.Descriptor, StatusFailed)
		}
		logging.WarnWithContext(logger, "file upload failed", "file_failed",
			logging.String(logging.FieldFileID, file.FileID.String()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "file is excluded from confirmation"),
			logging.String(logging.FieldErrorHint, "retry the batch once the cause is fixed"),
		)
		return
	}
	if p.onStatus != nil {
		p.onStatus(file.Descriptor, StatusCompleted)
	}
	logger.Info("file transferred",
		logging.String(logging.FieldFileID, file.FileID.String()),
		logging.String(logging.FieldEventType, "file_transferred"),
	)
}

func (p *Pipeline) complete(ctx context.Context, batch *Batch, onComplete func(Outcome)) {
	<-batch.Done()
	// Stragglers that outlived an abandon are released here.
	batch.cancel()

	succeeded := batch.tracker.Succeeded()
	outcome := Outcome{
		BatchID:    batch.ID,
		Dispatched: batch.Size(),
		Succeeded:  succeeded,
		Failed:     batch.tracker.Failed(),
		Abandoned:  batch.wasAbandoned(),
		Started:    batch.Started,
	}

	confirmCtx := services.WithBatchID(ctx, batch.ID.String())
	outcome.Confirmed, outcome.Err = confirmStage(confirmCtx, p.confirmer, batch.ID, succeeded)
	outcome.Finished = time.Now().UTC()
	p.logOutcome(outcome)

	p.mu.Lock()
	if p.live == batch {
		p.live = nil
	}
	p.mu.Unlock()

	if onComplete != nil {
		onComplete(outcome)
	}
}

func (p *Pipeline) logOutcome(o Outcome) {
	attrs := []logging.Attr{
		logging.String(logging.FieldBatchID, o.BatchID.String()),
		logging.Int("dispatched", o.Dispatched),
		logging.Int("succeeded", len(o.Succeeded)),
		logging.Int("failed", len(o.Failed)),
		logging.Duration("elapsed", o.Finished.Sub(o.Started)),
	}
	switch {
	case o.Err != nil:
		logging.ErrorWithContext(p.logger, "upload confirmation failed", "confirmation_failed",
			append(attrs, logging.Error(o.Err), logging.String(logging.FieldErrorHint, "check api.endpoint and api.token, then retry the batch"))...)
	case o.CountMismatch():
		logging.WarnWithContext(p.logger, "backend confirmed a different number of files", "confirmation_mismatch",
			append(attrs, logging.Int("confirmed", o.Confirmed), logging.String(logging.FieldImpact, "some files may not be attached"))...)
	default:
		p.logger.Info("upload batch confirmed",
			logging.Args(append(attrs, logging.Int("confirmed", o.Confirmed), logging.String(logging.FieldEventType, "batch_confirmed"))...)...)
	}
}

func checkFiles(files []PendingFile) error {
	names := make(map[string]struct{}, len(files))
	ids := make(map[uuid.UUID]struct{}, len(files))
	for _, f := range files {
		if f.Source == nil {
			return services.Wrap(services.ErrValidation, "upload", "start", fmt.Sprintf("%q has no source", f.Filename), nil)
		}
		if _, dup := names[f.Filename]; dup {
			return services.Wrap(services.ErrValidation, "upload", "start", fmt.Sprintf("duplicate filename %q", f.Filename), nil)
		}
		if _, dup := ids[f.FileID]; dup {
			return services.Wrap(services.ErrValidation, "upload", "start", fmt.Sprintf("duplicate file id %s", f.FileID), nil)
		}
		names[f.Filename] = struct{}{}
		ids[f.FileID] = struct{}{}
	}
	return nil
}
