package uploader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"cdbs/internal/config"
	"cdbs/internal/history"
	"cdbs/internal/logging"
	"cdbs/internal/preflight"
	"cdbs/internal/selection"
	"cdbs/internal/services"
	"cdbs/internal/services/cdbsapi"
	"cdbs/internal/upload"
)

// ErrLocked is returned when another process holds the upload lock.
var ErrLocked = errors.New("another cdbs upload is running for this state directory")

// API is the backend surface the uploader needs.
type API interface {
	RequestUploads(ctx context.Context, target cdbsapi.Target, filenames []string, commitMsg string) ([]upload.Descriptor, error)
	upload.Confirmer
}

// Event reports a file changing state.
type Event struct {
	BatchID  uuid.UUID
	Filename string
	FileID   uuid.UUID
	Status   upload.FileStatus
	Err      error
}

// Option customizes an Uploader.
type Option func(*Uploader)

// WithLogger sets the uploader logger.
func WithLogger(logger *slog.Logger) Option {
	return func(u *Uploader) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// WithTransferer replaces the HTTP transferer used for destination PUTs.
func WithTransferer(t upload.Transferer) Option {
	return func(u *Uploader) {
		if t != nil {
			u.transferer = t
		}
	}
}

// WithProgress registers fn to receive per-file events. fn is called from
// pipeline goroutines and must not block.
func WithProgress(fn func(Event)) Option {
	return func(u *Uploader) { u.progress = fn }
}

// Uploader coordinates allocation, the upload pipeline, and history.
type Uploader struct {
	cfg        *config.Config
	api        API
	store      *history.Store
	logger     *slog.Logger
	transferer upload.Transferer
	progress   func(Event)
	pipeline   *upload.Pipeline

	lockPath string
	lock     *flock.Flock
	running  atomic.Bool

	mu     sync.Mutex
	active uuid.UUID
}

// New constructs an uploader. store may be nil when history is disabled.
func New(cfg *config.Config, api API, store *history.Store, opts ...Option) (*Uploader, error) {
	if cfg == nil || api == nil {
		return nil, errors.New("uploader requires config and api client")
	}

	u := &Uploader{
		cfg:        cfg,
		api:        api,
		store:      store,
		logger:     logging.NewNop(),
		transferer: upload.NewHTTPTransferer(nil),
		lockPath:   cfg.LockPath(),
		lock:       flock.New(cfg.LockPath()),
	}
	for _, opt := range opts {
		opt(u)
	}
	u.logger = logging.NewComponentLogger(u.logger, "uploader")

	pipeline, err := upload.NewPipeline(u.transferer, api,
		upload.WithLogger(u.logger),
		upload.WithMaxConcurrent(cfg.Upload.MaxConcurrent),
		upload.WithTransferTimeout(cfg.TransferTimeout()),
		upload.WithSettleHook(u.onSettle),
		upload.WithStatusHook(u.onStatus),
	)
	if err != nil {
		return nil, err
	}
	u.pipeline = pipeline
	return u, nil
}

// Request describes one batch to upload.
type Request struct {
	Target        cdbsapi.Target
	Files         []selection.File
	CommitMessage string
	// RetryOf links the new batch to the batch it retries.
	RetryOf string
}

// Upload runs one batch to confirmation and returns its result. The error is
// non-nil when the batch could not start or confirmation failed; per-file
// failures are reported in the result only.
func (u *Uploader) Upload(ctx context.Context, req Request) (*Result, error) {
	var result *Result
	err := u.withLock(ctx, func() error {
		var runErr error
		result, runErr = u.run(ctx, req)
		return runErr
	})
	return result, err
}

// Retry uploads again the files of a recorded batch that did not complete,
// against the same target. batchID may be a unique prefix.
func (u *Uploader) Retry(ctx context.Context, batchID, commitMsg string) (*Result, error) {
	if u.store == nil {
		return nil, services.Wrap(services.ErrConfiguration, "uploader", "retry", "history is disabled; enable [history] to retry batches", nil)
	}

	var result *Result
	err := u.withLock(ctx, func() error {
		previous, err := u.store.Get(ctx, batchID)
		if err != nil {
			return err
		}
		failed, err := u.store.FailedFiles(ctx, previous.ID)
		if err != nil {
			return err
		}
		if len(failed) == 0 {
			return services.Wrap(services.ErrValidation, "uploader", "retry", fmt.Sprintf("batch %s has no failed files", previous.ID), nil)
		}
		target, err := cdbsapi.ParseTarget(previous.Target)
		if err != nil {
			return err
		}
		paths := make([]string, 0, len(failed))
		for _, f := range failed {
			paths = append(paths, f.Path)
		}
		files, err := selection.Select(paths, selection.Options{MaxFiles: u.cfg.Upload.MaxFiles})
		if err != nil {
			return err
		}
		if commitMsg == "" {
			commitMsg = previous.CommitMessage
		}

		u.logger.Info("retrying failed files",
			logging.String("retry_of", previous.ID),
			logging.Int("files", len(files)),
			logging.String(logging.FieldEventType, "batch_retry"),
		)
		result, err = u.run(ctx, Request{
			Target:        target,
			Files:         files,
			CommitMessage: commitMsg,
			RetryOf:       previous.ID,
		})
		return err
	})
	return result, err
}

// Abandon gives up on the unfinished files of the running batch so it
// proceeds to confirmation with what already succeeded.
func (u *Uploader) Abandon(reason string) int {
	return u.pipeline.Abandon(reason)
}

// Running reports whether a batch is in progress in this process.
func (u *Uploader) Running() bool {
	return u.running.Load()
}

func (u *Uploader) withLock(ctx context.Context, fn func() error) error {
	if !u.running.CompareAndSwap(false, true) {
		return upload.ErrBatchInProgress
	}
	defer u.running.Store(false)

	ok, err := u.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w (lock %s)", ErrLocked, u.lockPath)
	}
	defer func() {
		if err := u.lock.Unlock(); err != nil {
			u.logger.Warn("failed to release upload lock", logging.Error(err))
		}
	}()

	if u.store != nil {
		n, err := u.store.MarkInterrupted(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			logging.WarnWithContext(u.logger, "previous batches were interrupted", "batches_interrupted",
				logging.Int64("count", n),
				logging.String(logging.FieldImpact, "their unsettled files were never confirmed"),
				logging.String(logging.FieldErrorHint, "run cdbs history and cdbs retry <batch-id>"),
			)
		}
	}
	return fn()
}

func (u *Uploader) run(ctx context.Context, req Request) (*Result, error) {
	if len(req.Files) == 0 {
		return nil, services.Wrap(services.ErrValidation, "uploader", "upload", "no files to upload", nil)
	}
	paths := make([]string, 0, len(req.Files))
	filenames := make([]string, 0, len(req.Files))
	sources := make([]upload.Source, 0, len(req.Files))
	byName := make(map[string]selection.File, len(req.Files))
	for _, f := range req.Files {
		paths = append(paths, f.Path)
		filenames = append(filenames, f.Name)
		sources = append(sources, upload.FileSource{Path: f.Path})
		byName[f.Name] = f
	}
	if err := preflight.CheckFiles(paths); err != nil {
		return nil, err
	}

	descriptors, err := u.api.RequestUploads(ctx, req.Target, filenames, req.CommitMessage)
	if err != nil {
		return nil, fmt.Errorf("allocate upload slots: %w", err)
	}
	pending, err := upload.Pair(descriptors, sources)
	if err != nil {
		return nil, fmt.Errorf("match upload slots: %w", err)
	}

	batchID := uuid.New()
	if u.store != nil {
		records := make([]history.File, 0, len(pending))
		for _, p := range pending {
			f := byName[p.Source.Name()]
			records = append(records, history.File{
				FileID:    p.FileID.String(),
				Filename:  p.Filename,
				Path:      f.Path,
				SizeBytes: f.Size,
			})
		}
		if err := u.store.BeginBatch(ctx, history.Batch{
			ID:            batchID.String(),
			Target:        req.Target.String(),
			CommitMessage: req.CommitMessage,
			RetryOf:       req.RetryOf,
		}, records); err != nil {
			return nil, err
		}
	}

	u.setActive(batchID)
	defer u.setActive(uuid.Nil)

	done := make(chan upload.Outcome, 1)
	if _, err := u.pipeline.StartWithID(ctx, batchID, pending, func(o upload.Outcome) { done <- o }); err != nil {
		u.finishHistory(ctx, batchID, history.Result{Status: history.BatchFailed, Failed: len(pending), Error: err.Error()})
		return nil, err
	}
	outcome := <-done

	result := newResult(req, pending, byName, outcome)
	u.finishHistory(ctx, batchID, result.historyResult())
	return result, outcome.Err
}

func (u *Uploader) finishHistory(ctx context.Context, batchID uuid.UUID, res history.Result) {
	if u.store == nil {
		return
	}
	if err := u.store.FinishBatch(context.WithoutCancel(ctx), batchID.String(), res); err != nil {
		logging.WarnWithContext(u.logger, "failed to record batch result", "history_write_failed",
			logging.String(logging.FieldBatchID, batchID.String()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "cdbs history shows the batch as running until the next upload"),
		)
	}
}

func (u *Uploader) setActive(id uuid.UUID) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.active = id
}

func (u *Uploader) activeBatch() uuid.UUID {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.active
}

func (u *Uploader) onStatus(d upload.Descriptor, status upload.FileStatus) {
	// Final states are reported from onSettle, which carries the error.
	if status == upload.StatusCompleted || status == upload.StatusFailed {
		return
	}
	u.emit(Event{BatchID: u.activeBatch(), Filename: d.Filename, FileID: d.FileID, Status: status})
}

func (u *Uploader) onSettle(s upload.Settlement) {
	batchID := u.activeBatch()
	status := upload.StatusCompleted
	recorded := history.FileCompleted
	errMsg := ""
	if s.Err != nil {
		status = upload.StatusFailed
		recorded = history.FileFailed
		errMsg = s.Err.Error()
	}
	if u.store != nil && batchID != uuid.Nil {
		if err := u.store.RecordFile(context.Background(), batchID.String(), s.FileID.String(), recorded, errMsg); err != nil {
			u.logger.Warn("failed to record file result",
				logging.String(logging.FieldBatchID, batchID.String()),
				logging.String(logging.FieldFile, s.Filename),
				logging.Error(err),
			)
		}
	}
	u.emit(Event{BatchID: batchID, Filename: s.Filename, FileID: s.FileID, Status: status, Err: s.Err})
}

func (u *Uploader) emit(e Event) {
	if u.progress != nil {
		u.progress(e)
	}
}
