package uploader

import (
	"time"

	"github.com/google/uuid"

	"cdbs/internal/history"
	"cdbs/internal/selection"
	"cdbs/internal/upload"
)

// FileResult is the final state of one file of a batch.
type FileResult struct {
	Filename string
	Path     string
	Size     int64
	FileID   uuid.UUID
	Status   upload.FileStatus
	Err      error
}

// Result summarizes a finished batch.
type Result struct {
	BatchID       uuid.UUID
	Target        string
	CommitMessage string
	RetryOf       string
	Files         []FileResult
	Outcome       upload.Outcome
}

// Succeeded returns the number of files that reached storage.
func (r *Result) Succeeded() int { return len(r.Outcome.Succeeded) }

// Failed returns the number of files excluded from confirmation.
func (r *Result) Failed() int { return len(r.Outcome.Failed) }

// Elapsed returns how long the batch ran.
func (r *Result) Elapsed() time.Duration { return r.Outcome.Finished.Sub(r.Outcome.Started) }

// Status classifies the batch the way history records it.
func (r *Result) Status() history.BatchStatus {
	switch {
	case r.Outcome.Err != nil:
		return history.BatchFailed
	case len(r.Outcome.Failed) > 0 || r.Outcome.CountMismatch():
		return history.BatchPartial
	default:
		return history.BatchConfirmed
	}
}

func (r *Result) historyResult() history.Result {
	res := history.Result{
		Status:    r.Status(),
		Succeeded: r.Succeeded(),
		Failed:    r.Failed(),
		Confirmed: r.Outcome.Confirmed,
	}
	if r.Outcome.Err != nil {
		res.Error = r.Outcome.Err.Error()
	}
	return res
}

func newResult(req Request, pending []upload.PendingFile, byName map[string]selection.File, outcome upload.Outcome) *Result {
	failures := make(map[uuid.UUID]error, len(outcome.Failed))
	for _, f := range outcome.Failed {
		failures[f.FileID] = f.Err
	}

	files := make([]FileResult, 0, len(pending))
	for _, p := range pending {
		local := byName[p.Source.Name()]
		fr := FileResult{
			Filename: p.Filename,
			Path:     local.Path,
			Size:     local.Size,
			FileID:   p.FileID,
			Status:   upload.StatusCompleted,
		}
		if err, failed := failures[p.FileID]; failed {
			fr.Status = upload.StatusFailed
			fr.Err = err
		}
		files = append(files, fr)
	}
	return &Result{
		BatchID:       outcome.BatchID,
		Target:        req.Target.String(),
		CommitMessage: req.CommitMessage,
		RetryOf:       req.RetryOf,
		Files:         files,
		Outcome:       outcome,
	}
}
