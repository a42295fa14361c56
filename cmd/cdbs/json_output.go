package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"cdbs/internal/history"
	"cdbs/internal/uploader"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type fileView struct {
	Filename  string `json:"filename"`
	FileID    string `json:"file_id"`
	Path      string `json:"path,omitempty"`
	SizeBytes int64  `json:"size_bytes"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

type resultView struct {
	BatchID       string     `json:"batch_id"`
	Target        string     `json:"target"`
	CommitMessage string     `json:"commit_message,omitempty"`
	RetryOf       string     `json:"retry_of,omitempty"`
	Status        string     `json:"status"`
	Dispatched    int        `json:"dispatched"`
	Succeeded     int        `json:"succeeded"`
	Failed        int        `json:"failed"`
	Confirmed     int        `json:"confirmed"`
	Abandoned     bool       `json:"abandoned"`
	ElapsedMS     int64      `json:"elapsed_ms"`
	Error         string     `json:"error,omitempty"`
	Files         []fileView `json:"files"`
}

func newResultView(r *uploader.Result) resultView {
	view := resultView{
		BatchID:       r.BatchID.String(),
		Target:        r.Target,
		CommitMessage: r.CommitMessage,
		RetryOf:       r.RetryOf,
		Status:        string(r.Status()),
		Dispatched:    r.Outcome.Dispatched,
		Succeeded:     r.Succeeded(),
		Failed:        r.Failed(),
		Confirmed:     r.Outcome.Confirmed,
		Abandoned:     r.Outcome.Abandoned,
		ElapsedMS:     r.Elapsed().Milliseconds(),
		Files:         make([]fileView, 0, len(r.Files)),
	}
	if r.Outcome.Err != nil {
		view.Error = r.Outcome.Err.Error()
	}
	for _, f := range r.Files {
		fv := fileView{
			Filename:  f.Filename,
			FileID:    f.FileID.String(),
			Path:      f.Path,
			SizeBytes: f.Size,
			Status:    string(f.Status),
		}
		if f.Err != nil {
			fv.Error = f.Err.Error()
		}
		view.Files = append(view.Files, fv)
	}
	return view
}

type batchView struct {
	ID            string     `json:"id"`
	Target        string     `json:"target"`
	CommitMessage string     `json:"commit_message,omitempty"`
	Status        string     `json:"status"`
	Dispatched    int        `json:"dispatched"`
	Succeeded     int        `json:"succeeded"`
	Failed        int        `json:"failed"`
	Confirmed     int        `json:"confirmed"`
	Error         string     `json:"error,omitempty"`
	RetryOf       string     `json:"retry_of,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	Files         []fileView `json:"files,omitempty"`
}

func newBatchView(b history.Batch, files []history.File) batchView {
	view := batchView{
		ID:            b.ID,
		Target:        b.Target,
		CommitMessage: b.CommitMessage,
		Status:        string(b.Status),
		Dispatched:    b.Dispatched,
		Succeeded:     b.Succeeded,
		Failed:        b.Failed,
		Confirmed:     b.Confirmed,
		Error:         b.Error,
		RetryOf:       b.RetryOf,
		StartedAt:     b.StartedAt,
	}
	if !b.FinishedAt.IsZero() {
		finished := b.FinishedAt
		view.FinishedAt = &finished
	}
	for _, f := range files {
		view.Files = append(view.Files, fileView{
			Filename:  f.Filename,
			FileID:    f.FileID,
			Path:      f.Path,
			SizeBytes: f.SizeBytes,
			Status:    string(f.Status),
			Error:     f.Error,
		})
	}
	return view
}
