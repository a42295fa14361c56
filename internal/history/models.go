package history

import "time"

// BatchStatus is the recorded state of an upload batch.
type BatchStatus string

const (
	BatchRunning     BatchStatus = "running"
	BatchConfirmed   BatchStatus = "confirmed"
	BatchPartial     BatchStatus = "partial"
	BatchFailed      BatchStatus = "failed"
	BatchInterrupted BatchStatus = "interrupted"
)

// FileStatus is the recorded state of one file in a batch.
type FileStatus string

const (
	FilePending   FileStatus = "pending"
	FileCompleted FileStatus = "completed"
	FileFailed    FileStatus = "failed"
)

// Batch is one recorded upload.
type Batch struct {
	ID            string
	Target        string
	CommitMessage string
	Status        BatchStatus
	Dispatched    int
	Succeeded     int
	Failed        int
	Confirmed     int
	Error         string
	RetryOf       string
	StartedAt     time.Time
	FinishedAt    time.Time
}

// Finished reports whether the batch reached a final state.
func (b Batch) Finished() bool {
	return b.Status != BatchRunning
}

// File is one recorded file of a batch.
type File struct {
	BatchID   string
	FileID    string
	Filename  string
	Path      string
	SizeBytes int64
	Status    FileStatus
	Error     string
	UpdatedAt time.Time
}

// Result carries what FinishBatch records about a completed batch.
type Result struct {
	Status    BatchStatus
	Succeeded int
	Failed    int
	Confirmed int
	Error     string
}
