package history

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const batchColumns = `id, target, commit_message, status, dispatched, succeeded, failed, confirmed,
    error_message, retry_of, started_at, finished_at`

const fileColumns = `batch_id, file_id, filename, path, size_bytes, status, error_message, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanBatch(row scanner) (Batch, error) {
	var (
		b        Batch
		errMsg   sql.NullString
		retryOf  sql.NullString
		started  string
		finished sql.NullString
	)
	if err := row.Scan(
		&b.ID, &b.Target, &b.CommitMessage, &b.Status,
		&b.Dispatched, &b.Succeeded, &b.Failed, &b.Confirmed,
		&errMsg, &retryOf, &started, &finished,
	); err != nil {
		return Batch{}, fmt.Errorf("scan batch: %w", err)
	}
	b.Error = errMsg.String
	b.RetryOf = retryOf.String
	b.StartedAt = parseTime(started)
	if finished.Valid {
		b.FinishedAt = parseTime(finished.String)
	}
	return b, nil
}

func scanFile(row scanner) (File, error) {
	var (
		f       File
		errMsg  sql.NullString
		updated string
	)
	if err := row.Scan(&f.BatchID, &f.FileID, &f.Filename, &f.Path, &f.SizeBytes, &f.Status, &errMsg, &updated); err != nil {
		return File{}, fmt.Errorf("scan file: %w", err)
	}
	f.Error = errMsg.String
	f.UpdatedAt = parseTime(updated)
	return f, nil
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
