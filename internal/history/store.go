package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"cdbs/internal/config"
)

// Store records upload batches in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.HistoryPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Pragmas are per connection, and file results are recorded concurrently.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// BeginBatch records a running batch and its files as pending.
func (s *Store) BeginBatch(ctx context.Context, batch Batch, files []File) error {
	if strings.TrimSpace(batch.ID) == "" {
		return errors.New("batch id is required")
	}
	started := batch.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	timestamp := formatTime(started)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO batches (id, target, commit_message, status, dispatched, retry_of, started_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		batch.ID,
		batch.Target,
		batch.CommitMessage,
		BatchRunning,
		len(files),
		nullableString(batch.RetryOf),
		timestamp,
	); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	for _, f := range files {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO batch_files (batch_id, file_id, filename, path, size_bytes, status, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
			batch.ID,
			f.FileID,
			f.Filename,
			f.Path,
			f.SizeBytes,
			FilePending,
			timestamp,
		); err != nil {
			return fmt.Errorf("insert file %s: %w", f.Filename, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// RecordFile stores the final state of one file.
func (s *Store) RecordFile(ctx context.Context, batchID, fileID string, status FileStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE batch_files SET status = ?, error_message = ?, updated_at = ? WHERE batch_id = ? AND file_id = ?`,
		status,
		nullableString(errMsg),
		formatTime(time.Now()),
		batchID,
		fileID,
	)
	if err != nil {
		return fmt.Errorf("update file: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("file %s in batch %s: %w", fileID, batchID, ErrBatchNotFound)
	}
	return nil
}

// FinishBatch stores the result of a completed batch.
func (s *Store) FinishBatch(ctx context.Context, batchID string, result Result) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE batches
         SET status = ?, succeeded = ?, failed = ?, confirmed = ?, error_message = ?, finished_at = ?
         WHERE id = ?`,
		result.Status,
		result.Succeeded,
		result.Failed,
		result.Confirmed,
		nullableString(result.Error),
		formatTime(time.Now()),
		batchID,
	)
	if err != nil {
		return fmt.Errorf("finish batch: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish %s: %w", batchID, ErrBatchNotFound)
	}
	return nil
}

// MarkInterrupted moves batches left running by a process that exited before
// confirmation into the interrupted state. Their pending files become failed.
func (s *Store) MarkInterrupted(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin interrupt tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := formatTime(time.Now())
	if _, err := tx.ExecContext(ctx,
		`UPDATE batch_files SET status = ?, error_message = 'interrupted before settling', updated_at = ?
         WHERE status = ? AND batch_id IN (SELECT id FROM batches WHERE status = ?)`,
		FileFailed, now, FilePending, BatchRunning,
	); err != nil {
		return 0, fmt.Errorf("fail pending files: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE batches SET status = ?, finished_at = ?,
             succeeded = (SELECT COUNT(1) FROM batch_files f WHERE f.batch_id = batches.id AND f.status = ?),
             failed = (SELECT COUNT(1) FROM batch_files f WHERE f.batch_id = batches.id AND f.status = ?)
         WHERE status = ?`,
		BatchInterrupted, now, FileCompleted, FileFailed, BatchRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit interrupt: %w", err)
	}
	return n, nil
}

// Get fetches a batch by full id or unique prefix.
func (s *Store) Get(ctx context.Context, idOrPrefix string) (*Batch, error) {
	needle := strings.ToLower(strings.TrimSpace(idOrPrefix))
	if needle == "" {
		return nil, ErrBatchNotFound
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+batchColumns+` FROM batches WHERE id = ? OR id LIKE ? ESCAPE '\' ORDER BY started_at DESC LIMIT 2`,
		needle, escapeLike(needle)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("query batch: %w", err)
	}
	defer rows.Close()

	var found []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		if b.ID == needle {
			return &b, nil
		}
		found = append(found, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%q: %w", idOrPrefix, ErrBatchNotFound)
	case 1:
		return &found[0], nil
	default:
		return nil, fmt.Errorf("%q: %w", idOrPrefix, ErrAmbiguousID)
	}
}

// List returns the most recent batches, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Batch, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+batchColumns+` FROM batches ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	return batches, nil
}

// Files returns every file of a batch in filename order.
func (s *Store) Files(ctx context.Context, batchID string) ([]File, error) {
	return s.queryFiles(ctx, `SELECT `+fileColumns+` FROM batch_files WHERE batch_id = ? ORDER BY filename`, batchID)
}

// FailedFiles returns the files of a batch that did not complete.
func (s *Store) FailedFiles(ctx context.Context, batchID string) ([]File, error) {
	return s.queryFiles(ctx,
		`SELECT `+fileColumns+` FROM batch_files WHERE batch_id = ? AND status != ? ORDER BY filename`,
		batchID, FileCompleted)
}

func (s *Store) queryFiles(ctx context.Context, query string, args ...any) ([]File, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return files, nil
}
