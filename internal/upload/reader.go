package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Source is a local file handle the read stage turns into bytes.
type Source interface {
	Name() string
	Read(ctx context.Context) ([]byte, error)
}

// FileSource reads a file from disk. Its name is the base name of Path.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return filepath.Base(s.Path) }

func (s FileSource) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// MemorySource serves bytes already held in memory.
type MemorySource struct {
	Filename string
	Data     []byte
}

func (s MemorySource) Name() string { return s.Filename }

func (s MemorySource) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Data, nil
}

func readStage(ctx context.Context, file PendingFile) ([]byte, error) {
	data, err := file.Source.Read(ctx)
	if err != nil {
		return nil, &ReadFailure{Filename: file.Filename, FileID: file.FileID, Err: err}
	}
	return data, nil
}
