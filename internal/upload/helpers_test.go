package upload_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"cdbs/internal/upload"
)

// fakeTransferer completes transfers immediately unless a gate is registered
// for the destination, in which case Put waits for a value on the gate. A gate
// holds back one Put only.
type fakeTransferer struct {
	mu        sync.Mutex
	bodies    map[string][]byte
	results   map[string]error
	gates     map[string]chan error
	ignoreCtx bool
}

func newFakeTransferer() *fakeTransferer {
	return &fakeTransferer{
		bodies:  map[string][]byte{},
		results: map[string]error{},
		gates:   map[string]chan error{},
	}
}

func (f *fakeTransferer) gate(url string) chan error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan error)
	f.gates[url] = ch
	return ch
}

func (f *fakeTransferer) fail(url string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[url] = err
}

func (f *fakeTransferer) body(url string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bodies[url]
	return b, ok
}

func (f *fakeTransferer) Put(ctx context.Context, url string, body []byte) error {
	f.mu.Lock()
	f.bodies[url] = body
	gate := f.gates[url]
	delete(f.gates, url)
	result := f.results[url]
	ignoreCtx := f.ignoreCtx
	f.mu.Unlock()

	if gate == nil {
		return result
	}
	if ignoreCtx {
		return <-gate
	}
	select {
	case err := <-gate:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type recordingConfirmer struct {
	mu    sync.Mutex
	calls [][]uuid.UUID
	err   error
	// count overrides the confirmed count; -1 echoes len(ids).
	count int
}

func newRecordingConfirmer() *recordingConfirmer {
	return &recordingConfirmer{count: -1}
}

func (c *recordingConfirmer) ConfirmUploads(_ context.Context, ids []uuid.UUID) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, append([]uuid.UUID(nil), ids...))
	if c.err != nil {
		return 0, c.err
	}
	if c.count >= 0 {
		return c.count, nil
	}
	return len(ids), nil
}

func (c *recordingConfirmer) Calls() [][]uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]uuid.UUID(nil), c.calls...)
}

type failingSource struct {
	name string
	err  error
}

func (s failingSource) Name() string { return s.name }

func (s failingSource) Read(context.Context) ([]byte, error) { return nil, s.err }

func makeFiles(n int) []upload.PendingFile {
	files := make([]upload.PendingFile, 0, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("file-%d.png", i)
		files = append(files, upload.PendingFile{
			Descriptor: upload.Descriptor{
				Filename:       name,
				DestinationURL: fmt.Sprintf("https://storage.example.com/%d", i),
				FileID:         uuid.New(),
			},
			Source: upload.MemorySource{Filename: name, Data: []byte(name)},
		})
	}
	return files
}

func startBatch(t *testing.T, p *upload.Pipeline, files []upload.PendingFile) (*upload.Batch, <-chan upload.Outcome) {
	t.Helper()
	done := make(chan upload.Outcome, 1)
	batch, err := p.Start(context.Background(), files, func(o upload.Outcome) { done <- o })
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	return batch, done
}

func waitOutcome(t *testing.T, done <-chan upload.Outcome) upload.Outcome {
	t.Helper()
	select {
	case o := <-done:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for batch outcome")
		return upload.Outcome{}
	}
}

func waitSettlement(t *testing.T, ch <-chan upload.Settlement) upload.Settlement {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for settlement")
		return upload.Settlement{}
	}
}

func sameIDs(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[uuid.UUID]int, len(a))
	for _, id := range a {
		set[id]++
	}
	for _, id := range b {
		set[id]--
		if set[id] < 0 {
			return false
		}
	}
	return true
}

var errBoom = errors.New("boom")
