package upload_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"cdbs/internal/services"
	"cdbs/internal/upload"
)

func descriptor(name string) upload.Descriptor {
	return upload.Descriptor{Filename: name, DestinationURL: "https://storage.example.com/" + name, FileID: uuid.New()}
}

func TestPairMatchesByFilenameNotPosition(t *testing.T) {
	a, b, c := descriptor("a.png"), descriptor("b.png"), descriptor("c.png")
	sources := []upload.Source{
		upload.MemorySource{Filename: "a.png"},
		upload.MemorySource{Filename: "b.png"},
		upload.MemorySource{Filename: "c.png"},
	}

	files, err := upload.Pair([]upload.Descriptor{c, a, b}, sources)
	if err != nil {
		t.Fatalf("Pair returned error: %v", err)
	}
	want := []upload.Descriptor{a, b, c}
	for i, f := range files {
		if f.Descriptor != want[i] {
			t.Fatalf("file %d paired with %+v, want %+v", i, f.Descriptor, want[i])
		}
		if f.Source.Name() != want[i].Filename {
			t.Fatalf("file %d has source %q", i, f.Source.Name())
		}
	}
}

func TestPairNormalizesUnicode(t *testing.T) {
	composed := "caf\u00e9.png"
	decomposed := "cafe\u0301.png"
	files, err := upload.Pair([]upload.Descriptor{descriptor(composed)}, []upload.Source{upload.MemorySource{Filename: decomposed}})
	if err != nil {
		t.Fatalf("Pair returned error: %v", err)
	}
	if len(files) != 1 || files[0].Filename != composed {
		t.Fatalf("unexpected pairing %+v", files)
	}
}

func TestPairRejectsMismatches(t *testing.T) {
	dup := descriptor("a.png")
	sameID := descriptor("b.png")
	sameID.FileID = dup.FileID

	tests := []struct {
		name        string
		descriptors []upload.Descriptor
		sources     []upload.Source
		want        string
	}{
		{"missing descriptor", []upload.Descriptor{descriptor("a.png")}, []upload.Source{upload.MemorySource{Filename: "a.png"}, upload.MemorySource{Filename: "b.png"}}, "no descriptor"},
		{"missing source", []upload.Descriptor{descriptor("a.png"), descriptor("b.png")}, []upload.Source{upload.MemorySource{Filename: "a.png"}}, "no source"},
		{"duplicate descriptor", []upload.Descriptor{descriptor("a.png"), descriptor("a.png")}, []upload.Source{upload.MemorySource{Filename: "a.png"}}, "duplicate descriptor"},
		{"duplicate source", []upload.Descriptor{descriptor("a.png")}, []upload.Source{upload.MemorySource{Filename: "a.png"}, upload.MemorySource{Filename: "a.png"}}, "duplicate source"},
		{"duplicate id", []upload.Descriptor{dup, sameID}, []upload.Source{upload.MemorySource{Filename: "a.png"}, upload.MemorySource{Filename: "b.png"}}, "allocated to both"},
		{"nil id", []upload.Descriptor{{Filename: "a.png", DestinationURL: "https://s/a"}}, []upload.Source{upload.MemorySource{Filename: "a.png"}}, "no file id"},
		{"bad url", []upload.Descriptor{{Filename: "a.png", DestinationURL: "not a url", FileID: uuid.New()}}, []upload.Source{upload.MemorySource{Filename: "a.png"}}, "invalid destination"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := upload.Pair(tt.descriptors, tt.sources)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation marker, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in %q", tt.want, err.Error())
			}
		})
	}
}

func TestPairEmpty(t *testing.T) {
	files, err := upload.Pair(nil, nil)
	if err != nil {
		t.Fatalf("Pair returned error: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected no files, got %d", len(files))
	}
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.png")
	if err := os.WriteFile(path, []byte("pixels"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	src := upload.FileSource{Path: path}
	if src.Name() != "photo.png" {
		t.Fatalf("unexpected name %q", src.Name())
	}
	data, err := src.Read(context.Background())
	if err != nil || string(data) != "pixels" {
		t.Fatalf("Read = %q, %v", data, err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove file: %v", err)
	}
	if _, err := src.Read(context.Background()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
