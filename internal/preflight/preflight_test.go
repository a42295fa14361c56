package preflight

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cdbs/internal/config"
	"cdbs/internal/services"
	"cdbs/internal/services/cdbsapi"
)

func graphQLServer(t *testing.T, token string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != token {
			_, _ = w.Write([]byte(`{"data":null,"errors":[{"message":"Unauthorized"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"__typename":"QueryRoot"}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckAPI_OK(t *testing.T) {
	srv := graphQLServer(t, "good-token")

	result := CheckAPI(context.Background(), cdbsapi.Config{Endpoint: srv.URL, Token: "good-token"}, time.Second)
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckAPI_BadToken(t *testing.T) {
	srv := graphQLServer(t, "good-token")

	result := CheckAPI(context.Background(), cdbsapi.Config{Endpoint: srv.URL, Token: "bad-token"}, time.Second)
	if result.Passed {
		t.Fatal("expected failure for bad token")
	}
	if !strings.Contains(result.Detail, "invalid token") {
		t.Fatalf("unexpected detail %q", result.Detail)
	}
}

func TestCheckAPI_MissingSettings(t *testing.T) {
	if r := CheckAPI(context.Background(), cdbsapi.Config{Token: "x"}, 0); r.Passed || r.Detail != "missing endpoint" {
		t.Fatalf("expected missing endpoint, got %#v", r)
	}
	if r := CheckAPI(context.Background(), cdbsapi.Config{Endpoint: "http://localhost"}, 0); r.Passed || r.Detail != "missing token" {
		t.Fatalf("expected missing token, got %#v", r)
	}
}

func TestCheckReadableAndCheckFiles(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.png")
	if err := os.WriteFile(good, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if r := CheckReadable(good); !r.Passed {
		t.Fatalf("expected readable file, got %s", r.Detail)
	}
	if r := CheckReadable(dir); r.Passed {
		t.Fatal("expected directory to fail")
	}

	if err := CheckFiles([]string{good}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	missing := filepath.Join(dir, "missing.png")
	err := CheckFiles([]string{good, missing})
	if !errors.Is(err, services.ErrValidation) || !strings.Contains(err.Error(), "missing.png") {
		t.Fatalf("expected validation error naming missing file, got %v", err)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ReportsDirectoriesAndAPI(t *testing.T) {
	srv := graphQLServer(t, "test")

	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.API.Endpoint = srv.URL
	cfg.API.Token = "test"

	results := RunAll(context.Background(), &cfg)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %#v", failed)
	}
}

func TestRunAll_UnconfiguredAPIFails(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Paths.LogDir = cfg.Paths.StateDir

	results := RunAll(context.Background(), &cfg)
	failed := Failed(results)
	if len(results) != 2 || len(failed) != 1 || failed[0].Name != "CDBS API" {
		t.Fatalf("expected only the API check to fail, got %#v", results)
	}
}
