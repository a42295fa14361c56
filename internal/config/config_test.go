package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"cdbs/internal/config"
)

func TestLoadDefaultConfigUsesEnvTokenAndExpandsPaths(t *testing.T) {
	t.Setenv("CDBS_API_TOKEN", "env-token")
	t.Setenv("CDBS_API_ENDPOINT", "")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "cdbs")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Paths.LogDir != filepath.Join(wantState, "logs") {
		t.Fatalf("unexpected log dir: %q", cfg.Paths.LogDir)
	}
	if cfg.API.Token != "env-token" {
		t.Fatalf("expected token from env, got %q", cfg.API.Token)
	}
	if cfg.API.Endpoint != "" {
		t.Fatalf("expected empty endpoint by default, got %q", cfg.API.Endpoint)
	}
	if cfg.Upload.MaxConcurrent != config.Default().Upload.MaxConcurrent {
		t.Fatalf("unexpected max concurrent: %d", cfg.Upload.MaxConcurrent)
	}
	if cfg.Upload.MaxFiles != 1000 {
		t.Fatalf("expected max files 1000, got %d", cfg.Upload.MaxFiles)
	}
	if cfg.TransferTimeout() != 0 {
		t.Fatalf("expected unbounded transfers by default, got %s", cfg.TransferTimeout())
	}
	if !cfg.History.Enabled {
		t.Fatal("expected history enabled by default")
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
	if cfg.HistoryPath() != filepath.Join(wantState, "history.db") {
		t.Fatalf("unexpected history path: %q", cfg.HistoryPath())
	}
	if cfg.LockPath() != filepath.Join(wantState, "upload.lock") {
		t.Fatalf("unexpected lock path: %q", cfg.LockPath())
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	t.Setenv("CDBS_API_TOKEN", "")
	configPath := filepath.Join(tempDir, "cdbs.toml")

	custom := struct {
		API struct {
			Endpoint       string `toml:"endpoint"`
			Token          string `toml:"token"`
			RequestTimeout int    `toml:"request_timeout"`
		} `toml:"api"`
		Upload struct {
			MaxConcurrent   int    `toml:"max_concurrent"`
			TransferTimeout int    `toml:"transfer_timeout"`
			Accept          string `toml:"accept"`
		} `toml:"upload"`
		Paths struct {
			StateDir string `toml:"state_dir"`
		} `toml:"paths"`
	}{}
	custom.API.Endpoint = "https://cdbs.example.com/graphql"
	custom.API.Token = "file-token"
	custom.API.RequestTimeout = 10
	custom.Upload.MaxConcurrent = 8
	custom.Upload.TransferTimeout = 120
	custom.Upload.Accept = " Image/* "
	custom.Paths.StateDir = "~/state"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.API.Endpoint != "https://cdbs.example.com/graphql" {
		t.Fatalf("unexpected endpoint: %q", cfg.API.Endpoint)
	}
	if cfg.API.Token != "file-token" {
		t.Fatalf("unexpected token: %q", cfg.API.Token)
	}
	if cfg.RequestTimeout().Seconds() != 10 {
		t.Fatalf("unexpected request timeout: %s", cfg.RequestTimeout())
	}
	if cfg.Upload.MaxConcurrent != 8 {
		t.Fatalf("unexpected max concurrent: %d", cfg.Upload.MaxConcurrent)
	}
	if cfg.TransferTimeout().Seconds() != 120 {
		t.Fatalf("unexpected transfer timeout: %s", cfg.TransferTimeout())
	}
	if cfg.Upload.Accept != "image/*" {
		t.Fatalf("expected accept to be normalized, got %q", cfg.Upload.Accept)
	}
	if cfg.Paths.StateDir != filepath.Join(tempDir, "state") {
		t.Fatalf("unexpected state dir: %q", cfg.Paths.StateDir)
	}
}

func TestConfigFileTokenTakesPrecedenceOverEnv(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	t.Setenv("CDBS_API_TOKEN", "env-token")
	configPath := filepath.Join(tempDir, "cdbs.toml")
	if err := os.WriteFile(configPath, []byte("[api]\ntoken = \"file-token\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.API.Token != "file-token" {
		t.Fatalf("expected file token to win, got %q", cfg.API.Token)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[upload]") {
		t.Fatalf("sample config missing upload section:\n%s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("sample config is not valid TOML: %v", err)
	}
	if cfg.Upload.MaxFiles != 1000 {
		t.Fatalf("sample max_files drifted from defaults: %d", cfg.Upload.MaxFiles)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"endpoint scheme", func(c *config.Config) { c.API.Endpoint = "ftp://cdbs.example.com" }, "api.endpoint"},
		{"endpoint host", func(c *config.Config) { c.API.Endpoint = "https://" }, "api.endpoint"},
		{"concurrency", func(c *config.Config) { c.Upload.MaxConcurrent = 0 }, "upload.max_concurrent"},
		{"max files", func(c *config.Config) { c.Upload.MaxFiles = 20000 }, "upload.max_files"},
		{"accept", func(c *config.Config) { c.Upload.Accept = "image" }, "upload.accept"},
		{"level", func(c *config.Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestRequireAPI(t *testing.T) {
	cfg := config.Default()
	if err := cfg.RequireAPI(); err == nil || !strings.Contains(err.Error(), "api.endpoint") {
		t.Fatalf("expected endpoint error, got %v", err)
	}
	cfg.API.Endpoint = "https://cdbs.example.com/graphql"
	if err := cfg.RequireAPI(); err == nil || !strings.Contains(err.Error(), "api.token") {
		t.Fatalf("expected token error, got %v", err)
	}
	cfg.API.Token = "secret"
	if err := cfg.RequireAPI(); err != nil {
		t.Fatalf("expected complete api config, got %v", err)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "state", "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", dir, err)
		}
	}
}
