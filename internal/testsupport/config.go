package testsupport

import (
	"path/filepath"
	"testing"

	"cdbs/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "state", "logs")
	cfgVal.API.Token = "test-token"
	cfgVal.Logging.RetentionDays = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithEndpoint points the test config at a backend URL.
func WithEndpoint(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.API.Endpoint = url
	}
}

// WithMaxConcurrent overrides upload.max_concurrent.
func WithMaxConcurrent(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Upload.MaxConcurrent = n
	}
}

// WithAccept sets the upload MIME filter.
func WithAccept(pattern string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Upload.Accept = pattern
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
