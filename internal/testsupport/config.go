package testsupport

import (
	"path/filepath"
	"testing"

	"slate/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.CommonsDir = filepath.Join(base, "commons")
	cfg.Paths.UserDir = filepath.Join(base, "user")
	cfg.Paths.ProjectsDir = filepath.Join(base, "projects")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Localize.CacheDir = filepath.Join(base, "cache")

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithLocalize enables localization with caching for both works and
// publishes on the test config.
func WithLocalize() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Localize.Enabled = true
		cfg.Localize.CacheWorks = true
		cfg.Localize.CachePublishes = true
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.CommonsDir)
}
