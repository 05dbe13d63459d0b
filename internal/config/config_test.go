package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("MINDMELD_CONFIG", "")
	t.Setenv("PORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.Store != "sqlite" || cfg.Cache != "memory" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.PageSize != 9 || cfg.News.Topic != "news_updates" || cfg.TokenTTL != 24*time.Hour {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("unexpected log level %v", cfg.LogLevel)
	}
}

func TestLoadFileUnderEnvironment(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "mindmeld.yaml")
	body := strings.Join([]string{
		"store: postgres",
		"postgres_dsn: postgres://localhost/mindmeld",
		"cache: redis",
		"redis_db: 2",
		"page_size: 12",
		"log_level: debug",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("MINDMELD_CONFIG", path)
	t.Setenv("MINDMELD_PAGE_SIZE", "5")
	t.Setenv("PORT", "9000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store != "postgres" || cfg.PostgresDSN != "postgres://localhost/mindmeld" || cfg.Cache != "redis" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Redis.DB != 2 || cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.PageSize != 5 {
		t.Fatalf("environment should win over file, got page size %d", cfg.PageSize)
	}
	if cfg.Addr != ":9000" {
		t.Fatalf("expected PORT fallback, got %q", cfg.Addr)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("MINDMELD_CONFIG", "")
	// Registered so the value loaded from .env is cleared after the test.
	t.Setenv("MINDMELD_JWT_SECRET", "")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("MINDMELD_JWT_SECRET=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	os.Unsetenv("MINDMELD_JWT_SECRET")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.JWTSecret != "from-dotenv" {
		t.Fatalf("expected secret from .env, got %q", cfg.JWTSecret)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	for _, tc := range []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown store", env: map[string]string{"MINDMELD_STORE": "mongo"}},
		{name: "postgres without dsn", env: map[string]string{"MINDMELD_STORE": "postgres", "MINDMELD_POSTGRES_DSN": ""}},
		{name: "unknown cache", env: map[string]string{"MINDMELD_CACHE": "memcached"}},
		{name: "bad log level", env: map[string]string{"MINDMELD_LOG_LEVEL": "loud"}},
		{name: "zero page size", env: map[string]string{"MINDMELD_PAGE_SIZE": "0"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			chdirTemp(t)
			t.Setenv("MINDMELD_CONFIG", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
