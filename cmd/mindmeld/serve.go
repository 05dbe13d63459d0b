package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mindmeld-app/mindmeld/internal/articles"
	"github.com/mindmeld-app/mindmeld/internal/auth"
	"github.com/mindmeld-app/mindmeld/internal/cache"
	"github.com/mindmeld-app/mindmeld/internal/config"
	httpapp "github.com/mindmeld-app/mindmeld/internal/http"
	"github.com/mindmeld-app/mindmeld/internal/ingest"
	"github.com/mindmeld-app/mindmeld/internal/rate"
	"github.com/mindmeld-app/mindmeld/internal/store"
	"github.com/mindmeld-app/mindmeld/internal/store/memory"
	"github.com/mindmeld-app/mindmeld/internal/store/postgres"
	"github.com/mindmeld-app/mindmeld/internal/store/sqlite"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the API server",
	Long: `Start the MindMeld API server.

Environment Variables:
  MINDMELD_ADDR             Listen address (default: :8080, or :$PORT)
  MINDMELD_STORE            sqlite, postgres or memory (default: sqlite)
  MINDMELD_DB               SQLite database path (default: mindmeld.db)
  MINDMELD_POSTGRES_DSN     Postgres connection string
  MINDMELD_CACHE            memory or redis (default: memory)
  MINDMELD_REDIS_ADDR       Redis address (default: localhost:6379)
  MINDMELD_JWT_SECRET       Token signing secret
  MINDMELD_TOKEN_TTL        Token lifetime (default: 24h)
  MINDMELD_NEWS_FEED_URL    RSS or Atom feed served as the news topic
  MINDMELD_CONFIG           Optional YAML file with the same keys`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Store, err)
	}
	defer st.Close()

	c, closeCache := openCache(ctx, cfg, logger)
	defer closeCache()

	opts := []articles.Option{
		articles.WithLogger(logger),
		articles.WithPageSize(cfg.PageSize),
	}
	if cfg.News.FeedURL != "" {
		opts = append(opts, articles.WithNewsFeed(cfg.News.Topic, ingest.NewFeedFetcher(cfg.News.FeedURL, cfg.News.Topic)))
	}
	svc := articles.New(st, c, opts...)
	authSvc := auth.NewService(st, cfg.JWTSecret, cfg.TokenTTL)

	server := httpapp.NewServer(svc, authSvc, rate.NewMemory(), cfg,
		httpapp.WithLogger(logger),
		httpapp.WithBuildInfo(httpapp.BuildInfo{Version: version, Commit: commit, BuildTime: buildTime}),
	)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("mindmeld listening", "addr", cfg.Addr, "store", cfg.Store, "cache", cfg.Cache)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func newLogger(cfg config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.Store {
	case "postgres":
		return postgres.Open(ctx, cfg.PostgresDSN)
	case "memory":
		return memory.New(), nil
	default:
		return sqlite.Open(cfg.DBPath)
	}
}

// openCache returns the configured cache. An unreachable Redis is reported
// but not fatal: reads fall back to the store until it comes back.
func openCache(ctx context.Context, cfg config.Config, logger *slog.Logger) (cache.Cache, func()) {
	if cfg.Cache != "redis" {
		return cache.NewMemory(), func() {}
	}
	r := cache.NewRedis(cache.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TTL:      cfg.Redis.TTL,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := r.Ping(pingCtx); err != nil {
		logger.Warn("redis unreachable, serving from store", "addr", cfg.Redis.Addr, "error", err)
	}
	return r, func() { _ = r.Close() }
}
