package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "MINDMELD_"

type Config struct {
	Addr        string
	Store       string
	DBPath      string
	PostgresDSN string
	Cache       string
	Redis       Redis
	JWTSecret   string
	TokenTTL    time.Duration
	PageSize    int
	News        News
	RateLimits  RateLimits
	LogLevel    slog.Level
}

type Redis struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type News struct {
	FeedURL string
	Topic   string
}

type RateLimits struct {
	WritePerMinute int
	VotePerMinute  int
	LoginPerMinute int
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first, and a YAML file named by MINDMELD_CONFIG supplies
// defaults for keys the environment leaves unset.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}
	src := source{}
	if path := os.Getenv(envPrefix + "CONFIG"); path != "" {
		file, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		src.file = file
	}

	addr := src.envString("MINDMELD_ADDR", "")
	if addr == "" {
		if port := os.Getenv("PORT"); port != "" {
			addr = ":" + port
		} else {
			addr = ":8080"
		}
	}
	cfg := Config{
		Addr:        addr,
		Store:       strings.ToLower(src.envString("MINDMELD_STORE", "sqlite")),
		DBPath:      src.envString("MINDMELD_DB", "mindmeld.db"),
		PostgresDSN: src.envString("MINDMELD_POSTGRES_DSN", ""),
		Cache:       strings.ToLower(src.envString("MINDMELD_CACHE", "memory")),
		Redis: Redis{
			Addr:     src.envString("MINDMELD_REDIS_ADDR", "localhost:6379"),
			Password: src.envString("MINDMELD_REDIS_PASSWORD", ""),
			DB:       src.envInt("MINDMELD_REDIS_DB", 0),
			TTL:      src.envDuration("MINDMELD_CACHE_TTL", 0),
		},
		JWTSecret: src.envString("MINDMELD_JWT_SECRET", "dev-jwt-secret"),
		TokenTTL:  src.envDuration("MINDMELD_TOKEN_TTL", 24*time.Hour),
		PageSize:  src.envInt("MINDMELD_PAGE_SIZE", 9),
		News: News{
			FeedURL: src.envString("MINDMELD_NEWS_FEED_URL", ""),
			Topic:   src.envString("MINDMELD_NEWS_TOPIC", "news_updates"),
		},
		RateLimits: RateLimits{
			WritePerMinute: src.envInt("MINDMELD_RL_WRITE_PER_MIN", 10),
			VotePerMinute:  src.envInt("MINDMELD_RL_VOTE_PER_MIN", 120),
			LoginPerMinute: src.envInt("MINDMELD_RL_LOGIN_PER_MIN", 20),
		},
	}

	level := src.envString("MINDMELD_LOG_LEVEL", "info")
	if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
		return Config{}, fmt.Errorf("MINDMELD_LOG_LEVEL: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Store {
	case "sqlite", "memory":
	case "postgres":
		if c.PostgresDSN == "" {
			return errors.New("MINDMELD_POSTGRES_DSN is required when MINDMELD_STORE=postgres")
		}
	default:
		return fmt.Errorf("MINDMELD_STORE: unknown store %q", c.Store)
	}
	switch c.Cache {
	case "redis", "memory":
	default:
		return fmt.Errorf("MINDMELD_CACHE: unknown cache %q", c.Cache)
	}
	if c.PageSize < 1 {
		return fmt.Errorf("MINDMELD_PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	return nil
}

// readFile loads a flat YAML mapping. Keys are the environment names without
// the MINDMELD_ prefix, in any case: "redis_addr: cache:6379".
func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		out[strings.ToLower(k)] = fmt.Sprint(v)
	}
	return out, nil
}

type source struct {
	file map[string]string
}

func (s source) lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.file[strings.ToLower(strings.TrimPrefix(key, envPrefix))]
}

func (s source) envString(key, def string) string {
	if v := s.lookup(key); v != "" {
		return v
	}
	return def
}

func (s source) envInt(key string, def int) int {
	if v := s.lookup(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func (s source) envDuration(key string, def time.Duration) time.Duration {
	if v := s.lookup(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
