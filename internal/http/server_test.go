package httpapp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mindmeld-app/mindmeld/internal/articles"
	"github.com/mindmeld-app/mindmeld/internal/auth"
	"github.com/mindmeld-app/mindmeld/internal/cache"
	"github.com/mindmeld-app/mindmeld/internal/config"
	"github.com/mindmeld-app/mindmeld/internal/model"
	"github.com/mindmeld-app/mindmeld/internal/store"
	"github.com/mindmeld-app/mindmeld/internal/store/memory"
)

type allowAllLimiter struct{}

func (a allowAllLimiter) Allow(key string, limit int, window time.Duration) (bool, time.Duration) {
	return true, 0
}

func newMemoryServer(t *testing.T) *Server {
	t.Helper()
	st := memory.New()
	logger := slog.New(slog.DiscardHandler)
	svc := articles.New(st, cache.NewMemory(), articles.WithLogger(logger))
	return NewServer(svc, auth.NewService(st, "secret", time.Hour), allowAllLimiter{}, config.Config{},
		WithLogger(logger), WithBuildInfo(BuildInfo{Version: "1.2.3", Commit: "abc"}))
}

func TestHealthAndVersion(t *testing.T) {
	server := newMemoryServer(t)

	resp := httptest.NewRecorder()
	server.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	server.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/version", nil))
	var info BuildInfo
	if err := json.Unmarshal(resp.Body.Bytes(), &info); err != nil {
		t.Fatalf("json parse: %v", err)
	}
	if info.Version != "1.2.3" || info.Commit != "abc" {
		t.Fatalf("unexpected version payload: %+v", info)
	}
}

func TestRequestID(t *testing.T) {
	server := newMemoryServer(t)

	resp := httptest.NewRecorder()
	server.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/articles", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if resp.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected generated request id")
	}
	if body := resp.Body.String(); body != "[]\n" {
		t.Fatalf("expected empty JSON array, got %q", body)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/articles", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	resp = httptest.NewRecorder()
	server.ServeHTTP(resp, req)
	if got := resp.Header().Get("X-Request-Id"); got != "abc-123" {
		t.Fatalf("expected caller request id echoed, got %q", got)
	}
}

func TestUnknownRoutes(t *testing.T) {
	server := newMemoryServer(t)
	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodGet, "/"},
		{http.MethodGet, "/api/unknown"},
		{http.MethodPatch, "/api/articles/abc"},
		{http.MethodGet, "/api/articles/abc/like"},
		{http.MethodPost, "/healthz"},
	} {
		resp := httptest.NewRecorder()
		server.ServeHTTP(resp, httptest.NewRequest(tc.method, tc.path, nil))
		if resp.Code != http.StatusNotFound {
			t.Fatalf("%s %s: expected 404, got %d", tc.method, tc.path, resp.Code)
		}
	}
}

func TestWriteServiceErrorStatus(t *testing.T) {
	server := newMemoryServer(t)
	for _, tc := range []struct {
		err  error
		want int
	}{
		{store.ErrNotFound, http.StatusNotFound},
		{articles.ErrInvalidInput, http.StatusBadRequest},
		{articles.ErrForbidden, http.StatusForbidden},
		{store.ErrConflict, http.StatusConflict},
		{store.ErrUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	} {
		resp := httptest.NewRecorder()
		server.writeServiceError(resp, httptest.NewRequest(http.MethodGet, "/", nil), tc.err)
		if resp.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, resp.Code)
		}
		var payload map[string]string
		if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil || payload["error"] == "" {
			t.Fatalf("%v: expected error payload, got %q", tc.err, resp.Body.String())
		}
	}
}

func TestLoginValidation(t *testing.T) {
	server := newMemoryServer(t)
	for _, body := range []string{`{`, `{"email":"a@example.com"}`, `{"email":"a@example.com","password":"x","extra":1}`} {
		resp := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
		server.ServeHTTP(resp, req)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, resp.Code)
		}
	}
}

func TestLegacyVoteRoutes(t *testing.T) {
	st := memory.New()
	logger := slog.New(slog.DiscardHandler)
	authSvc := auth.NewService(st, "secret", time.Hour)
	server := NewServer(articles.New(st, cache.NewMemory(), articles.WithLogger(logger)), authSvc, allowAllLimiter{}, config.Config{}, WithLogger(logger))
	ctx := context.Background()

	account, err := authSvc.Register(ctx, "Reader", "reader@example.com", "longenough", model.RoleUser)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	token, err := authSvc.Issue(account)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	id, err := st.CreateArticle(ctx, &model.Article{Topic: "health", Title: "T", Content: "C", DateOfPublish: time.Now()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for _, tc := range []struct {
		path string
		want articles.VoteResult
	}{
		{"/api/articles/liked/" + id, articles.VoteResult{Likes: 1}},
		{"/api/articles/disliked/" + id, articles.VoteResult{Dislikes: 1}},
	} {
		req := httptest.NewRequest(http.MethodPost, tc.path, nil)
		req.Header.Set("Authorization", "Bearer "+token.Value)
		resp := httptest.NewRecorder()
		server.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", tc.path, resp.Code, resp.Body.String())
		}
		var got articles.VoteResult
		if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil {
			t.Fatalf("json parse: %v", err)
		}
		if got != tc.want {
			t.Fatalf("%s: expected %+v, got %+v", tc.path, tc.want, got)
		}
	}
}
