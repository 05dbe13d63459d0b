package httpapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mindmeld-app/mindmeld/internal/articles"
	"github.com/mindmeld-app/mindmeld/internal/auth"
	"github.com/mindmeld-app/mindmeld/internal/config"
	"github.com/mindmeld-app/mindmeld/internal/model"
	"github.com/mindmeld-app/mindmeld/internal/rate"
	"github.com/mindmeld-app/mindmeld/internal/store"
)

// BuildInfo is reported by /api/version.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithBuildInfo(info BuildInfo) Option {
	return func(s *Server) {
		s.build = info
	}
}

type Server struct {
	articles *articles.Service
	auth     *auth.Service
	limiter  rate.Limiter
	cfg      config.Config
	build    BuildInfo
	logger   *slog.Logger
}

func NewServer(svc *articles.Service, authSvc *auth.Service, limiter rate.Limiter, cfg config.Config, opts ...Option) *Server {
	s := &Server{
		articles: svc,
		auth:     authSvc,
		limiter:  limiter,
		cfg:      cfg,
		build:    BuildInfo{Version: "dev"},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.logRequests(http.HandlerFunc(s.route)).ServeHTTP(w, r)
}

func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/healthz":
		if r.Method == http.MethodGet {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
			return
		}
	case strings.HasPrefix(r.URL.Path, "/api/"):
		s.handleAPI(w, r)
		return
	}
	notFound(w)
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api")
	segments := splitPath(path)

	switch {
	case len(segments) == 1 && segments[0] == "articles":
		if r.Method == http.MethodGet {
			s.handleListArticles(w, r)
			return
		}
		if r.Method == http.MethodPost {
			s.handleCreateArticle(w, r)
			return
		}
	case len(segments) == 2 && segments[0] == "articles" && segments[1] == "filter":
		if r.Method == http.MethodPost {
			s.handleFilterArticles(w, r)
			return
		}
	case len(segments) == 5 && segments[0] == "articles" && segments[1] == "topic" && segments[3] == "page":
		if r.Method == http.MethodGet {
			s.handleTopicPage(w, r, segments[2], segments[4])
			return
		}
	case len(segments) == 2 && segments[0] == "articles":
		if r.Method == http.MethodGet {
			s.handleGetArticle(w, r, segments[1])
			return
		}
		if r.Method == http.MethodPut {
			s.handleUpdateArticle(w, r, segments[1])
			return
		}
		if r.Method == http.MethodDelete {
			s.handleDeleteArticle(w, r, segments[1])
			return
		}
	case len(segments) == 3 && segments[0] == "articles" && (segments[1] == "liked" || segments[1] == "disliked"):
		// Older clients vote through /articles/liked/{id} and /articles/disliked/{id}.
		if r.Method == http.MethodPost {
			d := model.Like
			if segments[1] == "disliked" {
				d = model.Dislike
			}
			s.handleVote(w, r, segments[2], d)
			return
		}
	case len(segments) == 3 && segments[0] == "articles" && segments[2] == "like":
		if r.Method == http.MethodPost {
			s.handleVote(w, r, segments[1], model.Like)
			return
		}
	case len(segments) == 3 && segments[0] == "articles" && segments[2] == "dislike":
		if r.Method == http.MethodPost {
			s.handleVote(w, r, segments[1], model.Dislike)
			return
		}
	case len(segments) == 2 && segments[0] == "auth" && segments[1] == "login":
		if r.Method == http.MethodPost {
			s.handleLogin(w, r)
			return
		}
	case len(segments) == 1 && segments[0] == "version":
		if r.Method == http.MethodGet {
			s.handleVersion(w, r)
			return
		}
	}

	notFound(w)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.build)
}

// handleLogin godoc
//
//	@Summary		Log in
//	@Description	Exchange email and password for a bearer token
//	@Tags			Authentication
//	@Accept			json
//	@Produce		json
//	@Param			request	body		object{email=string,password=string}	true	"Credentials"
//	@Success		200		{object}	map[string]interface{}					"Token, expiry and account"
//	@Failure		401		{object}	map[string]string						"Invalid credentials"
//	@Failure		429		{object}	map[string]string						"Rate limited"
//	@Router			/api/auth/login [post]
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, "login", s.cfg.RateLimits.LoginPerMinute, nil) {
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, errors.New("email and password are required"))
		return
	}
	token, account, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, err)
		case errors.Is(err, auth.ErrAccountBlocked):
			writeError(w, http.StatusForbidden, err)
		default:
			s.writeServiceError(w, r, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token.Value,
		"expires_at": token.ExpiresAt,
		"account":    account,
	})
}

// allowRateLimit counts the request against the client IP and, when the
// caller is known, against its user id.
func (s *Server) allowRateLimit(w http.ResponseWriter, r *http.Request, action string, limit int, identity *model.Identity) bool {
	if limit <= 0 {
		return true
	}
	ipKey := fmt.Sprintf("%s:ip:%s", action, s.clientIP(r))
	if ok, retry := s.limiter.Allow(ipKey, limit, time.Minute); !ok {
		writeRateLimit(w, retry)
		return false
	}
	if identity != nil && identity.UserID != "" {
		userKey := fmt.Sprintf("%s:user:%s", action, identity.UserID)
		if ok, retry := s.limiter.Allow(userKey, limit, time.Minute); !ok {
			writeRateLimit(w, retry)
			return false
		}
	}
	return true
}

func (s *Server) requireAuth(w http.ResponseWriter, r *http.Request) (model.Identity, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
		return model.Identity{}, false
	}
	bearer := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	identity, err := s.auth.Authenticate(r.Context(), bearer)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenExpired):
			writeError(w, http.StatusUnauthorized, err)
		case errors.Is(err, auth.ErrAccountBlocked):
			writeError(w, http.StatusForbidden, err)
		default:
			s.writeServiceError(w, r, err)
		}
		return model.Identity{}, false
	}
	return identity, true
}

// requireAuthor authenticates the caller and requires a role that may write
// articles.
func (s *Server) requireAuthor(w http.ResponseWriter, r *http.Request) (model.Identity, bool) {
	identity, ok := s.requireAuth(w, r)
	if !ok {
		return model.Identity{}, false
	}
	if !auth.CanAuthor(identity.Role) {
		writeError(w, http.StatusForbidden, errors.New("expert or admin role required"))
		return model.Identity{}, false
	}
	return identity, true
}

func (s *Server) clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// writeServiceError maps service and store errors to a status code. Details
// of server-side failures are logged, not returned.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, articles.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, articles.ErrForbidden):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, store.ErrUnavailable):
		s.requestLogger(r).ErrorContext(r.Context(), "backend unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, errors.New("service unavailable"))
	default:
		s.requestLogger(r).ErrorContext(r.Context(), "request failed", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal server error"))
	}
}

func readJSON(body io.ReadCloser, dest any) error {
	defer body.Close()
	dec := json.NewDecoder(io.LimitReader(body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func writeRateLimit(w http.ResponseWriter, retry time.Duration) {
	w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())))
	writeJSON(w, http.StatusTooManyRequests, map[string]any{
		"error":       "rate limit exceeded",
		"retry_after": int(retry.Seconds()),
	})
}

func notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, errors.New("not found"))
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
