// Package articles serves article reads through the shared collection cache
// and applies article mutations and votes against the store.
//
// The whole collection is cached under one key. Every mutation deletes that
// key after the store has acknowledged the write, and a fill that started
// before an invalidation never writes its result back.
package articles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mindmeld-app/mindmeld/internal/cache"
	"github.com/mindmeld-app/mindmeld/internal/engagement"
	"github.com/mindmeld-app/mindmeld/internal/ingest"
	"github.com/mindmeld-app/mindmeld/internal/model"
	"github.com/mindmeld-app/mindmeld/internal/store"
)

const (
	DefaultPageSize  = 9
	DefaultNewsTopic = "news_updates"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
)

// VoteResult is what a caller sees after a vote.
type VoteResult struct {
	Likes    int `json:"likes"`
	Dislikes int `json:"dislikes"`
}

// Option mutates service configuration.
type Option func(*Service)

// WithLogger injects a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPageSize sets how many articles a topic page holds.
func WithPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithNewsFeed serves topic from fetcher instead of the store.
func WithNewsFeed(topic string, fetcher ingest.Fetcher) Option {
	return func(s *Service) {
		if topic != "" && fetcher != nil {
			s.newsTopic = normalizeTopic(topic)
			s.news = fetcher
		}
	}
}

type Service struct {
	store     store.ArticleStore
	cache     cache.Cache
	logger    *slog.Logger
	pageSize  int
	newsTopic string
	news      ingest.Fetcher
	now       func() time.Time

	group singleflight.Group

	// fillMu orders cache fills against invalidations. generation counts
	// invalidations; a fill only writes when it is unchanged.
	fillMu     sync.Mutex
	generation uint64
}

func New(st store.ArticleStore, c cache.Cache, opts ...Option) *Service {
	s := &Service{
		store:    st,
		cache:    c,
		logger:   slog.Default(),
		pageSize: DefaultPageSize,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetAll returns the full collection, from the cache when populated.
func (s *Service) GetAll(ctx context.Context) ([]model.Article, error) {
	data, err := s.cache.Get(ctx, cache.ArticlesKey)
	switch {
	case err == nil:
		articles, decodeErr := cache.DecodeArticles(data)
		if decodeErr == nil {
			return articles, nil
		}
		s.logger.WarnContext(ctx, "discarding undecodable cache entry", "key", cache.ArticlesKey, "error", decodeErr)
	case errors.Is(err, cache.ErrMiss):
	default:
		s.logger.WarnContext(ctx, "cache read failed, using store", "key", cache.ArticlesKey, "error", err)
	}

	s.fillMu.Lock()
	gen := s.generation
	s.fillMu.Unlock()

	// Misses in the same generation share one store query.
	v, err, _ := s.group.Do(fmt.Sprintf("%s:%d", cache.ArticlesKey, gen), func() (any, error) {
		return s.fill(context.WithoutCancel(ctx), gen)
	})
	if err != nil {
		return nil, err
	}
	shared := v.([]model.Article)
	out := make([]model.Article, len(shared))
	copy(out, shared)
	return out, nil
}

func (s *Service) fill(ctx context.Context, gen uint64) ([]model.Article, error) {
	articles, err := s.store.ListArticles(ctx, store.ArticleFilter{})
	if err != nil {
		return nil, storeError(err)
	}
	if articles == nil {
		articles = []model.Article{}
	}
	data, err := cache.EncodeArticles(articles)
	if err != nil {
		s.logger.WarnContext(ctx, "encoding articles for cache failed", "error", err)
		return articles, nil
	}

	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	if s.generation != gen {
		s.logger.DebugContext(ctx, "skipping cache fill after invalidation", "key", cache.ArticlesKey)
		return articles, nil
	}
	if err := s.cache.Set(ctx, cache.ArticlesKey, data); err != nil {
		s.logger.WarnContext(ctx, "cache write failed", "key", cache.ArticlesKey, "error", err)
	}
	return articles, nil
}

// invalidate drops the cached collection. It runs after the store write it
// follows has been acknowledged and is not cancelled with the request.
func (s *Service) invalidate(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	s.fillMu.Lock()
	s.generation++
	err := s.cache.Delete(ctx, cache.ArticlesKey)
	s.fillMu.Unlock()
	if err != nil {
		s.logger.ErrorContext(ctx, "cache invalidation failed", "key", cache.ArticlesKey, "error", err)
	}
}

// GetByID looks id up inside the resolved collection.
func (s *Service) GetByID(ctx context.Context, id string) (model.Article, error) {
	articles, err := s.GetAll(ctx)
	if err != nil {
		return model.Article{}, err
	}
	for _, a := range articles {
		if a.ID == id {
			return a, nil
		}
	}
	return model.Article{}, store.ErrNotFound
}

// ListByTopicPage returns page (1-based) of the articles in topic, newest
// first. Store-backed topics bypass the cache and invalidate it afterwards.
func (s *Service) ListByTopicPage(ctx context.Context, topic string, page int) ([]model.Article, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: page must be at least 1", ErrInvalidInput)
	}
	topic = normalizeTopic(topic)
	if topic == "" {
		return nil, fmt.Errorf("%w: topic is required", ErrInvalidInput)
	}

	if s.news != nil && topic == s.newsTopic {
		articles, err := s.news.Fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: news feed: %v", store.ErrUnavailable, err)
		}
		return paginate(articles, page, s.pageSize), nil
	}

	defer s.invalidate(ctx)
	articles, err := s.store.ListArticles(ctx, store.ArticleFilter{Topic: topic})
	if err != nil {
		return nil, storeError(err)
	}
	return paginate(articles, page, s.pageSize), nil
}

func (s *Service) Create(ctx context.Context, article model.Article) (model.Article, error) {
	article.Topic = normalizeTopic(article.Topic)
	if err := validate(article); err != nil {
		return model.Article{}, err
	}
	if article.DateOfPublish.IsZero() {
		article.DateOfPublish = s.now().UTC()
	}
	id, err := s.store.CreateArticle(ctx, &article)
	if err != nil {
		return model.Article{}, storeError(err)
	}
	s.invalidate(ctx)

	created, err := s.store.GetArticle(ctx, id)
	if err != nil {
		return model.Article{}, storeError(err)
	}
	return created, nil
}

// Update rewrites the content of an existing article. Authorship, counters
// and voter sets are kept.
func (s *Service) Update(ctx context.Context, article model.Article) (model.Article, error) {
	if article.ID == "" {
		return model.Article{}, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	article.Topic = normalizeTopic(article.Topic)
	if err := validate(article); err != nil {
		return model.Article{}, err
	}
	if article.DateOfPublish.IsZero() {
		current, err := s.store.GetArticle(ctx, article.ID)
		if err != nil {
			return model.Article{}, storeError(err)
		}
		article.DateOfPublish = current.DateOfPublish
	}
	if err := s.store.UpdateArticle(ctx, &article); err != nil {
		return model.Article{}, storeError(err)
	}
	s.invalidate(ctx)

	updated, err := s.store.GetArticle(ctx, article.ID)
	if err != nil {
		return model.Article{}, storeError(err)
	}
	return updated, nil
}

// Delete removes an article. Admins may delete any article, others only
// their own.
func (s *Service) Delete(ctx context.Context, id string, by model.Identity) error {
	current, err := s.store.GetArticle(ctx, id)
	if err != nil {
		return storeError(err)
	}
	if by.Role != model.RoleAdmin && (current.AuthorID == "" || current.AuthorID != by.UserID) {
		return ErrForbidden
	}
	if err := s.store.DeleteArticle(ctx, id); err != nil {
		return storeError(err)
	}
	s.invalidate(ctx)
	return nil
}

// Vote records userID's vote on article id and returns the new counters.
func (s *Service) Vote(ctx context.Context, id, userID string, d model.Direction) (VoteResult, error) {
	if userID == "" {
		return VoteResult{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if !d.Valid() {
		return VoteResult{}, fmt.Errorf("%w: unknown vote direction %q", ErrInvalidInput, d)
	}
	article, err := s.store.ApplyVote(ctx, id, userID, engagement.Plan(d))
	if err != nil {
		return VoteResult{}, storeError(err)
	}
	s.invalidate(ctx)
	return VoteResult{Likes: article.Likes, Dislikes: article.Dislikes}, nil
}

func validate(a model.Article) error {
	switch {
	case a.Topic == "":
		return fmt.Errorf("%w: topic is required", ErrInvalidInput)
	case strings.TrimSpace(a.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	case strings.TrimSpace(a.Content) == "":
		return fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	return nil
}

func normalizeTopic(topic string) string {
	return strings.ToLower(strings.TrimSpace(topic))
}

func paginate(articles []model.Article, page, size int) []model.Article {
	start := (page - 1) * size
	if start >= len(articles) {
		return []model.Article{}
	}
	end := min(start+size, len(articles))
	return articles[start:end]
}

// storeError keeps not-found and context errors and reports everything else
// as the store being unavailable.
func storeError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}
