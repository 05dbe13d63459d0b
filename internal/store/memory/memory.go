// Package memory is an in-process store used for development and tests.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mindmeld-app/mindmeld/internal/engagement"
	"github.com/mindmeld-app/mindmeld/internal/model"
	"github.com/mindmeld-app/mindmeld/internal/store"
)

type Store struct {
	mu       sync.Mutex
	articles map[string]model.Article
	accounts map[string]model.Account
	byEmail  map[string]string
}

func New() *Store {
	return &Store{
		articles: make(map[string]model.Article),
		accounts: make(map[string]model.Account),
		byEmail:  make(map[string]string),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) CreateArticle(ctx context.Context, article *model.Article) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	a := cloneArticle(*article)
	a.ID = store.NewID()
	a.Likes, a.Dislikes = 0, 0
	a.LikedUserIDs, a.DislikedUserIDs = []string{}, []string{}
	if a.Tags == nil {
		a.Tags = []string{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.articles[a.ID] = a
	return a.ID, nil
}

func (s *Store) GetArticle(ctx context.Context, id string) (model.Article, error) {
	if err := ctx.Err(); err != nil {
		return model.Article{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.articles[id]
	if !ok {
		return model.Article{}, store.ErrNotFound
	}
	return cloneArticle(a), nil
}

func (s *Store) ListArticles(ctx context.Context, filter store.ArticleFilter) ([]model.Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	out := make([]model.Article, 0, len(s.articles))
	for _, a := range s.articles {
		if filter.Topic != "" && a.Topic != filter.Topic {
			continue
		}
		out = append(out, cloneArticle(a))
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b model.Article) int {
		if c := b.DateOfPublish.Compare(a.DateOfPublish); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return out, nil
}

func (s *Store) UpdateArticle(ctx context.Context, article *model.Article) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.articles[article.ID]
	if !ok {
		return store.ErrNotFound
	}
	cur.Topic = article.Topic
	cur.Title = article.Title
	cur.Content = article.Content
	cur.DateOfPublish = article.DateOfPublish
	cur.Tags = slices.Clone(article.Tags)
	if cur.Tags == nil {
		cur.Tags = []string{}
	}
	cur.ArticleLink = article.ArticleLink
	cur.ImageLink = article.ImageLink
	s.articles[cur.ID] = cur
	return nil
}

func (s *Store) DeleteArticle(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.articles[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.articles, id)
	return nil
}

func (s *Store) ApplyVote(ctx context.Context, id, userID string, t engagement.Transition) (model.Article, error) {
	if !t.Valid() {
		return model.Article{}, fmt.Errorf("invalid vote transition %q -> %q", t.RemoveFrom, t.AddTo)
	}
	if err := ctx.Err(); err != nil {
		return model.Article{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.articles[id]
	if !ok {
		return model.Article{}, store.ErrNotFound
	}
	next, _ := engagement.Apply(cur, userID, t.AddTo)
	s.articles[id] = next
	return cloneArticle(next), nil
}

func (s *Store) CreateAccount(ctx context.Context, account *model.Account) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[account.Email]; ok {
		return "", store.ErrDuplicateEmail
	}
	a := *account
	a.ID = store.NewID()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	s.accounts[a.ID] = a
	s.byEmail[a.Email] = a.ID
	return a.ID, nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (model.Account, error) {
	if err := ctx.Err(); err != nil {
		return model.Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return model.Account{}, store.ErrNotFound
	}
	return a, nil
}

func (s *Store) FindAccountByEmail(ctx context.Context, email string) (model.Account, error) {
	if err := ctx.Err(); err != nil {
		return model.Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[email]
	if !ok {
		return model.Account{}, store.ErrNotFound
	}
	return s.accounts[id], nil
}

func cloneArticle(a model.Article) model.Article {
	a.Tags = slices.Clone(a.Tags)
	a.LikedUserIDs = slices.Clone(a.LikedUserIDs)
	a.DislikedUserIDs = slices.Clone(a.DislikedUserIDs)
	return a
}
