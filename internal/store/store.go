package store

import (
	"context"
	"errors"

	"github.com/mindmeld-app/mindmeld/internal/engagement"
	"github.com/mindmeld-app/mindmeld/internal/model"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrUnavailable    = errors.New("store unavailable")
	ErrConflict       = errors.New("conflict")
	ErrDuplicateEmail = errors.New("duplicate email")
)

type ArticleFilter struct {
	Topic string
}

type Store interface {
	ArticleStore
	AccountStore
	Close() error
}

type ArticleStore interface {
	CreateArticle(ctx context.Context, article *model.Article) (string, error)
	GetArticle(ctx context.Context, id string) (model.Article, error)
	ListArticles(ctx context.Context, filter ArticleFilter) ([]model.Article, error)
	// UpdateArticle rewrites the content fields of an article. Authorship,
	// counters and voter sets are left alone.
	UpdateArticle(ctx context.Context, article *model.Article) error
	DeleteArticle(ctx context.Context, id string) error
	// ApplyVote adds userID to the t.AddTo voter set and removes it from
	// t.RemoveFrom in one atomic operation, recomputes the counters from the
	// set sizes and returns the resulting article.
	ApplyVote(ctx context.Context, id, userID string, t engagement.Transition) (model.Article, error)
}

type AccountStore interface {
	CreateAccount(ctx context.Context, account *model.Account) (string, error)
	GetAccount(ctx context.Context, id string) (model.Account, error)
	FindAccountByEmail(ctx context.Context, email string) (model.Account, error)
}
