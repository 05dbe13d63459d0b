// Package cache holds the shared collection cache that sits in front of the
// article store.
package cache

import (
	"context"
	"errors"

	"github.com/bytedance/sonic"

	"github.com/mindmeld-app/mindmeld/internal/model"
)

// ArticlesKey is the single key under which the full article collection is
// cached.
const ArticlesKey = "articles"

// ErrMiss is returned by Get when the key holds no value.
var ErrMiss = errors.New("cache miss")

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

func EncodeArticles(articles []model.Article) ([]byte, error) {
	if articles == nil {
		articles = []model.Article{}
	}
	return sonic.Marshal(articles)
}

func DecodeArticles(data []byte) ([]model.Article, error) {
	var articles []model.Article
	if err := sonic.Unmarshal(data, &articles); err != nil {
		return nil, err
	}
	return articles, nil
}
