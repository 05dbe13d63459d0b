package articles

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/mindmeld-app/mindmeld/internal/model"
	"github.com/mindmeld-app/mindmeld/internal/store"
)

const (
	MatchTitle = "title"
	MatchTags  = "tags"

	SortOldestFirst = "oldest first"
	SortMostLiked   = "most liked"
)

// FilterQuery selects articles of one topic whose title or tags contain
// Search, case-insensitively.
type FilterQuery struct {
	Search  string `json:"searchinput"`
	BasedOn string `json:"based_on"`
	Option  string `json:"filter_option"`
	Topic   string `json:"topic"`
}

// Filter reads the topic from the store, keeps matching articles and orders
// them by Option: newest first unless "oldest first" or "most liked".
func (s *Service) Filter(ctx context.Context, q FilterQuery) ([]model.Article, error) {
	topic := normalizeTopic(q.Topic)
	if topic == "" {
		return nil, fmt.Errorf("%w: topic is required", ErrInvalidInput)
	}
	basedOn := strings.ToLower(strings.TrimSpace(q.BasedOn))
	if basedOn != MatchTitle && basedOn != MatchTags {
		return nil, fmt.Errorf("%w: based_on must be %q or %q", ErrInvalidInput, MatchTitle, MatchTags)
	}
	option := strings.ToLower(strings.TrimSpace(q.Option))
	switch option {
	case "", SortOldestFirst, SortMostLiked:
	default:
		return nil, fmt.Errorf("%w: unknown filter option %q", ErrInvalidInput, q.Option)
	}

	articles, err := s.store.ListArticles(ctx, store.ArticleFilter{Topic: topic})
	if err != nil {
		return nil, storeError(err)
	}

	search := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]model.Article, 0, len(articles))
	for _, a := range articles {
		if matches(a, basedOn, search) {
			out = append(out, a)
		}
	}

	switch option {
	case SortOldestFirst:
		slices.SortStableFunc(out, func(a, b model.Article) int {
			return a.DateOfPublish.Compare(b.DateOfPublish)
		})
	case SortMostLiked:
		slices.SortStableFunc(out, func(a, b model.Article) int {
			return cmp.Compare(b.Likes, a.Likes)
		})
	}
	return out, nil
}

func matches(a model.Article, basedOn, search string) bool {
	if basedOn == MatchTitle {
		return strings.Contains(strings.ToLower(a.Title), search)
	}
	for _, tag := range a.Tags {
		if strings.Contains(strings.ToLower(tag), search) {
			return true
		}
	}
	return false
}
