// Package ingest reads articles for externally sourced topics from RSS and
// Atom feeds. Fetched articles are served as-is and never stored.
package ingest

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/mindmeld-app/mindmeld/internal/model"
)

type Fetcher interface {
	Fetch(ctx context.Context) ([]model.Article, error)
}

type FeedFetcher struct {
	url    string
	topic  string
	parser *gofeed.Parser
	now    func() time.Time
}

func NewFeedFetcher(url, topic string) *FeedFetcher {
	return &FeedFetcher{url: url, topic: topic, parser: gofeed.NewParser(), now: time.Now}
}

func (f *FeedFetcher) Fetch(ctx context.Context) ([]model.Article, error) {
	feed, err := f.parser.ParseURLWithContext(f.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", f.url, err)
	}

	now := f.now()
	articles := make([]model.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		pub := now
		if item.PublishedParsed != nil {
			pub = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			pub = *item.UpdatedParsed
		}

		content := item.Description
		if content == "" {
			content = item.Content
		}

		var author string
		if item.Author != nil {
			author = item.Author.Name
		} else if len(item.Authors) > 0 && item.Authors[0] != nil {
			author = item.Authors[0].Name
		}

		var image string
		if item.Image != nil {
			image = item.Image.URL
		} else {
			for _, enc := range item.Enclosures {
				if enc != nil && strings.HasPrefix(enc.Type, "image/") {
					image = enc.URL
					break
				}
			}
		}

		tags := item.Categories
		if tags == nil {
			tags = []string{}
		}

		articles = append(articles, model.Article{
			ID:              articleID(item),
			Topic:           f.topic,
			Title:           item.Title,
			Content:         stripHTML(content),
			AuthorName:      author,
			DateOfPublish:   pub.UTC(),
			Tags:            tags,
			ArticleLink:     item.Link,
			ImageLink:       image,
			LikedUserIDs:    []string{},
			DislikedUserIDs: []string{},
		})
	}
	return articles, nil
}

func articleID(item *gofeed.Item) string {
	key := item.GUID
	if key == "" {
		key = item.Link
	}
	h := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", h[:12])
}

func stripHTML(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
