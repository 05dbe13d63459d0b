package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Tech news</title>
  <item>
    <title>Chips get smaller</title>
    <link>https://news.example.com/chips</link>
    <guid>chips-1</guid>
    <description>&lt;p&gt;Transistors   shrink &lt;b&gt;again&lt;/b&gt;&lt;/p&gt;</description>
    <author>reporter@example.com (Ada Writer)</author>
    <category>hardware</category>
    <category>technology</category>
    <pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
    <enclosure url="https://news.example.com/chips.jpg" type="image/jpeg" length="100"/>
  </item>
  <item>
    <title>Undated item</title>
    <link>https://news.example.com/undated</link>
  </item>
</channel>
</rss>`

func TestFeedFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(testFeed))
	}))
	defer srv.Close()

	fixed := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	f := NewFeedFetcher(srv.URL, "news_updates")
	f.now = func() time.Time { return fixed }

	articles, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(articles))
	}

	first := articles[0]
	if first.Title != "Chips get smaller" || first.Topic != "news_updates" {
		t.Fatalf("unexpected article: %+v", first)
	}
	if first.Content != "Transistors shrink again" {
		t.Fatalf("unexpected content %q", first.Content)
	}
	if first.ArticleLink != "https://news.example.com/chips" || first.ImageLink != "https://news.example.com/chips.jpg" {
		t.Fatalf("unexpected links: %+v", first)
	}
	if len(first.Tags) != 2 || first.Tags[0] != "hardware" {
		t.Fatalf("unexpected tags: %v", first.Tags)
	}
	if first.DateOfPublish.Year() != 2006 {
		t.Fatalf("unexpected publish date: %v", first.DateOfPublish)
	}
	if first.ID == "" || first.ID == articles[1].ID {
		t.Fatalf("expected distinct ids, got %q and %q", first.ID, articles[1].ID)
	}

	if !articles[1].DateOfPublish.Equal(fixed) {
		t.Fatalf("undated item should use fetch time, got %v", articles[1].DateOfPublish)
	}
}

func TestFeedFetcherError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := NewFeedFetcher(srv.URL, "news_updates").Fetch(context.Background()); err == nil {
		t.Fatalf("expected error for failing feed")
	}
}
