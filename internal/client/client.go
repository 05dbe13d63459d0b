// Package client provides a Go client for the MindMeld API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mindmeld-app/mindmeld/internal/model"
)

// Client is a MindMeld API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Token      string
	TokenExp   time.Time
}

// APIError is a non-success response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mindmeld api: %d %s", e.Status, e.Message)
}

// ArticleInput is the writable part of an article.
type ArticleInput struct {
	Topic         string     `json:"topic"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	AuthorName    string     `json:"author_name,omitempty"`
	DateOfPublish *time.Time `json:"date_of_publish,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
	ArticleLink   string     `json:"article_link,omitempty"`
	ImageLink     string     `json:"image_link,omitempty"`
}

type FilterQuery struct {
	Search  string `json:"searchinput"`
	BasedOn string `json:"based_on"`
	Option  string `json:"filter_option,omitempty"`
	Topic   string `json:"topic"`
}

type VoteResult struct {
	Likes    int `json:"likes"`
	Dislikes int `json:"dislikes"`
}

// New creates a new MindMeld client.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Login exchanges credentials for a token and keeps it on the client.
func (c *Client) Login(ctx context.Context, email, password string) (model.Account, error) {
	var result struct {
		Token     string        `json:"token"`
		ExpiresAt time.Time     `json:"expires_at"`
		Account   model.Account `json:"account"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &result); err != nil {
		return model.Account{}, err
	}
	c.Token = result.Token
	c.TokenExp = result.ExpiresAt
	return result.Account, nil
}

// IsAuthenticated returns true if the client has a valid token.
func (c *Client) IsAuthenticated() bool {
	return c.Token != "" && time.Now().Before(c.TokenExp)
}

func (c *Client) ListArticles(ctx context.Context) ([]model.Article, error) {
	var out []model.Article
	err := c.do(ctx, http.MethodGet, "/api/articles", nil, &out)
	return out, err
}

func (c *Client) GetArticle(ctx context.Context, id string) (model.Article, error) {
	var out model.Article
	err := c.do(ctx, http.MethodGet, "/api/articles/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) TopicPage(ctx context.Context, topic string, page int) ([]model.Article, error) {
	var out []model.Article
	path := "/api/articles/topic/" + url.PathEscape(topic) + "/page/" + strconv.Itoa(page)
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *Client) Filter(ctx context.Context, q FilterQuery) ([]model.Article, error) {
	var out struct {
		FilteredData []model.Article `json:"filtered_data"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/articles/filter", q, &out); err != nil {
		return nil, err
	}
	return out.FilteredData, nil
}

func (c *Client) CreateArticle(ctx context.Context, in ArticleInput) (model.Article, error) {
	var out model.Article
	err := c.do(ctx, http.MethodPost, "/api/articles", in, &out)
	return out, err
}

func (c *Client) UpdateArticle(ctx context.Context, id string, in ArticleInput) (model.Article, error) {
	var out model.Article
	err := c.do(ctx, http.MethodPut, "/api/articles/"+url.PathEscape(id), in, &out)
	return out, err
}

func (c *Client) DeleteArticle(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/articles/"+url.PathEscape(id), nil, nil)
}

func (c *Client) Like(ctx context.Context, id string) (VoteResult, error) {
	return c.vote(ctx, id, "like")
}

func (c *Client) Dislike(ctx context.Context, id string) (VoteResult, error) {
	return c.vote(ctx, id, "dislike")
}

func (c *Client) vote(ctx context.Context, id, direction string) (VoteResult, error) {
	var out VoteResult
	err := c.do(ctx, http.MethodPost, "/api/articles/"+url.PathEscape(id)+"/"+direction, nil, &out)
	return out, err
}

// do performs a request, authenticated when the client holds a token, and
// decodes a 2xx JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		apiErr := &APIError{Status: resp.StatusCode, Message: string(respBody)}
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
