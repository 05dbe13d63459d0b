package httpapp

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/mindmeld-app/mindmeld/internal/articles"
	"github.com/mindmeld-app/mindmeld/internal/model"
)

type articleRequest struct {
	Topic         string     `json:"topic"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	AuthorName    string     `json:"author_name"`
	DateOfPublish *time.Time `json:"date_of_publish"`
	Tags          []string   `json:"tags"`
	ArticleLink   string     `json:"article_link"`
	ImageLink     string     `json:"image_link"`
}

func (req articleRequest) toArticle(author model.Identity) model.Article {
	a := model.Article{
		Topic:       req.Topic,
		Title:       req.Title,
		Content:     req.Content,
		AuthorName:  req.AuthorName,
		AuthorID:    author.UserID,
		Tags:        req.Tags,
		ArticleLink: req.ArticleLink,
		ImageLink:   req.ImageLink,
	}
	if a.AuthorName == "" {
		a.AuthorName = author.Name
	}
	if req.DateOfPublish != nil {
		a.DateOfPublish = req.DateOfPublish.UTC()
	}
	return a
}

// handleListArticles godoc
//
//	@Summary		List articles
//	@Description	Get every article, newest first
//	@Tags			Articles
//	@Produce		json
//	@Success		200	{array}		model.Article
//	@Failure		503	{object}	map[string]string	"Store unavailable"
//	@Router			/api/articles [get]
func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	list, err := s.articles.GetAll(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleGetArticle godoc
//
//	@Summary		Get an article
//	@Tags			Articles
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Article ID"
//	@Success		200	{object}	model.Article
//	@Failure		404	{object}	map[string]string	"Article not found"
//	@Router			/api/articles/{id} [get]
func (s *Server) handleGetArticle(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := s.requireAuth(w, r); !ok {
		return
	}
	article, err := s.articles.GetByID(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, article)
}

// handleTopicPage godoc
//
//	@Summary		List a topic page
//	@Description	Get one page of articles in a topic, newest first
//	@Tags			Articles
//	@Produce		json
//	@Security		BearerAuth
//	@Param			topic	path		string	true	"Topic"
//	@Param			page	path		int		true	"Page, starting at 1"
//	@Success		200		{array}		model.Article
//	@Failure		400		{object}	map[string]string	"Invalid page"
//	@Router			/api/articles/topic/{topic}/page/{page} [get]
func (s *Server) handleTopicPage(w http.ResponseWriter, r *http.Request, topic, pageStr string) {
	if _, ok := s.requireAuth(w, r); !ok {
		return
	}
	page, err := strconv.Atoi(pageStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid page"))
		return
	}
	list, err := s.articles.ListByTopicPage(r.Context(), topic, page)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleFilterArticles godoc
//
//	@Summary		Search a topic
//	@Description	Match articles of a topic by title or tags, optionally ordered oldest first or by likes
//	@Tags			Articles
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		articles.FilterQuery	true	"Search"
//	@Success		200		{object}	map[string]interface{}	"Matching articles"
//	@Router			/api/articles/filter [post]
func (s *Server) handleFilterArticles(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAuth(w, r); !ok {
		return
	}
	var q articles.FilterQuery
	if err := readJSON(r.Body, &q); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	list, err := s.articles.Filter(r.Context(), q)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"filtered_data": list,
	})
}

// handleCreateArticle godoc
//
//	@Summary		Create an article
//	@Tags			Articles
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		articleRequest	true	"Article"
//	@Success		201		{object}	model.Article
//	@Failure		400		{object}	map[string]string	"Validation error"
//	@Failure		403		{object}	map[string]string	"Expert or admin role required"
//	@Router			/api/articles [post]
func (s *Server) handleCreateArticle(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.requireAuthor(w, r)
	if !ok {
		return
	}
	if !s.allowRateLimit(w, r, "write", s.cfg.RateLimits.WritePerMinute, &identity) {
		return
	}
	var req articleRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	created, err := s.articles.Create(r.Context(), req.toArticle(identity))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleUpdateArticle godoc
//
//	@Summary		Update an article
//	@Description	Replace the content of an article. Likes and dislikes are kept.
//	@Tags			Articles
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string			true	"Article ID"
//	@Param			request	body		articleRequest	true	"Article"
//	@Success		200		{object}	model.Article
//	@Failure		404		{object}	map[string]string	"Article not found"
//	@Router			/api/articles/{id} [put]
func (s *Server) handleUpdateArticle(w http.ResponseWriter, r *http.Request, id string) {
	identity, ok := s.requireAuthor(w, r)
	if !ok {
		return
	}
	if !s.allowRateLimit(w, r, "write", s.cfg.RateLimits.WritePerMinute, &identity) {
		return
	}
	var req articleRequest
	if err := readJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	article := req.toArticle(identity)
	article.ID = id
	updated, err := s.articles.Update(r.Context(), article)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteArticle godoc
//
//	@Summary		Delete an article
//	@Description	Admins may delete any article, experts only their own.
//	@Tags			Articles
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Article ID"
//	@Success		200	{object}	map[string]string	"Success message"
//	@Failure		403	{object}	map[string]string	"Forbidden"
//	@Failure		404	{object}	map[string]string	"Article not found"
//	@Router			/api/articles/{id} [delete]
func (s *Server) handleDeleteArticle(w http.ResponseWriter, r *http.Request, id string) {
	identity, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	if !s.allowRateLimit(w, r, "write", s.cfg.RateLimits.WritePerMinute, &identity) {
		return
	}
	if err := s.articles.Delete(r.Context(), id, identity); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "article deleted"})
}

// handleVote godoc
//
//	@Summary		Like or dislike an article
//	@Description	Records the caller's vote. Repeating a vote changes nothing; voting the other way moves it.
//	@Tags			Votes
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Article ID"
//	@Success		200	{object}	articles.VoteResult
//	@Failure		404	{object}	map[string]string	"Article not found"
//	@Router			/api/articles/{id}/like [post]
//	@Router			/api/articles/{id}/dislike [post]
//	@Router			/api/articles/liked/{id} [post]
//	@Router			/api/articles/disliked/{id} [post]
func (s *Server) handleVote(w http.ResponseWriter, r *http.Request, id string, d model.Direction) {
	identity, ok := s.requireAuth(w, r)
	if !ok {
		return
	}
	if !s.allowRateLimit(w, r, "vote", s.cfg.RateLimits.VotePerMinute, &identity) {
		return
	}
	result, err := s.articles.Vote(r.Context(), id, identity.UserID, d)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
