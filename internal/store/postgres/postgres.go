// Package postgres implements the store on PostgreSQL through lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/mindmeld-app/mindmeld/internal/engagement"
	"github.com/mindmeld-app/mindmeld/internal/model"
	"github.com/mindmeld-app/mindmeld/internal/store"
)

const uniqueViolation = "23505"

type Store struct {
	db *sql.DB
}

func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := applySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

var migrations = []string{
	`
CREATE TABLE IF NOT EXISTS articles (
	id TEXT PRIMARY KEY,
	topic TEXT NOT NULL,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	author_name TEXT NOT NULL DEFAULT '',
	author_id TEXT NOT NULL DEFAULT '',
	date_of_publish TIMESTAMPTZ NOT NULL,
	tags TEXT[] NOT NULL DEFAULT '{}',
	article_link TEXT NOT NULL DEFAULT '',
	image_link TEXT NOT NULL DEFAULT '',
	likes INTEGER NOT NULL DEFAULT 0,
	dislikes INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_articles_topic ON articles(topic);
CREATE INDEX IF NOT EXISTS idx_articles_date ON articles(date_of_publish DESC);

CREATE TABLE IF NOT EXISTS article_voters (
	article_id TEXT NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
	user_id TEXT NOT NULL,
	direction TEXT NOT NULL CHECK (direction IN ('like', 'dislike')),
	seq BIGSERIAL,
	PRIMARY KEY (article_id, user_id, direction)
);

CREATE TABLE IF NOT EXISTS accounts (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	role TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	blocked BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL
);
`,
}

func applySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)`); err != nil {
		return err
	}
	var current int
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current); err != nil {
		return err
	}
	for i := current; i < len(migrations); i++ {
		if _, err := db.ExecContext(ctx, migrations[i]); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
		if _, err := db.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES ($1)`, i+1); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", i+1, err)
		}
	}
	return nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

const articleColumns = `id, topic, title, content, author_name, author_id, date_of_publish, tags, article_link, image_link, likes, dislikes`

func (s *Store) CreateArticle(ctx context.Context, article *model.Article) (string, error) {
	id := store.NewID()
	tags := article.Tags
	if tags == nil {
		tags = []string{}
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO articles (id, topic, title, content, author_name, author_id, date_of_publish, tags, article_link, image_link)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`, id, article.Topic, article.Title, article.Content, article.AuthorName, article.AuthorID,
		article.DateOfPublish, pq.Array(tags), article.ArticleLink, article.ImageLink)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) GetArticle(ctx context.Context, id string) (article model.Article, err error) {
	err = s.readTx(ctx, func(q querier) error {
		article, err = getArticle(ctx, q, id)
		return err
	})
	return article, err
}

// readTx runs fn in one transaction so an article row and its voter rows
// are read from the same state.
func (s *Store) readTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func getArticle(ctx context.Context, q querier, id string) (model.Article, error) {
	a, err := scanArticle(q.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = $1`, id))
	if err != nil {
		return model.Article{}, err
	}
	rows, err := q.QueryContext(ctx, `
SELECT article_id, user_id, direction FROM article_voters
WHERE article_id = $1
ORDER BY seq
`, id)
	if err != nil {
		return model.Article{}, err
	}
	voters, err := scanVoters(rows)
	if err != nil {
		return model.Article{}, err
	}
	attachVoters(&a, voters[id])
	return a, nil
}

func (s *Store) ListArticles(ctx context.Context, filter store.ArticleFilter) (articles []model.Article, err error) {
	err = s.readTx(ctx, func(q querier) error {
		articles, err = listArticles(ctx, q, filter)
		return err
	})
	return articles, err
}

func listArticles(ctx context.Context, q querier, filter store.ArticleFilter) ([]model.Article, error) {
	var (
		where string
		args  []any
	)
	if filter.Topic != "" {
		where = "WHERE topic = $1"
		args = append(args, filter.Topic)
	}
	rows, err := q.QueryContext(ctx, fmt.Sprintf(`
SELECT %s FROM articles
%s
ORDER BY date_of_publish DESC, id DESC
`, articleColumns, where), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		articles []model.Article
		ids      []string
	)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, a)
		ids = append(ids, a.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	if len(ids) == 0 {
		return articles, nil
	}

	vrows, err := q.QueryContext(ctx, `
SELECT article_id, user_id, direction FROM article_voters
WHERE article_id = ANY($1)
ORDER BY seq
`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	voters, err := scanVoters(vrows)
	if err != nil {
		return nil, err
	}
	for i := range articles {
		attachVoters(&articles[i], voters[articles[i].ID])
	}
	return articles, nil
}

func (s *Store) UpdateArticle(ctx context.Context, article *model.Article) error {
	tags := article.Tags
	if tags == nil {
		tags = []string{}
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE articles
SET topic = $1, title = $2, content = $3, date_of_publish = $4, tags = $5, article_link = $6, image_link = $7
WHERE id = $8
`, article.Topic, article.Title, article.Content,
		article.DateOfPublish, pq.Array(tags), article.ArticleLink, article.ImageLink, article.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteArticle(ctx context.Context, id string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM article_voters WHERE article_id = $1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = store.ErrNotFound
		return err
	}
	return tx.Commit()
}

// ApplyVote locks the article row so votes on one article run one at a time
// while votes on different articles proceed in parallel.
func (s *Store) ApplyVote(ctx context.Context, id, userID string, t engagement.Transition) (article model.Article, err error) {
	if !t.Valid() {
		return model.Article{}, fmt.Errorf("invalid vote transition %q -> %q", t.RemoveFrom, t.AddTo)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Article{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var locked string
	if err = tx.QueryRowContext(ctx, `SELECT id FROM articles WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = store.ErrNotFound
		}
		return model.Article{}, err
	}
	if _, err = tx.ExecContext(ctx, `
DELETE FROM article_voters WHERE article_id = $1 AND user_id = $2 AND direction = $3
`, id, userID, string(t.RemoveFrom)); err != nil {
		return model.Article{}, err
	}
	if _, err = tx.ExecContext(ctx, `
INSERT INTO article_voters (article_id, user_id, direction)
VALUES ($1, $2, $3)
ON CONFLICT DO NOTHING
`, id, userID, string(t.AddTo)); err != nil {
		return model.Article{}, err
	}
	if _, err = tx.ExecContext(ctx, `
UPDATE articles SET
	likes = (SELECT COUNT(*) FROM article_voters WHERE article_id = $1 AND direction = 'like'),
	dislikes = (SELECT COUNT(*) FROM article_voters WHERE article_id = $1 AND direction = 'dislike')
WHERE id = $1
`, id); err != nil {
		return model.Article{}, err
	}
	article, err = getArticle(ctx, tx, id)
	if err != nil {
		return model.Article{}, err
	}
	if err = tx.Commit(); err != nil {
		return model.Article{}, err
	}
	return article, nil
}

func (s *Store) CreateAccount(ctx context.Context, account *model.Account) (string, error) {
	id := store.NewID()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO accounts (id, name, email, role, password_hash, blocked, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`, id, account.Name, account.Email, string(account.Role), account.PasswordHash, account.Blocked, account.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return "", store.ErrDuplicateEmail
		}
		return "", err
	}
	return id, nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (model.Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx, `
SELECT id, name, email, role, password_hash, blocked, created_at FROM accounts WHERE id = $1
`, id))
}

func (s *Store) FindAccountByEmail(ctx context.Context, email string) (model.Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx, `
SELECT id, name, email, role, password_hash, blocked, created_at FROM accounts WHERE email = $1
`, email))
}

func scanArticle(scanner interface{ Scan(dest ...any) error }) (model.Article, error) {
	var a model.Article
	var tags pq.StringArray
	if err := scanner.Scan(&a.ID, &a.Topic, &a.Title, &a.Content, &a.AuthorName, &a.AuthorID,
		&a.DateOfPublish, &tags, &a.ArticleLink, &a.ImageLink, &a.Likes, &a.Dislikes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Article{}, store.ErrNotFound
		}
		return model.Article{}, err
	}
	a.DateOfPublish = a.DateOfPublish.UTC()
	a.Tags = []string(tags)
	if a.Tags == nil {
		a.Tags = []string{}
	}
	return a, nil
}

type voterSets struct {
	liked    []string
	disliked []string
}

func scanVoters(rows *sql.Rows) (map[string]*voterSets, error) {
	defer rows.Close()
	out := make(map[string]*voterSets)
	for rows.Next() {
		var articleID, userID, direction string
		if err := rows.Scan(&articleID, &userID, &direction); err != nil {
			return nil, err
		}
		v, ok := out[articleID]
		if !ok {
			v = &voterSets{}
			out[articleID] = v
		}
		if model.Direction(direction) == model.Like {
			v.liked = append(v.liked, userID)
		} else {
			v.disliked = append(v.disliked, userID)
		}
	}
	return out, rows.Err()
}

func attachVoters(a *model.Article, v *voterSets) {
	a.LikedUserIDs = []string{}
	a.DislikedUserIDs = []string{}
	a.Likes, a.Dislikes = 0, 0
	if v == nil {
		return
	}
	if v.liked != nil {
		a.LikedUserIDs = v.liked
	}
	if v.disliked != nil {
		a.DislikedUserIDs = v.disliked
	}
	a.Likes = len(a.LikedUserIDs)
	a.Dislikes = len(a.DislikedUserIDs)
}

func scanAccount(row *sql.Row) (model.Account, error) {
	var a model.Account
	var role string
	if err := row.Scan(&a.ID, &a.Name, &a.Email, &role, &a.PasswordHash, &a.Blocked, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Account{}, store.ErrNotFound
		}
		return model.Account{}, err
	}
	a.Role = model.Role(role)
	return a, nil
}
