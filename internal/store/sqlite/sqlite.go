package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mindmeld-app/mindmeld/internal/engagement"
	"github.com/mindmeld-app/mindmeld/internal/model"
	"github.com/mindmeld-app/mindmeld/internal/store"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection serializes writers, so vote transactions never interleave
	// and never fail with SQLITE_BUSY. Callers must not hold rows open across
	// another query.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// migrations is an ordered list of SQL migrations.
// Each migration runs exactly once, tracked by schema_version table.
var migrations = []string{
	// Migration 1: Initial schema
	`
CREATE TABLE IF NOT EXISTS articles (
	id TEXT PRIMARY KEY,
	topic TEXT NOT NULL,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	author_name TEXT,
	author_id TEXT,
	date_of_publish INTEGER NOT NULL,
	tags TEXT,
	article_link TEXT,
	image_link TEXT,
	likes INTEGER NOT NULL DEFAULT 0,
	dislikes INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_articles_topic ON articles(topic);
CREATE INDEX IF NOT EXISTS idx_articles_date ON articles(date_of_publish DESC);

CREATE TABLE IF NOT EXISTS article_voters (
	article_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	direction TEXT NOT NULL CHECK (direction IN ('like', 'dislike')),
	created_at INTEGER NOT NULL,
	PRIMARY KEY (article_id, user_id, direction),
	FOREIGN KEY(article_id) REFERENCES articles(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS accounts (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	role TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	blocked INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_email ON accounts(email);
`,
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return err
	}

	var currentVersion int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&currentVersion); err != nil {
		return err
	}

	for i := currentVersion; i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
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
	tags, err := json.Marshal(article.Tags)
	if err != nil {
		return "", err
	}
	id := store.NewID()
	_, err = s.db.ExecContext(ctx, `
INSERT INTO articles (id, topic, title, content, author_name, author_id, date_of_publish, tags, article_link, image_link, likes, dislikes, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?)
`, id, article.Topic, article.Title, article.Content, nullIfEmpty(article.AuthorName), nullIfEmpty(article.AuthorID),
		article.DateOfPublish.UnixMilli(), string(tags), nullIfEmpty(article.ArticleLink), nullIfEmpty(article.ImageLink), time.Now().UnixMilli())
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
	tx, err := s.db.BeginTx(ctx, nil)
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
	row := q.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = ?`, id)
	a, err := scanArticle(row)
	if err != nil {
		return model.Article{}, err
	}
	rows, err := q.QueryContext(ctx, `
SELECT article_id, user_id, direction FROM article_voters
WHERE article_id = ?
ORDER BY created_at, rowid
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
		where = "WHERE topic = ?"
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
	var articles []model.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	voterWhere := ""
	if filter.Topic != "" {
		voterWhere = "WHERE article_id IN (SELECT id FROM articles WHERE topic = ?)"
	}
	vrows, err := q.QueryContext(ctx, fmt.Sprintf(`
SELECT article_id, user_id, direction FROM article_voters
%s
ORDER BY created_at, rowid
`, voterWhere), args...)
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
	tags, err := json.Marshal(article.Tags)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE articles
SET topic = ?, title = ?, content = ?, date_of_publish = ?, tags = ?, article_link = ?, image_link = ?
WHERE id = ?
`, article.Topic, article.Title, article.Content,
		article.DateOfPublish.UnixMilli(), string(tags), nullIfEmpty(article.ArticleLink), nullIfEmpty(article.ImageLink), article.ID)
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

	if _, err = tx.ExecContext(ctx, `DELETE FROM article_voters WHERE article_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = store.ErrNotFound
		return err
	}
	return tx.Commit()
}

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

	var exists int
	if err = tx.QueryRowContext(ctx, `SELECT 1 FROM articles WHERE id = ?`, id).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = store.ErrNotFound
		}
		return model.Article{}, err
	}
	if _, err = tx.ExecContext(ctx, `
DELETE FROM article_voters WHERE article_id = ? AND user_id = ? AND direction = ?
`, id, userID, string(t.RemoveFrom)); err != nil {
		return model.Article{}, err
	}
	if _, err = tx.ExecContext(ctx, `
INSERT INTO article_voters (article_id, user_id, direction, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT DO NOTHING
`, id, userID, string(t.AddTo), time.Now().UnixNano()); err != nil {
		return model.Article{}, err
	}
	if _, err = tx.ExecContext(ctx, `
UPDATE articles SET
	likes = (SELECT COUNT(*) FROM article_voters WHERE article_id = ? AND direction = 'like'),
	dislikes = (SELECT COUNT(*) FROM article_voters WHERE article_id = ? AND direction = 'dislike')
WHERE id = ?
`, id, id, id); err != nil {
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
VALUES (?, ?, ?, ?, ?, ?, ?)
`, id, account.Name, account.Email, string(account.Role), account.PasswordHash, boolToInt(account.Blocked), account.CreatedAt.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return "", store.ErrDuplicateEmail
		}
		return "", err
	}
	return id, nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (model.Account, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, name, email, role, password_hash, blocked, created_at
FROM accounts
WHERE id = ?
`, id)
	return scanAccount(row)
}

func (s *Store) FindAccountByEmail(ctx context.Context, email string) (model.Account, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, name, email, role, password_hash, blocked, created_at
FROM accounts
WHERE email = ?
`, email)
	return scanAccount(row)
}

func scanArticle(scanner interface{ Scan(dest ...any) error }) (model.Article, error) {
	var a model.Article
	var authorName, authorID, tagsRaw, link, image sql.NullString
	var published int64
	if err := scanner.Scan(&a.ID, &a.Topic, &a.Title, &a.Content, &authorName, &authorID, &published, &tagsRaw, &link, &image, &a.Likes, &a.Dislikes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Article{}, store.ErrNotFound
		}
		return model.Article{}, err
	}
	a.AuthorName = authorName.String
	a.AuthorID = authorID.String
	a.ArticleLink = link.String
	a.ImageLink = image.String
	a.DateOfPublish = time.UnixMilli(published).UTC()
	if tagsRaw.Valid && tagsRaw.String != "" {
		_ = json.Unmarshal([]byte(tagsRaw.String), &a.Tags)
	}
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
	var blocked int
	var created int64
	if err := row.Scan(&a.ID, &a.Name, &a.Email, &role, &a.PasswordHash, &blocked, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Account{}, store.ErrNotFound
		}
		return model.Account{}, err
	}
	a.Role = model.Role(role)
	a.Blocked = blocked == 1
	a.CreatedAt = time.Unix(created, 0)
	return a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}
