package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mindmeld-app/mindmeld/internal/engagement"
	"github.com/mindmeld-app/mindmeld/internal/model"
	"github.com/mindmeld-app/mindmeld/internal/store"
)

var _ store.Store = (*Store)(nil)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("MINDMELD_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MINDMELD_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	st, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if _, err := st.db.ExecContext(ctx, `TRUNCATE article_voters, articles, accounts`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestApplyVoteConcurrentSwitches(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	id, err := st.CreateArticle(ctx, &model.Article{Topic: "health", Title: "T", Content: "C", DateOfPublish: time.Now()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const voters = 20
	var g errgroup.Group
	for i := 0; i < voters; i++ {
		user := fmt.Sprintf("u%d", i)
		g.Go(func() error {
			if _, err := st.ApplyVote(ctx, id, user, engagement.Plan(model.Like)); err != nil {
				return err
			}
			_, err := st.ApplyVote(ctx, id, user, engagement.Plan(model.Dislike))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("votes: %v", err)
	}

	a, err := st.GetArticle(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if a.Likes != 0 || a.Dislikes != voters || len(a.DislikedUserIDs) != voters {
		t.Fatalf("unexpected state: likes=%d dislikes=%d set=%d", a.Likes, a.Dislikes, len(a.DislikedUserIDs))
	}
}

func TestListDuringVotesIsConsistent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	id, err := st.CreateArticle(ctx, &model.Article{Topic: "health", Title: "T", Content: "C", DateOfPublish: time.Now()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const votes = 200
	var g errgroup.Group
	g.Go(func() error {
		for i := 0; i < votes; i++ {
			if _, err := st.ApplyVote(ctx, id, fmt.Sprintf("u%d", i), engagement.Plan(model.Like)); err != nil {
				return err
			}
		}
		return nil
	})
	for i := 0; i < votes; i++ {
		list, err := st.ListArticles(ctx, store.ArticleFilter{Topic: "health"})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if a := list[0]; a.Likes != len(a.LikedUserIDs) {
			t.Fatalf("read %d: likes=%d liked=%d", i, a.Likes, len(a.LikedUserIDs))
		}
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("votes: %v", err)
	}
}

func TestArticleNotFound(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	if _, err := st.GetArticle(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("get: %v", err)
	}
	if err := st.DeleteArticle(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.ApplyVote(ctx, "missing", "u1", engagement.Plan(model.Like)); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("vote: %v", err)
	}
}

func TestDuplicateEmail(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	acct := model.Account{Name: "A", Email: "a@example.com", Role: model.RoleUser, PasswordHash: "h", CreatedAt: time.Now()}
	if _, err := st.CreateAccount(ctx, &acct); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := st.CreateAccount(ctx, &acct); !errors.Is(err, store.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}
