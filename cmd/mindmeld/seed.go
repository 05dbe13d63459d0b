package main

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mindmeld-app/mindmeld/internal/articles"
	"github.com/mindmeld-app/mindmeld/internal/auth"
	"github.com/mindmeld-app/mindmeld/internal/config"
	"github.com/mindmeld-app/mindmeld/internal/model"
	"github.com/mindmeld-app/mindmeld/internal/store"
)

const seedPassword = "mindmeld-seed"

var seedAccounts = []struct {
	name string
	role model.Role
}{
	{"Ada Expert", model.RoleExpert},
	{"Ben Expert", model.RoleExpert},
	{"Cara Reader", model.RoleUser},
	{"Dev Reader", model.RoleUser},
	{"Eli Reader", model.RoleUser},
}

var seedArticles = []struct {
	topic string
	title string
	tags  []string
}{
	{"health", "Why Sleep Is the Best Study Tool", []string{"sleep", "memory"}},
	{"health", "Ten Minutes of Walking After Meals", []string{"exercise", "nutrition"}},
	{"health", "Hydration Myths, Tested", []string{"nutrition"}},
	{"technology", "Cache Invalidation for the Rest of Us", []string{"caching", "backend"}},
	{"technology", "Choosing Between SQLite and Postgres", []string{"databases"}},
	{"technology", "What a Request ID Buys You", []string{"observability"}},
	{"finance", "Index Funds in Plain Words", []string{"investing"}},
	{"finance", "Building an Emergency Fund", []string{"saving"}},
	{"education", "Spaced Repetition Without an App", []string{"memory", "learning"}},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the configured store with sample accounts, articles and votes",
	Long: fmt.Sprintf(`Fill the configured store with sample data for local development.

Sample accounts use <first name>@example.com with the password %q.`, seedPassword),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		st, err := openStore(ctx, cfg)
		if err != nil {
			return fmt.Errorf("opening %s store: %w", cfg.Store, err)
		}
		defer st.Close()

		logger := newLogger(cfg)
		authSvc := auth.NewService(st, cfg.JWTSecret, cfg.TokenTTL)
		c, closeCache := openCache(ctx, cfg, logger)
		defer closeCache()
		svc := articles.New(st, c, articles.WithLogger(logger))

		var experts, readers []model.Account
		for _, a := range seedAccounts {
			email := firstName(a.name) + "@example.com"
			account, err := authSvc.Register(ctx, a.name, email, seedPassword, a.role)
			if errors.Is(err, store.ErrDuplicateEmail) {
				if account, err = st.FindAccountByEmail(ctx, email); err != nil {
					return err
				}
			} else if err != nil {
				return fmt.Errorf("registering %s: %w", email, err)
			}
			logger.Info("seeded account", "email", email, "role", account.Role)
			if account.Role == model.RoleUser {
				readers = append(readers, account)
			} else {
				experts = append(experts, account)
			}
		}

		published := time.Now().UTC().Add(-time.Duration(len(seedArticles)) * 24 * time.Hour)
		var created []model.Article
		for _, s := range seedArticles {
			author := experts[rand.IntN(len(experts))]
			a, err := svc.Create(ctx, model.Article{
				Topic:         s.topic,
				Title:         s.title,
				Content:       "Sample article about " + s.title + ".",
				AuthorName:    author.Name,
				AuthorID:      author.ID,
				DateOfPublish: published,
				Tags:          s.tags,
			})
			if err != nil {
				return fmt.Errorf("creating %q: %w", s.title, err)
			}
			created = append(created, a)
			published = published.Add(24 * time.Hour)
		}

		votes := 0
		for _, r := range readers {
			for _, a := range created {
				if rand.Float32() < 0.4 {
					continue
				}
				d := model.Like
				if rand.Float32() < 0.25 {
					d = model.Dislike
				}
				if _, err := svc.Vote(ctx, a.ID, r.ID, d); err != nil {
					logger.Warn("seed vote failed", slog.String("article", a.ID), slog.Any("error", err))
					continue
				}
				votes++
			}
		}

		fmt.Println("\n=== Seed Complete ===")
		fmt.Printf("Accounts: %d\n", len(seedAccounts))
		fmt.Printf("Articles: %d\n", len(created))
		fmt.Printf("Votes:    %d\n", votes)
		return nil
	},
}

func firstName(name string) string {
	first, _, _ := strings.Cut(name, " ")
	return strings.ToLower(first)
}
