package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mindmeld-app/mindmeld/internal/client"
	"github.com/mindmeld-app/mindmeld/internal/model"
)

// CLIConfig holds the client session persisted to disk.
type CLIConfig struct {
	BaseURL  string `json:"base_url"`
	Email    string `json:"email"`
	Token    string `json:"token"`
	TokenExp string `json:"token_expires"`
}

var (
	flagURL      string
	flagEmail    string
	flagPassword string
	flagTopic    string
	flagPage     int
	flagArticle  string
	flagDislike  bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to a MindMeld server and remember the token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagEmail == "" || flagPassword == "" {
			return errors.New("--email and --password are required")
		}
		c := client.New(strings.TrimSuffix(flagURL, "/"))
		account, err := c.Login(cmd.Context(), flagEmail, flagPassword)
		if err != nil {
			return err
		}
		cfg := CLIConfig{
			BaseURL:  c.BaseURL,
			Email:    account.Email,
			Token:    c.Token,
			TokenExp: c.TokenExp.Format(time.RFC3339),
		}
		if err := saveCLIConfig(cfg); err != nil {
			return fmt.Errorf("saving session: %w", err)
		}
		fmt.Printf("✓ Logged in as %s (%s)\n", account.Name, account.Role)
		fmt.Printf("  Expires: %s\n", cfg.TokenExp)
		return nil
	},
}

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Read articles",
	Long: `Read articles from the server.

Without flags every article is listed. --topic reads one page of a topic,
--article shows a single article.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if flagArticle != "" {
			c, err := loadAuthenticatedClient()
			if err != nil {
				return err
			}
			a, err := c.GetArticle(ctx, flagArticle)
			if err != nil {
				return err
			}
			fmt.Printf("\n%s\n", a.Title)
			fmt.Printf("  %s | %s | 👍 %d 👎 %d\n", a.Topic, a.AuthorName, a.Likes, a.Dislikes)
			if len(a.Tags) > 0 {
				fmt.Printf("  Tags: %s\n", strings.Join(a.Tags, ", "))
			}
			fmt.Printf("\n  %s\n", a.Content)
			return nil
		}

		var list []model.Article
		if flagTopic != "" {
			c, err := loadAuthenticatedClient()
			if err != nil {
				return err
			}
			if list, err = c.TopicPage(ctx, flagTopic, flagPage); err != nil {
				return err
			}
		} else {
			c := client.New(sessionBaseURL())
			var err error
			if list, err = c.ListArticles(ctx); err != nil {
				return err
			}
		}
		printArticles(list)
		return nil
	},
}

var voteCmd = &cobra.Command{
	Use:   "vote <article-id>",
	Short: "Like an article, or dislike it with --down",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadAuthenticatedClient()
		if err != nil {
			return err
		}
		vote := c.Like
		action := "Liked"
		if flagDislike {
			vote = c.Dislike
			action = "Disliked"
		}
		res, err := vote(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("✓ %s %s (👍 %d 👎 %d)\n", action, args[0], res.Likes, res.Dislikes)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&flagURL, "url", "http://localhost:8080", "MindMeld server URL")
	loginCmd.Flags().StringVar(&flagEmail, "email", "", "account email")
	loginCmd.Flags().StringVar(&flagPassword, "password", "", "account password")

	readCmd.Flags().StringVar(&flagTopic, "topic", "", "read one page of a topic")
	readCmd.Flags().IntVar(&flagPage, "page", 1, "page number for --topic")
	readCmd.Flags().StringVar(&flagArticle, "article", "", "show a single article")

	voteCmd.Flags().BoolVar(&flagDislike, "down", false, "dislike instead of like")
}

func printArticles(list []model.Article) {
	if len(list) == 0 {
		fmt.Println("No articles")
		return
	}
	fmt.Println()
	for i, a := range list {
		fmt.Printf("%d. %s\n", i+1, a.Title)
		fmt.Printf("   %s | %s | 👍 %d 👎 %d | %s\n\n", a.Topic, a.AuthorName, a.Likes, a.Dislikes, a.ID)
	}
}

func mindmeldDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".mindmeld")
}

func cliConfigPath() string {
	return filepath.Join(mindmeldDir(), "config.json")
}

func loadCLIConfig() (CLIConfig, error) {
	data, err := os.ReadFile(cliConfigPath())
	if err != nil {
		return CLIConfig{}, errors.New("not logged in - run 'mindmeld login'")
	}
	var cfg CLIConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return CLIConfig{}, err
	}
	return cfg, nil
}

func saveCLIConfig(cfg CLIConfig) error {
	if err := os.MkdirAll(mindmeldDir(), 0o700); err != nil {
		return err
	}
	data, _ := json.MarshalIndent(cfg, "", "  ")
	return os.WriteFile(cliConfigPath(), data, 0o600)
}

func sessionBaseURL() string {
	if cfg, err := loadCLIConfig(); err == nil && cfg.BaseURL != "" {
		return cfg.BaseURL
	}
	return "http://localhost:8080"
}

func loadAuthenticatedClient() (*client.Client, error) {
	cfg, err := loadCLIConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Token == "" {
		return nil, errors.New("not logged in - run 'mindmeld login'")
	}
	c := client.New(cfg.BaseURL)
	c.Token = cfg.Token
	c.TokenExp, _ = time.Parse(time.RFC3339, cfg.TokenExp)
	if !c.IsAuthenticated() {
		return nil, errors.New("token expired - run 'mindmeld login'")
	}
	return c, nil
}
