package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mindmeld-app/mindmeld/internal/auth"
	"github.com/mindmeld-app/mindmeld/internal/config"
	"github.com/mindmeld-app/mindmeld/internal/model"
)

var (
	flagAccountName     string
	flagAccountEmail    string
	flagAccountPassword string
	flagAccountRole     string
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage accounts in the configured store",
}

var accountCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account",
	Long: `Create an account directly in the store the server is configured with.

Roles: user (may read and vote), expert (may also write articles), admin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		st, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("opening %s store: %w", cfg.Store, err)
		}
		defer st.Close()

		svc := auth.NewService(st, cfg.JWTSecret, cfg.TokenTTL)
		account, err := svc.Register(cmd.Context(), flagAccountName, flagAccountEmail, flagAccountPassword, model.Role(flagAccountRole))
		if err != nil {
			return err
		}
		fmt.Printf("✓ Created %s account %s (%s)\n", account.Role, account.Email, account.ID)
		return nil
	},
}

func init() {
	f := accountCreateCmd.Flags()
	f.StringVar(&flagAccountName, "name", "", "display name (required)")
	f.StringVar(&flagAccountEmail, "email", "", "login email (required)")
	f.StringVar(&flagAccountPassword, "password", "", "password, at least 8 characters (required)")
	f.StringVar(&flagAccountRole, "role", string(model.RoleUser), "user, expert or admin")
	_ = accountCreateCmd.MarkFlagRequired("name")
	_ = accountCreateCmd.MarkFlagRequired("email")
	_ = accountCreateCmd.MarkFlagRequired("password")

	accountCmd.AddCommand(accountCreateCmd)
}
