package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/seeforme/internal/config"
	"github.com/nao1215/seeforme/pkg/middleware"
)

func newTokenCmd() *cobra.Command {
	var (
		email       string
		accountType string
	)

	cmd := &cobra.Command{
		Use:   "token USER_ID",
		Short: "Issue a development JWT signed with JWT_SECRET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			at := middleware.AccountType(accountType)
			switch at {
			case middleware.AccountTypeVolunteer, middleware.AccountTypeBlind, middleware.AccountTypeAdmin:
			default:
				return fmt.Errorf("不明なアカウント種別です: %s", accountType)
			}

			token, err := middleware.GenerateJWT(cfg.JWTSecret, args[0], email, at)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&accountType, "type", string(middleware.AccountTypeBlind), "account type (volunteer|blind|admin)")
	return cmd
}
