package main

import (
	"errors"

	"github.com/Vasu1712/listenparty-backend/internal/app"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var tokenCmd = &cobra.Command{
	Use:   "token <username>",
	Short: "Create a user if needed and print a session token for it (postgres store only)",
	Args:  cobra.ExactArgs(1),
	RunE:  runToken,
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.StoreBackend != "postgres" {
		return errors.New("token: needs STORE_BACKEND=postgres, a memory store is private to the server process; log in through /api/login instead")
	}
	a, err := app.New(cfg, zap.NewNop(), app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	tok, err := a.IssueToken(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	cmd.Println(tok)
	return nil
}
