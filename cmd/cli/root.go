package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devasignhq/devasign-api-sub002/internal/wire"
)

var (
	githubToken string
	outputJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "devasign-cli",
	Short: "devasign-cli administers the devasign webhook service.",
	Long: `A CLI for operating the devasign webhook service: database migrations, one-off
pull request analysis, circuit recovery, installation refunds and ledger inspection.

Configuration is read from the environment and an optional .env file, the same way
the server reads it.`,
	SilenceUsage: true,
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	rootCmd.PersistentFlags().StringVarP(&githubToken, "github-token", "t", "", "GitHub token used instead of the GitHub App credentials")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Print results as JSON")
}

// loadToolkit builds the service components. The returned cleanup closes the database.
func loadToolkit(ctx context.Context) (*wire.Toolkit, func(), error) {
	tk, cleanup, err := wire.InitializeToolkit(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize services: %w\n\nTip: check the database settings in your environment or .env", err)
	}
	if githubToken != "" {
		tk.Cfg.GitHub.Token = githubToken
	}
	return tk, cleanup, nil
}
