package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devasignhq/devasign-api-sub002/internal/analysis"
	"github.com/devasignhq/devasign-api-sub002/internal/util"
)

var (
	indexInstallation int64
	indexRef          string
)

var indexCmd = &cobra.Command{
	Use:   "index <owner/repo> <path>...",
	Short: "Index repository files for review context",
	Long: `Fetch files from a repository and store them in the vector index, so reviews can
quote related code. Requires CONTEXT_ENRICHMENT_ENABLED and a working embedder.

Example:
  devasign-cli index acme/widgets --installation 1234 internal/api/server.go README.md`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		owner, repo, ok := util.SplitRepoFullName(args[0])
		if !ok {
			return fmt.Errorf("repository must have the form owner/repo, got %q", args[0])
		}
		if indexInstallation <= 0 {
			return fmt.Errorf("--installation is required")
		}

		tk, cleanup, err := loadToolkit(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		if tk.Index == nil {
			return fmt.Errorf("repository index is disabled\n\nTip: set CONTEXT_ENRICHMENT_ENABLED=true and configure the embedder")
		}
		client, err := tk.Clients.ForInstallation(ctx, indexInstallation)
		if err != nil {
			return err
		}
		ref := indexRef
		if ref == "" {
			if ref, err = client.GetDefaultBranch(ctx, owner, repo); err != nil {
				return err
			}
		}

		n, err := analysis.NewIndexer(tk.Index, tk.Logger).IndexPaths(ctx, client, indexInstallation, owner, repo, ref, args[1:])
		if err != nil {
			return err
		}
		successColor.Printf("Indexed %d chunk(s) from %s@%s\n", n, args[0], ref)
		return nil
	},
}

func init() { //nolint:gochecknoinits // Cobra command registration
	indexCmd.Flags().Int64Var(&indexInstallation, "installation", 0, "GitHub App installation ID")
	indexCmd.Flags().StringVar(&indexRef, "ref", "", "Git ref to read, defaults to the default branch")
	rootCmd.AddCommand(indexCmd)
}
