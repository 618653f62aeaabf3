package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/devasignhq/devasign-api-sub002/internal/analysis"
	"github.com/devasignhq/devasign-api-sub002/internal/github"
	"github.com/devasignhq/devasign-api-sub002/internal/util"
	"github.com/devasignhq/devasign-api-sub002/internal/wire"
)

var (
	analyzeInstallation int64
	analyzePost         bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <pr-url> | <owner/repo> <pr-number>",
	Short: "Analyze a pull request and print the review",
	Long: `Analyze a pull request the same way the webhook pipeline does and print the review.

Without --installation the command authenticates with --github-token (or GITHUB_TOKEN).
With --post the review comment is created or updated on the pull request and the
result is stored.

Examples:
  devasign-cli analyze https://github.com/acme/widgets/pull/42
  devasign-cli analyze acme/widgets 42 --installation 1234
  devasign-cli analyze acme/widgets 42 --installation 1234 --post`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runAnalyze,
}

func init() { //nolint:gochecknoinits // Cobra command registration
	analyzeCmd.Flags().Int64Var(&analyzeInstallation, "installation", 0, "GitHub App installation ID")
	analyzeCmd.Flags().BoolVar(&analyzePost, "post", false, "Post the review comment to the pull request")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	owner, repo, prNumber, err := parseTarget(args)
	if err != nil {
		return err
	}
	if analyzePost && analyzeInstallation == 0 {
		return fmt.Errorf("--post requires --installation")
	}

	tk, cleanup, err := loadToolkit(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	client, err := analysisClient(ctx, tk)
	if err != nil {
		return err
	}

	titleColor.Printf("Analyzing %s/%s #%d\n", owner, repo, prNumber)
	pr, err := client.GetPullRequest(ctx, owner, repo, prNumber)
	if err != nil {
		return fmt.Errorf("failed to fetch pull request: %w", err)
	}
	dimColor.Printf("   %s (head %s)\n", pr.GetTitle(), shortSHA(pr.GetHead().GetSHA()))

	data := analysis.NewPullRequestData(analyzeInstallation, owner, repo, pr)
	result, err := tk.Analyzer.Analyze(ctx, client, data)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if analyzePost {
		commentID, err := tk.Publisher.PostReviewComment(ctx, result)
		if err != nil {
			return fmt.Errorf("failed to post review: %w", err)
		}
		if err := tk.Store.SaveReviewResult(ctx, result); err != nil {
			return fmt.Errorf("failed to store review: %w", err)
		}
		successColor.Printf("Posted review comment %d\n", commentID)
	}

	if outputJSON {
		return printJSON(result)
	}
	printReview(result)
	return nil
}

func parseTarget(args []string) (string, string, int, error) {
	if len(args) == 1 {
		return util.ParsePullRequestURL(args[0])
	}
	owner, repo, ok := util.SplitRepoFullName(args[0])
	if !ok {
		return "", "", 0, fmt.Errorf("repository must have the form owner/repo, got %q", args[0])
	}
	n, err := strconv.Atoi(args[1])
	if err != nil || n <= 0 {
		return "", "", 0, fmt.Errorf("invalid pull request number %q", args[1])
	}
	return owner, repo, n, nil
}

func analysisClient(ctx context.Context, tk *wire.Toolkit) (github.Client, error) {
	if analyzeInstallation != 0 {
		return tk.Clients.ForInstallation(ctx, analyzeInstallation)
	}
	if tk.Cfg.GitHub.Token == "" {
		return nil, fmt.Errorf("either --installation or a GitHub token is required\n\nTip: set GITHUB_TOKEN or pass --github-token")
	}
	return github.NewPATClient(ctx, tk.Cfg.GitHub.Token, tk.Cfg.GitHub.Timeout, tk.Logger), nil
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
