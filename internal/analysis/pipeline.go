package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gh "github.com/google/go-github/v73/github"
	"golang.org/x/sync/errgroup"

	"github.com/devasignhq/devasign-api-sub002/internal/config"
	"github.com/devasignhq/devasign-api-sub002/internal/core"
	"github.com/devasignhq/devasign-api-sub002/internal/github"
	"github.com/devasignhq/devasign-api-sub002/internal/llm"
)

const issueFetchConcurrency = 4

// Guard runs a call under a circuit breaker.
type Guard interface {
	Execute(ctx context.Context, fn func(context.Context) error) error
}

// Analyzer runs the PR analysis pipeline.
type Analyzer struct {
	prompts  *llm.PromptManager
	reviewer llm.Reviewer
	enricher Enricher
	guard    Guard
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Analyzer)

// WithEnricher enables repository context enrichment.
func WithEnricher(e Enricher) Option {
	return func(a *Analyzer) { a.enricher = e }
}

// WithGuard routes AI calls through a circuit breaker.
func WithGuard(g Guard) Option {
	return func(a *Analyzer) { a.guard = g }
}

func NewAnalyzer(prompts *llm.PromptManager, reviewer llm.Reviewer, logger *slog.Logger, opts ...Option) *Analyzer {
	a := &Analyzer{
		prompts:  prompts,
		reviewer: reviewer,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewPullRequestData converts an API pull request into pipeline input.
func NewPullRequestData(installationID int64, owner, repo string, pr *gh.PullRequest) *core.PullRequestData {
	labels := make([]string, 0, len(pr.Labels))
	for _, l := range pr.Labels {
		labels = append(labels, l.GetName())
	}
	return &core.PullRequestData{
		InstallationID: installationID,
		RepoOwner:      owner,
		RepoName:       repo,
		RepoFullName:   owner + "/" + repo,
		PRNumber:       pr.GetNumber(),
		PRTitle:        pr.GetTitle(),
		PRBody:         pr.GetBody(),
		PRAuthor:       pr.GetUser().GetLogin(),
		PRURL:          pr.GetHTMLURL(),
		IsDraft:        pr.GetDraft(),
		BaseBranch:     pr.GetBase().GetRef(),
		HeadSHA:        pr.GetHead().GetSHA(),
		Labels:         labels,
	}
}

// Prepared is a pull request ready to be sent to the reviewer.
type Prepared struct {
	PR         *core.PullRequestData
	RepoConfig *core.RepoConfig
	Prompt     string
}

// Prepare resolves linked issues and changed files and renders the prompt. It
// performs no AI call.
func (a *Analyzer) Prepare(ctx context.Context, client github.Client, pr *core.PullRequestData) (*Prepared, error) {
	elig := ShouldAnalyzePR(Candidate{Owner: pr.RepoOwner, Repo: pr.RepoName, Body: pr.PRBody, IsDraft: pr.IsDraft})
	if !elig.Eligible {
		return nil, core.Errorf(core.KindValidation, "pull request is not eligible for analysis: %s", elig.Reason).
			WithDetail("reason", elig.Reason)
	}

	pr.LinkedIssues = a.resolveIssues(ctx, client, elig.LinkedIssues)

	if pr.ChangedFiles == nil {
		files, err := client.GetChangedFiles(ctx, pr.RepoOwner, pr.RepoName, pr.PRNumber)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch changed files: %w", err)
		}
		pr.ChangedFiles = files
	}

	repoCfg := a.loadRepoConfig(ctx, client, pr)

	var repoCtx RepoContext
	if a.enricher != nil {
		repoCtx = a.enricher.Enrich(ctx, client, pr)
	}

	blob := FormatPRContext(PromptInput{PR: pr, RepoConfig: repoCfg, RepoContext: repoCtx})
	prompt, err := a.prompts.Render(llm.PRReviewPrompt, a.reviewer.Provider(), llm.ReviewPromptData{
		Context:      blob,
		Rules:        promptRules(repoCfg),
		Instructions: repoCfg.CustomInstructions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render review prompt: %w", err)
	}

	return &Prepared{PR: pr, RepoConfig: repoCfg, Prompt: prompt}, nil
}

// Analyze runs the full pipeline and returns a normalized ReviewResult. AI failures
// surface as core.KindAnalysis errors.
func (a *Analyzer) Analyze(ctx context.Context, client github.Client, pr *core.PullRequestData) (*core.ReviewResult, error) {
	start := a.now()

	prepared, err := a.Prepare(ctx, client, pr)
	if err != nil {
		return nil, err
	}

	var verdict *llm.ReviewVerdict
	call := func(ctx context.Context) error {
		v, err := a.reviewer.GenerateReview(ctx, prepared.Prompt)
		if err != nil {
			return err
		}
		verdict = v
		return nil
	}
	if a.guard != nil {
		err = a.guard.Execute(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		if core.IsKind(err, core.KindCircuitOpen) || core.IsKind(err, core.KindConfiguration) {
			return nil, err
		}
		if e, ok := core.AsError(err); ok && e.Kind == core.KindAnalysis {
			return nil, err
		}
		return nil, core.NewError(core.KindAnalysis, "AI review failed", err)
	}

	result := &core.ReviewResult{
		InstallationID: pr.InstallationID,
		RepositoryName: pr.RepoFullName,
		PRNumber:       pr.PRNumber,
		MergeScore:     verdict.MergeScore,
		RulesViolated:  verdict.RulesViolated,
		RulesPassed:    verdict.RulesPassed,
		Suggestions:    verdict.Suggestions,
		Summary:        verdict.Summary,
		Confidence:     verdict.Confidence,
		CreatedAt:      a.now(),
	}
	result.Normalize()
	result.ProcessingTime = result.CreatedAt.Sub(start)

	a.logger.Info("pull request analyzed",
		"repo", pr.RepoFullName,
		"pr", pr.PRNumber,
		"merge_score", result.MergeScore,
		"violations", len(result.RulesViolated),
		"duration", result.ProcessingTime,
	)
	return result, nil
}

// resolveIssues fetches issue details concurrently. A failed fetch keeps the bare
// reference; cross-repository issues are fetched from their own repository.
func (a *Analyzer) resolveIssues(ctx context.Context, client github.Client, issues []core.LinkedIssue) []core.LinkedIssue {
	resolved := make([]core.LinkedIssue, len(issues))
	copy(resolved, issues)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(issueFetchConcurrency)
	for i := range resolved {
		g.Go(func() error {
			issue, err := client.GetIssue(gctx, resolved[i].Owner, resolved[i].Repo, resolved[i].Number)
			if err != nil {
				a.logger.Warn("failed to fetch linked issue", "issue", resolved[i].FullName(), "error", err)
				return nil
			}
			resolved[i].Title = issue.GetTitle()
			resolved[i].Body = issue.GetBody()
			resolved[i].URL = issue.GetHTMLURL()
			for _, l := range issue.Labels {
				resolved[i].Labels = append(resolved[i].Labels, l.GetName())
			}
			return nil
		})
	}
	_ = g.Wait()
	return resolved
}

func (a *Analyzer) loadRepoConfig(ctx context.Context, client github.Client, pr *core.PullRequestData) *core.RepoConfig {
	data, err := client.GetFileContent(ctx, pr.RepoOwner, pr.RepoName, config.RepoConfigFile, "")
	if err != nil {
		if !github.IsNotFound(err) {
			a.logger.Warn("failed to fetch repository config, using defaults", "repo", pr.RepoFullName, "error", err)
		}
		return core.DefaultRepoConfig()
	}

	cfg, err := config.ParseRepoConfig(data)
	if err != nil {
		if errors.Is(err, config.ErrConfigParsing) {
			a.logger.Warn("invalid repository config, using defaults", "repo", pr.RepoFullName, "error", err)
		}
		return core.DefaultRepoConfig()
	}
	return cfg
}
