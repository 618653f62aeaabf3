// Package payout settles bounties when pull requests are merged and refunds escrow
// when an installation is removed.
package payout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/devasignhq/devasign-api-sub002/internal/analysis"
	"github.com/devasignhq/devasign-api-sub002/internal/core"
	"github.com/devasignhq/devasign-api-sub002/internal/github"
	"github.com/devasignhq/devasign-api-sub002/internal/storage"
	"github.com/devasignhq/devasign-api-sub002/internal/util"
)

// Store is the persistence the payout flow needs.
type Store interface {
	GetInstallation(ctx context.Context, id int64) (*core.Installation, error)
	LockInstallation(ctx context.Context, id int64) (*core.Installation, error)
	ArchiveInstallation(ctx context.Context, id int64, at time.Time) error
	FindPayableTasks(ctx context.Context, installationID int64, repoFullName string, issueNumbers []int) ([]core.Task, error)
	LockPayableTask(ctx context.Context, taskID string) (*core.Task, error)
	ListRefundableTasks(ctx context.Context, installationID int64) ([]core.Task, error)
	CompleteTask(ctx context.Context, taskID, contributorID string, at time.Time) error
	GetUserByID(ctx context.Context, id string) (*core.User, error)
	GetUserByGitHubUsername(ctx context.Context, username string) (*core.User, error)
	CreateTransaction(ctx context.Context, tx *core.Transaction) error
	AddContribution(ctx context.Context, userID string, amount core.Amount, at time.Time) error
}

// Transactor runs fn in one database transaction.
type Transactor interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// settleTimeout bounds a ledger movement and its bookkeeping. Both run detached from
// the caller's context so a dropped request cannot strand a released payment.
const settleTimeout = 2 * time.Minute

var (
	errAlreadySettled      = errors.New("task already settled")
	errAlreadyArchived     = errors.New("installation already archived")
	errUnknownInstallation = errors.New("installation not registered")
)

// Status names the result of a payout attempt. Everything but StatusPaid is a
// benign "no action taken" outcome.
type Status string

const (
	StatusPaid           Status = "paid"
	StatusNoLinkedIssues Status = "no_linked_issues"
	StatusNoMatchingTask Status = "no_matching_task"
	StatusNoWallet       Status = "no_wallet"
	StatusAlreadySettled Status = "already_settled"

	StatusRefunded        Status = "refunded"
	StatusArchived        Status = "archived"
	StatusAlreadyArchived Status = "already_archived"
	StatusUnknown         Status = "unknown_installation"
)

// Payment is one settled task.
type Payment struct {
	TaskID        string      `json:"taskId"`
	IssueNumber   int         `json:"issueNumber"`
	ContributorID string      `json:"contributorId"`
	Amount        core.Amount `json:"amount"`
	TxHash        string      `json:"txHash"`
}

// Outcome reports what a merged PR triggered.
type Outcome struct {
	Status   Status    `json:"status"`
	Message  string    `json:"message"`
	Payments []Payment `json:"payments,omitempty"`
	// Skipped lists tasks left unpaid because the contributor has no wallet.
	Skipped []string `json:"skipped,omitempty"`
	// AlreadySettled lists tasks another delivery settled first.
	AlreadySettled []string `json:"alreadySettled,omitempty"`
}

// RefundOutcome reports what an installation deletion triggered.
type RefundOutcome struct {
	InstallationID  int64       `json:"installationId"`
	Status          Status      `json:"status"`
	TasksRefunded   int         `json:"tasksRefunded"`
	Amount          core.Amount `json:"amount"`
	TxHash          string      `json:"txHash,omitempty"`
	CleanupFailures int         `json:"cleanupFailures"`
}

// Service runs the bounty state machine.
type Service struct {
	store   Store
	tx      Transactor
	ledger  core.PaymentLedger
	clients github.ClientFactory
	logger  *slog.Logger
	now     func() time.Time
}

// NewService wires the payout flow. clients may be nil, which disables the PR
// comments and GitHub cleanup.
func NewService(store Store, tx Transactor, ledger core.PaymentLedger, clients github.ClientFactory, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		tx:      tx,
		ledger:  ledger,
		clients: clients,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// HandleMergedPR pays the bounties of the tasks a merged PR closes. Benign
// outcomes come back with a nil error. A ledger failure leaves the task untouched
// and is returned as a Payment error. Payment stops at the first failing task.
// Redelivering the same event pays nothing twice.
func (s *Service) HandleMergedPR(ctx context.Context, ev *core.PullRequestEvent) (*Outcome, error) {
	if !ev.IsMerged {
		return nil, core.Errorf(core.KindValidation, "pull request #%d is not merged", ev.PRNumber)
	}
	log := s.logger.With("installation_id", ev.InstallationID, "repo", ev.RepoFullName, "pr", ev.PRNumber)

	issues := analysis.IssuesInRepo(analysis.ExtractLinkedIssues(ev.PRBody, ev.RepoOwner, ev.RepoName), ev.RepoOwner, ev.RepoName)
	if len(issues) == 0 {
		log.Info("merged PR links no issues, no payment triggered")
		return &Outcome{Status: StatusNoLinkedIssues, Message: "no linked issues: no payment triggered"}, nil
	}

	inst, err := s.store.GetInstallation(ctx, ev.InstallationID)
	if errors.Is(err, storage.ErrNotFound) {
		log.Info("installation unknown, no task can match")
		return &Outcome{Status: StatusNoMatchingTask, Message: "no matching task found"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load installation: %w", err)
	}
	if inst.Status == core.InstallationArchived {
		log.Info("installation archived, its escrow was refunded")
		return &Outcome{Status: StatusNoMatchingTask, Message: "no matching task found"}, nil
	}

	tasks, err := s.store.FindPayableTasks(ctx, inst.ID, ev.RepoFullName, analysis.IssueNumbers(issues))
	if err != nil {
		return nil, fmt.Errorf("failed to match tasks: %w", err)
	}
	if len(tasks) == 0 {
		log.Info("no payable task matches the linked issues", "issues", analysis.IssueNumbers(issues))
		return &Outcome{Status: StatusNoMatchingTask, Message: "no matching task found"}, nil
	}

	out := &Outcome{}
	for _, task := range tasks {
		contributor, err := s.resolveContributor(ctx, &task, ev.PRAuthor)
		if err != nil {
			return out, err
		}
		if contributor == nil || contributor.WalletAddress == "" {
			log.Warn("no wallet address found for contributor, bounty left unpaid", "task_id", task.ID, "author", ev.PRAuthor)
			out.Skipped = append(out.Skipped, task.ID)
			continue
		}

		payment, err := s.settle(ctx, inst, &task, contributor)
		if errors.Is(err, errAlreadySettled) {
			log.Info("task settled by another delivery", "task_id", task.ID)
			out.AlreadySettled = append(out.AlreadySettled, task.ID)
			continue
		}
		if err != nil {
			log.Error("bounty payout failed", "task_id", task.ID, "error", err)
			return out, err
		}
		out.Payments = append(out.Payments, *payment)
		log.Info("bounty paid", "task_id", task.ID, "amount", payment.Amount.String(), "tx_hash", payment.TxHash)

		s.announce(ctx, ev, contributor, payment)
	}

	switch {
	case len(out.Payments) > 0:
	case len(out.Skipped) > 0:
		out.Status = StatusNoWallet
		out.Message = "no wallet address found for contributor"
		return out, nil
	default:
		out.Status = StatusAlreadySettled
		out.Message = "bounty already paid"
		return out, nil
	}
	out.Status = StatusPaid
	out.Message = fmt.Sprintf("released %d bounty payment(s)", len(out.Payments))
	return out, nil
}

// resolveContributor prefers the contributor assigned to the task and falls back to
// the PR author. A nil user means nobody could be resolved.
func (s *Service) resolveContributor(ctx context.Context, task *core.Task, author string) (*core.User, error) {
	var (
		u   *core.User
		err error
	)
	switch {
	case task.ContributorID != nil && *task.ContributorID != "":
		u, err = s.store.GetUserByID(ctx, *task.ContributorID)
	case author != "":
		u, err = s.store.GetUserByGitHubUsername(ctx, author)
	default:
		return nil, nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve contributor: %w", err)
	}
	return u, nil
}

// detach keeps ctx's values but not its cancellation, and bounds the result.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
}

// settle claims the task under a row lock, releases the escrow and records the
// completion, all in one transaction. The installation lock orders settlement
// against a concurrent refund. A ledger failure rolls back and leaves the task
// payable. A task claimed by someone else yields errAlreadySettled.
func (s *Service) settle(ctx context.Context, inst *core.Installation, task *core.Task, contributor *core.User) (*Payment, error) {
	ctx, cancel := detach(ctx)
	defer cancel()

	var (
		txHash string
		amount core.Amount
		issue  int
	)
	now := s.now()
	err := s.tx.Do(ctx, func(ctx context.Context) error {
		locked, err := s.store.LockInstallation(ctx, inst.ID)
		if err != nil {
			return err
		}
		if locked.Status == core.InstallationArchived {
			return errAlreadySettled
		}
		claimed, err := s.store.LockPayableTask(ctx, task.ID)
		if errors.Is(err, storage.ErrNotFound) {
			return errAlreadySettled
		}
		if err != nil {
			return err
		}
		amount, issue = claimed.Bounty, claimed.IssueNumber

		txHash, err = s.ledger.ReleaseFunds(ctx, locked.EscrowAddress, contributor.WalletAddress, amount)
		if err != nil {
			if core.IsKind(err, core.KindConfiguration) {
				return err
			}
			return core.NewError(core.KindPayment, fmt.Sprintf("failed to release bounty for task %s", task.ID), err).
				WithDetail("task_id", task.ID)
		}

		taskID, userID := task.ID, contributor.ID
		if err := s.store.CompleteTask(ctx, task.ID, contributor.ID, now); err != nil {
			return err
		}
		if err := s.store.CreateTransaction(ctx, &core.Transaction{
			TaskID:         &taskID,
			UserID:         &userID,
			InstallationID: inst.ID,
			Type:           core.TransactionBounty,
			Amount:         amount,
			TxHash:         txHash,
			CreatedAt:      now,
		}); err != nil {
			return err
		}
		return s.store.AddContribution(ctx, contributor.ID, amount, now)
	})
	switch {
	case err == nil:
	case txHash == "":
		if errors.Is(err, errAlreadySettled) || core.IsKind(err, core.KindPayment) || core.IsKind(err, core.KindConfiguration) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to claim task %s: %w", task.ID, err)
	default:
		// Funds have moved; the record must be reconciled by hand.
		s.logger.Error("bounty released but completion was not recorded",
			"task_id", task.ID, "tx_hash", txHash, "error", err)
		return nil, core.NewError(core.KindPayment, fmt.Sprintf("bounty for task %s released but not recorded", task.ID), err).
			WithDetail("task_id", task.ID).
			WithDetail("tx_hash", txHash)
	}

	return &Payment{
		TaskID:        task.ID,
		IssueNumber:   issue,
		ContributorID: contributor.ID,
		Amount:        amount,
		TxHash:        txHash,
	}, nil
}

func (s *Service) announce(ctx context.Context, ev *core.PullRequestEvent, contributor *core.User, p *Payment) {
	if s.clients == nil {
		return
	}
	client, err := s.clients.ForInstallation(ctx, ev.InstallationID)
	if err != nil {
		s.logger.Warn("skipping payout comment", "pr", ev.PRNumber, "error", err)
		return
	}
	body := fmt.Sprintf("💸 The bounty of **%s** for #%d has been released to @%s.\n\nTransaction: `%s`",
		p.Amount, p.IssueNumber, contributor.GitHubUsername, p.TxHash)
	if _, err := client.CreateComment(ctx, ev.RepoOwner, ev.RepoName, ev.PRNumber, body); err != nil {
		s.logger.Warn("failed to post payout comment", "pr", ev.PRNumber, "task_id", p.TaskID, "error", err)
	}
}

// HandleInstallationDeleted refunds the escrow of every open task in one ledger
// call, archives the installation and then tries to remove bounty markers from
// GitHub. The refund and the archive share one transaction under the installation
// row lock, so a redelivered deletion refunds nothing twice. Cleanup failures are
// counted, never returned.
func (s *Service) HandleInstallationDeleted(ctx context.Context, installationID int64) (*RefundOutcome, error) {
	out := &RefundOutcome{InstallationID: installationID}
	log := s.logger.With("installation_id", installationID)

	tasks, err := s.refund(ctx, installationID, out)
	switch {
	case errors.Is(err, errUnknownInstallation):
		log.Info("deleted installation was never registered")
		out.Status = StatusUnknown
		return out, nil
	case errors.Is(err, errAlreadyArchived):
		out.Status = StatusAlreadyArchived
		return out, nil
	case err != nil:
		return nil, err
	}

	out.TasksRefunded = len(tasks)
	out.Status = StatusArchived
	if out.Amount > 0 {
		out.Status = StatusRefunded
	}
	out.CleanupFailures = s.cleanup(ctx, installationID, tasks)

	log.Info("installation archived",
		"tasks_refunded", out.TasksRefunded, "amount", out.Amount.String(), "tx_hash", out.TxHash, "cleanup_failures", out.CleanupFailures)
	return out, nil
}

// refund moves the open escrow back and archives the installation. It fills the
// amount and hash of out and returns the refunded tasks.
func (s *Service) refund(ctx context.Context, installationID int64, out *RefundOutcome) ([]core.Task, error) {
	ctx, cancel := detach(ctx)
	defer cancel()

	var tasks []core.Task
	now := s.now()
	err := s.tx.Do(ctx, func(ctx context.Context) error {
		inst, err := s.store.LockInstallation(ctx, installationID)
		if errors.Is(err, storage.ErrNotFound) {
			return errUnknownInstallation
		}
		if err != nil {
			return fmt.Errorf("failed to load installation: %w", err)
		}
		if inst.Status == core.InstallationArchived {
			return errAlreadyArchived
		}

		if tasks, err = s.store.ListRefundableTasks(ctx, installationID); err != nil {
			return fmt.Errorf("failed to list refundable tasks: %w", err)
		}
		var total core.Amount
		for _, t := range tasks {
			total += t.Bounty
		}

		if total > 0 {
			if inst.RefundAddress == "" {
				return core.Errorf(core.KindValidation, "installation %d has no refund address", installationID)
			}
			hash, err := s.ledger.Refund(ctx, inst.EscrowAddress, inst.RefundAddress, total)
			if err != nil {
				if core.IsKind(err, core.KindConfiguration) {
					return err
				}
				return core.NewError(core.KindPayment, fmt.Sprintf("failed to refund installation %d", installationID), err)
			}
			out.TxHash = hash
		}
		out.Amount = total

		for _, t := range tasks {
			if t.Bounty <= 0 {
				continue
			}
			taskID := t.ID
			if err := s.store.CreateTransaction(ctx, &core.Transaction{
				TaskID:         &taskID,
				InstallationID: installationID,
				Type:           core.TransactionRefund,
				Amount:         t.Bounty,
				TxHash:         out.TxHash,
				CreatedAt:      now,
			}); err != nil {
				return fmt.Errorf("failed to record refund of task %s: %w", t.ID, err)
			}
		}
		if err := s.store.ArchiveInstallation(ctx, installationID, now); err != nil {
			return fmt.Errorf("failed to archive installation %d: %w", installationID, err)
		}
		return nil
	})
	if err != nil && out.TxHash != "" {
		s.logger.Error("refund sent but archive was not recorded",
			"installation_id", installationID, "tx_hash", out.TxHash, "error", err)
		return nil, core.NewError(core.KindPayment, fmt.Sprintf("refund for installation %d sent but not recorded", installationID), err).
			WithDetail("tx_hash", out.TxHash)
	}
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// cleanup removes bounty comments and labels. The installation token may already
// be revoked, so every failure is only logged.
func (s *Service) cleanup(ctx context.Context, installationID int64, tasks []core.Task) int {
	if s.clients == nil || len(tasks) == 0 {
		return 0
	}
	client, err := s.clients.ForInstallation(ctx, installationID)
	if err != nil {
		s.logger.Warn("skipping GitHub cleanup", "installation_id", installationID, "error", err)
		return len(tasks)
	}

	failures := 0
	for _, t := range tasks {
		owner, repo, ok := util.SplitRepoFullName(t.RepositoryName)
		if !ok {
			failures++
			continue
		}
		if t.BountyCommentID != nil {
			if err := client.DeleteComment(ctx, owner, repo, *t.BountyCommentID); err != nil && !github.IsNotFound(err) {
				s.logger.Warn("failed to delete bounty comment", "task_id", t.ID, "error", err)
				failures++
			}
		}
		if t.BountyLabel != "" {
			if err := client.RemoveLabel(ctx, owner, repo, t.IssueNumber, t.BountyLabel); err != nil && !github.IsNotFound(err) {
				s.logger.Warn("failed to remove bounty label", "task_id", t.ID, "error", err)
				failures++
			}
		}
	}
	return failures
}
