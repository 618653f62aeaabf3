package core

import (
	"context"
	"iter"
	"time"
)

// TaskStatus is the lifecycle state of a bounty task.
type TaskStatus string

const (
	TaskOpen              TaskStatus = "OPEN"
	TaskInProgress        TaskStatus = "IN_PROGRESS"
	TaskMarkedAsCompleted TaskStatus = "MARKED_AS_COMPLETED"
	TaskCompleted         TaskStatus = "COMPLETED"
)

// PayableTaskStatuses are the statuses a task may be settled from.
var PayableTaskStatuses = []TaskStatus{TaskOpen, TaskInProgress, TaskMarkedAsCompleted}

// RefundableTaskStatuses are the statuses whose escrowed bounty is returned when an
// installation goes away.
var RefundableTaskStatuses = []TaskStatus{TaskOpen, TaskInProgress}

// Task is a bounty attached to a GitHub issue.
type Task struct {
	ID              string     `db:"id" json:"id"`
	InstallationID  int64      `db:"installation_id" json:"installationId"`
	RepositoryName  string     `db:"repository_full_name" json:"repositoryName"`
	IssueNumber     int        `db:"issue_number" json:"issueNumber"`
	IssueURL        string     `db:"issue_url" json:"issueUrl"`
	Title           string     `db:"title" json:"title"`
	Bounty          Amount     `db:"bounty" json:"bounty"`
	Status          TaskStatus `db:"status" json:"status"`
	Settled         bool       `db:"settled" json:"settled"`
	CreatorID       string     `db:"creator_id" json:"creatorId"`
	ContributorID   *string    `db:"contributor_id" json:"contributorId,omitempty"`
	BountyCommentID *int64     `db:"bounty_comment_id" json:"bountyCommentId,omitempty"`
	BountyLabel     string     `db:"bounty_label" json:"bountyLabel,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updatedAt"`
	CompletedAt     *time.Time `db:"completed_at" json:"completedAt,omitempty"`
}

// IsPayable reports whether the task can still be settled.
func (t *Task) IsPayable() bool {
	if t.Settled {
		return false
	}
	for _, s := range PayableTaskStatuses {
		if t.Status == s {
			return true
		}
	}
	return false
}

// InstallationStatus is the lifecycle state of a GitHub App installation.
type InstallationStatus string

const (
	InstallationActive   InstallationStatus = "ACTIVE"
	InstallationArchived InstallationStatus = "ARCHIVED"
)

// Installation is a GitHub App installation with its escrow account.
type Installation struct {
	ID            int64              `db:"id" json:"id"`
	AccountLogin  string             `db:"account_login" json:"accountLogin"`
	Status        InstallationStatus `db:"status" json:"status"`
	EscrowAddress string             `db:"escrow_address" json:"escrowAddress"`
	RefundAddress string             `db:"refund_address" json:"refundAddress"`
	CreatedAt     time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time          `db:"updated_at" json:"updatedAt"`
	ArchivedAt    *time.Time         `db:"archived_at" json:"archivedAt,omitempty"`
}

// User is a platform account linked to a GitHub login.
type User struct {
	ID             string    `db:"id" json:"id"`
	GitHubUsername string    `db:"github_username" json:"githubUsername"`
	WalletAddress  string    `db:"wallet_address" json:"walletAddress"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// TransactionType distinguishes ledger records.
type TransactionType string

const (
	TransactionBounty TransactionType = "BOUNTY"
	TransactionRefund TransactionType = "REFUND"
)

// Transaction is a persisted record of a settled ledger movement.
type Transaction struct {
	ID             string          `db:"id" json:"id"`
	TaskID         *string         `db:"task_id" json:"taskId,omitempty"`
	UserID         *string         `db:"user_id" json:"userId,omitempty"`
	InstallationID int64           `db:"installation_id" json:"installationId"`
	Type           TransactionType `db:"type" json:"type"`
	Amount         Amount          `db:"amount" json:"amount"`
	TxHash         string          `db:"tx_hash" json:"txHash"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
}

// ContributionSummary aggregates a contributor's earnings.
type ContributionSummary struct {
	UserID         string    `db:"user_id" json:"userId"`
	TotalEarnings  Amount    `db:"total_earnings" json:"totalEarnings"`
	TasksCompleted int       `db:"tasks_completed" json:"tasksCompleted"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// LedgerEntry is one movement reported by the payment ledger.
type LedgerEntry struct {
	ID        string    `json:"id"`
	Cursor    string    `json:"cursor"`
	Type      string    `json:"type"`
	Amount    Amount    `json:"amount"`
	Asset     string    `json:"asset"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	TxHash    string    `json:"txHash"`
	CreatedAt time.Time `json:"createdAt"`
}

// PaymentLedger moves escrowed funds.
//
//go:generate mockgen -destination=../../mocks/mock_payment_ledger.go -package=mocks . PaymentLedger
type PaymentLedger interface {
	// ReleaseFunds pays amount from the escrow account to destination and returns the
	// ledger transaction hash.
	ReleaseFunds(ctx context.Context, escrowRef, destination string, amount Amount) (string, error)
	// Refund returns amount from the escrow account to destination.
	Refund(ctx context.Context, escrowRef, destination string, amount Amount) (string, error)
	// Entries lazily yields ledger entries for account recorded after sinceCursor.
	Entries(ctx context.Context, account, sinceCursor string) iter.Seq2[LedgerEntry, error]
	Ping(ctx context.Context) error
}
