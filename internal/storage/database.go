package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/devasignhq/devasign-api-sub002/internal/core"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a conditional update matched no row because the
	// record changed state in the meantime.
	ErrConflict = errors.New("record was modified concurrently")
)

var taskColumns = []string{
	"id", "installation_id", "repository_full_name", "issue_number", "issue_url", "title",
	"bounty", "status", "settled", "creator_id", "contributor_id", "bounty_comment_id",
	"bounty_label", "created_at", "updated_at", "completed_at",
}

// Store is the postgres persistence layer.
type Store struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db, sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

func (s *Store) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok && tx != nil {
		return tx
	}
	return s.db
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) get(ctx context.Context, dest any, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if err := s.q(ctx).GetContext(ctx, dest, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) selectAll(ctx context.Context, dest any, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return s.q(ctx).SelectContext(ctx, dest, query, args...)
}

func (s *Store) exec(ctx context.Context, b sq.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	res, err := s.q(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Installations

func (s *Store) GetInstallation(ctx context.Context, id int64) (*core.Installation, error) {
	var inst core.Installation
	err := s.get(ctx, &inst, s.sb.
		Select("id", "account_login", "status", "escrow_address", "refund_address", "created_at", "updated_at", "archived_at").
		From("installations").
		Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, fmt.Errorf("get installation %d: %w", id, err)
	}
	return &inst, nil
}

// LockInstallation reads an installation under a row lock held until the
// surrounding transaction ends.
func (s *Store) LockInstallation(ctx context.Context, id int64) (*core.Installation, error) {
	var inst core.Installation
	err := s.get(ctx, &inst, s.sb.
		Select("id", "account_login", "status", "escrow_address", "refund_address", "created_at", "updated_at", "archived_at").
		From("installations").
		Where(sq.Eq{"id": id}).
		Suffix("FOR UPDATE"))
	if err != nil {
		return nil, fmt.Errorf("lock installation %d: %w", id, err)
	}
	return &inst, nil
}

func (s *Store) UpsertInstallation(ctx context.Context, inst *core.Installation) error {
	if inst.Status == "" {
		inst.Status = core.InstallationActive
	}
	_, err := s.exec(ctx, s.sb.
		Insert("installations").
		Columns("id", "account_login", "status", "escrow_address", "refund_address").
		Values(inst.ID, inst.AccountLogin, inst.Status, inst.EscrowAddress, inst.RefundAddress).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			account_login = EXCLUDED.account_login,
			escrow_address = EXCLUDED.escrow_address,
			refund_address = EXCLUDED.refund_address,
			updated_at = NOW()`))
	if err != nil {
		return fmt.Errorf("upsert installation %d: %w", inst.ID, err)
	}
	return nil
}

// ArchiveInstallation marks an active installation ARCHIVED. An installation that
// is already archived yields ErrConflict.
func (s *Store) ArchiveInstallation(ctx context.Context, id int64, at time.Time) error {
	n, err := s.exec(ctx, s.sb.
		Update("installations").
		Set("status", core.InstallationArchived).
		Set("archived_at", at).
		Set("updated_at", at).
		Where(sq.Eq{"id": id}).
		Where(sq.NotEq{"status": core.InstallationArchived}))
	if err != nil {
		return fmt.Errorf("archive installation %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("archive installation %d: %w", id, ErrConflict)
	}
	return nil
}

// Users

func (s *Store) CreateUser(ctx context.Context, u *core.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err := s.exec(ctx, s.sb.
		Insert("users").
		Columns("id", "github_username", "wallet_address").
		Values(u.ID, u.GitHubUsername, u.WalletAddress))
	if err != nil {
		return fmt.Errorf("create user %s: %w", u.GitHubUsername, err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*core.User, error) {
	var u core.User
	err := s.get(ctx, &u, s.sb.
		Select("id", "github_username", "wallet_address", "created_at").
		From("users").
		Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return &u, nil
}

// GetUserByGitHubUsername matches the login case-insensitively, as GitHub does.
func (s *Store) GetUserByGitHubUsername(ctx context.Context, username string) (*core.User, error) {
	var u core.User
	err := s.get(ctx, &u, s.sb.
		Select("id", "github_username", "wallet_address", "created_at").
		From("users").
		Where("LOWER(github_username) = LOWER(?)", username))
	if err != nil {
		return nil, fmt.Errorf("get user by login %s: %w", username, err)
	}
	return &u, nil
}

// Tasks

func (s *Store) CreateTask(ctx context.Context, t *core.Task) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = core.TaskOpen
	}
	_, err := s.exec(ctx, s.sb.
		Insert("tasks").
		Columns("id", "installation_id", "repository_full_name", "issue_number", "issue_url", "title",
			"bounty", "status", "settled", "creator_id", "contributor_id", "bounty_comment_id", "bounty_label").
		Values(t.ID, t.InstallationID, t.RepositoryName, t.IssueNumber, t.IssueURL, t.Title,
			t.Bounty, t.Status, t.Settled, t.CreatorID, t.ContributorID, t.BountyCommentID, t.BountyLabel))
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (s *Store) GetTask(ctx context.Context, id string) (*core.Task, error) {
	var t core.Task
	if err := s.get(ctx, &t, s.sb.Select(taskColumns...).From("tasks").Where(sq.Eq{"id": id})); err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return &t, nil
}

// FindPayableTasks returns the unsettled tasks of an installation linked to one of
// issueNumbers in repoFullName, oldest first.
func (s *Store) FindPayableTasks(ctx context.Context, installationID int64, repoFullName string, issueNumbers []int) ([]core.Task, error) {
	if len(issueNumbers) == 0 {
		return nil, nil
	}
	var tasks []core.Task
	err := s.selectAll(ctx, &tasks, s.sb.
		Select(taskColumns...).
		From("tasks").
		Where(sq.Eq{
			"installation_id": installationID,
			"issue_number":    issueNumbers,
			"status":          statusStrings(core.PayableTaskStatuses),
			"settled":         false,
		}).
		Where("LOWER(repository_full_name) = LOWER(?)", repoFullName).
		OrderBy("created_at ASC"))
	if err != nil {
		return nil, fmt.Errorf("find payable tasks: %w", err)
	}
	return tasks, nil
}

// LockPayableTask re-reads a task and holds its row lock until the surrounding
// transaction ends. A task that is no longer payable yields ErrNotFound, so of two
// concurrent settlements only the first sees the task.
func (s *Store) LockPayableTask(ctx context.Context, taskID string) (*core.Task, error) {
	var t core.Task
	err := s.get(ctx, &t, s.sb.
		Select(taskColumns...).
		From("tasks").
		Where(sq.Eq{
			"id":      taskID,
			"status":  statusStrings(core.PayableTaskStatuses),
			"settled": false,
		}).
		Suffix("FOR UPDATE"))
	if err != nil {
		return nil, fmt.Errorf("lock task %s: %w", taskID, err)
	}
	return &t, nil
}

// ListRefundableTasks returns the OPEN and IN_PROGRESS tasks of an installation.
func (s *Store) ListRefundableTasks(ctx context.Context, installationID int64) ([]core.Task, error) {
	var tasks []core.Task
	err := s.selectAll(ctx, &tasks, s.sb.
		Select(taskColumns...).
		From("tasks").
		Where(sq.Eq{
			"installation_id": installationID,
			"status":          statusStrings(core.RefundableTaskStatuses),
			"settled":         false,
		}).
		OrderBy("created_at ASC"))
	if err != nil {
		return nil, fmt.Errorf("list refundable tasks: %w", err)
	}
	return tasks, nil
}

// CompleteTask settles a task. The update only applies while the task is still
// payable; otherwise ErrConflict is returned and nothing changes.
func (s *Store) CompleteTask(ctx context.Context, taskID, contributorID string, at time.Time) error {
	n, err := s.exec(ctx, s.sb.
		Update("tasks").
		Set("status", core.TaskCompleted).
		Set("settled", true).
		Set("contributor_id", contributorID).
		Set("completed_at", at).
		Set("updated_at", at).
		Where(sq.Eq{
			"id":      taskID,
			"status":  statusStrings(core.PayableTaskStatuses),
			"settled": false,
		}))
	if err != nil {
		return fmt.Errorf("complete task %s: %w", taskID, err)
	}
	if n == 0 {
		return fmt.Errorf("complete task %s: %w", taskID, ErrConflict)
	}
	return nil
}

// Transactions

func (s *Store) CreateTransaction(ctx context.Context, tx *core.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	_, err := s.exec(ctx, s.sb.
		Insert("transactions").
		Columns("id", "task_id", "user_id", "installation_id", "type", "amount", "tx_hash", "created_at").
		Values(tx.ID, tx.TaskID, tx.UserID, tx.InstallationID, tx.Type, tx.Amount, tx.TxHash, tx.CreatedAt))
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func (s *Store) ListTransactionsByTask(ctx context.Context, taskID string) ([]core.Transaction, error) {
	var txs []core.Transaction
	err := s.selectAll(ctx, &txs, s.sb.
		Select("id", "task_id", "user_id", "installation_id", "type", "amount", "tx_hash", "created_at").
		From("transactions").
		Where(sq.Eq{"task_id": taskID}).
		OrderBy("created_at ASC"))
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// Contribution summaries

// AddContribution adds one completed task worth amount to the user's summary.
func (s *Store) AddContribution(ctx context.Context, userID string, amount core.Amount, at time.Time) error {
	_, err := s.exec(ctx, s.sb.
		Insert("contribution_summaries").
		Columns("user_id", "total_earnings", "tasks_completed", "updated_at").
		Values(userID, amount, 1, at).
		Suffix(`ON CONFLICT (user_id) DO UPDATE SET
			total_earnings = contribution_summaries.total_earnings + EXCLUDED.total_earnings,
			tasks_completed = contribution_summaries.tasks_completed + 1,
			updated_at = EXCLUDED.updated_at`))
	if err != nil {
		return fmt.Errorf("update contribution summary for %s: %w", userID, err)
	}
	return nil
}

func (s *Store) GetContributionSummary(ctx context.Context, userID string) (*core.ContributionSummary, error) {
	var cs core.ContributionSummary
	err := s.get(ctx, &cs, s.sb.
		Select("user_id", "total_earnings", "tasks_completed", "updated_at").
		From("contribution_summaries").
		Where(sq.Eq{"user_id": userID}))
	if err != nil {
		return nil, fmt.Errorf("get contribution summary %s: %w", userID, err)
	}
	return &cs, nil
}

// AI reviews

// GetReviewCommentID returns the comment holding the AI review of a PR.
func (s *Store) GetReviewCommentID(ctx context.Context, installationID int64, repoFullName string, prNumber int) (int64, error) {
	var id sql.NullInt64
	err := s.get(ctx, &id, s.sb.
		Select("comment_id").
		From("ai_reviews").
		Where(sq.Eq{"installation_id": installationID, "repository_name": repoFullName, "pr_number": prNumber}))
	if err != nil {
		return 0, err
	}
	if !id.Valid {
		return 0, ErrNotFound
	}
	return id.Int64, nil
}

func (s *Store) SaveReviewComment(ctx context.Context, installationID int64, repoFullName string, prNumber int, commentID int64) error {
	_, err := s.exec(ctx, s.sb.
		Insert("ai_reviews").
		Columns("installation_id", "repository_name", "pr_number", "comment_id").
		Values(installationID, repoFullName, prNumber, commentID).
		Suffix(`ON CONFLICT (installation_id, repository_name, pr_number) DO UPDATE SET
			comment_id = EXCLUDED.comment_id,
			updated_at = NOW()`))
	if err != nil {
		return fmt.Errorf("save review comment: %w", err)
	}
	return nil
}

// SaveReviewResult stores the latest review of a PR. A known comment ID is kept
// when the result carries none.
func (s *Store) SaveReviewResult(ctx context.Context, r *core.ReviewResult) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode review result: %w", err)
	}
	_, err = s.exec(ctx, s.sb.
		Insert("ai_reviews").
		Columns("installation_id", "repository_name", "pr_number", "comment_id", "merge_score", "review_status", "result").
		Values(r.InstallationID, r.RepositoryName, r.PRNumber, r.CommentID, r.MergeScore, r.ReviewStatus, payload).
		Suffix(`ON CONFLICT (installation_id, repository_name, pr_number) DO UPDATE SET
			comment_id = COALESCE(EXCLUDED.comment_id, ai_reviews.comment_id),
			merge_score = EXCLUDED.merge_score,
			review_status = EXCLUDED.review_status,
			result = EXCLUDED.result,
			updated_at = NOW()`))
	if err != nil {
		return fmt.Errorf("save review result: %w", err)
	}
	return nil
}

func statusStrings(statuses []core.TaskStatus) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}
