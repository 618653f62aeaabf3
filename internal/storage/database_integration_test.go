//go:build integration

package storage_test

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/devasignhq/devasign-api-sub002/internal/core"
	"github.com/devasignhq/devasign-api-sub002/internal/db"
	"github.com/devasignhq/devasign-api-sub002/internal/logger"
	"github.com/devasignhq/devasign-api-sub002/internal/storage"
)

var conn *sqlx.DB

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("docker.io/postgres:16-alpine"),
		postgres.WithDatabase("devasign_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		log.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("failed to get connection string: %v", err)
	}
	conn, err = sqlx.Connect("postgres", dsn)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	if err := db.Wrap(conn, logger.Discard()).RunMigrations(); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	code := m.Run()

	_ = conn.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func seed(t *testing.T, store *storage.Store, installationID int64) (*core.User, *core.User) {
	t.Helper()
	ctx := t.Context()

	require.NoError(t, store.UpsertInstallation(ctx, &core.Installation{
		ID:            installationID,
		AccountLogin:  "acme",
		EscrowAddress: "GESCROW",
		RefundAddress: "GREFUND",
	}))
	creator := &core.User{GitHubUsername: "maintainer-" + time.Now().Format("150405.000000000"), WalletAddress: "GCREATOR"}
	dev := &core.User{GitHubUsername: "Contributor-" + time.Now().Format("150405.000000000"), WalletAddress: "GDEV"}
	require.NoError(t, store.CreateUser(ctx, creator))
	require.NoError(t, store.CreateUser(ctx, dev))
	return creator, dev
}

func TestStore_TaskSettlement(t *testing.T) {
	ctx := t.Context()
	store := storage.NewStore(conn)
	creator, dev := seed(t, store, 1001)

	open := &core.Task{InstallationID: 1001, RepositoryName: "acme/widgets", IssueNumber: 12, Bounty: 50 * core.AmountScale, CreatorID: creator.ID}
	other := &core.Task{InstallationID: 1001, RepositoryName: "acme/widgets", IssueNumber: 99, Bounty: 10 * core.AmountScale, CreatorID: creator.ID}
	require.NoError(t, store.CreateTask(ctx, open))
	require.NoError(t, store.CreateTask(ctx, other))

	tasks, err := store.FindPayableTasks(ctx, 1001, "ACME/Widgets", []int{12, 13})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, open.ID, tasks[0].ID)

	now := time.Now().UTC()
	require.NoError(t, store.CompleteTask(ctx, open.ID, dev.ID, now))

	err = store.CompleteTask(ctx, open.ID, dev.ID, now)
	assert.ErrorIs(t, err, storage.ErrConflict)

	got, err := store.GetTask(ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskCompleted, got.Status)
	assert.True(t, got.Settled)
	require.NotNil(t, got.ContributorID)
	assert.Equal(t, dev.ID, *got.ContributorID)

	tasks, err = store.FindPayableTasks(ctx, 1001, "acme/widgets", []int{12})
	require.NoError(t, err)
	assert.Empty(t, tasks)

	refundable, err := store.ListRefundableTasks(ctx, 1001)
	require.NoError(t, err)
	require.Len(t, refundable, 1)
	assert.Equal(t, other.ID, refundable[0].ID)
}

func TestStore_UserLookupIsCaseInsensitive(t *testing.T) {
	ctx := t.Context()
	store := storage.NewStore(conn)
	_, dev := seed(t, store, 1002)

	got, err := store.GetUserByGitHubUsername(ctx, "contributor-"+dev.GitHubUsername[len("Contributor-"):])
	require.NoError(t, err)
	assert.Equal(t, dev.ID, got.ID)

	_, err = store.GetUserByGitHubUsername(ctx, "nobody-at-all")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_ContributionSummaryAccumulates(t *testing.T) {
	ctx := t.Context()
	store := storage.NewStore(conn)
	_, dev := seed(t, store, 1003)

	now := time.Now().UTC()
	require.NoError(t, store.AddContribution(ctx, dev.ID, core.MustParseAmount("25"), now))
	require.NoError(t, store.AddContribution(ctx, dev.ID, core.MustParseAmount("15.5"), now))

	cs, err := store.GetContributionSummary(ctx, dev.ID)
	require.NoError(t, err)
	assert.Equal(t, core.MustParseAmount("40.5"), cs.TotalEarnings)
	assert.Equal(t, 2, cs.TasksCompleted)
}

func TestStore_ArchiveInstallation(t *testing.T) {
	ctx := t.Context()
	store := storage.NewStore(conn)
	seed(t, store, 1004)

	require.NoError(t, store.ArchiveInstallation(ctx, 1004, time.Now().UTC()))
	assert.ErrorIs(t, store.ArchiveInstallation(ctx, 1004, time.Now().UTC()), storage.ErrConflict)

	inst, err := store.GetInstallation(ctx, 1004)
	require.NoError(t, err)
	assert.Equal(t, core.InstallationArchived, inst.Status)
	assert.NotNil(t, inst.ArchivedAt)
}

func TestStore_ReviewComment(t *testing.T) {
	ctx := t.Context()
	store := storage.NewStore(conn)

	_, err := store.GetReviewCommentID(ctx, 7, "acme/widgets", 3)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.SaveReviewComment(ctx, 7, "acme/widgets", 3, 555))
	id, err := store.GetReviewCommentID(ctx, 7, "acme/widgets", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(555), id)

	// A result without a comment ID keeps the recorded one.
	require.NoError(t, store.SaveReviewResult(ctx, &core.ReviewResult{
		InstallationID: 7,
		RepositoryName: "acme/widgets",
		PRNumber:       3,
		MergeScore:     80,
		ReviewStatus:   core.ReviewReadyToMerge,
		CreatedAt:      time.Now().UTC(),
	}))
	id, err = store.GetReviewCommentID(ctx, 7, "acme/widgets", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(555), id)
}

func TestTxManager_RollsBackOnError(t *testing.T) {
	ctx := t.Context()
	store := storage.NewStore(conn)
	creator, _ := seed(t, store, 1005)
	txm := storage.NewTxManager(conn, logger.Discard())

	boom := errors.New("boom")
	var taskID string
	err := txm.Do(ctx, func(ctx context.Context) error {
		task := &core.Task{InstallationID: 1005, RepositoryName: "acme/widgets", IssueNumber: 1, Bounty: 5 * core.AmountScale, CreatorID: creator.ID}
		if err := store.CreateTask(ctx, task); err != nil {
			return err
		}
		taskID = task.ID
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.GetTask(ctx, taskID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_LockPayableTaskSerializesSettlement(t *testing.T) {
	ctx := t.Context()
	store := storage.NewStore(conn)
	txm := storage.NewTxManager(conn, logger.Discard())
	creator, dev := seed(t, store, 1006)
	task := &core.Task{InstallationID: 1006, RepositoryName: "acme/widgets", IssueNumber: 3, Bounty: 20 * core.AmountScale, CreatorID: creator.ID}
	require.NoError(t, store.CreateTask(ctx, task))

	locked := make(chan struct{})
	release := make(chan struct{})
	first := make(chan error, 1)
	go func() {
		first <- txm.Do(ctx, func(ctx context.Context) error {
			if _, err := store.LockPayableTask(ctx, task.ID); err != nil {
				close(locked)
				return err
			}
			close(locked)
			<-release
			return store.CompleteTask(ctx, task.ID, dev.ID, time.Now().UTC())
		})
	}()
	<-locked

	second := make(chan error, 1)
	go func() {
		second <- txm.Do(ctx, func(ctx context.Context) error {
			_, err := store.LockPayableTask(ctx, task.ID)
			return err
		})
	}()

	select {
	case err := <-second:
		t.Fatalf("second lock returned while the row was held: %v", err)
	case <-time.After(200 * time.Millisecond):
	}
	close(release)

	require.NoError(t, <-first)
	assert.ErrorIs(t, <-second, storage.ErrNotFound)
}
