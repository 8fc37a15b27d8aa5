package event

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOutboxEntry(eventType string) *shared.OutboxEntry {
	return shared.NewOutboxEntry(newTestEvent(eventType), []byte(`{"data":"test data"}`))
}

func TestGormOutboxRepository_SaveAndFindPending(t *testing.T) {
	repo := NewGormOutboxRepository(testutil.NewSQLiteDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx))

	first := newOutboxEntry("TestEvent")
	first.CreatedAt = time.Now().Add(-time.Minute)
	second := newOutboxEntry("TestEvent")
	require.NoError(t, repo.Save(ctx, second, first))

	pending, err := repo.FindPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID, "oldest first")
	assert.Equal(t, `{"data":"test data"}`, string(pending[0].Payload))

	limited, err := repo.FindPending(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	found, err := repo.FindByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, second.EventID, found.EventID)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormOutboxRepository_MarkProcessingClaimsOnce(t *testing.T) {
	repo := NewGormOutboxRepository(testutil.NewSQLiteDB(t))
	ctx := context.Background()

	entry := newOutboxEntry("TestEvent")
	require.NoError(t, repo.Save(ctx, entry))

	claimed, err := repo.MarkProcessing(ctx, []uuid.UUID{entry.ID})
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, shared.OutboxStatusProcessing, claimed[0].Status)

	again, err := repo.MarkProcessing(ctx, []uuid.UUID{entry.ID})
	require.NoError(t, err)
	assert.Empty(t, again, "a claimed entry is not handed out twice")

	none, err := repo.MarkProcessing(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestGormOutboxRepository_RetryAndDeadLetters(t *testing.T) {
	repo := NewGormOutboxRepository(testutil.NewSQLiteDB(t))
	ctx := context.Background()

	due := newOutboxEntry("TestEvent")
	due.MaxRetries = 3
	later := newOutboxEntry("TestEvent")
	dead := newOutboxEntry("TestEvent")
	dead.MaxRetries = 1
	require.NoError(t, repo.Save(ctx, due, later, dead))

	due.MarkFailed("timeout")
	past := time.Now().Add(-time.Hour)
	due.NextRetryAt = &past
	require.NoError(t, repo.Update(ctx, due))

	later.MarkFailed("timeout")
	future := time.Now().Add(time.Hour)
	later.NextRetryAt = &future
	require.NoError(t, repo.Update(ctx, later))

	dead.MarkFailed("handler rejected payload")
	require.True(t, dead.IsDead())
	require.NoError(t, repo.Update(ctx, dead))

	retryable, err := repo.FindRetryable(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, retryable, 1)
	assert.Equal(t, due.ID, retryable[0].ID)
	assert.Equal(t, 1, retryable[0].RetryCount)

	deadEntries, total, err := repo.FindDead(ctx, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, deadEntries, 1)
	assert.Equal(t, "handler rejected payload", deadEntries[0].LastError)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[shared.OutboxStatusFailed])
	assert.Equal(t, int64(1), counts[shared.OutboxStatusDead])
}

func TestGormOutboxRepository_DeleteOlderThan(t *testing.T) {
	repo := NewGormOutboxRepository(testutil.NewSQLiteDB(t))
	ctx := context.Background()

	old := newOutboxEntry("TestEvent")
	recent := newOutboxEntry("TestEvent")
	pending := newOutboxEntry("TestEvent")
	require.NoError(t, repo.Save(ctx, old, recent, pending))

	old.MarkSent()
	weekAgo := time.Now().Add(-8 * 24 * time.Hour)
	old.ProcessedAt = &weekAgo
	require.NoError(t, repo.Update(ctx, old))
	recent.MarkSent()
	require.NoError(t, repo.Update(ctx, recent))

	deleted, err := repo.DeleteOlderThan(ctx, time.Now().Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.FindByID(ctx, old.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = repo.FindByID(ctx, pending.ID)
	assert.NoError(t, err)
}
