package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/procurement/backend/internal/domain/shared"
	"github.com/procurement/backend/internal/infrastructure/config"
	"github.com/procurement/backend/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memoryOutbox is an OutboxRepository over a map of copies; the *Err fields
// inject failures
type memoryOutbox struct {
	mu         sync.Mutex
	entries    map[uuid.UUID]*shared.OutboxEntry
	pendingErr error
	updateErr  error
	deleted    []time.Time
}

func newMemoryOutbox() *memoryOutbox {
	return &memoryOutbox{entries: make(map[uuid.UUID]*shared.OutboxEntry)}
}

func (r *memoryOutbox) Save(_ context.Context, entries ...*shared.OutboxEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range entries {
		c := *e
		r.entries[e.ID] = &c
	}
	return nil
}

func (r *memoryOutbox) filter(keep func(*shared.OutboxEntry) bool, limit int) []*shared.OutboxEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*shared.OutboxEntry
	for _, e := range r.entries {
		if keep(e) && len(out) < limit {
			c := *e
			out = append(out, &c)
		}
	}
	return out
}

func (r *memoryOutbox) FindPending(_ context.Context, limit int) ([]*shared.OutboxEntry, error) {
	if r.pendingErr != nil {
		return nil, r.pendingErr
	}
	return r.filter(func(e *shared.OutboxEntry) bool { return e.Status == shared.OutboxStatusPending }, limit), nil
}

func (r *memoryOutbox) FindRetryable(_ context.Context, before time.Time, limit int) ([]*shared.OutboxEntry, error) {
	return r.filter(func(e *shared.OutboxEntry) bool {
		return e.Status == shared.OutboxStatusFailed && e.NextRetryAt != nil && !e.NextRetryAt.After(before)
	}, limit), nil
}

func (r *memoryOutbox) MarkProcessing(_ context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*shared.OutboxEntry
	for _, id := range ids {
		if e, ok := r.entries[id]; ok && e.MarkProcessing() == nil {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *memoryOutbox) Update(_ context.Context, entry *shared.OutboxEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	c := *entry
	r.entries[entry.ID] = &c
	return nil
}

func (r *memoryOutbox) DeleteOlderThan(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, before)
	return 2, nil
}

func (r *memoryOutbox) FindDead(_ context.Context, _, pageSize int) ([]*shared.OutboxEntry, int64, error) {
	dead := r.filter(func(e *shared.OutboxEntry) bool { return e.IsDead() }, pageSize)
	return dead, int64(len(dead)), nil
}

func (r *memoryOutbox) FindByID(_ context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		c := *e
		return &c, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memoryOutbox) CountByStatus(_ context.Context) (map[shared.OutboxStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[shared.OutboxStatus]int64)
	for _, e := range r.entries {
		counts[e.Status]++
	}
	return counts, nil
}

func (r *memoryOutbox) get(id uuid.UUID) shared.OutboxEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.entries[id]
}

func (r *memoryOutbox) status(id uuid.UUID) shared.OutboxStatus {
	return r.get(id).Status
}

func (r *memoryOutbox) edit(id uuid.UUID, fn func(*shared.OutboxEntry)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.entries[id])
}

func testSerializer() *EventSerializer {
	s := NewEventSerializer()
	s.Register("TestEvent", func() shared.DomainEvent { return &testEvent{} })
	return s
}

func stageEntry(t *testing.T, repo *memoryOutbox, serializer *EventSerializer) *shared.OutboxEntry {
	t.Helper()
	event := newTestEvent("TestEvent")
	payload, err := serializer.Serialize(event)
	require.NoError(t, err)
	entry := shared.NewOutboxEntry(event, payload)
	require.NoError(t, repo.Save(context.Background(), entry))
	return entry
}

func TestOutboxProcessor_ProcessOnce_Delivers(t *testing.T) {
	metrics, reader := newTestMetrics(t)
	serializer := testSerializer()
	repo := newMemoryOutbox()
	bus := NewInMemoryEventBus(nil)
	handler := newTestHandler("TestEvent")
	bus.Subscribe(handler)

	for range 3 {
		stageEntry(t, repo, serializer)
	}
	processor := NewOutboxProcessor(repo, bus, serializer, DefaultOutboxProcessorConfig(), nil, WithProcessorMetrics(metrics))

	sent, err := processor.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
	assert.Len(t, handler.getHandled(), 3)
	assert.Equal(t, int64(3), counterValue(t, reader, "event_deliveries_total", OutcomeSent))
	assert.Equal(t, int64(3), counterValue(t, reader, "outbox_claimed_total", ""))

	sent, err = processor.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent, "sent entries are not relayed twice")
}

func TestOutboxProcessor_FailureSchedulesRetryThenDeadLetters(t *testing.T) {
	metrics, reader := newTestMetrics(t)
	serializer := testSerializer()
	repo := newMemoryOutbox()
	bus := NewInMemoryEventBus(nil)
	handler := newTestHandler("TestEvent")
	handler.setError(errors.New("notifier unavailable"))
	bus.Subscribe(handler)

	entry := stageEntry(t, repo, serializer)
	repo.edit(entry.ID, func(e *shared.OutboxEntry) { e.MaxRetries = 2 })
	processor := NewOutboxProcessor(repo, bus, serializer, DefaultOutboxProcessorConfig(), nil, WithProcessorMetrics(metrics))

	sent, err := processor.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
	failed := repo.get(entry.ID)
	assert.Equal(t, shared.OutboxStatusFailed, failed.Status)
	assert.Contains(t, failed.LastError, "notifier unavailable")
	require.NotNil(t, failed.NextRetryAt)

	// make the retry due now
	past := time.Now().Add(-time.Second)
	repo.edit(entry.ID, func(e *shared.OutboxEntry) { e.NextRetryAt = &past })
	_, err = processor.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, shared.OutboxStatusDead, repo.status(entry.ID))
	assert.Equal(t, int64(1), counterValue(t, reader, "event_deliveries_total", OutcomeFailed))
	assert.Equal(t, int64(1), counterValue(t, reader, "event_deliveries_total", OutcomeDead))
}

func TestOutboxProcessor_UnknownTypeFails(t *testing.T) {
	repo := newMemoryOutbox()
	entry := shared.NewOutboxEntry(newTestEvent("Retired"), []byte(`{}`))
	require.NoError(t, repo.Save(context.Background(), entry))

	processor := NewOutboxProcessor(repo, NewInMemoryEventBus(nil), NewEventSerializer(), DefaultOutboxProcessorConfig(), nil)
	_, err := processor.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, shared.OutboxStatusFailed, repo.status(entry.ID))
	assert.Contains(t, repo.get(entry.ID).LastError, "unknown event type")
}

func TestOutboxProcessor_StoppedBusKeepsEntries(t *testing.T) {
	serializer := testSerializer()
	repo := newMemoryOutbox()
	bus := NewInMemoryEventBus(nil)
	require.NoError(t, bus.Stop(context.Background()))

	entry := stageEntry(t, repo, serializer)
	processor := NewOutboxProcessor(repo, bus, serializer, DefaultOutboxProcessorConfig(), nil)
	_, err := processor.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, shared.OutboxStatusFailed, repo.status(entry.ID))
	assert.Contains(t, repo.get(entry.ID).LastError, ErrBusStopped.Error())
}

func TestOutboxProcessor_ProcessOnce_RepositoryError(t *testing.T) {
	repo := newMemoryOutbox()
	repo.pendingErr = errors.New("connection refused")
	processor := NewOutboxProcessor(repo, NewInMemoryEventBus(nil), testSerializer(), DefaultOutboxProcessorConfig(), nil)

	_, err := processor.ProcessOnce(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}

func TestOutboxProcessor_UpdateFailureIsNotCountedAsSent(t *testing.T) {
	serializer := testSerializer()
	repo := newMemoryOutbox()
	stageEntry(t, repo, serializer)
	repo.updateErr = errors.New("disk full")

	bus := NewInMemoryEventBus(nil)
	bus.Subscribe(newTestHandler("TestEvent"))
	processor := NewOutboxProcessor(repo, bus, serializer, DefaultOutboxProcessorConfig(), nil)

	sent, err := processor.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestOutboxProcessor_Cleanup(t *testing.T) {
	repo := newMemoryOutbox()
	cfg := DefaultOutboxProcessorConfig()
	cfg.CleanupRetention = 24 * time.Hour
	processor := NewOutboxProcessor(repo, NewInMemoryEventBus(nil), testSerializer(), cfg, nil)

	deleted, err := processor.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
	require.Len(t, repo.deleted, 1)
	assert.WithinDuration(t, time.Now().Add(-24*time.Hour), repo.deleted[0], time.Second)

	cfg.CleanupRetention = 0
	disabled := NewOutboxProcessor(repo, NewInMemoryEventBus(nil), testSerializer(), cfg, nil)
	deleted, err = disabled.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Zero(t, deleted)
	assert.Len(t, repo.deleted, 1)
}

func TestOutboxProcessor_StartStop(t *testing.T) {
	serializer := testSerializer()
	repo := newMemoryOutbox()
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := newTestHandler("TestEvent")
	bus.Subscribe(handler)

	cfg := DefaultOutboxProcessorConfig()
	cfg.PollInterval = 10 * time.Millisecond
	processor := NewOutboxProcessor(repo, bus, serializer, cfg, zap.NewNop())

	require.NoError(t, processor.Start(context.Background()))
	assert.ErrorIs(t, processor.Start(context.Background()), ErrProcessorRunning)

	entry := stageEntry(t, repo, serializer)
	assert.True(t, testutil.WaitForCondition(t, func() bool {
		return repo.status(entry.ID) == shared.OutboxStatusSent
	}, time.Second, 10*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, processor.Stop(ctx))
	require.NoError(t, processor.Stop(ctx), "second stop is a no-op")
}

func TestOutboxProcessorConfigFrom(t *testing.T) {
	cfg := OutboxProcessorConfigFrom(config.OutboxConfig{BatchSize: 25, PollInterval: time.Second})
	assert.Equal(t, 25, cfg.BatchSize)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 7*24*time.Hour, cfg.CleanupRetention)
	assert.Equal(t, time.Hour, cfg.CleanupInterval)

	assert.Equal(t, DefaultOutboxProcessorConfig(), OutboxProcessorConfigFrom(config.OutboxConfig{}))
}
