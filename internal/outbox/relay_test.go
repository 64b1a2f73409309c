package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/authplane/authplane/internal/db/bunx"
	"github.com/authplane/authplane/internal/db/models"
	"github.com/authplane/authplane/internal/repository"
)

func setupOutbox(t *testing.T) (*bun.DB, repository.OutboxRepository) {
	t.Helper()
	db, err := bunx.NewDB(":memory:", 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.NewCreateTable().Model((*models.OutboxEvent)(nil)).Exec(context.Background())
	require.NoError(t, err)

	return db, repository.NewBunOutboxRepository(db)
}

type recordingSubscriber struct {
	name   string
	seen   []string
	failOn map[string]error
}

func (s *recordingSubscriber) Name() string { return s.name }

func (s *recordingSubscriber) Handle(_ context.Context, event models.OutboxEvent) error {
	if err, ok := s.failOn[event.EventType]; ok {
		return err
	}
	s.seen = append(s.seen, event.EventType)
	return nil
}

func TestOutboxEmitPersistsInOrder(t *testing.T) {
	_, repo := setupOutbox(t)
	ctx := context.Background()
	ob := New(repo)

	require.NoError(t, ob.Emit(ctx,
		Event{AggregateType: AggregatePolicy, AggregateID: "1", Type: EventPolicyCreated, Payload: map[string]string{"subject": "admin"}},
		Event{AggregateType: AggregatePolicy, AggregateID: "1", Type: EventPolicyDeleted},
	))

	events, err := repo.ListUndelivered(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventPolicyCreated, events[0].EventType)
	assert.Equal(t, EventPolicyDeleted, events[1].EventType)
	assert.JSONEq(t, `{"subject":"admin"}`, string(events[0].Payload))
	assert.Equal(t, json.RawMessage("null"), events[1].Payload)
}

func TestRelayDeliversAndMarks(t *testing.T) {
	_, repo := setupOutbox(t)
	ctx := context.Background()
	ob := New(repo)

	require.NoError(t, ob.Emit(ctx,
		Event{AggregateType: AggregateModel, AggregateID: "3", Type: EventModelPublished},
		Event{AggregateType: AggregateModel, AggregateID: "3", Type: EventModelRolledBack},
	))

	sub := &recordingSubscriber{name: "recorder"}
	relay := NewRelay(repo, time.Minute, sub)
	relay.Drain(ctx)

	assert.Equal(t, []string{EventModelPublished, EventModelRolledBack}, sub.seen)

	remaining, err := repo.ListUndelivered(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestRelayHoldsBatchOnSubscriberFailure(t *testing.T) {
	_, repo := setupOutbox(t)
	ctx := context.Background()
	ob := New(repo)

	require.NoError(t, ob.Emit(ctx,
		Event{AggregateType: AggregatePolicy, AggregateID: "1", Type: EventPolicyCreated},
		Event{AggregateType: AggregatePolicy, AggregateID: "1", Type: EventPolicyDeleted},
		Event{AggregateType: AggregatePolicy, AggregateID: "2", Type: EventPolicyCreated},
	))

	sub := &recordingSubscriber{
		name:   "flaky",
		failOn: map[string]error{EventPolicyDeleted: errors.New("sink down")},
	}
	relay := NewRelay(repo, time.Minute, sub)
	relay.Drain(ctx)

	// Only the event before the failure was delivered; everything after it
	// is held so per-aggregate order survives the retry.
	assert.Equal(t, []string{EventPolicyCreated}, sub.seen)

	remaining, err := repo.ListUndelivered(ctx, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.Equal(t, EventPolicyDeleted, remaining[0].EventType)

	// Sink recovers: the held events drain in order.
	sub.failOn = nil
	relay.Drain(ctx)
	assert.Equal(t, []string{EventPolicyCreated, EventPolicyDeleted, EventPolicyCreated}, sub.seen)

	remaining, err = repo.ListUndelivered(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestRelayRunStopsOnCancel(t *testing.T) {
	_, repo := setupOutbox(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	relay := NewRelay(repo, 10*time.Millisecond)
	go func() {
		relay.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay did not stop after cancel")
	}
}

func TestAuditSubscribersTolerateAnyEvent(t *testing.T) {
	event := models.OutboxEvent{
		AggregateType: AggregatePrincipal,
		AggregateID:   "42",
		EventType:     EventUserLoggedIn,
		Payload:       json.RawMessage(`{"username":"alice"}`),
	}
	require.NoError(t, LoginAuditLog{}.Handle(context.Background(), event))
	require.NoError(t, OperationAuditLog{}.Handle(context.Background(), event))
}
