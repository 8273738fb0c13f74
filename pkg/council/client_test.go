package council

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestNewClient_RequiresInstanceName(t *testing.T) {
	_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instance name cannot be empty")
}

func TestSaveAndGetRecord(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	record := validRecord()
	entries := []*BlackboardEntry{
		{
			ID:          "b52cdd83-3a77-4a0e-b43c-91c3bb330001",
			PersonaID:   "architect",
			Kind:        EntryKindConcern,
			Text:        "legacy integration risk",
			CreatedAtMs: 2000,
		},
		{
			ID:          "b52cdd83-3a77-4a0e-b43c-91c3bb330002",
			PersonaID:   "architect",
			Kind:        EntryKindOpportunity,
			Text:        "chance to simplify",
			CreatedAtMs: 1000,
		},
	}

	require.NoError(t, client.SaveRecord(ctx, record, entries))

	got, err := client.GetRecord(ctx, record.ID)
	require.NoError(t, err)

	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, record.Query.Text, got.Query.Text)
	assert.Equal(t, record.State, got.State)
	require.NotNil(t, got.Decision)
	assert.Equal(t, record.Decision.Recommendation, got.Decision.Recommendation)
	assert.Equal(t, record.Stats, got.Stats)
	require.Len(t, got.Opinions, 1)
	assert.Equal(t, "architect", got.Opinions[0].PersonaID)

	board, err := client.GetBoardEntries(ctx, record.ID)
	require.NoError(t, err)
	require.Len(t, board, 2)
	// Sorted by creation time
	assert.Equal(t, "chance to simplify", board[0].Text)
	assert.Equal(t, "legacy integration risk", board[1].Text)
}

func TestSaveRecord_RejectsInvalidRecord(t *testing.T) {
	client, _ := setupTestClient(t)

	record := validRecord()
	record.State = SessionStateDeliberating

	err := client.SaveRecord(context.Background(), record, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid session record")
}

func TestGetRecord_NotFound(t *testing.T) {
	client, _ := setupTestClient(t)

	_, err := client.GetRecord(context.Background(), "71f3207f-53fa-4e33-9a3c-33bf17f24999")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestScanSessions(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	ids := []string{
		"71f3207f-53fa-4e33-9a3c-33bf17f24001",
		"71f3207f-53fa-4e33-9a3c-33bf17f24002",
		"8a000000-53fa-4e33-9a3c-33bf17f24003",
	}
	for _, id := range ids {
		record := validRecord()
		record.ID = id
		require.NoError(t, client.SaveRecord(ctx, record, []*BlackboardEntry{
			{
				ID:          "b52cdd83-3a77-4a0e-b43c-91c3bb330001",
				PersonaID:   "architect",
				Kind:        EntryKindConcern,
				Text:        "noise entry",
				CreatedAtMs: 1,
			},
		}))
	}

	// All sessions, without the :opinions and :board subkeys
	all, err := client.ScanSessions(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, ids, all)

	// Prefix match
	matched, err := client.ScanSessions(ctx, "71f3207f")
	require.NoError(t, err)
	assert.Equal(t, ids[:2], matched)

	none, err := client.ScanSessions(ctx, "ffffffff")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestProgressPublishSubscribe(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	sub, err := client.SubscribeProgress(ctx)
	require.NoError(t, err)
	defer sub.Close()

	// Give the subscriber goroutine time to attach
	time.Sleep(50 * time.Millisecond)

	confidence := 0.66
	ev := &ProgressEvent{
		SessionID:         "71f3207f-53fa-4e33-9a3c-33bf17f24001",
		Stage:             StageGatheringResponses,
		PersonasCompleted: []string{"architect"},
		TotalPersonas:     3,
		CurrentConfidence: &confidence,
		TimestampMs:       time.Now().UnixMilli(),
	}
	require.NoError(t, client.PublishProgress(ctx, ev))

	select {
	case got := <-sub.Events():
		assert.Equal(t, ev.SessionID, got.SessionID)
		assert.Equal(t, StageGatheringResponses, got.Stage)
		require.NotNil(t, got.CurrentConfidence)
		assert.Equal(t, 0.66, *got.CurrentConfidence)
	case err := <-sub.Errors():
		t.Fatalf("unexpected subscription error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for progress event")
	}
}

func TestPublishProgress_RejectsInvalidEvent(t *testing.T) {
	client, _ := setupTestClient(t)

	err := client.PublishProgress(context.Background(), &ProgressEvent{
		SessionID: "not-a-uuid",
		Stage:     StageStarting,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid progress event")
}

func TestQueryPublishSubscribe(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	sub, err := client.SubscribeQueries(ctx)
	require.NoError(t, err)
	defer sub.Close()

	time.Sleep(50 * time.Millisecond)

	q := &Query{
		ID:            "8f14e45f-ceea-4a7a-9c5d-3c1f28e0a001",
		Text:          "should we migrate",
		Context:       map[string]any{"priority": "high"},
		SubmittedAtMs: time.Now().UnixMilli(),
	}
	require.NoError(t, client.PublishQuery(ctx, q))

	select {
	case got := <-sub.Events():
		assert.Equal(t, q.ID, got.ID)
		assert.Equal(t, q.Text, got.Text)
		assert.Equal(t, "high", got.Context["priority"])
	case err := <-sub.Errors():
		t.Fatalf("unexpected subscription error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for query event")
	}
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	client, _ := setupTestClient(t)

	sub, err := client.SubscribeProgress(context.Background())
	require.NoError(t, err)

	assert.NoError(t, sub.Close())
	assert.NoError(t, sub.Close())
}

func TestInstanceIsolation(t *testing.T) {
	_, mr := setupTestClient(t)

	a, err := NewClient(&redis.Options{Addr: mr.Addr()}, "instance-a")
	require.NoError(t, err)
	defer a.Close()

	b, err := NewClient(&redis.Options{Addr: mr.Addr()}, "instance-b")
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	record := validRecord()
	require.NoError(t, a.SaveRecord(ctx, record, nil))

	_, err = b.GetRecord(ctx, record.ID)
	assert.True(t, IsNotFound(err))

	got, err := a.GetRecord(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)
}
