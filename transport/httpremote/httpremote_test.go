package httpremote

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syncErrors "github.com/fitlocker/fitlocker/errors"
	"github.com/fitlocker/fitlocker/record"
)

var testSecret = []byte("test-secret")

func setupRemote(t *testing.T) (*Server, *Client) {
	t.Helper()
	srv := NewServer(testSecret)
	srv.FeedHeartbeat = 100 * time.Millisecond

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	token, err := NewSessionToken(testSecret, "user-1", time.Hour)
	require.NoError(t, err)

	client := NewClient(ts.URL, WithToken(token))
	t.Cleanup(func() { client.Close() })
	return srv, client
}

func TestHandshake(t *testing.T) {
	_, client := setupRemote(t)
	require.NoError(t, client.Handshake(context.Background()))
}

func TestHandshakeRejectsMissingToken(t *testing.T) {
	srv := NewServer(testSecret)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	client := NewClient(ts.URL) // no token
	err := client.Handshake(context.Background())
	require.Error(t, err)
	assert.Equal(t, syncErrors.KindUnavailable, syncErrors.KindOf(err))
}

func TestAddReturnsCloudID(t *testing.T) {
	_, client := setupRemote(t)
	ctx := context.Background()

	id, err := client.Add(ctx, record.Workouts, record.Record{
		ID:     3, // local id travels in the payload but does not become the cloud id
		Fields: record.Fields{"userId": "u1", "name": "Push A"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.NotEqual(t, "3", id)

	got, err := client.Get(ctx, record.Workouts, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.CloudID)
	assert.Equal(t, "Push A", got.Fields.String("name"))
	assert.False(t, got.CreatedAt.IsZero())
}

func TestGetAbsentReturnsNil(t *testing.T) {
	_, client := setupRemote(t)
	got, err := client.Get(context.Background(), record.Workouts, "no-such-id")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetByIndexFiltersExactly(t *testing.T) {
	_, client := setupRemote(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := client.Add(ctx, record.Workouts, record.Record{
			Fields: record.Fields{"userId": "u1"},
		})
		require.NoError(t, err)
	}
	_, err := client.Add(ctx, record.Workouts, record.Record{
		Fields: record.Fields{"userId": "u2"},
	})
	require.NoError(t, err)

	recs, err := client.GetByIndex(ctx, record.Workouts, "userId", "u1")
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

func TestUpdateAndDelete(t *testing.T) {
	_, client := setupRemote(t)
	ctx := context.Background()

	id, err := client.Add(ctx, record.Progress, record.Record{
		Fields: record.Fields{"userId": "u1", "weight": 80.0},
	})
	require.NoError(t, err)

	got, err := client.Get(ctx, record.Progress, id)
	require.NoError(t, err)

	updated := got.Clone()
	updated.Fields["weight"] = 79.0
	_, err = client.Update(ctx, record.Progress, updated)
	require.NoError(t, err)

	got, err = client.Get(ctx, record.Progress, id)
	require.NoError(t, err)
	assert.Equal(t, 79.0, got.Fields.Float("weight"))

	require.NoError(t, client.Delete(ctx, record.Progress, id))
	// Idempotent: deleting again is a no-op.
	require.NoError(t, client.Delete(ctx, record.Progress, id))

	got, err = client.Get(ctx, record.Progress, id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDuplicateUniqueFieldConflicts(t *testing.T) {
	_, client := setupRemote(t)
	ctx := context.Background()

	_, err := client.Add(ctx, record.Users, record.Record{
		Fields: record.Fields{"email": "dup@example.com"},
	})
	require.NoError(t, err)

	_, err = client.Add(ctx, record.Users, record.Record{
		Fields: record.Fields{"email": "dup@example.com"},
	})
	require.Error(t, err)
	assert.Equal(t, syncErrors.KindConflict, syncErrors.KindOf(err))
}

func TestSettingsRoundTrip(t *testing.T) {
	_, client := setupRemote(t)
	ctx := context.Background()

	missing, err := client.GetSetting(ctx, "global_theme")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, client.SetSetting(ctx, "global_theme", "dark"))
	got, err := client.GetSetting(ctx, "global_theme")
	require.NoError(t, err)
	assert.Equal(t, "dark", got)
}

func TestSubscribeDeliversSnapshotThenUpdates(t *testing.T) {
	_, client := setupRemote(t)
	ctx := context.Background()

	_, err := client.Add(ctx, record.Checkins, record.Record{
		Fields: record.Fields{"userId": "u1", "date": "2025-06-02"},
	})
	require.NoError(t, err)

	updates := make(chan int, 16)
	unsub, err := client.Subscribe(ctx, record.Checkins, "userId", "u1", func(recs []record.Record) {
		updates <- len(recs)
	})
	require.NoError(t, err)
	defer unsub()

	// Initial snapshot fires with current state.
	select {
	case n := <-updates:
		assert.Equal(t, 1, n)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for initial snapshot")
	}

	_, err = client.Add(ctx, record.Checkins, record.Record{
		Fields: record.Fields{"userId": "u1", "date": "2025-06-03"},
	})
	require.NoError(t, err)

	// Mutation push carries the full matching set.
	deadline := time.After(5 * time.Second)
	for {
		select {
		case n := <-updates:
			if n == 2 {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for mutation push")
		}
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	_, client := setupRemote(t)

	unsub, err := client.Subscribe(context.Background(), record.Workouts, "userId", "u1", func([]record.Record) {})
	require.NoError(t, err)

	unsub()
	unsub() // second call must be a safe no-op
}
