package workout

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitlocker/fitlocker/record"
	"github.com/fitlocker/fitlocker/storage/sqlite"
	"github.com/fitlocker/fitlocker/syncer"
	"github.com/fitlocker/fitlocker/transport/httpremote"
)

// setupCloudManager wires a Manager the way the app runs it online: sqlite
// local store, HTTP client against the reference server, sync adapter in
// cloud mode.
func setupCloudManager(t *testing.T) (*Manager, *sqlite.LocalStore) {
	t.Helper()
	ctx := context.Background()

	local, err := sqlite.NewWithDataSource(filepath.Join(t.TempDir(), "cloud_test.db"))
	require.NoError(t, err)
	require.NoError(t, local.Init(ctx))
	t.Cleanup(func() { local.Close() })

	secret := []byte("cloud-test-secret")
	srv := httpremote.NewServer(secret)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	token, err := httpremote.NewSessionToken(secret, "u1", time.Hour)
	require.NoError(t, err)
	remote := httpremote.NewClient(ts.URL, httpremote.WithToken(token))
	t.Cleanup(func() { remote.Close() })

	adapter := syncer.New(local, remote)
	require.NoError(t, adapter.EnableCloud(ctx))
	require.True(t, adapter.IsCloudEnabled())

	return NewManager(adapter), local
}

func TestCloudWorkoutListAndGetByCloudID(t *testing.T) {
	ctx := context.Background()
	m, _ := setupCloudManager(t)

	cloudID, err := m.CreateWorkout(ctx, Workout{
		UserID: "u1",
		Name:   "Push A",
		Exercises: []Exercise{
			{Name: "Bench Press", Muscle: "chest", TargetSets: 3, TargetReps: 8},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, cloudID)

	// Listing goes through the remote, which never returns local ids. The
	// exposed entity id must still round-trip through a point get.
	workouts, err := m.GetWorkouts(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, workouts, 1)
	assert.Equal(t, cloudID, workouts[0].ID)
	assert.Equal(t, cloudID, workouts[0].CloudID)

	got, err := m.GetWorkout(ctx, workouts[0].ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Push A", got.Name)
}

func TestCloudWorkoutUpdateReachesLocalMirror(t *testing.T) {
	ctx := context.Background()
	m, local := setupCloudManager(t)

	cloudID, err := m.CreateWorkout(ctx, Workout{UserID: "u1", Name: "Old Name"})
	require.NoError(t, err)

	listed, err := m.GetWorkouts(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, listed, 1)

	upd := listed[0]
	upd.Name = "New Name"
	require.NoError(t, m.UpdateWorkout(ctx, upd))

	got, err := m.GetWorkout(ctx, cloudID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "New Name", got.Name)

	// The offline copy follows: read the local store directly.
	mirrors, err := local.GetAll(ctx, record.Workouts)
	require.NoError(t, err)
	require.Len(t, mirrors, 1)
	assert.Equal(t, "New Name", mirrors[0].Fields.String("name"))
	assert.Equal(t, cloudID, mirrors[0].CloudID)
}

func TestCloudWorkoutDeleteByListedID(t *testing.T) {
	ctx := context.Background()
	m, local := setupCloudManager(t)

	_, err := m.CreateWorkout(ctx, Workout{UserID: "u1", Name: "Gone"})
	require.NoError(t, err)

	listed, err := m.GetWorkouts(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, listed, 1)

	require.NoError(t, m.DeleteWorkout(ctx, listed[0].ID))

	after, err := m.GetWorkouts(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, after)

	mirrors, err := local.GetAll(ctx, record.Workouts)
	require.NoError(t, err)
	assert.Empty(t, mirrors)
}
