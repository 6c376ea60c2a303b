package profile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storeErrors "github.com/fitlocker/fitlocker/errors"
	"github.com/fitlocker/fitlocker/store/storetest"
)

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := storetest.New()
	m := NewManager(s)

	current, err := m.CurrentUserID(ctx)
	require.NoError(t, err)
	assert.Empty(t, current)

	require.NoError(t, m.Login(ctx, "u1"))
	current, err = m.CurrentUserID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", current)

	// The session is a plain setting: a manager over the same store sees
	// it, which is what makes it survive restarts.
	current, err = NewManager(s).CurrentUserID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", current)

	require.NoError(t, m.Logout(ctx))
	current, err = m.CurrentUserID(ctx)
	require.NoError(t, err)
	assert.Empty(t, current)
}

func TestLoginRequiresUser(t *testing.T) {
	m := NewManager(storetest.New())
	require.Error(t, m.Login(context.Background(), ""))
}

func TestCreateAndFetchUser(t *testing.T) {
	ctx := context.Background()
	m := NewManager(storetest.New())

	id, err := m.CreateUser(ctx, User{Email: "coach@example.com", Name: "Coach", Type: "trainer"})
	require.NoError(t, err)

	byID, err := m.GetUser(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "trainer", byID.Type)

	byEmail, err := m.GetUserByEmail(ctx, "coach@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, id, byEmail.ID)

	missing, err := m.GetUserByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	m := NewManager(storetest.New())

	_, err := m.CreateUser(ctx, User{Email: "coach@example.com"})
	require.NoError(t, err)

	_, err = m.CreateUser(ctx, User{Email: "coach@example.com"})
	require.Error(t, err)
	assert.Equal(t, storeErrors.KindConflict, storeErrors.KindOf(err))
}

func TestCreateUserDefaultsType(t *testing.T) {
	ctx := context.Background()
	m := NewManager(storetest.New())

	id, err := m.CreateUser(ctx, User{Email: "ana@example.com"})
	require.NoError(t, err)

	u, err := m.GetUser(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "student", u.Type)
}
