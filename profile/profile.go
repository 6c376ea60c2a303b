// Package profile tracks who is logged in on the device and provides user
// account helpers. The current user id is persisted as the global
// currentUserId setting so the session survives restarts.
package profile

import (
	"context"

	storeErrors "github.com/fitlocker/fitlocker/errors"
	"github.com/fitlocker/fitlocker/logging"
	"github.com/fitlocker/fitlocker/record"
	"github.com/fitlocker/fitlocker/store"
)

const (
	opCreateUser = storeErrors.Operation("profile.CreateUser")
	opLogin      = storeErrors.Operation("profile.Login")

	component = storeErrors.Component("profile")
)

const currentUserSetting = "currentUserId"

// User is an account record.
type User struct {
	ID    string
	Email string
	Name  string
	// Type is "trainer" or "student".
	Type string
}

// Manager persists the device session and user accounts.
type Manager struct {
	store  store.Store
	logger *logging.Logger
}

func NewManager(s store.Store) *Manager {
	return &Manager{
		store:  s,
		logger: logging.WithComponent(logging.Component("profile")),
	}
}

// Login records userID as the device's current user.
func (m *Manager) Login(ctx context.Context, userID string) error {
	if userID == "" {
		return storeErrors.E(opLogin, component, storeErrors.KindValidation,
			"login requires a userId")
	}
	key := record.ScopedKey(record.ScopeGlobal, currentUserSetting)
	return m.store.SetSetting(ctx, key, userID)
}

// Logout clears the device's current user.
func (m *Manager) Logout(ctx context.Context) error {
	key := record.ScopedKey(record.ScopeGlobal, currentUserSetting)
	return m.store.SetSetting(ctx, key, "")
}

// CurrentUserID returns the logged-in user's id, or "" when nobody is.
func (m *Manager) CurrentUserID(ctx context.Context) (string, error) {
	key := record.ScopedKey(record.ScopeGlobal, currentUserSetting)
	value, err := m.store.GetSetting(ctx, key)
	if err != nil {
		return "", err
	}
	id, _ := value.(string)
	return id, nil
}

// CreateUser stores a new account. A duplicate email surfaces as a
// conflict from the users collection's unique index.
func (m *Manager) CreateUser(ctx context.Context, u User) (string, error) {
	if u.Email == "" {
		return "", storeErrors.E(opCreateUser, component, storeErrors.KindValidation,
			"user requires an email")
	}
	userType := u.Type
	if userType == "" {
		userType = "student"
	}
	id, err := m.store.Add(ctx, record.Users, record.Record{Fields: record.Fields{
		"email": u.Email,
		"name":  u.Name,
		"type":  userType,
	}})
	if err != nil {
		return "", storeErrors.WrapOpComponent(err, opCreateUser, component)
	}
	return id, nil
}

// GetUser returns the account with that id, or nil if absent.
func (m *Manager) GetUser(ctx context.Context, id string) (*User, error) {
	rec, err := m.store.Get(ctx, record.Users, id)
	if err != nil || rec == nil {
		return nil, err
	}
	u := fromRecord(*rec)
	return &u, nil
}

// GetUserByEmail returns the account with that email, or nil if absent.
func (m *Manager) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	recs, err := m.store.GetByIndex(ctx, record.Users, "email", email)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	u := fromRecord(recs[0])
	return &u, nil
}

func fromRecord(rec record.Record) User {
	return User{
		ID:    rec.Key(),
		Email: rec.Fields.String("email"),
		Name:  rec.Fields.String("name"),
		Type:  rec.Fields.String("type"),
	}
}
