package workout

import (
	"context"

	storeErrors "github.com/fitlocker/fitlocker/errors"
	"github.com/fitlocker/fitlocker/logging"
	"github.com/fitlocker/fitlocker/record"
	"github.com/fitlocker/fitlocker/store"
)

const (
	opCreate = storeErrors.Operation("workout.CreateWorkout")
	opUpdate = storeErrors.Operation("workout.UpdateWorkout")

	component = storeErrors.Component("workout")
)

// Manager provides CRUD over workout definitions.
type Manager struct {
	store  store.Store
	logger *logging.Logger
}

// NewManager creates a workout manager over the given store.
func NewManager(s store.Store) *Manager {
	return &Manager{
		store:  s,
		logger: logging.WithComponent(logging.Component("workout")),
	}
}

// CreateWorkout stores a new workout definition and returns its id.
func (m *Manager) CreateWorkout(ctx context.Context, w Workout) (string, error) {
	if w.UserID == "" || w.Name == "" {
		return "", storeErrors.E(opCreate, component, storeErrors.KindValidation,
			"workout requires a userId and a name")
	}
	id, err := m.store.Add(ctx, record.Workouts, record.Record{Fields: w.fields()})
	if err != nil {
		return "", storeErrors.WrapOpComponent(err, opCreate, component)
	}
	return id, nil
}

// GetWorkouts returns every workout owned by the user.
func (m *Manager) GetWorkouts(ctx context.Context, userID string) ([]Workout, error) {
	recs, err := m.store.GetByIndex(ctx, record.Workouts, "userId", userID)
	if err != nil {
		return nil, err
	}
	out := make([]Workout, 0, len(recs))
	for _, rec := range recs {
		out = append(out, fromRecord(rec))
	}
	return out, nil
}

// GetWorkout returns the workout with the given id, or nil if absent.
func (m *Manager) GetWorkout(ctx context.Context, id string) (*Workout, error) {
	rec, err := m.store.Get(ctx, record.Workouts, id)
	if err != nil || rec == nil {
		return nil, err
	}
	w := fromRecord(*rec)
	return &w, nil
}

// UpdateWorkout replaces the definition identified by w.ID.
func (m *Manager) UpdateWorkout(ctx context.Context, w Workout) error {
	rec, err := m.store.Get(ctx, record.Workouts, w.ID)
	if err != nil {
		return err
	}
	if rec == nil {
		return storeErrors.E(opUpdate, component, storeErrors.KindNotFound,
			"workout does not exist")
	}
	rec.Fields = w.fields()
	_, err = m.store.Update(ctx, record.Workouts, *rec)
	return storeErrors.WrapOpComponent(err, opUpdate, component)
}

// DeleteWorkout removes the definition. Absent ids are a no-op.
func (m *Manager) DeleteWorkout(ctx context.Context, id string) error {
	return m.store.Delete(ctx, record.Workouts, id)
}
