// Package student manages a trainer's roster. Each student is backed by a
// user account (where the unique email constraint lives) plus a roster
// record scoped to the trainer.
package student

import (
	"context"

	storeErrors "github.com/fitlocker/fitlocker/errors"
	"github.com/fitlocker/fitlocker/logging"
	"github.com/fitlocker/fitlocker/record"
	"github.com/fitlocker/fitlocker/store"
)

const (
	opAdd    = storeErrors.Operation("student.AddStudent")
	opUpdate = storeErrors.Operation("student.UpdateStudent")

	component = storeErrors.Component("student")
)

// Student is one roster entry.
type Student struct {
	ID        string
	TrainerID string
	UserID    string
	Name      string
	Email     string
	Phone     string
	Goal      string
	Active    bool
}

// Manager reads and writes the students collection.
type Manager struct {
	store  store.Store
	logger *logging.Logger
}

func NewManager(s store.Store) *Manager {
	return &Manager{
		store:  s,
		logger: logging.WithComponent(logging.Component("student")),
	}
}

// AddStudent creates the backing user account, then the roster record. A
// duplicate email is rejected by the users collection's unique index and
// surfaces as a conflict.
func (m *Manager) AddStudent(ctx context.Context, s Student) (string, error) {
	if s.TrainerID == "" || s.Email == "" {
		return "", storeErrors.E(opAdd, component, storeErrors.KindValidation,
			"student requires a trainerId and an email")
	}

	userID, err := m.store.Add(ctx, record.Users, record.Record{Fields: record.Fields{
		"email": s.Email,
		"name":  s.Name,
		"type":  "student",
	}})
	if err != nil {
		return "", storeErrors.WrapOpComponent(err, opAdd, component)
	}

	id, err := m.store.Add(ctx, record.Students, record.Record{Fields: record.Fields{
		"trainerId": s.TrainerID,
		"userId":    userID,
		"name":      s.Name,
		"email":     s.Email,
		"phone":     s.Phone,
		"goal":      s.Goal,
		"active":    true,
	}})
	if err != nil {
		return "", storeErrors.WrapOpComponent(err, opAdd, component)
	}
	return id, nil
}

// GetStudents returns the trainer's roster.
func (m *Manager) GetStudents(ctx context.Context, trainerID string) ([]Student, error) {
	recs, err := m.store.GetByIndex(ctx, record.Students, "trainerId", trainerID)
	if err != nil {
		return nil, err
	}
	out := make([]Student, 0, len(recs))
	for _, rec := range recs {
		out = append(out, fromRecord(rec))
	}
	return out, nil
}

// UpdateStudent replaces the roster entry identified by s.ID.
func (m *Manager) UpdateStudent(ctx context.Context, s Student) error {
	rec, err := m.store.Get(ctx, record.Students, s.ID)
	if err != nil {
		return err
	}
	if rec == nil {
		return storeErrors.E(opUpdate, component, storeErrors.KindNotFound,
			"student does not exist")
	}
	rec.Fields["name"] = s.Name
	rec.Fields["phone"] = s.Phone
	rec.Fields["goal"] = s.Goal
	rec.Fields["active"] = s.Active
	_, err = m.store.Update(ctx, record.Students, *rec)
	return storeErrors.WrapOpComponent(err, opUpdate, component)
}

// RemoveStudent deletes the roster entry. The backing user account is kept:
// the student may train under another trainer or on their own.
func (m *Manager) RemoveStudent(ctx context.Context, id string) error {
	return m.store.Delete(ctx, record.Students, id)
}

func fromRecord(rec record.Record) Student {
	active, _ := rec.Fields["active"].(bool)
	return Student{
		ID:        rec.Key(),
		TrainerID: rec.Fields.String("trainerId"),
		UserID:    rec.Fields.String("userId"),
		Name:      rec.Fields.String("name"),
		Email:     rec.Fields.String("email"),
		Phone:     rec.Fields.String("phone"),
		Goal:      rec.Fields.String("goal"),
		Active:    active,
	}
}
