// Package assessment manages the per-user anamnesis: a single latest-wins
// intake document replaced wholesale on every save.
package assessment

import (
	"context"
	"time"

	storeErrors "github.com/fitlocker/fitlocker/errors"
	"github.com/fitlocker/fitlocker/logging"
	"github.com/fitlocker/fitlocker/record"
	"github.com/fitlocker/fitlocker/store"
)

const (
	opSave = storeErrors.Operation("assessment.SaveAnamnesis")

	component = storeErrors.Component("assessment")
)

const dayFormat = "2006-01-02"

// Store is the surface this package needs: plain CRUD plus the natural-key
// upsert the sync adapter provides.
type Store interface {
	store.Store
	Upsert(ctx context.Context, collection record.Collection, field string, value interface{}, fields record.Fields) (string, error)
}

// Anamnesis is a user's health and training intake. One document per user;
// every save replaces the previous one.
type Anamnesis struct {
	UserID            string
	Date              time.Time
	Goal              string
	TrainingDaysWeek  int
	Injuries          string
	MedicalConditions string
	Medications       string
	Smoker            bool
	SleepHours        float64
	Notes             string
}

// Manager reads and writes the assessments collection.
type Manager struct {
	store  Store
	logger *logging.Logger
}

func NewManager(s Store) *Manager {
	return &Manager{
		store:  s,
		logger: logging.WithComponent(logging.Component("assessment")),
	}
}

// SaveAnamnesis upserts the user's anamnesis keyed by userId: the previous
// document, if any, is replaced in place (last write wins).
func (m *Manager) SaveAnamnesis(ctx context.Context, a Anamnesis) (string, error) {
	if a.UserID == "" {
		return "", storeErrors.E(opSave, component, storeErrors.KindValidation,
			"anamnesis requires a userId")
	}
	date := a.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	id, err := m.store.Upsert(ctx, record.Assessments, "userId", a.UserID, record.Fields{
		"userId":            a.UserID,
		"date":              date.Format(dayFormat),
		"goal":              a.Goal,
		"trainingDaysWeek":  a.TrainingDaysWeek,
		"injuries":          a.Injuries,
		"medicalConditions": a.MedicalConditions,
		"medications":       a.Medications,
		"smoker":            a.Smoker,
		"sleepHours":        a.SleepHours,
		"notes":             a.Notes,
	})
	if err != nil {
		return "", storeErrors.WrapOpComponent(err, opSave, component)
	}
	return id, nil
}

// GetAnamnesis returns the user's anamnesis, or nil if never saved.
func (m *Manager) GetAnamnesis(ctx context.Context, userID string) (*Anamnesis, error) {
	recs, err := m.store.GetByIndex(ctx, record.Assessments, "userId", userID)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	f := recs[0].Fields
	date, _ := time.Parse(dayFormat, f.String("date"))
	smoker, _ := f["smoker"].(bool)
	return &Anamnesis{
		UserID:            f.String("userId"),
		Date:              date,
		Goal:              f.String("goal"),
		TrainingDaysWeek:  f.Int("trainingDaysWeek"),
		Injuries:          f.String("injuries"),
		MedicalConditions: f.String("medicalConditions"),
		Medications:       f.String("medications"),
		Smoker:            smoker,
		SleepHours:        f.Float("sleepHours"),
		Notes:             f.String("notes"),
	}, nil
}
