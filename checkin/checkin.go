// Package checkin tracks daily check-ins and derives consecutive-day
// streaks and a Monday-anchored weekly view.
package checkin

import (
	"context"
	"time"

	storeErrors "github.com/fitlocker/fitlocker/errors"
	"github.com/fitlocker/fitlocker/logging"
	"github.com/fitlocker/fitlocker/record"
	"github.com/fitlocker/fitlocker/store"
)

const (
	opCheckIn = storeErrors.Operation("checkin.CheckIn")

	component = storeErrors.Component("checkin")
)

const dayFormat = "2006-01-02"

// Day is one day of the weekly view.
type Day struct {
	Date      time.Time
	CheckedIn bool
}

// Manager reads and writes the checkins collection.
type Manager struct {
	store  store.Store
	logger *logging.Logger
}

func NewManager(s store.Store) *Manager {
	return &Manager{
		store:  s,
		logger: logging.WithComponent(logging.Component("checkin")),
	}
}

// CheckIn records at most one check-in per user per calendar day. A repeat
// call on the same day returns the existing record's id.
func (m *Manager) CheckIn(ctx context.Context, userID string, date time.Time) (string, error) {
	if userID == "" {
		return "", storeErrors.E(opCheckIn, component, storeErrors.KindValidation,
			"check-in requires a userId")
	}
	day := date.Format(dayFormat)

	existing, err := m.store.GetByIndex(ctx, record.Checkins, "userId", userID)
	if err != nil {
		return "", storeErrors.WrapOpComponent(err, opCheckIn, component)
	}
	for _, rec := range existing {
		if rec.Fields.String("date") == day {
			return rec.Key(), nil
		}
	}

	id, err := m.store.Add(ctx, record.Checkins, record.Record{Fields: record.Fields{
		"userId": userID,
		"date":   day,
	}})
	if err != nil {
		return "", storeErrors.WrapOpComponent(err, opCheckIn, component)
	}
	return id, nil
}

// GetStreak counts consecutive check-in days ending today, or yesterday
// when today has none yet. A missed day in between breaks the streak to
// zero.
func (m *Manager) GetStreak(ctx context.Context, userID string, today time.Time) (int, error) {
	days, err := m.days(ctx, userID)
	if err != nil {
		return 0, err
	}

	day := today
	if !days[day.Format(dayFormat)] {
		day = day.AddDate(0, 0, -1)
		if !days[day.Format(dayFormat)] {
			return 0, nil
		}
	}
	streak := 0
	for days[day.Format(dayFormat)] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak, nil
}

// GetWeek returns the seven days of the calendar week containing today,
// Monday first, each flagged with its check-in status.
func (m *Manager) GetWeek(ctx context.Context, userID string, today time.Time) ([]Day, error) {
	days, err := m.days(ctx, userID)
	if err != nil {
		return nil, err
	}

	monday := today.AddDate(0, 0, -daysSinceMonday(today))
	week := make([]Day, 7)
	for i := range week {
		date := monday.AddDate(0, 0, i)
		week[i] = Day{
			Date:      date,
			CheckedIn: days[date.Format(dayFormat)],
		}
	}
	return week, nil
}

func (m *Manager) days(ctx context.Context, userID string) (map[string]bool, error) {
	recs, err := m.store.GetByIndex(ctx, record.Checkins, "userId", userID)
	if err != nil {
		return nil, err
	}
	days := make(map[string]bool, len(recs))
	for _, rec := range recs {
		days[rec.Fields.String("date")] = true
	}
	return days, nil
}

// daysSinceMonday maps Monday..Sunday to 0..6.
func daysSinceMonday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
