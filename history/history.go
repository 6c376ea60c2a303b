// Package history is the append-only log of completed workout sessions and
// the in-memory aggregates derived from it.
package history

import (
	"context"
	"sort"
	"time"

	storeErrors "github.com/fitlocker/fitlocker/errors"
	"github.com/fitlocker/fitlocker/logging"
	"github.com/fitlocker/fitlocker/record"
	"github.com/fitlocker/fitlocker/store"
)

const (
	opLog = storeErrors.Operation("history.LogSession")

	component = storeErrors.Component("history")
)

const dayFormat = "2006-01-02"

// Session is one completed workout session.
type Session struct {
	ID              string
	UserID          string
	WorkoutID       string
	WorkoutName     string
	Date            time.Time
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes int
	TotalSets       int
	TotalVolume     float64
}

// Stats aggregates a user's full history. All aggregation happens in
// memory over the fetched records; there is no server-side rollup.
type Stats struct {
	TotalSessions int
	TotalSets     int
	TotalMinutes  int
	TotalVolume   float64

	// CurrentStreak counts consecutive training days ending today or
	// yesterday. BestStreak is the longest run ever.
	CurrentStreak int
	BestStreak    int
}

// Manager reads and writes the history collection.
type Manager struct {
	store  store.Store
	logger *logging.Logger
}

func NewManager(s store.Store) *Manager {
	return &Manager{
		store:  s,
		logger: logging.WithComponent(logging.Component("history")),
	}
}

// LogSession appends a session record.
func (m *Manager) LogSession(ctx context.Context, s Session) (string, error) {
	if s.UserID == "" {
		return "", storeErrors.E(opLog, component, storeErrors.KindValidation,
			"session requires a userId")
	}
	date := s.Date
	if date.IsZero() {
		date = s.EndTime
	}
	id, err := m.store.Add(ctx, record.History, record.Record{Fields: record.Fields{
		"userId":          s.UserID,
		"workoutId":       s.WorkoutID,
		"workoutName":     s.WorkoutName,
		"date":            date.Format(dayFormat),
		"startTime":       s.StartTime.Format(time.RFC3339Nano),
		"endTime":         s.EndTime.Format(time.RFC3339Nano),
		"durationMinutes": s.DurationMinutes,
		"totalSets":       s.TotalSets,
		"totalVolume":     s.TotalVolume,
	}})
	if err != nil {
		return "", storeErrors.WrapOpComponent(err, opLog, component)
	}
	return id, nil
}

// GetHistory returns the user's sessions, most recent first.
func (m *Manager) GetHistory(ctx context.Context, userID string) ([]Session, error) {
	recs, err := m.store.GetByIndex(ctx, record.History, "userId", userID)
	if err != nil {
		return nil, err
	}
	sessions := make([]Session, 0, len(recs))
	for _, rec := range recs {
		sessions = append(sessions, sessionFromRecord(rec))
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Date.After(sessions[j].Date)
	})
	return sessions, nil
}

// GetHistoryBetween returns the user's sessions whose date falls in
// [from, to], most recent first.
func (m *Manager) GetHistoryBetween(ctx context.Context, userID string, from, to time.Time) ([]Session, error) {
	sessions, err := m.GetHistory(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := sessions[:0]
	for _, s := range sessions {
		if s.Date.Before(from.Truncate(24*time.Hour)) || s.Date.After(to) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// GetStats computes the user's aggregates as of today.
func (m *Manager) GetStats(ctx context.Context, userID string, today time.Time) (*Stats, error) {
	sessions, err := m.GetHistory(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := &Stats{TotalSessions: len(sessions)}
	days := make(map[string]bool, len(sessions))
	for _, s := range sessions {
		stats.TotalSets += s.TotalSets
		stats.TotalMinutes += s.DurationMinutes
		stats.TotalVolume += s.TotalVolume
		days[s.Date.Format(dayFormat)] = true
	}
	stats.CurrentStreak = currentStreak(days, today)
	stats.BestStreak = bestStreak(days)
	return stats, nil
}

// currentStreak counts back from today, or from yesterday when today has
// no session yet. Any gap ends it.
func currentStreak(days map[string]bool, today time.Time) int {
	day := today
	if !days[day.Format(dayFormat)] {
		day = day.AddDate(0, 0, -1)
	}
	streak := 0
	for days[day.Format(dayFormat)] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// bestStreak finds the longest run of consecutive training days.
func bestStreak(days map[string]bool) int {
	best := 0
	for day := range days {
		prev, err := time.Parse(dayFormat, day)
		if err != nil {
			continue
		}
		if days[prev.AddDate(0, 0, -1).Format(dayFormat)] {
			// Not the start of a run.
			continue
		}
		length := 0
		for d := prev; days[d.Format(dayFormat)]; d = d.AddDate(0, 0, 1) {
			length++
		}
		if length > best {
			best = length
		}
	}
	return best
}

func sessionFromRecord(rec record.Record) Session {
	date, _ := time.Parse(dayFormat, rec.Fields.String("date"))
	start, _ := time.Parse(time.RFC3339Nano, rec.Fields.String("startTime"))
	end, _ := time.Parse(time.RFC3339Nano, rec.Fields.String("endTime"))
	return Session{
		ID:              rec.Key(),
		UserID:          rec.Fields.String("userId"),
		WorkoutID:       rec.Fields.String("workoutId"),
		WorkoutName:     rec.Fields.String("workoutName"),
		Date:            date,
		StartTime:       start,
		EndTime:         end,
		DurationMinutes: rec.Fields.Int("durationMinutes"),
		TotalSets:       rec.Fields.Int("totalSets"),
		TotalVolume:     rec.Fields.Float("totalVolume"),
	}
}
