package checkin

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitlocker/fitlocker/record"
	"github.com/fitlocker/fitlocker/store/storetest"
)

// The week of 2026-03-09: Monday the 9th through Sunday the 15th.
func day(d int) time.Time {
	return time.Date(2026, 3, d, 10, 0, 0, 0, time.UTC)
}

func TestCheckInIdempotentPerDay(t *testing.T) {
	ctx := context.Background()
	s := storetest.New()
	m := NewManager(s)

	id1, err := m.CheckIn(ctx, "u1", day(9))
	require.NoError(t, err)
	id2, err := m.CheckIn(ctx, "u1", day(9).Add(5*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, s.Count(record.Checkins))

	id3, err := m.CheckIn(ctx, "u1", day(10))
	require.NoError(t, err)
	assert.NotEqual(t, id1, id3)
	assert.Equal(t, 2, s.Count(record.Checkins))
}

func TestCheckInRequiresUser(t *testing.T) {
	m := NewManager(storetest.New())
	_, err := m.CheckIn(context.Background(), "", day(9))
	require.Error(t, err)
}

func TestStreakBrokenByGap(t *testing.T) {
	ctx := context.Background()
	m := NewManager(storetest.New())

	// Checked in Monday and Tuesday, nothing after.
	_, err := m.CheckIn(ctx, "u1", day(9))
	require.NoError(t, err)
	_, err = m.CheckIn(ctx, "u1", day(10))
	require.NoError(t, err)

	// Evaluated on Tuesday the streak stands at 2.
	streak, err := m.GetStreak(ctx, "u1", day(10))
	require.NoError(t, err)
	assert.Equal(t, 2, streak)

	// On Wednesday the Tuesday check-in still carries it.
	streak, err = m.GetStreak(ctx, "u1", day(11))
	require.NoError(t, err)
	assert.Equal(t, 2, streak)

	// By Thursday the Wednesday gap has broken it.
	streak, err = m.GetStreak(ctx, "u1", day(12))
	require.NoError(t, err)
	assert.Equal(t, 0, streak)
}

func TestStreakEmpty(t *testing.T) {
	m := NewManager(storetest.New())
	streak, err := m.GetStreak(context.Background(), "u1", day(9))
	require.NoError(t, err)
	assert.Equal(t, 0, streak)
}

func TestStreakCrossesMonthBoundary(t *testing.T) {
	ctx := context.Background()
	m := NewManager(storetest.New())

	for _, d := range []time.Time{
		time.Date(2026, 2, 27, 8, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 28, 8, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	} {
		_, err := m.CheckIn(ctx, "u1", d)
		require.NoError(t, err)
	}

	streak, err := m.GetStreak(ctx, "u1", time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 3, streak)
}

func TestWeekAnchoredOnMonday(t *testing.T) {
	ctx := context.Background()
	m := NewManager(storetest.New())

	_, err := m.CheckIn(ctx, "u1", day(9))
	require.NoError(t, err)
	_, err = m.CheckIn(ctx, "u1", day(11))
	require.NoError(t, err)
	// Previous week, must not appear.
	_, err = m.CheckIn(ctx, "u1", day(8))
	require.NoError(t, err)

	week, err := m.GetWeek(ctx, "u1", day(12))
	require.NoError(t, err)
	require.Len(t, week, 7)

	assert.Equal(t, time.Monday, week[0].Date.Weekday())
	assert.Equal(t, 9, week[0].Date.Day())
	assert.Equal(t, time.Sunday, week[6].Date.Weekday())

	checked := make([]bool, 7)
	for i, d := range week {
		checked[i] = d.CheckedIn
	}
	assert.Equal(t, []bool{true, false, true, false, false, false, false}, checked)
}

func TestWeekFromSunday(t *testing.T) {
	ctx := context.Background()
	m := NewManager(storetest.New())

	_, err := m.CheckIn(ctx, "u1", day(9))
	require.NoError(t, err)

	// Sunday the 15th still belongs to the week of Monday the 9th.
	week, err := m.GetWeek(ctx, "u1", day(15))
	require.NoError(t, err)
	assert.Equal(t, 9, week[0].Date.Day())
	assert.True(t, week[0].CheckedIn)
}
