package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitlocker/fitlocker/record"
	"github.com/fitlocker/fitlocker/store/storetest"
)

func TestSeedLoadsEmbeddedCatalog(t *testing.T) {
	ctx := context.Background()
	s := storetest.New()
	m := NewManager(s)

	seeded, err := m.Seed(ctx)
	require.NoError(t, err)
	assert.Greater(t, seeded, 0)
	assert.Equal(t, seeded, s.Count(record.Exercises))

	all, err := m.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, seeded)
	assert.NotEmpty(t, all[0].Name)
	assert.NotEmpty(t, all[0].Muscle)
}

func TestSeedIdempotent(t *testing.T) {
	ctx := context.Background()
	s := storetest.New()
	m := NewManager(s)

	first, err := m.Seed(ctx)
	require.NoError(t, err)

	again, err := m.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, again)
	assert.Equal(t, first, s.Count(record.Exercises))
}

func TestSeedSkipsNonEmptyCollection(t *testing.T) {
	ctx := context.Background()
	s := storetest.New()
	_, err := s.Add(ctx, record.Exercises, record.Record{Fields: record.Fields{
		"name": "Custom Exercise", "muscle": "legs", "equipment": "other",
	}})
	require.NoError(t, err)

	m := NewManager(s)
	seeded, err := m.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, seeded)
	assert.Equal(t, 1, s.Count(record.Exercises))
}

func TestQueriesByMuscleAndEquipment(t *testing.T) {
	ctx := context.Background()
	m := NewManager(storetest.New())
	_, err := m.Seed(ctx)
	require.NoError(t, err)

	legs, err := m.ByMuscle(ctx, "legs")
	require.NoError(t, err)
	require.NotEmpty(t, legs)
	for _, ex := range legs {
		assert.Equal(t, "legs", ex.Muscle)
	}

	cable, err := m.ByEquipment(ctx, "cable")
	require.NoError(t, err)
	require.NotEmpty(t, cable)
	for _, ex := range cable {
		assert.Equal(t, "cable", ex.Equipment)
	}
}

func TestLookupsServedFromCache(t *testing.T) {
	ctx := context.Background()
	s := storetest.New()
	m := NewManager(s)
	_, err := m.Seed(ctx)
	require.NoError(t, err)

	first, err := m.ByMuscle(ctx, "chest")
	require.NoError(t, err)
	require.NotEmpty(t, first)

	// A record added behind the cache's back is not visible until the TTL
	// expires.
	_, err = s.Add(ctx, record.Exercises, record.Record{Fields: record.Fields{
		"name": "Pec Deck", "muscle": "chest", "equipment": "machine",
	}})
	require.NoError(t, err)

	second, err := m.ByMuscle(ctx, "chest")
	require.NoError(t, err)
	assert.Len(t, second, len(first))
}
