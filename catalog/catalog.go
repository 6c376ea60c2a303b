// Package catalog serves the static exercise catalog. The catalog ships
// embedded in the binary and is seeded into the exercises collection once,
// on first start; lookups by muscle or equipment go through a short-lived
// cache since the catalog changes only on seeding.
package catalog

import (
	"context"
	_ "embed"
	"encoding/json"
	"time"

	gocache "github.com/patrickmn/go-cache"

	storeErrors "github.com/fitlocker/fitlocker/errors"
	"github.com/fitlocker/fitlocker/logging"
	"github.com/fitlocker/fitlocker/record"
	"github.com/fitlocker/fitlocker/store"
)

//go:embed data/exercises.json
var catalogJSON []byte

const (
	opSeed = storeErrors.Operation("catalog.Seed")

	component = storeErrors.Component("catalog")
)

const (
	cacheTTL     = 5 * time.Minute
	cacheCleanup = 10 * time.Minute
)

// Exercise is one catalog entry.
type Exercise struct {
	ID           string `json:"-"`
	Name         string `json:"name"`
	Muscle       string `json:"muscle"`
	Equipment    string `json:"equipment"`
	Instructions string `json:"instructions"`
}

// Manager seeds and queries the exercises collection.
type Manager struct {
	store  store.Store
	logger *logging.Logger
	cache  *gocache.Cache
}

func NewManager(s store.Store) *Manager {
	return &Manager{
		store:  s,
		logger: logging.WithComponent(logging.Component("catalog")),
		cache:  gocache.New(cacheTTL, cacheCleanup),
	}
}

// Seed loads the embedded catalog into the exercises collection when it is
// empty. A non-empty collection means a previous start already seeded it;
// the call is then a no-op, which makes seeding idempotent. Individual
// insert failures are logged and skipped rather than aborting the seed.
func (m *Manager) Seed(ctx context.Context) (int, error) {
	existing, err := m.store.GetAll(ctx, record.Exercises)
	if err != nil {
		return 0, storeErrors.WrapOpComponent(err, opSeed, component)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	var entries []Exercise
	if err := json.Unmarshal(catalogJSON, &entries); err != nil {
		return 0, storeErrors.E(opSeed, component, storeErrors.KindInternal, err)
	}

	seeded := 0
	for _, ex := range entries {
		_, err := m.store.Add(ctx, record.Exercises, record.Record{Fields: record.Fields{
			"name":         ex.Name,
			"muscle":       ex.Muscle,
			"equipment":    ex.Equipment,
			"instructions": ex.Instructions,
		}})
		if err != nil {
			m.logger.LogError(ctx, err, "skipping catalog entry that failed to seed")
			continue
		}
		seeded++
	}
	m.cache.Flush()
	return seeded, nil
}

// ByMuscle returns the catalog entries targeting the muscle.
func (m *Manager) ByMuscle(ctx context.Context, muscle string) ([]Exercise, error) {
	return m.cached(ctx, "muscle", muscle)
}

// ByEquipment returns the catalog entries using the equipment.
func (m *Manager) ByEquipment(ctx context.Context, equipment string) ([]Exercise, error) {
	return m.cached(ctx, "equipment", equipment)
}

// GetAll returns the full catalog.
func (m *Manager) GetAll(ctx context.Context) ([]Exercise, error) {
	recs, err := m.store.GetAll(ctx, record.Exercises)
	if err != nil {
		return nil, err
	}
	return fromRecords(recs), nil
}

func (m *Manager) cached(ctx context.Context, field, value string) ([]Exercise, error) {
	key := field + ":" + value
	if hit, ok := m.cache.Get(key); ok {
		return hit.([]Exercise), nil
	}
	recs, err := m.store.GetByIndex(ctx, record.Exercises, field, value)
	if err != nil {
		return nil, err
	}
	out := fromRecords(recs)
	m.cache.SetDefault(key, out)
	return out, nil
}

func fromRecords(recs []record.Record) []Exercise {
	out := make([]Exercise, 0, len(recs))
	for _, rec := range recs {
		out = append(out, Exercise{
			ID:           rec.Key(),
			Name:         rec.Fields.String("name"),
			Muscle:       rec.Fields.String("muscle"),
			Equipment:    rec.Fields.String("equipment"),
			Instructions: rec.Fields.String("instructions"),
		})
	}
	return out
}
