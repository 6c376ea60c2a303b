// Package storetest provides an in-memory store.Store for manager tests.
// It mimics the SQLite store's observable behavior: monotonic string ids,
// index validation, unique-index conflicts and idempotent deletes, plus
// injectable failures per operation.
package storetest

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	storeErrors "github.com/fitlocker/fitlocker/errors"
	"github.com/fitlocker/fitlocker/record"
	"github.com/fitlocker/fitlocker/store"
)

// Store is a goroutine-safe in-memory store.Store implementation.
type Store struct {
	mu       sync.Mutex
	nextID   map[record.Collection]int64
	recs     map[record.Collection]map[int64]record.Record
	settings map[string]interface{}

	// FailAdd, FailUpdate and FailDelete, when non-nil, are returned by
	// the corresponding operation instead of performing it.
	FailAdd    error
	FailUpdate error
	FailDelete error
}

var _ store.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		nextID:   make(map[record.Collection]int64),
		recs:     make(map[record.Collection]map[int64]record.Record),
		settings: make(map[string]interface{}),
	}
}

func (s *Store) Add(ctx context.Context, collection record.Collection, rec record.Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailAdd != nil {
		return "", s.FailAdd
	}
	if err := s.checkUnique(collection, rec, 0); err != nil {
		return "", err
	}
	s.nextID[collection]++
	rec.ID = s.nextID[collection]
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if s.recs[collection] == nil {
		s.recs[collection] = make(map[int64]record.Record)
	}
	s.recs[collection][rec.ID] = rec
	return strconv.FormatInt(rec.ID, 10), nil
}

func (s *Store) Get(ctx context.Context, collection record.Collection, id string) (*record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	localID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, nil
	}
	rec, ok := s.recs[collection][localID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *Store) GetAll(ctx context.Context, collection record.Collection) ([]record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.all(collection), nil
}

// GetByIndex rejects undeclared fields the way the SQLite store does.
func (s *Store) GetByIndex(ctx context.Context, collection record.Collection, field string, value interface{}) ([]record.Record, error) {
	if !record.HasIndex(collection, field) {
		return nil, storeErrors.E(storeErrors.Operation("storetest.GetByIndex"),
			storeErrors.Component("storetest"), storeErrors.KindValidation,
			fmt.Sprintf("no index on %s.%s", collection, field))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []record.Record
	for _, rec := range s.all(collection) {
		if fmt.Sprint(rec.Get(field)) == fmt.Sprint(value) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, collection record.Collection, rec record.Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUpdate != nil {
		return "", s.FailUpdate
	}
	if err := s.checkUnique(collection, rec, rec.ID); err != nil {
		return "", err
	}
	prev, ok := s.recs[collection][rec.ID]
	if ok {
		rec.CreatedAt = prev.CreatedAt
	}
	rec.UpdatedAt = time.Now().UTC()
	if s.recs[collection] == nil {
		s.recs[collection] = make(map[int64]record.Record)
	}
	s.recs[collection][rec.ID] = rec
	return strconv.FormatInt(rec.ID, 10), nil
}

func (s *Store) Delete(ctx context.Context, collection record.Collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailDelete != nil {
		return s.FailDelete
	}
	localID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil
	}
	delete(s.recs[collection], localID)
	return nil
}

func (s *Store) GetSetting(ctx context.Context, key string) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings[key], nil
}

func (s *Store) SetSetting(ctx context.Context, key string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

// Upsert mirrors the sync adapter's natural-key upsert so managers that
// depend on it can be tested against this store.
func (s *Store) Upsert(ctx context.Context, collection record.Collection, field string, value interface{}, fields record.Fields) (string, error) {
	existing, err := s.GetByIndex(ctx, collection, field, value)
	if err != nil {
		return "", err
	}
	if len(existing) == 0 {
		return s.Add(ctx, collection, record.Record{Fields: fields})
	}
	rec := existing[0]
	rec.Fields = fields
	return s.Update(ctx, collection, rec)
}

// Count reports how many records the collection holds.
func (s *Store) Count(collection record.Collection) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recs[collection])
}

// all returns records in id order. Callers hold s.mu.
func (s *Store) all(collection record.Collection) []record.Record {
	var out []record.Record
	for id := int64(1); id <= s.nextID[collection]; id++ {
		if rec, ok := s.recs[collection][id]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// checkUnique enforces the schema's unique indexes. Callers hold s.mu.
func (s *Store) checkUnique(collection record.Collection, rec record.Record, excludeID int64) error {
	for _, idx := range record.IndexedFields(collection) {
		if !idx.Unique {
			continue
		}
		value := rec.Get(idx.Field)
		if value == nil {
			continue
		}
		for id, other := range s.recs[collection] {
			if id == excludeID {
				continue
			}
			if fmt.Sprint(other.Get(idx.Field)) == fmt.Sprint(value) {
				return storeErrors.E(storeErrors.Operation("storetest.Add"),
					storeErrors.Component("storetest"), storeErrors.KindConflict,
					fmt.Sprintf("duplicate value for unique index %s.%s", collection, idx.Field))
			}
		}
	}
	return nil
}
