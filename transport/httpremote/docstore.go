package httpremote

import (
	"encoding/json"
	"fmt"
	stdSync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/fitlocker/fitlocker/cursor"
	"github.com/fitlocker/fitlocker/record"
)

// docStore is the reference server's in-memory document store. Documents
// are schemaless beyond the fields clients write, except that unique
// indexes declared in the record schema are enforced so duplicate-key
// conflicts surface in cloud mode too.
type docStore struct {
	mu          stdSync.RWMutex
	collections map[record.Collection]*collectionState
	settings    map[string]json.RawMessage
}

type collectionState struct {
	docs  map[string]record.Record
	order []string
	seq   cursor.Cursor
	// changed is closed and replaced on every mutation; feed watchers wait
	// on the instance they grabbed under the lock.
	changed chan struct{}
}

func newDocStore() *docStore {
	return &docStore{
		collections: make(map[record.Collection]*collectionState),
		settings:    make(map[string]json.RawMessage),
	}
}

func (d *docStore) state(c record.Collection) *collectionState {
	cs, ok := d.collections[c]
	if !ok {
		cs = &collectionState{
			docs:    make(map[string]record.Record),
			changed: make(chan struct{}),
		}
		d.collections[c] = cs
	}
	return cs
}

func (cs *collectionState) notify() {
	cs.seq = cs.seq.Next()
	close(cs.changed)
	cs.changed = make(chan struct{})
}

// add stores a new document under a fresh UUID and returns it.
func (d *docStore) add(c record.Collection, rec record.Record) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cs := d.state(c)
	if err := checkUnique(c, cs, rec, ""); err != nil {
		return "", err
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	rec.CloudID = id
	rec.CreatedAt = now
	rec.UpdatedAt = now

	cs.docs[id] = rec
	cs.order = append(cs.order, id)
	cs.notify()
	return id, nil
}

func (d *docStore) get(c record.Collection, id string) (record.Record, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	cs, ok := d.collections[c]
	if !ok {
		return record.Record{}, false
	}
	rec, ok := cs.docs[id]
	return rec, ok
}

func (d *docStore) getAll(c record.Collection) []record.Record {
	d.mu.RLock()
	defer d.mu.RUnlock()
	cs, ok := d.collections[c]
	if !ok {
		return nil
	}
	out := make([]record.Record, 0, len(cs.order))
	for _, id := range cs.order {
		if rec, ok := cs.docs[id]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// getByField filters the collection on a JSON-normalized field comparison.
func (d *docStore) getByField(c record.Collection, field, encodedValue string) []record.Record {
	all := d.getAll(c)
	if field == "" {
		return all
	}
	var out []record.Record
	for _, rec := range all {
		if jsonEqual(rec.Get(field), encodedValue) {
			out = append(out, rec)
		}
	}
	return out
}

func (d *docStore) update(c record.Collection, id string, rec record.Record) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cs, ok := d.collections[c]
	if !ok {
		return false, nil
	}
	existing, ok := cs.docs[id]
	if !ok {
		return false, nil
	}
	if err := checkUnique(c, cs, rec, id); err != nil {
		return false, err
	}

	rec.CloudID = id
	rec.CreatedAt = existing.CreatedAt
	rec.UpdatedAt = time.Now().UTC()
	cs.docs[id] = rec
	cs.notify()
	return true, nil
}

func (d *docStore) delete(c record.Collection, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cs, ok := d.collections[c]
	if !ok {
		return
	}
	if _, ok := cs.docs[id]; !ok {
		return
	}
	delete(cs.docs, id)
	for i, oid := range cs.order {
		if oid == id {
			cs.order = append(cs.order[:i], cs.order[i+1:]...)
			break
		}
	}
	cs.notify()
}

func (d *docStore) getSetting(key string) (json.RawMessage, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	raw, ok := d.settings[key]
	return raw, ok
}

func (d *docStore) setSetting(key string, value json.RawMessage) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settings[key] = value
}

// snapshot returns the matching set, the feed position and the channel that
// closes on the next mutation.
func (d *docStore) snapshot(c record.Collection, field, encodedValue string) ([]record.Record, cursor.Cursor, <-chan struct{}) {
	d.mu.Lock()
	cs := d.state(c)
	seq := cs.seq
	changed := cs.changed
	d.mu.Unlock()

	return d.getByField(c, field, encodedValue), seq, changed
}

// checkUnique enforces the unique indexes declared in the record schema.
// selfID exempts the document being updated from matching itself.
func checkUnique(c record.Collection, cs *collectionState, rec record.Record, selfID string) error {
	for _, idx := range record.IndexedFields(c) {
		if !idx.Unique {
			continue
		}
		value := rec.Get(idx.Field)
		if value == nil {
			continue
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			continue
		}
		for id, other := range cs.docs {
			if id == selfID {
				continue
			}
			if jsonEqual(other.Get(idx.Field), string(encoded)) {
				return fmt.Errorf("duplicate value for unique field %s.%s", c, idx.Field)
			}
		}
	}
	return nil
}

// jsonEqual compares a document field against a JSON-encoded value by
// normalizing both through JSON, so 7 and 7.0 and "7" behave consistently
// with what clients sent.
func jsonEqual(fieldValue interface{}, encodedValue string) bool {
	if fieldValue == nil {
		return encodedValue == "null"
	}
	encoded, err := json.Marshal(fieldValue)
	if err != nil {
		return false
	}
	return string(encoded) == encodedValue
}
