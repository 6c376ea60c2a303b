package syncer

// Mock stores for adapter testing. The fakes are deliberately small:
// in-memory maps with injectable failures per operation.

import (
	"context"
	"fmt"
	"strconv"
	stdSync "sync"
	"time"

	"github.com/fitlocker/fitlocker/record"
	"github.com/fitlocker/fitlocker/store"
)

type fakeLocal struct {
	mu      stdSync.Mutex
	ready   bool
	nextID  int64
	recs    map[record.Collection]map[int64]record.Record
	sets    map[string]interface{}
	failAdd error
	failUpd error
}

var _ store.LocalStore = (*fakeLocal)(nil)

func newFakeLocal() *fakeLocal {
	return &fakeLocal{
		ready: true,
		recs:  make(map[record.Collection]map[int64]record.Record),
		sets:  make(map[string]interface{}),
	}
}

func (f *fakeLocal) Init(ctx context.Context) error { f.ready = true; return nil }
func (f *fakeLocal) Ready() bool                    { return f.ready }
func (f *fakeLocal) Close() error                   { return nil }

func (f *fakeLocal) Add(ctx context.Context, c record.Collection, rec record.Record) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAdd != nil {
		return "", f.failAdd
	}
	f.nextID++
	rec.ID = f.nextID
	rec.CreatedAt = time.Now().UTC()
	rec.UpdatedAt = rec.CreatedAt
	if f.recs[c] == nil {
		f.recs[c] = make(map[int64]record.Record)
	}
	f.recs[c][rec.ID] = rec
	return strconv.FormatInt(rec.ID, 10), nil
}

func (f *fakeLocal) Get(ctx context.Context, c record.Collection, id string) (*record.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	localID, _ := strconv.ParseInt(id, 10, 64)
	rec, ok := f.recs[c][localID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (f *fakeLocal) GetAll(ctx context.Context, c record.Collection) ([]record.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []record.Record
	for id := int64(1); id <= f.nextID; id++ {
		if rec, ok := f.recs[c][id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeLocal) GetByIndex(ctx context.Context, c record.Collection, field string, value interface{}) ([]record.Record, error) {
	all, _ := f.GetAll(ctx, c)
	var out []record.Record
	for _, rec := range all {
		if fmt.Sprint(rec.Get(field)) == fmt.Sprint(value) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeLocal) Update(ctx context.Context, c record.Collection, rec record.Record) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpd != nil {
		return "", f.failUpd
	}
	rec.UpdatedAt = time.Now().UTC()
	if f.recs[c] == nil {
		f.recs[c] = make(map[int64]record.Record)
	}
	f.recs[c][rec.ID] = rec
	return strconv.FormatInt(rec.ID, 10), nil
}

func (f *fakeLocal) Delete(ctx context.Context, c record.Collection, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	localID, _ := strconv.ParseInt(id, 10, 64)
	delete(f.recs[c], localID)
	return nil
}

func (f *fakeLocal) GetSetting(ctx context.Context, key string) (interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets[key], nil
}

func (f *fakeLocal) SetSetting(ctx context.Context, key string, value interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets[key] = value
	return nil
}

type fakeRemote struct {
	mu            stdSync.Mutex
	docs          map[record.Collection]map[string]record.Record
	sets          map[string]interface{}
	seq           int
	addCalls      int
	failHandshake error
	failAdd       error
	// failAddFor fails Add only for the named collection.
	failAddFor record.Collection
}

var _ store.RemoteStore = (*fakeRemote)(nil)

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		docs: make(map[record.Collection]map[string]record.Record),
		sets: make(map[string]interface{}),
	}
}

func (f *fakeRemote) Handshake(ctx context.Context) error { return f.failHandshake }
func (f *fakeRemote) Close() error                        { return nil }

func (f *fakeRemote) Add(ctx context.Context, c record.Collection, rec record.Record) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	if f.failAdd != nil {
		return "", f.failAdd
	}
	if f.failAddFor != "" && f.failAddFor == c {
		return "", fmt.Errorf("injected failure for %s", c)
	}
	f.seq++
	id := fmt.Sprintf("cloud-%d", f.seq)
	rec.CloudID = id
	if f.docs[c] == nil {
		f.docs[c] = make(map[string]record.Record)
	}
	f.docs[c][id] = rec
	return id, nil
}

func (f *fakeRemote) Get(ctx context.Context, c record.Collection, id string) (*record.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.docs[c][id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (f *fakeRemote) GetAll(ctx context.Context, c record.Collection) ([]record.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []record.Record
	for _, rec := range f.docs[c] {
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeRemote) GetByIndex(ctx context.Context, c record.Collection, field string, value interface{}) ([]record.Record, error) {
	all, _ := f.GetAll(ctx, c)
	var out []record.Record
	for _, rec := range all {
		if fmt.Sprint(rec.Get(field)) == fmt.Sprint(value) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeRemote) Update(ctx context.Context, c record.Collection, rec record.Record) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.docs[c] == nil {
		f.docs[c] = make(map[string]record.Record)
	}
	f.docs[c][rec.CloudID] = rec
	return rec.CloudID, nil
}

func (f *fakeRemote) Delete(ctx context.Context, c record.Collection, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs[c], id)
	return nil
}

func (f *fakeRemote) GetSetting(ctx context.Context, key string) (interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets[key], nil
}

func (f *fakeRemote) SetSetting(ctx context.Context, key string, value interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets[key] = value
	return nil
}

func (f *fakeRemote) Subscribe(ctx context.Context, c record.Collection, field string, value interface{}, handler store.SubscriptionHandler) (store.Unsubscribe, error) {
	recs, _ := f.GetByIndex(ctx, c, field, value)
	handler(recs)
	return func() {}, nil
}

func (f *fakeRemote) docCount(c record.Collection) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs[c])
}
