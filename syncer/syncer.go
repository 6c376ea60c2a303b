// Package syncer unifies the local and remote stores behind one interface.
// The Adapter decides, per call, which backend serves it: local-only while
// cloud mode is disabled; remote-first with a local mirror write once cloud
// mode is enabled. Reads in cloud mode are cloud-authoritative: writes are
// dual-committed, reads are not merged.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	stdSync "sync"

	syncErrors "github.com/fitlocker/fitlocker/errors"
	"github.com/fitlocker/fitlocker/logging"
	"github.com/fitlocker/fitlocker/record"
	"github.com/fitlocker/fitlocker/store"
)

const (
	opEnableCloud = syncErrors.Operation("syncer.EnableCloud")
	opAdd         = syncErrors.Operation("syncer.Add")
	opUpdate      = syncErrors.Operation("syncer.Update")
	opDelete      = syncErrors.Operation("syncer.Delete")
	opUpsert      = syncErrors.Operation("syncer.Upsert")
	opSetting     = syncErrors.Operation("syncer.SetSetting")
	opSync        = syncErrors.Operation("syncer.SyncToCloud")

	component = syncErrors.Component("syncer")
)

// Adapter is the single entry point used by all domain managers.
type Adapter struct {
	local   store.LocalStore
	remote  store.RemoteStore
	logger  *logging.Logger
	metrics MetricsCollector

	mu           stdSync.RWMutex
	cloudEnabled bool
	lastSyncErr  map[record.Collection]error
	unconfirmed  int
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger overrides the package logger.
func WithLogger(l *logging.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// WithMetrics sets the metrics collector. Defaults to a no-op collector.
func WithMetrics(m MetricsCollector) Option {
	return func(a *Adapter) { a.metrics = m }
}

// New creates an Adapter over the given stores. remote may be nil for a
// device that never syncs; EnableCloud then always stays local-only.
func New(local store.LocalStore, remote store.RemoteStore, opts ...Option) *Adapter {
	a := &Adapter{
		local:       local,
		remote:      remote,
		logger:      logging.WithComponent(logging.Component("syncer")),
		metrics:     &NoOpMetricsCollector{},
		lastSyncErr: make(map[record.Collection]error),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init initializes the local store.
func (a *Adapter) Init(ctx context.Context) error {
	return a.local.Init(ctx)
}

// EnableCloud switches the adapter into cloud mode. It requires the local
// store to be initialized and performs a remote handshake. On any failure
// the adapter silently remains in local-only mode: a warning is logged and
// nil is returned, never an error.
func (a *Adapter) EnableCloud(ctx context.Context) error {
	if a.remote == nil {
		a.logger.WarnContext(ctx, "cloud sync requested but no remote store configured")
		return nil
	}
	if !a.local.Ready() {
		a.logger.WarnContext(ctx, "cloud sync requested before local store init, staying local-only")
		return nil
	}

	if err := a.remote.Handshake(ctx); err != nil {
		a.logger.LogError(ctx, syncErrors.WrapOpComponent(err, opEnableCloud, component),
			"remote handshake failed, staying local-only")
		return nil
	}

	a.mu.Lock()
	a.cloudEnabled = true
	a.mu.Unlock()
	a.logger.InfoContext(ctx, "cloud sync enabled")
	return nil
}

// DisableCloud returns the adapter to local-only mode.
func (a *Adapter) DisableCloud() {
	a.mu.Lock()
	a.cloudEnabled = false
	a.mu.Unlock()
}

// IsCloudEnabled reports whether cloud mode is active.
func (a *Adapter) IsCloudEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cloudEnabled
}

// LastSyncError returns the most recent mirror or reconciliation failure
// recorded for the collection, or nil. It is the observable counterpart of
// the swallowed dual-write failures.
func (a *Adapter) LastSyncError(collection record.Collection) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastSyncErr[collection]
}

func (a *Adapter) setSyncError(collection record.Collection, err error) {
	a.mu.Lock()
	a.lastSyncErr[collection] = err
	a.mu.Unlock()
}

// Add inserts a record. In cloud mode the remote write happens first and is
// authoritative: its failure fails the call. The local mirror write then
// stores the cloud-assigned id as cloudId; a mirror failure is logged and
// swallowed so it never surfaces as a user-visible write failure.
func (a *Adapter) Add(ctx context.Context, collection record.Collection, rec record.Record) (string, error) {
	if !a.IsCloudEnabled() {
		return a.local.Add(ctx, collection, rec)
	}

	cloudID, err := a.remote.Add(ctx, collection, rec)
	if err != nil {
		return "", syncErrors.WrapOpComponent(err, opAdd, component)
	}

	mirror := rec.Clone()
	mirror.CloudID = cloudID
	if _, err := a.local.Add(ctx, collection, mirror); err != nil {
		a.mirrorFailed(ctx, collection, "add", err)
	} else {
		a.setSyncError(collection, nil)
	}
	return cloudID, nil
}

// Update replaces a record, remote-first in cloud mode with the same mirror
// semantics as Add.
func (a *Adapter) Update(ctx context.Context, collection record.Collection, rec record.Record) (string, error) {
	if !a.IsCloudEnabled() {
		return a.local.Update(ctx, collection, rec)
	}

	id, err := a.remote.Update(ctx, collection, rec)
	if err != nil {
		return "", syncErrors.WrapOpComponent(err, opUpdate, component)
	}

	if err := a.updateMirror(ctx, collection, rec); err != nil {
		a.mirrorFailed(ctx, collection, "update", err)
	} else {
		a.setSyncError(collection, nil)
	}
	return id, nil
}

// updateMirror writes rec into the local mirror. Records fetched from the
// remote carry no local id, so the mirror row is matched by cloudId; a
// missing row is created rather than skipped, keeping the offline copy in
// step with the remote.
func (a *Adapter) updateMirror(ctx context.Context, collection record.Collection, rec record.Record) error {
	if rec.ID == 0 && rec.CloudID != "" {
		locals, err := a.local.GetAll(ctx, collection)
		if err != nil {
			return err
		}
		for _, mirror := range locals {
			if mirror.CloudID == rec.CloudID {
				rec.ID = mirror.ID
				break
			}
		}
		if rec.ID == 0 {
			_, err := a.local.Add(ctx, collection, rec)
			return err
		}
	}
	_, err := a.local.Update(ctx, collection, rec)
	return err
}

// Delete removes a record by id: the local id while cloud is disabled, the
// cloud id while it is enabled. The local mirror row, matched by cloudId,
// is removed best-effort.
func (a *Adapter) Delete(ctx context.Context, collection record.Collection, id string) error {
	if !a.IsCloudEnabled() {
		return a.local.Delete(ctx, collection, id)
	}

	if err := a.remote.Delete(ctx, collection, id); err != nil {
		return syncErrors.WrapOpComponent(err, opDelete, component)
	}

	if err := a.deleteMirror(ctx, collection, id); err != nil {
		a.mirrorFailed(ctx, collection, "delete", err)
	}
	return nil
}

// deleteMirror removes the local row whose cloudId matches id.
func (a *Adapter) deleteMirror(ctx context.Context, collection record.Collection, cloudID string) error {
	locals, err := a.local.GetAll(ctx, collection)
	if err != nil {
		return err
	}
	for _, rec := range locals {
		if rec.CloudID == cloudID {
			return a.local.Delete(ctx, collection, fmt.Sprintf("%d", rec.ID))
		}
	}
	return nil
}

// Get reads from the authoritative backend for the current mode. There is
// no local fallback read in cloud mode.
func (a *Adapter) Get(ctx context.Context, collection record.Collection, id string) (*record.Record, error) {
	if a.IsCloudEnabled() {
		return a.remote.Get(ctx, collection, id)
	}
	return a.local.Get(ctx, collection, id)
}

// GetAll reads the full collection from the authoritative backend.
func (a *Adapter) GetAll(ctx context.Context, collection record.Collection) ([]record.Record, error) {
	if a.IsCloudEnabled() {
		return a.remote.GetAll(ctx, collection)
	}
	return a.local.GetAll(ctx, collection)
}

// GetByIndex queries the authoritative backend.
func (a *Adapter) GetByIndex(ctx context.Context, collection record.Collection, field string, value interface{}) ([]record.Record, error) {
	if a.IsCloudEnabled() {
		return a.remote.GetByIndex(ctx, collection, field, value)
	}
	return a.local.GetByIndex(ctx, collection, field, value)
}

// GetSetting reads a setting from the authoritative backend.
func (a *Adapter) GetSetting(ctx context.Context, key string) (interface{}, error) {
	if a.IsCloudEnabled() {
		return a.remote.GetSetting(ctx, key)
	}
	return a.local.GetSetting(ctx, key)
}

// SetSetting writes a setting remote-first in cloud mode, mirrored locally.
func (a *Adapter) SetSetting(ctx context.Context, key string, value interface{}) error {
	if !a.IsCloudEnabled() {
		return a.local.SetSetting(ctx, key, value)
	}
	if err := a.remote.SetSetting(ctx, key, value); err != nil {
		return syncErrors.WrapOpComponent(err, opSetting, component)
	}
	if err := a.local.SetSetting(ctx, key, value); err != nil {
		a.mirrorFailed(ctx, record.Settings, "setSetting", err)
	}
	return nil
}

// GetScopedSetting reads a namespaced setting.
func (a *Adapter) GetScopedSetting(ctx context.Context, scope, name string) (interface{}, error) {
	return a.GetSetting(ctx, record.ScopedKey(scope, name))
}

// SetScopedSetting writes a namespaced setting.
func (a *Adapter) SetScopedSetting(ctx context.Context, scope, name string, value interface{}) error {
	return a.SetSetting(ctx, record.ScopedKey(scope, name), value)
}

// Upsert writes fields under a natural key: the first record matching
// field == value is replaced (last-write-wins), otherwise a new record is
// inserted. This replaces the fetch-then-reuse-the-id pattern for
// latest-wins documents such as the anamnesis.
func (a *Adapter) Upsert(ctx context.Context, collection record.Collection, field string, value interface{}, fields record.Fields) (string, error) {
	existing, err := a.GetByIndex(ctx, collection, field, value)
	if err != nil {
		return "", syncErrors.WrapOpComponent(err, opUpsert, component)
	}
	if len(existing) == 0 {
		return a.Add(ctx, collection, record.Record{Fields: fields})
	}

	rec := existing[0]
	rec.Fields = fields
	return a.Update(ctx, collection, rec)
}

// mirrorFailed records a swallowed local-mirror failure: logged, surfaced
// through LastSyncError and counted, but never returned to the caller.
func (a *Adapter) mirrorFailed(ctx context.Context, collection record.Collection, op string, err error) {
	a.setSyncError(collection, err)
	a.metrics.RecordMirrorFailure(string(collection))
	a.logger.WarnContext(ctx, "local mirror write failed after successful remote write",
		slog.String("collection", string(collection)),
		slog.String("mirror_op", op),
		slog.String("error", err.Error()),
	)
}
