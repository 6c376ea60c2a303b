// Package store defines the storage contracts shared by the local SQLite
// store, the remote HTTP store and the sync adapter that unifies them.
// Implementations live in storage/sqlite and transport/httpremote.
package store

import (
	"context"

	"github.com/fitlocker/fitlocker/record"
)

// Store is the logical CRUD + index-query surface every backend exposes.
type Store interface {
	// Add inserts a new record and returns its assigned id as a string.
	// The local store assigns a monotonically increasing integer id; the
	// remote store assigns an opaque cloud id. The two are structurally
	// unrelated.
	Add(ctx context.Context, collection record.Collection, rec record.Record) (string, error)

	// Get returns the record with the given id, or nil if absent.
	Get(ctx context.Context, collection record.Collection, id string) (*record.Record, error)

	// GetAll returns every record of the collection in insertion order.
	GetAll(ctx context.Context, collection record.Collection) ([]record.Record, error)

	// GetByIndex returns all records where the indexed field equals value.
	// The field must have been declared in the schema.
	GetByIndex(ctx context.Context, collection record.Collection, field string, value interface{}) ([]record.Record, error)

	// Update replaces the record identified by its id and refreshes
	// updatedAt. Upsert semantics are permitted but discouraged above the
	// store layer.
	Update(ctx context.Context, collection record.Collection, rec record.Record) (string, error)

	// Delete removes the record. Deleting an absent id is a no-op.
	Delete(ctx context.Context, collection record.Collection, id string) error

	// GetSetting returns the value stored under key, or nil if unset.
	GetSetting(ctx context.Context, key string) (interface{}, error)

	// SetSetting stores value under key, replacing any previous value.
	SetSetting(ctx context.Context, key string, value interface{}) error
}

// SubscriptionHandler receives the full matching result set on every
// underlying change. Handlers must not block.
type SubscriptionHandler func(records []record.Record)

// Unsubscribe tears down a subscription. Calling it more than once is a
// no-op.
type Unsubscribe func()

// RemoteStore is the cloud-hosted mirror: the same logical operations plus a
// session handshake and a live-subscription primitive. It assumes a session
// has already been established by the authentication collaborator.
type RemoteStore interface {
	Store

	// Handshake verifies the remote store is reachable and the session is
	// valid. The sync adapter calls it once when cloud mode is enabled.
	Handshake(ctx context.Context) error

	// Subscribe pushes the full result set matching field==value, first
	// immediately with current state, then on every subsequent mutation of
	// the collection.
	Subscribe(ctx context.Context, collection record.Collection, field string, value interface{}, handler SubscriptionHandler) (Unsubscribe, error)

	// Close releases the transport resources.
	Close() error
}

// LocalStore is the durable offline store. Init provisions collections and
// indexes and is safe to call multiple times; every other method tolerates
// being called before Init completes by returning benign empty results.
type LocalStore interface {
	Store

	// Init opens or creates the underlying database and applies any
	// pending additive schema migrations.
	Init(ctx context.Context) error

	// Ready reports whether Init has completed successfully.
	Ready() bool

	// Close closes the database.
	Close() error
}
