// Package sqlite provides the durable, offline-capable implementation of
// store.LocalStore on top of SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	stdSync "sync"
	"time"

	"github.com/mattn/go-sqlite3"

	syncErrors "github.com/fitlocker/fitlocker/errors"
	"github.com/fitlocker/fitlocker/logging"
	"github.com/fitlocker/fitlocker/record"
	"github.com/fitlocker/fitlocker/store"
)

// Operation constants for consistent error reporting.
const (
	opInit       = syncErrors.Operation("sqlite.Init")
	opAdd        = syncErrors.Operation("sqlite.Add")
	opGet        = syncErrors.Operation("sqlite.Get")
	opGetAll     = syncErrors.Operation("sqlite.GetAll")
	opGetByIndex = syncErrors.Operation("sqlite.GetByIndex")
	opUpdate     = syncErrors.Operation("sqlite.Update")
	opDelete     = syncErrors.Operation("sqlite.Delete")
	opSetting    = syncErrors.Operation("sqlite.Setting")

	component = syncErrors.Component("storage/sqlite")
)

var (
	// ErrStoreClosed is returned once Close has been called.
	ErrStoreClosed = stdErrors.New("store is closed")
)

// Config holds configuration options for the LocalStore.
type Config struct {
	// DataSourceName is the connection string for the SQLite database.
	DataSourceName string

	// EnableWAL enables Write-Ahead Logging mode for better concurrency.
	// Enabled by default; appends "?_journal_mode=WAL" to DataSourceName.
	EnableWAL bool

	// Connection pool settings.
	// Defaults: MaxOpen=25, MaxIdle=5, Lifetime=1h, IdleTime=5m
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// Logger overrides the package logger.
	Logger *logging.Logger
}

func (c *Config) setDefaults() {
	if c.Logger == nil {
		c.Logger = logging.WithComponent(logging.Component("sqlite-store"))
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = 5 * time.Minute
	}
	if c.EnableWAL {
		if !strings.Contains(c.DataSourceName, "_journal_mode") {
			c.DataSourceName += "?_journal_mode=WAL"
		}
	}
}

// DefaultConfig returns a Config with production-ready defaults.
func DefaultConfig(dataSourceName string) *Config {
	config := &Config{
		DataSourceName: dataSourceName,
		EnableWAL:      true,
	}
	config.setDefaults()
	return config
}

// LocalStore implements store.LocalStore for SQLite.
type LocalStore struct {
	config *Config
	logger *logging.Logger

	mu     stdSync.RWMutex
	db     *sql.DB
	ready  bool
	closed bool
}

// Compile-time check against the interface.
var _ store.LocalStore = (*LocalStore)(nil)

// New creates a LocalStore. The database is not opened until Init is called;
// until then every operation returns a benign empty result.
func New(config *Config) (*LocalStore, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	config.setDefaults()
	if config.DataSourceName == "" {
		return nil, fmt.Errorf("DataSourceName is required")
	}
	return &LocalStore{config: config, logger: config.Logger}, nil
}

// NewWithDataSource is a convenience constructor using default config.
func NewWithDataSource(dataSourceName string) (*LocalStore, error) {
	return New(DefaultConfig(dataSourceName))
}

// Init opens the database, configures the connection pool and applies any
// pending additive schema migrations. Safe to call multiple times.
func (s *LocalStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return syncErrors.E(opInit, component, ErrStoreClosed)
	}
	if s.ready {
		return nil
	}

	db, err := sql.Open("sqlite3", s.config.DataSourceName)
	if err != nil {
		return syncErrors.E(opInit, component, "failed to open sqlite database", err)
	}

	db.SetMaxOpenConns(s.config.MaxOpenConns)
	db.SetMaxIdleConns(s.config.MaxIdleConns)
	db.SetConnMaxLifetime(s.config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(s.config.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return syncErrors.E(opInit, component, "failed to connect to sqlite database", err)
	}

	if err := migrate(ctx, db, s.logger); err != nil {
		db.Close()
		return syncErrors.E(opInit, component, err)
	}

	s.db = db
	s.ready = true
	s.logger.InfoContext(ctx, "local store initialized",
		slog.String("data_source", s.config.DataSourceName),
		slog.Int("schema_version", record.SchemaVersion),
	)
	return nil
}

// InitWithTimeout races Init against the given timeout. On timeout the store
// stays in not-ready mode: callers proceed in degraded mode and every store
// method keeps returning benign empty results.
func (s *LocalStore) InitWithTimeout(ctx context.Context, timeout time.Duration) error {
	initCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Init(initCtx) }()

	select {
	case err := <-done:
		return err
	case <-initCtx.Done():
		s.logger.WarnContext(ctx, "local store init timed out, continuing in degraded mode",
			slog.Duration("timeout", timeout),
		)
		return nil
	}
}

// Ready reports whether Init has completed.
func (s *LocalStore) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// guard returns the db handle if the store is usable, or (nil, false) for
// the benign not-ready path.
func (s *LocalStore) guard(ctx context.Context, op syncErrors.Operation) (*sql.DB, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || !s.ready {
		s.logger.WarnContext(ctx, "store not ready, returning empty result",
			slog.String("operation", string(op)),
		)
		return nil, false
	}
	return s.db, true
}

// Add inserts a new record, assigning the next per-collection id and
// stamping createdAt/updatedAt.
func (s *LocalStore) Add(ctx context.Context, collection record.Collection, rec record.Record) (string, error) {
	db, ok := s.guard(ctx, opAdd)
	if !ok {
		return "", nil
	}
	if !record.Known(collection) {
		return "", syncErrors.E(opAdd, component, syncErrors.KindValidation,
			fmt.Errorf("unknown collection %q", collection))
	}

	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", syncErrors.WrapOpComponent(err, opAdd, component)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	rec.ID, err = nextID(ctx, tx, collection)
	if err != nil {
		return "", syncErrors.WrapOpComponent(err, opAdd, component)
	}

	dataJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return "", syncErrors.WrapOpComponent(err, opAdd, component)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO records (collection, id, cloud_id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		string(collection), rec.ID, rec.CloudID, string(dataJSON),
		rec.CreatedAt.Format(time.RFC3339Nano), rec.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return "", wrapWriteError(err, opAdd)
	}

	if err = tx.Commit(); err != nil {
		return "", syncErrors.WrapOpComponent(err, opAdd, component)
	}

	return strconv.FormatInt(rec.ID, 10), nil
}

// Get performs a point lookup by local id. Returns nil when absent.
func (s *LocalStore) Get(ctx context.Context, collection record.Collection, id string) (*record.Record, error) {
	db, ok := s.guard(ctx, opGet)
	if !ok {
		return nil, nil
	}
	localID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, syncErrors.E(opGet, component, syncErrors.KindValidation,
			fmt.Errorf("invalid local id %q", id))
	}

	row := db.QueryRowContext(ctx,
		`SELECT id, cloud_id, data, created_at, updated_at FROM records WHERE collection = ? AND id = ?`,
		string(collection), localID)
	rec, err := scanRecord(row)
	if stdErrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, syncErrors.WrapOpComponent(err, opGet, component)
	}
	return rec, nil
}

// GetAll returns every record of the collection in insertion order.
func (s *LocalStore) GetAll(ctx context.Context, collection record.Collection) ([]record.Record, error) {
	db, ok := s.guard(ctx, opGetAll)
	if !ok {
		return nil, nil
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, cloud_id, data, created_at, updated_at FROM records WHERE collection = ? ORDER BY id ASC`,
		string(collection))
	if err != nil {
		return nil, syncErrors.WrapOpComponent(err, opGetAll, component)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// GetByIndex returns all records where the indexed field equals value. The
// field must have been declared as an index at schema-creation time.
func (s *LocalStore) GetByIndex(ctx context.Context, collection record.Collection, field string, value interface{}) ([]record.Record, error) {
	db, ok := s.guard(ctx, opGetByIndex)
	if !ok {
		return nil, nil
	}
	if !record.HasIndex(collection, field) {
		return nil, syncErrors.E(opGetByIndex, component, syncErrors.KindValidation,
			fmt.Errorf("field %q is not indexed on collection %q", field, collection))
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, cloud_id, data, created_at, updated_at FROM records
		 WHERE collection = ? AND json_extract(data, ?) = ? ORDER BY id ASC`,
		string(collection), "$."+field, bindValue(value))
	if err != nil {
		return nil, syncErrors.WrapOpComponent(err, opGetByIndex, component)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Update replaces the record keyed by rec.ID, preserving createdAt and
// stamping updatedAt. Creates the row if absent (upsert).
func (s *LocalStore) Update(ctx context.Context, collection record.Collection, rec record.Record) (string, error) {
	db, ok := s.guard(ctx, opUpdate)
	if !ok {
		return "", nil
	}
	if rec.ID == 0 {
		return "", syncErrors.E(opUpdate, component, syncErrors.KindValidation,
			fmt.Errorf("record id is required for update"))
	}

	rec.UpdatedAt = time.Now().UTC()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", syncErrors.WrapOpComponent(err, opUpdate, component)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var createdAt string
	err = tx.QueryRowContext(ctx,
		`SELECT created_at FROM records WHERE collection = ? AND id = ?`,
		string(collection), rec.ID).Scan(&createdAt)
	switch {
	case stdErrors.Is(err, sql.ErrNoRows):
		// Upsert path: the row keeps the caller-visible id.
		rec.CreatedAt = rec.UpdatedAt
		err = nil
	case err != nil:
		return "", syncErrors.WrapOpComponent(err, opUpdate, component)
	default:
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	}

	dataJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return "", syncErrors.WrapOpComponent(err, opUpdate, component)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO records (collection, id, cloud_id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (collection, id) DO UPDATE SET cloud_id = excluded.cloud_id, data = excluded.data, updated_at = excluded.updated_at`,
		string(collection), rec.ID, rec.CloudID, string(dataJSON),
		rec.CreatedAt.Format(time.RFC3339Nano), rec.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return "", wrapWriteError(err, opUpdate)
	}

	if err = tx.Commit(); err != nil {
		return "", syncErrors.WrapOpComponent(err, opUpdate, component)
	}

	return strconv.FormatInt(rec.ID, 10), nil
}

// Delete removes the record. Deleting a non-existent id is a no-op.
func (s *LocalStore) Delete(ctx context.Context, collection record.Collection, id string) error {
	db, ok := s.guard(ctx, opDelete)
	if !ok {
		return nil
	}
	localID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return syncErrors.E(opDelete, component, syncErrors.KindValidation,
			fmt.Errorf("invalid local id %q", id))
	}

	_, err = db.ExecContext(ctx,
		`DELETE FROM records WHERE collection = ? AND id = ?`,
		string(collection), localID)
	return syncErrors.WrapOpComponent(err, opDelete, component)
}

// Close closes the database connection.
func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.ready = false
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Stats returns database statistics for monitoring.
func (s *LocalStore) Stats() sql.DBStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return sql.DBStats{}
	}
	return s.db.Stats()
}

// nextID allocates the next per-collection monotonic id inside tx. A
// dedicated sequence table keeps ids stable across deletes.
func nextID(ctx context.Context, tx *sql.Tx, collection record.Collection) (int64, error) {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO sequences (collection, next_id) VALUES (?, 2)
		 ON CONFLICT (collection) DO UPDATE SET next_id = next_id + 1`,
		string(collection))
	if err != nil {
		return 0, err
	}
	var next int64
	err = tx.QueryRowContext(ctx,
		`SELECT next_id FROM sequences WHERE collection = ?`, string(collection)).Scan(&next)
	if err != nil {
		return 0, err
	}
	return next - 1, nil
}

// wrapWriteError maps SQLite constraint violations onto KindConflict so the
// domain layer can surface duplicate-key messages.
func wrapWriteError(err error, op syncErrors.Operation) error {
	if err == nil {
		return nil
	}
	var sqliteErr sqlite3.Error
	if stdErrors.As(err, &sqliteErr) {
		if sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return syncErrors.E(op, component, syncErrors.KindConflict, err)
		}
	}
	return syncErrors.WrapOpComponent(err, op, component)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*record.Record, error) {
	var (
		rec       record.Record
		cloudID   sql.NullString
		data      sql.NullString
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&rec.ID, &cloudID, &data, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if cloudID.Valid {
		rec.CloudID = cloudID.String
	}
	rec.Fields = record.Fields{}
	if data.Valid && data.String != "" {
		if err := json.Unmarshal([]byte(data.String), &rec.Fields); err != nil {
			return nil, fmt.Errorf("corrupt record payload: %w", err)
		}
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &rec, nil
}

func scanRecords(rows *sql.Rows) ([]record.Record, error) {
	var out []record.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, syncErrors.WrapOpComponent(err, opGetAll, component)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, syncErrors.WrapOpComponent(err, opGetAll, component)
	}
	return out, nil
}

// bindValue normalizes index-query values so JSON numbers and Go ints
// compare equal inside json_extract.
func bindValue(value interface{}) interface{} {
	switch v := value.(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float32:
		return float64(v)
	default:
		return v
	}
}
