package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/fitlocker/fitlocker/logging"
	"github.com/fitlocker/fitlocker/record"
)

// baseSchema is version 0: the physical tables shared by every collection.
// Collection-level schema (secondary indexes) is applied by the versioned
// migrations in the record package.
const baseSchema = `
CREATE TABLE IF NOT EXISTS records (
    collection  TEXT NOT NULL,
    id          INTEGER NOT NULL,
    cloud_id    TEXT,
    data        TEXT,
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL,
    PRIMARY KEY (collection, id)
);
CREATE TABLE IF NOT EXISTS sequences (
    collection  TEXT PRIMARY KEY,
    next_id     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS settings (
    key         TEXT PRIMARY KEY,
    value       TEXT
);
CREATE TABLE IF NOT EXISTS schema_version (
    version     INTEGER NOT NULL
);
`

// migrate applies the base schema plus every record.Migration newer than the
// stored version. Upgrades are purely additive: indexes and collections are
// only ever created, never dropped, so existing records survive.
func migrate(ctx context.Context, db *sql.DB, logger *logging.Logger) error {
	if _, err := db.ExecContext(ctx, baseSchema); err != nil {
		return fmt.Errorf("failed to create base schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := currentVersion(ctx, tx)
	if err != nil {
		return err
	}

	for _, m := range record.Migrations {
		if m.Version <= current {
			continue
		}
		for _, def := range m.Collections {
			if err := createIndexes(ctx, tx, def); err != nil {
				return fmt.Errorf("migration v%d: %w", m.Version, err)
			}
		}
		logger.InfoContext(ctx, "applied schema migration",
			slog.Int("version", m.Version),
			slog.Int("collections", len(m.Collections)),
		)
	}

	if record.SchemaVersion > current {
		if _, err := tx.ExecContext(ctx, `DELETE FROM schema_version`); err != nil {
			return fmt.Errorf("failed to clear schema version: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, record.SchemaVersion); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
	}

	return tx.Commit()
}

func currentVersion(ctx context.Context, tx *sql.Tx) (int, error) {
	var version sql.NullInt64
	err := tx.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}

// createIndexes provisions the declared secondary indexes for one collection
// as partial expression indexes over the JSON payload.
func createIndexes(ctx context.Context, tx *sql.Tx, def record.CollectionDef) error {
	for _, idx := range def.Indexes {
		unique := ""
		if idx.Unique {
			unique = "UNIQUE "
		}
		query := fmt.Sprintf(
			`CREATE %sINDEX IF NOT EXISTS idx_%s_%s ON records (collection, json_extract(data, '$.%s')) WHERE collection = '%s'`,
			unique, def.Name, idx.Field, idx.Field, def.Name)
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index on %s.%s: %w", def.Name, idx.Field, err)
		}
	}
	return nil
}
