package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	stdErrors "errors"

	syncErrors "github.com/fitlocker/fitlocker/errors"
)

// GetSetting returns the value stored under key, or nil if unset. Values
// round-trip through JSON, so numbers come back as float64.
func (s *LocalStore) GetSetting(ctx context.Context, key string) (interface{}, error) {
	db, ok := s.guard(ctx, opSetting)
	if !ok {
		return nil, nil
	}

	var raw sql.NullString
	err := db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&raw)
	if stdErrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, syncErrors.WrapOpComponent(err, opSetting, component)
	}
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}

	var value interface{}
	if err := json.Unmarshal([]byte(raw.String), &value); err != nil {
		return nil, syncErrors.WrapOpComponent(err, opSetting, component)
	}
	return value, nil
}

// SetSetting stores value under key, replacing any previous value.
func (s *LocalStore) SetSetting(ctx context.Context, key string, value interface{}) error {
	db, ok := s.guard(ctx, opSetting)
	if !ok {
		return nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return syncErrors.E(opSetting, component, syncErrors.KindValidation, err)
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, string(raw))
	return syncErrors.WrapOpComponent(err, opSetting, component)
}
