package pgvehicle

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS vehicles (
  vin TEXT PRIMARY KEY,
  valid BOOLEAN NOT NULL,
  attributes JSONB NOT NULL DEFAULT '{}',
  error TEXT NULL,
  failure_kind TEXT NOT NULL DEFAULT '',
  source TEXT NOT NULL DEFAULT '',
  resolved_at TIMESTAMPTZ NOT NULL,
  last_checked_at TIMESTAMPTZ NOT NULL,
  next_check_at TIMESTAMPTZ NULL,
  check_fail_count INT NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		// перепроверяются только неуспешные записи
		`CREATE INDEX IF NOT EXISTS idx_vehicles_stale ON vehicles(next_check_at) WHERE NOT valid`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
