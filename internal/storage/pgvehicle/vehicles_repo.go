package pgvehicle

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/BearBump/VinBox/internal/models"
	"github.com/BearBump/VinBox/internal/vin"
)

type VehicleUpdate struct {
	Record models.VehicleRecord

	CheckedAt time.Time

	// NextCheckAt: когда перепроверить неуспешную запись. Для валидных игнорируется.
	NextCheckAt time.Time
}

// StaleVehicle: неуспешная запись, взятая воркером на перепроверку.
type StaleVehicle struct {
	Record         models.VehicleRecord
	CheckFailCount int
	NextCheckAt    time.Time
}

// UpsertVehicle пишет запись по VIN. Валидную запись неуспешная уже не перетирает.
// check_fail_count растёт только на подряд идущих сетевых ошибках.
func (s *Storage) UpsertVehicle(ctx context.Context, u VehicleUpdate) error {
	rec := u.Record
	attrs, err := json.Marshal(rec.VehicleAttributes)
	if err != nil {
		return errors.Wrap(err, "marshal attributes")
	}

	var nextCheckAt *time.Time
	if !rec.Valid {
		t := u.NextCheckAt.UTC()
		nextCheckAt = &t
	}
	failCount := 0
	if rec.FailureKind == models.FailureNetwork {
		failCount = 1
	}

	_, err = s.db.Exec(ctx, `
INSERT INTO vehicles (
  vin, valid, attributes, error, failure_kind, source,
  resolved_at, last_checked_at, next_check_at, check_fail_count,
  created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now(),now())
ON CONFLICT (vin)
DO UPDATE SET
  valid = EXCLUDED.valid,
  attributes = EXCLUDED.attributes,
  error = EXCLUDED.error,
  failure_kind = EXCLUDED.failure_kind,
  source = EXCLUDED.source,
  resolved_at = EXCLUDED.resolved_at,
  last_checked_at = EXCLUDED.last_checked_at,
  next_check_at = EXCLUDED.next_check_at,
  check_fail_count = CASE
    WHEN EXCLUDED.failure_kind = 'network' THEN vehicles.check_fail_count + 1
    ELSE 0
  END,
  updated_at = now()
WHERE vehicles.valid = false OR EXCLUDED.valid = true
`, vin.Normalize(rec.VIN), rec.Valid, attrs, rec.Error, rec.FailureKind, rec.Source,
		rec.ResolvedAt.UTC(), u.CheckedAt.UTC(), nextCheckAt, failCount)
	return errors.Wrap(err, "upsert vehicle")
}

// GetVehicle возвращает (nil, nil), если VIN ещё не встречался.
func (s *Storage) GetVehicle(ctx context.Context, v string) (*models.VehicleRecord, error) {
	row := s.db.QueryRow(ctx, `
SELECT vin, valid, attributes, error, failure_kind, source, resolved_at
FROM vehicles
WHERE vin = $1
`, vin.Normalize(v))

	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select vehicle")
	}
	return rec, nil
}

// ClaimStaleFailures выбирает пачку неуспешных записей, которые пора перепроверить,
// и сдвигает им next_check_at на lease, чтобы параллельный воркер их не взял.
// Использует SELECT ... FOR UPDATE SKIP LOCKED.
func (s *Storage) ClaimStaleFailures(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*StaleVehicle, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
SELECT vin, valid, attributes, error, failure_kind, source, resolved_at, check_fail_count
FROM vehicles
WHERE NOT valid
  AND failure_kind <> $2
  AND next_check_at <= $1
ORDER BY next_check_at ASC
LIMIT $3
FOR UPDATE SKIP LOCKED
`, now.UTC(), models.FailureInvalid, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select stale vehicles")
	}
	defer rows.Close()

	var picked []*StaleVehicle
	for rows.Next() {
		var sv StaleVehicle
		rec, err := scanRecord(rows, &sv.CheckFailCount)
		if err != nil {
			return nil, errors.Wrap(err, "scan stale vehicle")
		}
		sv.Record = *rec
		picked = append(picked, &sv)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}

	leaseUntil := now.UTC().Add(lease)
	for _, sv := range picked {
		_, err := tx.Exec(ctx, `UPDATE vehicles SET next_check_at = $2, updated_at = now() WHERE vin = $1`, sv.Record.VIN, leaseUntil)
		if err != nil {
			return nil, errors.Wrap(err, "lease vehicle")
		}
		sv.NextCheckAt = leaseUntil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return picked, nil
}

// RefreshVehicle ставит неуспешную запись в начало очереди перепроверки.
func (s *Storage) RefreshVehicle(ctx context.Context, v string) error {
	_, err := s.db.Exec(ctx, `UPDATE vehicles SET next_check_at = now(), updated_at = now() WHERE vin = $1 AND NOT valid`, vin.Normalize(v))
	return errors.Wrap(err, "refresh vehicle")
}

func scanRecord(row pgx.Row, extra ...any) (*models.VehicleRecord, error) {
	var rec models.VehicleRecord
	var attrs []byte
	dest := append([]any{
		&rec.VIN, &rec.Valid, &attrs, &rec.Error, &rec.FailureKind, &rec.Source, &rec.ResolvedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &rec.VehicleAttributes); err != nil {
			return nil, errors.Wrap(err, "unmarshal attributes")
		}
	}
	return &rec, nil
}
