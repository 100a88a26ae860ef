package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/0xmhha/meter-tracker/pkg/logger"
	"github.com/0xmhha/meter-tracker/pkg/meter"
	"github.com/0xmhha/meter-tracker/pkg/units"
)

// writeLockID is the advisory lock key that serializes writers.
const writeLockID = 0x6d657465 // "mete"

const schema = `
CREATE TABLE IF NOT EXISTS meter_readings (
	id          BIGSERIAL PRIMARY KEY,
	reading_key TEXT NOT NULL UNIQUE,
	ts          TIMESTAMPTZ NOT NULL,
	tz_offset   INTEGER NOT NULL,
	value       NUMERIC NOT NULL,
	period      TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	synthetic   BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS meter_readings_ts_idx ON meter_readings (ts, id);
CREATE TABLE IF NOT EXISTS meter_topups (
	id                BIGSERIAL PRIMARY KEY,
	topup_key         TEXT NOT NULL UNIQUE,
	ts                TIMESTAMPTZ NOT NULL,
	tz_offset         INTEGER NOT NULL,
	units_added       NUMERIC NOT NULL,
	resulting_reading NUMERIC NOT NULL,
	cost              NUMERIC,
	created_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS meter_topups_ts_idx ON meter_topups (ts, id);`

// postgresStore implements Store on PostgreSQL through database/sql.
//
// Timestamps are stored as timestamptz together with the original UTC offset
// in seconds so readings come back in the zone they were taken in.
type postgresStore struct {
	db     *sql.DB
	logger logger.Logger
	now    func() time.Time
}

// OpenPostgres connects to PostgreSQL and ensures the schema exists.
//
// Returns an error wrapping ErrUnavailable when the server cannot be reached.
func OpenPostgres(ctx context.Context, cfg Config, log logger.Logger) (Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: postgres dsn is empty", ErrUnavailable)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	log.Info("postgres store opened")

	return &postgresStore{
		db:     db,
		logger: log,
		now:    time.Now,
	}, nil
}

// ListReadings implements Store.ListReadings.
func (s *postgresStore) ListReadings(ctx context.Context) ([]meter.Reading, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, reading_key, ts, tz_offset, value::text, period, created_at, synthetic
FROM meter_readings
ORDER BY ts, id`)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list readings: %w", err))
	}
	defer rows.Close()

	readings := make([]meter.Reading, 0, 64)
	for rows.Next() {
		var (
			r      meter.Reading
			offset int
			value  string
			period string
		)
		if err := rows.Scan(&r.ID, &r.Key, &r.Timestamp, &offset, &value, &period, &r.CreatedAt, &r.Synthetic); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		if r.Value, err = units.Parse(value); err != nil {
			return nil, fmt.Errorf("reading %s: %w", r.Key, err)
		}
		if r.Period, err = meter.ParsePeriod(period); err != nil {
			return nil, fmt.Errorf("reading %s: %w", r.Key, err)
		}
		r.Timestamp = inOffset(r.Timestamp, offset)
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("failed to list readings: %w", err))
	}

	return readings, nil
}

// ListTopUps implements Store.ListTopUps.
func (s *postgresStore) ListTopUps(ctx context.Context) ([]meter.TopUp, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, topup_key, ts, tz_offset, units_added::text, resulting_reading::text, cost::text, created_at
FROM meter_topups
ORDER BY ts, id`)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list top-ups: %w", err))
	}
	defer rows.Close()

	topUps := make([]meter.TopUp, 0, 16)
	for rows.Next() {
		var (
			t          meter.TopUp
			offset     int
			unitsAdded string
			resulting  string
			cost       sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.Key, &t.Timestamp, &offset, &unitsAdded, &resulting, &cost, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan top-up: %w", err)
		}
		if t.UnitsAdded, err = units.Parse(unitsAdded); err != nil {
			return nil, fmt.Errorf("top-up %s: %w", t.Key, err)
		}
		if t.ResultingReading, err = units.Parse(resulting); err != nil {
			return nil, fmt.Errorf("top-up %s: %w", t.Key, err)
		}
		if cost.Valid {
			c, err := units.Parse(cost.String)
			if err != nil {
				return nil, fmt.Errorf("top-up %s: %w", t.Key, err)
			}
			t.Cost = &c
		}
		t.Timestamp = inOffset(t.Timestamp, offset)
		topUps = append(topUps, t)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("failed to list top-ups: %w", err))
	}

	return topUps, nil
}

// AppendReading implements Store.AppendReading.
func (s *postgresStore) AppendReading(ctx context.Context, r meter.Reading) (meter.Reading, error) {
	if err := checkReading(r); err != nil {
		return meter.Reading{}, err
	}

	r.CreatedAt = s.now()

	id, err := insertReading(ctx, s.db, r)
	if errors.Is(err, sql.ErrNoRows) {
		return meter.Reading{}, fmt.Errorf("%w: reading %s", ErrDuplicateKey, r.Key)
	}
	if err != nil {
		return meter.Reading{}, classify(fmt.Errorf("failed to store reading: %w", err))
	}

	r.ID = id
	s.logger.Debug("reading stored", "key", r.Key, "id", r.ID, "period", r.Period)
	return r, nil
}

// AppendTopUp implements Store.AppendTopUp.
func (s *postgresStore) AppendTopUp(ctx context.Context, in NewTopUp) (meter.TopUp, error) {
	if err := checkNewTopUp(in); err != nil {
		return meter.TopUp{}, err
	}

	tx, err := s.beginWrite(ctx)
	if err != nil {
		return meter.TopUp{}, err
	}

	var latest *meter.Reading
	var value string
	err = tx.QueryRowContext(ctx, `
SELECT value::text FROM meter_readings ORDER BY ts DESC, id DESC LIMIT 1`).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		_ = tx.Rollback()
		return meter.TopUp{}, classify(fmt.Errorf("failed to read latest reading: %w", err))
	default:
		v, parseErr := units.Parse(value)
		if parseErr != nil {
			_ = tx.Rollback()
			return meter.TopUp{}, parseErr
		}
		latest = &meter.Reading{Value: v}
	}

	t, synthetic := buildTopUp(in, latest, s.now())

	t.ID, err = insertTopUp(ctx, tx, t)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return meter.TopUp{}, fmt.Errorf("%w: top-up %s", ErrDuplicateKey, t.Key)
		}
		return meter.TopUp{}, classify(fmt.Errorf("failed to store top-up: %w", err))
	}

	if _, err = insertReading(ctx, tx, synthetic); err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return meter.TopUp{}, fmt.Errorf("%w: reading %s", ErrDuplicateKey, synthetic.Key)
		}
		return meter.TopUp{}, classify(fmt.Errorf("failed to store synthetic reading: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return meter.TopUp{}, classify(fmt.Errorf("failed to commit top-up: %w", err))
	}

	s.logger.Info("top-up stored",
		"key", t.Key,
		"units", t.UnitsAdded.String(),
		"resulting_reading", t.ResultingReading.String())

	return t, nil
}

// MigrateBatch implements Store.MigrateBatch.
func (s *postgresStore) MigrateBatch(ctx context.Context, readings []meter.Reading, topUps []meter.TopUp) (MigrationResult, error) {
	tx, err := s.beginWrite(ctx)
	if err != nil {
		return MigrationResult{}, err
	}

	var res MigrationResult
	now := s.now()

	fail := func(err error) (MigrationResult, error) {
		_ = tx.Rollback()
		return MigrationResult{}, classify(fmt.Errorf("migration rolled back: %w", err))
	}

	for _, r := range readings {
		if err := checkReading(r); err != nil {
			return fail(err)
		}
		r.CreatedAt = createdAt(r.CreatedAt, now)

		_, err := insertReading(ctx, tx, r)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			res.SkippedReadings++
		case err != nil:
			return fail(err)
		default:
			res.InsertedReadings++
		}
	}

	for _, t := range topUps {
		if err := checkTopUp(t); err != nil {
			return fail(err)
		}
		t.CreatedAt = createdAt(t.CreatedAt, now)

		_, err := insertTopUp(ctx, tx, t)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			res.SkippedTopUps++
		case err != nil:
			return fail(err)
		default:
			res.InsertedTopUps++
		}
	}

	if err := tx.Commit(); err != nil {
		return MigrationResult{}, classify(fmt.Errorf("migration rolled back: %w", err))
	}

	s.logger.Info("batch migrated",
		"inserted_readings", res.InsertedReadings,
		"inserted_topups", res.InsertedTopUps,
		"skipped", res.Skipped())

	return res, nil
}

// Close implements Store.Close.
func (s *postgresStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close postgres: %w", err)
	}
	s.logger.Info("postgres store closed")
	return nil
}

// beginWrite starts a transaction holding the writer lock until it ends.
func (s *postgresStore) beginWrite(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to begin transaction: %w", err))
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, writeLockID); err != nil {
		_ = tx.Rollback()
		return nil, classify(fmt.Errorf("failed to acquire write lock: %w", err))
	}
	return tx, nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// insertReading inserts r unless its key exists and returns the new id.
// A present key yields sql.ErrNoRows.
func insertReading(ctx context.Context, q execer, r meter.Reading) (uint64, error) {
	_, offset := r.Timestamp.Zone()

	var id uint64
	err := q.QueryRowContext(ctx, `
INSERT INTO meter_readings (reading_key, ts, tz_offset, value, period, created_at, synthetic)
VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)
ON CONFLICT (reading_key) DO NOTHING
RETURNING id`,
		r.Key, r.Timestamp, offset, r.Value.String(), string(r.Period), r.CreatedAt, r.Synthetic,
	).Scan(&id)
	return id, err
}

// insertTopUp inserts t unless its key exists and returns the new id.
func insertTopUp(ctx context.Context, q execer, t meter.TopUp) (uint64, error) {
	_, offset := t.Timestamp.Zone()

	var cost sql.NullString
	if t.Cost != nil {
		cost = sql.NullString{String: t.Cost.String(), Valid: true}
	}

	var id uint64
	err := q.QueryRowContext(ctx, `
INSERT INTO meter_topups (topup_key, ts, tz_offset, units_added, resulting_reading, cost, created_at)
VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7)
ON CONFLICT (topup_key) DO NOTHING
RETURNING id`,
		t.Key, t.Timestamp, offset, t.UnitsAdded.String(), t.ResultingReading.String(), cost, t.CreatedAt,
	).Scan(&id)
	return id, err
}

// inOffset moves t into a fixed zone with the given UTC offset.
func inOffset(t time.Time, offset int) time.Time {
	if offset == 0 {
		return t.UTC()
	}
	return t.In(time.FixedZone("", offset))
}

// classify marks connection failures as ErrUnavailable.
func classify(err error) error {
	if err == nil || errors.Is(err, ErrUnavailable) {
		return err
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
