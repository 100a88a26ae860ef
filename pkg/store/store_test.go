package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/meter-tracker/pkg/logger"
	"github.com/0xmhha/meter-tracker/pkg/meter"
	"github.com/0xmhha/meter-tracker/pkg/units"
	"github.com/0xmhha/meter-tracker/pkg/usage"
)

var zone = time.FixedZone("WAT", 3600)

func at(day, hour int) time.Time {
	return time.Date(2024, 1, day, hour, 0, 0, 0, zone)
}

func newReading(key string, ts time.Time, value string) meter.Reading {
	return meter.Reading{
		Key:       key,
		Timestamp: ts,
		Value:     units.MustParse(value),
		Period:    meter.PeriodAt(ts, zone),
	}
}

// backends returns a fresh store per backend under test.
func backends(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()

	b := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemory()
		},
		"bolt": func(t *testing.T) Store {
			s, err := OpenBolt(Config{Path: filepath.Join(t.TempDir(), "meter.db")}, logger.Noop())
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}

	if dsn := os.Getenv("METER_TRACKER_TEST_PG_DSN"); dsn != "" {
		b["postgres"] = func(t *testing.T) Store {
			ctx := context.Background()
			s, err := OpenPostgres(ctx, Config{DSN: dsn}, logger.Noop())
			require.NoError(t, err)
			pg := s.(*postgresStore)
			_, err = pg.db.ExecContext(ctx, `TRUNCATE meter_readings, meter_topups`)
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		}
	}

	return b
}

func TestAppendAndListReadings(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			second, err := s.AppendReading(ctx, newReading("b", at(2, 7), "90"))
			require.NoError(t, err)
			assert.NotZero(t, second.ID)
			assert.False(t, second.CreatedAt.IsZero())

			_, err = s.AppendReading(ctx, newReading("a", at(1, 21), "100"))
			require.NoError(t, err)

			readings, err := s.ListReadings(ctx)
			require.NoError(t, err)
			require.Len(t, readings, 2)
			assert.Equal(t, "a", readings[0].Key)
			assert.Equal(t, "b", readings[1].Key)
			assert.Equal(t, meter.Night, readings[0].Period)
			assert.Equal(t, 0, readings[0].Value.Cmp(units.MustParse("100")))
			assert.True(t, readings[0].Timestamp.Equal(at(1, 21)))

			_, offset := readings[0].Timestamp.Zone()
			assert.Equal(t, 3600, offset)
		})
	}
}

func TestAppendReadingDuplicateKey(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			_, err := s.AppendReading(ctx, newReading("dup", at(1, 7), "100"))
			require.NoError(t, err)

			_, err = s.AppendReading(ctx, newReading("dup", at(1, 8), "50"))
			assert.True(t, errors.Is(err, ErrDuplicateKey))

			readings, err := s.ListReadings(ctx)
			require.NoError(t, err)
			require.Len(t, readings, 1)
			assert.Equal(t, "100", readings[0].Value.String())
		})
	}
}

func TestAppendReadingInvalid(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	_, err := s.AppendReading(ctx, meter.Reading{Timestamp: at(1, 7), Period: meter.Morning})
	assert.True(t, errors.Is(err, ErrInvalidRecord))

	_, err = s.AppendReading(ctx, meter.Reading{Key: "x", Timestamp: at(1, 7), Period: "noon"})
	assert.True(t, errors.Is(err, ErrInvalidRecord))
}

func TestAppendTopUp(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			_, err := s.AppendReading(ctx, newReading("r1", at(1, 7), "180"))
			require.NoError(t, err)
			_, err = s.AppendReading(ctx, newReading("r2", at(1, 14), "200"))
			require.NoError(t, err)

			cost := units.MustParse("3000")
			topUp, err := s.AppendTopUp(ctx, NewTopUp{
				Key:          "t1",
				Timestamp:    at(1, 18),
				UnitsAdded:   units.MustParse("50"),
				Cost:         &cost,
				SyntheticKey: "t1-reading",
				Period:       meter.Evening,
			})
			require.NoError(t, err)
			assert.Equal(t, "250", topUp.ResultingReading.String())

			readings, err := s.ListReadings(ctx)
			require.NoError(t, err)
			require.Len(t, readings, 3)

			synthetic := readings[2]
			assert.Equal(t, "t1-reading", synthetic.Key)
			assert.True(t, synthetic.Synthetic)
			assert.Equal(t, 0, synthetic.Value.Cmp(units.MustParse("250")))

			topUps, err := s.ListTopUps(ctx)
			require.NoError(t, err)
			require.Len(t, topUps, 1)
			require.NotNil(t, topUps[0].Cost)
			assert.Equal(t, 0, topUps[0].Cost.Cmp(cost))

			// The jump from 200 to 250 is not consumption.
			months := usage.AggregateMonthly(readings[1:])
			assert.Empty(t, months)
		})
	}
}

func TestAppendTopUpWithoutReadings(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			topUp, err := s.AppendTopUp(ctx, NewTopUp{
				Key:          "t1",
				Timestamp:    at(1, 9),
				UnitsAdded:   units.MustParse("75.5"),
				SyntheticKey: "s1",
				Period:       meter.Morning,
			})
			require.NoError(t, err)
			assert.Equal(t, 0, topUp.ResultingReading.Cmp(units.MustParse("75.5")))
			assert.Nil(t, topUp.Cost)
		})
	}
}

func TestAppendTopUpDuplicateRollsBack(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			_, err := s.AppendReading(ctx, newReading("taken", at(1, 7), "100"))
			require.NoError(t, err)

			_, err = s.AppendTopUp(ctx, NewTopUp{
				Key:          "t1",
				Timestamp:    at(1, 9),
				UnitsAdded:   units.MustParse("10"),
				SyntheticKey: "taken",
				Period:       meter.Morning,
			})
			require.True(t, errors.Is(err, ErrDuplicateKey))

			topUps, err := s.ListTopUps(ctx)
			require.NoError(t, err)
			assert.Empty(t, topUps)
		})
	}
}

func TestMigrateBatchIsIdempotent(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			readings := []meter.Reading{
				newReading("m1", at(1, 7), "100"),
				newReading("e1", at(1, 14), "90"),
			}
			topUps := []meter.TopUp{{
				Key:              "t1",
				Timestamp:        at(1, 15),
				UnitsAdded:       units.MustParse("50"),
				ResultingReading: units.MustParse("140"),
			}}

			first, err := s.MigrateBatch(ctx, readings, topUps)
			require.NoError(t, err)
			assert.Equal(t, MigrationResult{InsertedReadings: 2, InsertedTopUps: 1}, first)

			second, err := s.MigrateBatch(ctx, readings, topUps)
			require.NoError(t, err)
			assert.Equal(t, 0, second.Inserted())
			assert.Equal(t, 3, second.Skipped())

			stored, err := s.ListReadings(ctx)
			require.NoError(t, err)
			assert.Len(t, stored, 2)
		})
	}
}

func TestMigrateBatchNeverOverwrites(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			_, err := s.AppendReading(ctx, newReading("k", at(1, 7), "100"))
			require.NoError(t, err)

			res, err := s.MigrateBatch(ctx, []meter.Reading{newReading("k", at(1, 7), "1")}, nil)
			require.NoError(t, err)
			assert.Equal(t, 1, res.SkippedReadings)

			stored, err := s.ListReadings(ctx)
			require.NoError(t, err)
			require.Len(t, stored, 1)
			assert.Equal(t, "100", stored[0].Value.String())
		})
	}
}

func TestMigrateBatchAllOrNothing(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			readings := []meter.Reading{
				newReading("ok", at(1, 7), "100"),
				{Key: "broken", Timestamp: at(1, 8), Value: units.MustParse("1"), Period: "noon"},
			}

			_, err := s.MigrateBatch(ctx, readings, nil)
			require.Error(t, err)

			stored, err := s.ListReadings(ctx)
			require.NoError(t, err)
			assert.Empty(t, stored)
		})
	}
}

func TestBoltPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "meter.db")

	s, err := OpenBolt(Config{Path: path}, logger.Noop())
	require.NoError(t, err)
	_, err = s.AppendReading(ctx, newReading("a", at(1, 7), "42.5"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenBolt(Config{Path: path}, logger.Noop())
	require.NoError(t, err)
	defer s.Close()

	readings, err := s.ListReadings(ctx)
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, "42.5", readings[0].Value.String())
	assert.Equal(t, meter.Morning, readings[0].Period)
}
