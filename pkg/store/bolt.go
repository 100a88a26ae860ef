package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/0xmhha/meter-tracker/pkg/logger"
	"github.com/0xmhha/meter-tracker/pkg/meter"
)

// Bucket names.
var (
	bucketReadings = []byte("readings") // readingKey -> Reading JSON
	bucketTopUps   = []byte("topups")   // topUpKey -> TopUp JSON
)

// boltStore implements Store using BoltDB.
//
// BoltDB allows a single writer at a time, which serializes appends and
// migrations without extra locking.
type boltStore struct {
	db     *bolt.DB
	logger logger.Logger
	now    func() time.Time
}

// OpenBolt opens or creates a BoltDB store.
//
// Parameters:
//   - cfg: Store configuration (Path and Timeout are used)
//   - log: Logger instance
//
// Returns:
//   - Store backed by the file at cfg.Path
//   - Error if the database cannot be opened
func OpenBolt(cfg Config, log logger.Logger) (Store, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}
	if cfg.Path == "" {
		return nil, errors.New("bolt database path is empty")
	}

	dbPath := expandHome(cfg.Path)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		if _, createErr := tx.CreateBucketIfNotExists(bucketReadings); createErr != nil {
			return fmt.Errorf("failed to create readings bucket: %w", createErr)
		}
		if _, createErr := tx.CreateBucketIfNotExists(bucketTopUps); createErr != nil {
			return fmt.Errorf("failed to create topups bucket: %w", createErr)
		}
		return nil
	}); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("failed to close database after initialization error",
				"error", closeErr)
		}
		return nil, err
	}

	log.Info("bolt store opened", "db_path", dbPath)

	return &boltStore{
		db:     db,
		logger: log,
		now:    time.Now,
	}, nil
}

// ListReadings implements Store.ListReadings.
func (s *boltStore) ListReadings(ctx context.Context) ([]meter.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	readings := make([]meter.Reading, 0, 64)

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketReadings).ForEach(func(k, v []byte) error {
			var r meter.Reading
			if unmarshalErr := json.Unmarshal(v, &r); unmarshalErr != nil {
				s.logger.Warn("failed to unmarshal reading",
					"key", string(k),
					"error", unmarshalErr)
				return nil // Skip corrupt entries.
			}
			readings = append(readings, r)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list readings: %w", err)
	}

	sortReadings(readings)
	return readings, nil
}

// ListTopUps implements Store.ListTopUps.
func (s *boltStore) ListTopUps(ctx context.Context) ([]meter.TopUp, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	topUps := make([]meter.TopUp, 0, 16)

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTopUps).ForEach(func(k, v []byte) error {
			var t meter.TopUp
			if unmarshalErr := json.Unmarshal(v, &t); unmarshalErr != nil {
				s.logger.Warn("failed to unmarshal top-up",
					"key", string(k),
					"error", unmarshalErr)
				return nil
			}
			topUps = append(topUps, t)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list top-ups: %w", err)
	}

	sortTopUps(topUps)
	return topUps, nil
}

// AppendReading implements Store.AppendReading.
func (s *boltStore) AppendReading(ctx context.Context, r meter.Reading) (meter.Reading, error) {
	if err := ctx.Err(); err != nil {
		return meter.Reading{}, err
	}
	if err := checkReading(r); err != nil {
		return meter.Reading{}, err
	}

	r.CreatedAt = s.now()

	err := s.db.Update(func(tx *bolt.Tx) error {
		inserted, err := putReading(tx, r, &r)
		if err != nil {
			return err
		}
		if !inserted {
			return fmt.Errorf("%w: reading %s", ErrDuplicateKey, r.Key)
		}
		return nil
	})
	if err != nil {
		return meter.Reading{}, err
	}

	s.logger.Debug("reading stored", "key", r.Key, "id", r.ID, "period", r.Period)
	return r, nil
}

// AppendTopUp implements Store.AppendTopUp.
func (s *boltStore) AppendTopUp(ctx context.Context, in NewTopUp) (meter.TopUp, error) {
	if err := ctx.Err(); err != nil {
		return meter.TopUp{}, err
	}
	if err := checkNewTopUp(in); err != nil {
		return meter.TopUp{}, err
	}

	var result meter.TopUp

	err := s.db.Update(func(tx *bolt.Tx) error {
		latest, err := latestInTx(tx)
		if err != nil {
			return err
		}

		t, synthetic := buildTopUp(in, latest, s.now())

		inserted, err := putTopUp(tx, t, &t)
		if err != nil {
			return err
		}
		if !inserted {
			return fmt.Errorf("%w: top-up %s", ErrDuplicateKey, t.Key)
		}

		inserted, err = putReading(tx, synthetic, nil)
		if err != nil {
			return err
		}
		if !inserted {
			return fmt.Errorf("%w: reading %s", ErrDuplicateKey, synthetic.Key)
		}

		result = t
		return nil
	})
	if err != nil {
		return meter.TopUp{}, err
	}

	s.logger.Info("top-up stored",
		"key", result.Key,
		"units", result.UnitsAdded.String(),
		"resulting_reading", result.ResultingReading.String())

	return result, nil
}

// MigrateBatch implements Store.MigrateBatch.
func (s *boltStore) MigrateBatch(ctx context.Context, readings []meter.Reading, topUps []meter.TopUp) (MigrationResult, error) {
	if err := ctx.Err(); err != nil {
		return MigrationResult{}, err
	}

	var res MigrationResult
	now := s.now()

	err := s.db.Update(func(tx *bolt.Tx) error {
		res = MigrationResult{}

		for _, r := range readings {
			if err := checkReading(r); err != nil {
				return err
			}
			r.CreatedAt = createdAt(r.CreatedAt, now)

			inserted, err := putReading(tx, r, nil)
			if err != nil {
				return err
			}
			if inserted {
				res.InsertedReadings++
			} else {
				res.SkippedReadings++
			}
		}

		for _, t := range topUps {
			if err := checkTopUp(t); err != nil {
				return err
			}
			t.CreatedAt = createdAt(t.CreatedAt, now)

			inserted, err := putTopUp(tx, t, nil)
			if err != nil {
				return err
			}
			if inserted {
				res.InsertedTopUps++
			} else {
				res.SkippedTopUps++
			}
		}

		return ctx.Err()
	})
	if err != nil {
		return MigrationResult{}, fmt.Errorf("migration rolled back: %w", err)
	}

	s.logger.Info("batch migrated",
		"inserted_readings", res.InsertedReadings,
		"inserted_topups", res.InsertedTopUps,
		"skipped", res.Skipped())

	return res, nil
}

// Close implements Store.Close.
func (s *boltStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.logger.Info("bolt store closed")
	return nil
}

// putReading stores r unless its key exists. The stored record, with its new
// ID, is written to out when out is not nil.
func putReading(tx *bolt.Tx, r meter.Reading, out *meter.Reading) (bool, error) {
	b := tx.Bucket(bucketReadings)
	if b.Get([]byte(r.Key)) != nil {
		return false, nil
	}

	id, err := b.NextSequence()
	if err != nil {
		return false, fmt.Errorf("failed to allocate reading id: %w", err)
	}
	r.ID = id

	data, err := json.Marshal(r)
	if err != nil {
		return false, fmt.Errorf("failed to marshal reading: %w", err)
	}
	if err := b.Put([]byte(r.Key), data); err != nil {
		return false, fmt.Errorf("failed to store reading: %w", err)
	}

	if out != nil {
		*out = r
	}
	return true, nil
}

// putTopUp stores t unless its key exists.
func putTopUp(tx *bolt.Tx, t meter.TopUp, out *meter.TopUp) (bool, error) {
	b := tx.Bucket(bucketTopUps)
	if b.Get([]byte(t.Key)) != nil {
		return false, nil
	}

	id, err := b.NextSequence()
	if err != nil {
		return false, fmt.Errorf("failed to allocate top-up id: %w", err)
	}
	t.ID = id

	data, err := json.Marshal(t)
	if err != nil {
		return false, fmt.Errorf("failed to marshal top-up: %w", err)
	}
	if err := b.Put([]byte(t.Key), data); err != nil {
		return false, fmt.Errorf("failed to store top-up: %w", err)
	}

	if out != nil {
		*out = t
	}
	return true, nil
}

// latestInTx scans the readings bucket for the most recent reading.
func latestInTx(tx *bolt.Tx) (*meter.Reading, error) {
	var latest *meter.Reading

	err := tx.Bucket(bucketReadings).ForEach(func(_, v []byte) error {
		var r meter.Reading
		if err := json.Unmarshal(v, &r); err != nil {
			return nil
		}
		if latest == nil || r.Timestamp.After(latest.Timestamp) ||
			(r.Timestamp.Equal(latest.Timestamp) && r.ID > latest.ID) {
			latest = &r
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan readings: %w", err)
	}

	return latest, nil
}
