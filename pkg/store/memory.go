package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/0xmhha/meter-tracker/pkg/meter"
)

// memoryStore implements Store in process memory.
type memoryStore struct {
	mu       sync.RWMutex
	readings map[string]meter.Reading
	topUps   map[string]meter.TopUp
	nextID   uint64
	now      func() time.Time
}

// NewMemory creates an empty in-memory store.
//
// Useful for testing or when persistence is not needed.
func NewMemory() Store {
	return &memoryStore{
		readings: make(map[string]meter.Reading),
		topUps:   make(map[string]meter.TopUp),
		now:      time.Now,
	}
}

// ListReadings implements Store.ListReadings.
func (s *memoryStore) ListReadings(ctx context.Context) ([]meter.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	readings := make([]meter.Reading, 0, len(s.readings))
	for _, r := range s.readings {
		readings = append(readings, r)
	}
	sortReadings(readings)
	return readings, nil
}

// ListTopUps implements Store.ListTopUps.
func (s *memoryStore) ListTopUps(ctx context.Context) ([]meter.TopUp, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	topUps := make([]meter.TopUp, 0, len(s.topUps))
	for _, t := range s.topUps {
		topUps = append(topUps, t)
	}
	sortTopUps(topUps)
	return topUps, nil
}

// AppendReading implements Store.AppendReading.
func (s *memoryStore) AppendReading(ctx context.Context, r meter.Reading) (meter.Reading, error) {
	if err := ctx.Err(); err != nil {
		return meter.Reading{}, err
	}
	if err := checkReading(r); err != nil {
		return meter.Reading{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.readings[r.Key]; exists {
		return meter.Reading{}, fmt.Errorf("%w: reading %s", ErrDuplicateKey, r.Key)
	}

	s.nextID++
	r.ID = s.nextID
	r.CreatedAt = s.now()
	s.readings[r.Key] = r
	return r, nil
}

// AppendTopUp implements Store.AppendTopUp.
func (s *memoryStore) AppendTopUp(ctx context.Context, in NewTopUp) (meter.TopUp, error) {
	if err := ctx.Err(); err != nil {
		return meter.TopUp{}, err
	}
	if err := checkNewTopUp(in); err != nil {
		return meter.TopUp{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.topUps[in.Key]; exists {
		return meter.TopUp{}, fmt.Errorf("%w: top-up %s", ErrDuplicateKey, in.Key)
	}
	if _, exists := s.readings[in.SyntheticKey]; exists {
		return meter.TopUp{}, fmt.Errorf("%w: reading %s", ErrDuplicateKey, in.SyntheticKey)
	}

	all := make([]meter.Reading, 0, len(s.readings))
	for _, r := range s.readings {
		all = append(all, r)
	}
	sortReadings(all)

	t, synthetic := buildTopUp(in, latestReading(all), s.now())

	s.nextID++
	t.ID = s.nextID
	s.topUps[t.Key] = t

	s.nextID++
	synthetic.ID = s.nextID
	s.readings[synthetic.Key] = synthetic

	return t, nil
}

// MigrateBatch implements Store.MigrateBatch.
//
// Records are checked before anything is written, so a failing batch leaves
// the maps untouched.
func (s *memoryStore) MigrateBatch(ctx context.Context, readings []meter.Reading, topUps []meter.TopUp) (MigrationResult, error) {
	if err := ctx.Err(); err != nil {
		return MigrationResult{}, err
	}
	for _, r := range readings {
		if err := checkReading(r); err != nil {
			return MigrationResult{}, fmt.Errorf("migration rolled back: %w", err)
		}
	}
	for _, t := range topUps {
		if err := checkTopUp(t); err != nil {
			return MigrationResult{}, fmt.Errorf("migration rolled back: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var res MigrationResult
	now := s.now()

	for _, r := range readings {
		if _, exists := s.readings[r.Key]; exists {
			res.SkippedReadings++
			continue
		}
		s.nextID++
		r.ID = s.nextID
		r.CreatedAt = createdAt(r.CreatedAt, now)
		s.readings[r.Key] = r
		res.InsertedReadings++
	}

	for _, t := range topUps {
		if _, exists := s.topUps[t.Key]; exists {
			res.SkippedTopUps++
			continue
		}
		s.nextID++
		t.ID = s.nextID
		t.CreatedAt = createdAt(t.CreatedAt, now)
		s.topUps[t.Key] = t
		res.InsertedTopUps++
	}

	return res, nil
}

// Close implements Store.Close.
func (s *memoryStore) Close() error {
	return nil
}
