package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/0xmhha/meter-tracker/pkg/meter"
	"github.com/0xmhha/meter-tracker/pkg/units"
)

// checkReading verifies the caller-supplied fields of a reading.
func checkReading(r meter.Reading) error {
	switch {
	case strings.TrimSpace(r.Key) == "":
		return fmt.Errorf("%w: reading key is empty", ErrInvalidRecord)
	case r.Timestamp.IsZero():
		return fmt.Errorf("%w: reading %s has no timestamp", ErrInvalidRecord, r.Key)
	case !r.Period.Valid():
		return fmt.Errorf("%w: reading %s has period %q", ErrInvalidRecord, r.Key, r.Period)
	}
	return nil
}

// checkTopUp verifies the caller-supplied fields of a migrated top-up.
func checkTopUp(t meter.TopUp) error {
	switch {
	case strings.TrimSpace(t.Key) == "":
		return fmt.Errorf("%w: top-up key is empty", ErrInvalidRecord)
	case t.Timestamp.IsZero():
		return fmt.Errorf("%w: top-up %s has no timestamp", ErrInvalidRecord, t.Key)
	case t.UnitsAdded.Sign() <= 0:
		return fmt.Errorf("%w: top-up %s adds %s units", ErrInvalidRecord, t.Key, t.UnitsAdded)
	}
	return nil
}

// checkNewTopUp verifies an AppendTopUp request.
func checkNewTopUp(in NewTopUp) error {
	switch {
	case strings.TrimSpace(in.Key) == "":
		return fmt.Errorf("%w: top-up key is empty", ErrInvalidRecord)
	case strings.TrimSpace(in.SyntheticKey) == "":
		return fmt.Errorf("%w: synthetic reading key is empty", ErrInvalidRecord)
	case in.Timestamp.IsZero():
		return fmt.Errorf("%w: top-up %s has no timestamp", ErrInvalidRecord, in.Key)
	case in.UnitsAdded.Sign() <= 0:
		return fmt.Errorf("%w: top-up %s adds %s units", ErrInvalidRecord, in.Key, in.UnitsAdded)
	case !in.Period.Valid():
		return fmt.Errorf("%w: top-up %s has period %q", ErrInvalidRecord, in.Key, in.Period)
	}
	return nil
}

// buildTopUp derives the top-up and its synthetic reading from the latest
// known reading. A store without readings counts from 0.
func buildTopUp(in NewTopUp, latest *meter.Reading, now time.Time) (meter.TopUp, meter.Reading) {
	base := units.Zero()
	if latest != nil {
		base = latest.Value
	}
	resulting := base.Add(in.UnitsAdded)

	t := meter.TopUp{
		Key:              in.Key,
		Timestamp:        in.Timestamp,
		UnitsAdded:       in.UnitsAdded,
		ResultingReading: resulting,
		Cost:             in.Cost,
		CreatedAt:        now,
	}
	r := meter.Reading{
		Key:       in.SyntheticKey,
		Timestamp: in.Timestamp,
		Value:     resulting,
		Period:    in.Period,
		CreatedAt: now,
		Synthetic: true,
	}
	return t, r
}

// latestReading returns the reading with the greatest timestamp.
// On equal timestamps the later one in the slice wins.
func latestReading(readings []meter.Reading) *meter.Reading {
	var latest *meter.Reading
	for i := range readings {
		if latest == nil || !readings[i].Timestamp.Before(latest.Timestamp) {
			latest = &readings[i]
		}
	}
	return latest
}

func sortReadings(readings []meter.Reading) {
	sort.SliceStable(readings, func(i, j int) bool {
		if readings[i].Timestamp.Equal(readings[j].Timestamp) {
			return readings[i].ID < readings[j].ID
		}
		return readings[i].Timestamp.Before(readings[j].Timestamp)
	})
}

func sortTopUps(topUps []meter.TopUp) {
	sort.SliceStable(topUps, func(i, j int) bool {
		if topUps[i].Timestamp.Equal(topUps[j].Timestamp) {
			return topUps[i].ID < topUps[j].ID
		}
		return topUps[i].Timestamp.Before(topUps[j].Timestamp)
	})
}

// createdAt keeps an imported creation time and stamps new records with now.
func createdAt(existing, now time.Time) time.Time {
	if existing.IsZero() {
		return now
	}
	return existing
}

// expandHome expands ~ in file paths to the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	return filepath.Join(homeDir, path[2:])
}
