package meter

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		hour int
		want Period
	}{
		{0, Night},
		{4, Night},
		{5, Morning},
		{11, Morning},
		{12, Evening},
		{19, Evening},
		{20, Night},
		{23, Night},
		{24, Night},
		{29, Morning},
		{-1, Night},
		{-12, Evening},
	}

	for _, tt := range tests {
		if got := Classify(tt.hour); got != tt.want {
			t.Errorf("Classify(%d) = %s, want %s", tt.hour, got, tt.want)
		}
	}
}

func TestClassifyPartitionsDay(t *testing.T) {
	counts := make(map[Period]int)
	for h := 0; h < 24; h++ {
		p := Classify(h)
		require.True(t, p.Valid(), "hour %d", h)
		counts[p]++
	}

	assert.Equal(t, 7, counts[Morning])
	assert.Equal(t, 8, counts[Evening])
	assert.Equal(t, 9, counts[Night])
}

func TestPeriodAt(t *testing.T) {
	lagos := time.FixedZone("WAT", 3600)
	utc := time.Date(2024, 3, 1, 4, 30, 0, 0, time.UTC)

	// 04:30 UTC is night in UTC but 05:30 morning one hour east.
	assert.Equal(t, Night, PeriodAt(utc, time.UTC))
	assert.Equal(t, Morning, PeriodAt(utc, lagos))
	assert.Equal(t, Night, PeriodAt(utc, nil))
}

func TestParsePeriod(t *testing.T) {
	for _, p := range Periods {
		got, err := ParsePeriod(string(p))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}

	for _, bad := range []string{"", "Morning", "afternoon", "nite"} {
		_, err := ParsePeriod(bad)
		assert.True(t, errors.Is(err, ErrInvalidPeriod), "input %q", bad)
	}
}

func TestReadingJSON(t *testing.T) {
	var r Reading
	err := json.Unmarshal([]byte(`{"readingKey":"r1","timestamp":"2024-01-05T07:00:00+01:00","value":120.5,"period":"morning"}`), &r)
	require.NoError(t, err)

	assert.Equal(t, "r1", r.Key)
	assert.Equal(t, Morning, r.Period)
	assert.Equal(t, "120.5", r.Value.String())
	assert.Equal(t, "2024-01-05", r.Date())
	assert.Equal(t, "2024-01", r.Month())

	err = json.Unmarshal([]byte(`{"readingKey":"r2","period":"noon"}`), &r)
	assert.True(t, errors.Is(err, ErrInvalidPeriod))
}
