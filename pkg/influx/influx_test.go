package influx

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/meter-tracker/pkg/logger"
	"github.com/0xmhha/meter-tracker/pkg/units"
	"github.com/0xmhha/meter-tracker/pkg/usage"
)

type recordingWriter struct {
	points []*write.Point
	err    error
}

func (w *recordingWriter) WritePoint(_ context.Context, points ...*write.Point) error {
	if w.err != nil {
		return w.err
	}
	w.points = append(w.points, points...)
	return nil
}

func sampleDays() []usage.DailyUsage {
	return []usage.DailyUsage{
		{
			Date:         "2024-01-02",
			MorningUsage: units.MustParse("5"),
			EveningUsage: units.MustParse("10.5"),
			NightUsage:   units.Zero(),
			Total:        units.MustParse("15.5"),
		},
		{
			Date:  "2024-01-03",
			Total: units.MustParse("2"),
		},
	}
}

func TestDailyPoints(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)

	points, err := DailyPoints(sampleDays(), loc)
	require.NoError(t, err)
	require.Len(t, points, 2)

	p := points[0]
	assert.Equal(t, Measurement, p.Name())
	assert.True(t, p.Time().Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, loc)))

	line := write.PointToLineProtocol(p, time.Second)
	assert.True(t, strings.HasPrefix(line, "daily_usage,period_source=daily "), line)
	for _, field := range []string{"morning=5", "evening=10.5", "night=0", "total=15.5"} {
		assert.Contains(t, line, field)
	}
}

func TestDailyPointsInvalidDate(t *testing.T) {
	_, err := DailyPoints([]usage.DailyUsage{{Date: "02/01/2024"}}, time.UTC)
	if !errors.Is(err, ErrInvalidDate) {
		t.Errorf("DailyPoints() error = %v, want ErrInvalidDate", err)
	}
}

func TestDailyPointsEmpty(t *testing.T) {
	points, err := DailyPoints(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestWriteDaily(t *testing.T) {
	w := &recordingWriter{}
	s := newSink(nil, w, time.UTC, logger.Noop())
	defer s.Close()

	n, err := s.WriteDaily(context.Background(), sampleDays())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, w.points, 2)
}

func TestWriteDailyError(t *testing.T) {
	w := &recordingWriter{err: errors.New("connection refused")}
	s := newSink(nil, w, time.UTC, logger.Noop())

	n, err := s.WriteDaily(context.Background(), sampleDays())
	assert.Error(t, err)
	assert.Zero(t, n)
}

func TestWriteDailyNothingToWrite(t *testing.T) {
	w := &recordingWriter{err: errors.New("must not be called")}
	s := newSink(nil, w, time.UTC, logger.Noop())

	n, err := s.WriteDaily(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNewNotConfigured(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"empty", Config{}},
		{"missing org", Config{URL: "http://localhost:8086", Bucket: "meter"}},
		{"missing bucket", Config{URL: "http://localhost:8086", Org: "home"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.cfg, nil, logger.Noop())
			if !errors.Is(err, ErrNotConfigured) {
				t.Errorf("New() error = %v, want ErrNotConfigured", err)
			}
		})
	}
}
