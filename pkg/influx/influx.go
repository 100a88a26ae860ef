// Package influx writes daily usage series to InfluxDB v2.
//
// Each day becomes one point in the daily_usage measurement at local
// midnight, with morning, evening, night and total usage as float fields.
// Re-writing a day overwrites the same series point, so pushing the whole
// breakdown after every import is safe.
package influx

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"

	"github.com/0xmhha/meter-tracker/pkg/logger"
	"github.com/0xmhha/meter-tracker/pkg/meter"
	"github.com/0xmhha/meter-tracker/pkg/usage"
)

const (
	// Measurement is the measurement daily points are written to.
	Measurement = "daily_usage"

	tagPeriodSource = "period_source"
	sourceDaily     = "daily"

	defaultTimeout = 10 * time.Second
)

// Config contains the connection settings.
type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string

	// Timeout bounds each HTTP request. Default: 10s.
	Timeout time.Duration
}

// pointWriter is the part of api.WriteAPIBlocking the sink needs.
type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Sink pushes daily usage to one bucket.
type Sink struct {
	client influxdb2.Client
	writer pointWriter
	loc    *time.Location
	log    logger.Logger
}

// New connects to InfluxDB and verifies the server with a health check.
//
// Parameters:
//   - ctx: Bounds the health check
//   - cfg: Connection settings
//   - loc: Zone whose midnight timestamps the daily points (nil = time.Local)
//   - log: Logger for write results
//
// Returns ErrNotConfigured or ErrUnhealthy (wrapped) on failure.
func New(ctx context.Context, cfg Config, loc *time.Location, log logger.Logger) (*Sink, error) {
	if cfg.URL == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	opts := influxdb2.DefaultOptions().
		SetHTTPRequestTimeout(uint(cfg.Timeout / time.Second))
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnhealthy, err)
	}
	if health.Status != domain.HealthCheckStatusPass {
		client.Close()
		return nil, fmt.Errorf("%w: status %s", ErrUnhealthy, health.Status)
	}

	log.Info("connected to influx", "url", cfg.URL, "bucket", cfg.Bucket)

	return newSink(client, client.WriteAPIBlocking(cfg.Org, cfg.Bucket), loc, log), nil
}

func newSink(client influxdb2.Client, w pointWriter, loc *time.Location, log logger.Logger) *Sink {
	if loc == nil {
		loc = time.Local
	}
	return &Sink{
		client: client,
		writer: w,
		loc:    loc,
		log:    log,
	}
}

// WriteDaily writes one point per day.
//
// Returns the number of points written. Nothing is written when any date
// fails to parse.
func (s *Sink) WriteDaily(ctx context.Context, days []usage.DailyUsage) (int, error) {
	points, err := DailyPoints(days, s.loc)
	if err != nil {
		return 0, err
	}
	if len(points) == 0 {
		return 0, nil
	}

	if err := s.writer.WritePoint(ctx, points...); err != nil {
		return 0, fmt.Errorf("failed to write daily usage: %w", err)
	}

	s.log.Debug("daily usage written", "points", len(points))
	return len(points), nil
}

// Close releases the client.
func (s *Sink) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

// DailyPoints converts a daily breakdown into points stamped at local
// midnight in loc.
func DailyPoints(days []usage.DailyUsage, loc *time.Location) ([]*write.Point, error) {
	if loc == nil {
		loc = time.Local
	}

	points := make([]*write.Point, 0, len(days))
	for _, d := range days {
		midnight, err := time.ParseInLocation(meter.DateLayout, d.Date, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDate, d.Date)
		}

		points = append(points, write.NewPoint(
			Measurement,
			map[string]string{tagPeriodSource: sourceDaily},
			map[string]interface{}{
				"morning": d.MorningUsage.Float64(),
				"evening": d.EveningUsage.Float64(),
				"night":   d.NightUsage.Float64(),
				"total":   d.Total.Float64(),
			},
			midnight,
		))
	}
	return points, nil
}
