// Package metrics exposes Prometheus instrumentation for the tracker.
//
// A nil *Recorder is valid and records nothing, so callers never need to
// check whether metrics are enabled.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/0xmhha/meter-tracker/pkg/logger"
)

const (
	metricPrefix = "meter_tracker_"

	resultSuccess = "success"
	resultError   = "error"
)

// Recorder holds the tracker's collectors.
type Recorder struct {
	records       *prometheus.CounterVec
	importRecords *prometheus.CounterVec
	importBatches *prometheus.CounterVec
	degradedReads *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	storeUp       prometheus.Gauge
}

// NewRecorder creates the collectors and registers them with reg.
//
// Parameters:
//   - reg: Registry to register with (prometheus.NewRegistry() in tests)
//
// Panics if the collectors are already registered with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "records_total",
				Help: "Readings and top-ups recorded by kind and result",
			},
			[]string{"kind", "result"},
		),
		importRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "import_records_total",
				Help: "Imported records by kind and outcome (inserted, skipped, rejected)",
			},
			[]string{"kind", "outcome"},
		),
		importBatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "import_batches_total",
				Help: "Import batches by source and result",
			},
			[]string{"source", "result"},
		),
		degradedReads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "degraded_reads_total",
				Help: "Reads served empty because the store was unavailable",
			},
			[]string{"operation"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "operation_latency_seconds",
				Help:    "Tracker operation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "result"},
		),
		storeUp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "store_up",
				Help: "1 when the store is connected, 0 when unavailable",
			},
		),
	}

	reg.MustRegister(
		r.records,
		r.importRecords,
		r.importBatches,
		r.degradedReads,
		r.latency,
		r.storeUp,
	)

	return r
}

// ObserveRecord counts one recorded reading or top-up.
func (r *Recorder) ObserveRecord(kind string, err error) {
	if r == nil {
		return
	}
	r.records.WithLabelValues(kind, result(err)).Inc()
}

// ImportCounts is the per-kind outcome of one import batch.
type ImportCounts struct {
	InsertedReadings int
	InsertedTopUps   int
	SkippedReadings  int
	SkippedTopUps    int
	RejectedReadings int
	RejectedTopUps   int
}

// ObserveImport counts the outcome of one import batch. Record counts are
// only added for batches that committed.
func (r *Recorder) ObserveImport(source string, counts ImportCounts, err error) {
	if r == nil {
		return
	}
	r.importBatches.WithLabelValues(source, result(err)).Inc()
	if err != nil {
		return
	}
	r.importRecords.WithLabelValues("reading", "inserted").Add(float64(counts.InsertedReadings))
	r.importRecords.WithLabelValues("topup", "inserted").Add(float64(counts.InsertedTopUps))
	r.importRecords.WithLabelValues("reading", "skipped").Add(float64(counts.SkippedReadings))
	r.importRecords.WithLabelValues("topup", "skipped").Add(float64(counts.SkippedTopUps))
	r.importRecords.WithLabelValues("reading", "rejected").Add(float64(counts.RejectedReadings))
	r.importRecords.WithLabelValues("topup", "rejected").Add(float64(counts.RejectedTopUps))
}

// ObserveDegraded counts a read answered without the store.
func (r *Recorder) ObserveDegraded(operation string) {
	if r == nil {
		return
	}
	r.degradedReads.WithLabelValues(operation).Inc()
}

// ObserveLatency records how long an operation took.
func (r *Recorder) ObserveLatency(operation string, start time.Time, err error) {
	if r == nil {
		return
	}
	r.latency.WithLabelValues(operation, result(err)).Observe(time.Since(start).Seconds())
}

// SetStoreUp records the store status.
func (r *Recorder) SetStoreUp(up bool) {
	if r == nil {
		return
	}
	if up {
		r.storeUp.Set(1)
	} else {
		r.storeUp.Set(0)
	}
}

// Handler returns the HTTP handler exposing gatherer's metrics.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, log logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics server listening", "addr", addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func result(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}
