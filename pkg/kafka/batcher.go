package kafka

import (
	"context"
	"sync"

	"github.com/0xmhha/meter-tracker/pkg/importer"
	"github.com/0xmhha/meter-tracker/pkg/ingest"
	"github.com/0xmhha/meter-tracker/pkg/logger"
	"github.com/0xmhha/meter-tracker/pkg/parser"
	"github.com/0xmhha/meter-tracker/pkg/tracker"
)

// Batcher collects decoded records and hands them to the sink in batches.
//
// Each record carries a mark callback that acknowledges its message. Marks
// run only after the batch holding the record was imported, so a failed
// import leaves the messages uncommitted.
type Batcher struct {
	sink   importer.Sink
	source string
	size   int
	log    logger.Logger

	mu      sync.Mutex
	batch   ingest.Batch
	marks   []func()
	failure error
}

// NewBatcher creates a batcher that flushes every size records.
func NewBatcher(sink importer.Sink, source string, size int, log logger.Logger) *Batcher {
	if size <= 0 {
		size = defaultBatchSize
	}
	return &Batcher{
		sink:   sink,
		source: source,
		size:   size,
		log:    log,
	}
}

// Add buffers rec and flushes when the batch is full.
//
// Returns ErrBatchFailed while a previous flush failure has not been
// cleared with Reset.
func (b *Batcher) Add(ctx context.Context, rec *parser.Record, mark func()) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failure != nil {
		return ErrBatchFailed
	}

	switch rec.Type {
	case parser.TypeReading:
		b.batch.Readings = append(b.batch.Readings, *rec.Reading)
	case parser.TypeTopUp:
		b.batch.TopUps = append(b.batch.TopUps, *rec.TopUp)
	}
	if mark != nil {
		b.marks = append(b.marks, mark)
	}

	if b.batch.Len() >= b.size {
		_, err := b.flushLocked(ctx)
		return err
	}
	return nil
}

// Skip acknowledges a message that carries no importable record. It is
// deferred behind the buffered records so offsets never overtake them.
func (b *Batcher) Skip(mark func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failure != nil || mark == nil {
		return
	}
	if b.batch.Len() == 0 {
		mark()
		return
	}
	b.marks = append(b.marks, mark)
}

// Flush imports whatever is buffered.
func (b *Batcher) Flush(ctx context.Context) (tracker.ImportResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failure != nil {
		return tracker.ImportResult{}, ErrBatchFailed
	}
	return b.flushLocked(ctx)
}

// Reset drops buffered records and clears a flush failure. Called when a
// new consumer session starts and redelivers from the committed offset.
func (b *Batcher) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.batch = ingest.Batch{}
	b.marks = nil
	b.failure = nil
}

// Pending returns the number of buffered records.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.batch.Len()
}

func (b *Batcher) flushLocked(ctx context.Context) (tracker.ImportResult, error) {
	if b.batch.Len() == 0 {
		for _, mark := range b.marks {
			mark()
		}
		b.marks = nil
		return tracker.ImportResult{}, nil
	}

	batch, marks := b.batch, b.marks
	b.batch = ingest.Batch{}
	b.marks = nil

	res, err := b.sink.Import(ctx, b.source, batch)
	if err != nil {
		b.failure = err
		b.log.Error("kafka batch import failed",
			"records", batch.Len(),
			"error", err)
		return res, err
	}

	for _, mark := range marks {
		mark()
	}

	b.log.Info("kafka batch imported",
		"records", batch.Len(),
		"inserted", res.Migration.Inserted(),
		"rejected", len(res.Validation.Rejected))
	return res, nil
}
