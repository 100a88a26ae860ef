// Package kafka imports meter records from a Kafka topic.
//
// Every message value is one JSONL record, the same format the file
// importer reads. Records are batched and passed to an importer.Sink; a
// message offset is marked only after its batch was imported, giving
// at-least-once delivery. Re-delivered records are harmless because the
// store skips keys it already holds.
//
// Example usage:
//
//	c, err := kafka.New(kafka.Config{
//	    Brokers: []string{"localhost:9092"},
//	    Topic:   "meter-records",
//	    GroupID: "meter-tracker",
//	}, t, parser.New(log), log)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//	err = c.Run(ctx)
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Shopify/sarama"

	"github.com/0xmhha/meter-tracker/pkg/importer"
	"github.com/0xmhha/meter-tracker/pkg/logger"
	"github.com/0xmhha/meter-tracker/pkg/parser"
)

const (
	// Source labels batches imported from Kafka.
	Source = "kafka"

	defaultBatchSize     = 100
	defaultFlushInterval = time.Second
	defaultRetryDelay    = 2 * time.Second
	cleanupTimeout       = 5 * time.Second
)

// Config contains the consumer group settings.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string

	// Version is the Kafka protocol version. Default: sarama's default.
	Version string

	// BatchSize is the number of records per import. Default: 100.
	BatchSize int

	// FlushInterval imports a partial batch after this long. Default: 1s.
	FlushInterval time.Duration

	// RetryDelay is the pause before rejoining the group after a
	// session error. Default: 2s.
	RetryDelay time.Duration
}

// Consumer reads the topic as part of a consumer group.
type Consumer struct {
	cfg     Config
	group   sarama.ConsumerGroup
	parser  parser.Parser
	batcher *Batcher
	log     logger.Logger
}

// New joins the consumer group.
//
// Parameters:
//   - cfg: Consumer settings, defaults applied to zero values
//   - sink: Receives batches (normally the tracker)
//   - p: Decodes message values
//   - log: Logger
func New(cfg Config, sink importer.Sink, p parser.Parser, log logger.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if cfg.Topic == "" {
		return nil, ErrNoTopic
	}

	saramaCfg, err := newSaramaConfig(cfg)
	if err != nil {
		return nil, err
	}

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to join consumer group: %w", err)
	}

	return newConsumer(cfg, group, sink, p, log), nil
}

func newConsumer(cfg Config, group sarama.ConsumerGroup, sink importer.Sink, p parser.Parser, log logger.Logger) *Consumer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}

	return &Consumer{
		cfg:     cfg,
		group:   group,
		parser:  p,
		batcher: NewBatcher(sink, Source, cfg.BatchSize, log),
		log:     log,
	}
}

func newSaramaConfig(cfg Config) (*sarama.Config, error) {
	sc := sarama.NewConfig()
	sc.Consumer.Return.Errors = true
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	sc.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	sc.Consumer.MaxWaitTime = 250 * time.Millisecond

	if cfg.Version != "" {
		v, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidVersion, cfg.Version)
		}
		sc.Version = v
	}
	return sc, nil
}

// Run consumes until ctx is canceled.
//
// Session errors are logged and the consumer rejoins the group after
// RetryDelay. Returns nil on cancellation.
func (c *Consumer) Run(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			c.log.Warn("kafka consumer error", "error", err)
		}
	}()

	go c.flushLoop(ctx)

	handler := &groupHandler{consumer: c}
	topics := []string{c.cfg.Topic}

	c.log.Info("kafka consumer started", "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		err := c.group.Consume(ctx, topics, handler)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, sarama.ErrClosedConsumerGroup) {
			return nil
		}
		if err != nil {
			c.log.Error("kafka session ended", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.cfg.RetryDelay):
			}
		}
	}
}

// Close leaves the consumer group.
func (c *Consumer) Close() error {
	return c.group.Close()
}

func (c *Consumer) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.batcher.Flush(ctx); err != nil && !errors.Is(err, ErrBatchFailed) {
				c.log.Warn("periodic kafka flush failed", "error", err)
			}
		}
	}
}

// handle decodes one message and buffers it.
func (c *Consumer) handle(ctx context.Context, msg *sarama.ConsumerMessage, mark func()) error {
	rec, err := c.parser.ParseLine(msg.Value)
	if err != nil {
		c.log.Warn("skipping undecodable kafka message",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err)
		c.batcher.Skip(mark)
		return nil
	}
	return c.batcher.Add(ctx, rec, mark)
}

// groupHandler implements sarama.ConsumerGroupHandler.
type groupHandler struct {
	consumer *Consumer
}

func (h *groupHandler) Setup(_ sarama.ConsumerGroupSession) error {
	h.consumer.batcher.Reset()
	return nil
}

// Cleanup runs after the session context is canceled, so the final flush
// gets its own deadline.
func (h *groupHandler) Cleanup(_ sarama.ConsumerGroupSession) error {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	if _, err := h.consumer.batcher.Flush(ctx); err != nil && !errors.Is(err, ErrBatchFailed) {
		h.consumer.log.Warn("final kafka flush failed", "error", err)
	}
	return nil
}

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := session.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			mark := func() { session.MarkMessage(msg, "") }
			if err := h.consumer.handle(ctx, msg, mark); err != nil {
				return err
			}
		}
	}
}
