package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/0xmhha/meter-tracker/pkg/kafka"
	"github.com/0xmhha/meter-tracker/pkg/logger"
	"github.com/0xmhha/meter-tracker/pkg/parser"
)

// consumeCommand imports records from a Kafka topic.
type consumeCommand struct {
	brokers    []string
	topic      string
	group      string
	configPath string
}

func newConsumeCommand(configPath string, args []string) (*consumeCommand, error) {
	fs := flag.NewFlagSet("consume", flag.ContinueOnError)
	brokers := fs.String("brokers", "", "comma-separated broker addresses (default: kafka.brokers)")
	topic := fs.String("topic", "", "topic to consume (default: kafka.topic)")
	group := fs.String("group", "", "consumer group id (default: kafka.group_id)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var list []string
	for _, b := range strings.Split(*brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			list = append(list, b)
		}
	}

	return &consumeCommand{
		brokers:    list,
		topic:      *topic,
		group:      *group,
		configPath: configPath,
	}, nil
}

// Execute consumes until interrupted.
func (c *consumeCommand) Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, c.configPath, appOptions{withMetrics: true})
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.requireStore(); err != nil {
		return err
	}
	a.serveMetrics(ctx)

	cfg := c.kafkaConfig(a)
	log := logger.Component(a.log, "kafka")

	consumer, err := kafka.New(cfg, a.tracker, parser.New(logger.Component(a.log, "parser")), log)
	if err != nil {
		return fmt.Errorf("failed to start kafka consumer: %w", err)
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			log.Error("failed to close kafka consumer", "error", err)
		}
	}()

	return consumer.Run(ctx)
}

// kafkaConfig merges flags over the kafka config section.
func (c *consumeCommand) kafkaConfig(a *app) kafka.Config {
	kc := a.cfg.Kafka
	cfg := kafka.Config{
		Brokers:       kc.Brokers,
		Topic:         kc.Topic,
		GroupID:       kc.GroupID,
		Version:       kc.Version,
		BatchSize:     kc.BatchSize,
		FlushInterval: kc.FlushInterval,
	}
	if len(c.brokers) > 0 {
		cfg.Brokers = c.brokers
	}
	if c.topic != "" {
		cfg.Topic = c.topic
	}
	if c.group != "" {
		cfg.GroupID = c.group
	}
	return cfg
}
