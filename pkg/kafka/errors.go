package kafka

import "errors"

var (
	// ErrNoBrokers is returned when no broker address is configured.
	ErrNoBrokers = errors.New("no kafka brokers configured")

	// ErrNoTopic is returned when the topic is empty.
	ErrNoTopic = errors.New("no kafka topic configured")

	// ErrInvalidVersion is returned for an unparsable protocol version.
	ErrInvalidVersion = errors.New("invalid kafka version")

	// ErrBatchFailed is returned by Add after a flush failed. The
	// consumer session has to restart so the unmarked messages are
	// delivered again.
	ErrBatchFailed = errors.New("previous batch failed to import")
)
