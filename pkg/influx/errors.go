package influx

import "errors"

var (
	// ErrNotConfigured is returned when URL, Org or Bucket is missing.
	ErrNotConfigured = errors.New("influx sink not configured")

	// ErrUnhealthy is returned when the server fails its health check.
	ErrUnhealthy = errors.New("influx server unhealthy")

	// ErrInvalidDate is returned for a daily row whose date does not parse.
	ErrInvalidDate = errors.New("invalid usage date")
)
