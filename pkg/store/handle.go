package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/0xmhha/meter-tracker/pkg/logger"
	"github.com/0xmhha/meter-tracker/pkg/meter"
)

// Status is the connection state of a Handle.
type Status int

const (
	// Unavailable means the backend could not be opened or was closed.
	Unavailable Status = iota

	// Connected means operations are forwarded to the backend.
	Connected
)

// String implements fmt.Stringer.
func (s Status) String() string {
	if s == Connected {
		return "connected"
	}
	return "unavailable"
}

// Handle is the store value passed to everything that reads or writes data.
//
// A Handle is never nil and never panics. When the backend is unavailable
// every operation returns an error wrapping ErrUnavailable, which callers
// treat as a recoverable, degraded state.
type Handle struct {
	mu      sync.RWMutex
	store   Store
	status  Status
	backend Backend
	cause   error
}

// Open opens the configured backend.
//
// Open does not fail: if the backend cannot be opened the returned handle is
// Unavailable and Err reports why.
func Open(ctx context.Context, cfg Config, log logger.Logger) *Handle {
	backend := Backend(strings.ToLower(string(cfg.Backend)))
	if backend == "" {
		backend = BackendBolt
	}

	var (
		s   Store
		err error
	)

	switch backend {
	case BackendBolt:
		s, err = OpenBolt(cfg, log)
	case BackendPostgres:
		s, err = OpenPostgres(ctx, cfg, log)
	case BackendMemory:
		s = NewMemory()
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}

	if err != nil {
		log.Warn("store unavailable, continuing in degraded mode",
			"backend", backend,
			"error", err)
		return &Handle{status: Unavailable, backend: backend, cause: err}
	}

	return &Handle{store: s, status: Connected, backend: backend}
}

// NewHandle wraps an already opened store as a connected handle.
func NewHandle(s Store, backend Backend) *Handle {
	if s == nil {
		return UnavailableHandle(errors.New("nil store"))
	}
	return &Handle{store: s, status: Connected, backend: backend}
}

// UnavailableHandle returns a handle whose operations all fail with ErrUnavailable.
func UnavailableHandle(cause error) *Handle {
	return &Handle{status: Unavailable, cause: cause}
}

// Status reports whether the handle is connected.
func (h *Handle) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

// Backend returns the backend name.
func (h *Handle) Backend() Backend {
	return h.backend
}

// Err returns why the handle is unavailable, or nil when connected.
func (h *Handle) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.unavailableErr()
}

// unavailableErr returns the unavailability error, or nil when connected.
// The caller must hold h.mu.
func (h *Handle) unavailableErr() error {
	if h.status == Connected {
		return nil
	}
	if h.cause == nil {
		return ErrUnavailable
	}
	if errors.Is(h.cause, ErrUnavailable) {
		return h.cause
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, h.cause)
}

// with runs fn against the backend while holding the read lock, so Close
// waits for in-flight operations and no operation starts on a closed backend.
func (h *Handle) with(fn func(s Store) error) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if err := h.unavailableErr(); err != nil {
		return err
	}
	return fn(h.store)
}

// ListReadings implements Store.ListReadings.
func (h *Handle) ListReadings(ctx context.Context) ([]meter.Reading, error) {
	var out []meter.Reading
	err := h.with(func(s Store) error {
		var err error
		out, err = s.ListReadings(ctx)
		return err
	})
	return out, err
}

// ListTopUps implements Store.ListTopUps.
func (h *Handle) ListTopUps(ctx context.Context) ([]meter.TopUp, error) {
	var out []meter.TopUp
	err := h.with(func(s Store) error {
		var err error
		out, err = s.ListTopUps(ctx)
		return err
	})
	return out, err
}

// AppendReading implements Store.AppendReading.
func (h *Handle) AppendReading(ctx context.Context, r meter.Reading) (meter.Reading, error) {
	var out meter.Reading
	err := h.with(func(s Store) error {
		var err error
		out, err = s.AppendReading(ctx, r)
		return err
	})
	return out, err
}

// AppendTopUp implements Store.AppendTopUp.
func (h *Handle) AppendTopUp(ctx context.Context, in NewTopUp) (meter.TopUp, error) {
	var out meter.TopUp
	err := h.with(func(s Store) error {
		var err error
		out, err = s.AppendTopUp(ctx, in)
		return err
	})
	return out, err
}

// MigrateBatch implements Store.MigrateBatch.
func (h *Handle) MigrateBatch(ctx context.Context, readings []meter.Reading, topUps []meter.TopUp) (MigrationResult, error) {
	var out MigrationResult
	err := h.with(func(s Store) error {
		var err error
		out, err = s.MigrateBatch(ctx, readings, topUps)
		return err
	})
	return out, err
}

// Close closes the backend. The handle is Unavailable afterwards.
// Close blocks until operations already running on the backend return.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.status != Connected {
		return nil
	}
	h.status = Unavailable
	h.cause = errors.New("store closed")
	return h.store.Close()
}
