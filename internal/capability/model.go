package capability

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/heimdex/heimdex-captions/internal/logging"
)

// ErrClosed is returned by Get after Close.
var ErrClosed = errors.New("capability closed")

// Status describes the lifecycle state of one capability model.
type Status struct {
	Name        string    `json:"name"`
	Initialized bool      `json:"initialized"`
	Ready       bool      `json:"ready"`
	Error       string    `json:"error,omitempty"`
	ReadyAt     time.Time `json:"ready_at,omitzero"`
}

// Lifecycle is the part of a Model that owners manage without knowing T.
type Lifecycle interface {
	Init(ctx context.Context) error
	Close() error
	Status() Status
}

// Model lazily opens a backend at most once. A failed open is remembered and
// returned by every later Get; the backend is not retried.
type Model[T any] struct {
	name    string
	open    func(ctx context.Context) (T, error)
	release func(T) error
	logger  *slog.Logger

	mu       sync.Mutex
	opened   bool
	closed   bool
	backend  T
	err      error
	openedAt time.Time
}

// NewModel wraps open. release may be nil.
func NewModel[T any](name string, open func(ctx context.Context) (T, error), release func(T) error, logger *slog.Logger) *Model[T] {
	return &Model[T]{
		name:    name,
		open:    open,
		release: release,
		logger:  logging.WithComponent(logging.OrDiscard(logger), "capability"),
	}
}

// Init opens the backend if it has not been opened yet.
func (m *Model[T]) Init(ctx context.Context) error {
	_, err := m.Get(ctx)
	return err
}

// Get returns the backend, opening it on first use.
func (m *Model[T]) Get(ctx context.Context) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero T
	if m.closed {
		return zero, ErrClosed
	}
	if m.opened {
		return m.backend, m.err
	}

	start := time.Now()
	backend, err := m.open(ctx)
	m.opened = true
	if err != nil {
		m.err = err
		m.logger.Warn("capability unavailable", "capability", m.name, "error", err)
		return zero, err
	}

	m.backend = backend
	m.openedAt = time.Now()
	m.logger.Info("capability ready",
		"capability", m.name,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return backend, nil
}

// Close releases the backend. Calling Close more than once is a no-op.
func (m *Model[T]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	if !m.opened || m.err != nil || m.release == nil {
		return nil
	}
	return m.release(m.backend)
}

func (m *Model[T]) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Status{
		Name:        m.name,
		Initialized: m.opened,
		Ready:       m.opened && m.err == nil && !m.closed,
		ReadyAt:     m.openedAt,
	}
	if m.err != nil {
		s.Error = m.err.Error()
	}
	return s
}
