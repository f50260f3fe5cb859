// Package shutdown stops the serve command's components in order.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmmcquay/sgfrender/internal/logging"
)

// DefaultTimeout bounds a signal-triggered shutdown.
const DefaultTimeout = 30 * time.Second

type component struct {
	name string
	fn   func(context.Context) error
}

// Manager coordinates graceful shutdown of multiple components.
type Manager struct {
	logger       logging.ContextLogger
	components   []component
	mu           sync.Mutex
	done         chan struct{}
	shutdownOnce sync.Once
	err          error
}

// NewManager creates a new shutdown manager.
func NewManager(logger logging.ContextLogger) *Manager {
	return &Manager{
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Register adds a shutdown function. Functions run one at a time in
// reverse order of registration, so a component registered after its
// dependencies is stopped before them.
func (m *Manager) Register(name string, fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, component{name: name, fn: fn})
}

// HandleSignals returns a context that is cancelled on SIGINT or SIGTERM,
// after which Shutdown runs with DefaultTimeout.
func (m *Manager) HandleSignals(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			m.logger.Info("Received shutdown signal", "signal", sig.String())
			cancel()
			_ = m.Shutdown(DefaultTimeout)
		case <-ctx.Done():
		case <-m.done:
			cancel()
		}
	}()

	return ctx
}

// Shutdown stops every component within timeout and returns their joined
// errors. Only the first call does any work; later calls return the same
// result.
func (m *Manager) Shutdown(timeout time.Duration) error {
	m.shutdownOnce.Do(func() {
		defer close(m.done)

		m.logger.Info("Starting graceful shutdown", "timeout", timeout.String())
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		m.mu.Lock()
		components := make([]component, len(m.components))
		copy(components, m.components)
		m.mu.Unlock()

		var errs []error
		for i := len(components) - 1; i >= 0; i-- {
			c := components[i]
			if ctx.Err() != nil {
				errs = append(errs, fmt.Errorf("%s: skipped: %w", c.name, ctx.Err()))
				continue
			}
			if err := m.stop(ctx, c); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			}
		}

		m.err = errors.Join(errs...)
		if m.err != nil {
			m.logger.Error("Graceful shutdown completed with errors", "errors", len(errs))
		} else {
			m.logger.Info("Graceful shutdown completed successfully")
		}
	})

	<-m.done
	return m.err
}

func (m *Manager) stop(ctx context.Context, c component) error {
	m.logger.Info("Shutting down component", "component", c.name)
	start := time.Now()

	err := c.fn(ctx)
	elapsed := time.Since(start)
	if err != nil {
		m.logger.Error("Failed to shutdown component", "component", c.name, "error", err, "elapsed_ms", elapsed.Milliseconds())
		return err
	}
	m.logger.Debug("Component shutdown complete", "component", c.name, "elapsed_ms", elapsed.Milliseconds())
	return nil
}

// Done returns a channel that's closed when shutdown is complete.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// WaitForShutdown blocks until shutdown is complete.
func (m *Manager) WaitForShutdown() {
	<-m.done
}
