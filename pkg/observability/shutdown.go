package observability

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ShutdownFunc is a function to call during shutdown
type ShutdownFunc func(context.Context) error

// ShutdownManager releases long-lived resources (report store, trace
// exporters, schedulers) once the process is asked to stop
type ShutdownManager struct {
	logger          *Logger
	shutdownFuncs   []namedShutdown
	shutdownTimeout time.Duration
	mu              sync.Mutex
}

type namedShutdown struct {
	name string
	fn   ShutdownFunc
}

// NewShutdownManager creates a new shutdown manager
func NewShutdownManager(logger *Logger, timeout time.Duration) *ShutdownManager {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = NewLogger(InfoLevel, FormatText, nil)
	}
	return &ShutdownManager{
		logger:          logger,
		shutdownTimeout: timeout,
	}
}

// RegisterShutdownFunc registers a function to call during shutdown. Nil
// functions are ignored.
func (sm *ShutdownManager) RegisterShutdownFunc(name string, fn ShutdownFunc) {
	if fn == nil {
		return
	}
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.shutdownFuncs = append(sm.shutdownFuncs, namedShutdown{name: name, fn: fn})
}

// Shutdown runs the registered functions in reverse registration order,
// bounded by the shutdown timeout
func (sm *ShutdownManager) Shutdown(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, sm.shutdownTimeout)
	defer cancel()

	sm.mu.Lock()
	funcs := make([]namedShutdown, len(sm.shutdownFuncs))
	copy(funcs, sm.shutdownFuncs)
	sm.shutdownFuncs = nil
	sm.mu.Unlock()

	done := make(chan []error, 1)
	go func() {
		var errs []error
		for i := len(funcs) - 1; i >= 0; i-- {
			f := funcs[i]
			if err := f.fn(ctx); err != nil {
				sm.logger.WithError(err).Errorf("Shutdown of %s failed", f.name)
				errs = append(errs, fmt.Errorf("%s: %w", f.name, err))
				continue
			}
			sm.logger.Debugf("Shutdown of %s complete", f.name)
		}
		done <- errs
	}()

	select {
	case errs := <-done:
		if len(errs) > 0 {
			return fmt.Errorf("shutdown completed with %d errors: %v", len(errs), errs)
		}
		return nil
	case <-ctx.Done():
		sm.logger.Warn("Shutdown timeout reached, forcing shutdown")
		return fmt.Errorf("shutdown timeout reached")
	}
}
