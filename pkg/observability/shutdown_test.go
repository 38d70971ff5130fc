package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *Logger {
	return NewLogger(DebugLevel, FormatJSON, &bytes.Buffer{})
}

func TestNewShutdownManager(t *testing.T) {
	sm := NewShutdownManager(nil, 0)
	assert.Equal(t, 30*time.Second, sm.shutdownTimeout)
	assert.NotNil(t, sm.logger)

	sm.RegisterShutdownFunc("nil", nil)
	assert.Empty(t, sm.shutdownFuncs)
}

func TestShutdown_ReverseOrder(t *testing.T) {
	sm := NewShutdownManager(testLogger(), time.Second)

	var order []string
	for _, name := range []string{"store", "tracer", "scheduler"} {
		sm.RegisterShutdownFunc(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	require.NoError(t, sm.Shutdown(context.Background()))
	assert.Equal(t, []string{"scheduler", "tracer", "store"}, order)

	order = nil
	require.NoError(t, sm.Shutdown(context.Background()))
	assert.Empty(t, order, "functions run once")
}

func TestShutdown_CollectsErrors(t *testing.T) {
	sm := NewShutdownManager(testLogger(), time.Second)
	ran := false
	sm.RegisterShutdownFunc("first", func(context.Context) error { ran = true; return nil })
	sm.RegisterShutdownFunc("second", func(context.Context) error { return errors.New("locked") })

	err := sm.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "second: locked")
	assert.True(t, ran, "later functions still run after a failure")
}

func TestShutdown_Timeout(t *testing.T) {
	sm := NewShutdownManager(testLogger(), 20*time.Millisecond)
	release := make(chan struct{})
	defer close(release)
	sm.RegisterShutdownFunc("slow", func(context.Context) error {
		<-release
		return nil
	})

	err := sm.Shutdown(context.Background())
	assert.EqualError(t, err, "shutdown timeout reached")
}
