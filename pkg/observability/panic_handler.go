package observability

import (
	"fmt"
	"runtime/debug"
)

// RecoverPanic recovers from a panic and logs it with its stack. Call it
// deferred at the top of background goroutines such as watch and schedule
// triggers, where one bad run must not take the process down:
//
//	go func() {
//		defer observability.RecoverPanic(logger, "scheduled run")
//		// ...
//	}()
//
// The panic is not re-raised.
func RecoverPanic(logger *Logger, where string) {
	if r := recover(); r != nil {
		logPanic(logger, where, r)
	}
}

// RecoverPanicWithCallback is RecoverPanic followed by callback, which only
// runs when a panic was recovered
func RecoverPanicWithCallback(logger *Logger, where string, callback func(err error)) {
	if r := recover(); r != nil {
		logPanic(logger, where, r)
		if callback != nil {
			callback(MustRecover(r))
		}
	}
}

// MustRecover converts a recovered value into an error, nil when r is nil
func MustRecover(r interface{}) error {
	if r != nil {
		return fmt.Errorf("panic: %v", r)
	}
	return nil
}

func logPanic(logger *Logger, where string, r interface{}) {
	logger.WithFields(map[string]interface{}{
		"panic":   fmt.Sprint(r),
		"stack":   string(debug.Stack()),
		"context": where,
	}).Error("PANIC recovered")
}
