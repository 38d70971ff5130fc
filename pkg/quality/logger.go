package quality

// Logger receives human-readable progress notices from the engine and runner
type Logger interface {
	Info(message string)
	Warning(message string)
	Error(message string)
}

// NopLogger discards everything
type NopLogger struct{}

func (NopLogger) Info(string)    {}
func (NopLogger) Warning(string) {}
func (NopLogger) Error(string)   {}
