package log

// NoopLogger drops every message. The engine and the HTTP adapters fall
// back to it when no logger is configured, so call sites never need a
// nil check.
type NoopLogger struct{}

// NewNoopLogger returns the discard logger.
func NewNoopLogger() *NoopLogger { return &NoopLogger{} }

func (NoopLogger) Debug(string, ...Field) {}
func (NoopLogger) Info(string, ...Field)  {}
func (NoopLogger) Warn(string, ...Field)  {}
func (NoopLogger) Error(string, ...Field) {}
