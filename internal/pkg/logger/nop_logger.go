package logger

// NopLogger discards all output. Useful for tests and optional components.
type NopLogger struct{}

func NewNopLogger() ILogger {
	return &NopLogger{}
}

func (n *NopLogger) Debug(module, message string, details map[string]interface{}) {}
func (n *NopLogger) Info(module, message string, details map[string]interface{})  {}
func (n *NopLogger) Warn(module, message string, details map[string]interface{})  {}
func (n *NopLogger) Error(module, message string, details map[string]interface{}) {}
func (n *NopLogger) Sync() error                                                  { return nil }
