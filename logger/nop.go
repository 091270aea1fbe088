package logger

import "context"

// NopLogger discards everything.
type NopLogger struct{}

// NewNopLogger returns a logger that discards all entries.
func NewNopLogger() Logger { return NopLogger{} }

func (NopLogger) Debug(ctx context.Context, msg string, fields map[string]interface{}) {}
func (NopLogger) Info(ctx context.Context, msg string, fields map[string]interface{})  {}
func (NopLogger) Warn(ctx context.Context, msg string, fields map[string]interface{})  {}
func (NopLogger) Error(ctx context.Context, msg string, fields map[string]interface{}) {}
func (n NopLogger) WithField(key string, value interface{}) Logger                  { return n }
func (n NopLogger) WithFields(fields map[string]interface{}) Logger                 { return n }
