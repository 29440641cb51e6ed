package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// Leveled adapts a Logger to the key/value style used by go-retryablehttp's
// LeveledLogger interface.
type Leveled struct {
	Logger Logger
}

func (l Leveled) Error(msg string, keysAndValues ...interface{}) {
	l.Logger.Error(msg, kvFields(keysAndValues)...)
}

func (l Leveled) Info(msg string, keysAndValues ...interface{}) {
	l.Logger.Info(msg, kvFields(keysAndValues)...)
}

func (l Leveled) Debug(msg string, keysAndValues ...interface{}) {
	l.Logger.Debug(msg, kvFields(keysAndValues)...)
}

func (l Leveled) Warn(msg string, keysAndValues ...interface{}) {
	l.Logger.Warn(msg, kvFields(keysAndValues)...)
}

func kvFields(kv []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		if i+1 >= len(kv) {
			fields = append(fields, zap.String("extra", key))
			break
		}
		fields = append(fields, zap.Any(key, kv[i+1]))
	}
	return fields
}
