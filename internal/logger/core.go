package logger

import (
	"go.uber.org/zap/zapcore"
)

// Field keys copied onto stored log entries.
const (
	TenantIDKey     = "tenant_id"
	ConnectionIDKey = "connection_id"
	RunIDKey        = "run_id"
)

// LogSink receives log entries for storage.
type LogSink interface {
	AddLog(entry LogEntry)
}

// DBCore is a Zap Core that forwards every entry to a LogSink and then to
// the wrapped core.
type DBCore struct {
	zapcore.Core
	sink   LogSink
	fields []zapcore.Field
}

// NewDBCore wraps an existing core (like console logger) and adds DB logging
func NewDBCore(baseCore zapcore.Core, sink LogSink) zapcore.Core {
	return &DBCore{
		Core: baseCore,
		sink: sink,
	}
}

// With keeps the fields of child loggers so Write can see tenant and
// connection ids attached through logger.With.
func (c *DBCore) With(fields []zapcore.Field) zapcore.Core {
	combined := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	combined = append(combined, c.fields...)
	combined = append(combined, fields...)
	return &DBCore{
		Core:   c.Core.With(fields),
		sink:   c.sink,
		fields: combined,
	}
}

// Write is called for every log entry
func (c *DBCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	log := LogEntry{
		Level:   entry.Level,
		Message: entry.Message,
		Caller:  entry.Caller.Function,
		Time:    entry.Time,
	}

	for _, fs := range [][]zapcore.Field{c.fields, fields} {
		for _, f := range fs {
			if f.Type != zapcore.StringType {
				if f.Key == "error" {
					if err, ok := f.Interface.(error); ok {
						log.Error = err.Error()
					}
				}
				continue
			}
			switch f.Key {
			case TenantIDKey:
				log.TenantID = f.String
			case ConnectionIDKey:
				log.ConnectionID = f.String
			case RunIDKey:
				log.RunID = f.String
			}
		}
	}

	c.sink.AddLog(log)

	return c.Core.Write(entry, fields)
}

// Check decides if we should log this level
func (c *DBCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}
