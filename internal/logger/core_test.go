package logger

import (
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type MockSink struct {
	mu      sync.Mutex
	Entries []LogEntry
}

func (m *MockSink) AddLog(entry LogEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, entry)
}

func TestDBCore_CapturesContextFields(t *testing.T) {
	sink := &MockSink{}
	base := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(discard{}), zapcore.DebugLevel)
	log := zap.New(NewDBCore(base, sink))

	child := log.With(zap.String(TenantIDKey, "t1"), zap.String(ConnectionIDKey, "c1"))
	child.Info("Sync started", zap.String(RunIDKey, "r1"))
	child.Error("Sync failed", zap.Error(errors.New("boom")))

	if len(sink.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(sink.Entries))
	}
	first := sink.Entries[0]
	if first.TenantID != "t1" || first.ConnectionID != "c1" || first.RunID != "r1" {
		t.Errorf("unexpected entry %+v", first)
	}
	if first.Message != "Sync started" || first.Level != zapcore.InfoLevel {
		t.Errorf("unexpected entry %+v", first)
	}
	second := sink.Entries[1]
	if second.Error != "boom" || second.RunID != "" {
		t.Errorf("unexpected entry %+v", second)
	}
}

func TestDBCore_RespectsLevel(t *testing.T) {
	sink := &MockSink{}
	base := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(discard{}), zapcore.WarnLevel)
	log := zap.New(NewDBCore(base, sink))

	log.Info("ignored")
	log.Warn("kept")

	if len(sink.Entries) != 1 || sink.Entries[0].Message != "kept" {
		t.Errorf("unexpected entries %+v", sink.Entries)
	}
}

func TestMapLevelToInt(t *testing.T) {
	tests := []struct {
		level zapcore.Level
		want  int
	}{
		{zapcore.DebugLevel, 10},
		{zapcore.InfoLevel, 20},
		{zapcore.WarnLevel, 30},
		{zapcore.ErrorLevel, 40},
		{zapcore.FatalLevel, 50},
		{zapcore.DPanicLevel, 20},
	}
	for _, tt := range tests {
		if got := mapLevelToInt(tt.level); got != tt.want {
			t.Errorf("mapLevelToInt(%v) = %d, want %d", tt.level, got, tt.want)
		}
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
