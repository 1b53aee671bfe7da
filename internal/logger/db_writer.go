package logger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go-crm-sync/internal/config"
	"go-crm-sync/internal/database"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap/zapcore"
)

// LogEntry holds the data passed from Zap to our worker
type LogEntry struct {
	Level        zapcore.Level
	Message      string
	Caller       string // Function name
	TenantID     string
	ConnectionID string
	RunID        string
	Error        string
	Time         time.Time
}

// AppLog is the stored form of a LogEntry.
type AppLog struct {
	AppID        string    `bson:"app_id"`
	Level        string    `bson:"level"`
	LevelID      int       `bson:"level_id"`
	Message      string    `bson:"message"`
	Caller       string    `bson:"caller,omitempty"`
	TenantID     string    `bson:"tenant_id,omitempty"`
	ConnectionID string    `bson:"connection_id,omitempty"`
	RunID        string    `bson:"run_id,omitempty"`
	Error        string    `bson:"error,omitempty"`
	CreatedAt    time.Time `bson:"created_at"`
}

// DBLogWriter handles the async writing
type DBLogWriter struct {
	collection *mongo.Collection
	logChan    chan LogEntry
	appId      string
	minLevel   zapcore.Level
	done       chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewDBLogWriter initializes the worker. Entries below Info are not stored.
func NewDBLogWriter(mongodb *database.MongodbDB, cfg *config.Config) *DBLogWriter {
	writer := &DBLogWriter{
		collection: mongodb.DB.Collection("app_logs"),
		logChan:    make(chan LogEntry, 1000), // Buffer 1000 logs
		appId:      cfg.AppId,
		minLevel:   zapcore.InfoLevel,
		done:       make(chan struct{}),
	}

	// Start the background worker immediately
	go writer.processLogs()

	return writer
}

// AddLog is called by our Zap hook
func (w *DBLogWriter) AddLog(entry LogEntry) {
	if entry.Level < w.minLevel {
		return
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}
	select {
	case w.logChan <- entry:
	default:
		// Channel full: drop rather than block the caller
		fmt.Println("DB Log Channel Full! Dropping log:", entry.Message)
	}
}

// Close stops accepting entries and waits until the buffered ones are
// written. Entries added afterwards are dropped.
func (w *DBLogWriter) Close(ctx context.Context) error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.logChan)
	}
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *DBLogWriter) processLogs() {
	defer close(w.done)
	for entry := range w.logChan {
		// Errors are ignored to keep the app running
		_, _ = w.collection.InsertOne(context.Background(), w.record(entry))
	}
}

func (w *DBLogWriter) record(entry LogEntry) AppLog {
	created := entry.Time
	if created.IsZero() {
		created = time.Now()
	}
	return AppLog{
		AppID:        w.appId,
		Level:        entry.Level.String(),
		LevelID:      mapLevelToInt(entry.Level),
		Message:      entry.Message,
		Caller:       entry.Caller,
		TenantID:     entry.TenantID,
		ConnectionID: entry.ConnectionID,
		RunID:        entry.RunID,
		Error:        entry.Error,
		CreatedAt:    created.UTC(),
	}
}

func mapLevelToInt(l zapcore.Level) int {
	switch l {
	case zapcore.DebugLevel:
		return 10
	case zapcore.InfoLevel:
		return 20
	case zapcore.WarnLevel:
		return 30
	case zapcore.ErrorLevel:
		return 40
	case zapcore.FatalLevel:
		return 50
	default:
		return 20
	}
}
