package fastpoint

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with fastpoint-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithCollection adds a collection field to the logger.
func (l *Logger) WithCollection(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("collection", name),
	}
}

// WithModel adds slot and model fields to the logger.
func (l *Logger) WithModel(slot, model string) *Logger {
	return &Logger{
		Logger: l.Logger.With("slot", slot, "model", model),
	}
}

// LogAdd logs an ingestion operation.
func (l *Logger) LogAdd(ctx context.Context, collection string, points int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "add failed",
			"collection", collection,
			"points", points,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "add completed",
			"collection", collection,
			"points", points,
		)
	}
}

// LogQuery logs a single query.
func (l *Logger) LogQuery(ctx context.Context, collection string, hybrid bool, results int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed",
			"collection", collection,
			"hybrid", hybrid,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "query completed",
			"collection", collection,
			"hybrid", hybrid,
			"results", results,
		)
	}
}

// LogQueryBatch logs a batched query.
func (l *Logger) LogQueryBatch(ctx context.Context, collection string, queries int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query batch failed",
			"collection", collection,
			"queries", queries,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "query batch completed",
			"collection", collection,
			"queries", queries,
		)
	}
}

// LogCollectionCreated logs the auto-creation of a missing collection.
func (l *Logger) LogCollectionCreated(ctx context.Context, collection string, denseFields, sparseFields int) {
	l.InfoContext(ctx, "collection created",
		"collection", collection,
		"dense_fields", denseFields,
		"sparse_fields", sparseFields,
	)
}
