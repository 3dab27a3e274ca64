package writer

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// multiHandler wraps multiple handlers to write to multiple destinations
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		// Handlers may run at different levels
		if !handler.Enabled(ctx, r.Level) {
			continue
		}
		if err := handler.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// NewConsoleLogger creates a text logger for commands that have no session
func NewConsoleLogger(console io.Writer, logLevel slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(console, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

// SetupLogger creates a multi-handler logger that writes to both the console and the session log file.
// The session log records at least Info even when the console is quieter.
func SetupLogger(sessionMgr *SessionManager, console io.Writer, logLevel slog.Level) (*slog.Logger, *os.File, error) {
	// Open log file
	logFile, err := os.OpenFile(sessionMgr.GetLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}

	// Create handlers for both console (text) and file (JSON)
	textHandler := slog.NewTextHandler(console, &slog.HandlerOptions{
		Level: logLevel,
	})

	jsonHandler := slog.NewJSONHandler(logFile, &slog.HandlerOptions{
		Level: min(logLevel, slog.LevelInfo),
	})

	// Use multi-handler to write to both
	logger := slog.New(&multiHandler{
		handlers: []slog.Handler{textHandler, jsonHandler},
	})

	return logger, logFile, nil
}
