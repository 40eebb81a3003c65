// Package logger builds the process logger and carries per-request loggers in the context.
package logger

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/httplog/v2"
)

type ContextKey string

const LoggerKey ContextKey = "logger"

// New returns the httplog logger used both for request logging and as the slog default.
func New(service, env, level string, json bool) *httplog.Logger {
	return httplog.NewLogger(service, httplog.Options{
		JSON:             json,
		LogLevel:         ParseLevel(level),
		Concise:          !json,
		RequestHeaders:   false,
		MessageFieldName: "message",
		QuietDownRoutes:  []string{"/health"},
		QuietDownPeriod:  10 * time.Second,
		Tags: map[string]string{
			"env": env,
		},
	})
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// FromContext returns the request logger, or slog.Default outside a request.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, l)
}

// Middleware exposes the httplog request entry to code that only sees a context.
// It must run after httplog.RequestLogger.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithLogger(r.Context(), httplog.LogEntry(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
