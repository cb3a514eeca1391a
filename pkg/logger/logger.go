// Package logger provides production-grade structured logging using Go's standard library
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Level represents log levels
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format represents log output formats
type Format string

const (
	FormatJSON   Format = "json"
	FormatPretty Format = "pretty"
)

// Config holds logging configuration with sensible defaults
type Config struct {
	Level      Level  // Log level (debug, info, warn, error)
	Format     Format // Output format (json, pretty)
	Output     io.Writer
	ShowCaller bool // Include file:line in logs
	TimeFormat string
}

// DefaultConfig returns production-ready logging configuration
func DefaultConfig() Config {
	return Config{
		Level:      LevelInfo,
		Format:     FormatJSON,
		Output:     os.Stdout,
		ShowCaller: false,
		TimeFormat: time.RFC3339,
	}
}

// Logger wraps slog.Logger with domain-specific logging methods
type Logger struct {
	logger *slog.Logger
}

// New creates a new production-ready structured logger
func New(cfg Config) *Logger {
	level := parseLevel(cfg.Level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	var handler slog.Handler

	if cfg.Format == FormatPretty {
		// Use tint for colored output (always enabled, works even when piped)
		timeFormat := cfg.TimeFormat
		if timeFormat == "" {
			timeFormat = "2006-01-02 15:04:05.000"
		}

		handler = tint.NewHandler(output, &tint.Options{
			Level:      level,
			TimeFormat: timeFormat,
			NoColor:    false,
			AddSource:  cfg.ShowCaller,
		})
	} else {
		// JSON format for production
		opts := &slog.HandlerOptions{
			Level: level,
		}
		if cfg.ShowCaller {
			opts.AddSource = true
		}
		handler = slog.NewJSONHandler(output, opts)
	}

	logger := slog.New(handler).With("service", "idlewatch")

	return &Logger{
		logger: logger,
	}
}

// WithComponent creates a child logger with component context for modularity
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		logger: l.logger.With("component", component),
	}
}

// WithUpstream creates a child logger with upstream context
func (l *Logger) WithUpstream(upstream string) *Logger {
	return &Logger{
		logger: l.logger.With("upstream", upstream),
	}
}

// WithFields creates a child logger with arbitrary context fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{
		logger: l.logger.With(args...),
	}
}

// Debug logs debug level message with optional key-value pairs
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.logWithFields(slog.LevelDebug, msg, keysAndValues...)
}

// Info logs info level message with optional key-value pairs
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.logWithFields(slog.LevelInfo, msg, keysAndValues...)
}

// Warn logs warning level message with optional key-value pairs
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.logWithFields(slog.LevelWarn, msg, keysAndValues...)
}

// Error logs error level message with error and optional key-value pairs
func (l *Logger) Error(msg string, err error, keysAndValues ...interface{}) {
	if err != nil {
		keysAndValues = append([]interface{}{"error", err.Error(), "error_type", fmt.Sprintf("%T", err)}, keysAndValues...)
	}
	l.logWithFields(slog.LevelError, msg, keysAndValues...)
}

// Fatal logs fatal level message with error and exits with code 1
func (l *Logger) Fatal(msg string, err error, keysAndValues ...interface{}) {
	if err != nil {
		keysAndValues = append([]interface{}{"error", err.Error(), "error_type", fmt.Sprintf("%T", err)}, keysAndValues...)
	}
	l.logWithFields(slog.LevelError, msg, keysAndValues...)
	os.Exit(1)
}

// ActivityRecorded logs a recorded activity event and the rearmed idle timer
func (l *Logger) ActivityRecorded(source string, threshold time.Duration) {
	l.logger.Info("activity detected, idle timer rearmed", "source", source, "threshold", threshold)
}

// IdleShutdown logs the idle shutdown notice emitted just before the process exits
func (l *Logger) IdleShutdown(idle, threshold time.Duration) {
	l.logger.Info("no activity within threshold, shutting down",
		"idle", idle, "threshold", threshold)
}

// UpstreamCheck logs upstream readiness check attempts with comprehensive context
func (l *Logger) UpstreamCheck(attempt, maxAttempts int, url string, success bool, latency time.Duration, err error) {
	msg := "upstream check succeeded"
	if !success {
		msg = "upstream check failed"
	}
	args := []any{"attempt", attempt, "max_attempts", maxAttempts, "url", url, "success", success, "latency", latency}
	if err != nil {
		args = append(args, "error", err.Error())
	}
	l.logger.Info(msg, args...)
}

// ProbeProgress logs progress of a running URL probe
func (l *Logger) ProbeProgress(checked, total int, found string) {
	args := []any{"checked", checked, "total", total}
	if found != "" {
		args = append(args, "found", found)
	}
	l.logger.Info("probe progress", args...)
}

// ProbeResult logs the outcome of a completed URL probe
func (l *Logger) ProbeResult(found string, checked, total int, duration time.Duration, err error) {
	msg := "probe finished"
	args := []any{"checked", checked, "total", total, "duration", duration}
	if found != "" {
		args = append(args, "found", found)
	}
	if err != nil {
		msg = "probe failed"
		args = append(args, "error", err.Error())
	}
	l.logger.Info(msg, args...)
}

// StartupBanner logs a concise startup message with configuration
func (l *Logger) StartupBanner(version string, config map[string]interface{}) {
	l.logger.Info("idlewatch starting", "version", version, "config", config)
}

// ShutdownBanner logs a clear shutdown message
func (l *Logger) ShutdownBanner(reason string) {
	l.logger.Info("==================================================")
	l.logger.Info("Shutting down idlewatch", "reason", reason)
	l.logger.Info("==================================================")
}

// logWithFields is a helper to add key-value pairs to log events
func (l *Logger) logWithFields(level slog.Level, msg string, keysAndValues ...interface{}) {
	if len(keysAndValues)%2 != 0 {
		l.logger.Warn("odd number of key-value pairs provided to logger", "args_count", len(keysAndValues))
		keysAndValues = append(keysAndValues, "<missing_value>")
	}

	l.logger.Log(context.Background(), level, msg, keysAndValues...)
}

// GetSlog returns the underlying slog.Logger for advanced use cases
func (l *Logger) GetSlog() *slog.Logger {
	return l.logger
}

// parseLevel converts string level to slog.Level
func parseLevel(level Level) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
