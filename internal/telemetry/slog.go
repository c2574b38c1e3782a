package telemetry

import (
	"log/slog"
	"os"
	"strings"
)

// logLevel backs the installed handler so the level can be changed at runtime
// without swapping the logger (used by the config file watcher).
var logLevel = new(slog.LevelVar)

// SetupLogger configures the global slog default logger based on the format
// and level strings read from application configuration.
//
// format: "json"  → JSONHandler (machine readable; recommended for production)
//
//	anything else → TextHandler (human readable; suitable for local development)
//
// level: "debug", "info", "warn", "error" (case-insensitive); defaults to "info".
//
// The configured logger is installed as the default so all slog.Info/Warn/Error
// calls elsewhere in the application automatically use it without needing to
// carry a *slog.Logger in context.
func SetupLogger(format, level string) {
	logLevel.Set(parseLevel(level))

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: logLevel.Level() == slog.LevelDebug, // include file:line only when debugging
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialised", "format", format, "level", logLevel.Level().String())
}

// SetLogLevel changes the level of the already-installed logger. Called from
// the configuration watcher on live reload.
func SetLogLevel(level string) {
	logLevel.Set(parseLevel(level))
	slog.Info("log level changed", "level", logLevel.Level().String())
}

func parseLevel(level string) slog.Level {
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
