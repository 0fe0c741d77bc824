// Package logger builds the router's structured slog loggers. Production
// logs are JSON, development logs are text, and every record carries the
// environment name.
package logger
