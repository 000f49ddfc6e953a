// Package logger is docstore's structured logger, a thin wrapper around
// github.com/charmbracelet/log with key/value pairs:
//
//	log := logger.NewLogger(&logger.Config{Level: logger.DebugLevel, JSON: true})
//	log.Error("transaction aborted", "session", id, "error", err)
package logger
