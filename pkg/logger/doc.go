// Package logger provides the structured logging interface used across blinksync.
//
// It wraps zerolog with a small interface so that components can be handed a
// logger (or a TestLogger in tests) instead of reaching for a global:
//
//	log := logger.GetLogger().WithField("component", "syncer")
//	log.InfoWithFields("cycle finished", map[string]interface{}{
//	    "downloaded": 3,
//	    "skipped":    120,
//	})
//
// Console output is colourised; when a log file is configured, records are
// written to both the console and the file.
package logger
