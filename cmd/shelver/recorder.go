package main

import (
	"context"
	"log/slog"
	"time"

	"shelver/internal/classifier"
	"shelver/internal/config"
	"shelver/internal/history"
	"shelver/internal/logging"
)

// openRecorder returns a session recorder writing moves to the history
// store, or nil when history is disabled or unavailable.
func openRecorder(cfg *config.Config, logger *slog.Logger) (func(string, classifier.Result), func()) {
	if !cfg.History.Enabled || cfg.History.Path == "" {
		return nil, func() {}
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		logging.WarnWithContext(logger, "history unavailable", "history_open_failed",
			logging.Error(err),
			logging.String(logging.FieldPath, cfg.History.Path),
			logging.String(logging.FieldImpact, "moves from this run are not recorded"),
			logging.String(logging.FieldErrorHint, "check that history.path is writable"),
		)
		return nil, func() {}
	}
	record := func(source string, result classifier.Result) {
		if result.Outcome == classifier.Unclassified {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := store.Record(ctx, history.EntryFromResult(result, source)); err != nil {
			logger.Warn("history record failed", logging.Error(err))
		}
	}
	return record, func() { _ = store.Close() }
}
