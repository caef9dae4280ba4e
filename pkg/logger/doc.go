// Package logger provides a structured logging interface for the crawler
// pipeline.
//
// It wraps the zerolog library with support for multiple log levels,
// structured fields, pretty console output and optional file output, and
// exposes a global instance so any stage of the pipeline can log without
// threading a logger through every call.
//
// Basic usage:
//
//	cfg := &config.LoggingConfig{Level: "info"}
//	err := logger.Initialize(cfg)
//
//	logger.Info("crawl started")
//	logger.WithField("engine", "yandex").Warn("engine unreachable, skipping")
//
//	log := logger.GetLogger().WithField("component", "converter")
//	log.InfoWithFields("batch finished", map[string]interface{}{
//	    "converted": 12,
//	    "failed":    1,
//	})
package logger
