// Package logger provides a structured logging interface for the harvester.
//
// It wraps the zerolog library to provide a clean, easy-to-use API with support for:
// - Multiple log levels (Debug, Info, Warn, Error, Fatal)
// - Structured logging with fields
// - Pretty console output with colors
// - Optional JSON file output alongside the console
// - Context support for request tracing
// - Global logger instance for easy access
//
// Basic Usage:
//
//	import "locscraper/pkg/logger"
//
//	// Initialize the global logger
//	cfg := &config.LoggingConfig{
//	    Level: "info",
//	    File: "/var/log/locscraper.log",
//	}
//	err := logger.Initialize(cfg)
//
//	// Use the global logger
//	logger.Info("Harvest started")
//	logger.WithField("collection", "brady-handy").Info("Fetching page")
//	logger.WithError(err).Error("Failed to download image")
//
// Advanced Usage:
//
//	// Create a logger instance with fields
//	log := logger.GetLogger().
//	    WithField("component", "mirror").
//	    WithField("run_id", "8e5b...")
//
//	// Use structured logging
//	log.InfoWithFields("Asset synced", map[string]interface{}{
//	    "file": "37158u.tif",
//	    "size": 1024000,
//	    "duration": time.Second * 5,
//	})
//
// The logger supports the following configuration options:
// - Level: Log level (debug, info, warn, error, fatal)
// - File: Path to log file (empty for console only)
// - NoColor: Disable ANSI colors on the console
package logger
