// Package logger provides the structured logging interface used across forumscraper.
//
// It wraps zerolog with a small interface so components can be handed a
// logger (or a NewNopLogger / NewTestLogger in tests) instead of reaching for
// a package global.
//
//	log := logger.GetLogger().WithField("component", "downloader")
//	log.InfoWithFields("Image saved", map[string]interface{}{
//	    "path": "example/threads/p1_9f86d081.jpg",
//	    "size": 20480,
//	})
//
// Console output is colored and written to stderr. Setting logging.file adds
// a JSON file sink next to the console.
package logger
