// Package log provides structured protocol logging for the engine.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events: datagrams sent and received, receive-loop state
// changes, and protocol errors. It is separate from operational logging
// (slog) - protocol capture provides a complete machine-readable trace of
// one session for debugging and flight-data analysis.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For analysis: write to binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("session.xlog")
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # File Format
//
// Log files are a CBOR stream of Event records with integer keys, one per
// event, nanosecond timestamps. Reader iterates a file back, optionally
// filtered.
package log
