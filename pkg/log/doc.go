// Package log provides structured protocol logging for the device.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at multiple layers (transport, wire, service).
// It is separate from operational logging (slog): protocol capture provides
// a complete machine-readable trace of every frame and command.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For capture: write to binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/kinetic/device.klog")
//
//	// Both
//	cfg.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
//   - Transport: frame sizes and (truncated) message bytes (FrameEvent)
//   - Wire: decoded commands with type, sequence and status (MessageEvent)
//   - Service: connection state changes (StateChangeEvent)
//   - Errors at any layer (ErrorEventData)
//
// Frame events never include the value blob, so stored data and firmware
// images do not end up in capture files.
//
// # File Format
//
// Capture files are a sequence of CBOR-encoded events with the .klog
// extension. Reader iterates over them with optional filtering.
package log
