// Package log provides structured session logging for DP device traffic.
//
// A session log is a machine-readable trace of everything that happened on
// one device connection: frames, decoded gateway messages, connection state
// changes, DP updates and errors. It is separate from operational logging
// (slog), which the library uses for human-oriented debug output.
//
// # Basic Usage
//
//	// Console output during development
//	logger := log.NewSlogAdapter(slog.Default())
//
//	// Binary file for later analysis with dplog
//	fileLogger, _ := log.NewFileLogger("/var/log/dpcontrol/light.dplog")
//
//	// Both
//	logger := log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fileLogger)
//
// Components stamp their events through a Session, which carries a UUID
// session ID and the device ID.
//
// # File Format
//
// Log files are a stream of CBOR-encoded Event values, conventionally with
// the .dplog extension.
package log
