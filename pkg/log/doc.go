// Package log captures a machine-readable trace of device calls.
//
// It is separate from operational logging (slog): every request, response,
// catalog transition and classified error can be recorded as an Event and
// later replayed with the bravia-log tool.
//
// # Basic Usage
//
//	// Console while developing
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// Binary file for later analysis
//	fl, _ := log.NewFileLogger("/tmp/tv.blog")
//	cfg.ProtocolLogger = fl
//
//	// Both
//	cfg.ProtocolLogger = log.NewMultiLogger(log.NewSlogAdapter(nil), fl)
//
// # File Format
//
// Log files are a plain concatenation of CBOR-encoded events using integer
// map keys. Reader streams them back with an optional Filter.
package log
