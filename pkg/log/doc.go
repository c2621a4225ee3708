// Package log provides the logging abstraction used by barscan components.
//
// Components never talk to a logging library directly. They receive a
// [Logger] and emit structured [Field] values; the host decides where the
// output goes. A zerolog adapter and a no-op logger are provided.
//
// # Usage
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//	logger.Info("engine ready", log.Masked("license", key), log.Duration("load", d))
//
// License keys and other secrets should be logged with [Masked] so that only
// a short prefix reaches the log sink.
//
// # Version
//
// Current version: 1.1.0
// Minimum compatible version: 1.0.0
//
// See version.go for version constants that can be used programmatically.
package log
