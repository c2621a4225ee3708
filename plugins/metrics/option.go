package metrics

import "github.com/bft-labs/barscan/pkg/scanner"

// WithMetrics returns a scanner option that registers the metrics plugin.
func WithMetrics(cfg Config) scanner.Option {
	return scanner.WithPlugin(New(cfg))
}

// WithDefaultMetrics registers the metrics plugin with default settings and
// no HTTP endpoint.
func WithDefaultMetrics() scanner.Option {
	return WithMetrics(DefaultConfig())
}
