package configwatcher

import "github.com/bft-labs/barscan/pkg/scanner"

// WithConfigWatcher returns a scanner Option that enables config file
// watching. License changes in the file are applied to the running scanner.
//
// Usage:
//
//	s, err := scanner.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{
//	        Path: "/etc/barscan/config.toml",
//	        OnReloadRequired: func(err error) { reload <- struct{}{} },
//	    }),
//	)
func WithConfigWatcher(cfg Config) scanner.Option {
	plugin := New(cfg)
	return scanner.WithPlugin(plugin)
}
