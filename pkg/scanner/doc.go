// Package scanner is the embeddable barcode scanner: one [Scanner] per
// widget instance, all sharing one engine through the process-wide
// lifecycle coordinator.
//
// # Usage
//
//	cfg := scanner.DefaultConfig()
//	cfg.LicenseKey = "your-license"
//	cfg.ScanMode = "continuous"
//	cfg.DecodeMode = scanner.DecodeBoth
//	cfg.Target = "/var/spool/frames"
//
//	s, err := scanner.New(cfg,
//	    scanner.WithLogger(logger),
//	    scanner.WithOutput(capture.OutputFunc(func(text string) { store(text) })),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := s.Start(ctx); err != nil {
//	    // s.View() carries a localized message for the user
//	}
//	defer s.Stop(ctx)
//
// # Recovery
//
// Failures never retry on their own. A completed single-shot scan or a
// failed device open is recovered with [Scanner.Restart]. When the engine
// refuses a license change after loading, every instance reports
// [engine.ErrLicenseChangeRequiresReload] until one calls [Scanner.Reload]
// with a fresh engine.
//
// # Plugins
//
// Plugins are initialized by Start and shut down by Stop. See
// plugins/configwatcher and plugins/metrics.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
//
// See version.go for version constants that can be used programmatically.
package scanner
