package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (BARSCAN_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("license-key", os.Getenv("BARSCAN_LICENSE_KEY"), &cfg.LicenseKey)
	s.setString("engine-resource-path", os.Getenv("BARSCAN_ENGINE_RESOURCE_PATH"), &cfg.EngineResourcePath)
	s.setString("language", os.Getenv("BARSCAN_LANGUAGE"), &cfg.Language)
	s.setString("barcode-types", os.Getenv("BARSCAN_BARCODE_TYPES"), &cfg.BarcodeTypes)
	s.setString("scan-mode", os.Getenv("BARSCAN_SCAN_MODE"), &cfg.ScanMode)
	s.setString("decode-mode", os.Getenv("BARSCAN_DECODE_MODE"), &cfg.DecodeMode)
	s.setString("frames-dir", os.Getenv("BARSCAN_FRAMES_DIR"), &cfg.FramesDir)
	s.setString("metrics-addr", os.Getenv("BARSCAN_METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("log-level", os.Getenv("BARSCAN_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("load-timeout", os.Getenv("BARSCAN_LOAD_TIMEOUT"), &cfg.LoadTimeout); err != nil {
		return err
	}
	if err := s.setDuration("http-timeout", os.Getenv("BARSCAN_HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}

	s.setBoolFromString("watch-config", os.Getenv("BARSCAN_WATCH_CONFIG"), &cfg.WatchConfig)

	return nil
}
