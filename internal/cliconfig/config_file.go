package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	LicenseKey         string `toml:"license_key"`
	EngineResourcePath string `toml:"engine_resource_path"`
	Language           string `toml:"language"`
	BarcodeTypes       string `toml:"barcode_types"`
	ScanMode           string `toml:"scan_mode"`
	DecodeMode         string `toml:"decode_mode"`
	FramesDir          string `toml:"frames_dir"`
	LoadTimeout        string `toml:"load_timeout"`
	HTTPTimeout        string `toml:"http_timeout"`
	MetricsAddr        string `toml:"metrics_addr"`
	WatchConfig        *bool  `toml:"watch_config"`
	LogLevel           string `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.barscan/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".barscan", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("license-key", fc.LicenseKey, &cfg.LicenseKey)
	s.setString("engine-resource-path", fc.EngineResourcePath, &cfg.EngineResourcePath)
	s.setString("language", fc.Language, &cfg.Language)
	s.setString("barcode-types", fc.BarcodeTypes, &cfg.BarcodeTypes)
	s.setString("scan-mode", fc.ScanMode, &cfg.ScanMode)
	s.setString("decode-mode", fc.DecodeMode, &cfg.DecodeMode)
	s.setString("frames-dir", fc.FramesDir, &cfg.FramesDir)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	if err := s.setDuration("load-timeout", fc.LoadTimeout, &cfg.LoadTimeout); err != nil {
		return err
	}
	if err := s.setDuration("http-timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}

	s.setBool("watch-config", fc.WatchConfig, &cfg.WatchConfig)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
