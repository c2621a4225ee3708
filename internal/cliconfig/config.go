package cliconfig

import (
	"fmt"
	"os"
	"time"

	"github.com/bft-labs/barscan/pkg/engine"
	"github.com/bft-labs/barscan/pkg/lifecycle"
	"github.com/bft-labs/barscan/pkg/scanner"
)

// Config holds CLI configuration for barscan.
type Config struct {
	LicenseKey         string
	EngineResourcePath string

	Language     string
	BarcodeTypes string
	ScanMode     string
	DecodeMode   string

	FramesDir string

	LoadTimeout time.Duration
	HTTPTimeout time.Duration

	MetricsAddr string
	WatchConfig bool
	LogLevel    string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Language:     scanner.DefaultLanguage,
		BarcodeTypes: scanner.DefaultBarcodeTypes,
		ScanMode:     scanner.DefaultScanMode,
		DecodeMode:   string(scanner.DefaultDecodeMode),
		LoadTimeout:  lifecycle.DefaultLoadTimeout,
		HTTPTimeout:  scanner.DefaultHTTPTimeout,
		LogLevel:     "info",
		LicenseKey:   os.Getenv("BARSCAN_LICENSE_KEY"),
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.LoadTimeout <= 0 {
		return fmt.Errorf("load timeout must be positive")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive")
	}
	sc := c.Scanner()
	return sc.Validate()
}

// Scanner converts the CLI configuration into a scanner configuration.
func (c *Config) Scanner() scanner.Config {
	return scanner.Config{
		LicenseKey:         c.LicenseKey,
		EngineResourcePath: c.EngineResourcePath,
		ScanMode:           c.ScanMode,
		DecodeMode:         scanner.DecodeMode(c.DecodeMode),
		BarcodeTypes:       c.BarcodeTypes,
		Language:           c.Language,
		Target:             engine.Target(c.FramesDir),
		LoadTimeout:        c.LoadTimeout,
		HTTPTimeout:        c.HTTPTimeout,
	}
}

// Masked returns a copy safe to log.
func (c Config) Masked() Config {
	if len(c.LicenseKey) > 0 {
		c.LicenseKey = "*****"
	}
	return c
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
