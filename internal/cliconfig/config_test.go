package cliconfig

import (
	"testing"
	"time"

	"github.com/bft-labs/barscan/pkg/engine"
	"github.com/bft-labs/barscan/pkg/scanner"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("BARSCAN_LICENSE_KEY", "")
	cfg := DefaultConfig()

	if cfg.ScanMode != "single" {
		t.Errorf("ScanMode = %v, want single", cfg.ScanMode)
	}
	if cfg.DecodeMode != "scan" {
		t.Errorf("DecodeMode = %v, want scan", cfg.DecodeMode)
	}
	if cfg.LoadTimeout != 60*time.Second {
		t.Errorf("LoadTimeout = %v, want 60s", cfg.LoadTimeout)
	}
	if cfg.HTTPTimeout != 30*time.Second {
		t.Errorf("HTTPTimeout = %v, want 30s", cfg.HTTPTimeout)
	}
	if cfg.LicenseKey != "" {
		t.Errorf("LicenseKey = %v, want empty", cfg.LicenseKey)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults error = %v", err)
	}
}

func TestDefaultConfig_LicenseFromEnv(t *testing.T) {
	t.Setenv("BARSCAN_LICENSE_KEY", "env-license")
	if got := DefaultConfig().LicenseKey; got != "env-license" {
		t.Errorf("LicenseKey = %v, want env-license", got)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"continuous both", func(c *Config) { c.ScanMode = "continuous"; c.DecodeMode = "both" }, false},
		{"single symbology", func(c *Config) { c.BarcodeTypes = "EAN_13" }, false},
		{"bad scan mode", func(c *Config) { c.ScanMode = "burst" }, true},
		{"bad decode mode", func(c *Config) { c.DecodeMode = "camera" }, true},
		{"bad symbology", func(c *Config) { c.BarcodeTypes = "EAN13" }, true},
		{"zero load timeout", func(c *Config) { c.LoadTimeout = 0 }, true},
		{"negative http timeout", func(c *Config) { c.HTTPTimeout = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Scanner(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LicenseKey = "key"
	cfg.EngineResourcePath = "/opt/engine"
	cfg.DecodeMode = "both"
	cfg.FramesDir = "/var/spool/frames"
	cfg.Language = "chinese"

	sc := cfg.Scanner()
	if sc.LicenseKey != "key" || sc.EngineResourcePath != "/opt/engine" {
		t.Errorf("Scanner() = %+v", sc)
	}
	if sc.DecodeMode != scanner.DecodeBoth {
		t.Errorf("DecodeMode = %v, want both", sc.DecodeMode)
	}
	if sc.Target != engine.Target("/var/spool/frames") {
		t.Errorf("Target = %v", sc.Target)
	}
	if sc.Language != "chinese" || sc.LoadTimeout != cfg.LoadTimeout {
		t.Errorf("Scanner() = %+v", sc)
	}
}

func TestConfig_Masked(t *testing.T) {
	cfg := Config{LicenseKey: "secret"}
	if got := cfg.Masked().LicenseKey; got != "*****" {
		t.Errorf("Masked().LicenseKey = %v", got)
	}
	if cfg.LicenseKey != "secret" {
		t.Error("Masked() modified the receiver")
	}
	if got := (Config{}).Masked().LicenseKey; got != "" {
		t.Errorf("Masked() of empty key = %v", got)
	}
}

func TestLogger(t *testing.T) {
	if _, err := Logger("debug"); err != nil {
		t.Errorf("Logger(debug) error = %v", err)
	}
	if _, err := Logger(""); err != nil {
		t.Errorf("Logger(\"\") error = %v", err)
	}
	if _, err := Logger("loud"); err == nil {
		t.Error("Logger(loud) error = nil")
	}
}
