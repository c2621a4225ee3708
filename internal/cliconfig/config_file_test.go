package cliconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestApplyFileConfig(t *testing.T) {
	trueVal := true
	falseVal := false

	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name: "applies all valid config values",
			fileConfig: FileConfig{
				LicenseKey:         "file-key",
				EngineResourcePath: "https://cdn.example.com/engine/",
				Language:           "chinese",
				BarcodeTypes:       "CODE_128",
				ScanMode:           "continuous",
				DecodeMode:         "image",
				FramesDir:          "/frames",
				LoadTimeout:        "90s",
				HTTPTimeout:        "5s",
				MetricsAddr:        "127.0.0.1:9100",
				WatchConfig:        &trueVal,
				LogLevel:           "warn",
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				LicenseKey:         "file-key",
				EngineResourcePath: "https://cdn.example.com/engine/",
				Language:           "chinese",
				BarcodeTypes:       "CODE_128",
				ScanMode:           "continuous",
				DecodeMode:         "image",
				FramesDir:          "/frames",
				LoadTimeout:        90 * time.Second,
				HTTPTimeout:        5 * time.Second,
				MetricsAddr:        "127.0.0.1:9100",
				WatchConfig:        true,
				LogLevel:           "warn",
			},
		},
		{
			name: "respects changed flags",
			fileConfig: FileConfig{
				LicenseKey:  "file-key",
				FramesDir:   "/file/frames",
				WatchConfig: &falseVal,
			},
			changed: map[string]bool{"frames-dir": true, "watch-config": true},
			initial: Config{
				FramesDir:   "/flag/frames",
				WatchConfig: true,
			},
			expected: Config{
				LicenseKey:  "file-key",
				FramesDir:   "/flag/frames", // unchanged because flag was set
				WatchConfig: true,
			},
		},
		{
			name: "empty values keep defaults",
			fileConfig: FileConfig{},
			changed:    map[string]bool{},
			initial:    Config{ScanMode: "single", LoadTimeout: time.Minute},
			expected:   Config{ScanMode: "single", LoadTimeout: time.Minute},
		},
		{
			name:       "returns error for invalid duration",
			fileConfig: FileConfig{HTTPTimeout: "soon"},
			changed:    map[string]bool{},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)

			if tt.wantErr {
				if err == nil {
					t.Error("ApplyFileConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyFileConfig() unexpected error: %v", err)
			}
			if cfg != tt.expected {
				t.Errorf("ApplyFileConfig() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.toml")

	tomlContent := `
license_key = "file-key"
engine_resource_path = "/opt/barscan"
barcode_types = "QR_CODE"
load_timeout = "2m"
watch_config = true
`

	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	fc, err := LoadFileConfig(configPath)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}

	if fc.LicenseKey != "file-key" {
		t.Errorf("LicenseKey = %v, want file-key", fc.LicenseKey)
	}
	if fc.EngineResourcePath != "/opt/barscan" {
		t.Errorf("EngineResourcePath = %v, want /opt/barscan", fc.EngineResourcePath)
	}
	if fc.BarcodeTypes != "QR_CODE" {
		t.Errorf("BarcodeTypes = %v, want QR_CODE", fc.BarcodeTypes)
	}
	if fc.LoadTimeout != "2m" {
		t.Errorf("LoadTimeout = %v, want 2m", fc.LoadTimeout)
	}
	if fc.WatchConfig == nil || !*fc.WatchConfig {
		t.Errorf("WatchConfig = %v, want true", fc.WatchConfig)
	}
}

func TestLoadFileConfig_InvalidFile(t *testing.T) {
	_, err := LoadFileConfig("/nonexistent/path/config.toml")
	if err == nil {
		t.Error("LoadFileConfig() expected error for nonexistent file")
	}
}

func TestLoadFileConfig_InvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.toml")

	invalidContent := `
license_key = "abc"
this is not valid toml
`

	if err := os.WriteFile(configPath, []byte(invalidContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	_, err := LoadFileConfig(configPath)
	if err == nil {
		t.Error("LoadFileConfig() expected error for invalid TOML")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()

	if path != "" && !strings.Contains(path, ".barscan") {
		t.Errorf("DefaultConfigPath() = %v, should contain .barscan", path)
	}
}

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	existingFile := filepath.Join(tmpDir, "exists.txt")

	if err := os.WriteFile(existingFile, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	if !FileExists(existingFile) {
		t.Error("FileExists() = false, want true for existing file")
	}

	if FileExists(filepath.Join(tmpDir, "nonexistent.txt")) {
		t.Error("FileExists() = true, want false for nonexistent file")
	}
}
