package scanner

import (
	"errors"
	"fmt"
	"time"

	"github.com/bft-labs/barscan/pkg/capture"
	"github.com/bft-labs/barscan/pkg/engine"
	"github.com/bft-labs/barscan/pkg/i18n"
	"github.com/bft-labs/barscan/pkg/lifecycle"
	"github.com/bft-labs/barscan/pkg/symbology"
)

// DecodeMode selects which input paths an instance offers.
type DecodeMode string

const (
	// DecodeScan enables live capture only.
	DecodeScan DecodeMode = "scan"
	// DecodeImage enables still-image decoding only.
	DecodeImage DecodeMode = "image"
	// DecodeBoth enables both.
	DecodeBoth DecodeMode = "both"
)

// Camera reports whether live capture is enabled.
func (m DecodeMode) Camera() bool { return m == DecodeScan || m == DecodeBoth }

// Images reports whether still-image decoding is enabled.
func (m DecodeMode) Images() bool { return m == DecodeImage || m == DecodeBoth }

// Default configuration values.
const (
	DefaultScanMode     = "single"
	DefaultDecodeMode   = DecodeScan
	DefaultBarcodeTypes = "all"
	DefaultLanguage     = "english"
	DefaultHTTPTimeout  = 30 * time.Second
)

// Configuration errors.
var (
	ErrInvalidDecodeMode = errors.New("scanner: decode mode must be scan, image or both")
	ErrInvalidTimeout    = errors.New("scanner: timeouts must not be negative")
)

// Config holds the configuration of one scanner instance.
type Config struct {
	// LicenseKey is the engine license. Empty uses the built-in trial license.
	LicenseKey string

	// EngineResourcePath is where the engine runtime is loaded from.
	// Empty uses the built-in network location.
	EngineResourcePath string

	// ScanMode is "single" or "continuous".
	// Default: "single"
	ScanMode string

	// DecodeMode selects live capture, still images, or both.
	// Default: DecodeScan
	DecodeMode DecodeMode

	// BarcodeTypes is "all" or one symbology name such as "QR_CODE".
	// Default: "all"
	BarcodeTypes string

	// Language selects the display texts ("english", "chinese" or a BCP 47 tag).
	// Default: "english"
	Language string

	// PreloadOnly makes Start load the engine and do nothing else.
	PreloadOnly bool

	// Target is where capture devices are bound.
	Target engine.Target

	// LoadTimeout bounds the engine runtime load when this instance creates
	// the process-wide coordinator.
	// Default: 60 seconds
	LoadTimeout time.Duration

	// HTTPTimeout applies to runtime downloads by the default engine.
	// Default: 30 seconds
	HTTPTimeout time.Duration

	// Texts overrides display texts per key.
	Texts map[i18n.Key]string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ScanMode:     DefaultScanMode,
		DecodeMode:   DefaultDecodeMode,
		BarcodeTypes: DefaultBarcodeTypes,
		Language:     DefaultLanguage,
		LoadTimeout:  lifecycle.DefaultLoadTimeout,
		HTTPTimeout:  DefaultHTTPTimeout,
	}
}

// SetDefaults fills zero fields with their defaults.
func (c *Config) SetDefaults() {
	if c.ScanMode == "" {
		c.ScanMode = DefaultScanMode
	}
	if c.DecodeMode == "" {
		c.DecodeMode = DefaultDecodeMode
	}
	if c.BarcodeTypes == "" {
		c.BarcodeTypes = DefaultBarcodeTypes
	}
	if c.Language == "" {
		c.Language = DefaultLanguage
	}
	if c.LoadTimeout == 0 {
		c.LoadTimeout = lifecycle.DefaultLoadTimeout
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if _, err := capture.ParseMode(c.ScanMode); err != nil {
		return err
	}
	switch c.DecodeMode {
	case DecodeScan, DecodeImage, DecodeBoth:
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidDecodeMode, c.DecodeMode)
	}
	if _, err := symbology.ParseMask(c.BarcodeTypes); err != nil {
		return fmt.Errorf("scanner: barcode types: %w", err)
	}
	if c.LoadTimeout < 0 || c.HTTPTimeout < 0 {
		return ErrInvalidTimeout
	}
	return nil
}
