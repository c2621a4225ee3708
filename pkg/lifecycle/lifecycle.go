package lifecycle

import "time"

// Phase is the engine's process-wide lifecycle phase.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseLoading
	PhaseReady
	PhaseFailed
)

// String returns a human-readable representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "Uninitialized"
	case PhaseLoading:
		return "Loading"
	case PhaseReady:
		return "Ready"
	case PhaseFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// EventEmitter is called when the engine phase changes.
// Calls are made outside the coordinator lock, in transition order per caller.
type EventEmitter interface {
	OnPhaseChange(previous, current Phase, reason string)
}

// State is a point-in-time copy of the engine state.
type State struct {
	Phase         Phase
	ActiveLicense string
	RuntimeLoaded bool
	// ReloadRequired is set after the engine refused a license change.
	ReloadRequired bool
	// Err is the error of the last failed transition, nil otherwise.
	Err error
}

// Built-in fallbacks used when the caller leaves license or resource path empty.
const (
	DefaultLicense      = "DLS2eyJvcmdhbml6YXRpb25JRCI6IjIwMDAwMSJ9"
	DefaultResourcePath = "https://unpkg.com/dynamsoft-javascript-barcode@9.6.42/dist/"
)

// DefaultLoadTimeout bounds a single runtime load.
const DefaultLoadTimeout = 60 * time.Second

// Config holds coordinator settings.
type Config struct {
	// DefaultLicense replaces an empty license argument.
	DefaultLicense string

	// DefaultResourcePath replaces an empty resource path argument.
	DefaultResourcePath string

	// LoadTimeout is the ceiling for one runtime load.
	// Default: 60 seconds
	LoadTimeout time.Duration
}

// DefaultConfig returns a Config with the built-in fallbacks.
func DefaultConfig() Config {
	return Config{
		DefaultLicense:      DefaultLicense,
		DefaultResourcePath: DefaultResourcePath,
		LoadTimeout:         DefaultLoadTimeout,
	}
}

// SetDefaults fills zero fields with their defaults.
func (c *Config) SetDefaults() {
	if c.DefaultLicense == "" {
		c.DefaultLicense = DefaultLicense
	}
	if c.DefaultResourcePath == "" {
		c.DefaultResourcePath = DefaultResourcePath
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = DefaultLoadTimeout
	}
}
