package scanner

import (
	"context"

	"github.com/bft-labs/barscan/pkg/lifecycle"
	"github.com/bft-labs/barscan/pkg/log"
)

// Plugin extends a scanner with optional behavior.
// Plugins are initialized by Start and shut down by Stop.
type Plugin interface {
	Name() string
	Initialize(ctx context.Context, cfg PluginConfig) error
	Shutdown(ctx context.Context) error
}

// PluginConfig is handed to plugins on initialization.
type PluginConfig struct {
	// Coordinator is the engine coordinator the scanner uses.
	Coordinator *lifecycle.Coordinator

	LicenseKey         string
	EngineResourcePath string
	Logger             log.Logger

	// SetLicenseKey switches the scanner to another license.
	SetLicenseKey func(ctx context.Context, license string) error
}

// BasePlugin provides a name and no-op lifecycle methods.
type BasePlugin struct {
	name string
}

// NewBasePlugin creates a BasePlugin with the given name.
func NewBasePlugin(name string) BasePlugin {
	return BasePlugin{name: name}
}

func (p BasePlugin) Name() string                                   { return p.name }
func (p BasePlugin) Initialize(context.Context, PluginConfig) error { return nil }
func (p BasePlugin) Shutdown(context.Context) error                 { return nil }
