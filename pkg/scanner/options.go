package scanner

import (
	"github.com/bft-labs/barscan/pkg/capture"
	"github.com/bft-labs/barscan/pkg/engine"
	"github.com/bft-labs/barscan/pkg/lifecycle"
	"github.com/bft-labs/barscan/pkg/log"
)

// EngineFactory builds a fresh engine. Used for the process-wide
// coordinator and for Reload.
type EngineFactory func() (engine.Engine, error)

// Option configures optional behavior of a Scanner.
type Option func(*options)

// options holds the optional configuration for a Scanner instance.
type options struct {
	logger      log.Logger
	newEngine   EngineFactory
	coordinator *lifecycle.Coordinator
	output      capture.OutputSlot
	action      capture.Action
	handlers    []EventHandler
	plugins     []Plugin
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEngine uses eng when this instance creates the process-wide
// coordinator. Reload without an explicit engine then fails, since a used
// engine cannot be reloaded; use WithEngineFactory for that.
func WithEngine(eng engine.Engine) Option {
	return func(o *options) {
		used := false
		o.newEngine = func() (engine.Engine, error) {
			if used {
				return nil, ErrNoEngineFactory
			}
			used = true
			return eng, nil
		}
	}
}

// WithEngineFactory sets how engines are built. If not provided, the
// WebAssembly engine is used.
func WithEngineFactory(f EngineFactory) Option {
	return func(o *options) {
		o.newEngine = f
	}
}

// WithCoordinator uses c instead of the process-wide default coordinator.
func WithCoordinator(c *lifecycle.Coordinator) Option {
	return func(o *options) {
		o.coordinator = c
	}
}

// WithOutput sets the slot that receives every decoded text.
func WithOutput(slot capture.OutputSlot) Option {
	return func(o *options) {
		o.output = slot
	}
}

// WithAction sets the callback run after each detection.
func WithAction(action capture.Action) Option {
	return func(o *options) {
		o.action = action
	}
}

// WithEventHandler adds a handler for scanner events. Handlers are called
// synchronously, in registration order, from the goroutine that caused the
// event.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.handlers = append(o.handlers, handler)
	}
}

// WithPlugin registers a plugin to be initialized when the scanner starts.
// Plugins are initialized in registration order and shutdown in reverse order.
// A plugin that also implements EventHandler is registered as a handler too.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
		if h, ok := plugin.(EventHandler); ok {
			o.handlers = append(o.handlers, h)
		}
	}
}
