// Package configwatcher watches the barscan config file and applies license
// changes to a running scanner.
//
// Only license_key is applied live. A change the engine refuses after its
// runtime is loaded is reported through Config.OnReloadRequired; the host
// then decides when to call Scanner.Reload.
package configwatcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/bft-labs/barscan/pkg/engine"
	"github.com/bft-labs/barscan/pkg/log"
	"github.com/bft-labs/barscan/pkg/scanner"
)

// Error codes for config file issues.
const (
	ErrCodeFileNotFound     = "FILE_NOT_FOUND"
	ErrCodePermissionDenied = "PERMISSION_DENIED"
	ErrCodeReadError        = "READ_ERROR"
	ErrCodeParseError       = "PARSE_ERROR"
)

// Plugin implements config watching functionality.
type Plugin struct {
	mu sync.Mutex

	// Configuration
	path             string
	debounceDelay    time.Duration
	onReloadRequired func(error)

	// Runtime state
	setLicense  func(ctx context.Context, license string) error
	lastLicense string
	logger      log.Logger
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// Path is the TOML config file to watch.
	Path string

	// DebounceDelay is the delay to wait after a file change before applying.
	// Default: 100 milliseconds
	DebounceDelay time.Duration

	// OnReloadRequired is called when the engine refuses the new license.
	OnReloadRequired func(err error)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DebounceDelay: 100 * time.Millisecond,
	}
}

// fileConfig is the part of the config file the watcher applies.
type fileConfig struct {
	LicenseKey string `toml:"license_key"`
}

// New creates a new config watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}

	return &Plugin{
		path:             cfg.Path,
		debounceDelay:    cfg.DebounceDelay,
		onReloadRequired: cfg.OnReloadRequired,
		logger:           log.NewNoopLogger(),
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Initialize records the scanner's license and starts the watcher.
func (p *Plugin) Initialize(ctx context.Context, cfg scanner.PluginConfig) error {
	p.mu.Lock()
	p.logger = log.OrNoop(cfg.Logger)
	p.lastLicense = cfg.LicenseKey
	p.setLicense = cfg.SetLicenseKey
	if p.setLicense == nil && cfg.Coordinator != nil {
		coord, resourcePath := cfg.Coordinator, cfg.EngineResourcePath
		p.setLicense = func(ctx context.Context, license string) error {
			return coord.EnsureReady(ctx, license, resourcePath)
		}
	}
	p.mu.Unlock()

	if p.path == "" || p.setLicense == nil {
		p.logger.Warn("config watcher disabled: no config path or license target")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// The directory is watched so editors that replace the file are seen.
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return err
	}

	// Plugin context outlives Initialize's ctx.
	watchCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.logger.Info("config watcher plugin initialized", log.String("path", p.path))

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)

	return nil
}

// Shutdown stops the config watcher.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return nil
}

// watchLoop watches for config file changes and applies them once writes
// settle for debounceDelay.
func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	name := filepath.Base(p.path)
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			timer.Reset(p.debounceDelay)

		case <-timer.C:
			p.apply(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("config watcher error", log.Err(err))
		}
	}
}

// apply reads the config file and switches the license if it changed.
func (p *Plugin) apply(ctx context.Context) {
	fc, err := p.readConfig()
	if err != nil {
		p.logger.Warn("config watcher: cannot read config",
			log.String("path", p.path),
			log.String("code", p.errorToCode(err)),
			log.Err(err))
		return
	}

	p.mu.Lock()
	last := p.lastLicense
	p.mu.Unlock()
	if fc.LicenseKey == "" || fc.LicenseKey == last {
		return
	}

	p.logger.Info("config watcher: license changed", log.Masked("license", fc.LicenseKey))
	err = p.setLicense(ctx, fc.LicenseKey)
	switch {
	case err == nil:
		p.mu.Lock()
		p.lastLicense = fc.LicenseKey
		p.mu.Unlock()
	case engine.KindOf(err) == engine.KindLicenseChangeRequiresReload:
		p.logger.Warn("config watcher: license change requires reload")
		if p.onReloadRequired != nil {
			p.onReloadRequired(err)
		}
	case errors.Is(err, context.Canceled):
	default:
		p.logger.Error("config watcher: license change failed", log.Err(err))
	}
}

func (p *Plugin) readConfig() (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

func (p *Plugin) errorToCode(err error) string {
	if os.IsNotExist(err) {
		return ErrCodeFileNotFound
	}
	if os.IsPermission(err) {
		return ErrCodePermissionDenied
	}
	if strings.Contains(err.Error(), "permission denied") {
		return ErrCodePermissionDenied
	}
	var decodeErr *toml.DecodeError
	if errors.As(err, &decodeErr) {
		return ErrCodeParseError
	}
	return ErrCodeReadError
}

// Ensure Plugin implements scanner.Plugin.
var _ scanner.Plugin = (*Plugin)(nil)
