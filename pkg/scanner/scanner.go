package scanner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/bft-labs/barscan/internal/adapters/wasm"
	"github.com/bft-labs/barscan/pkg/capture"
	"github.com/bft-labs/barscan/pkg/decode"
	"github.com/bft-labs/barscan/pkg/engine"
	"github.com/bft-labs/barscan/pkg/i18n"
	"github.com/bft-labs/barscan/pkg/lifecycle"
	"github.com/bft-labs/barscan/pkg/log"
	"github.com/bft-labs/barscan/pkg/symbology"
)

// Scanner errors.
var (
	ErrAlreadyStarted  = errors.New("scanner: already started")
	ErrNotStarted      = errors.New("scanner: not started")
	ErrImagesDisabled  = errors.New("scanner: image decoding is disabled by decode mode")
	ErrNoEngineFactory = errors.New("scanner: no engine factory to build a fresh engine")
)

// Scanner is one widget instance: it brings the shared engine up, runs a
// capture session and decodes uploaded images. Safe for concurrent use.
type Scanner struct {
	cfg       Config
	mode      capture.Mode
	formats   symbology.Mask
	logger    log.Logger
	events    handlers
	output    capture.OutputSlot
	action    capture.Action
	plugins   []Plugin
	newEngine EngineFactory
	coord     *lifecycle.Coordinator
	decoder   *decode.Decoder
	tr        *i18n.Translator

	// pluginMu serializes plugin initialization and shutdown. Acquired
	// before mu.
	pluginMu sync.Mutex

	mu          sync.Mutex
	started     bool
	session     *capture.Session
	unsubscribe func()
	decoding    bool
	lastErr     error
}

// New creates a scanner instance. Nothing is loaded until Start.
//
// Unless WithCoordinator is given, the process-wide coordinator is used,
// and created from the engine factory if no instance has done so yet.
func New(cfg Config, opts ...Option) (*Scanner, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := validateModuleVersions(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger := log.OrNoop(o.logger)

	mode, _ := capture.ParseMode(cfg.ScanMode)
	formats, _ := symbology.ParseMask(cfg.BarcodeTypes)

	newEngine := o.newEngine
	if newEngine == nil {
		newEngine = defaultEngineFactory(cfg, logger)
	}

	coord := o.coordinator
	if coord == nil {
		coord = lifecycle.Default()
	}
	if coord == nil {
		eng, err := newEngine()
		if err != nil {
			return nil, fmt.Errorf("create engine: %w", err)
		}
		coord = lifecycle.InstallDefault(lifecycle.New(eng, lifecycle.Config{LoadTimeout: cfg.LoadTimeout}, logger))
	}

	return &Scanner{
		cfg:       cfg,
		mode:      mode,
		formats:   formats,
		logger:    logger,
		events:    handlers(o.handlers),
		output:    o.output,
		action:    o.action,
		plugins:   o.plugins,
		newEngine: newEngine,
		coord:     coord,
		decoder:   decode.NewDecoder(coord, logger),
		tr:        i18n.Default().Translator(cfg.Language, cfg.Texts),
	}, nil
}

func defaultEngineFactory(cfg Config, logger log.Logger) EngineFactory {
	return func() (engine.Engine, error) {
		return wasm.New(wasm.Config{HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout}}, logger), nil
	}
}

// Coordinator returns the engine coordinator this scanner uses.
func (s *Scanner) Coordinator() *lifecycle.Coordinator {
	return s.coord
}

// Text returns a display text in the configured language.
func (s *Scanner) Text(key i18n.Key) string {
	return s.tr.Text(key)
}

// SessionStatus returns the capture session status, or StatusIdle when no
// session exists.
func (s *Scanner) SessionStatus() capture.Status {
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()
	if sess == nil {
		return capture.StatusIdle
	}
	return sess.Status()
}

// Start initializes plugins, makes the engine ready and, when live capture
// is enabled, opens a capture session. With PreloadOnly only the engine is
// loaded.
//
// A failed engine load or device open leaves the scanner started: use View
// to show the error and Restart or Reload to recover.
func (s *Scanner) Start(ctx context.Context) error {
	// Plugins run under pluginMu only: their goroutines may call back into
	// the scanner and take s.mu.
	s.pluginMu.Lock()
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		s.pluginMu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.lastErr = nil
	s.unsubscribe = s.coord.Subscribe(phaseEmitter{s.events})

	pluginCfg := PluginConfig{
		Coordinator:        s.coord,
		LicenseKey:         s.cfg.LicenseKey,
		EngineResourcePath: s.cfg.EngineResourcePath,
		Logger:             s.logger,
		SetLicenseKey:      s.SetLicenseKey,
	}
	s.mu.Unlock()

	for i, p := range s.plugins {
		if err := initPlugin(ctx, p, pluginCfg); err != nil {
			s.logger.Error("plugin initialization failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			s.shutdownPlugins(s.plugins[:i])
			s.pluginMu.Unlock()

			s.mu.Lock()
			s.started = false
			unsubscribe := s.unsubscribe
			s.unsubscribe = nil
			s.mu.Unlock()
			if unsubscribe != nil {
				unsubscribe()
			}
			return fmt.Errorf("plugin %s: %w", p.Name(), err)
		}
		s.logger.Info("plugin initialized", log.String("plugin", p.Name()))
	}
	s.pluginMu.Unlock()

	return s.activate(ctx)
}

// activate makes the engine ready and opens capture if enabled.
func (s *Scanner) activate(ctx context.Context) error {
	license, resourcePath := s.credentials()
	if err := s.coord.EnsureReady(ctx, license, resourcePath); err != nil {
		s.recordErr("ensure ready", err)
		return err
	}
	if s.cfg.PreloadOnly {
		s.logger.Info("engine preloaded")
		return nil
	}
	if !s.cfg.DecodeMode.Camera() {
		return nil
	}
	return s.openSession(ctx)
}

func (s *Scanner) openSession(ctx context.Context) error {
	sess := capture.NewSession(s.coord, capture.Config{
		Mode:    s.mode,
		Formats: s.formats,
		Target:  s.cfg.Target,
		Output:  s.output,
		Action:  s.action,
	}, s.logger, sessionObserver{s})

	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	old := s.session
	s.session = sess
	s.mu.Unlock()

	if old != nil {
		if err := old.Close(ctx); err != nil {
			s.logger.Warn("failed to close previous session", log.Err(err))
		}
	}
	if err := sess.Start(ctx); err != nil {
		s.recordErr("start capture", err)
		return err
	}
	return nil
}

// Restart recovers after a completed single-shot scan or a failure. It
// retries the engine load if needed and reopens the capture device.
func (s *Scanner) Restart(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.lastErr = nil
	sess := s.session
	license, resourcePath := s.cfg.LicenseKey, s.cfg.EngineResourcePath
	s.mu.Unlock()

	if err := s.coord.EnsureReady(ctx, license, resourcePath); err != nil {
		s.recordErr("ensure ready", err)
		return err
	}
	if s.cfg.PreloadOnly || !s.cfg.DecodeMode.Camera() {
		return nil
	}
	if sess == nil || sess.Status() == capture.StatusClosed {
		return s.openSession(ctx)
	}
	if err := sess.Restart(ctx); err != nil {
		s.recordErr("restart capture", err)
		return err
	}
	return nil
}

// Reload replaces the process-wide engine with a fresh one and starts
// again. It is the only remedy for engine.ErrLicenseChangeRequiresReload.
// When eng is nil the configured engine factory builds one.
func (s *Scanner) Reload(ctx context.Context, eng engine.Engine) error {
	if eng == nil {
		var err error
		if eng, err = s.newEngine(); err != nil {
			return fmt.Errorf("reload: %w", err)
		}
	}

	s.mu.Lock()
	sess := s.session
	s.session = nil
	s.mu.Unlock()
	if sess != nil {
		if err := sess.Close(ctx); err != nil {
			s.logger.Warn("failed to close session before reload", log.Err(err))
		}
	}

	s.logger.Info("reloading engine")
	if err := s.coord.Reset(ctx, eng); err != nil {
		if errors.Is(err, lifecycle.ErrLoadInFlight) || errors.Is(err, lifecycle.ErrNoEngine) {
			s.recordErr("reload", err)
			return err
		}
		// The fresh engine is installed; only the old one's teardown failed.
		s.logger.Warn("previous engine teardown failed", log.Err(err))
	}

	s.mu.Lock()
	started := s.started
	s.lastErr = nil
	s.mu.Unlock()
	if !started {
		return nil
	}
	return s.activate(ctx)
}

// SetLicenseKey changes the instance license. A started scanner switches
// the engine right away; if the engine refuses, the error is
// engine.ErrLicenseChangeRequiresReload and Reload is the remedy.
func (s *Scanner) SetLicenseKey(ctx context.Context, license string) error {
	s.mu.Lock()
	s.cfg.LicenseKey = license
	started := s.started
	resourcePath := s.cfg.EngineResourcePath
	s.mu.Unlock()

	if !started {
		return nil
	}
	if err := s.coord.EnsureReady(ctx, license, resourcePath); err != nil {
		s.recordErr("set license", err)
		return err
	}
	return nil
}

func (s *Scanner) credentials() (license, resourcePath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.LicenseKey, s.cfg.EngineResourcePath
}

// Stop closes the capture session and shuts down plugins. The engine stays
// loaded for other instances.
func (s *Scanner) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.started = false
	sess := s.session
	s.session = nil
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	var err error
	if sess != nil {
		err = sess.Close(ctx)
	}

	s.pluginMu.Lock()
	s.shutdownPlugins(s.plugins)
	s.pluginMu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	return err
}

// DecodeImage decodes one uploaded image. On success the text goes to the
// output slot and the action, exactly as a live detection would.
func (s *Scanner) DecodeImage(ctx context.Context, image []byte, contentType string) (string, error) {
	if !s.cfg.DecodeMode.Images() {
		return "", ErrImagesDisabled
	}

	s.mu.Lock()
	s.decoding = true
	s.lastErr = nil
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.decoding = false
		s.mu.Unlock()
	}()

	text, err := s.decoder.Decode(ctx, decode.Request{
		Image:       image,
		ContentType: contentType,
		Formats:     s.formats,
	})
	if err != nil {
		s.recordErr("decode image", err)
		return "", err
	}

	if s.output != nil {
		s.output.SetValue(text)
	}
	if s.action != nil && s.action.CanExecute() {
		s.action.Execute(capture.DetectionEvent{ScannedResult: text})
	}
	s.events.OnDetection(DetectionEvent{Source: SourceImage, Text: text})
	return text, nil
}

func (s *Scanner) recordErr(op string, err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()

	s.logger.Warn("scanner operation failed", log.String("op", op), log.Err(err))
	s.events.OnError(ErrorEvent{Op: op, Err: err})
}

// shutdownPlugins shuts down ps in reverse order. Must be called with
// s.pluginMu held and s.mu not held.
func (s *Scanner) shutdownPlugins(ps []Plugin) {
	ctx := context.Background()
	for i := len(ps) - 1; i >= 0; i-- {
		p := ps[i]
		if err := shutdownPlugin(ctx, p); err != nil {
			s.logger.Error("plugin shutdown failed",
				log.String("plugin", p.Name()),
				log.Err(err))
		} else {
			s.logger.Info("plugin shutdown complete", log.String("plugin", p.Name()))
		}
	}
}

func initPlugin(ctx context.Context, p Plugin, cfg PluginConfig) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during initialization: %v", r)
		}
	}()
	return p.Initialize(ctx, cfg)
}

func shutdownPlugin(ctx context.Context, p Plugin) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during shutdown: %v", r)
		}
	}()
	return p.Shutdown(ctx)
}

// phaseEmitter adapts handlers to lifecycle.EventEmitter.
type phaseEmitter struct {
	events handlers
}

func (e phaseEmitter) OnPhaseChange(previous, current lifecycle.Phase, reason string) {
	e.events.OnPhaseChange(PhaseChangeEvent{Previous: previous, Current: current, Reason: reason})
}

// sessionObserver adapts handlers to capture.Observer.
type sessionObserver struct {
	s *Scanner
}

func (o sessionObserver) OnStatusChange(sessionID string, previous, current capture.Status, err error) {
	o.s.events.OnSessionStatus(SessionStatusEvent{
		SessionID: sessionID,
		Previous:  previous,
		Current:   current,
		Err:       err,
	})
	if err != nil {
		o.s.events.OnError(ErrorEvent{Op: "capture", Err: err})
	}
}

func (o sessionObserver) OnDetection(sessionID string, result engine.Result) {
	o.s.events.OnDetection(DetectionEvent{
		Source:    SourceCapture,
		SessionID: sessionID,
		Text:      result.Text,
		Format:    result.Format,
	})
}

// validateModuleVersions checks that all module versions are compatible.
// Returns an error if any module version is below its minimum compatible version.
func validateModuleVersions() error {
	modules := map[string]struct {
		version    string
		minVersion string
	}{
		"engine":    {engine.Version, engine.MinCompatibleVersion},
		"lifecycle": {lifecycle.Version, lifecycle.MinCompatibleVersion},
		"capture":   {capture.Version, capture.MinCompatibleVersion},
		"decode":    {decode.Version, decode.MinCompatibleVersion},
		"i18n":      {i18n.Version, i18n.MinCompatibleVersion},
		"log":       {log.Version, log.MinCompatibleVersion},
	}

	for name, m := range modules {
		if !isVersionCompatible(m.version, m.minVersion) {
			return fmt.Errorf("module %s version %s is below minimum compatible version %s",
				name, m.version, m.minVersion)
		}
	}

	return nil
}

// isVersionCompatible checks if version >= minVersion using semantic versioning.
// Assumes versions are in format "major.minor.patch".
func isVersionCompatible(version, minVersion string) bool {
	var vMajor, vMinor, vPatch int
	var mMajor, mMinor, mPatch int

	_, _ = fmt.Sscanf(version, "%d.%d.%d", &vMajor, &vMinor, &vPatch)
	_, _ = fmt.Sscanf(minVersion, "%d.%d.%d", &mMajor, &mMinor, &mPatch)

	if vMajor != mMajor {
		return vMajor > mMajor
	}
	if vMinor != mMinor {
		return vMinor > mMinor
	}
	return vPatch >= mPatch
}
