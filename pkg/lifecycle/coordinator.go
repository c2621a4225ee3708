package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bft-labs/barscan/pkg/engine"
	"github.com/bft-labs/barscan/pkg/log"
)

// loadKey is the singleflight key shared by every runtime load.
const loadKey = "runtime"

// Common lifecycle errors.
var (
	ErrLoadInFlight = errors.New("lifecycle: runtime load in flight")
	ErrNoEngine     = errors.New("lifecycle: engine is required")
)

// Coordinator owns the process-wide engine state.
// All methods are safe for concurrent use.
type Coordinator struct {
	cfg    Config
	logger log.Logger

	mu             sync.Mutex
	eng            engine.Engine
	phase          Phase
	activeLicense  string
	runtimeLoaded  bool
	reloadRequired bool
	lastErr        error
	// stray is closed when a timed-out LoadRuntime call finally returns.
	stray chan struct{}

	group singleflight.Group

	subMu   sync.RWMutex
	subs    map[int]EventEmitter
	nextSub int
}

// transition is a phase change waiting to be emitted outside the lock.
type transition struct {
	from, to Phase
	reason   string
}

// New creates a coordinator for eng in PhaseUninitialized.
func New(eng engine.Engine, cfg Config, logger log.Logger) *Coordinator {
	cfg.SetDefaults()
	return &Coordinator{
		cfg:    cfg,
		logger: log.OrNoop(logger),
		eng:    eng,
		phase:  PhaseUninitialized,
		subs:   map[int]EventEmitter{},
	}
}

// EnsureReady makes the engine ready with the given license, loading the
// runtime if nobody has yet. Empty arguments fall back to the configured
// defaults.
//
// Concurrent callers share one load and observe its outcome. ctx only bounds
// how long this caller waits; the shared load is bounded by Config.LoadTimeout.
func (c *Coordinator) EnsureReady(ctx context.Context, license, resourcePath string) error {
	if license == "" {
		license = c.cfg.DefaultLicense
	}
	if resourcePath == "" {
		resourcePath = c.cfg.DefaultResourcePath
	}

	for {
		c.mu.Lock()
		if c.eng == nil {
			c.mu.Unlock()
			return ErrNoEngine
		}
		if c.reloadRequired {
			err := c.lastErr
			c.mu.Unlock()
			return err
		}
		if c.phase == PhaseReady {
			if c.activeLicense == license {
				c.mu.Unlock()
				return nil
			}
			t, err := c.reassignLocked(license)
			c.mu.Unlock()
			c.emit(t)
			return err
		}
		c.mu.Unlock()

		// Uninitialized, Failed or Loading: start or join the shared load,
		// then re-evaluate since the load may have used another license.
		ch := c.group.DoChan(loadKey, func() (interface{}, error) {
			return nil, c.load(license, resourcePath)
		})
		select {
		case res := <-ch:
			if res.Err != nil {
				return res.Err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// load runs one Loading transition. Only ever called through the singleflight group.
func (c *Coordinator) load(license, resourcePath string) error {
	c.mu.Lock()
	if c.phase == PhaseReady || c.reloadRequired {
		c.mu.Unlock()
		return nil
	}
	eng := c.eng
	c.activeLicense = license
	t := c.setPhaseLocked(PhaseLoading, "runtime load requested")
	c.mu.Unlock()
	c.emit(t)

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.LoadTimeout)
	defer cancel()

	start := time.Now()
	loaded, err := c.initialize(ctx, eng, license, resourcePath)

	c.mu.Lock()
	if loaded {
		c.runtimeLoaded = true
	}
	if err != nil {
		c.lastErr = err
		if errors.Is(err, engine.ErrLicenseChangeRequiresReload) {
			c.reloadRequired = true
		}
		t = c.setPhaseLocked(PhaseFailed, engine.KindOf(err).String())
		c.mu.Unlock()
		c.emit(t)

		c.logger.Error("engine initialization failed",
			log.Err(err),
			log.Duration("elapsed", time.Since(start)),
		)
		return err
	}
	c.lastErr = nil
	c.activeLicense = license
	t = c.setPhaseLocked(PhaseReady, "runtime loaded")
	c.mu.Unlock()
	c.emit(t)

	c.logger.Info("engine ready",
		log.Masked("license", license),
		log.String("resource_path", resourcePath),
		log.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// initialize configures eng and loads its runtime. The returned bool reports
// whether the runtime is loaded, even when err is non-nil.
func (c *Coordinator) initialize(ctx context.Context, eng engine.Engine, license, resourcePath string) (bool, error) {
	// Read through to the engine: another code path may have set a license.
	preset := eng.License()
	switch {
	case preset == "":
		if err := eng.SetLicense(license); err != nil {
			return false, engine.NewError(engine.KindInitializationFailed, "assign license", err)
		}
	case preset == license:
		c.logger.Debug("license already assigned on engine, skipping")
	default:
		c.logger.Warn("engine carries a different license, reassigning after load",
			log.Masked("engine_license", preset),
			log.Masked("license", license),
		)
	}

	if err := eng.SetResourcePath(resourcePath); err != nil {
		return false, engine.NewError(engine.KindInitializationFailed, "set resource path", err)
	}

	if err := c.waitStray(ctx); err != nil {
		return false, err
	}

	if eng.RuntimeLoaded() {
		c.logger.Debug("runtime already loaded, skipping load")
	} else if err := c.loadRuntime(ctx, eng); err != nil {
		return false, err
	}

	if preset != "" && preset != license {
		if err := eng.SetLicense(license); err != nil {
			return true, engine.NewError(engine.KindLicenseChangeRequiresReload,
				"engine refused to replace its preset license", err)
		}
	}
	return true, nil
}

// loadRuntime calls eng.LoadRuntime and enforces the load ceiling even when
// the engine ignores ctx.
func (c *Coordinator) loadRuntime(ctx context.Context, eng engine.Engine) error {
	finished := make(chan struct{})
	result := make(chan error, 1)
	go func() {
		defer close(finished)
		result <- eng.LoadRuntime(ctx)
	}()

	select {
	case err := <-result:
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return c.timedOut(ctx.Err())
		}
		return engine.NewError(engine.KindInitializationFailed, "load runtime", err)
	case <-ctx.Done():
		c.mu.Lock()
		c.stray = finished
		c.mu.Unlock()
		return c.timedOut(ctx.Err())
	}
}

// waitStray blocks until a previously timed-out LoadRuntime returns, so the
// engine never runs two loads at once.
func (c *Coordinator) waitStray(ctx context.Context) error {
	c.mu.Lock()
	stray := c.stray
	c.mu.Unlock()
	if stray == nil {
		return nil
	}

	c.logger.Warn("waiting for previous runtime load to return")
	select {
	case <-stray:
		c.mu.Lock()
		if c.stray == stray {
			c.stray = nil
		}
		c.mu.Unlock()
		return nil
	case <-ctx.Done():
		return c.timedOut(ctx.Err())
	}
}

func (c *Coordinator) timedOut(cause error) error {
	return engine.NewError(engine.KindLoadTimedOut,
		fmt.Sprintf("runtime load exceeded %s", c.cfg.LoadTimeout), cause)
}

// reassignLocked swaps the license on a ready engine.
func (c *Coordinator) reassignLocked(license string) (transition, error) {
	if err := c.eng.SetLicense(license); err != nil {
		e := engine.NewError(engine.KindLicenseChangeRequiresReload,
			"engine refused license change after runtime load", err)
		c.lastErr = e
		c.reloadRequired = true
		c.logger.Error("license change requires reload",
			log.Masked("active_license", c.activeLicense),
			log.Masked("requested_license", license),
		)
		return c.setPhaseLocked(PhaseFailed, "license change requires reload"), e
	}

	c.logger.Info("license reassigned",
		log.Masked("previous_license", c.activeLicense),
		log.Masked("license", license),
	)
	c.activeLicense = license
	return transition{}, nil
}

func (c *Coordinator) setPhaseLocked(p Phase, reason string) transition {
	t := transition{from: c.phase, to: p, reason: reason}
	c.phase = p
	return t
}

// emit notifies subscribers. Must be called without c.mu held.
func (c *Coordinator) emit(t transition) {
	if t.from == t.to {
		return
	}

	c.logger.Info("engine phase transition",
		log.String("from", t.from.String()),
		log.String("to", t.to.String()),
		log.String("reason", t.reason),
	)

	c.subMu.RLock()
	subs := make([]EventEmitter, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	c.subMu.RUnlock()

	for _, s := range subs {
		s.OnPhaseChange(t.from, t.to, t.reason)
	}
}

// Subscribe registers an emitter for phase changes. The returned function
// removes it and is safe to call more than once.
func (c *Coordinator) Subscribe(em EventEmitter) (unsubscribe func()) {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = em
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// ReadyEngine returns the engine when the phase is Ready.
func (c *Coordinator) ReadyEngine() (engine.Engine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseReady {
		return nil, engine.NewError(engine.KindNotReady, "engine phase is "+c.phase.String(), nil)
	}
	return c.eng, nil
}

// Phase returns the current phase.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Snapshot returns a copy of the current engine state.
func (c *Coordinator) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Phase:          c.phase,
		ActiveLicense:  c.activeLicense,
		RuntimeLoaded:  c.runtimeLoaded,
		ReloadRequired: c.reloadRequired,
		Err:            c.lastErr,
	}
}

// Reset discards all engine state and installs eng, which the caller must
// have constructed from scratch. The previous engine is torn down when it
// implements engine.Closer. Reset is refused while a load is in flight.
func (c *Coordinator) Reset(ctx context.Context, eng engine.Engine) error {
	if eng == nil {
		return ErrNoEngine
	}

	c.mu.Lock()
	if c.phase == PhaseLoading {
		c.mu.Unlock()
		return ErrLoadInFlight
	}
	old := c.eng
	c.eng = eng
	c.activeLicense = ""
	c.runtimeLoaded = false
	c.reloadRequired = false
	c.lastErr = nil
	c.stray = nil
	t := c.setPhaseLocked(PhaseUninitialized, "reset")
	c.mu.Unlock()
	c.emit(t)

	if old == nil || old == eng {
		return nil
	}
	if closer, ok := old.(engine.Closer); ok {
		if err := closer.Close(ctx); err != nil {
			c.logger.Warn("previous engine teardown failed", log.Err(err))
			return fmt.Errorf("close previous engine: %w", err)
		}
	}
	return nil
}

var (
	defaultMu          sync.Mutex
	defaultCoordinator *Coordinator
)

// Default returns the process-wide coordinator, or nil if none is installed.
func Default() *Coordinator {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultCoordinator
}

// InstallDefault installs c as the process-wide coordinator unless one is
// already installed, and returns the installed coordinator.
func InstallDefault(c *Coordinator) *Coordinator {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultCoordinator == nil {
		defaultCoordinator = c
	}
	return defaultCoordinator
}
