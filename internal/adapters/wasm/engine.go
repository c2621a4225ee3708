// Package wasm implements engine.Engine on top of a WebAssembly decoding
// payload executed by wazero.
//
// The payload is a WASI reactor module with this export surface:
//
//	memory                         linear memory
//	malloc(size i32) i32           allocate
//	free(ptr i32)                  release
//	set_license(ptr, len i32) i32  0 on success
//	set_formats(mask i32) i32      0 on success
//	decode(ptr, len i32) i64       (out_ptr << 32) | out_len
//
// decode output is newline-separated "format\ttext" records, where format is
// the symbology bit of the read. The host frees the output buffer.
package wasm

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/bft-labs/barscan/internal/adapters/framedir"
	"github.com/bft-labs/barscan/internal/ports"
	"github.com/bft-labs/barscan/pkg/engine"
	"github.com/bft-labs/barscan/pkg/log"
)

// PayloadName is the file fetched from the resource path.
const PayloadName = "barcode-engine.wasm"

// Config holds WebAssembly engine settings.
type Config struct {
	// HTTPClient fetches remote payloads.
	// Default: http.Client with a 30 second timeout
	HTTPClient ports.HTTPClient

	// MemoryLimitPages caps each instance's linear memory (64KiB pages).
	// Default: 512 (32MiB)
	MemoryLimitPages uint32

	// CallTimeout bounds a single call into the payload.
	// Default: 10 seconds
	CallTimeout time.Duration

	// ForgetWindow is how long a capture device suppresses a repeated read
	// of the same text.
	// Default: 3 seconds
	ForgetWindow time.Duration

	// OpenFrames binds a capture target to a frame source.
	// Default: the target is a directory watched with framedir.
	OpenFrames func(target engine.Target) (ports.FrameSource, error)
}

// SetDefaults fills zero fields with their defaults.
func (c *Config) SetDefaults(logger log.Logger) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.MemoryLimitPages == 0 {
		c.MemoryLimitPages = 512
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 10 * time.Second
	}
	if c.ForgetWindow <= 0 {
		c.ForgetWindow = 3 * time.Second
	}
	if c.OpenFrames == nil {
		c.OpenFrames = func(target engine.Target) (ports.FrameSource, error) {
			return framedir.Open(framedir.Config{Dir: string(target)}, logger)
		}
	}
}

// requiredExports lists the payload functions and their parameter counts.
var requiredExports = map[string]int{
	"malloc":      1,
	"free":        1,
	"set_license": 2,
	"set_formats": 1,
	"decode":      2,
}

// Engine is a WebAssembly-backed engine.Engine.
type Engine struct {
	cfg    Config
	logger log.Logger

	mu           sync.Mutex
	license      string
	resourcePath string
	runtime      wazero.Runtime
	compiled     wazero.CompiledModule
	closed       bool
}

// New creates an engine. Nothing is fetched until LoadRuntime.
func New(cfg Config, logger log.Logger) *Engine {
	logger = log.OrNoop(logger)
	cfg.SetDefaults(logger)
	return &Engine{cfg: cfg, logger: logger}
}

// License implements engine.Engine.
func (e *Engine) License() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.license
}

// SetLicense implements engine.Engine. The license is applied to every
// instance at creation, so it cannot change once the runtime is loaded.
func (e *Engine) SetLicense(license string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.compiled != nil && license != e.license {
		return engine.ErrLicenseLocked
	}
	e.license = license
	return nil
}

// SetResourcePath implements engine.Engine.
func (e *Engine) SetResourcePath(path string) error {
	if path == "" {
		return fmt.Errorf("resource path is empty")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resourcePath = path
	return nil
}

// RuntimeLoaded implements engine.Engine.
func (e *Engine) RuntimeLoaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.compiled != nil
}

// LoadRuntime fetches, compiles and verifies the payload.
func (e *Engine) LoadRuntime(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return fmt.Errorf("engine is closed")
	}
	if e.compiled != nil {
		e.mu.Unlock()
		return nil
	}
	location := e.resourcePath
	e.mu.Unlock()

	if location == "" {
		return fmt.Errorf("resource path is not set")
	}

	start := time.Now()
	payload, err := fetchPayload(ctx, e.cfg.HTTPClient, location)
	if err != nil {
		return err
	}

	runtimeConfig := wazero.NewRuntimeConfig().
		WithMemoryLimitPages(e.cfg.MemoryLimitPages).
		WithCloseOnContextDone(true)
	rt := wazero.NewRuntimeWithConfig(ctx, runtimeConfig)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		rt.Close(ctx)
		return fmt.Errorf("instantiate WASI: %w", err)
	}

	compiled, err := rt.CompileModule(ctx, payload)
	if err != nil {
		rt.Close(ctx)
		return fmt.Errorf("compile payload: %w", err)
	}
	if err := verifyExports(compiled); err != nil {
		rt.Close(ctx)
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.compiled != nil {
		rt.Close(ctx)
		if e.closed {
			return fmt.Errorf("engine is closed")
		}
		return nil
	}
	e.runtime = rt
	e.compiled = compiled

	e.logger.Info("engine runtime loaded",
		log.String("source", location),
		log.Int("bytes", len(payload)),
		log.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// verifyExports checks the payload against the export surface in the
// package documentation.
func verifyExports(compiled wazero.CompiledModule) error {
	if _, ok := compiled.ExportedMemories()["memory"]; !ok {
		return fmt.Errorf("payload does not export memory")
	}
	fns := compiled.ExportedFunctions()
	for name, params := range requiredExports {
		def, ok := fns[name]
		if !ok {
			return fmt.Errorf("payload does not export %s", name)
		}
		if got := len(def.ParamTypes()); got != params {
			return fmt.Errorf("payload export %s takes %d parameters, want %d", name, got, params)
		}
	}
	if def := fns["decode"]; len(def.ResultTypes()) != 1 || def.ResultTypes()[0] != api.ValueTypeI64 {
		return fmt.Errorf("payload export decode must return i64")
	}
	return nil
}

// instantiate creates a fresh licensed module instance.
func (e *Engine) instantiate(ctx context.Context) (*bridge, error) {
	e.mu.Lock()
	rt, compiled, license := e.runtime, e.compiled, e.license
	e.mu.Unlock()

	if compiled == nil {
		return nil, fmt.Errorf("runtime is not loaded")
	}

	mod, err := rt.InstantiateModule(ctx, compiled,
		wazero.NewModuleConfig().WithName("").WithStartFunctions("_initialize"))
	if err != nil {
		return nil, fmt.Errorf("instantiate payload: %w", err)
	}

	b, err := newBridge(mod, e.cfg.CallTimeout)
	if err != nil {
		mod.Close(ctx)
		return nil, err
	}
	if err := b.setLicense(ctx, license); err != nil {
		b.close(ctx)
		return nil, err
	}
	return b, nil
}

// NewReader implements engine.Engine.
func (e *Engine) NewReader(ctx context.Context) (engine.Reader, error) {
	b, err := e.instantiate(ctx)
	if err != nil {
		return nil, err
	}
	return &Reader{bridge: b}, nil
}

// NewScanner implements engine.Engine.
func (e *Engine) NewScanner(ctx context.Context) (engine.Scanner, error) {
	b, err := e.instantiate(ctx)
	if err != nil {
		return nil, err
	}
	return newScanner(b, e.cfg.OpenFrames, e.cfg.ForgetWindow, e.logger), nil
}

// Close implements engine.Closer. Instances still open are closed with the
// runtime.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	rt := e.runtime
	e.closed = true
	e.runtime = nil
	e.compiled = nil
	e.mu.Unlock()

	if rt == nil {
		return nil
	}
	return rt.Close(ctx)
}

var (
	_ engine.Engine = (*Engine)(nil)
	_ engine.Closer = (*Engine)(nil)
)
