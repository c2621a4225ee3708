package configwatcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/bft-labs/barscan/pkg/engine"
	"github.com/bft-labs/barscan/pkg/engine/enginetest"
	"github.com/bft-labs/barscan/pkg/lifecycle"
	"github.com/bft-labs/barscan/pkg/scanner"
)

func writeConfig(t *testing.T, path, license string) {
	t.Helper()
	data := []byte("language = \"english\"\nlicense_key = \"" + license + "\"\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// recordingSetter records licenses handed to PluginConfig.SetLicenseKey.
type recordingSetter struct {
	mu       sync.Mutex
	licenses []string
	err      error
}

func (r *recordingSetter) set(ctx context.Context, license string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.licenses = append(r.licenses, license)
	return r.err
}

func (r *recordingSetter) Licenses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.licenses...)
}

func TestPlugin_AppliesLicenseChange(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "old")

	fake := enginetest.New()
	coord := lifecycle.New(fake, lifecycle.Config{LoadTimeout: 5 * time.Second}, nil)

	cfg := scanner.DefaultConfig()
	cfg.PreloadOnly = true
	cfg.LicenseKey = "old"
	s, err := scanner.New(cfg,
		scanner.WithCoordinator(coord),
		WithConfigWatcher(Config{Path: path, DebounceDelay: 10 * time.Millisecond}),
	)
	if err != nil {
		t.Fatalf("scanner.New() error = %v", err)
	}

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	writeConfig(t, path, "new")
	waitFor(t, "license switch", func() bool { return fake.License() == "new" })

	// The scanner adopted the license, so Restart does not switch back.
	if err := s.Restart(ctx); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}
	if got := coord.Snapshot().ActiveLicense; got != "new" {
		t.Errorf("ActiveLicense after Restart = %q, want new", got)
	}

	if err := s.Stop(ctx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestPlugin_ReloadRequired(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "old")

	fake := enginetest.New()
	fake.LockLicense = true
	coord := lifecycle.New(fake, lifecycle.Config{LoadTimeout: 5 * time.Second}, nil)

	ctx := context.Background()
	if err := coord.EnsureReady(ctx, "old", ""); err != nil {
		t.Fatalf("EnsureReady() error = %v", err)
	}

	reloads := make(chan error, 1)
	plugin := New(Config{
		Path:          path,
		DebounceDelay: 10 * time.Millisecond,
		OnReloadRequired: func(err error) {
			select {
			case reloads <- err:
			default:
			}
		},
	})

	// Without SetLicenseKey the coordinator is driven directly.
	err := plugin.Initialize(ctx, scanner.PluginConfig{
		Coordinator: coord,
		LicenseKey:  "old",
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	writeConfig(t, path, "new")

	select {
	case err := <-reloads:
		if !errors.Is(err, engine.ErrLicenseChangeRequiresReload) {
			t.Errorf("OnReloadRequired error = %v, want ErrLicenseChangeRequiresReload", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("OnReloadRequired was not called")
	}
	if coord.Phase() != lifecycle.PhaseFailed {
		t.Errorf("Phase() = %s, want Failed", coord.Phase())
	}

	if err := plugin.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestPlugin_IgnoresUnchangedAndOtherFiles(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeConfig(t, path, "same")

	setter := &recordingSetter{}
	plugin := New(Config{Path: path, DebounceDelay: 10 * time.Millisecond})

	ctx := context.Background()
	err := plugin.Initialize(ctx, scanner.PluginConfig{
		LicenseKey:    "same",
		SetLicenseKey: setter.set,
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	writeConfig(t, path, "same")
	writeConfig(t, filepath.Join(dir, "other.toml"), "other")
	if err := os.WriteFile(path, []byte("license_key = \"\"\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	if got := setter.Licenses(); len(got) != 0 {
		t.Errorf("SetLicenseKey calls = %v, want none", got)
	}

	writeConfig(t, path, "next")
	waitFor(t, "license switch", func() bool {
		got := setter.Licenses()
		return len(got) == 1 && got[0] == "next"
	})

	if err := plugin.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestPlugin_RetriesAfterFailure(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	path := filepath.Join(t.TempDir(), "config.toml")
	writeConfig(t, path, "old")

	setter := &recordingSetter{err: errors.New("engine unavailable")}
	plugin := New(Config{Path: path, DebounceDelay: 10 * time.Millisecond})

	ctx := context.Background()
	if err := plugin.Initialize(ctx, scanner.PluginConfig{LicenseKey: "old", SetLicenseKey: setter.set}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	writeConfig(t, path, "new")
	waitFor(t, "first attempt", func() bool { return len(setter.Licenses()) >= 1 })

	// The failed license is not recorded, so the same value is tried again.
	setter.mu.Lock()
	setter.err = nil
	setter.mu.Unlock()
	writeConfig(t, path, "new")
	waitFor(t, "license recorded", func() bool {
		plugin.mu.Lock()
		defer plugin.mu.Unlock()
		return plugin.lastLicense == "new"
	})

	if err := plugin.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestPlugin_Name(t *testing.T) {
	plugin := New(DefaultConfig())
	if plugin.Name() != "configwatcher" {
		t.Errorf("Name() = %v, want configwatcher", plugin.Name())
	}
}

func TestPlugin_DisabledWhenPathEmpty(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	setter := &recordingSetter{}
	plugin := New(DefaultConfig())

	ctx := context.Background()
	if err := plugin.Initialize(ctx, scanner.PluginConfig{SetLicenseKey: setter.set}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if plugin.cancel != nil {
		t.Error("watcher started without a path")
	}
	if err := plugin.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestPlugin_InitializeMissingDir(t *testing.T) {
	setter := &recordingSetter{}
	plugin := New(Config{Path: filepath.Join(t.TempDir(), "missing", "config.toml")})

	err := plugin.Initialize(context.Background(), scanner.PluginConfig{SetLicenseKey: setter.set})
	if err == nil {
		t.Fatal("Initialize() error = nil, want error for missing directory")
	}
}

func TestPlugin_ErrorToCode(t *testing.T) {
	p := New(DefaultConfig())
	dir := t.TempDir()

	_, notExist := os.ReadFile(filepath.Join(dir, "missing.toml"))

	bad := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(bad, []byte("license_key = \n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	p.path = bad
	_, parseErr := p.readConfig()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not exist", notExist, ErrCodeFileNotFound},
		{"permission", os.ErrPermission, ErrCodePermissionDenied},
		{"parse", parseErr, ErrCodeParseError},
		{"other", errors.New("disk on fire"), ErrCodeReadError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.errorToCode(tt.err); got != tt.want {
				t.Errorf("errorToCode(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}
