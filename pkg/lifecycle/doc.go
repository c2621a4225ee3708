// Package lifecycle coordinates the decoding engine across every scanner
// instance in the process.
//
// The engine is expensive to load and cannot be loaded twice, so a single
// [Coordinator] owns its state: which phase it is in, which license is
// active, and whether the binary runtime has been loaded. Scanner instances
// call [Coordinator.EnsureReady] when they start; the first caller triggers
// the load and everyone else waits on the same outcome.
//
// # Usage
//
//	c := lifecycle.InstallDefault(lifecycle.New(eng, lifecycle.DefaultConfig(), logger))
//
//	if err := c.EnsureReady(ctx, licenseKey, resourcePath); err != nil {
//	    if errors.Is(err, engine.ErrLicenseChangeRequiresReload) {
//	        // the engine must be rebuilt: c.Reset(ctx, newEngine)
//	    }
//	    return err
//	}
//	eng, _ := c.ReadyEngine()
//
// # State Machine
//
// Valid phase transitions:
//   - Uninitialized -> Loading
//   - Loading -> Ready, Failed
//   - Ready -> Failed (license change refused by the engine)
//   - Failed -> Loading (unless a reload is required)
//   - any -> Uninitialized (Reset, never while Loading)
//
// # Version
//
// Current version: 2.0.0
// Minimum compatible version: 2.0.0
//
// See version.go for version constants that can be used programmatically.
package lifecycle
