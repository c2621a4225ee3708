// Package capture runs live capture sessions against a ready engine.
//
// A [Session] belongs to one scanner instance. It opens a capture device on
// the engine handed out by an [engine.Source] (normally the lifecycle
// coordinator), routes every detection to the instance's [OutputSlot] and
// [Action], and applies the scan [Mode]: SingleShot closes the device after
// the first detection, Continuous keeps it open until the session is closed.
//
// # Usage
//
//	s := capture.NewSession(coordinator, capture.Config{
//	    Mode:    capture.SingleShot,
//	    Formats: symbology.QRCode.Mask(),
//	    Target:  "frames/",
//	    Output:  capture.OutputFunc(func(text string) { fmt.Println(text) }),
//	}, logger, nil)
//
//	if err := s.Start(ctx); err != nil {
//	    return err
//	}
//	defer s.Close(ctx)
//
// # State Machine
//
//   - Idle -> Initializing (Start, Restart)
//   - Initializing -> Open, or Idle when the device cannot be opened
//   - Open -> Completed (SingleShot detection), Idle (device error)
//   - Completed -> Initializing (Restart)
//   - any -> Closed (Close, terminal)
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package capture
