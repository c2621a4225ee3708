package ports

// Frame is one captured image.
type Frame struct {
	// Name identifies the frame in logs, e.g. its file name.
	Name string
	// Data is the encoded image.
	Data []byte
}

// FrameSource produces frames for a capture device.
type FrameSource interface {
	// Frames delivers frames in capture order. It is closed after Close.
	Frames() <-chan Frame

	// Errors delivers fatal source errors. After an error no more frames
	// are delivered.
	Errors() <-chan error

	// Close stops the source and waits for its goroutines to exit.
	// Safe to call more than once.
	Close() error
}
