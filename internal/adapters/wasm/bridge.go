package wasm

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tetratelabs/wazero/api"

	"github.com/bft-labs/barscan/pkg/engine"
	"github.com/bft-labs/barscan/pkg/symbology"
)

// bridge wraps one payload instance. Instances are not safe for concurrent
// calls, so every call holds mu.
type bridge struct {
	mu      sync.Mutex
	module  api.Module
	memory  api.Memory
	timeout time.Duration
	closed  bool

	fnMalloc     api.Function
	fnFree       api.Function
	fnSetLicense api.Function
	fnSetFormats api.Function
	fnDecode     api.Function
}

func newBridge(module api.Module, timeout time.Duration) (*bridge, error) {
	b := &bridge{
		module:  module,
		memory:  module.Memory(),
		timeout: timeout,
	}
	if b.memory == nil {
		return nil, fmt.Errorf("payload instance has no memory")
	}

	for name, fn := range map[string]*api.Function{
		"malloc":      &b.fnMalloc,
		"free":        &b.fnFree,
		"set_license": &b.fnSetLicense,
		"set_formats": &b.fnSetFormats,
		"decode":      &b.fnDecode,
	} {
		*fn = module.ExportedFunction(name)
		if *fn == nil {
			return nil, fmt.Errorf("payload instance does not export %s", name)
		}
	}
	return b, nil
}

func (b *bridge) setLicense(ctx context.Context, license string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("payload instance is closed")
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	ptr, size, err := b.write(ctx, []byte(license))
	if err != nil {
		return err
	}
	defer b.release(ctx, ptr)

	results, err := b.fnSetLicense.Call(ctx, uint64(ptr), uint64(size))
	if err != nil {
		return fmt.Errorf("set_license: %w", err)
	}
	return checkStatus("set_license", results)
}

func (b *bridge) setFormats(ctx context.Context, mask symbology.Mask) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("payload instance is closed")
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	results, err := b.fnSetFormats.Call(ctx, uint64(mask))
	if err != nil {
		return fmt.Errorf("set_formats: %w", err)
	}
	return checkStatus("set_formats", results)
}

func (b *bridge) decode(ctx context.Context, image []byte) ([]engine.Result, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("image is empty")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("payload instance is closed")
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	ptr, size, err := b.write(ctx, image)
	if err != nil {
		return nil, err
	}
	defer b.release(ctx, ptr)

	results, err := b.fnDecode.Call(ctx, uint64(ptr), uint64(size))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("decode returned no results")
	}

	// Output is packed as (ptr << 32) | len.
	packed := results[0]
	outPtr := uint32(packed >> 32)
	outLen := uint32(packed & 0xFFFFFFFF)
	if outLen == 0 {
		return nil, nil
	}

	out, ok := b.memory.Read(outPtr, outLen)
	if !ok {
		return nil, fmt.Errorf("decode output out of range")
	}
	// Read returns a view of linear memory; copy before freeing.
	text := string(out)
	b.release(ctx, outPtr)

	return parseResults(text)
}

// write copies data into a fresh allocation.
func (b *bridge) write(ctx context.Context, data []byte) (uint32, uint32, error) {
	size := uint32(len(data))
	alloc := size
	if alloc == 0 {
		alloc = 1
	}

	results, err := b.fnMalloc.Call(ctx, uint64(alloc))
	if err != nil {
		return 0, 0, fmt.Errorf("malloc: %w", err)
	}
	if len(results) == 0 || uint32(results[0]) == 0 {
		return 0, 0, fmt.Errorf("malloc returned null pointer")
	}
	ptr := uint32(results[0])

	if size > 0 && !b.memory.Write(ptr, data) {
		b.release(ctx, ptr)
		return 0, 0, fmt.Errorf("write %d bytes at %#x: out of range", size, ptr)
	}
	return ptr, size, nil
}

func (b *bridge) release(ctx context.Context, ptr uint32) {
	// A failed free leaks inside the instance only.
	_, _ = b.fnFree.Call(ctx, uint64(ptr))
}

func (b *bridge) close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.module.Close(ctx)
}

func checkStatus(fn string, results []uint64) error {
	if len(results) == 0 {
		return fmt.Errorf("%s returned no results", fn)
	}
	if status := int32(results[0]); status != 0 {
		return fmt.Errorf("%s returned status %d", fn, status)
	}
	return nil
}

// parseResults parses decode output records of the form "format\ttext".
func parseResults(out string) ([]engine.Result, error) {
	var results []engine.Result
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		format, text, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("malformed decode record %q", line)
		}
		mask, err := strconv.ParseUint(strings.TrimSpace(format), 0, 32)
		if err != nil {
			return nil, fmt.Errorf("malformed decode format %q: %w", format, err)
		}
		results = append(results, engine.Result{Text: text, Format: symbology.Mask(mask)})
	}
	return results, nil
}
