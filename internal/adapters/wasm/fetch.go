package wasm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/bft-labs/barscan/internal/ports"
)

// maxPayloadSize bounds a downloaded or read payload.
const maxPayloadSize = 64 << 20

// payloadURL resolves the payload location under a resource path. A path
// that already names a .wasm file is used as is.
func payloadURL(resourcePath string) string {
	if strings.HasSuffix(resourcePath, ".wasm") {
		return resourcePath
	}
	return strings.TrimSuffix(resourcePath, "/") + "/" + PayloadName
}

// fetchPayload loads the payload from an http(s) URL, a file:// URL or a
// local path.
func fetchPayload(ctx context.Context, client ports.HTTPClient, resourcePath string) ([]byte, error) {
	u, err := url.Parse(resourcePath)
	if err == nil {
		switch u.Scheme {
		case "http", "https":
			return download(ctx, client, payloadURL(resourcePath))
		case "file":
			return readLocal(u.Path)
		}
	}
	return readLocal(resourcePath)
}

func download(ctx context.Context, client ports.HTTPClient, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch payload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch payload %s: server returned %d", target, resp.StatusCode)
	}

	return readLimited(resp.Body, target)
}

func readLocal(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	if info.IsDir() {
		path = filepath.Join(path, PayloadName)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	defer f.Close()

	return readLimited(f, path)
}

func readLimited(r io.Reader, source string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxPayloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read payload %s: %w", source, err)
	}
	if len(data) > maxPayloadSize {
		return nil, fmt.Errorf("payload %s exceeds %d bytes", source, maxPayloadSize)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("payload %s is empty", source)
	}
	return data, nil
}
