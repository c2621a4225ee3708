package ports

import "net/http"

// HTTPClient fetches remote engine payloads.
// The standard *http.Client satisfies this interface.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
