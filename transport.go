package ffetch

import "net/http"

// Transport sends a single HTTP request and returns its response or an
// error. It is the primitive the client wraps; *http.Transport, any
// http.RoundTripper and plain functions all satisfy it.
type Transport interface {
	RoundTrip(*http.Request) (*http.Response, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(*http.Request) (*http.Response, error)

// RoundTrip implements Transport.
func (f TransportFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// defaultHTTPClient backs clients that were not given a transport. It has
// no Timeout of its own; the per-call time budget governs deadlines.
var defaultHTTPClient = &http.Client{}
