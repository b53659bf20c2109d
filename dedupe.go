package ffetch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"strings"
	"sync"
)

// DefaultDedupeKey derives the coalescing key for a request: an fnv-64a
// fingerprint of the upper-cased method, the full URL, and a digest of the
// replayable body. Requests with a streaming body (one net/http cannot
// rewind) opt out of deduplication; bodies whose rewinder fails contribute a
// fixed sentinel so such requests still coalesce deterministically.
func DefaultDedupeKey(req *http.Request) (string, bool) {
	if req.URL == nil {
		return "", false
	}
	if req.Body != nil && req.GetBody == nil {
		return "", false
	}

	h := fnv.New64a()
	h.Write([]byte(strings.ToUpper(req.Method)))
	h.Write([]byte(req.URL.String()))

	if req.Body != nil {
		if body, err := req.GetBody(); err == nil {
			digest := sha256.New()
			if _, err := io.Copy(digest, body); err == nil {
				h.Write(digest.Sum(nil))
			} else {
				h.Write([]byte("unserializable"))
			}
			body.Close()
		} else {
			h.Write([]byte("unserializable"))
		}
	}

	return fmt.Sprintf("%x", h.Sum64()), true
}

// sharedResponse is a buffered snapshot of one response, handed to every
// caller coalesced onto the same request. Buffering frees the snapshot from
// the single-reader constraint of http.Response bodies.
type sharedResponse struct {
	resp *http.Response
	body []byte
}

func newSharedResponse(resp *http.Response) (*sharedResponse, error) {
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	return &sharedResponse{resp: resp, body: body}, nil
}

// materialize returns an independent *http.Response view over the shared
// bytes, with its own body reader and header copy.
func (s *sharedResponse) materialize() *http.Response {
	resp := new(http.Response)
	*resp = *s.resp
	resp.Header = s.resp.Header.Clone()
	resp.Body = io.NopCloser(bytes.NewReader(s.body))
	resp.ContentLength = int64(len(s.body))
	return resp
}

// dedupeEntry is one in-flight coalesced request.
type dedupeEntry struct {
	done   chan struct{}
	shared *sharedResponse
	err    error
}

// wait blocks until the owning call settles the entry or ctx is cancelled.
func (e *dedupeEntry) wait(ctx context.Context) (*sharedResponse, error) {
	select {
	case <-e.done:
		return e.shared, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// dedupeTracker coalesces concurrent identical requests onto a single
// outbound call.
type dedupeTracker struct {
	mu      sync.Mutex
	entries map[string]*dedupeEntry
}

func newDedupeTracker() *dedupeTracker {
	return &dedupeTracker{
		entries: make(map[string]*dedupeEntry),
	}
}

// acquire returns the in-flight entry for key, creating one when absent.
// The second result is true for the caller that owns the outbound request.
func (t *dedupeTracker) acquire(key string) (*dedupeEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, ok := t.entries[key]; ok {
		return entry, false
	}
	entry := &dedupeEntry{done: make(chan struct{})}
	t.entries[key] = entry
	return entry, true
}

// settle publishes the outcome, releases waiters, and retires the entry.
// The occupancy check leaves a newer entry under the same key intact.
func (t *dedupeTracker) settle(key string, entry *dedupeEntry, shared *sharedResponse, err error) {
	entry.shared = shared
	entry.err = err
	close(entry.done)

	t.mu.Lock()
	if t.entries[key] == entry {
		delete(t.entries, key)
	}
	t.mu.Unlock()
}

// inFlight returns the number of keys currently coalescing.
func (t *dedupeTracker) inFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
