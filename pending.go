package ffetch

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

// errCallAborted is the cancellation cause recorded when a pending call is
// aborted through the registry.
var errCallAborted = errors.New("ffetch: call aborted")

// PendingRequest describes one call between its start and its settlement.
// Values are read-only snapshots except Abort, which cancels the call.
type PendingRequest struct {
	id      string
	request *http.Request
	started time.Time
	cancel  context.CancelCauseFunc

	done chan struct{}
	mu   sync.Mutex
	resp *http.Response
	err  error
}

// ID returns the call's unique identifier.
func (p *PendingRequest) ID() string { return p.id }

// Request returns the request the call was started with.
func (p *PendingRequest) Request() *http.Request { return p.request }

// StartedAt returns when the call entered the registry.
func (p *PendingRequest) StartedAt() time.Time { return p.started }

// Done is closed when the call settles.
func (p *PendingRequest) Done() <-chan struct{} { return p.done }

// Outcome returns the call's final response and error. It is only
// meaningful after Done is closed.
func (p *PendingRequest) Outcome() (*http.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resp, p.err
}

// Abort cancels this call. The call settles with an AbortError.
func (p *PendingRequest) Abort() {
	p.cancel(errCallAborted)
}

func (p *PendingRequest) settle(resp *http.Response, err error) {
	p.mu.Lock()
	p.resp = resp
	p.err = err
	p.mu.Unlock()
	close(p.done)
}

// pendingRegistry tracks every in-flight call of a client.
type pendingRegistry struct {
	mu      sync.RWMutex
	entries map[string]*PendingRequest
}

func newPendingRegistry() *pendingRegistry {
	return &pendingRegistry{
		entries: make(map[string]*PendingRequest),
	}
}

func (r *pendingRegistry) add(p *PendingRequest) {
	r.mu.Lock()
	r.entries[p.id] = p
	r.mu.Unlock()
}

func (r *pendingRegistry) remove(id string) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

// list snapshots the in-flight calls in no particular order.
func (r *pendingRegistry) list() []*PendingRequest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*PendingRequest, 0, len(r.entries))
	for _, p := range r.entries {
		out = append(out, p)
	}
	return out
}

func (r *pendingRegistry) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// abortAll cancels every in-flight call. Entries leave the registry when
// their calls settle, not here.
func (r *pendingRegistry) abortAll() {
	for _, p := range r.list() {
		p.cancel(errCallAborted)
	}
}
