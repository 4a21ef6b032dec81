package job

import (
	"io"
	"sync"

	"github.com/jmylchreest/prospector/internal/logger"
)

// Registry holds the one cancellable resource of the running job. A new
// registration supersedes and tears down the previous one.
type Registry struct {
	mu      sync.Mutex
	current *Handle
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Handle is a job's claim on the registry.
type Handle struct {
	id  string
	res io.Closer
	reg *Registry

	mu        sync.Mutex
	cancelled bool
}

// ID returns the job ID the handle was registered with.
func (h *Handle) ID() string { return h.id }

// Cancelled reports whether the job was cancelled or superseded.
func (h *Handle) Cancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

func (h *Handle) markCancelled() {
	h.mu.Lock()
	h.cancelled = true
	h.mu.Unlock()
}

// Release clears the slot if h still owns it. It does not close the
// resource; the job closes its own resource.
func (h *Handle) Release() {
	h.reg.mu.Lock()
	defer h.reg.mu.Unlock()
	if h.reg.current == h {
		h.reg.current = nil
	}
}

// Register makes res the active resource. Any previous holder is marked
// cancelled and its resource closed outside the lock.
func (r *Registry) Register(id string, res io.Closer) *Handle {
	h := &Handle{id: id, res: res, reg: r}

	r.mu.Lock()
	prev := r.current
	r.current = h
	r.mu.Unlock()

	if prev != nil {
		prev.markCancelled()
		if err := prev.res.Close(); err != nil {
			logger.Warn("closing superseded job failed", "job", prev.id, "error", err)
		}
	}
	return h
}

// Cancel closes the active resource and clears the slot. With nothing
// registered it is a no-op.
func (r *Registry) Cancel() error {
	r.mu.Lock()
	h := r.current
	r.current = nil
	r.mu.Unlock()

	if h == nil {
		return nil
	}
	h.markCancelled()
	return h.res.Close()
}

// Active returns the ID of the registered job, if any.
func (r *Registry) Active() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return "", false
	}
	return r.current.id, true
}
