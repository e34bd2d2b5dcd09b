package correlation

import (
	"errors"
	"sync"

	"github.com/sotec-iot/device-communication/internal/domain"
)

// ErrInvalidKey is returned when any component of the composite key is empty.
var ErrInvalidKey = errors.New("tenant id, device id and correlation id must not be empty")

// Key identifies a pending acknowledgement. A struct key keeps the composite
// collision free regardless of what characters the identifiers contain.
type Key struct {
	Tenant        domain.TenantID
	Device        domain.DeviceID
	CorrelationID string
}

// Registry is a thread safe store of pending completions keyed by
// (tenant, device, correlation id). It only performs the atomic swap; the
// protocol semantics of a displaced entry (failing it as superseded) belong
// to the caller.
type Registry struct {
	mu      sync.Mutex
	pending map[Key]*Completion
}

func NewRegistry() *Registry {
	return &Registry{
		pending: make(map[Key]*Completion),
	}
}

// Put stores a completion under the composite key and returns whatever
// completion was stored there before, or nil. The swap is a single
// indivisible operation: there is no window in which both the previous and
// the new completion are reachable through the registry.
func (r *Registry) Put(tenant domain.TenantID, device domain.DeviceID, correlationID string, c *Completion) (*Completion, error) {
	if tenant == "" || device == "" || correlationID == "" {
		return nil, ErrInvalidKey
	}

	key := Key{Tenant: tenant, Device: device, CorrelationID: correlationID}

	r.mu.Lock()
	defer r.mu.Unlock()

	previous := r.pending[key]
	r.pending[key] = c

	return previous, nil
}

// Remove atomically removes and returns the completion stored under the
// composite key, or nil if there is none. Concurrent removals for the same
// key hand the completion to exactly one caller.
func (r *Registry) Remove(tenant domain.TenantID, device domain.DeviceID, correlationID string) *Completion {
	key := Key{Tenant: tenant, Device: device, CorrelationID: correlationID}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, exists := r.pending[key]
	if exists == false {
		return nil
	}

	delete(r.pending, key)

	return c
}

// RemoveIf removes the entry under the composite key only if it still holds
// the given completion, and reports whether it did. A caller whose entry was
// displaced by a newer Put finds someone else's completion under its key and
// must not claim it.
func (r *Registry) RemoveIf(tenant domain.TenantID, device domain.DeviceID, correlationID string, c *Completion) bool {
	key := Key{Tenant: tenant, Device: device, CorrelationID: correlationID}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.pending[key]
	if exists == false || current != c {
		return false
	}

	delete(r.pending, key)

	return true
}

// Size returns the number of pending completions.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.pending)
}
