package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ProviderHealth is a point-in-time view of one registered client.
type ProviderHealth struct {
	Name         string
	CircuitState gobreaker.State
	Counts       gobreaker.Counts

	// LastSuccessAt and LastFailureAt are nil until the first outcome of
	// that kind is recorded.
	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string
}

// Registry tracks the outcome of upstream calls per client. The API server
// reports it on /v1/ops/ready and /v1/ops/status.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	client    *Client
	success   *time.Time
	failure   *time.Time
	lastError string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

// Register adds client under name, replacing any earlier client.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = &registryEntry{client: client}
}

// Record stores the outcome of one call. A nil err is a success. Unknown
// names are ignored.
func (r *Registry) Record(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return
	}
	now := time.Now()
	if err == nil {
		e.success = &now
		return
	}
	e.failure = &now
	e.lastError = err.Error()
}

// Snapshot returns the health of every registered client, ordered by name.
func (r *Registry) Snapshot() []ProviderHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ProviderHealth, 0, len(r.entries))
	for name, e := range r.entries {
		out = append(out, ProviderHealth{
			Name:          name,
			CircuitState:  e.client.CircuitBreakerState(),
			Counts:        e.client.CircuitBreakerCounts(),
			LastSuccessAt: e.success,
			LastFailureAt: e.failure,
			LastError:     e.lastError,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
