package upstream

import (
	"net/url"
	"sync"
)

// Registry lazily builds one Upstream per distinct origin. Rules sharing an
// origin share the upstream and its connection pool.
type Registry struct {
	mutex     sync.RWMutex
	upstreams map[string]*Upstream
}

func NewRegistry() *Registry {
	return &Registry{
		upstreams: make(map[string]*Upstream),
	}
}

// Get returns the upstream for the given origin, creating it on first use.
func (r *Registry) Get(origin *url.URL) *Upstream {
	key := origin.String()

	r.mutex.RLock()
	up, exists := r.upstreams[key]
	r.mutex.RUnlock()

	if exists {
		return up
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Double-check: another goroutine may have created it
	if up, exists = r.upstreams[key]; exists {
		return up
	}

	up = New(origin)
	r.upstreams[key] = up
	return up
}

// All returns every upstream created so far.
func (r *Registry) All() []*Upstream {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	all := make([]*Upstream, 0, len(r.upstreams))
	for _, up := range r.upstreams {
		all = append(all, up)
	}
	return all
}

// Len returns the number of distinct origins registered.
func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.upstreams)
}
