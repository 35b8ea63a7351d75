package upstream

import (
	"net/http/httputil"
	"net/url"
	"sync"
	"time"
)

// Upstream represents one proxied origin with reachability status and
// response time monitoring. Proxying always uses this origin verbatim;
// reachability is observational and never gates forwarding.
type Upstream struct {
	url              *url.URL
	proxy            *httputil.ReverseProxy
	mutex            sync.Mutex
	reachable        bool
	ewmaResponseTime time.Duration
	hasEWMA          bool
}

const ewmaAlpha = 0.2

// New creates a new Upstream for the given origin URL.
// The upstream starts in a reachable state.
func New(url *url.URL) *Upstream {
	return &Upstream{
		url:       url,
		proxy:     httputil.NewSingleHostReverseProxy(url),
		reachable: true,
	}
}

// ReverseProxy returns the HTTP reverse proxy for this upstream.
func (u *Upstream) ReverseProxy() *httputil.ReverseProxy {
	return u.proxy
}

// URL returns the upstream origin URL.
func (u *Upstream) URL() *url.URL {
	return u.url
}

// IsReachable returns true if the last probe reached the upstream.
func (u *Upstream) IsReachable() bool {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	return u.reachable
}

// SetReachable updates the upstream's reachability status.
// Returns true if the status changed, false if it was already in that state.
func (u *Upstream) SetReachable(reachable bool) (changed bool) {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	if u.reachable == reachable {
		return false
	}

	u.reachable = reachable
	return true
}

// RecordResponse updates the exponentially weighted moving average (EWMA)
// response time using the latest request duration.
func (u *Upstream) RecordResponse(duration time.Duration) {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	if !u.hasEWMA {
		u.ewmaResponseTime = duration
		u.hasEWMA = true
		return
	}
	//ewma = (1 - α) * ewma + α * latest
	u.ewmaResponseTime = time.Duration((1-ewmaAlpha)*float64(u.ewmaResponseTime) + ewmaAlpha*float64(duration))
}

// EWMATime returns the exponentially weighted moving average response time.
// Returns 0 if no responses have been recorded yet.
func (u *Upstream) EWMATime() time.Duration {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	if !u.hasEWMA {
		return 0
	}

	return u.ewmaResponseTime
}
