// Package upstream manages proxied origins: each rewrite destination's fixed
// origin gets a single reverse proxy, shared across rules, with reachability
// and response time tracking.
package upstream
