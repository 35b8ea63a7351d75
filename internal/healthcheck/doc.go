// Package healthcheck probes upstream origins for reachability and logs
// status transitions. Probing is purely observational and does not alter
// how requests are proxied.
package healthcheck
