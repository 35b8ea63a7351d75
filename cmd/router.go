package main

import (
	"net/http"

	"github.com/mstavrakis/rewrite-gateway/internal/metrics"
)

// setupRouter builds the gateway's own routes and the static fallback that
// serves everything the rewrite table and the routes leave untouched.
func setupRouter(collector *metrics.Collector, staticDir string) (*http.ServeMux, http.Handler) {
	mux := http.NewServeMux()

	mux.HandleFunc("/metrics", collector.Handler())

	static := http.FileServer(http.Dir(staticDir))

	return mux, static
}
