// Upstream is a simple mock API server used for gateway testing.
// It provides /api/health and /api/example endpoints plus an echo for any
// other /api path, so the gateway's rewrite rules can be exercised locally.
//
// Usage:
//
//	go run upstream.go -port 8000
//
// The server logs all requests and returns JSON responses.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"
)

func main() {
	port := flag.Int("port", 8000, "port to listen on")
	flag.Parse()

	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "healthy",
			"message": "API is running",
		})
	})

	mux.HandleFunc("/api/example", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"data":      "This is example data from the upstream",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Echo handler so arbitrary rewritten paths are visible in responses.
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("request: method=%s path=%s query=%s from=%s", r.Method, r.URL.Path, r.URL.RawQuery, r.RemoteAddr)
		writeJSON(w, http.StatusOK, map[string]any{
			"method": r.Method,
			"path":   r.URL.Path,
			"query":  r.URL.RawQuery,
		})
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("starting upstream on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload map[string]any) {
	b, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}
