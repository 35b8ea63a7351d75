package handler

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/mstavrakis/rewrite-gateway/internal/metrics"
	"github.com/mstavrakis/rewrite-gateway/internal/rewrite"
	"github.com/mstavrakis/rewrite-gateway/internal/upstream"
)

// GatewayHandler evaluates the rewrite rule table around the gateway's own
// routing. Before-routing rules take precedence over every route; requests
// that no rule and no route claim fall to the static handler, with
// after-routing rules getting one more chance in between.
type GatewayHandler struct {
	logger           *slog.Logger
	table            *rewrite.Table
	upstreams        *upstream.Registry
	mux              *http.ServeMux
	static           http.Handler
	metricsCollector *metrics.Collector
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (g *GatewayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientIP := extractClientIP(r)

	g.logger.Info("Received request",
		slog.String("from", clientIP),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("proto", r.Proto),
		slog.String("host", r.Host))

	if target, ok := g.table.Match(rewrite.PhaseBeforeRouting, r.URL.Path); ok {
		g.forward(w, r, target, clientIP)
		return
	}

	if _, pattern := g.mux.Handler(r); pattern != "" {
		g.emitEvent(metrics.MetricEvent{
			Type:      metrics.EventPassthrough,
			Timestamp: time.Now(),
		})
		g.mux.ServeHTTP(w, r)
		return
	}

	if target, ok := g.table.Match(rewrite.PhaseAfterRouting, r.URL.Path); ok {
		g.forward(w, r, target, clientIP)
		return
	}

	g.emitEvent(metrics.MetricEvent{
		Type:      metrics.EventPassthrough,
		Timestamp: time.Now(),
	})
	g.static.ServeHTTP(w, r)
}

// forward hands the request to the target's upstream with the rewritten
// path. Method, headers, query string, and body pass through untouched, and
// the upstream response comes back verbatim. Proxy errors surface as the
// reverse proxy's default 502.
func (g *GatewayHandler) forward(w http.ResponseWriter, r *http.Request, target *rewrite.Target, clientIP string) {
	up := g.upstreams.Get(target.Origin)

	g.logger.Info("Forwarding to upstream",
		slog.String("client", clientIP),
		slog.String("rule", target.Rule.Source()),
		slog.String("upstream", up.URL().String()),
		slog.String("rewritten_path", target.Path))

	g.emitEvent(metrics.MetricEvent{
		Type:      metrics.EventRuleMatched,
		Timestamp: time.Now(),
		Rule:      target.Rule.Source(),
		Upstream:  up.URL().String(),
	})

	r.URL.Path = target.Path
	r.URL.RawPath = ""

	start := time.Now()
	wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
	up.ReverseProxy().ServeHTTP(wrapped, r)

	duration := time.Since(start)
	g.emitEvent(metrics.MetricEvent{
		Type:       metrics.EventResponseCompleted,
		Timestamp:  time.Now(),
		Upstream:   up.URL().String(),
		Duration:   duration,
		StatusCode: wrapped.statusCode,
	})
	up.RecordResponse(duration)
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}

	host, _, _ := net.SplitHostPort(r.RemoteAddr)
	return host
}

func (g *GatewayHandler) emitEvent(event metrics.MetricEvent) {
	if g.metricsCollector == nil {
		return
	}

	select {
	case g.metricsCollector.EventChannel() <- event:
	default:
	}
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer so http.ResponseController can reach
// its Flusher; the reverse proxy needs it to stream event responses through.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func NewGatewayHandler(
	logger *slog.Logger,
	table *rewrite.Table,
	upstreams *upstream.Registry,
	mux *http.ServeMux,
	static http.Handler,
	collector *metrics.Collector,
) *GatewayHandler {
	return &GatewayHandler{
		logger:           logger,
		table:            table,
		upstreams:        upstreams,
		mux:              mux,
		static:           static,
		metricsCollector: collector,
	}
}
