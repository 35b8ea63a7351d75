package healthcheck

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/mstavrakis/rewrite-gateway/internal/metrics"
	"github.com/mstavrakis/rewrite-gateway/internal/upstream"
)

// Probe periodically checks whether an upstream origin is reachable by
// sending HTTP GET requests to its health path. The result is observational:
// it updates the upstream's reachability flag and the metrics pipeline but
// never gates proxying.
func Probe(
	ctx context.Context,
	up *upstream.Upstream,
	interval time.Duration,
	path string,
	logger *slog.Logger,
	events chan<- metrics.MetricEvent,
) {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Upstream probe stopped",
				slog.String("upstream", up.URL().String()))
			return

		case <-ticker.C:
			healthURL := up.URL().ResolveReference(&url.URL{Path: path})

			req, err := http.NewRequestWithContext(
				ctx, http.MethodGet, healthURL.String(), nil)
			if err != nil {
				continue
			}

			res, err := client.Do(req)
			if err != nil {
				report(up, false, logger, events)
				continue
			}
			res.Body.Close()

			report(up, res.StatusCode == http.StatusOK, logger, events)
		}
	}
}

func report(up *upstream.Upstream, reachable bool, logger *slog.Logger, events chan<- metrics.MetricEvent) {
	changed := up.SetReachable(reachable)
	if !changed {
		return
	}

	if reachable {
		logger.Info("Upstream is back up",
			slog.String("upstream", up.URL().String()))
	} else {
		logger.Warn("Upstream is unreachable",
			slog.String("upstream", up.URL().String()))
	}

	if events == nil {
		return
	}

	select {
	case events <- metrics.MetricEvent{
		Type:      metrics.EventReachabilityChange,
		Timestamp: time.Now(),
		Upstream:  up.URL().String(),
		Reachable: reachable,
	}:
	default:
	}
}
