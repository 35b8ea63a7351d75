package metrics_test

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mstavrakis/rewrite-gateway/internal/metrics"
)

var _ = Describe("Collector", func() {
	var (
		collector *metrics.Collector
		ctx       context.Context
		cancel    context.CancelFunc
		log       *slog.Logger
	)

	const origin = "http://localhost:8000"

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(os.Stdout, nil))
		collector = metrics.NewCollector(100, log)
		ctx, cancel = context.WithCancel(context.Background())
	})

	AfterEach(func() {
		cancel()
	})

	It("should process rule match events", func() {
		collector.Start(ctx)

		collector.EventChannel() <- metrics.MetricEvent{
			Type:      metrics.EventRuleMatched,
			Timestamp: time.Now(),
			Rule:      "/api/:path*",
			Upstream:  origin,
		}

		Eventually(func() int64 {
			return collector.Snapshot().TotalForwarded
		}).Should(Equal(int64(1)))
	})

	It("should process response events", func() {
		collector.Start(ctx)

		collector.EventChannel() <- metrics.MetricEvent{
			Type:       metrics.EventResponseCompleted,
			Timestamp:  time.Now(),
			Upstream:   origin,
			Duration:   50 * time.Millisecond,
			StatusCode: 200,
		}

		Eventually(func() int64 {
			return collector.Snapshot().Upstreams[origin].StatusCodes[200]
		}).Should(Equal(int64(1)))
	})

	It("should process passthrough events", func() {
		collector.Start(ctx)

		collector.EventChannel() <- metrics.MetricEvent{
			Type:      metrics.EventPassthrough,
			Timestamp: time.Now(),
		}

		Eventually(func() int64 {
			return collector.Snapshot().Passthroughs
		}).Should(Equal(int64(1)))
	})

	It("should process reachability events", func() {
		collector.Start(ctx)

		collector.EventChannel() <- metrics.MetricEvent{
			Type:      metrics.EventReachabilityChange,
			Timestamp: time.Now(),
			Upstream:  origin,
			Reachable: false,
		}

		Eventually(func() bool {
			um, ok := collector.Snapshot().Upstreams[origin]
			return ok && !um.Reachable
		}).Should(BeTrue())
	})

	It("should drain buffered events on shutdown", func() {
		for i := 0; i < 10; i++ {
			collector.EventChannel() <- metrics.MetricEvent{
				Type:      metrics.EventRuleMatched,
				Timestamp: time.Now(),
				Rule:      "/api/:path*",
				Upstream:  origin,
			}
		}

		collector.Start(ctx)
		cancel()

		Eventually(func() int64 {
			return collector.Snapshot().TotalForwarded
		}).Should(Equal(int64(10)))
	})

	Describe("Handler", func() {
		It("should serve a JSON snapshot", func() {
			req := httptest.NewRequest("GET", "/metrics", nil)
			w := httptest.NewRecorder()

			collector.Handler()(w, req)

			Expect(w.Code).To(Equal(200))
			Expect(w.Header().Get("Content-Type")).To(Equal("application/json"))
			Expect(w.Body.String()).To(ContainSubstring("total_forwarded"))
		})
	})
})
