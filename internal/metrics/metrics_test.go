package metrics_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mstavrakis/rewrite-gateway/internal/metrics"
)

func TestMetrics(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Metrics Suite")
}

var _ = Describe("Metrics", func() {
	var m *metrics.Metrics

	const (
		origin = "http://localhost:8000"
		rule   = "/api/:path*"
	)

	BeforeEach(func() {
		m = metrics.NewMetrics()
	})

	Describe("RecordRuleMatch", func() {
		It("should count forwarded requests per upstream", func() {
			m.RecordRuleMatch(rule, origin)
			m.RecordRuleMatch(rule, origin)

			snap := m.Snapshot()
			Expect(snap.TotalForwarded).To(Equal(int64(2)))
			Expect(snap.Upstreams[origin].Forwarded).To(Equal(int64(2)))
		})

		It("should count hits per rule", func() {
			m.RecordRuleMatch(rule, origin)

			snap := m.Snapshot()
			Expect(snap.Rules[rule]).To(Equal(int64(1)))
		})
	})

	Describe("RecordPassthrough", func() {
		It("should count non-matching requests", func() {
			m.RecordPassthrough()
			m.RecordPassthrough()
			m.RecordPassthrough()

			snap := m.Snapshot()
			Expect(snap.Passthroughs).To(Equal(int64(3)))
			Expect(snap.TotalForwarded).To(Equal(int64(0)))
		})
	})

	Describe("RecordResponse", func() {
		It("should track status code distribution", func() {
			m.RecordResponse(origin, 10*time.Millisecond, 200)
			m.RecordResponse(origin, 10*time.Millisecond, 200)
			m.RecordResponse(origin, 10*time.Millisecond, 502)

			snap := m.Snapshot()
			Expect(snap.Upstreams[origin].StatusCodes[200]).To(Equal(int64(2)))
			Expect(snap.Upstreams[origin].StatusCodes[502]).To(Equal(int64(1)))
		})

		It("should compute response time percentiles", func() {
			for i := 1; i <= 100; i++ {
				m.RecordResponse(origin, time.Duration(i)*time.Millisecond, 200)
			}

			snap := m.Snapshot()
			um := snap.Upstreams[origin]
			Expect(um.P50Response).To(BeNumerically(">", 40*time.Millisecond))
			Expect(um.P95Response).To(BeNumerically(">", um.P50Response))
			Expect(um.P99Response).To(BeNumerically(">=", um.P95Response))
			Expect(um.AvgResponse).To(BeNumerically(">", 0))
		})

		It("should cap the stored response time window", func() {
			for i := 0; i < 1500; i++ {
				m.RecordResponse(origin, time.Millisecond, 200)
			}

			snap := m.Snapshot()
			Expect(snap.Upstreams[origin].StatusCodes[200]).To(Equal(int64(1500)))
		})
	})

	Describe("UpdateReachability", func() {
		It("should report upstream reachability", func() {
			m.UpdateReachability(origin, false)

			snap := m.Snapshot()
			Expect(snap.Upstreams[origin].Reachable).To(BeFalse())

			m.UpdateReachability(origin, true)
			snap = m.Snapshot()
			Expect(snap.Upstreams[origin].Reachable).To(BeTrue())
		})
	})

	Describe("Snapshot", func() {
		It("should detach status codes from later recording", func() {
			m.RecordResponse(origin, time.Millisecond, 200)

			snap := m.Snapshot()
			m.RecordResponse(origin, time.Millisecond, 200)
			m.RecordResponse(origin, time.Millisecond, 502)

			Expect(snap.Upstreams[origin].StatusCodes[200]).To(Equal(int64(1)))
			Expect(snap.Upstreams[origin].StatusCodes).NotTo(HaveKey(502))
		})

		It("should stay readable while recording continues", func() {
			done := make(chan struct{})
			go func() {
				defer close(done)
				for i := 0; i < 500; i++ {
					m.RecordResponse(origin, time.Millisecond, 200+i%3)
				}
			}()

			for i := 0; i < 100; i++ {
				snap := m.Snapshot()
				var total int64
				for _, count := range snap.Upstreams[origin].StatusCodes {
					total += count
				}
				Expect(total).To(BeNumerically(">=", 0))
			}

			Eventually(done).Should(BeClosed())
		})

		It("should report uptime", func() {
			snap := m.Snapshot()
			Expect(snap.Uptime).To(BeNumerically(">=", 0))
		})

		It("should be empty initially", func() {
			snap := m.Snapshot()
			Expect(snap.TotalForwarded).To(Equal(int64(0)))
			Expect(snap.Passthroughs).To(Equal(int64(0)))
			Expect(snap.Upstreams).To(BeEmpty())
		})
	})
})
