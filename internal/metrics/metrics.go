package metrics

import (
	"maps"
	"sort"
	"sync"
	"time"
)

type Metrics struct {
	mutex         sync.RWMutex
	forwarded     map[string]int64
	ruleHits      map[string]int64
	passthroughs  int64
	responseTimes map[string][]time.Duration
	statusCodes   map[string]map[int]int64
	reachability  map[string]bool
	startTime     time.Time
}

type Snapshot struct {
	TotalForwarded int64                      `json:"total_forwarded"`
	Passthroughs   int64                      `json:"passthroughs"`
	Uptime         time.Duration              `json:"uptime"`
	Upstreams      map[string]UpstreamMetrics `json:"upstreams"`
	Rules          map[string]int64           `json:"rules"`
}

type UpstreamMetrics struct {
	Forwarded   int64         `json:"forwarded"`
	Reachable   bool          `json:"reachable"`
	AvgResponse time.Duration `json:"avg_response"`
	P50Response time.Duration `json:"p50_response"`
	P95Response time.Duration `json:"p95_response"`
	P99Response time.Duration `json:"p99_response"`
	StatusCodes map[int]int64 `json:"status_codes"`
}

func (m *Metrics) RecordRuleMatch(rule, upstream string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.ruleHits[rule]++
	m.forwarded[upstream]++
}

func (m *Metrics) RecordPassthrough() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.passthroughs++
}

func (m *Metrics) RecordResponse(upstream string, duration time.Duration, statusCode int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.responseTimes[upstream] = append(m.responseTimes[upstream], duration)

	if len(m.responseTimes[upstream]) > 1000 {
		m.responseTimes[upstream] = m.responseTimes[upstream][1:]
	}

	if m.statusCodes[upstream] == nil {
		m.statusCodes[upstream] = make(map[int]int64)
	}
	m.statusCodes[upstream][statusCode]++
}

func (m *Metrics) UpdateReachability(upstream string, reachable bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.reachability[upstream] = reachable
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Passthroughs: m.passthroughs,
		Uptime:       time.Since(m.startTime),
		Upstreams:    make(map[string]UpstreamMetrics),
		Rules:        make(map[string]int64, len(m.ruleHits)),
	}

	for rule, hits := range m.ruleHits {
		snap.Rules[rule] = hits
	}

	// Collect all unique upstream origins
	allUpstreams := make(map[string]bool)
	for upstream := range m.forwarded {
		allUpstreams[upstream] = true
	}
	for upstream := range m.responseTimes {
		allUpstreams[upstream] = true
	}
	for upstream := range m.reachability {
		allUpstreams[upstream] = true
	}

	for upstream := range allUpstreams {
		snap.TotalForwarded += m.forwarded[upstream]

		um := UpstreamMetrics{
			Forwarded: m.forwarded[upstream],
			Reachable: m.reachability[upstream],
			// Copied under the lock: the snapshot must stay readable
			// while RecordResponse keeps mutating the live map.
			StatusCodes: maps.Clone(m.statusCodes[upstream]),
		}

		durations := m.responseTimes[upstream]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			um.AvgResponse = average(sorted)
			um.P50Response = percentile(sorted, 0.50)
			um.P95Response = percentile(sorted, 0.95)
			um.P99Response = percentile(sorted, 0.99)
		}

		snap.Upstreams[upstream] = um
	}

	return snap
}

func NewMetrics() *Metrics {
	return &Metrics{
		forwarded:     make(map[string]int64),
		ruleHits:      make(map[string]int64),
		responseTimes: make(map[string][]time.Duration),
		statusCodes:   make(map[string]map[int]int64),
		reachability:  make(map[string]bool),
		startTime:     time.Now(),
	}
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
