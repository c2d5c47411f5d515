package completion

import (
	"sort"
	"sync"
	"time"
)

type sample struct {
	timestamp  time.Time
	firstDelta time.Duration
	total      time.Duration
}

// LatencySnapshot aggregates one latency series.
type LatencySnapshot struct {
	MinMs int64   `json:"min_ms"`
	MaxMs int64   `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
}

// StatsSnapshot is a point-in-time aggregate of recent completion streams.
type StatsSnapshot struct {
	Count      int             `json:"count"`
	Failures   int             `json:"failures"`
	FirstDelta LatencySnapshot `json:"first_delta"`
	Total      LatencySnapshot `json:"total"`
}

// LLMStats tracks recent completion stream latencies within a rolling window.
type LLMStats struct {
	mu       sync.Mutex
	samples  []sample
	failures []time.Time
	maxAge   time.Duration
	now      func() time.Time
}

func NewLLMStats(maxAge time.Duration) *LLMStats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &LLMStats{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// RecordStream records a stream that reached its end marker.
func (s *LLMStats) RecordStream(firstDelta, total time.Duration) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	s.samples = append(s.samples, sample{
		timestamp:  now,
		firstDelta: max(firstDelta, 0),
		total:      max(total, 0),
	})
}

// RecordFailure records a stream that failed to open or broke mid-way.
func (s *LLMStats) RecordFailure() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	s.failures = append(s.failures, now)
}

func (s *LLMStats) Snapshot() StatsSnapshot {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	snap := StatsSnapshot{Count: len(s.samples), Failures: len(s.failures)}
	if len(s.samples) == 0 {
		return snap
	}

	first := make([]int64, 0, len(s.samples))
	total := make([]int64, 0, len(s.samples))
	for _, sm := range s.samples {
		first = append(first, sm.firstDelta.Milliseconds())
		total = append(total, sm.total.Milliseconds())
	}
	snap.FirstDelta = summarize(first)
	snap.Total = summarize(total)
	return snap
}

func (s *LLMStats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	writeIdx := 0
	for _, sm := range s.samples {
		if !sm.timestamp.Before(cutoff) {
			s.samples[writeIdx] = sm
			writeIdx++
		}
	}
	s.samples = s.samples[:writeIdx]

	writeIdx = 0
	for _, ts := range s.failures {
		if !ts.Before(cutoff) {
			s.failures[writeIdx] = ts
			writeIdx++
		}
	}
	s.failures = s.failures[:writeIdx]
}

func summarize(values []int64) LatencySnapshot {
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	var sum int64
	for _, v := range values {
		sum += v
	}
	return LatencySnapshot{
		MinMs: values[0],
		MaxMs: values[len(values)-1],
		AvgMs: float64(sum) / float64(len(values)),
		P50Ms: percentile(values, 50),
		P95Ms: percentile(values, 95),
		P99Ms: percentile(values, 99),
	}
}

func percentile(sortedValues []int64, pct float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sortedValues[0])
	}
	if pct >= 100 {
		return float64(sortedValues[len(sortedValues)-1])
	}

	index := (float64(len(sortedValues)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sortedValues) {
		return float64(sortedValues[lower])
	}
	weight := index - float64(lower)
	lo := float64(sortedValues[lower])
	hi := float64(sortedValues[upper])
	return lo + ((hi - lo) * weight)
}
