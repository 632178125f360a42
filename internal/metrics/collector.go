package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Recorder receives transaction results from the host.
type Recorder interface {
	RecordTransaction(name string, latency time.Duration, err error)
	RecordStatus(code int)
}

// Recorders fans every call out to each recorder in order.
type Recorders []Recorder

func (rs Recorders) RecordTransaction(name string, latency time.Duration, err error) {
	for _, r := range rs {
		r.RecordTransaction(name, latency, err)
	}
}

func (rs Recorders) RecordStatus(code int) {
	for _, r := range rs {
		r.RecordStatus(code)
	}
}

// Collector records per-transaction metrics in a thread-safe manner.
type Collector struct {
	mu           sync.Mutex
	txns         map[string]*txnMetrics
	order        []string
	statusCodes  map[int]int64
	errorsByType map[string]int64
}

type txnMetrics struct {
	hist       *hdrhistogram.Histogram
	successes  int64
	failures   int64
	minLatency time.Duration
	maxLatency time.Duration
	sumLatency time.Duration
}

// TransactionStats are the aggregated results of one named transaction.
type TransactionStats struct {
	Name        string        `json:"name"`
	Total       int64         `json:"total"`
	Passed      int64         `json:"passed"`
	Failed      int64         `json:"failed"`
	MinLatency  time.Duration `json:"-"`
	MaxLatency  time.Duration `json:"-"`
	MeanLatency time.Duration `json:"-"`
	P50Latency  time.Duration `json:"-"`
	P90Latency  time.Duration `json:"-"`
	P95Latency  time.Duration `json:"-"`
	P99Latency  time.Duration `json:"-"`
	PerSecond   float64       `json:"per_second"`
	FailRate    float64       `json:"fail_rate"`

	// JSON-friendly millisecond fields.
	MinLatencyMs  float64 `json:"min_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms"`
	MeanLatencyMs float64 `json:"mean_latency_ms"`
	P50LatencyMs  float64 `json:"p50_latency_ms"`
	P90LatencyMs  float64 `json:"p90_latency_ms"`
	P95LatencyMs  float64 `json:"p95_latency_ms"`
	P99LatencyMs  float64 `json:"p99_latency_ms"`
}

// Stats represents aggregated metrics.
type Stats struct {
	Transactions []TransactionStats `json:"transactions"`
	Duration     time.Duration      `json:"-"`
	DurationMs   float64            `json:"duration_ms"`
	StatusCodes  map[string]int     `json:"status_codes,omitempty"`
	Errors       map[string]int     `json:"errors,omitempty"`
}

// Transaction returns the stats of the named transaction.
func (s Stats) Transaction(name string) (TransactionStats, bool) {
	for _, t := range s.Transactions {
		if t.Name == name {
			return t, true
		}
	}
	return TransactionStats{}, false
}

func NewCollector() *Collector {
	return &Collector{
		txns:         make(map[string]*txnMetrics),
		statusCodes:  make(map[int]int64),
		errorsByType: make(map[string]int64),
	}
}

// RecordTransaction records one closed transaction. A non-nil err marks it failed.
func (c *Collector) RecordTransaction(name string, latency time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.txns[name]
	if !ok {
		// Track latencies from 1µs up to 10 minutes with 3 significant figures.
		t = &txnMetrics{hist: hdrhistogram.New(1, 600_000_000, 3)}
		c.txns[name] = t
		c.order = append(c.order, name)
	}

	if latency > 0 {
		us := latency.Microseconds()
		if us < t.hist.LowestTrackableValue() {
			us = t.hist.LowestTrackableValue()
		}
		if us > t.hist.HighestTrackableValue() {
			us = t.hist.HighestTrackableValue()
		}
		_ = t.hist.RecordValue(us)
	}
	t.sumLatency += latency
	if t.successes+t.failures == 0 || latency < t.minLatency {
		t.minLatency = latency
	}
	if latency > t.maxLatency {
		t.maxLatency = latency
	}

	if err == nil {
		t.successes++
		return
	}
	t.failures++
	c.errorsByType[ErrorKind(err)]++
}

// RecordStatus counts one HTTP response status code.
func (c *Collector) RecordStatus(code int) {
	c.mu.Lock()
	c.statusCodes[code]++
	c.mu.Unlock()
}

// Stats computes and returns current aggregated statistics. Transactions
// are listed in the order they were first recorded.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{
		Duration:     elapsed,
		DurationMs:   toMs(elapsed),
		Transactions: make([]TransactionStats, 0, len(c.order)),
	}
	for _, name := range c.order {
		stats.Transactions = append(stats.Transactions, c.txns[name].stats(name, elapsed))
	}

	if len(c.statusCodes) > 0 {
		stats.StatusCodes = make(map[string]int, len(c.statusCodes))
		for code, n := range c.statusCodes {
			stats.StatusCodes[strconv.Itoa(code)] = int(n)
		}
	}
	if len(c.errorsByType) > 0 {
		stats.Errors = make(map[string]int, len(c.errorsByType))
		for k, v := range c.errorsByType {
			stats.Errors[k] = int(v)
		}
	}
	return stats
}

func (t *txnMetrics) stats(name string, elapsed time.Duration) TransactionStats {
	total := t.successes + t.failures
	s := TransactionStats{
		Name:       name,
		Total:      total,
		Passed:     t.successes,
		Failed:     t.failures,
		MinLatency: t.minLatency,
		MaxLatency: t.maxLatency,
	}
	if total > 0 {
		s.MeanLatency = time.Duration(int64(t.sumLatency) / total)
		s.FailRate = float64(t.failures) / float64(total)
	}
	if t.hist.TotalCount() > 0 {
		s.P50Latency = time.Duration(t.hist.ValueAtQuantile(50)) * time.Microsecond
		s.P90Latency = time.Duration(t.hist.ValueAtQuantile(90)) * time.Microsecond
		s.P95Latency = time.Duration(t.hist.ValueAtQuantile(95)) * time.Microsecond
		s.P99Latency = time.Duration(t.hist.ValueAtQuantile(99)) * time.Microsecond
	}
	if elapsed > 0 && total > 0 {
		s.PerSecond = float64(total) / elapsed.Seconds()
	}

	s.MinLatencyMs = toMs(s.MinLatency)
	s.MaxLatencyMs = toMs(s.MaxLatency)
	s.MeanLatencyMs = toMs(s.MeanLatency)
	s.P50LatencyMs = toMs(s.P50Latency)
	s.P90LatencyMs = toMs(s.P90Latency)
	s.P95LatencyMs = toMs(s.P95Latency)
	s.P99LatencyMs = toMs(s.P99Latency)
	return s
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
