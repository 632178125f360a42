package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/torosent/vegasload/internal/metrics"
)

// ProgressReporter displays real-time progress updates.
type ProgressReporter struct {
	collector    *metrics.Collector
	iterationTxn string
	interval     time.Duration
	done         chan struct{}
	finished     chan struct{}
	writer       io.Writer
	active       int32
	start        time.Time
}

// NewProgressReporter creates a progress reporter that updates at the given
// interval. Closed transactions named iterationTxn are counted as completed
// iterations.
func NewProgressReporter(collector *metrics.Collector, iterationTxn string, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &ProgressReporter{
		collector:    collector,
		iterationTxn: iterationTxn,
		interval:     interval,
		done:         make(chan struct{}),
		finished:     make(chan struct{}),
		writer:       writer,
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	p.start = time.Now()
	go p.run()
}

// Stop halts progress updates.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		<-p.finished
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			elapsed := time.Since(p.start)
			fmt.Fprint(p.writer, "\r"+progressLine(p.collector.Stats(elapsed), p.iterationTxn))
		case <-p.done:
			return
		}
	}
}

func progressLine(stats metrics.Stats, iterationTxn string) string {
	var total, failed int64
	for _, t := range stats.Transactions {
		total += t.Total
		failed += t.Failed
	}

	var done, doneFailed int64
	if it, ok := stats.Transaction(iterationTxn); ok {
		done, doneFailed = it.Total, it.Failed
	}

	line := fmt.Sprintf("Elapsed: %s | Iterations: %d (%d failed) | Transactions: %d (%d failed)",
		stats.Duration.Round(time.Second), done, doneFailed, total, failed)
	if top, ok := busiestTransaction(stats); ok {
		line += fmt.Sprintf(" | Top: %s %d (P95 %.1fms)", top.Name, top.Total, top.P95LatencyMs)
	}
	return line
}

// busiestTransaction picks the transaction with the most samples; ties go
// to the one recorded first.
func busiestTransaction(stats metrics.Stats) (metrics.TransactionStats, bool) {
	if len(stats.Transactions) == 0 {
		return metrics.TransactionStats{}, false
	}
	top := stats.Transactions[0]
	for _, t := range stats.Transactions[1:] {
		if t.Total > top.Total {
			top = t
		}
	}
	return top, true
}
