package output

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/torosent/vegasload/internal/metrics"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestProgressLine(t *testing.T) {
	c := metrics.NewCollector()
	c.RecordTransaction("Vegas_Slots_Complete_Session", time.Second, nil)
	c.RecordTransaction("Vegas_Slots_Complete_Session", time.Second, errors.New("boom"))
	for i := 0; i < 5; i++ {
		c.RecordTransaction("Slot_Spin", 10*time.Millisecond, nil)
	}

	line := progressLine(c.Stats(3*time.Second), "Vegas_Slots_Complete_Session")
	for _, want := range []string{
		"Elapsed: 3s",
		"Iterations: 2 (1 failed)",
		"Transactions: 7 (1 failed)",
		"Top: Slot_Spin 5",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("progress line %q missing %q", line, want)
		}
	}
}

func TestProgressLineEmpty(t *testing.T) {
	line := progressLine(metrics.NewCollector().Stats(0), "Vegas_Slots_Complete_Session")
	if !strings.Contains(line, "Iterations: 0 (0 failed)") {
		t.Errorf("line = %q", line)
	}
	if strings.Contains(line, "Top:") {
		t.Errorf("empty stats should not name a top transaction: %q", line)
	}
}

func TestBusiestTransactionTieKeepsFirst(t *testing.T) {
	c := metrics.NewCollector()
	c.RecordTransaction("Navigate_To_Lobby", time.Millisecond, nil)
	c.RecordTransaction("Vegas_Slots_Game_Load", time.Millisecond, nil)
	top, ok := busiestTransaction(c.Stats(time.Second))
	if !ok || top.Name != "Navigate_To_Lobby" {
		t.Fatalf("busiestTransaction() = %q, %v", top.Name, ok)
	}
}

func TestProgressReporterWritesUpdates(t *testing.T) {
	c := metrics.NewCollector()
	c.RecordTransaction("Slot_Spin", 20*time.Millisecond, nil)

	var buf syncBuffer
	reporter := NewProgressReporter(c, "Vegas_Slots_Complete_Session", 10*time.Millisecond, &buf)
	reporter.Start()
	reporter.Start()
	time.Sleep(60 * time.Millisecond)
	reporter.Stop()
	reporter.Stop()

	out := buf.String()
	if !strings.HasPrefix(out, "\r") || !strings.Contains(out, "Transactions: 1") {
		t.Errorf("progress output = %q", out)
	}
}

func TestProgressReporterStopWithoutStart(t *testing.T) {
	reporter := NewProgressReporter(metrics.NewCollector(), "", 0, nil)
	reporter.Stop()
}
