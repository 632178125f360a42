package output

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/torosent/vegasload/internal/metrics"
	"github.com/torosent/vegasload/internal/runner"
	"github.com/torosent/vegasload/internal/threshold"
)

func sampleReport(t *testing.T) Report {
	t.Helper()
	c := metrics.NewCollector()
	c.RecordTransaction("Vegas_Slots_Complete_Session", 2*time.Second, nil)
	c.RecordTransaction("Vegas_Slots_Complete_Session", 3*time.Second, context.DeadlineExceeded)
	for i := 1; i <= 10; i++ {
		c.RecordTransaction("Slot_Spin", time.Duration(i)*time.Millisecond, nil)
		c.RecordStatus(200)
	}
	c.RecordStatus(503)

	ths, err := threshold.ParseMultiple([]string{"Slot_Spin:p95 < 500", "Vegas_Slots_Complete_Session:fail_rate < 0.1"})
	if err != nil {
		t.Fatalf("ParseMultiple() error = %v", err)
	}
	stats := c.Stats(5 * time.Second)
	return Report{
		RunID:      "01JABCDEF",
		Result:     runner.Result{Total: 3, Errors: 1, Aborted: 1, Duration: 5 * time.Second},
		Stats:      stats,
		Thresholds: threshold.NewEvaluator(ths).Evaluate(stats),
	}
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, sampleReport(t))
	out := buf.String()

	for _, want := range []string{
		"Run ID:            01JABCDEF",
		"Iterations:        3",
		"Aborted:         1",
		"Vegas_Slots_Complete_Session",
		"Slot_Spin",
		"200 (2xx): 10",
		"503 (5xx): 1",
		"Context deadline exceeded: 1",
		"Thresholds: 1/2 passed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Vegas_Slots_Complete_Session") > strings.Index(out, "Slot_Spin") {
		t.Error("transactions are not listed in first-recorded order")
	}
}

func TestPrintReportEmpty(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, Report{})
	out := buf.String()
	if !strings.Contains(out, "None") {
		t.Errorf("expected empty transaction table marker:\n%s", out)
	}
	for _, unwanted := range []string{"Run ID", "Status Codes", "Errors:", "Thresholds"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("empty report contains %q", unwanted)
		}
	}
}

func TestPrintJSONReport(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintJSONReport(&buf, sampleReport(t)); err != nil {
		t.Fatalf("PrintJSONReport() error = %v", err)
	}
	doc := buf.Bytes()

	checks := map[string]string{
		"run_id":                  "01JABCDEF",
		"iterations.total":        "3",
		"iterations.failed":       "1",
		"iterations.aborted":      "1",
		"duration_ms":             "5000",
		"transactions.#":          "2",
		"transactions.1.name":     "Slot_Spin",
		"transactions.1.total":    "10",
		"transactions.0.failed":   "1",
		"status_codes.503":        "1",
		"thresholds.#":            "2",
		"thresholds.0.pass":       "true",
		"thresholds.1.threshold":  "Vegas_Slots_Complete_Session:fail_rate < 0.1",
		"thresholds_passed":       "false",
	}
	for path, want := range checks {
		if got := gjson.GetBytes(doc, path).String(); got != want {
			t.Errorf("%s = %q, want %q", path, got, want)
		}
	}
	if gjson.GetBytes(doc, "transactions.1.p95_latency_ms").Float() <= 0 {
		t.Error("p95_latency_ms missing")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestPrintJSONReportWriteError(t *testing.T) {
	if err := PrintJSONReport(failingWriter{}, Report{}); err == nil {
		t.Fatal("expected write error")
	}
}

func TestLatencyFormatting(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "-"},
		{1500 * time.Nanosecond, "2µs"},
		{12345 * time.Microsecond, "12.3ms"},
		{2 * time.Second, "2s"},
	}
	for _, tt := range tests {
		if got := latency(tt.in); got != tt.want {
			t.Errorf("latency(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
