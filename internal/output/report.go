package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/torosent/vegasload/internal/metrics"
	"github.com/torosent/vegasload/internal/runner"
	"github.com/torosent/vegasload/internal/threshold"
)

// Report is everything printed at the end of a run.
type Report struct {
	RunID      string
	Result     runner.Result
	Stats      metrics.Stats
	Thresholds []threshold.Result
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, r Report) {
	fmt.Fprintln(w, "\n--- Vegas Slots Load Test Results ---")
	if r.RunID != "" {
		fmt.Fprintf(w, "Run ID:            %s\n", r.RunID)
	}
	fmt.Fprintf(w, "Duration:          %s\n", r.Stats.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Iterations:        %d\n", r.Result.Total)
	fmt.Fprintf(w, "  Failed:          %d\n", r.Result.Errors)
	fmt.Fprintf(w, "  Aborted:         %d\n", r.Result.Aborted)

	fmt.Fprintln(w, "\nTransactions:")
	if len(r.Stats.Transactions) == 0 {
		fmt.Fprintln(w, "  None")
	} else {
		writeTransactions(w, r.Stats.Transactions)
	}

	if len(r.Stats.StatusCodes) > 0 {
		fmt.Fprintln(w, "\nStatus Codes:")
		writeStatusBuckets(w, r.Stats.StatusCodes, "  ")
	}

	if len(r.Stats.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		writeErrors(w, r.Stats.Errors, "  ")
	}

	if len(r.Thresholds) > 0 {
		passed := 0
		for _, res := range r.Thresholds {
			if res.Pass {
				passed++
			}
		}
		fmt.Fprintf(w, "\nThresholds: %d/%d passed\n", passed, len(r.Thresholds))
		for _, res := range r.Thresholds {
			fmt.Fprintf(w, "  %s\n", res.Message)
		}
	}
}

func writeTransactions(w io.Writer, txns []metrics.TransactionStats) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  Name\tTotal\tPassed\tFailed\tMin\tMean\tP50\tP90\tP95\tP99\tMax\tRate/s\t")
	for _, t := range txns {
		fmt.Fprintf(tw, "  %s\t%d\t%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%.2f\t\n",
			t.Name, t.Total, t.Passed, t.Failed,
			latency(t.MinLatency), latency(t.MeanLatency),
			latency(t.P50Latency), latency(t.P90Latency), latency(t.P95Latency), latency(t.P99Latency),
			latency(t.MaxLatency), t.PerSecond,
		)
	}
	_ = tw.Flush()
}

func latency(d time.Duration) string {
	switch {
	case d <= 0:
		return "-"
	case d < time.Millisecond:
		return d.Round(time.Microsecond).String()
	default:
		return d.Round(100 * time.Microsecond).String()
	}
}

func writeStatusBuckets(w io.Writer, codes map[string]int, indent string) {
	rows := metrics.FlattenStatusCodes(codes)
	if len(rows) == 0 {
		fmt.Fprintf(w, "%sNone\n", indent)
		return
	}
	for _, row := range rows {
		fmt.Fprintf(w, "%s%s (%s): %d\n", indent, row.Code, row.Class, row.Count)
	}
}

func writeErrors(w io.Writer, errs map[string]int, indent string) {
	kinds := make([]string, 0, len(errs))
	for kind := range errs {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool {
		if errs[kinds[i]] == errs[kinds[j]] {
			return kinds[i] < kinds[j]
		}
		return errs[kinds[i]] > errs[kinds[j]]
	})
	for _, kind := range kinds {
		fmt.Fprintf(w, "%s%s: %d\n", indent, metrics.FriendlyErrorName(kind), errs[kind])
	}
}

type jsonIterations struct {
	Total   int64 `json:"total"`
	Failed  int64 `json:"failed"`
	Aborted int64 `json:"aborted"`
}

type jsonThreshold struct {
	Threshold string  `json:"threshold"`
	Actual    float64 `json:"actual"`
	Pass      bool    `json:"pass"`
	Message   string  `json:"message,omitempty"`
}

type jsonReport struct {
	RunID      string         `json:"run_id,omitempty"`
	Iterations jsonIterations `json:"iterations"`
	metrics.Stats
	Thresholds []jsonThreshold `json:"thresholds,omitempty"`
	Passed     bool            `json:"thresholds_passed"`
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, r Report) error {
	out := jsonReport{
		RunID: r.RunID,
		Iterations: jsonIterations{
			Total:   r.Result.Total,
			Failed:  r.Result.Errors,
			Aborted: r.Result.Aborted,
		},
		Stats:  r.Stats,
		Passed: threshold.AllPassed(r.Thresholds),
	}
	for _, res := range r.Thresholds {
		out.Thresholds = append(out.Thresholds, jsonThreshold{
			Threshold: res.Threshold.Raw,
			Actual:    res.Actual,
			Pass:      res.Pass,
			Message:   res.Message,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
