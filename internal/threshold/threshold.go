// Package threshold evaluates pass/fail assertions on transaction metrics.
package threshold

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/torosent/vegasload/internal/metrics"
)

// Threshold represents a performance assertion on one transaction.
type Threshold struct {
	Transaction string  // e.g. "Slot_Spin"
	Aggregate   string  // e.g. "p95", "avg", "fail_rate", "count"
	Operator    string  // "<", "<=", ">", ">=", "=="
	Value       float64 // The threshold value to compare against
	Raw         string  // Original threshold string for display
}

// Result represents the outcome of evaluating a threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
}

// Evaluator evaluates thresholds against collected metrics.
type Evaluator struct {
	thresholds []Threshold
}

// NewEvaluator creates a new threshold evaluator.
func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
	}
}

// Evaluate checks all thresholds against the provided stats.
func (e *Evaluator) Evaluate(stats metrics.Stats) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}

	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		results = append(results, evaluateOne(t, stats))
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}

func evaluateOne(t Threshold, stats metrics.Stats) Result {
	actual, err := extractValue(t, stats)
	if err != nil {
		return Result{
			Threshold: t,
			Pass:      false,
			Message:   fmt.Sprintf("✗ %s: error: %v", t.Raw, err),
		}
	}

	pass := compareValues(actual, t.Operator, t.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}

	return Result{
		Threshold: t,
		Actual:    actual,
		Pass:      pass,
		Message:   fmt.Sprintf("%s %s: %.2f %s %.2f", status, t.Raw, actual, t.Operator, t.Value),
	}
}

// transaction:aggregate operator value
var thresholdPattern = regexp.MustCompile(`^([A-Za-z0-9_.\-]+):([a-z0-9_]+)\s*(<=|>=|==|<|>)\s*([0-9]*\.?[0-9]+)$`)

var aggregates = map[string]bool{
	"p50": true, "p90": true, "p95": true, "p99": true,
	"avg": true, "min": true, "max": true,
	"fail_rate": true, "fail_count": true,
	"count": true, "rate": true,
}

// Parse reads one "transaction:aggregate operator value" assertion, e.g.
// "Slot_Spin:p95 < 500". Latency aggregates (p50, p90, p95, p99, avg, min,
// max) are in milliseconds; fail_rate is the failed share of samples,
// fail_count and count are sample counts and rate is samples per second.
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	matches := thresholdPattern.FindStringSubmatch(s)
	if matches == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected format: transaction:aggregate operator value, e.g., 'Slot_Spin:p95 < 500')", s)
	}

	aggregate := matches[2]
	if !aggregates[aggregate] {
		return Threshold{}, fmt.Errorf("unsupported aggregate: %q (supported: p50, p90, p95, p99, avg, min, max, fail_rate, fail_count, count, rate)", aggregate)
	}

	value, err := strconv.ParseFloat(matches[4], 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", matches[4], err)
	}

	return Threshold{
		Transaction: matches[1],
		Aggregate:   aggregate,
		Operator:    matches[3],
		Value:       value,
		Raw:         s,
	}, nil
}

// ParseMultiple parses multiple threshold strings, reporting every invalid one.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var errs []string

	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			errs = append(errs, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(errs, "; "))
	}

	return result, nil
}

func extractValue(t Threshold, stats metrics.Stats) (float64, error) {
	ts, ok := stats.Transaction(t.Transaction)
	if !ok {
		return 0, fmt.Errorf("no samples for transaction %q", t.Transaction)
	}

	switch t.Aggregate {
	case "p50":
		return ts.P50LatencyMs, nil
	case "p90":
		return ts.P90LatencyMs, nil
	case "p95":
		return ts.P95LatencyMs, nil
	case "p99":
		return ts.P99LatencyMs, nil
	case "avg":
		return ts.MeanLatencyMs, nil
	case "min":
		return ts.MinLatencyMs, nil
	case "max":
		return ts.MaxLatencyMs, nil
	case "fail_rate":
		return ts.FailRate, nil
	case "fail_count":
		return float64(ts.Failed), nil
	case "count":
		return float64(ts.Total), nil
	case "rate":
		return ts.PerSecond, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q", t.Aggregate)
	}
}

func compareValues(actual float64, operator string, expected float64) bool {
	epsilon := 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}
