package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/torosent/vegasload/internal/casino"
	"github.com/torosent/vegasload/internal/config"
	"github.com/torosent/vegasload/internal/metrics"
	"github.com/torosent/vegasload/internal/runner"
)

func newCasino(t *testing.T) (h *casino.Handler, host, port string) {
	t.Helper()
	h = casino.NewHandler(zaptest.NewLogger(t))
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	return h, u.Hostname(), u.Port()
}

func baseArgs(host, port string) []string {
	return []string{
		"--server-host", host,
		"--port", port,
		"--vusers", "2",
		"--iterations", "2",
		"--think-time", "1ms",
		"--seed", "42",
		"--log-level", "off",
	}
}

func TestRunJSONReport(t *testing.T) {
	stub, host, port := newCasino(t)
	args := append(baseArgs(host, port),
		"--json-output",
		"--threshold", "Vegas_Slots_Complete_Session:count == 2",
		"--threshold", "Slot_Spin:fail_count == 0",
	)

	var stdout bytes.Buffer
	if err := run(context.Background(), args, &stdout); err != nil {
		t.Fatalf("run() error = %v\n%s", err, stdout.String())
	}

	doc := stdout.Bytes()
	if got := gjson.GetBytes(doc, "iterations.total").Int(); got != 2 {
		t.Errorf("iterations.total = %d, want 2", got)
	}
	if got := gjson.GetBytes(doc, "run_id").String(); len(got) != 26 {
		t.Errorf("run_id = %q, want a ULID", got)
	}
	if !gjson.GetBytes(doc, "thresholds_passed").Bool() {
		t.Errorf("thresholds did not pass: %s", gjson.GetBytes(doc, "thresholds"))
	}
	if got := gjson.GetBytes(doc, `transactions.#(name=="Slot_Spin").total`).Int(); got < 2 {
		t.Errorf("Slot_Spin total = %d, want at least one spin per iteration", got)
	}
	if got := gjson.GetBytes(doc, "status_codes.200").Int(); got == 0 {
		t.Errorf("no 200 responses recorded: %s", gjson.GetBytes(doc, "status_codes"))
	}

	counts := stub.Counts()
	if counts.Rejected != 0 {
		t.Errorf("casino rejected %d spins", counts.Rejected)
	}
	if counts.Pages != 6 {
		t.Errorf("casino served %d pages, want 3 per iteration", counts.Pages)
	}
	if counts.Spins != gjson.GetBytes(doc, `transactions.#(name=="Slot_Spin").total`).Int() {
		t.Errorf("casino spins = %d, report disagrees", counts.Spins)
	}
	if counts.Resources != 3*counts.Spins {
		t.Errorf("casino served %d icons for %d spins", counts.Resources, counts.Spins)
	}
	if counts.Tagged != counts.Pages+counts.Spins {
		t.Errorf("tagged requests = %d, want pages+spins = %d", counts.Tagged, counts.Pages+counts.Spins)
	}
}

func TestRunTextReport(t *testing.T) {
	_, host, port := newCasino(t)
	var stdout bytes.Buffer
	if err := run(context.Background(), baseArgs(host, port), &stdout); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	out := stdout.String()
	for _, want := range []string{"Vegas Slots Load Test Results", "Navigate_To_Lobby", "Navigate_Back_To_Lobby"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestRunThresholdFailure(t *testing.T) {
	_, host, port := newCasino(t)
	args := append(baseArgs(host, port), "--json-output", "--threshold", "Slot_Spin:count > 100000")

	err := run(context.Background(), args, io.Discard)
	if !errors.Is(err, errThresholdsFailed) {
		t.Fatalf("run() error = %v, want %v", err, errThresholdsFailed)
	}
}

func TestRunReportsFailedIterations(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	u, _ := url.Parse(server.URL)
	server.Close()

	args := append(baseArgs(u.Hostname(), u.Port()), "--json-output", "--timeout", "1s")
	var stdout bytes.Buffer
	err := run(context.Background(), args, &stdout)
	if err == nil || !strings.Contains(err.Error(), "iterations failed") {
		t.Fatalf("run() error = %v, want failed iterations", err)
	}
	if got := gjson.GetBytes(stdout.Bytes(), "iterations.failed").Int(); got != 2 {
		t.Errorf("iterations.failed = %d, want 2", got)
	}
}

func TestRunCancelled(t *testing.T) {
	_, host, port := newCasino(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	args := []string{"--server-host", host, "--port", port, "--log-level", "off", "--json-output"}
	done := make(chan error, 1)
	go func() { done <- run(ctx, args, io.Discard) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancellation")
	}
}

func TestRunConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"invalid vusers", []string{"--vusers", "0"}},
		{"invalid threshold", []string{"--threshold", "Slot_Spin:p42 < 1"}},
		{"invalid log level", []string{"--log-level", "loud"}},
		{"unknown flag", []string{"--jackpot"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := run(context.Background(), tt.args, io.Discard); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRunHelp(t *testing.T) {
	if err := run(context.Background(), []string{"--help"}, io.Discard); err != nil {
		t.Fatalf("run(--help) error = %v", err)
	}
}

func TestServeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := metrics.NewPrometheusRecorder(reg)
	if err != nil {
		t.Fatalf("NewPrometheusRecorder() error = %v", err)
	}
	rec.RecordTransaction("Slot_Spin", 15*time.Millisecond, nil)

	addr, stop, err := serveMetrics("127.0.0.1:0", reg, zap.NewNop())
	if err != nil {
		t.Fatalf("serveMetrics() error = %v", err)
	}
	defer stop()

	resp, err := http.Get("http://" + addr + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `vegasload_transactions_total{result="pass",transaction="Slot_Spin"} 1`) {
		t.Errorf("metrics body missing spin counter:\n%s", body)
	}
}

func TestToRunnerArrivalModel(t *testing.T) {
	tests := []struct {
		input config.ArrivalModel
		want  runner.ArrivalModel
	}{
		{config.ArrivalModelUniform, runner.ArrivalModelUniform},
		{config.ArrivalModelPoisson, runner.ArrivalModelPoisson},
		{"POISSON", runner.ArrivalModelPoisson},
		{"unknown", runner.ArrivalModelUniform},
	}
	for _, tt := range tests {
		if got := toRunnerArrivalModel(tt.input); got != tt.want {
			t.Errorf("toRunnerArrivalModel(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestToRunnerLoadPatterns(t *testing.T) {
	if toRunnerLoadPatterns(nil) != nil {
		t.Fatal("nil patterns should map to nil")
	}
	got := toRunnerLoadPatterns([]config.LoadPattern{
		{Name: "warmup", Type: config.LoadPatternTypeRamp, FromRate: 1, ToRate: 10, Duration: time.Minute},
		{Name: "steps", Type: config.LoadPatternTypeStep, Steps: []config.LoadStep{{Rate: 5, Duration: 30 * time.Second}}},
	})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Type != runner.LoadPatternTypeRamp || got[0].FromRate != 1 || got[0].ToRate != 10 || got[0].Duration != time.Minute {
		t.Errorf("ramp = %+v", got[0])
	}
	if len(got[1].Steps) != 1 || got[1].Steps[0].Rate != 5 || got[1].Steps[0].Duration != 30*time.Second {
		t.Errorf("steps = %+v", got[1].Steps)
	}
}

func TestRetryPolicy(t *testing.T) {
	policy := newRetryPolicy(2)
	if policy.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", policy.MaxAttempts)
	}
	if policy.ShouldRetry(context.Canceled) || policy.ShouldRetry(context.DeadlineExceeded) {
		t.Error("cancelled iterations must not be retried")
	}
	if !policy.ShouldRetry(errors.New("connection reset")) {
		t.Error("transport failures should be retried")
	}
	if policy.ShouldRetry(nil) {
		t.Error("nil error should not be retried")
	}
}

func TestRetryDelay(t *testing.T) {
	noJitter := func(time.Duration) time.Duration { return 0 }
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, baseRetryDelay},
		{1, baseRetryDelay},
		{3, 4 * baseRetryDelay},
		{10, maxRetryDelay},
		{100, maxRetryDelay},
	}
	for _, tt := range tests {
		if got := retryDelay(tt.attempt, noJitter); got != tt.want {
			t.Errorf("retryDelay(%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}
	for i := 0; i < 50; i++ {
		if d := jitter(time.Second); d < 0 || d >= time.Second {
			t.Fatalf("jitter out of range: %s", d)
		}
	}
	if jitter(0) != 0 {
		t.Error("jitter(0) != 0")
	}
}
