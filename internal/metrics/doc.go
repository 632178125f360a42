// Package metrics aggregates scenario transaction results.
//
// The host reports every closed transaction and every HTTP response status
// through the [Recorder] interface. Two recorders are provided and can be
// combined with [Recorders]:
//
//   - [Collector] keeps an HDR histogram per transaction name and produces
//     the end-of-test [Stats] (min/max/mean, P50/P90/P95/P99, pass/fail
//     counts, rate and fail rate).
//   - [PrometheusRecorder] exports the same results as
//     vegasload_transaction_duration_seconds, vegasload_transactions_total
//     and vegasload_http_responses_total.
//
// Usage:
//
//	collector := metrics.NewCollector()
//	prom, err := metrics.NewPrometheusRecorder(prometheus.DefaultRegisterer)
//	...
//	rec := metrics.Recorders{collector, prom}
//	rec.RecordTransaction("Slot_Spin", latency, err)
//	stats := collector.Stats(elapsed)
//
// Both recorders are safe for concurrent use.
package metrics
