package metrics

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var histogramBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// PrometheusRecorder exports transaction results as Prometheus metrics.
type PrometheusRecorder struct {
	duration  *prometheus.HistogramVec
	total     *prometheus.CounterVec
	responses *prometheus.CounterVec
}

// NewPrometheusRecorder registers the vegasload collectors with reg. If
// they are already registered the existing collectors are reused.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vegasload",
			Name:      "transaction_duration_seconds",
			Help:      "Duration of scenario transactions",
			Buckets:   histogramBuckets,
		}, []string{"transaction", "result"}),
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vegasload",
			Name:      "transactions_total",
			Help:      "Count of closed scenario transactions",
		}, []string{"transaction", "result"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vegasload",
			Name:      "http_responses_total",
			Help:      "Count of HTTP responses by status code",
		}, []string{"code"}),
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{r.duration, r.total, r.responses} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return nil, fmt.Errorf("register metrics: %w", err)
			}
			switch existing := already.ExistingCollector.(type) {
			case *prometheus.HistogramVec:
				r.duration = existing
			case *prometheus.CounterVec:
				if c == r.total {
					r.total = existing
				} else {
					r.responses = existing
				}
			}
		}
	}
	return r, nil
}

func (r *PrometheusRecorder) RecordTransaction(name string, latency time.Duration, err error) {
	labels := prometheus.Labels{"transaction": name, "result": "pass"}
	if err != nil {
		labels["result"] = "fail"
	}
	r.total.With(labels).Inc()
	r.duration.With(labels).Observe(latency.Seconds())
}

func (r *PrometheusRecorder) RecordStatus(code int) {
	r.responses.With(prometheus.Labels{"code": strconv.Itoa(code)}).Inc()
}
