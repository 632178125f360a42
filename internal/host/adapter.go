package host

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/torosent/vegasload/internal/httpclient"
	"github.com/torosent/vegasload/internal/metrics"
	"github.com/torosent/vegasload/internal/scenario"
	"github.com/torosent/vegasload/internal/tracing"
)

// Options configure an Adapter. Client and Builder are shared by all
// virtual users; Recorder and Tracing must be safe for concurrent use.
type Options struct {
	Client   *http.Client
	Builder  *httpclient.RequestBuilder
	Recorder metrics.Recorder
	Tracing  *tracing.Provider
	Logger   *zap.Logger
}

// Adapter executes scenario actions over HTTP for one virtual user and
// measures its transactions.
type Adapter struct {
	vu        int
	client    *http.Client
	builder   *httpclient.RequestBuilder
	recorder  metrics.Recorder
	tracer    trace.Tracer
	propagate bool
	logger    *zap.Logger
}

var _ scenario.Host = (*Adapter)(nil)

// NewAdapter creates the host for virtual user vu.
func NewAdapter(vu int, opts Options) *Adapter {
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	builder := opts.Builder
	if builder == nil {
		builder = httpclient.NewRequestBuilder("")
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = metrics.Recorders(nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		vu:        vu,
		client:    client,
		builder:   builder,
		recorder:  recorder,
		tracer:    opts.Tracing.Tracer(),
		propagate: opts.Tracing.ShouldPropagate(),
		logger:    logger.With(zap.Int("vu", vu)),
	}
}

// BeginTransaction starts a span and a timer for name. The span is a child
// of any transaction already carried by ctx.
func (a *Adapter) BeginTransaction(ctx context.Context, name string) (context.Context, scenario.Transaction) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := tracing.StartTransactionSpan(ctx, a.tracer, name, a.vu)
	return ctx, &transaction{
		name:     name,
		start:    time.Now(),
		span:     span,
		recorder: a.recorder,
	}
}

// Execute sends the action's request, discards the response body, records
// the status code and then loads the action's resources. Only transport
// errors are returned; every status code counts as a response.
func (a *Adapter) Execute(ctx context.Context, action scenario.Action) error {
	req, err := a.builder.Build(ctx, action)
	if err != nil {
		return fmt.Errorf("build %s: %w", action.Name, err)
	}
	if err := a.send(ctx, action.Name, req); err != nil {
		return err
	}
	for _, res := range action.Resources {
		req, err := a.builder.BuildResource(ctx, res, action.URL)
		if err != nil {
			return fmt.Errorf("build resource %s: %w", res, err)
		}
		if err := a.send(ctx, action.Name, req); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) send(ctx context.Context, name string, req *http.Request) error {
	ctx, span := tracing.StartRequestSpan(ctx, a.tracer, name, req.Method, req.URL.String())
	req = req.WithContext(ctx)
	if a.propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		tracing.EndSpan(span, err)
		a.logger.Debug("request failed",
			zap.String("action", name),
			zap.String("url", req.URL.String()),
			zap.Error(err),
		)
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Redacted(), err)
	}
	_, drainErr := io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	a.recorder.RecordStatus(resp.StatusCode)
	a.logger.Debug("response",
		zap.String("action", name),
		zap.String("url", req.URL.String()),
		zap.Int("status", resp.StatusCode),
	)

	if drainErr != nil {
		tracing.EndSpan(span, drainErr, attribute.Int("http.response.status_code", resp.StatusCode))
		return fmt.Errorf("read %s: %w", req.URL.Redacted(), drainErr)
	}
	tracing.EndSpan(span, nil, attribute.Int("http.response.status_code", resp.StatusCode))
	return nil
}

type transaction struct {
	name     string
	start    time.Time
	span     trace.Span
	recorder metrics.Recorder
	ended    bool
}

// End records the transaction once; later calls are ignored.
func (t *transaction) End(err error) {
	if t.ended {
		return
	}
	t.ended = true
	t.recorder.RecordTransaction(t.name, time.Since(t.start), err)
	tracing.EndSpan(t.span, err)
}
