package scenario

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/torosent/vegasload/internal/correlation"
	"github.com/torosent/vegasload/internal/params"
	"github.com/torosent/vegasload/internal/traceheader"
)

const (
	lobbyThinkUnits = 2
	slotsThinkUnits = 3

	sessionIDPrefix = "vegas_session"
	spinIDPrefix    = "spin"
)

// Runner runs the scenario for one virtual user. It is not safe for
// concurrent use; every virtual user gets its own Runner.
type Runner struct {
	opts   Options
	host   Host
	inputs params.Inputs
	gen    *params.Generator
	corr   *correlation.Context
	logger *zap.Logger

	session     params.Session
	initialized bool
	state       State
}

// New creates the runner for virtual user userID. Inputs are resolved into a
// session on the first Run.
func New(userID int, in params.Inputs, host Host, opts Options) *Runner {
	opts.normalize()
	gen := params.NewGenerator(userID, opts.Seed)
	return &Runner{
		opts:   opts,
		host:   host,
		inputs: in,
		gen:    gen,
		corr:   correlation.New(userID, gen),
		logger: opts.Logger.With(zap.Int("vu", userID)),
	}
}

// Session returns the virtual user's session. It is the zero value until
// the first Run has passed Init.
func (r *Runner) Session() params.Session {
	return r.session
}

// State returns the last state entered.
func (r *Runner) State() State {
	return r.state
}

// Close marks the end of the virtual user.
func (r *Runner) Close() error {
	r.logger.Info("virtual user ending")
	return nil
}

// Run executes one scenario iteration inside the Vegas_Slots_Complete_Session
// transaction. On failure the returned Outcome carries ExitFailure and the
// error is a *StepError or wraps the context's error.
func (r *Runner) Run(ctx context.Context) (Outcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if r.host == nil {
		return Outcome{Code: ExitFailure}, errors.New("scenario: host is not configured")
	}

	ctx, session := r.host.BeginTransaction(ctx, TxnSession)
	out, err := r.run(ctx)
	session.End(err)
	if err != nil {
		out.Code = ExitFailure
		r.logger.Warn("scenario iteration failed",
			zap.Stringer("state", r.state),
			zap.Int("spins", out.Spins),
			zap.Error(err),
		)
		return out, err
	}
	return out, nil
}

func (r *Runner) run(ctx context.Context) (Outcome, error) {
	var out Outcome

	if err := r.enter(ctx, StateInit); err != nil {
		return out, err
	}
	r.initialize()
	iter := r.gen.NextIteration()
	out.SessionCorrelationID = r.corr.NewID(sessionIDPrefix)
	r.logger.Debug("iteration data",
		zap.String("correlation_id", out.SessionCorrelationID),
		zap.Int("bet_amount", iter.BetAmount),
		zap.Bool("win", iter.IsWin),
		zap.Int("balance", iter.Balance),
	)

	lobby := r.url(pathLobby)
	slots := r.url(pathSlots)

	if err := r.enter(ctx, StateLobbyNav); err != nil {
		return out, err
	}
	if err := r.navigate(ctx, TxnLobby, "Lobby_Page", lobby, ""); err != nil {
		return out, err
	}
	if err := r.think(ctx, lobbyThinkUnits); err != nil {
		return out, err
	}

	if err := r.enter(ctx, StateSlotsNav); err != nil {
		return out, err
	}
	if err := r.navigate(ctx, TxnSlots, "Slots_Game", slots, lobby); err != nil {
		return out, err
	}
	if err := r.think(ctx, slotsThinkUnits); err != nil {
		return out, err
	}

	if err := r.enter(ctx, StateSpinning); err != nil {
		return out, err
	}
	spins := r.gen.SpinCount()
	for i := 1; i <= spins; i++ {
		if err := r.checkpoint(ctx); err != nil {
			return out, err
		}
		if err := r.spin(ctx, i, iter, slots); err != nil {
			return out, err
		}
		out.Spins++
		if err := r.think(ctx, r.gen.ThinkTime()); err != nil {
			return out, err
		}
	}

	if err := r.enter(ctx, StateReturnNav); err != nil {
		return out, err
	}
	if err := r.navigate(ctx, TxnReturn, "Return_To_Lobby", lobby, slots); err != nil {
		return out, err
	}

	if err := r.enter(ctx, StateDone); err != nil {
		return out, err
	}
	out.Code = ExitSuccess
	return out, nil
}

func (r *Runner) initialize() {
	if r.initialized {
		return
	}
	r.logger.Info("virtual user starting")

	session, notices := r.gen.Initialize(r.inputs)
	for _, n := range notices {
		r.logger.Info("configuration defaulted", zap.String("field", n.Field), zap.String("value", n.Value))
	}
	r.session = session
	r.initialized = true

	r.logger.Info("test initialized",
		zap.String("username", session.Username),
		zap.String("server_host", session.ServerHost),
		zap.String("test_name", session.TestName),
	)
}

// enter moves the machine to next unless ctx is already done.
func (r *Runner) enter(ctx context.Context, next State) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("scenario cancelled before %s: %w", next, err)
	}
	r.state = next
	if r.opts.OnTransition != nil {
		r.opts.OnTransition(next)
	}
	return nil
}

func (r *Runner) checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("scenario cancelled in %s: %w", r.state, err)
	}
	return nil
}

func (r *Runner) think(ctx context.Context, units int) error {
	timer := time.NewTimer(time.Duration(units) * r.opts.ThinkUnit)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("scenario cancelled during think time in %s: %w", r.state, ctx.Err())
	case <-timer.C:
		return nil
	}
}

func (r *Runner) navigate(ctx context.Context, txn, name, target, referer string) error {
	return r.step(ctx, Action{
		Name:        name,
		Method:      http.MethodGet,
		URL:         target,
		Referer:     referer,
		Accept:      contentTypeHTML,
		Headers:     r.traceHeader(txn),
		Transaction: txn,
	})
}

func (r *Runner) spin(ctx context.Context, n int, it params.Iteration, referer string) error {
	rec := r.corr.Next(spinIDPrefix)
	body, err := NewSpinRequest(r.session, it, rec).Marshal()
	if err != nil {
		return fmt.Errorf("encode spin %d: %w", n, err)
	}

	headers := r.traceHeader(TxnSpin)
	headers.Set("Content-Type", contentTypeJSON)

	resources := make([]string, 0, len(ResultIcons))
	for _, icon := range ResultIcons {
		resources = append(resources, r.url(pathIcons+icon))
	}

	r.logger.Debug("slot spin", zap.Int("spin", n), zap.String("correlation_id", rec.ID))
	return r.step(ctx, Action{
		Name:        "Spin_Request",
		Method:      http.MethodPost,
		URL:         r.url(pathSpin),
		Referer:     referer,
		Accept:      contentTypeJSON,
		Headers:     headers,
		Body:        body,
		Resources:   resources,
		Transaction: TxnSpin,
	})
}

// step runs one action inside its own transaction.
func (r *Runner) step(ctx context.Context, a Action) error {
	txCtx, tx := r.host.BeginTransaction(ctx, a.Transaction)
	err := txCtx.Err()
	if err == nil {
		err = r.host.Execute(txCtx, a)
	}
	tx.End(err)
	if err != nil {
		return &StepError{State: r.state, Transaction: a.Transaction, Action: a.Name, Err: err}
	}
	return nil
}

func (r *Runner) traceHeader(txn string) http.Header {
	f := traceheader.Fields{
		Transaction: txn,
		Script:      r.opts.ScriptName,
		Test:        r.session.TestName,
		VU:          r.session.UserID,
	}
	if err := f.Validate(); err != nil {
		r.logger.Warn("trace header carries reserved characters", zap.Error(err))
	}
	name, value := traceheader.Build(f)
	r.logger.Debug("added trace header", zap.String("value", value))

	h := make(http.Header, 2)
	h.Set(name, value)
	return h
}

func (r *Runner) url(path string) string {
	return r.opts.Target.URL(r.session.ServerHost, path)
}
