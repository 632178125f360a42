package scenario

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Transaction names reported to the host.
const (
	TxnSession = "Vegas_Slots_Complete_Session"
	TxnLobby   = "Navigate_To_Lobby"
	TxnSlots   = "Navigate_To_Slots"
	TxnSpin    = "Slot_Spin"
	TxnReturn  = "Navigate_Back_To_Lobby"
)

// DefaultScriptName is reported in the LSN field of the trace header.
const DefaultScriptName = "Vegas-Slots-Load-Test"

// Outcome codes returned to the host.
const (
	ExitSuccess = 0
	ExitFailure = 1
)

const (
	pathLobby = "lobby.html"
	pathSlots = "vegas-slots.html"
	pathSpin  = "api/slots/spin"
	pathIcons = "slot-icons/"

	contentTypeHTML = "text/html"
	contentTypeJSON = "application/json"
)

// State is a step of the scenario state machine.
type State int

const (
	StateInit State = iota
	StateLobbyNav
	StateSlotsNav
	StateSpinning
	StateReturnNav
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateLobbyNav:
		return "LobbyNav"
	case StateSlotsNav:
		return "SlotsNav"
	case StateSpinning:
		return "Spinning"
	case StateReturnNav:
		return "ReturnNav"
	case StateDone:
		return "Done"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// Transaction is an open timing boundary. End closes it; a non-nil err
// marks it failed. Ending an inner transaction never ends an outer one.
type Transaction interface {
	End(err error)
}

// Host executes requests and measures transactions on behalf of the scenario.
type Host interface {
	// BeginTransaction opens a named transaction nested in any transaction
	// already carried by ctx. The returned context carries the new one.
	BeginTransaction(ctx context.Context, name string) (context.Context, Transaction)
	// Execute performs the request described by action, including its
	// auxiliary resources. It fails only on transport-level errors.
	Execute(ctx context.Context, action Action) error
}

// Action describes one logical request.
type Action struct {
	Name        string      // step label, e.g. "Spin_Request"
	Method      string      // GET or POST
	URL         string      // absolute URL
	Referer     string      // page the request originates from; empty for none
	Accept      string      // content type the page is expected to return
	Headers     http.Header // headers attached to this request only
	Body        []byte      // request payload; nil for none
	Resources   []string    // absolute URLs fetched as part of the same step
	Transaction string      // transaction the request is measured under
}

// Target locates the application under test.
type Target struct {
	Scheme string
	Port   int
}

// URL joins host and path into an absolute URL on the target.
func (t Target) URL(host, path string) string {
	return fmt.Sprintf("%s://%s/%s", t.Scheme, net.JoinHostPort(host, strconv.Itoa(t.Port)), strings.TrimPrefix(path, "/"))
}

// Options configure a Runner.
type Options struct {
	Target       Target         // defaults to http on port 3000
	ScriptName   string         // LSN field; defaults to DefaultScriptName
	ThinkUnit    time.Duration  // length of one think-time unit; defaults to 1s
	Seed         int64          // 0 seeds from the wall clock
	Logger       *zap.Logger    // defaults to a no-op logger
	OnTransition func(to State) // optional hook called on every state entry
}

func (o *Options) normalize() {
	if o.Target.Scheme == "" {
		o.Target.Scheme = "http"
	}
	if o.Target.Port <= 0 {
		o.Target.Port = 3000
	}
	if strings.TrimSpace(o.ScriptName) == "" {
		o.ScriptName = DefaultScriptName
	}
	if o.ThinkUnit <= 0 {
		o.ThinkUnit = time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Outcome is the result of one scenario run.
type Outcome struct {
	Code                 int
	Spins                int
	SessionCorrelationID string
}

// StepError reports a step that could not be completed.
type StepError struct {
	State       State
	Transaction string
	Action      string
	Err         error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s %s (%s): %v", e.State, e.Transaction, e.Action, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
