// Package params generates the per-user and per-iteration business data a
// virtual user sends to the slots application.
//
// Each virtual user owns one [Generator]. The generator wraps a private
// pseudo-random source seeded from the wall clock and the user id, so
// concurrent users never share or contend on randomness:
//
//	gen := params.NewGenerator(42, 0)
//	session, notices := gen.Initialize(params.Inputs{ServerHost: "casino.local"})
//	iter := gen.NextIteration()
//
// A [Session] is fixed for the lifetime of the virtual user. An [Iteration]
// is drawn once per scenario run.
package params

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"
)

const (
	// DefaultServerHost is used when no server host is configured.
	DefaultServerHost = "localhost"

	usernamePrefix = "LoadTest_User_"
	testNamePrefix = "Vegas_Slots_Load_Test_"
	runIDPrefix    = "LR"

	winMultiplier = 5
)

// Inputs are the externally supplied values resolved before a virtual user starts.
// Empty fields are replaced by documented defaults.
type Inputs struct {
	ServerHost string
	TestRunID  string
}

// Session identifies one virtual user for its whole lifetime.
type Session struct {
	UserID     int
	Username   string
	TestRunID  string
	TestName   string
	ServerHost string
}

// Iteration holds the randomized bet data of one scenario run.
// Exactly one of WinAmount and LossAmount is non-zero.
type Iteration struct {
	BetAmount  int
	IsWin      bool
	WinAmount  int
	LossAmount int
	Balance    int
}

// WinFlag returns the outcome as the 0/1 integer the spin API expects.
func (it Iteration) WinFlag() int {
	if it.IsWin {
		return 1
	}
	return 0
}

// Defaulted reports an input that was empty and replaced by a default.
// It is informational and never fatal.
type Defaulted struct {
	Field string
	Value string
}

func (d Defaulted) Error() string {
	return fmt.Sprintf("%s not configured, using %q", d.Field, d.Value)
}

// Generator produces randomized values for a single virtual user.
// It is not safe for concurrent use; each virtual user owns its own.
type Generator struct {
	userID int
	rnd    *rand.Rand
	now    func() time.Time
}

// NewGenerator creates a generator for userID. A zero seed derives the seed
// from the current time; any seed is offset by the user id so that users
// started together draw different sequences.
func NewGenerator(userID int, seed int64) *Generator {
	return newGenerator(userID, seed, time.Now)
}

func newGenerator(userID int, seed int64, now func() time.Time) *Generator {
	if seed == 0 {
		seed = now().UnixNano()
	}
	return &Generator{
		userID: userID,
		rnd:    rand.New(rand.NewSource(seed + int64(userID))),
		now:    now,
	}
}

// UserID returns the virtual user id the generator was created for.
func (g *Generator) UserID() int {
	return g.userID
}

// Initialize resolves the session for the virtual user, substituting
// defaults for empty inputs.
func (g *Generator) Initialize(in Inputs) (Session, []Defaulted) {
	var notices []Defaulted

	host := in.ServerHost
	if host == "" {
		host = DefaultServerHost
		notices = append(notices, Defaulted{Field: "ServerHost", Value: host})
	}

	runID := in.TestRunID
	if runID == "" {
		runID = fmt.Sprintf("%s_%d_%d", runIDPrefix, g.now().Unix(), g.userID)
		notices = append(notices, Defaulted{Field: "TestRunId", Value: runID})
	}

	return Session{
		UserID:     g.userID,
		Username:   usernamePrefix + strconv.Itoa(g.userID),
		TestRunID:  runID,
		TestName:   testNamePrefix + runID,
		ServerHost: host,
	}, notices
}

// NextIteration draws the bet data for one scenario run.
func (g *Generator) NextIteration() Iteration {
	it := Iteration{
		BetAmount: g.rnd.Intn(3) + 1,
		IsWin:     g.rnd.Intn(2) == 1,
		Balance:   g.rnd.Intn(100) + 50,
	}
	if it.IsWin {
		it.WinAmount = it.BetAmount * winMultiplier
	} else {
		it.LossAmount = it.BetAmount
	}
	return it
}

// SpinCount draws the number of spins for a run, between 3 and 10.
func (g *Generator) SpinCount() int {
	return g.rnd.Intn(8) + 3
}

// ThinkTime draws the pause after a spin in think-time units, between 1 and 5.
func (g *Generator) ThinkTime() int {
	return g.rnd.Intn(5) + 1
}

// Intn returns a value in [0,n) from the user's random source.
func (g *Generator) Intn(n int) int {
	return g.rnd.Intn(n)
}
