package host

import (
	"context"

	"github.com/torosent/vegasload/internal/params"
	"github.com/torosent/vegasload/internal/runner"
	"github.com/torosent/vegasload/internal/scenario"
)

// VUser runs the slots scenario once per iteration for one virtual user.
type VUser struct {
	scenario *scenario.Runner
	last     scenario.Outcome
}

var _ runner.VUser = (*VUser)(nil)

// NewVUser binds a scenario runner for user id to host.
func NewVUser(id int, in params.Inputs, host scenario.Host, opts scenario.Options) *VUser {
	return &VUser{scenario: scenario.New(id, in, host, opts)}
}

// Iterate runs one scenario iteration.
func (v *VUser) Iterate(ctx context.Context) error {
	out, err := v.scenario.Run(ctx)
	v.last = out
	return err
}

// Session returns the resolved session of the virtual user.
func (v *VUser) Session() params.Session {
	return v.scenario.Session()
}

// LastOutcome returns the outcome of the most recent iteration.
func (v *VUser) LastOutcome() scenario.Outcome {
	return v.last
}

// Close ends the virtual user.
func (v *VUser) Close() error {
	return v.scenario.Close()
}
