// Package correlation builds the short-lived identifiers attached to outbound
// requests: correlation ids and second-resolution ISO-8601 UTC timestamps.
package correlation

import (
	"fmt"
	"time"
)

// TimestampLayout is the wire format of generated timestamps.
const TimestampLayout = "2006-01-02T15:04:05Z"

const idSuffixRange = 10000

// Intn is the random source a Context draws id suffixes from.
// *params.Generator and *rand.Rand both satisfy it.
type Intn interface {
	Intn(n int) int
}

// Record is the correlation data accompanying a single request.
type Record struct {
	ID        string
	Timestamp string
}

// Context generates correlation data for one virtual user.
// It is not safe for concurrent use.
type Context struct {
	userID int
	rnd    Intn
	now    func() time.Time
	last   time.Time
}

// Option customizes a Context.
type Option func(*Context)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Context) {
		if now != nil {
			c.now = now
		}
	}
}

// New returns a Context for userID drawing randomness from rnd.
func New(userID int, rnd Intn, opts ...Option) *Context {
	c := &Context{userID: userID, rnd: rnd, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewID returns {prefix}_{unixSeconds}_{userID}_{0..9999}.
func (c *Context) NewID(prefix string) string {
	return fmt.Sprintf("%s_%d_%d_%d", prefix, c.now().Unix(), c.userID, c.rnd.Intn(idSuffixRange))
}

// Timestamp returns the current UTC time in TimestampLayout. Values never go
// backwards within one Context, even if the wall clock does.
func (c *Context) Timestamp() string {
	t := c.now().UTC().Truncate(time.Second)
	if t.Before(c.last) {
		t = c.last
	}
	c.last = t
	return t.Format(TimestampLayout)
}

// Next returns a fresh timestamp and correlation id.
func (c *Context) Next(prefix string) Record {
	return Record{
		Timestamp: c.Timestamp(),
		ID:        c.NewID(prefix),
	}
}
