package correlation_test

import (
	"math/rand"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/torosent/vegasload/internal/correlation"
)

var timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`)

type fixedRand int

func (f fixedRand) Intn(n int) int { return int(f) % n }

func TestNewIDFormat(t *testing.T) {
	now := time.Unix(1700000000, 0)
	c := correlation.New(42, fixedRand(77), correlation.WithClock(func() time.Time { return now }))

	got := c.NewID("spin")
	if got != "spin_1700000000_42_77" {
		t.Fatalf("NewID = %q, want spin_1700000000_42_77", got)
	}
}

func TestNewIDPrefixAndUniqueness(t *testing.T) {
	c := correlation.New(9, rand.New(rand.NewSource(1)))
	pattern := regexp.MustCompile(`^vegas_session_\d+_9_\d{1,4}$`)

	seen := map[string]bool{}
	dups := 0
	for i := 0; i < 20; i++ {
		id := c.NewID("vegas_session")
		if !strings.HasPrefix(id, "vegas_session_") {
			t.Fatalf("id %q missing prefix", id)
		}
		if !pattern.MatchString(id) {
			t.Fatalf("id %q does not match expected layout", id)
		}
		if seen[id] {
			dups++
		}
		seen[id] = true
	}
	// Suffixes are random in [0,9999]; a couple of collisions in 20 draws
	// within the same second would indicate a broken source.
	if dups > 1 {
		t.Fatalf("too many duplicate ids: %d", dups)
	}
}

func TestTimestampFormatUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	now := time.Date(2025, 3, 9, 17, 4, 5, 900, loc)
	c := correlation.New(1, fixedRand(0), correlation.WithClock(func() time.Time { return now }))

	got := c.Timestamp()
	if got != "2025-03-09T12:04:05Z" {
		t.Fatalf("Timestamp = %q, want 2025-03-09T12:04:05Z", got)
	}
	if !timestampPattern.MatchString(got) {
		t.Fatalf("Timestamp %q does not match ISO-8601 layout", got)
	}
}

func TestTimestampMonotonic(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 10, 0, time.UTC)
	ticks := []time.Time{
		base,
		base.Add(2 * time.Second),
		base.Add(-5 * time.Second), // clock stepped back
		base.Add(3 * time.Second),
	}
	i := 0
	c := correlation.New(1, fixedRand(0), correlation.WithClock(func() time.Time {
		t := ticks[i]
		i++
		return t
	}))

	var prev string
	for range ticks {
		ts := c.Timestamp()
		if prev != "" && ts < prev {
			t.Fatalf("timestamp went backwards: %s after %s", ts, prev)
		}
		prev = ts
	}
	if prev != "2025-01-01T00:00:13Z" {
		t.Fatalf("final timestamp = %s", prev)
	}
}

func TestNextReturnsBoth(t *testing.T) {
	c := correlation.New(5, rand.New(rand.NewSource(2)))
	rec := c.Next("spin")
	if !strings.HasPrefix(rec.ID, "spin_") {
		t.Errorf("record id %q missing prefix", rec.ID)
	}
	if !timestampPattern.MatchString(rec.Timestamp) {
		t.Errorf("record timestamp %q malformed", rec.Timestamp)
	}
}
