// Package resilience provides the reconnect and backoff discipline every remote
// call of a sync pipeline is wrapped in.
package resilience

import (
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy configures the retry delay: Start * Factor^n, capped at Ceiling.
type Policy struct {
	Start   time.Duration
	Factor  float64
	Ceiling time.Duration
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		Start:   100 * time.Millisecond,
		Factor:  2,
		Ceiling: 10 * time.Second,
	}
}

// normalized fills zero fields from DefaultPolicy.
func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.Start <= 0 {
		p.Start = def.Start
	}
	if p.Factor < 1 {
		p.Factor = def.Factor
	}
	if p.Ceiling <= 0 {
		p.Ceiling = def.Ceiling
	}
	if p.Ceiling < p.Start {
		p.Ceiling = p.Start
	}
	return p
}

// Delay returns the uncapped-then-capped delay for attempt n.
func (p Policy) Delay(n int) time.Duration {
	p = p.normalized()
	d := float64(p.Start) * math.Pow(p.Factor, float64(n))
	if math.IsInf(d, 0) || math.IsNaN(d) || d >= float64(p.Ceiling) {
		return p.Ceiling
	}
	return time.Duration(d)
}

// Backoff is a backoff.BackOff that never gives up.
// n only advances while the delay is still below the ceiling.
type Backoff struct {
	policy Policy
	n      int
}

var _ backoff.BackOff = (*Backoff)(nil)

// NewBackoff creates a Backoff for the given policy.
func NewBackoff(p Policy) *Backoff {
	return &Backoff{policy: p.normalized()}
}

// NextBackOff implements backoff.BackOff. It never returns backoff.Stop.
func (b *Backoff) NextBackOff() time.Duration {
	d := b.policy.Delay(b.n)
	if d < b.policy.Ceiling {
		b.n++
	}
	return d
}

// Reset implements backoff.BackOff.
func (b *Backoff) Reset() {
	b.n = 0
}

// Attempt returns the current exponent.
func (b *Backoff) Attempt() int {
	return b.n
}
