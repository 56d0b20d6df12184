package resilience

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

type immediateTimer struct {
	c chan time.Time
}

func (t *immediateTimer) Start(time.Duration) {
	t.c = make(chan time.Time, 1)
	t.c <- time.Now()
}

func (t *immediateTimer) Stop() {}

func (t *immediateTimer) C() <-chan time.Time { return t.c }

// ImmediateTimer returns a backoff timer that fires at once, for
// GuardOptions.NewTimer in tests. Delays are still computed and reported.
func ImmediateTimer() backoff.Timer { return &immediateTimer{} }
