package reconcile

import "time"

// linearBackOff waits step, 2×step, 3×step, ... between attempts.
type linearBackOff struct {
	step time.Duration
	n    int64
}

func newLinearBackOff(step time.Duration) *linearBackOff {
	return &linearBackOff{step: step}
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return time.Duration(b.n) * b.step
}

func (b *linearBackOff) Reset() {
	b.n = 0
}
