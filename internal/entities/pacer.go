package entities

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "cooldown interrupted")
	case <-t.C:
		return nil
	}
}

// Pacer inserts a fixed cooldown after every N outbound geocoding requests
// within one batch. It is not adaptive and not safe for concurrent use.
type Pacer struct {
	every    int
	pause    time.Duration
	sleep    SleepFunc
	requests int
	pauses   int
}

// NewPacer returns a Pacer that sleeps pause after every `every` requests.
// every <= 0 disables pacing.
func NewPacer(every int, pause time.Duration, sleep SleepFunc) *Pacer {
	if sleep == nil {
		sleep = sleepCtx
	}
	return &Pacer{every: every, pause: pause, sleep: sleep}
}

// Observe records one outbound request and pauses when the count reaches a
// multiple of the batch size.
func (p *Pacer) Observe(ctx context.Context) error {
	p.requests++
	if p.every <= 0 || p.requests%p.every != 0 {
		return nil
	}
	p.pauses++
	return p.sleep(ctx, p.pause)
}

// Requests returns the number of observed requests.
func (p *Pacer) Requests() int { return p.requests }

// Pauses returns the number of cooldowns taken.
func (p *Pacer) Pauses() int { return p.pauses }
