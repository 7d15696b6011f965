// internal/dispatch/throttle.go
package dispatch

import (
	"log"
	"time"
)

// DelayFor returns the pause owed after reaching a cumulative
// successful-send count. Longer milestones take priority, so a count that is
// a multiple of several rules pauses exactly once with the longest delay.
func DelayFor(sent int) time.Duration {
	if sent <= 0 {
		return 0
	}
	switch {
	case sent%100 == 0:
		return 8 * time.Second
	case sent%50 == 0:
		return 5 * time.Second
	case sent%10 == 0:
		return 2500 * time.Millisecond
	default:
		return 0
	}
}

// Throttle applies DelayFor between sends. Sleep is injectable so tests can
// record pauses instead of waiting them out.
type Throttle struct {
	Sleep func(time.Duration)
}

func NewThrottle() *Throttle {
	return &Throttle{Sleep: time.Sleep}
}

// Pause blocks for the delay owed at the given cumulative count, if any.
func (t *Throttle) Pause(sent int) {
	d := DelayFor(sent)
	if d <= 0 {
		return
	}
	log.Printf("throttle: pausing %.1fs after %d total sends", d.Seconds(), sent)
	t.Sleep(d)
}
