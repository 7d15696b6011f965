package dispatch_test

import (
	"testing"
	"time"

	"github.com/unclebandit/mailblast-backend/internal/dispatch"
)

func TestDelayForMilestones(t *testing.T) {
	cases := []struct {
		sent int
		want time.Duration
	}{
		{0, 0},
		{-3, 0},
		{1, 0},
		{9, 0},
		{10, 2500 * time.Millisecond},
		{30, 2500 * time.Millisecond},
		{33, 0},
		{50, 5 * time.Second},
		{77, 0},
		{100, 8 * time.Second}, // also %50 and %10; longest rule wins
		{150, 5 * time.Second},
		{200, 8 * time.Second},
	}
	for _, tc := range cases {
		if got := dispatch.DelayFor(tc.sent); got != tc.want {
			t.Errorf("DelayFor(%d) = %v, want %v", tc.sent, got, tc.want)
		}
	}
}

func TestPauseRecordsSleep(t *testing.T) {
	var slept []time.Duration
	th := &dispatch.Throttle{Sleep: func(d time.Duration) { slept = append(slept, d) }}

	th.Pause(100)
	th.Pause(7)
	th.Pause(10)

	if len(slept) != 2 {
		t.Fatalf("expected 2 sleeps, got %d", len(slept))
	}
	if slept[0] != 8*time.Second {
		t.Errorf("expected 8s at 100, got %v", slept[0])
	}
	if slept[1] != 2500*time.Millisecond {
		t.Errorf("expected 2.5s at 10, got %v", slept[1])
	}
}
