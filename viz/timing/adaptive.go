package timing

import (
	"log/slog"
	"time"
)

// AdaptiveLimiter keeps at least one frame period between draws. Unlike
// TickerLimiter it does not tick while idle: the first request after a pause
// draws at once, bursts are spread one period apart.
type AdaptiveLimiter struct {
	period    time.Duration
	nextFrame time.Time
	frames    int64
	late      int64
}

func NewAdaptiveLimiter(fps float64) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		period:    FrameDuration(fps),
		nextFrame: time.Now(),
	}
}

func (a *AdaptiveLimiter) WaitForNextFrame() {
	now := time.Now()
	if wait := a.nextFrame.Sub(now); wait > 0 {
		time.Sleep(wait)
		now = a.nextFrame
	} else if wait < -a.period {
		// idle or slow draws, start a new schedule instead of catching up
		a.late++
	}
	a.nextFrame = now.Add(a.period)
	a.frames++

	if a.frames%600 == 0 {
		slog.Debug("Frame pacing", "frames", a.frames, "late", a.late, "period", a.period)
	}
}

func (a *AdaptiveLimiter) Reset() {
	a.nextFrame = time.Now()
	a.frames = 0
	a.late = 0
}

// Period returns the minimum time between two frames
func (a *AdaptiveLimiter) Period() time.Duration {
	return a.period
}
