package main

import "time"

// rotaryWindow tracks recent volume-encoder detents for fast-spin detection.
// It is owned by DaemonState and only touched by the reducer.
type rotaryWindow struct {
	recentSteps []rotaryStep
}

// rotaryStep records a single encoder detent.
type rotaryStep struct {
	at        time.Time
	direction int // +1 for up, -1 for down
}

// addStep records a detent at time at and returns the number of detents in
// the same direction inside the window, the new one included.
func (r *rotaryWindow) addStep(at time.Time, direction int, window time.Duration) int {
	return r.addSteps(at, direction, 1, window)
}

// addSteps records n detents at time at in one pass and returns the number of
// same-direction detents inside the window afterwards.
//
// Steps older than the window are pruned. The backing array is reused, so
// callers must not keep references to previous recentSteps slices.
func (r *rotaryWindow) addSteps(at time.Time, direction, n int, window time.Duration) int {
	cutoff := at.Add(-window)

	filtered := r.recentSteps[:0]
	sameDir := 0
	for _, s := range r.recentSteps {
		if s.at.After(cutoff) {
			filtered = append(filtered, s)
			if s.direction == direction {
				sameDir++
			}
		}
	}
	for i := 0; i < n; i++ {
		filtered = append(filtered, rotaryStep{at: at, direction: direction})
	}
	r.recentSteps = filtered
	return sameDir + n
}

// reset forgets all recorded detents.
func (r *rotaryWindow) reset() {
	r.recentSteps = r.recentSteps[:0]
}

// RotaryConfig is the reducer-facing fast-spin policy.
type RotaryConfig struct {
	VelocityWindow     time.Duration
	VelocityThreshold  int
	VelocityMultiplier int
}

// scaledSteps applies the fast-spin multiplier when count reaches the threshold.
func (c RotaryConfig) scaledSteps(steps, count int) int {
	if c.VelocityThreshold > 0 && c.VelocityMultiplier > 1 && count >= c.VelocityThreshold {
		return steps * c.VelocityMultiplier
	}
	return steps
}
