package main

import "time"

// CadenceState tracks recent step times for a steps-per-minute estimate.
// Reducer-owned; never shared across goroutines.
type CadenceState struct {
	RecentSteps []time.Time
}

// addStep records a step at now and drops steps older than window.
// It returns the number of steps inside the window.
func (c *CadenceState) addStep(now time.Time, window time.Duration) int {
	c.prune(now, window)
	c.RecentSteps = append(c.RecentSteps, now)
	return len(c.RecentSteps)
}

func (c *CadenceState) prune(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	filtered := c.RecentSteps[:0]
	for _, at := range c.RecentSteps {
		if at.After(cutoff) {
			filtered = append(filtered, at)
		}
	}
	c.RecentSteps = filtered
}

// stepsPerMinute extrapolates the steps seen in the last window.
func (c *CadenceState) stepsPerMinute(now time.Time, window time.Duration) float64 {
	if window <= 0 {
		return 0
	}
	c.prune(now, window)
	return float64(len(c.RecentSteps)) * float64(time.Minute) / float64(window)
}
