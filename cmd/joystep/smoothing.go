package main

// SmoothingConfig configures the optional exponential filter applied to the
// detection axis.
type SmoothingConfig struct {
	// Factor in [0,1). 0 disables smoothing. Closer to 1 is smoother but lags more.
	Factor float64
	// WarmUp is the number of samples passed through unfiltered first.
	WarmUp int
}

// SmoothingState is the filter memory.
type SmoothingState struct {
	Last        float64
	Count       int
	Initialized bool
}

// Smooth filters v. With Factor 0 it returns v unchanged and keeps no state.
func Smooth(s SmoothingState, v float64, cfg SmoothingConfig) (SmoothingState, float64) {
	if cfg.Factor <= 0 {
		return s, v
	}

	if !s.Initialized || s.Count < cfg.WarmUp {
		s.Count++
		s.Last = v
		s.Initialized = true
		return s, v
	}

	f := cfg.Factor
	out := v*(1.0-f) + s.Last*f
	s.Last = out
	return s, out
}
