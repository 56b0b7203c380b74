package stream

import "time"

// RateWindow counts frame arrivals over a sliding span. It is owned by the
// controller loop and not safe for concurrent use.
type RateWindow struct {
	span    time.Duration
	since   time.Time
	arrived []time.Time
}

func NewRateWindow(span time.Duration) *RateWindow {
	return &RateWindow{span: span}
}

// Reset drops every sample and restarts observation at now.
func (w *RateWindow) Reset(now time.Time) {
	w.since = now
	w.arrived = w.arrived[:0]
}

// Add records one arrival.
func (w *RateWindow) Add(at time.Time) {
	w.arrived = append(w.arrived, at)
}

// Observed is how long the window has been collecting, capped at its span.
func (w *RateWindow) Observed(now time.Time) time.Duration {
	d := now.Sub(w.since)
	if d > w.span {
		return w.span
	}
	if d < 0 {
		return 0
	}
	return d
}

// Rate returns arrivals per second over the last span. Until a full span has
// been observed since Reset, the count is divided by the observed time
// instead.
func (w *RateWindow) Rate(now time.Time) float64 {
	cutoff := now.Add(-w.span)
	keep := w.arrived[:0]
	for _, t := range w.arrived {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}
	w.arrived = keep

	observed := w.Observed(now)
	if observed <= 0 {
		return 0
	}
	return float64(len(w.arrived)) / observed.Seconds()
}

// Len is the number of samples currently held.
func (w *RateWindow) Len() int { return len(w.arrived) }
