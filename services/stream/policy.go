package stream

import "fmt"

// Policy is the fixed quality adjustment rule. Rates inside [Low, High] leave
// the quality alone.
type Policy struct {
	Floor   int
	Ceiling int
	Step    int
	Low     float64
	High    float64
}

// DefaultPolicy matches the lab camera: quality 30 to 95 in steps of 5,
// aiming for 28 to 32 frames per second.
func DefaultPolicy() Policy {
	return Policy{Floor: 30, Ceiling: 95, Step: 5, Low: 28, High: 32}
}

// Validate reports a policy that could oscillate or never move.
func (p Policy) Validate() error {
	switch {
	case p.Floor <= 0 || p.Ceiling < p.Floor:
		return fmt.Errorf("stream: quality range [%d, %d] is invalid", p.Floor, p.Ceiling)
	case p.Step <= 0:
		return fmt.Errorf("stream: quality step %d must be positive", p.Step)
	case p.Low < 0 || p.High < p.Low:
		return fmt.Errorf("stream: fps band [%g, %g] is invalid", p.Low, p.High)
	}
	return nil
}

// Clamp keeps q inside [Floor, Ceiling].
func (p Policy) Clamp(q int) int {
	if q < p.Floor {
		return p.Floor
	}
	if q > p.Ceiling {
		return p.Ceiling
	}
	return q
}

// Decide returns the quality to use for an observed rate and whether it
// differs from the current one. It moves at most one step.
func (p Policy) Decide(quality int, rate float64) (int, bool) {
	next := quality
	switch {
	case rate < p.Low && quality > p.Floor:
		next = p.Clamp(quality - p.Step)
	case rate > p.High && quality < p.Ceiling:
		next = p.Clamp(quality + p.Step)
	}
	return next, next != quality
}
