package engine

// PassLimiter caps the number of propagation passes over one subevent.
//
// Content that keeps matching (for example an effect granting a fresh
// effect instance on every pass) surfaces as a PASS_LIMIT error.
//
// Each subevent gets its own PassLimiter. Not safe for concurrent use.
type PassLimiter struct {
	maxPasses int
	current   int
}

// NewPassLimiter creates a limiter allowing maxPasses passes.
func NewPassLimiter(maxPasses int) *PassLimiter {
	return &PassLimiter{maxPasses: maxPasses}
}

// Check counts one pass and fails once the count exceeds the ceiling.
func (p *PassLimiter) Check(subeventID string) error {
	p.current++
	if p.current > p.maxPasses {
		return NewPassLimitError(subeventID, p.current, p.maxPasses)
	}
	return nil
}

// Current returns the number of passes counted so far.
func (p *PassLimiter) Current() int {
	return p.current
}

// MaxPasses returns the configured ceiling.
func (p *PassLimiter) MaxPasses() int {
	return p.maxPasses
}
