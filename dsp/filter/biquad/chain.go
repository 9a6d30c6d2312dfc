package biquad

// Chain is an ordered cascade of biquad sections processed in series.
// The near-field ILD correction runs two shelving sections per ear through
// a Chain.
type Chain struct {
	sections []Section
}

// NewChain creates a cascade from one or more coefficient sets.
func NewChain(coeffs []Coefficients) *Chain {
	c := &Chain{sections: make([]Section, len(coeffs))}
	for i := range coeffs {
		c.sections[i].Coefficients = coeffs[i]
	}

	return c
}

// SetCoefficients replaces the coefficients of every section while keeping
// filter memory. Extra entries in coeffs are ignored; missing entries leave
// the corresponding section unchanged.
func (c *Chain) SetCoefficients(coeffs []Coefficients) {
	for i := range c.sections {
		if i >= len(coeffs) {
			return
		}
		c.sections[i].Coefficients = coeffs[i]
	}
}

// ProcessBlock filters buf in place through the full cascade.
func (c *Chain) ProcessBlock(buf []float64) {
	for i := range c.sections {
		if c.sections[i].IsIdentity() {
			continue
		}
		c.sections[i].ProcessBlock(buf)
	}
}

// Reset clears all section states.
func (c *Chain) Reset() {
	for i := range c.sections {
		c.sections[i].Reset()
	}
}

// NumSections returns the number of sections in the cascade.
func (c *Chain) NumSections() int {
	return len(c.sections)
}
