package expr

import "math"

type condKind int

const (
	nonZero condKind = iota
	positive
	nonNegative
	unitRange
	cosNonZero
)

// condition constrains the linear form u = p*x + q over the integration
// interval. An antiderivative is only usable when all of its conditions hold.
type condition struct {
	kind condKind
	p, q float64
}

func (c condition) holds(a, b float64) bool {
	lo, hi := c.p*a+c.q, c.p*b+c.q
	if lo > hi {
		lo, hi = hi, lo
	}
	switch c.kind {
	case nonZero:
		return lo > 0 || hi < 0
	case positive:
		return lo > 0
	case nonNegative:
		return lo >= 0
	case unitRange:
		return lo >= -1 && hi <= 1
	case cosNonZero:
		// first zero of cos at or above lo
		k := math.Ceil((lo - math.Pi/2) / math.Pi)
		return math.Pi/2+k*math.Pi > hi
	}
	return false
}

type conditions []condition

func (cs conditions) hold(a, b float64) bool {
	for _, c := range cs {
		if !c.holds(a, b) {
			return false
		}
	}
	return true
}
