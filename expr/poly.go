package expr

import (
	"math"
	"sort"
)

// maxDegree bounds the size of expanded polynomials.
const maxDegree = 64

// laurent is a finite Laurent polynomial in x: degree -> coefficient.
type laurent map[int]float64

func (l laurent) degrees() []int {
	ds := make([]int, 0, len(l))
	for d := range l {
		ds = append(ds, d)
	}
	sort.Ints(ds)
	return ds
}

func (l laurent) set(d int, c float64) {
	if c == 0 {
		delete(l, d)
		return
	}
	l[d] = c
}

func (l laurent) plus(o laurent, sign float64) laurent {
	out := laurent{}
	for _, d := range l.degrees() {
		out.set(d, l[d])
	}
	for _, d := range o.degrees() {
		out.set(d, out[d]+sign*o[d])
	}
	return out
}

func (l laurent) times(o laurent) (laurent, bool) {
	out := laurent{}
	for _, i := range l.degrees() {
		for _, j := range o.degrees() {
			if abs(i+j) > maxDegree {
				return nil, false
			}
			out.set(i+j, out[i+j]+l[i]*o[j])
		}
	}
	return out, true
}

func (l laurent) scaled(c float64) laurent {
	out := laurent{}
	for _, d := range l.degrees() {
		out.set(d, c*l[d])
	}
	return out
}

// monomial returns (degree, coefficient) when l has exactly one term.
func (l laurent) monomial() (int, float64, bool) {
	if len(l) != 1 {
		return 0, 0, false
	}
	for d, c := range l {
		return d, c, true
	}
	return 0, 0, false
}

func (l laurent) isPolynomial() bool {
	for d := range l {
		if d < 0 {
			return false
		}
	}
	return true
}

func (l laurent) topDegree() int {
	ds := l.degrees()
	if len(ds) == 0 {
		return 0
	}
	return ds[len(ds)-1]
}

// negligible reports whether c is rounding noise next to the coefficients in
// rest, as in sin(pi)*x.
func negligible(c float64, rest ...float64) bool {
	m := 1.0
	for _, r := range rest {
		m = math.Max(m, math.Abs(r))
	}
	return math.Abs(c) < 1e-12*m
}

// leadNegligible reports whether the top coefficient is rounding noise next
// to the others.
func (l laurent) leadNegligible() bool {
	top := l.topDegree()
	rest := make([]float64, 0, len(l))
	for d, c := range l {
		if d != top {
			rest = append(rest, c)
		}
	}
	return negligible(l[top], rest...)
}

// linear returns p, q for l = p*x + q with p not negligible.
func (l laurent) linear() (p, q float64, ok bool) {
	for d := range l {
		if d != 0 && d != 1 {
			return 0, 0, false
		}
	}
	if negligible(l[1], l[0]) {
		return 0, 0, false
	}
	return l[1], l[0], true
}

// quadratic returns a, b, c for l = a*x^2 + b*x + c with a not negligible.
func (l laurent) quadratic() (a, b, c float64, ok bool) {
	for d := range l {
		if d < 0 || d > 2 {
			return 0, 0, 0, false
		}
	}
	if negligible(l[2], l[1], l[0]) {
		return 0, 0, 0, false
	}
	return l[2], l[1], l[0], true
}

func (l laurent) derivative() laurent {
	out := laurent{}
	for _, d := range l.degrees() {
		out.set(d-1, float64(d)*l[d])
	}
	return out
}

// integral returns the antiderivative of a polynomial with zero constant term.
func (l laurent) integral() laurent {
	out := laurent{}
	for _, d := range l.degrees() {
		out.set(d+1, l[d]/float64(d+1))
	}
	return out
}

// at evaluates l at x.
func (l laurent) at(x float64) float64 {
	var v float64
	for _, d := range l.degrees() {
		v += l[d] * math.Pow(x, float64(d))
	}
	return v
}

// divmod divides the polynomial l by the polynomial d. Remainder terms that
// are rounding noise next to l are dropped.
func (l laurent) divmod(d laurent) (quot, rem laurent) {
	quot, rem = laurent{}, l.plus(laurent{}, 1)
	dt := d.topDegree()
	lead := d[dt]
	var size float64
	for _, c := range l {
		size = math.Max(size, math.Abs(c))
	}
	for len(rem) > 0 && rem.topDegree() >= dt {
		rt := rem.topDegree()
		c := rem[rt] / lead
		quot.set(rt-dt, c)
		for _, k := range d.degrees() {
			rem.set(k+rt-dt, rem[k+rt-dt]-c*d[k])
		}
		delete(rem, rt)
		for k, v := range rem {
			if math.Abs(v) <= 1e-12*size {
				delete(rem, k)
			}
		}
	}
	return quot, rem
}

// divideRoot divides the polynomial l by (x - r), discarding the remainder.
func (l laurent) divideRoot(r float64) laurent {
	out := laurent{}
	top := l.topDegree()
	var carry float64
	for d := top; d >= 1; d-- {
		carry = l[d] + r*carry
		out.set(d-1, carry)
	}
	return out
}

// node renders l from the highest degree down.
func (l laurent) node() Node {
	ds := l.degrees()
	var out Node = num(0)
	for i := len(ds) - 1; i >= 0; i-- {
		d := ds[i]
		var term Node
		switch {
		case d == 0:
			term = num(l[d])
		case d == 1:
			term = scale(l[d], Var{})
		case d > 0:
			term = scale(l[d], &Binary{Op: '^', L: Var{}, R: num(float64(d))})
		default:
			term = &Binary{Op: '/', L: num(l[d]), R: pow(Var{}, num(float64(-d)))}
		}
		out = add(out, term)
	}
	return out
}

// toLaurent expands n into a Laurent polynomial when it is one.
func toLaurent(n Node) (laurent, bool) {
	if !hasX(n) {
		v := constValue(n)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
		out := laurent{}
		out.set(0, v)
		return out, true
	}
	switch v := n.(type) {
	case Var:
		return laurent{1: 1}, true
	case *Neg:
		x, ok := toLaurent(v.X)
		if !ok {
			return nil, false
		}
		return x.scaled(-1), true
	case *Binary:
		return binaryLaurent(v)
	}
	return nil, false
}

func binaryLaurent(v *Binary) (laurent, bool) {
	l, ok := toLaurent(v.L)
	if !ok {
		return nil, false
	}
	if v.Op == '^' {
		if hasX(v.R) {
			return nil, false
		}
		return laurentPow(l, constValue(v.R))
	}
	r, ok := toLaurent(v.R)
	if !ok {
		return nil, false
	}
	switch v.Op {
	case '+':
		return l.plus(r, 1), true
	case '-':
		return l.plus(r, -1), true
	case '*':
		return l.times(r)
	case '/':
		d, c, ok := r.monomial()
		if !ok {
			return nil, false
		}
		return l.times(laurent{-d: 1 / c})
	}
	return nil, false
}

func laurentPow(base laurent, e float64) (laurent, bool) {
	if e != math.Trunc(e) || math.Abs(e) > maxDegree {
		return nil, false
	}
	k := int(e)
	if k < 0 {
		d, c, ok := base.monomial()
		if !ok || abs(d*k) > maxDegree {
			return nil, false
		}
		return laurent{d * k: math.Pow(c, e)}, true
	}
	out := laurent{0: 1}
	for i := 0; i < k; i++ {
		var ok bool
		if out, ok = out.times(base); !ok {
			return nil, false
		}
	}
	return out, true
}

func abs(i int) int {
	if i < 0 {
		return -i
	}
	return i
}
