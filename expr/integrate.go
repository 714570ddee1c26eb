package expr

import "math"

// Rule-based antiderivatives. The rules cover a fixed set of textbook
// families; anything else reports ok == false rather than guessing.

const (
	maxDepth   = 16
	maxTabular = 16
)

// antiderivative is F together with the conditions under which F' equals the
// integrand on an interval.
type antiderivative struct {
	F     Node
	conds conditions
}

func (ad antiderivative) scaled(c float64) antiderivative {
	return antiderivative{F: scale(c, ad.F), conds: ad.conds}
}

func integrate(n Node, depth int) (antiderivative, bool) {
	if depth > maxDepth {
		return antiderivative{}, false
	}
	if !hasX(n) {
		c := constValue(n)
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return antiderivative{}, false
		}
		return antiderivative{F: scale(c, Var{})}, true
	}
	if l, ok := toLaurent(n); ok {
		ad := integrateLaurent(l)
		if len(ad.conds) == 0 && hasPole(n) {
			ad.conds = conditions{{kind: nonZero, p: 1}}
		}
		return ad, true
	}
	switch v := n.(type) {
	case *Neg:
		ad, ok := integrate(v.X, depth+1)
		if !ok {
			return antiderivative{}, false
		}
		return antiderivative{F: neg(ad.F), conds: ad.conds}, true
	case *Binary:
		switch v.Op {
		case '+', '-':
			return integrateSum(v, depth)
		case '*':
			return integrateProduct(v, depth)
		case '/':
			return integrateQuotient(v, depth)
		case '^':
			return integratePower(v)
		}
	case *Call:
		return integrateCall(v)
	}
	return antiderivative{}, false
}

func integrateSum(v *Binary, depth int) (antiderivative, bool) {
	l, ok := integrate(v.L, depth+1)
	if !ok {
		return antiderivative{}, false
	}
	r, ok := integrate(v.R, depth+1)
	if !ok {
		return antiderivative{}, false
	}
	conds := append(append(conditions{}, l.conds...), r.conds...)
	if v.Op == '-' {
		return antiderivative{F: sub(l.F, r.F), conds: conds}, true
	}
	return antiderivative{F: add(l.F, r.F), conds: conds}, true
}

func integrateLaurent(l laurent) antiderivative {
	ds := l.degrees()
	var F Node = num(0)
	var conds conditions
	for i := len(ds) - 1; i >= 0; i-- {
		d, c := ds[i], l[ds[i]]
		var term Node
		switch {
		case d == -1:
			term = scale(c, call("log", call("abs", Var{})))
		case d < -1:
			k := float64(d + 1)
			term = div(num(c/k), pow(Var{}, num(-k)))
		default:
			k := float64(d + 1)
			term = scale(c/k, pow(Var{}, num(k)))
		}
		if d < 0 && len(conds) == 0 {
			conds = conditions{{kind: nonZero, p: 1}}
		}
		F = add(F, term)
	}
	return antiderivative{F: F, conds: conds}
}

// hasPole reports whether n divides by, or takes a negative power of, an
// expression in x. Expanding such n can cancel the pole, as in x/x.
func hasPole(n Node) bool {
	switch v := n.(type) {
	case *Neg:
		return hasPole(v.X)
	case *Call:
		return hasPole(v.Arg)
	case *Binary:
		if v.Op == '/' && hasX(v.R) {
			return true
		}
		if v.Op == '^' && hasX(v.L) && !hasX(v.R) && constValue(v.R) < 0 {
			return true
		}
		return hasPole(v.L) || hasPole(v.R)
	}
	return false
}

func linearOf(n Node) (p, q float64, ok bool) {
	l, ok := toLaurent(n)
	if !ok {
		return 0, 0, false
	}
	return l.linear()
}

func integrateCall(v *Call) (antiderivative, bool) {
	u := v.Arg
	p, q, ok := linearOf(u)
	if !ok {
		if v.Fn == "exp" {
			return integrateGaussian(u)
		}
		return antiderivative{}, false
	}
	on := func(k condKind) conditions { return conditions{{kind: k, p: p, q: q}} }
	usq := pow(u, num(2))

	var F Node
	var conds conditions
	switch v.Fn {
	case "sin":
		F = neg(call("cos", u))
	case "cos":
		F = call("sin", u)
	case "tan":
		F = neg(call("log", call("abs", call("cos", u))))
		conds = on(cosNonZero)
	case "exp":
		F = call("exp", u)
	case "sinh":
		F = call("cosh", u)
	case "cosh":
		F = call("sinh", u)
	case "tanh":
		F = call("log", call("cosh", u))
	case "log":
		F = sub(mul(u, call("log", u)), u)
		conds = on(positive)
	case "sqrt":
		F = scale(2.0/3, pow(u, num(1.5)))
		conds = on(nonNegative)
	case "abs":
		F = scale(0.5, mul(u, call("abs", u)))
	case "asin":
		F = add(mul(u, call("asin", u)), call("sqrt", sub(num(1), usq)))
		conds = on(unitRange)
	case "acos":
		F = sub(mul(u, call("acos", u)), call("sqrt", sub(num(1), usq)))
		conds = on(unitRange)
	case "atan":
		F = sub(mul(u, call("atan", u)), scale(0.5, call("log", add(num(1), usq))))
	case "erf":
		F = add(mul(u, call("erf", u)), scale(1/math.SqrtPi, call("exp", neg(usq))))
	default:
		return antiderivative{}, false
	}
	return antiderivative{F: F, conds: conds}.scaled(1 / p), true
}

// integrateGaussian handles exp(a*x^2 + b*x + c) with a < 0 by completing the
// square: the result is a multiple of erf(sqrt(-a)*(x + b/(2a))).
func integrateGaussian(u Node) (antiderivative, bool) {
	l, ok := toLaurent(u)
	if !ok {
		return antiderivative{}, false
	}
	a, b, c, ok := l.quadratic()
	if !ok || a >= 0 {
		return antiderivative{}, false
	}
	s := math.Sqrt(-a)
	m := b / (2 * a)
	k := math.Exp(c-b*b/(4*a)) * math.SqrtPi / (2 * s)
	return antiderivative{F: scale(k, call("erf", linearNode(s, s*m)))}, true
}

func integratePower(v *Binary) (antiderivative, bool) {
	if c, ok := v.L.(*Call); ok && !hasX(v.R) {
		return integrateCallPower(c, constValue(v.R))
	}
	if !hasX(v.R) {
		r := constValue(v.R)
		p, q, ok := linearOf(v.L)
		if !ok {
			return antiderivative{}, false
		}
		on := func(k condKind) conditions { return conditions{{kind: k, p: p, q: q}} }
		if r == -1 {
			return antiderivative{F: call("log", call("abs", v.L)), conds: on(nonZero)}.scaled(1 / p), true
		}
		ad := antiderivative{F: pow(v.L, num(r+1))}
		switch {
		case r == math.Trunc(r) && r >= 0:
		case r == math.Trunc(r):
			ad.conds = on(nonZero)
		case r > 0:
			ad.conds = on(nonNegative)
		default:
			ad.conds = on(positive)
		}
		return ad.scaled(1 / (p * (r + 1))), true
	}
	if !hasX(v.L) {
		c := constValue(v.L)
		p, _, ok := linearOf(v.R)
		if !ok || c <= 0 || c == 1 || math.IsInf(c, 0) {
			return antiderivative{}, false
		}
		return antiderivative{F: pow(v.L, v.R)}.scaled(1 / (p * math.Log(c))), true
	}
	return antiderivative{}, false
}

// maxReduction bounds the exponent n in sin(u)^n and cos(u)^n.
const maxReduction = 16

// integrateCallPower handles sin(u)^n and cos(u)^n for whole n by the
// reduction formula, and exp(u)^r as exp(r*u).
func integrateCallPower(c *Call, r float64) (antiderivative, bool) {
	switch c.Fn {
	case "exp":
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return antiderivative{}, false
		}
		if r == 0 {
			return antiderivative{F: Var{}}, true
		}
		return integrateCall(&Call{Fn: "exp", Arg: scale(r, c.Arg)})
	case "sin", "cos":
		p, _, ok := linearOf(c.Arg)
		if !ok || r != math.Trunc(r) || r < 0 || r > maxReduction {
			return antiderivative{}, false
		}
		return antiderivative{F: reducePower(c.Fn, c.Arg, p, int(r))}, true
	}
	return antiderivative{}, false
}

// reducePower returns the antiderivative of fn(u)^n for u = p*x + q:
//
//	sin^n: -sin^(n-1)(u)*cos(u)/(n*p) + (n-1)/n * ∫sin^(n-2)(u)
//	cos^n:  cos^(n-1)(u)*sin(u)/(n*p) + (n-1)/n * ∫cos^(n-2)(u)
func reducePower(fn string, u Node, p float64, n int) Node {
	sign, other := 1.0, "sin"
	if fn == "sin" {
		sign, other = -1, "cos"
	}
	switch n {
	case 0:
		return Var{}
	case 1:
		return scale(sign/p, call(other, u))
	}
	head := mul(pow(call(fn, u), num(float64(n-1))), call(other, u))
	k := float64(n)
	return add(scale(sign/(k*p), head), scale((k-1)/k, reducePower(fn, u, p, n-2)))
}

func integrateQuotient(v *Binary, depth int) (antiderivative, bool) {
	if !hasX(v.R) {
		ad, ok := integrate(v.L, depth+1)
		if !ok {
			return antiderivative{}, false
		}
		return ad.scaled(1 / constValue(v.R)), true
	}
	numer, numerOK := toLaurent(v.L)
	if numerOK && numer.isPolynomial() {
		den, ok := toLaurent(v.R)
		if ok && den.isPolynomial() && den.topDegree() >= 1 && !den.leadNegligible() &&
			numer.topDegree() >= den.topDegree() {
			return integrateDivided(numer, den, v.R, depth)
		}
	}
	if numerOK && numer.isPolynomial() && numer.topDegree() == 0 {
		if p, q, ok := linearOf(v.R); ok {
			ad := antiderivative{
				F:     call("log", call("abs", v.R)),
				conds: conditions{{kind: nonZero, p: p, q: q}},
			}
			return ad.scaled(constValue(v.L) / p), true
		}
	}
	if numerOK && numer.isPolynomial() && numer.topDegree() <= 1 {
		if ad, ok := integrateOverQuadratic(numer, v.R); ok {
			return ad, true
		}
	}
	if rec, ok := reciprocal(v.R); ok {
		if !hasX(v.L) {
			// scaling keeps the reciprocal's conditions, also for c = 0
			ad, ok := integrate(rec, depth+1)
			if !ok {
				return antiderivative{}, false
			}
			return ad.scaled(constValue(v.L)), true
		}
		return integrate(mul(v.L, rec), depth+1)
	}
	return antiderivative{}, false
}

// integrateDivided handles N(x)/D(x) with deg N >= deg D by long division:
// the quotient is a polynomial and the remainder goes through the quotient
// rules again.
func integrateDivided(numer, den laurent, denNode Node, depth int) (antiderivative, bool) {
	quot, rem := numer.divmod(den)
	ad := integrateLaurent(quot)
	if len(rem) == 0 {
		if p, q, ok := den.linear(); ok {
			ad.conds = append(ad.conds, condition{kind: nonZero, p: p, q: q})
			return ad, true
		}
		if a, b, c, ok := den.quadratic(); ok && 4*a*c-b*b > 0 {
			return ad, true
		}
		return antiderivative{}, false
	}
	r, ok := integrate(div(rem.node(), denNode), depth+1)
	if !ok {
		return antiderivative{}, false
	}
	return antiderivative{F: add(ad.F, r.F), conds: append(ad.conds, r.conds...)}, true
}

// integrateOverQuadratic handles (l1*x + l0)/(a*x^2 + b*x + c) when the
// denominator has no real roots: a log term for the R'/R part plus an atan.
func integrateOverQuadratic(numer laurent, den Node) (antiderivative, bool) {
	l, ok := toLaurent(den)
	if !ok {
		return antiderivative{}, false
	}
	a, b, c, ok := l.quadratic()
	if !ok {
		return antiderivative{}, false
	}
	disc := 4*a*c - b*b
	if disc <= 0 {
		return antiderivative{}, false
	}
	alpha := numer[1] / (2 * a)
	beta := numer[0] - alpha*b
	d := math.Sqrt(disc)

	var logArg Node = den
	if a < 0 {
		logArg = call("abs", den)
	}
	F := add(
		scale(alpha, call("log", logArg)),
		scale(2*beta/d, call("atan", linearNode(2*a/d, b/d))),
	)
	return antiderivative{F: F}, true
}

func reciprocal(n Node) (Node, bool) {
	switch v := n.(type) {
	case *Binary:
		if v.Op == '^' && !hasX(v.R) {
			return pow(v.L, num(-constValue(v.R))), true
		}
	case *Call:
		switch v.Fn {
		case "sqrt":
			return pow(v.Arg, num(-0.5)), true
		case "exp":
			return call("exp", neg(v.Arg)), true
		}
	}
	return nil, false
}

// factors flattens a product into a constant coefficient and the factors
// that depend on x.
func factors(n Node, coeff float64, out []Node) (float64, []Node) {
	switch v := n.(type) {
	case *Neg:
		return factors(v.X, -coeff, out)
	case *Binary:
		if v.Op == '*' {
			coeff, out = factors(v.L, coeff, out)
			return factors(v.R, coeff, out)
		}
		if v.Op == '/' && !hasX(v.R) {
			return factors(v.L, coeff/constValue(v.R), out)
		}
	}
	if !hasX(n) {
		return coeff * constValue(n), out
	}
	return coeff, append(out, n)
}

func integrateProduct(v *Binary, depth int) (antiderivative, bool) {
	coeff, fs := factors(v, 1, nil)
	if len(fs) == 1 {
		ad, ok := integrate(fs[0], depth+1)
		if !ok {
			return antiderivative{}, false
		}
		return ad.scaled(coeff), true
	}

	poly := laurent{0: 1}
	var rest []Node
	for _, f := range fs {
		if l, ok := toLaurent(f); ok && l.isPolynomial() {
			if poly, ok = poly.times(l); !ok {
				return antiderivative{}, false
			}
			continue
		}
		rest = append(rest, f)
	}

	var ad antiderivative
	var ok bool
	switch {
	case len(rest) == 0:
		ad, ok = integrateLaurent(poly), true
	case len(rest) == 1 && poly.topDegree() == 0:
		ad, ok = integrate(rest[0], depth+1)
		coeff *= poly[0]
	case len(rest) == 1:
		ad, ok = integrateTabular(poly, rest[0])
	case len(rest) == 2 && poly.topDegree() == 0:
		ad, ok = integratePair(rest[0], rest[1], depth)
		coeff *= poly[0]
	}
	if !ok {
		return antiderivative{}, false
	}
	return ad.scaled(coeff), true
}

// nthAntiderivative returns the j-th repeated antiderivative of fn(p*x + q).
func nthAntiderivative(fn string, u Node, p float64, j int) (Node, bool) {
	k := math.Pow(p, -float64(j))
	switch fn {
	case "exp":
		return scale(k, call("exp", u)), true
	case "sin":
		switch j % 4 {
		case 0:
			return scale(k, call("sin", u)), true
		case 1:
			return scale(-k, call("cos", u)), true
		case 2:
			return scale(-k, call("sin", u)), true
		default:
			return scale(k, call("cos", u)), true
		}
	case "cos":
		switch j % 4 {
		case 0:
			return scale(k, call("cos", u)), true
		case 1:
			return scale(k, call("sin", u)), true
		case 2:
			return scale(-k, call("cos", u)), true
		default:
			return scale(-k, call("sin", u)), true
		}
	case "sinh", "cosh":
		other := map[string]string{"sinh": "cosh", "cosh": "sinh"}[fn]
		if j%2 == 0 {
			return scale(k, call(fn, u)), true
		}
		return scale(k, call(other, u)), true
	}
	return nil, false
}

// integrateTabular integrates P(x)*g(x) by repeated integration by parts:
// sum over k of (-1)^k * P^(k)(x) * G_(k+1)(x).
func integrateTabular(poly laurent, g Node) (antiderivative, bool) {
	c, ok := g.(*Call)
	if !ok || poly.topDegree() > maxTabular {
		return antiderivative{}, false
	}
	p, q, ok := linearOf(c.Arg)
	if !ok {
		return antiderivative{}, false
	}
	if c.Fn == "log" {
		return integrateLogProduct(poly, c.Arg, p, q), true
	}
	var F Node = num(0)
	d := poly
	for k := 0; len(d) > 0; k++ {
		G, ok := nthAntiderivative(c.Fn, c.Arg, p, k+1)
		if !ok {
			return antiderivative{}, false
		}
		term := mul(d.node(), G)
		if k%2 == 1 {
			F = sub(F, term)
		} else {
			F = add(F, term)
		}
		d = d.derivative()
	}
	return antiderivative{F: F}, true
}

// integrateLogProduct integrates P(x)*log(u), u = p*x + q, by parts. Q is
// the antiderivative of P shifted so that Q(-q/p) = 0, which makes Q*p/u the
// polynomial S = Q/(x + q/p). The result is Q*log(u) - ∫S.
func integrateLogProduct(poly laurent, u Node, p, q float64) antiderivative {
	root := -q / p
	Q := poly.integral()
	Q.set(0, Q[0]-Q.at(root))
	S := Q.divideRoot(root)
	F := sub(mul(Q.node(), call("log", u)), integrateLaurent(S).F)
	return antiderivative{F: F, conds: conditions{{kind: positive, p: p, q: q}}}
}

// integratePair handles two transcendental factors of linear arguments.
func integratePair(f, g Node, depth int) (antiderivative, bool) {
	cf, ok1 := f.(*Call)
	cg, ok2 := g.(*Call)
	if !ok1 || !ok2 {
		return antiderivative{}, false
	}
	if cg.Fn == "exp" {
		cf, cg = cg, cf
	}
	p1, q1, ok1 := linearOf(cf.Arg)
	p2, q2, ok2 := linearOf(cg.Arg)
	if !ok1 || !ok2 {
		return antiderivative{}, false
	}
	u, v := cf.Arg, cg.Arg
	sum := linearNode(p1+p2, q1+q2)
	diff := linearNode(p1-p2, q1-q2)

	var integrand Node
	switch cf.Fn + "*" + cg.Fn {
	case "sin*sin":
		integrand = scale(0.5, sub(call("cos", diff), call("cos", sum)))
	case "cos*cos":
		integrand = scale(0.5, add(call("cos", diff), call("cos", sum)))
	case "sin*cos":
		integrand = scale(0.5, add(call("sin", sum), call("sin", diff)))
	case "cos*sin":
		integrand = scale(0.5, sub(call("sin", sum), call("sin", diff)))
	case "exp*exp":
		integrand = call("exp", sum)
	case "exp*sin":
		F := mul(call("exp", u), sub(scale(p1, call("sin", v)), scale(p2, call("cos", v))))
		return antiderivative{F: F}.scaled(1 / (p1*p1 + p2*p2)), true
	case "exp*cos":
		F := mul(call("exp", u), add(scale(p1, call("cos", v)), scale(p2, call("sin", v))))
		return antiderivative{F: F}.scaled(1 / (p1*p1 + p2*p2)), true
	default:
		return antiderivative{}, false
	}
	return integrate(integrand, depth+1)
}
