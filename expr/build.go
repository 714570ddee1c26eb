package expr

import "math"

// Constructors used when synthesizing antiderivatives. They fold constants
// and drop neutral elements so the printed result stays readable.

func num(v float64) Node { return &Num{V: v} }

func isNum(n Node, v float64) bool {
	c, ok := n.(*Num)
	return ok && c.V == v
}

func add(a, b Node) Node {
	switch {
	case isNum(a, 0):
		return b
	case isNum(b, 0):
		return a
	case !hasX(a) && !hasX(b):
		return num(constValue(a) + constValue(b))
	}
	if c, ok := b.(*Num); ok && c.V < 0 && c.Name == "" {
		return &Binary{Op: '-', L: a, R: num(-c.V)}
	}
	if nb, ok := b.(*Neg); ok {
		return &Binary{Op: '-', L: a, R: nb.X}
	}
	if nb, ok := b.(*Binary); ok && nb.Op == '*' {
		if c, ok := nb.L.(*Num); ok && c.V < 0 {
			return &Binary{Op: '-', L: a, R: scale(-c.V, nb.R)}
		}
	}
	if nb, ok := b.(*Binary); ok && nb.Op == '/' {
		if inner, ok := nb.L.(*Neg); ok {
			return &Binary{Op: '-', L: a, R: &Binary{Op: '/', L: inner.X, R: nb.R}}
		}
		if c, ok := nb.L.(*Num); ok && c.V < 0 && c.Name == "" {
			return &Binary{Op: '-', L: a, R: &Binary{Op: '/', L: num(-c.V), R: nb.R}}
		}
	}
	return &Binary{Op: '+', L: a, R: b}
}

func sub(a, b Node) Node { return add(a, neg(b)) }

func neg(a Node) Node {
	switch v := a.(type) {
	case *Num:
		if v.Name == "" {
			return num(-v.V)
		}
	case *Neg:
		return v.X
	case *Binary:
		if c, ok := v.L.(*Num); ok && v.Op == '*' {
			return scale(-c.V, v.R)
		}
		if v.Op == '-' {
			return &Binary{Op: '-', L: v.R, R: v.L}
		}
	}
	return &Neg{X: a}
}

func mul(a, b Node) Node {
	switch {
	case !hasX(a) && !hasX(b):
		return num(constValue(a) * constValue(b))
	case !hasX(a):
		return scale(constValue(a), b)
	case !hasX(b):
		return scale(constValue(b), a)
	}
	if na, ok := a.(*Neg); ok {
		return neg(mul(na.X, b))
	}
	if nb, ok := b.(*Neg); ok {
		return neg(mul(a, nb.X))
	}
	return &Binary{Op: '*', L: a, R: b}
}

// scale multiplies a non-constant node by c, preferring u/k over (1/k)*u.
func scale(c float64, u Node) Node {
	switch v := u.(type) {
	case *Neg:
		return scale(-c, v.X)
	case *Binary:
		if l, ok := v.L.(*Num); ok && v.Op == '*' && l.Name == "" {
			return scale(c*l.V, v.R)
		}
		if r, ok := v.R.(*Num); ok && v.Op == '/' && r.Name == "" {
			return scale(c/r.V, v.L)
		}
	}
	switch {
	case c == 0:
		return num(0)
	case c == 1:
		return u
	case c == -1:
		return &Neg{X: u}
	}
	if k := 1 / c; math.Abs(k) > 1 && math.Abs(k) < 1e9 && k == math.Trunc(k) {
		if k < 0 {
			return &Neg{X: &Binary{Op: '/', L: u, R: num(-k)}}
		}
		return &Binary{Op: '/', L: u, R: num(k)}
	}
	return &Binary{Op: '*', L: num(c), R: u}
}

func div(a, b Node) Node {
	if !hasX(b) {
		return scale(1/constValue(b), a)
	}
	if isNum(a, 0) {
		return a
	}
	return &Binary{Op: '/', L: a, R: b}
}

func pow(a, b Node) Node {
	switch {
	case isNum(b, 1):
		return a
	case isNum(b, 0):
		return num(1)
	case !hasX(a) && !hasX(b):
		return num(math.Pow(constValue(a), constValue(b)))
	case isNum(b, 0.5):
		return &Call{Fn: "sqrt", Arg: a}
	}
	return &Binary{Op: '^', L: a, R: b}
}

func call(fn string, arg Node) Node {
	if !hasX(arg) {
		f, _ := getFunction(fn)
		return num(f(constValue(arg)))
	}
	return &Call{Fn: fn, Arg: arg}
}

// linearNode builds p*x + q.
func linearNode(p, q float64) Node {
	return add(scale(p, Var{}), num(q))
}
