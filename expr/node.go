package expr

import (
	"math"
	"strconv"
)

type precedence int

const (
	addPrecedence precedence = iota
	mulPrecedence
	negPrecedence
	powPrecedence
	atomicPrecedence
)

// A Node is a sub-expression of a function of x. Nodes are never mutated once
// built, so they can be shared between expressions.
type Node interface {
	// Eval evaluates the node at every point of xs and returns a new slice of
	// the same length. Undefined points yield NaN or ±Inf.
	Eval(xs []float64) []float64

	// String returns the expression text; it compiles back to an equal node.
	String() string

	precedence() precedence
}

// Num is a numeric constant. Name is set for named constants such as pi.
type Num struct {
	V    float64
	Name string
}

// Var is the free variable x.
type Var struct{}

// Neg is unary minus.
type Neg struct{ X Node }

// Binary is one of the operators + - * / ^.
type Binary struct {
	Op   byte
	L, R Node
}

// Call applies a whitelisted function to its argument.
type Call struct {
	Fn  string
	Arg Node
}

func (n *Num) Eval(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i := range out {
		out[i] = n.V
	}
	return out
}

func (n *Num) String() string {
	if n.Name != "" {
		return n.Name
	}
	return strconv.FormatFloat(n.V, 'g', -1, 64)
}

func (n *Num) precedence() precedence {
	if n.Name == "" && (n.V < 0 || math.Signbit(n.V)) {
		return negPrecedence
	}
	return atomicPrecedence
}

func (Var) Eval(xs []float64) []float64 {
	out := make([]float64, len(xs))
	copy(out, xs)
	return out
}

func (Var) String() string         { return "x" }
func (Var) precedence() precedence { return atomicPrecedence }

func (n *Neg) Eval(xs []float64) []float64 {
	out := n.X.Eval(xs)
	for i := range out {
		out[i] = -out[i]
	}
	return out
}

func (n *Neg) String() string {
	return "-" + wrap(n.X, n.X.precedence() < mulPrecedence || n.X.precedence() == negPrecedence)
}

func (n *Neg) precedence() precedence { return negPrecedence }

func (n *Binary) Eval(xs []float64) []float64 {
	l := n.L.Eval(xs)
	r := n.R.Eval(xs)
	switch n.Op {
	case '+':
		for i := range l {
			l[i] += r[i]
		}
	case '-':
		for i := range l {
			l[i] -= r[i]
		}
	case '*':
		for i := range l {
			l[i] *= r[i]
		}
	case '/':
		for i := range l {
			l[i] /= r[i]
		}
	case '^':
		for i := range l {
			l[i] = math.Pow(l[i], r[i])
		}
	}
	return l
}

func (n *Binary) String() string {
	lp, rp := n.L.precedence(), n.R.precedence()
	switch n.Op {
	case '+':
		return wrap(n.L, false) + " + " + wrap(n.R, rp == negPrecedence)
	case '-':
		return wrap(n.L, false) + " - " + wrap(n.R, rp <= addPrecedence || rp == negPrecedence)
	case '*':
		return wrap(n.L, lp < mulPrecedence) + "*" + wrap(n.R, rp <= mulPrecedence || rp == negPrecedence)
	case '/':
		return wrap(n.L, lp < mulPrecedence) + "/" + wrap(n.R, rp <= negPrecedence)
	default:
		return wrap(n.L, lp <= powPrecedence) + "^" + wrap(n.R, rp < powPrecedence)
	}
}

func (n *Binary) precedence() precedence {
	switch n.Op {
	case '+', '-':
		return addPrecedence
	case '*', '/':
		return mulPrecedence
	default:
		return powPrecedence
	}
}

func (n *Call) Eval(xs []float64) []float64 {
	out := n.Arg.Eval(xs)
	fn, _ := getFunction(n.Fn)
	for i := range out {
		out[i] = fn(out[i])
	}
	return out
}

func (n *Call) String() string         { return n.Fn + "(" + n.Arg.String() + ")" }
func (n *Call) precedence() precedence { return atomicPrecedence }

func wrap(n Node, parens bool) string {
	if parens {
		return "(" + n.String() + ")"
	}
	return n.String()
}

// hasX reports whether n depends on the free variable.
func hasX(n Node) bool {
	switch v := n.(type) {
	case Var:
		return true
	case *Neg:
		return hasX(v.X)
	case *Binary:
		return hasX(v.L) || hasX(v.R)
	case *Call:
		return hasX(v.Arg)
	}
	return false
}

// constValue evaluates a node that does not depend on x.
func constValue(n Node) float64 {
	return n.Eval([]float64{0})[0]
}
