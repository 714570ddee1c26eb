package expr

import "math"

// functions is the whitelist of callable names. Every entry takes one argument.
var functions map[string]func(float64) float64

// constants are the named values an expression may refer to besides x.
var constants = map[string]float64{
	"pi": math.Pi,
	"E":  math.E,
}

func init() {
	functions = map[string]func(float64) float64{
		// --- Trigonometric ---
		"sin":  math.Sin,
		"cos":  math.Cos,
		"tan":  math.Tan,
		"asin": math.Asin,
		"acos": math.Acos,
		"atan": math.Atan,

		// --- Hyperbolic ---
		"sinh": math.Sinh,
		"cosh": math.Cosh,
		"tanh": math.Tanh,

		// --- Exponentials and logarithms ---
		"exp": math.Exp,
		"log": math.Log, // natural logarithm
		"ln":  math.Log,

		// --- Misc ---
		"sqrt": math.Sqrt,
		"abs":  math.Abs,
		"erf":  math.Erf,
	}
}

// canonicalName folds aliases so printing is stable.
func canonicalName(name string) string {
	if name == "ln" {
		return "log"
	}
	return name
}

func getFunction(name string) (func(float64) float64, bool) {
	fn, ok := functions[name]
	return fn, ok
}
