package calculator

import (
	"sort"

	"trapezoid.dev/integral/expr"
)

// Preset is a sample integrand offered to users who do not type their own.
type Preset struct {
	Group      string
	Expression *expr.Expression
}

// Text returns the function as the user would type it.
func (p Preset) Text() string { return p.Expression.Text() }

var presets map[string]Preset

func init() {
	groups := map[string][]string{
		"Polynomials": {
			"x^2",
			"x^3",
			"2*x^3 - 5*x + 1",
			"x^4 - 4*x^2",
		},
		"Trigonometric": {
			"sin(x)",
			"cos(x)",
			"sin(x) + cos(x)",
			"sin(x) * cos(x)",
		},
		"Exponentials and logarithms": {
			"exp(x)",
			"log(x)",
			"exp(-x^2)",
		},
		"Rational and composite": {
			"1/x",
			"1/(1 + x^2)",
			"sqrt(x)",
			"x * sin(x)",
			"exp(x) / (1 + x^2)",
		},
	}

	presets = make(map[string]Preset)
	for group, texts := range groups {
		for _, text := range texts {
			presets[text] = Preset{Group: group, Expression: expr.MustCompile(text)}
		}
	}
}

// Presets returns the sample functions ordered by group, then by text.
func Presets() []Preset {
	out := make([]Preset, 0, len(presets))
	for _, p := range presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		return out[i].Text() < out[j].Text()
	})
	return out
}

// LookupPreset finds a preset by its text.
func LookupPreset(text string) (Preset, bool) {
	p, ok := presets[text]
	return p, ok
}
