package expr

import (
	"fmt"
	"strconv"
	"strings"
	"text/scanner"
)

// parser is a recursive-descent parser over text/scanner tokens:
//
//	expr    = term { ("+" | "-") term }
//	term    = unary { ("*" | "/") unary }
//	unary   = ("+" | "-") unary | power
//	power   = primary [ ("^" | "**") unary ]
//	primary = number | ident | ident "(" expr ")" | "(" expr ")"
type parser struct {
	s      scanner.Scanner
	input  string
	tok    rune
	pos    int
	lexErr *ParseError
}

func parse(input string) (Node, error) {
	p := &parser{input: input}
	p.s.Init(strings.NewReader(input))
	p.s.Mode = scanner.ScanIdents | scanner.ScanFloats
	p.s.Error = func(s *scanner.Scanner, msg string) {
		if p.lexErr == nil {
			p.lexErr = &ParseError{Input: input, Pos: s.Pos().Offset, Msg: msg}
		}
	}
	p.next()

	if p.tok == scanner.EOF {
		return nil, &ParseError{Input: input, Pos: -1, Msg: "empty expression"}
	}
	n, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.tok != scanner.EOF {
		return nil, p.unexpected()
	}
	if p.lexErr != nil {
		return nil, p.lexErr
	}
	return n, nil
}

func (p *parser) next() {
	p.tok = p.s.Scan()
	p.pos = p.s.Position.Offset
}

func (p *parser) errorf(format string, args ...any) *ParseError {
	if p.lexErr != nil {
		return p.lexErr
	}
	return &ParseError{Input: p.input, Pos: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) unexpected() *ParseError {
	if p.tok == scanner.EOF {
		return p.errorf("unexpected end of expression")
	}
	return p.errorf("unexpected %q", p.s.TokenText())
}

func (p *parser) expr() (Node, error) {
	n, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.tok == '+' || p.tok == '-' {
		op := byte(p.tok)
		p.next()
		r, err := p.term()
		if err != nil {
			return nil, err
		}
		n = &Binary{Op: op, L: n, R: r}
	}
	return n, nil
}

func (p *parser) term() (Node, error) {
	n, err := p.unary()
	if err != nil {
		return nil, err
	}
	for (p.tok == '*' && p.s.Peek() != '*') || p.tok == '/' {
		op := byte(p.tok)
		pos := p.pos
		p.next()
		r, err := p.unary()
		if err != nil {
			return nil, err
		}
		if op == '/' && !hasX(r) && constValue(r) == 0 {
			return nil, &ParseError{Input: p.input, Pos: pos, Msg: "division by zero"}
		}
		n = &Binary{Op: op, L: n, R: r}
	}
	return n, nil
}

func (p *parser) unary() (Node, error) {
	switch p.tok {
	case '+':
		p.next()
		return p.unary()
	case '-':
		p.next()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &Neg{X: x}, nil
	}
	return p.power()
}

func (p *parser) power() (Node, error) {
	base, err := p.primary()
	if err != nil {
		return nil, err
	}
	switch {
	case p.tok == '^':
		p.next()
	case p.tok == '*' && p.s.Peek() == '*':
		p.next()
		p.next()
	default:
		return base, nil
	}
	exp, err := p.unary()
	if err != nil {
		return nil, err
	}
	return &Binary{Op: '^', L: base, R: exp}, nil
}

func (p *parser) primary() (Node, error) {
	switch p.tok {
	case '(':
		p.next()
		n, err := p.expr()
		if err != nil {
			return nil, err
		}
		if p.tok != ')' {
			return nil, p.errorf("expected ')'")
		}
		p.next()
		return n, nil
	case scanner.Int, scanner.Float:
		v, err := strconv.ParseFloat(p.s.TokenText(), 64)
		if err != nil {
			return nil, p.errorf("malformed number %q", p.s.TokenText())
		}
		p.next()
		return &Num{V: v}, nil
	case scanner.Ident:
		return p.ident()
	}
	return nil, p.unexpected()
}

func (p *parser) ident() (Node, error) {
	name := p.s.TokenText()
	if name == "x" {
		p.next()
		return Var{}, nil
	}
	if v, ok := constants[name]; ok {
		p.next()
		return &Num{V: v, Name: name}, nil
	}
	if _, ok := getFunction(name); !ok {
		return nil, p.errorf("unknown identifier %q", name)
	}
	p.next()
	if p.tok != '(' {
		return nil, p.errorf("expected '(' after %s", name)
	}
	p.next()
	arg, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.tok == ',' {
		return nil, p.errorf("%s takes exactly one argument", name)
	}
	if p.tok != ')' {
		return nil, p.errorf("expected ')'")
	}
	p.next()
	return &Call{Fn: canonicalName(name), Arg: arg}, nil
}
