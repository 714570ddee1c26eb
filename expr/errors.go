package expr

import "fmt"

// ParseError reports why a function text could not be compiled.
type ParseError struct {
	Input string // the text given to Compile
	Pos   int    // byte offset of the offending token, -1 when not tied to a token
	Msg   string
}

func (e *ParseError) Error() string {
	if e.Pos < 0 {
		return fmt.Sprintf("invalid function %q: %s", e.Input, e.Msg)
	}
	return fmt.Sprintf("invalid function %q: %s at offset %d", e.Input, e.Msg, e.Pos)
}
