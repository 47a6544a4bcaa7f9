package loader

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSyntax is wrapped by every *ParseError.
var ErrSyntax = errors.New("syntax error")

// ParseError locates a problem-description error. Line is 1-based; 0
// means the file as a whole.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%s: %s", ErrSyntax, e.Msg)
	}
	return fmt.Sprintf("%s: line %d: %s", ErrSyntax, e.Line, e.Msg)
}

func (e *ParseError) Unwrap() error { return ErrSyntax }

func errorf(line int, format string, args ...any) *ParseError {
	return &ParseError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokPunct
	tokEOF
)

type token struct {
	kind tokenKind
	text string
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of line"
	}
	return fmt.Sprintf("%q", t.text)
}

const punctuation = "(),&~;:|*="

func isIdentRune(r rune) bool {
	return r == '_' || r == '-' || r == '.' || r == '\'' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func lex(s string, line int) ([]token, error) {
	var toks []token
	rs := []rune(s)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case r == ' ' || r == '\t' || r == '\r':
			i++
		case strings.ContainsRune(punctuation, r):
			toks = append(toks, token{kind: tokPunct, text: string(r)})
			i++
		case isIdentRune(r):
			j := i
			for j < len(rs) && isIdentRune(rs[j]) {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: string(rs[i:j])})
			i = j
		default:
			return nil, errorf(line, "unexpected character %q", r)
		}
	}
	return append(toks, token{kind: tokEOF}), nil
}

// cursor walks the tokens of one line.
type cursor struct {
	toks []token
	pos  int
	line int
}

func newCursor(s string, line int) (*cursor, error) {
	toks, err := lex(s, line)
	if err != nil {
		return nil, err
	}
	return &cursor{toks: toks, line: line}, nil
}

func (c *cursor) peek() token { return c.toks[c.pos] }

func (c *cursor) next() token {
	t := c.toks[c.pos]
	if t.kind != tokEOF {
		c.pos++
	}
	return t
}

func (c *cursor) is(p string) bool {
	t := c.peek()
	return t.kind == tokPunct && t.text == p
}

func (c *cursor) accept(p string) bool {
	if c.is(p) {
		c.pos++
		return true
	}
	return false
}

func (c *cursor) expect(p string) error {
	if !c.accept(p) {
		return errorf(c.line, "expected %q, found %s", p, c.peek())
	}
	return nil
}

func (c *cursor) ident() (string, error) {
	t := c.next()
	if t.kind != tokIdent {
		return "", errorf(c.line, "expected a name, found %s", t)
	}
	return t.text, nil
}

func (c *cursor) atEnd() bool { return c.peek().kind == tokEOF }

func (c *cursor) end() error {
	if !c.atEnd() {
		return errorf(c.line, "unexpected %s", c.peek())
	}
	return nil
}
