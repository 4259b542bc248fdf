// Package parse reads declarative variational-form specification files:
// element constructors, function declarations, operator expressions and
// measure-tagged top-level form bindings. Parsing evaluates directly
// into element and form values; errors carry line and column positions.
package parse

import "fmt"

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenIdent
	tokenNumber
	tokenString
	tokenPlus
	tokenMinus
	tokenStar
	tokenEquals
	tokenLParen
	tokenRParen
	tokenComma
	tokenNewline
)

func (t tokenType) String() string {
	switch t {
	case tokenEOF:
		return "end of input"
	case tokenIdent:
		return "identifier"
	case tokenNumber:
		return "number"
	case tokenString:
		return "string"
	case tokenPlus:
		return "'+'"
	case tokenMinus:
		return "'-'"
	case tokenStar:
		return "'*'"
	case tokenEquals:
		return "'='"
	case tokenLParen:
		return "'('"
	case tokenRParen:
		return "')'"
	case tokenComma:
		return "','"
	case tokenNewline:
		return "newline"
	}
	return fmt.Sprintf("token(%d)", int(t))
}

type token struct {
	typ   tokenType
	value string
	line  int
	col   int
}

type lexer struct {
	input string
	pos   int
	line  int
	col   int
}

func newLexer(input string) *lexer {
	return &lexer{input: input, line: 1, col: 1}
}

func (l *lexer) advance() byte {
	ch := l.input[l.pos]
	l.pos++
	if ch == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return ch
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || (ch >= '0' && ch <= '9')
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

// next returns the following token. Line continuations are not
// supported: a statement ends at the newline.
func (l *lexer) next() (token, error) {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == ' ' || ch == '\t' || ch == '\r' {
			l.advance()
			continue
		}
		if ch == '#' {
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.advance()
			}
			continue
		}
		break
	}

	if l.pos >= len(l.input) {
		return token{typ: tokenEOF, line: l.line, col: l.col}, nil
	}

	tok := token{line: l.line, col: l.col}
	ch := l.input[l.pos]

	switch {
	case ch == '\n':
		l.advance()
		tok.typ = tokenNewline
		return tok, nil
	case ch == '+':
		l.advance()
		tok.typ = tokenPlus
		return tok, nil
	case ch == '-':
		l.advance()
		tok.typ = tokenMinus
		return tok, nil
	case ch == '*':
		l.advance()
		tok.typ = tokenStar
		return tok, nil
	case ch == '=':
		l.advance()
		tok.typ = tokenEquals
		return tok, nil
	case ch == '(':
		l.advance()
		tok.typ = tokenLParen
		return tok, nil
	case ch == ')':
		l.advance()
		tok.typ = tokenRParen
		return tok, nil
	case ch == ',':
		l.advance()
		tok.typ = tokenComma
		return tok, nil
	case ch == '"':
		l.advance()
		start := l.pos
		for l.pos < len(l.input) && l.input[l.pos] != '"' && l.input[l.pos] != '\n' {
			l.advance()
		}
		if l.pos >= len(l.input) || l.input[l.pos] != '"' {
			return tok, fmt.Errorf("%d:%d: unterminated string", tok.line, tok.col)
		}
		tok.typ = tokenString
		tok.value = l.input[start:l.pos]
		l.advance()
		return tok, nil
	case isDigit(ch) || (ch == '.' && l.pos+1 < len(l.input) && isDigit(l.input[l.pos+1])):
		start := l.pos
		for l.pos < len(l.input) && (isDigit(l.input[l.pos]) || l.input[l.pos] == '.') {
			l.advance()
		}
		// exponent
		if l.pos < len(l.input) && (l.input[l.pos] == 'e' || l.input[l.pos] == 'E') {
			l.advance()
			if l.pos < len(l.input) && (l.input[l.pos] == '+' || l.input[l.pos] == '-') {
				l.advance()
			}
			for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
				l.advance()
			}
		}
		tok.typ = tokenNumber
		tok.value = l.input[start:l.pos]
		return tok, nil
	case isIdentStart(ch):
		start := l.pos
		for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
			l.advance()
		}
		tok.typ = tokenIdent
		tok.value = l.input[start:l.pos]
		return tok, nil
	}
	return tok, fmt.Errorf("%d:%d: unexpected character %q", tok.line, tok.col, ch)
}
