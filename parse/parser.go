package parse

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/varform/formc/element"
	"github.com/varform/formc/form"
)

// File is the result of parsing one specification: the form bindings in
// declaration order plus every named value for inspection.
type File struct {
	Forms []*form.Form

	bindings map[string]any
}

// Form looks up a form binding by name.
func (f *File) Form(name string) (*form.Form, bool) {
	for _, fm := range f.Forms {
		if fm.Name == name {
			return fm, true
		}
	}
	return nil, false
}

// Binding returns the value of any top-level binding: an element, a
// function handle or an expression.
func (f *File) Binding(name string) (any, bool) {
	v, ok := f.bindings[name]
	return v, ok
}

// measureValue is a measure terminal, optionally subdomain-tagged.
type measureValue struct {
	m         form.Measure
	subdomain int
}

// tupleValue is the result of an unpacking constructor.
type tupleValue []any

type parser struct {
	lex *lexer
	tok token

	reg *element.Registry
	env map[string]any

	forms []*form.Form

	// shape of the first constructed element, the default for
	// FacetNormal().
	shape    element.CellShape
	shapeSet bool

	// pendingName names Coefficient/Functions declarations after the
	// binding target of the current statement.
	pendingName string
}

// Parse evaluates a specification source against the given element
// registry. Every error carries the offending line and column.
func Parse(src string, reg *element.Registry) (*File, error) {
	p := &parser{lex: newLexer(src), reg: reg, env: make(map[string]any)}
	if err := p.next(); err != nil {
		return nil, err
	}
	for {
		for p.tok.typ == tokenNewline {
			if err := p.next(); err != nil {
				return nil, err
			}
		}
		if p.tok.typ == tokenEOF {
			break
		}
		if err := p.statement(); err != nil {
			return nil, err
		}
	}
	return &File{Forms: p.forms, bindings: p.env}, nil
}

func (p *parser) next() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) errf(tok token, format string, args ...any) error {
	return fmt.Errorf("%d:%d: %s", tok.line, tok.col, fmt.Sprintf(format, args...))
}

func (p *parser) wrap(tok token, err error) error {
	return fmt.Errorf("%d:%d: %w", tok.line, tok.col, err)
}

func (p *parser) expect(typ tokenType) (token, error) {
	if p.tok.typ != typ {
		return p.tok, p.errf(p.tok, "expected %s, found %s", typ, p.tok.typ)
	}
	tok := p.tok
	return tok, p.next()
}

// statement parses one binding line: `name = expr` or
// `(a, b, ...) = expr`.
func (p *parser) statement() error {
	switch p.tok.typ {
	case tokenIdent:
		name := p.tok
		if err := p.next(); err != nil {
			return err
		}
		if _, err := p.expect(tokenEquals); err != nil {
			return err
		}
		p.pendingName = name.value
		v, err := p.parseExpr()
		if err != nil {
			return err
		}
		if err := p.endStatement(); err != nil {
			return err
		}
		return p.bind(name, v)

	case tokenLParen:
		return p.tupleStatement()
	}
	return p.errf(p.tok, "expected a binding, found %s", p.tok.typ)
}

func (p *parser) tupleStatement() error {
	open := p.tok
	if err := p.next(); err != nil {
		return err
	}
	var targets []token
	for {
		tok, err := p.expect(tokenIdent)
		if err != nil {
			return err
		}
		targets = append(targets, tok)
		if p.tok.typ != tokenComma {
			break
		}
		if err := p.next(); err != nil {
			return err
		}
	}
	if _, err := p.expect(tokenRParen); err != nil {
		return err
	}
	if _, err := p.expect(tokenEquals); err != nil {
		return err
	}

	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = t.value
	}
	p.pendingName = strings.Join(names, "_")

	v, err := p.parseExpr()
	if err != nil {
		return err
	}
	if err := p.endStatement(); err != nil {
		return err
	}

	tup, ok := v.(tupleValue)
	if !ok {
		return p.errf(open, "right-hand side does not unpack into a tuple")
	}
	if len(tup) != len(targets) {
		return p.errf(open, "cannot unpack %d values into %d names", len(tup), len(targets))
	}
	for i, t := range targets {
		p.env[t.value] = tup[i]
	}
	return nil
}

func (p *parser) endStatement() error {
	if p.tok.typ == tokenNewline || p.tok.typ == tokenEOF {
		return nil
	}
	return p.errf(p.tok, "unexpected %s after expression", p.tok.typ)
}

// bind records a top-level binding; expressions that contain integrals
// become named forms.
func (p *parser) bind(name token, v any) error {
	p.env[name.value] = v
	ex, ok := asExpr(v)
	if !ok || !containsIntegral(ex) {
		return nil
	}
	for _, prev := range p.forms {
		if prev.Name == name.value {
			return p.errf(name, "form %q is already bound", name.value)
		}
	}
	f, err := form.NewForm(name.value, form.Simplify(ex))
	if err != nil {
		return p.wrap(name, err)
	}
	p.forms = append(p.forms, f)
	return nil
}

func containsIntegral(e form.Expr) bool {
	switch v := e.(type) {
	case *form.Integral:
		return true
	case *form.Sum:
		for _, t := range v.Terms {
			if containsIntegral(t) {
				return true
			}
		}
	case *form.Product:
		for _, f := range v.Factors {
			if containsIntegral(f) {
				return true
			}
		}
	}
	return false
}

// parseExpr := term { ('+' | '-') term }
func (p *parser) parseExpr() (any, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.tok.typ == tokenPlus || p.tok.typ == tokenMinus {
		op := p.tok
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left, err = p.combineSum(op, left, right)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

// parseTerm := factor { '*' factor }
func (p *parser) parseTerm() (any, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for p.tok.typ == tokenStar {
		op := p.tok
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left, err = p.combineProduct(op, left, right)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (p *parser) parseFactor() (any, error) {
	switch p.tok.typ {
	case tokenNumber:
		tok := p.tok
		if err := p.next(); err != nil {
			return nil, err
		}
		v, err := strconv.ParseFloat(tok.value, 64)
		if err != nil {
			return nil, p.errf(tok, "invalid number %q", tok.value)
		}
		return v, nil

	case tokenString:
		tok := p.tok
		if err := p.next(); err != nil {
			return nil, err
		}
		return tok.value, nil

	case tokenMinus:
		tok := p.tok
		if err := p.next(); err != nil {
			return nil, err
		}
		v, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		if f, ok := v.(float64); ok {
			return -f, nil
		}
		ex, ok := asExpr(v)
		if !ok {
			return nil, p.errf(tok, "cannot negate this value")
		}
		return form.Negate(ex), nil

	case tokenLParen:
		if err := p.next(); err != nil {
			return nil, err
		}
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokenRParen); err != nil {
			return nil, err
		}
		return v, nil

	case tokenIdent:
		name := p.tok
		if err := p.next(); err != nil {
			return nil, err
		}
		if p.tok.typ == tokenLParen {
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			return p.call(name, args)
		}
		return p.resolve(name)
	}
	return nil, p.errf(p.tok, "unexpected %s in expression", p.tok.typ)
}

func (p *parser) parseArgs() ([]any, error) {
	if _, err := p.expect(tokenLParen); err != nil {
		return nil, err
	}
	var args []any
	if p.tok.typ == tokenRParen {
		return args, p.next()
	}
	for {
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, v)
		if p.tok.typ != tokenComma {
			break
		}
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(tokenRParen); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *parser) resolve(name token) (any, error) {
	if v, ok := p.env[name.value]; ok {
		return v, nil
	}
	if m, ok := form.MeasureByName(name.value); ok {
		return measureValue{m: m, subdomain: -1}, nil
	}
	return nil, p.errf(name, "undefined name %q", name.value)
}

// combineSum adds or subtracts; plain numbers fold directly.
func (p *parser) combineSum(op token, a, b any) (any, error) {
	if fa, ok := a.(float64); ok {
		if fb, ok := b.(float64); ok {
			if op.typ == tokenMinus {
				return fa - fb, nil
			}
			return fa + fb, nil
		}
	}
	ea, ok := asExpr(a)
	if !ok {
		return nil, p.errf(op, "left operand of %s is not an expression", op.typ)
	}
	eb, ok := asExpr(b)
	if !ok {
		return nil, p.errf(op, "right operand of %s is not an expression", op.typ)
	}
	var (
		res form.Expr
		err error
	)
	if op.typ == tokenMinus {
		res, err = form.Sub(ea, eb)
	} else {
		res, err = form.Add(ea, eb)
	}
	if err != nil {
		return nil, p.wrap(op, err)
	}
	return res, nil
}

// combineProduct multiplies; a measure on the right closes the term
// into an integral.
func (p *parser) combineProduct(op token, a, b any) (any, error) {
	if m, ok := b.(measureValue); ok {
		ea, ok := asExpr(a)
		if !ok {
			return nil, p.errf(op, "integrand is not an expression")
		}
		res, err := form.Integrate(ea, m.m, m.subdomain)
		if err != nil {
			return nil, p.wrap(op, err)
		}
		return res, nil
	}
	if _, ok := a.(measureValue); ok {
		return nil, p.errf(op, "a measure must close its term on the right")
	}
	if fa, ok := a.(float64); ok {
		if fb, ok := b.(float64); ok {
			return fa * fb, nil
		}
	}
	ea, ok := asExpr(a)
	if !ok {
		return nil, p.errf(op, "left operand of '*' is not an expression")
	}
	eb, ok := asExpr(b)
	if !ok {
		return nil, p.errf(op, "right operand of '*' is not an expression")
	}
	res, err := form.Multiply(ea, eb)
	if err != nil {
		return nil, p.wrap(op, err)
	}
	return res, nil
}

func asExpr(v any) (form.Expr, bool) {
	switch x := v.(type) {
	case form.Expr:
		return x, true
	case float64:
		return &form.Constant{Value: x}, true
	}
	return nil, false
}

func asInt(v any) (int, bool) {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func asElement(v any) (element.Element, bool) {
	el, ok := v.(element.Element)
	return el, ok
}
