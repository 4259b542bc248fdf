// Package form builds and analyzes symbolic variational forms: immutable
// expression trees over test, trial and coefficient functions, tagged
// with integration measures. Trees are never mutated in place; every
// transformation produces a new tree so the original stays available
// for diagnostics.
package form

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/varform/formc/element"
)

// Expr is a node of a form expression tree. The set of implementations
// is closed: construction goes through the operator functions in this
// package, which resolve rank and degree at build time.
type Expr interface {
	// Rank is the tensor rank of the node's value: 0 scalar, 1 vector,
	// 2 tensor.
	Rank() int
	// DegreeBound is the polynomial degree bound of the node, used for
	// quadrature selection.
	DegreeBound() int
	String() string
}

// Role distinguishes the symbolic function kinds appearing in a form.
type Role uint8

const (
	TestRole Role = iota
	TrialRole
	CoefficientRole
)

func (r Role) String() string {
	switch r {
	case TestRole:
		return "test"
	case TrialRole:
		return "trial"
	case CoefficientRole:
		return "coefficient"
	}
	return fmt.Sprintf("Role(%d)", uint8(r))
}

// argumentIDs disambiguates distinct function objects that would
// otherwise look alike; sub-handles of one mixed function share their
// parent's id.
var argumentIDs atomic.Uint64

// Argument is a symbolic handle to a test, trial or coefficient
// function. It references its element without owning it. For functions
// over mixed elements, unpacked sub-handles carry the parent mixed
// element and a slot index; Slot is -1 otherwise.
type Argument struct {
	name   string
	el     element.Element
	role   Role
	index  int
	id     uint64
	slot   int
	parent *element.MixedElement
}

func (a *Argument) Name() string                       { return a.name }
func (a *Argument) Element() element.Element           { return a.el }
func (a *Argument) Role() Role                         { return a.role }
func (a *Argument) Index() int                         { return a.index }
func (a *Argument) Slot() int                          { return a.slot }
func (a *Argument) MixedParent() *element.MixedElement { return a.parent }

func (a *Argument) Rank() int        { return a.el.ValueRank() }
func (a *Argument) DegreeBound() int { return a.el.Degree() }
func (a *Argument) String() string   { return a.name }

// Constant is a literal scalar.
type Constant struct {
	Value float64
}

func (c *Constant) Rank() int        { return 0 }
func (c *Constant) DegreeBound() int { return 0 }
func (c *Constant) String() string {
	return strconv.FormatFloat(c.Value, 'g', -1, 64)
}

// FacetNormal is the outward unit normal on a cell facet. It is only
// meaningful inside facet integrals.
type FacetNormal struct {
	Shape element.CellShape
}

func (n *FacetNormal) Rank() int        { return 1 }
func (n *FacetNormal) DegreeBound() int { return 0 }
func (n *FacetNormal) String() string   { return "n" }

// Sum is the sum of two or more equal-rank terms.
type Sum struct {
	Terms []Expr
	rank  int
}

func (s *Sum) Rank() int { return s.rank }

func (s *Sum) DegreeBound() int {
	deg := 0
	for _, t := range s.Terms {
		if d := t.DegreeBound(); d > deg {
			deg = d
		}
	}
	return deg
}

func (s *Sum) String() string {
	parts := make([]string, len(s.Terms))
	for i, t := range s.Terms {
		parts[i] = t.String()
	}
	return "(" + strings.Join(parts, " + ") + ")"
}

// Product is a multiplication chain with at most one non-scalar factor;
// its rank is that factor's rank.
type Product struct {
	Factors []Expr
	rank    int
}

func (p *Product) Rank() int { return p.rank }

func (p *Product) DegreeBound() int {
	deg := 0
	for _, f := range p.Factors {
		deg += f.DegreeBound()
	}
	return deg
}

func (p *Product) String() string {
	parts := make([]string, len(p.Factors))
	for i, f := range p.Factors {
		parts[i] = f.String()
	}
	return strings.Join(parts, "*")
}

// Dot is the full contraction of two equal-rank operands of rank >= 1.
type Dot struct {
	A, B Expr
}

func (d *Dot) Rank() int        { return 0 }
func (d *Dot) DegreeBound() int { return d.A.DegreeBound() + d.B.DegreeBound() }
func (d *Dot) String() string   { return fmt.Sprintf("dot(%s, %s)", d.A, d.B) }

// Grad is the spatial gradient, raising rank by one.
type Grad struct {
	Arg Expr
}

func (g *Grad) Rank() int { return g.Arg.Rank() + 1 }

func (g *Grad) DegreeBound() int {
	if d := g.Arg.DegreeBound(); d > 0 {
		return d - 1
	}
	return 0
}

func (g *Grad) String() string { return fmt.Sprintf("grad(%s)", g.Arg) }

// Div is the spatial divergence, lowering rank by one.
type Div struct {
	Arg Expr
}

func (d *Div) Rank() int { return d.Arg.Rank() - 1 }

func (d *Div) DegreeBound() int {
	if deg := d.Arg.DegreeBound(); deg > 0 {
		return deg - 1
	}
	return 0
}

func (d *Div) String() string { return fmt.Sprintf("div(%s)", d.Arg) }

// Integral scopes a scalar integrand to an integration measure,
// optionally restricted to a tagged subdomain (-1 when untagged).
type Integral struct {
	Integrand Expr
	M         Measure
	Subdomain int
}

func (i *Integral) Rank() int        { return 0 }
func (i *Integral) DegreeBound() int { return i.Integrand.DegreeBound() }

func (i *Integral) String() string {
	if i.Subdomain >= 0 {
		return fmt.Sprintf("%s*%s(%d)", i.Integrand, i.M, i.Subdomain)
	}
	return fmt.Sprintf("%s*%s", i.Integrand, i.M)
}
