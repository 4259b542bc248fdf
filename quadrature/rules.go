package quadrature

import (
	"errors"
	"fmt"

	"github.com/varform/formc/element"
)

// MaxDegree is the highest polynomial degree the rule catalog covers.
const MaxDegree = 20

// ErrNoRuleAvailable is returned when no registered rule is exact for
// the requested degree on the requested cell.
var ErrNoRuleAvailable = errors.New("no quadrature rule available")

// Rule is a set of reference-cell points and weights. Weights sum to
// the reference cell volume.
type Rule struct {
	Shape  element.CellShape
	Degree int // the rule integrates polynomials up to this degree exactly

	// Point coordinates; S and T are unused below the cell dimension
	R, S, T []float64
	W       []float64
}

// NumPoints returns the number of quadrature points.
func (r *Rule) NumPoints() int { return len(r.W) }

// Select returns a rule exact for polynomials up to the given degree on
// the given reference cell. Degrees above MaxDegree fail with
// ErrNoRuleAvailable.
func Select(shape element.CellShape, degree int) (*Rule, error) {
	if degree < 0 {
		return nil, fmt.Errorf("quadrature: negative degree %d", degree)
	}
	if degree > MaxDegree {
		return nil, fmt.Errorf("%w: degree %d on %s exceeds the %d ceiling",
			ErrNoRuleAvailable, degree, shape, MaxDegree)
	}

	// An n-point Gauss rule is exact to degree 2n-1
	n := degree/2 + 1

	switch shape {
	case element.Interval:
		x, w := GaussJacobi(0, 0, n)
		return &Rule{Shape: shape, Degree: degree, R: x, W: w}, nil
	case element.Triangle:
		return triangleRule(degree, n), nil
	case element.Tetrahedron:
		return tetrahedronRule(degree, n), nil
	}
	return nil, fmt.Errorf("%w: unsupported cell %s", ErrNoRuleAvailable, shape)
}

// triangleRule builds a collapsed-coordinate tensor rule on the
// reference triangle {r,s >= -1, r+s <= 0}. The (1-b)/2 Jacobian of the
// Duffy map is absorbed into a Gauss-Jacobi rule with alpha=1 in the b
// direction.
func triangleRule(degree, n int) *Rule {
	xa, wa := GaussJacobi(0, 0, n)
	xb, wb := GaussJacobi(1, 0, n)

	np := n * n
	rule := &Rule{
		Shape:  element.Triangle,
		Degree: degree,
		R:      make([]float64, 0, np),
		S:      make([]float64, 0, np),
		W:      make([]float64, 0, np),
	}
	for j, b := range xb {
		for i, a := range xa {
			rule.R = append(rule.R, (1+a)*(1-b)/2-1)
			rule.S = append(rule.S, b)
			rule.W = append(rule.W, 0.5*wa[i]*wb[j])
		}
	}
	return rule
}

// tetrahedronRule extends the collapsed-coordinate construction to the
// reference tetrahedron, with alpha=1 and alpha=2 Jacobi weights
// absorbing the two Duffy Jacobians.
func tetrahedronRule(degree, n int) *Rule {
	xa, wa := GaussJacobi(0, 0, n)
	xb, wb := GaussJacobi(1, 0, n)
	xc, wc := GaussJacobi(2, 0, n)

	np := n * n * n
	rule := &Rule{
		Shape:  element.Tetrahedron,
		Degree: degree,
		R:      make([]float64, 0, np),
		S:      make([]float64, 0, np),
		T:      make([]float64, 0, np),
		W:      make([]float64, 0, np),
	}
	for k, c := range xc {
		for j, b := range xb {
			for i, a := range xa {
				rule.R = append(rule.R, (1+a)*(1-b)*(1-c)/4-1)
				rule.S = append(rule.S, (1+b)*(1-c)/2-1)
				rule.T = append(rule.T, c)
				rule.W = append(rule.W, 0.125*wa[i]*wb[j]*wc[k])
			}
		}
	}
	return rule
}

// SelectFacet returns a rule on the facet reference cell of shape,
// exact to the given degree.
func SelectFacet(shape element.CellShape, degree int) (*Rule, error) {
	facet, err := shape.FacetShape()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoRuleAvailable, err)
	}
	return Select(facet, degree)
}
