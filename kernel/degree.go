// Package kernel turns analyzed forms into per-cell OCCA assembly
// kernels: it estimates the quadrature degree a form requires, embeds
// the basis tables the integrand references, and emits the loop nest
// computing the dense local matrix or vector.
package kernel

import "github.com/varform/formc/form"

// RequiredDegree estimates the polynomial degree a quadrature rule must
// integrate exactly for the given expression: degrees of factors sum
// along product chains, sums take the maximum over branches. The same
// rule applies to every measure; facet integrands are polynomials of no
// higher degree in the facet parameter than in the cell coordinates.
func RequiredDegree(e form.Expr) int {
	return e.DegreeBound()
}

// termGroup collects the integral terms of a form sharing one measure
// and subdomain, which compile into one kernel entry point.
type termGroup struct {
	measure   form.Measure
	subdomain int
	terms     []*form.Integral
}

// groupTerms splits a form's terms by (measure, subdomain) in first-
// appearance order.
func groupTerms(f *form.Form) []*termGroup {
	var groups []*termGroup
	index := make(map[[2]int]*termGroup)
	for _, t := range f.Terms {
		key := [2]int{int(t.M), t.Subdomain}
		g, ok := index[key]
		if !ok {
			g = &termGroup{measure: t.M, subdomain: t.Subdomain}
			index[key] = g
			groups = append(groups, g)
		}
		g.terms = append(g.terms, t)
	}
	return groups
}

// requiredDegree of a group is the max over its terms.
func (g *termGroup) requiredDegree() int {
	deg := 0
	for _, t := range g.terms {
		if d := RequiredDegree(t.Integrand); d > deg {
			deg = d
		}
	}
	return deg
}
