package form

import "fmt"

// Measure identifies the integration domain of a form term.
type Measure uint8

const (
	CellMeasure          Measure = iota // dx: cell interiors
	ExteriorFacetMeasure                // ds: exterior facets
	InteriorFacetMeasure                // dS: interior facets
)

func (m Measure) String() string {
	switch m {
	case CellMeasure:
		return "dx"
	case ExteriorFacetMeasure:
		return "ds"
	case InteriorFacetMeasure:
		return "dS"
	}
	return fmt.Sprintf("Measure(%d)", uint8(m))
}

// MeasureByName resolves the measure names used in specification files.
func MeasureByName(name string) (Measure, bool) {
	switch name {
	case "dx":
		return CellMeasure, true
	case "ds":
		return ExteriorFacetMeasure, true
	case "dS":
		return InteriorFacetMeasure, true
	}
	return 0, false
}

// Integrate scopes a scalar integrand to a measure. Pass subdomain -1
// for an untagged measure.
func Integrate(integrand Expr, m Measure, subdomain int) (Expr, error) {
	if integrand.Rank() != 0 {
		return nil, fmt.Errorf("%w: integrand %s has rank %d, measures apply to scalars",
			ErrRankMismatch, integrand, integrand.Rank())
	}
	return &Integral{Integrand: integrand, M: m, Subdomain: subdomain}, nil
}

// Form is a named sequence of measure-scoped terms: the normal shape a
// top-level binding takes after construction.
type Form struct {
	Name  string
	Terms []*Integral
}

// NewForm validates that expr is a sum of integrals and collects the
// terms. A bare term without a measure fails with ErrUnmeasuredIntegrand.
func NewForm(name string, expr Expr) (*Form, error) {
	f := &Form{Name: name}
	if err := f.collect(expr); err != nil {
		return nil, fmt.Errorf("form %q: %w", name, err)
	}
	return f, nil
}

func (f *Form) collect(expr Expr) error {
	switch e := expr.(type) {
	case *Integral:
		f.Terms = append(f.Terms, e)
		return nil
	case *Sum:
		for _, t := range e.Terms {
			if err := f.collect(t); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnmeasuredIntegrand, expr)
}

// DegreeBound is the polynomial degree bound over all terms.
func (f *Form) DegreeBound() int {
	deg := 0
	for _, t := range f.Terms {
		if d := t.DegreeBound(); d > deg {
			deg = d
		}
	}
	return deg
}

func (f *Form) String() string {
	if len(f.Terms) == 0 {
		return f.Name + " = 0"
	}
	s := f.Name + " = " + f.Terms[0].String()
	for _, t := range f.Terms[1:] {
		s += " + " + t.String()
	}
	return s
}
