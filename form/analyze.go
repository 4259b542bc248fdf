package form

import (
	"fmt"
	"sort"
)

// ArgumentSlot keys the distinct test/trial argument positions of a
// form.
type ArgumentSlot struct {
	Role  Role
	Index int
}

// Analysis is the result of classifying a form: its arity and the
// argument and coefficient handles it references.
type Analysis struct {
	// Arity counts the distinct test/trial argument slots: 0 for a
	// functional, 1 for a linear form, 2 for a bilinear form.
	Arity int

	// Arguments maps each slot to a representative handle. Sub-handles
	// of one mixed function share the representative's identity.
	Arguments map[ArgumentSlot]*Argument

	// Coefficients lists the distinct coefficient functions, ordered
	// by first appearance identity.
	Coefficients []*Argument
}

// Analyze walks the form's terms and collects every test/trial terminal
// by (role, argument index). Two distinct function objects claiming the
// same slot fail with ErrArityConflict.
func Analyze(f *Form) (*Analysis, error) {
	a := &Analysis{Arguments: make(map[ArgumentSlot]*Argument)}
	coeffs := make(map[uint64]*Argument)

	for _, term := range f.Terms {
		if err := a.walk(term.Integrand, coeffs); err != nil {
			return nil, fmt.Errorf("form %q, term %s: %w", f.Name, term, err)
		}
	}

	a.Arity = len(a.Arguments)

	ids := make([]uint64, 0, len(coeffs))
	for id := range coeffs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		a.Coefficients = append(a.Coefficients, coeffs[id])
	}
	return a, nil
}

func (a *Analysis) walk(e Expr, coeffs map[uint64]*Argument) error {
	switch n := e.(type) {
	case *Argument:
		if n.role == CoefficientRole {
			coeffs[n.id] = n
			return nil
		}
		slot := ArgumentSlot{Role: n.role, Index: n.index}
		if prev, ok := a.Arguments[slot]; ok {
			if prev.id != n.id {
				return fmt.Errorf("%w: %s and %s both claim %s argument %d",
					ErrArityConflict, prev, n, n.role, n.index)
			}
			return nil
		}
		a.Arguments[slot] = n
		return nil
	case *Constant, *FacetNormal, nil:
		return nil
	case *Sum:
		for _, t := range n.Terms {
			if err := a.walk(t, coeffs); err != nil {
				return err
			}
		}
		return nil
	case *Product:
		for _, f := range n.Factors {
			if err := a.walk(f, coeffs); err != nil {
				return err
			}
		}
		return nil
	case *Dot:
		if err := a.walk(n.A, coeffs); err != nil {
			return err
		}
		return a.walk(n.B, coeffs)
	case *Grad:
		return a.walk(n.Arg, coeffs)
	case *Div:
		return a.walk(n.Arg, coeffs)
	case *Integral:
		return a.walk(n.Integrand, coeffs)
	}
	return fmt.Errorf("analyze: unknown expression node %T", e)
}

// ExpectArity checks a form against the arity its binding requires:
// a bilinear binding (`a`) requires 2, a linear binding (`L`) requires 1.
func ExpectArity(f *Form, want int) (*Analysis, error) {
	analysis, err := Analyze(f)
	if err != nil {
		return nil, err
	}
	if analysis.Arity == want {
		return analysis, nil
	}
	switch want {
	case 2:
		return nil, fmt.Errorf("%w: form %q has arity %d", ErrNonBilinearForm, f.Name, analysis.Arity)
	case 1:
		return nil, fmt.Errorf("%w: form %q has arity %d", ErrNonLinearForm, f.Name, analysis.Arity)
	}
	return nil, fmt.Errorf("form %q has arity %d, expected %d", f.Name, analysis.Arity, want)
}
