package element

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownFamily is returned when constructing an element from a
	// family/shape combination that was never registered.
	ErrUnknownFamily = errors.New("unknown element family")

	// ErrUnsupportedDegree is returned when the requested polynomial
	// degree falls outside the registered range for the family.
	ErrUnsupportedDegree = errors.New("unsupported element degree")
)

// DofRule computes the number of local degrees of freedom for a given
// polynomial degree on a given cell shape.
type DofRule func(shape CellShape, degree int) int

// familyRule holds the registered constraints and counting rule for one
// element family.
type familyRule struct {
	family    Family
	shapes    map[CellShape]bool
	minDegree int
	maxDegree int
	valueRank int
	dofs      DofRule
}

// Registry is an explicit catalog of element families. It is populated
// once (normally by NewRegistry) and read-only afterwards; callers pass
// it to the components that construct or tabulate elements rather than
// relying on package state.
type Registry struct {
	rules map[Family]familyRule
}

// Register adds a family to the catalog. Registering the same family
// twice replaces the earlier rule.
func (r *Registry) Register(family Family, shapes []CellShape, minDegree, maxDegree, valueRank int, dofs DofRule) {
	if dofs == nil {
		panic("registry: nil dof rule")
	}
	shapeSet := make(map[CellShape]bool, len(shapes))
	for _, s := range shapes {
		shapeSet[s] = true
	}
	r.rules[family] = familyRule{
		family:    family,
		shapes:    shapeSet,
		minDegree: minDegree,
		maxDegree: maxDegree,
		valueRank: valueRank,
		dofs:      dofs,
	}
}

// Construct validates the (family, shape, degree) combination against
// the registered rules and returns the immutable element.
func (r *Registry) Construct(family Family, shape CellShape, degree int) (*FiniteElement, error) {
	rule, ok := r.rules[family]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFamily, family)
	}
	if !rule.shapes[shape] {
		return nil, fmt.Errorf("%w: %s is not defined on %s", ErrUnknownFamily, family, shape)
	}
	if degree < rule.minDegree || degree > rule.maxDegree {
		return nil, fmt.Errorf("%w: %s requires degree in [%d, %d], got %d",
			ErrUnsupportedDegree, family, rule.minDegree, rule.maxDegree, degree)
	}
	return &FiniteElement{
		family:    family,
		shape:     shape,
		degree:    degree,
		valueRank: rule.valueRank,
		dofCount:  rule.dofs(shape, degree),
	}, nil
}

// simplexDim is the dimension of the polynomial space P_k on a simplex
func simplexDim(shape CellShape, k int) int {
	switch shape {
	case Interval:
		return k + 1
	case Triangle:
		return (k + 1) * (k + 2) / 2
	case Tetrahedron:
		return (k + 1) * (k + 2) * (k + 3) / 6
	}
	return 0
}

// NewRegistry builds the standard catalog: continuous and discontinuous
// Lagrange on all simplices, BDM and RT on triangles.
func NewRegistry() *Registry {
	r := &Registry{rules: make(map[Family]familyRule)}

	allSimplices := []CellShape{Interval, Triangle, Tetrahedron}

	r.Register(Lagrange, allSimplices, 1, 20, 0, simplexDim)
	r.Register(DiscontinuousLagrange, allSimplices, 0, 20, 0, simplexDim)

	// BDM_k on a triangle carries k+1 normal-trace moments on each of
	// the 3 edges
	r.Register(BrezziDouglasMarini, []CellShape{Triangle}, 1, 20, 1,
		func(shape CellShape, k int) int { return 3 * (k + 1) })

	// RT_k on a triangle, k(k+2) dofs
	r.Register(RaviartThomas, []CellShape{Triangle}, 1, 20, 1,
		func(shape CellShape, k int) int { return k * (k + 2) })

	return r
}

// FamilyByName resolves the family names accepted in specification
// files, long form or short alias.
func FamilyByName(name string) (Family, error) {
	switch name {
	case "Lagrange", "CG", "P":
		return Lagrange, nil
	case "Discontinuous Lagrange", "DG":
		return DiscontinuousLagrange, nil
	case "Brezzi-Douglas-Marini", "BDM":
		return BrezziDouglasMarini, nil
	case "Raviart-Thomas", "RT":
		return RaviartThomas, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFamily, name)
}

// ShapeByName resolves the cell names accepted in specification files.
func ShapeByName(name string) (CellShape, error) {
	switch name {
	case "interval", "line":
		return Interval, nil
	case "triangle":
		return Triangle, nil
	case "tetrahedron":
		return Tetrahedron, nil
	}
	return 0, fmt.Errorf("unknown cell shape %q", name)
}
