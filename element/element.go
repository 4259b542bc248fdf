package element

import "fmt"

// Dimensionality represents the spatial dimension of a reference cell
type Dimensionality uint8

const (
	D0 Dimensionality = iota // 0D cells (points)
	D1                       // 1D cells (intervals)
	D2                       // 2D cells (triangles)
	D3                       // 3D cells (tetrahedra)
)

// CellShape identifies the reference cell an element is defined on
type CellShape uint8

const (
	Interval CellShape = iota
	Triangle
	Tetrahedron
)

func (c CellShape) String() string {
	switch c {
	case Interval:
		return "interval"
	case Triangle:
		return "triangle"
	case Tetrahedron:
		return "tetrahedron"
	}
	return fmt.Sprintf("CellShape(%d)", uint8(c))
}

// Dimensions returns the topological dimension of the cell
func (c CellShape) Dimensions() Dimensionality {
	switch c {
	case Interval:
		return D1
	case Triangle:
		return D2
	case Tetrahedron:
		return D3
	}
	return D0
}

// NumFacets returns the number of codimension-1 facets of the cell
func (c CellShape) NumFacets() int {
	switch c {
	case Interval:
		return 2
	case Triangle:
		return 3
	case Tetrahedron:
		return 4
	}
	return 0
}

// FacetShape returns the reference cell of the codimension-1 facets
func (c CellShape) FacetShape() (CellShape, error) {
	switch c {
	case Triangle:
		return Interval, nil
	case Tetrahedron:
		return Triangle, nil
	}
	return 0, fmt.Errorf("cell %s has no facet reference cell", c)
}

// Family identifies a finite-element family
type Family uint8

const (
	Lagrange              Family = iota // Continuous Lagrange ("CG")
	DiscontinuousLagrange               // Discontinuous Lagrange ("DG")
	BrezziDouglasMarini                 // H(div) BDM elements
	RaviartThomas                       // H(div) RT elements
)

func (f Family) String() string {
	switch f {
	case Lagrange:
		return "Lagrange"
	case DiscontinuousLagrange:
		return "Discontinuous Lagrange"
	case BrezziDouglasMarini:
		return "Brezzi-Douglas-Marini"
	case RaviartThomas:
		return "Raviart-Thomas"
	}
	return fmt.Sprintf("Family(%d)", uint8(f))
}

// Element is the common surface of scalar, vector and mixed elements.
// Implementations are immutable once constructed.
type Element interface {
	Name() string
	Shape() CellShape
	// Degree is the polynomial degree bound of the element's basis,
	// used for quadrature selection downstream
	Degree() int
	// ValueRank is 0 for scalar-valued, 1 for vector-valued elements
	ValueRank() int
	DofCount() int
}

// FiniteElement is a single element of a registered family. Construct
// instances through Registry.Construct so the (family, shape, degree)
// combination is validated against the registered rules.
type FiniteElement struct {
	family    Family
	shape     CellShape
	degree    int
	valueRank int
	dofCount  int
}

func (e *FiniteElement) Name() string {
	return fmt.Sprintf("%s degree %d on %s", e.family, e.degree, e.shape)
}

func (e *FiniteElement) Family() Family   { return e.family }
func (e *FiniteElement) Shape() CellShape { return e.shape }
func (e *FiniteElement) Degree() int      { return e.degree }
func (e *FiniteElement) ValueRank() int   { return e.valueRank }
func (e *FiniteElement) DofCount() int    { return e.dofCount }

// VectorElement replicates a scalar base element across dim components.
// It owns its base element.
type VectorElement struct {
	base *FiniteElement
	dim  int
}

// NewVectorElement wraps base in a dim-component vector element. A dim
// of 0 defaults to the topological dimension of the base cell.
func NewVectorElement(base *FiniteElement, dim int) (*VectorElement, error) {
	if base == nil {
		return nil, fmt.Errorf("vector element: nil base element")
	}
	if base.ValueRank() != 0 {
		return nil, fmt.Errorf("vector element: base %s is not scalar-valued", base.Name())
	}
	if dim == 0 {
		dim = int(base.Shape().Dimensions())
	}
	if dim < 1 {
		return nil, fmt.Errorf("vector element: invalid dimension %d", dim)
	}
	return &VectorElement{base: base, dim: dim}, nil
}

func (e *VectorElement) Name() string {
	return fmt.Sprintf("Vector(%s, dim=%d)", e.base.Name(), e.dim)
}

func (e *VectorElement) Base() *FiniteElement { return e.base }
func (e *VectorElement) Dim() int             { return e.dim }
func (e *VectorElement) Shape() CellShape     { return e.base.Shape() }
func (e *VectorElement) Degree() int          { return e.base.Degree() }
func (e *VectorElement) ValueRank() int       { return 1 }
func (e *VectorElement) DofCount() int        { return e.dim * e.base.DofCount() }
