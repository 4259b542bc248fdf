package element

import (
	"fmt"
	"math"

	"github.com/notargets/gocfd/utils"
)

// JacobiP evaluates the normalized Jacobi polynomial of type
// (alpha,beta) and order n at the points x.
func JacobiP(x []float64, alpha, beta float64, n int) []float64 {
	np := len(x)

	gamma0 := math.Pow(2, alpha+beta+1) / (alpha + beta + 1) *
		math.Gamma(alpha+1) * math.Gamma(beta+1) / math.Gamma(alpha+beta+1)

	pPrev := make([]float64, np)
	for i := range pPrev {
		pPrev[i] = 1.0 / math.Sqrt(gamma0)
	}
	if n == 0 {
		return pPrev
	}

	gamma1 := (alpha + 1) * (beta + 1) / (alpha + beta + 3) * gamma0
	p := make([]float64, np)
	for i := range p {
		p[i] = ((alpha+beta+2)*x[i]/2 + (alpha-beta)/2) / math.Sqrt(gamma1)
	}
	if n == 1 {
		return p
	}

	// Three-term recurrence
	aold := 2.0 / (2.0 + alpha + beta) * math.Sqrt((alpha+1)*(beta+1)/(alpha+beta+3))
	for i := 1; i < n; i++ {
		h1 := 2*float64(i) + alpha + beta
		fi := float64(i)
		anew := 2.0 / (h1 + 2) * math.Sqrt((fi+1)*(fi+1+alpha+beta)*
			(fi+1+alpha)*(fi+1+beta)/(h1+1)/(h1+3))
		bnew := -(alpha*alpha - beta*beta) / h1 / (h1 + 2)

		pNext := make([]float64, np)
		for j := range pNext {
			pNext[j] = (-aold*pPrev[j] + (x[j]-bnew)*p[j]) / anew
		}
		pPrev, p = p, pNext
		aold = anew
	}
	return p
}

// GradJacobiP evaluates the derivative of the normalized Jacobi
// polynomial, d/dx P_n^{alpha,beta}(x).
func GradJacobiP(x []float64, alpha, beta float64, n int) []float64 {
	dp := make([]float64, len(x))
	if n == 0 {
		return dp
	}
	fac := math.Sqrt(float64(n) * (float64(n) + alpha + beta + 1))
	inner := JacobiP(x, alpha+1, beta+1, n-1)
	for i := range dp {
		dp[i] = fac * inner[i]
	}
	return dp
}

// RStoAB converts triangle coordinates (r,s) to the collapsed (a,b)
// coordinates used by the orthonormal simplex basis.
func RStoAB(r, s []float64) (a, b []float64) {
	np := len(r)
	a = make([]float64, np)
	b = make([]float64, np)
	for n := 0; n < np; n++ {
		if s[n] != 1 {
			a[n] = 2*(1+r[n])/(1-s[n]) - 1
		} else {
			a[n] = -1
		}
		b[n] = s[n]
	}
	return
}

// Simplex2DP evaluates the orthonormal polynomial of order (i,j) on the
// reference triangle at the points (r,s).
func Simplex2DP(r, s []float64, i, j int) []float64 {
	a, b := RStoAB(r, s)

	h1 := JacobiP(a, 0, 0, i)
	h2 := JacobiP(b, float64(2*i+1), 0, j)

	p := make([]float64, len(r))
	sq2 := math.Sqrt2
	for n := range p {
		tv := sq2 * h1[n] * h2[n]
		if i > 0 {
			tv *= intPow(1-b[n], i)
		}
		p[n] = tv
	}
	return p
}

// GradSimplex2DP evaluates the (r,s) derivatives of the orthonormal
// triangle polynomial of order (i,j).
func GradSimplex2DP(r, s []float64, i, j int) (dr, ds []float64) {
	a, b := RStoAB(r, s)

	fa := JacobiP(a, 0, 0, i)
	dfa := GradJacobiP(a, 0, 0, i)
	gb := JacobiP(b, float64(2*i+1), 0, j)
	dgb := GradJacobiP(b, float64(2*i+1), 0, j)

	np := len(r)
	dr = make([]float64, np)
	ds = make([]float64, np)
	for n := 0; n < np; n++ {
		// d/dr = da/dr * d/da, with da/dr = 2/(1-b)
		dmodedr := dfa[n] * gb[n]
		if i > 0 {
			dmodedr *= intPow(0.5*(1-b[n]), i-1)
		}

		// d/ds includes both the a and b dependencies
		dmodeds := dfa[n] * gb[n] * 0.5 * (1 + a[n])
		if i > 0 {
			dmodeds *= intPow(0.5*(1-b[n]), i-1)
		}
		tmp := dgb[n] * intPow(0.5*(1-b[n]), i)
		if i > 0 {
			tmp -= 0.5 * float64(i) * gb[n] * intPow(0.5*(1-b[n]), i-1)
		}
		dmodeds += fa[n] * tmp

		norm := math.Pow(2, float64(i)+0.5)
		dr[n] = norm * dmodedr
		ds[n] = norm * dmodeds
	}
	return
}

func intPow(x float64, n int) float64 {
	result := 1.0
	for k := 0; k < n; k++ {
		result *= x
	}
	return result
}

// equispacedInterval returns k+1 equispaced nodes on [-1,1]. A degree
// of 0 yields the midpoint.
func equispacedInterval(k int) []float64 {
	if k == 0 {
		return []float64{0}
	}
	nodes := make([]float64, k+1)
	for i := 0; i <= k; i++ {
		nodes[i] = -1 + 2*float64(i)/float64(k)
	}
	return nodes
}

// equispacedTriangle returns the (k+1)(k+2)/2 equispaced nodes on the
// reference triangle {r,s >= -1, r+s <= 0}. A degree of 0 yields the
// centroid.
func equispacedTriangle(k int) (r, s []float64) {
	if k == 0 {
		return []float64{-1.0 / 3.0}, []float64{-1.0 / 3.0}
	}
	np := (k + 1) * (k + 2) / 2
	r = make([]float64, 0, np)
	s = make([]float64, 0, np)
	for i := 0; i <= k; i++ {
		for j := 0; j <= k-i; j++ {
			r = append(r, -1+2*float64(j)/float64(k))
			s = append(s, -1+2*float64(i)/float64(k))
		}
	}
	return
}

// vandermonde1D builds the 1D Vandermonde matrix V[n][m] = P_m(x_n).
func vandermonde1D(k int, x []float64) utils.Matrix {
	np := k + 1
	v := utils.NewMatrix(len(x), np)
	for m := 0; m < np; m++ {
		p := JacobiP(x, 0, 0, m)
		for n := range x {
			v.Set(n, m, p[n])
		}
	}
	return v
}

// vandermonde2D builds the triangle Vandermonde matrix in the standard
// (i,j) mode ordering.
func vandermonde2D(k int, r, s []float64) utils.Matrix {
	np := (k + 1) * (k + 2) / 2
	v := utils.NewMatrix(len(r), np)
	sk := 0
	for i := 0; i <= k; i++ {
		for j := 0; j <= k-i; j++ {
			p := Simplex2DP(r, s, i, j)
			for n := range r {
				v.Set(n, sk, p[n])
			}
			sk++
		}
	}
	return v
}

// gradVandermonde2D builds the derivative Vandermonde matrices on the
// triangle, matching the mode ordering of vandermonde2D.
func gradVandermonde2D(k int, r, s []float64) (vr, vs utils.Matrix) {
	np := (k + 1) * (k + 2) / 2
	vr = utils.NewMatrix(len(r), np)
	vs = utils.NewMatrix(len(r), np)
	sk := 0
	for i := 0; i <= k; i++ {
		for j := 0; j <= k-i; j++ {
			dr, ds := GradSimplex2DP(r, s, i, j)
			for n := range r {
				vr.Set(n, sk, dr[n])
				vs.Set(n, sk, ds[n])
			}
			sk++
		}
	}
	return
}

// gradVandermonde1D builds the 1D derivative Vandermonde matrix.
func gradVandermonde1D(k int, x []float64) utils.Matrix {
	np := k + 1
	v := utils.NewMatrix(len(x), np)
	for m := 0; m < np; m++ {
		dp := GradJacobiP(x, 0, 0, m)
		for n := range x {
			v.Set(n, m, dp[n])
		}
	}
	return v
}

// Tabulation holds the basis tables of one element evaluated at a set
// of reference points, in the layout the code generator embeds into
// kernels: one (ndof x npoints) table per value component.
type Tabulation struct {
	NumDofs   int
	NumPoints int

	// Values[c].At(i, q) is component c of basis function i at point q
	Values []utils.Matrix

	// GradR/GradS hold reference-coordinate derivatives per component.
	// Populated for nodal (Lagrange-type) tabulations only.
	GradR []utils.Matrix
	GradS []utils.Matrix

	// Div holds the reference divergence of each basis function for
	// H(div) tabulations, which transform by the contravariant Piola
	// map. HDiv marks that case.
	Div  utils.Matrix
	HDiv bool
}

// Tabulate evaluates the basis of e at the reference points (r,s). For
// interval elements s is ignored.
func Tabulate(e Element, r, s []float64) (*Tabulation, error) {
	switch el := e.(type) {
	case *FiniteElement:
		switch el.Family() {
		case Lagrange, DiscontinuousLagrange:
			return tabulateNodal(el, r, s)
		case BrezziDouglasMarini, RaviartThomas:
			return tabulateHDiv(el, r, s)
		}
		return nil, fmt.Errorf("tabulate: no basis rule for %s", el.Name())
	case *VectorElement:
		return tabulateVector(el, r, s)
	case *MixedElement:
		return nil, fmt.Errorf("tabulate: mixed element %s must be tabulated per slot", el.Name())
	}
	return nil, fmt.Errorf("tabulate: unsupported element %T", e)
}

// tabulateNodal builds the nodal Lagrange basis tables: with V the
// Vandermonde matrix at the equispaced nodes and P the modal basis at
// the evaluation points, the nodal table is Vinv^T * P^T.
func tabulateNodal(el *FiniteElement, r, s []float64) (*Tabulation, error) {
	k := el.Degree()
	var v, pq, pr, ps utils.Matrix
	switch el.Shape() {
	case Interval:
		nodes := equispacedInterval(k)
		v = vandermonde1D(k, nodes)
		pq = vandermonde1D(k, r)
		pr = gradVandermonde1D(k, r)
		ps = utils.NewMatrix(len(r), k+1)
	case Triangle:
		nr, ns := equispacedTriangle(k)
		v = vandermonde2D(k, nr, ns)
		pq = vandermonde2D(k, r, s)
		pr, ps = gradVandermonde2D(k, r, s)
	default:
		return nil, fmt.Errorf("tabulate: %s not supported on %s", el.Family(), el.Shape())
	}

	vinv, err := v.Inverse()
	if err != nil {
		return nil, fmt.Errorf("tabulate %s: singular Vandermonde: %w", el.Name(), err)
	}
	// (ndof x nq) tables: rows are basis functions, columns points
	vit := vinv.Transpose()
	return &Tabulation{
		NumDofs:   el.DofCount(),
		NumPoints: len(r),
		Values:    []utils.Matrix{vit.Mul(pq.Transpose())},
		GradR:     []utils.Matrix{vit.Mul(pr.Transpose())},
		GradS:     []utils.Matrix{vit.Mul(ps.Transpose())},
	}, nil
}

// tabulateVector replicates the base scalar tables across components in
// block order: dof c*nb+i is base function i in component c.
func tabulateVector(el *VectorElement, r, s []float64) (*Tabulation, error) {
	base, err := Tabulate(el.Base(), r, s)
	if err != nil {
		return nil, err
	}
	dim := el.Dim()
	nb := el.Base().DofCount()
	nd := el.DofCount()
	nq := len(r)

	values := make([]utils.Matrix, dim)
	gradR := make([]utils.Matrix, dim)
	gradS := make([]utils.Matrix, dim)
	for c := 0; c < dim; c++ {
		values[c] = utils.NewMatrix(nd, nq)
		gradR[c] = utils.NewMatrix(nd, nq)
		gradS[c] = utils.NewMatrix(nd, nq)
		for i := 0; i < nb; i++ {
			for q := 0; q < nq; q++ {
				values[c].Set(c*nb+i, q, base.Values[0].At(i, q))
				gradR[c].Set(c*nb+i, q, base.GradR[0].At(i, q))
				gradS[c].Set(c*nb+i, q, base.GradS[0].At(i, q))
			}
		}
	}
	return &Tabulation{
		NumDofs:   nd,
		NumPoints: nq,
		Values:    values,
		GradR:     gradR,
		GradS:     gradS,
	}, nil
}

// Edge vector fields on the reference triangle, after Ervin. Edge 0 is
// the bottom (s=-1), edge 1 the hypotenuse, edge 2 the left (r=-1).
// The fields have unit normal trace on their own edge and vanishing
// normal trace on the others.
func edgeField(r, s float64, edge int) (v0, v1 float64) {
	xi := 0.5 * (r + 1)
	eta := 0.5 * (s + 1)
	switch edge {
	case 0:
		return xi - 0.5, eta - 1
	case 1:
		return math.Sqrt2 * xi, math.Sqrt2 * eta
	case 2:
		return xi - 1, eta - 0.5
	}
	panic(fmt.Sprintf("edge index %d out of range", edge))
}

// edgeParam extends the counter-clockwise edge parameter xi in [-1,1]
// into the whole cell as a linear function of (r,s), returning xi and
// its constant gradient.
func edgeParam(r, s float64, edge int) (xi, dxidr, dxids float64) {
	switch edge {
	case 0:
		return r, 1, 0
	case 1:
		return 0.5 * (s - r), -0.5, 0.5
	case 2:
		return -s, 0, -1
	}
	panic(fmt.Sprintf("edge index %d out of range", edge))
}

// edgeFieldDiv is the divergence of the raw edge field, constant per
// edge.
func edgeFieldDiv(edge int) float64 {
	if edge == 1 {
		return math.Sqrt2
	}
	return 1
}

// tabulateHDiv builds edge-moment basis tables for the H(div) families
// on triangles. Basis function (e, m) is P_m(xi_e) times the edge field
// of edge e; its divergence follows from the product rule with the
// constant gradient of xi_e.
func tabulateHDiv(el *FiniteElement, r, s []float64) (*Tabulation, error) {
	if el.Shape() != Triangle {
		return nil, fmt.Errorf("tabulate: %s not supported on %s", el.Family(), el.Shape())
	}
	nd := el.DofCount()
	perEdge := nd / 3
	if perEdge*3 != nd {
		return nil, fmt.Errorf("tabulate %s: dof count %d is not edge-divisible", el.Name(), nd)
	}
	nq := len(r)

	vx := utils.NewMatrix(nd, nq)
	vy := utils.NewMatrix(nd, nq)
	div := utils.NewMatrix(nd, nq)

	for edge := 0; edge < 3; edge++ {
		for m := 0; m < perEdge; m++ {
			dof := edge*perEdge + m
			for q := 0; q < nq; q++ {
				e0, e1 := edgeField(r[q], s[q], edge)
				xi, dxidr, dxids := edgeParam(r[q], s[q], edge)
				f := JacobiP([]float64{xi}, 0, 0, m)[0]
				df := GradJacobiP([]float64{xi}, 0, 0, m)[0]

				vx.Set(dof, q, f*e0)
				vy.Set(dof, q, f*e1)
				// div(f*v) = grad f . v + f div v
				div.Set(dof, q, df*(dxidr*e0+dxids*e1)+f*edgeFieldDiv(edge))
			}
		}
	}
	return &Tabulation{
		NumDofs:   nd,
		NumPoints: nq,
		Values:    []utils.Matrix{vx, vy},
		Div:       div,
		HDiv:      true,
	}, nil
}

// TriangleFacetPoints maps facet-reference points xi in [-1,1] onto the
// given facet of the reference triangle, returning cell coordinates and
// the constant length scale |dx/dxi| of the parameterization.
func TriangleFacetPoints(facet int, xi []float64) (r, s []float64, scale float64, err error) {
	r = make([]float64, len(xi))
	s = make([]float64, len(xi))
	switch facet {
	case 0: // bottom, s = -1
		for i, x := range xi {
			r[i], s[i] = x, -1
		}
		return r, s, 1, nil
	case 1: // hypotenuse, r + s = 0
		for i, x := range xi {
			r[i], s[i] = -x, x
		}
		return r, s, math.Sqrt2, nil
	case 2: // left, r = -1
		for i, x := range xi {
			r[i], s[i] = -1, -x
		}
		return r, s, 1, nil
	}
	return nil, nil, 0, fmt.Errorf("triangle facet index %d out of range", facet)
}
