// Package quadrature provides Gauss-Jacobi quadrature rules on the
// reference simplices, selected by the polynomial degree they must
// integrate exactly.
package quadrature

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// GaussJacobi computes the n-point Gauss quadrature rule for the weight
// (1-x)^alpha (1+x)^beta on [-1,1] by the Golub-Welsch eigenvalue
// method. The rule is exact for polynomials of degree 2n-1.
func GaussJacobi(alpha, beta float64, n int) (x, w []float64) {
	if n < 1 {
		panic("GaussJacobi requires at least one point")
	}
	if n == 1 {
		return []float64{-(alpha - beta) / (alpha + beta + 2)},
			[]float64{gamma0(alpha, beta)}
	}

	N := n - 1
	h1 := make([]float64, N+1)
	for i := 0; i <= N; i++ {
		h1[i] = 2*float64(i) + alpha + beta
	}

	// Main diagonal
	d0 := make([]float64, N+1)
	fac := beta*beta - alpha*alpha
	for i := 0; i <= N; i++ {
		d0[i] = fac / (h1[i] * (h1[i] + 2))
	}
	// Guard the 0/0 case of the Legendre weight
	const eps = 1e-16
	if alpha+beta < 10*eps {
		d0[0] = 0
	}

	// First superdiagonal
	d1 := make([]float64, N)
	for i := 0; i < N; i++ {
		ip1 := float64(i + 1)
		d1[i] = 2.0 / (h1[i] + 2.0) * math.Sqrt(
			ip1*(ip1+alpha+beta)*(ip1+alpha)*(ip1+beta)/(h1[i]+1)/(h1[i]+3))
	}

	jj := newSymTriDiagonal(d0, d1)

	var eig mat.EigenSym
	if ok := eig.Factorize(jj, true); !ok {
		panic("quadrature: eigenvalue decomposition failed")
	}
	x = eig.Values(nil)

	vecs := mat.NewDense(len(x), len(x), nil)
	eig.VectorsTo(vecs)
	w = make([]float64, len(x))
	g0 := gamma0(alpha, beta)
	for i := range w {
		v := vecs.At(0, i)
		w[i] = v * v * g0
	}
	return x, w
}

// GaussLobatto computes the degree-N Gauss-Lobatto point set for the
// weight (1-x)^alpha (1+x)^beta: the zeros of (1-x^2) P'_N(x), which
// include both endpoints. Lobatto point sets make well-conditioned
// nodal bases on intervals and simplex edges.
func GaussLobatto(alpha, beta float64, N int) []float64 {
	if N == 0 {
		return []float64{0}
	}
	if N == 1 {
		return []float64{-1, 1}
	}
	xint, _ := GaussJacobi(alpha+1, beta+1, N-1)
	x := make([]float64, N+1)
	x[0] = -1
	copy(x[1:N], xint)
	x[N] = 1
	return x
}

// gamma0 is the total weight integral of (1-x)^alpha (1+x)^beta over
// [-1,1].
func gamma0(alpha, beta float64) float64 {
	ab1 := alpha + beta + 1
	return math.Gamma(alpha+1) * math.Gamma(beta+1) * math.Pow(2, ab1) / ab1 / math.Gamma(ab1)
}

func newSymTriDiagonal(d0, d1 []float64) *mat.SymDense {
	n := len(d0)
	tri := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		tri.SetSym(i, i, d0[i])
		if i < n-1 {
			tri.SetSym(i, i+1, d1[i])
		}
	}
	return tri
}
