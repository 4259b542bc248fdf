package quadrature

import (
	"errors"
	"math"
	"testing"

	"github.com/varform/formc/element"
)

func TestGaussJacobiLegendre(t *testing.T) {
	// Legendre weights sum to 2, points are symmetric
	for n := 1; n <= 8; n++ {
		x, w := GaussJacobi(0, 0, n)
		if len(x) != n || len(w) != n {
			t.Fatalf("n=%d: got %d points, %d weights", n, len(x), len(w))
		}
		sum := 0.0
		for _, wi := range w {
			sum += wi
		}
		if math.Abs(sum-2) > 1e-12 {
			t.Errorf("n=%d: weight sum = %g, want 2", n, sum)
		}
	}

	// 2-point rule integrates x^2 exactly: integral over [-1,1] is 2/3
	x, w := GaussJacobi(0, 0, 2)
	integral := 0.0
	for i := range x {
		integral += w[i] * x[i] * x[i]
	}
	if math.Abs(integral-2.0/3.0) > 1e-12 {
		t.Errorf("integral of x^2 = %g, want 2/3", integral)
	}
}

func TestGaussLobattoEndpoints(t *testing.T) {
	for N := 1; N <= 6; N++ {
		x := GaussLobatto(0, 0, N)
		if len(x) != N+1 {
			t.Fatalf("N=%d: got %d points, want %d", N, len(x), N+1)
		}
		if x[0] != -1 || x[N] != 1 {
			t.Errorf("N=%d: endpoints = %g, %g", N, x[0], x[N])
		}
		for i := 1; i <= N; i++ {
			if x[i] <= x[i-1] {
				t.Errorf("N=%d: points not increasing at %d", N, i)
			}
		}
	}

	// Degree 2 Legendre-Lobatto points are -1, 0, 1
	x := GaussLobatto(0, 0, 2)
	if math.Abs(x[1]) > 1e-14 {
		t.Errorf("interior point = %g, want 0", x[1])
	}
}

// monomialIntegralTriangle is the exact integral of (1+r)^p (1+s)^q
// over the reference triangle r,s >= -1, r+s <= 0, which equals
// 2^(p+q+2) p! q! / (p+q+2)!.
func monomialIntegralTriangle(p, q int) float64 {
	num := math.Pow(2, float64(p+q+2)) * math.Gamma(float64(p+1)) * math.Gamma(float64(q+1))
	return num / math.Gamma(float64(p+q+3))
}

func TestTriangleRuleExactness(t *testing.T) {
	for degree := 0; degree <= 8; degree++ {
		rule, err := Select(element.Triangle, degree)
		if err != nil {
			t.Fatalf("Select(triangle, %d) failed: %v", degree, err)
		}
		for p := 0; p+0 <= degree; p++ {
			for q := 0; p+q <= degree; q++ {
				got := 0.0
				for i := range rule.W {
					got += rule.W[i] * math.Pow(1+rule.R[i], float64(p)) * math.Pow(1+rule.S[i], float64(q))
				}
				want := monomialIntegralTriangle(p, q)
				if math.Abs(got-want) > 1e-10*math.Max(1, math.Abs(want)) {
					t.Errorf("degree %d: monomial (%d,%d) = %g, want %g", degree, p, q, got, want)
				}
			}
		}
	}
}

func TestTriangleRuleWeightSum(t *testing.T) {
	rule, err := Select(element.Triangle, 4)
	if err != nil {
		t.Fatal(err)
	}
	sum := 0.0
	for _, w := range rule.W {
		sum += w
	}
	// Reference triangle area is 2
	if math.Abs(sum-2) > 1e-12 {
		t.Errorf("weight sum = %g, want 2", sum)
	}
}

func TestTetrahedronRuleWeightSum(t *testing.T) {
	rule, err := Select(element.Tetrahedron, 3)
	if err != nil {
		t.Fatal(err)
	}
	sum := 0.0
	for _, w := range rule.W {
		sum += w
	}
	// Reference tetrahedron volume is 4/3
	if math.Abs(sum-4.0/3.0) > 1e-12 {
		t.Errorf("weight sum = %g, want 4/3", sum)
	}
}

func TestSelectDegreeCeiling(t *testing.T) {
	if _, err := Select(element.Triangle, MaxDegree+1); !errors.Is(err, ErrNoRuleAvailable) {
		t.Errorf("expected ErrNoRuleAvailable, got %v", err)
	}
	if _, err := Select(element.Triangle, MaxDegree); err != nil {
		t.Errorf("rule at the ceiling must exist, got %v", err)
	}
}

func TestSelectFacet(t *testing.T) {
	rule, err := SelectFacet(element.Triangle, 3)
	if err != nil {
		t.Fatalf("SelectFacet failed: %v", err)
	}
	if rule.Shape != element.Interval {
		t.Errorf("facet rule shape = %s, want interval", rule.Shape)
	}
	// Interval facets have no facet cell of their own
	if _, err := SelectFacet(element.Interval, 1); !errors.Is(err, ErrNoRuleAvailable) {
		t.Errorf("expected ErrNoRuleAvailable, got %v", err)
	}
}
