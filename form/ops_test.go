package form

import (
	"errors"
	"testing"

	"github.com/varform/formc/element"
)

func mustConstruct(t *testing.T, reg *element.Registry, f element.Family, shape element.CellShape, k int) *element.FiniteElement {
	t.Helper()
	el, err := reg.Construct(f, shape, k)
	if err != nil {
		t.Fatalf("Construct(%v, %v, %d) failed: %v", f, shape, k, err)
	}
	return el
}

func TestOperatorRankRules(t *testing.T) {
	reg := element.NewRegistry()
	bdm := mustConstruct(t, reg, element.BrezziDouglasMarini, element.Triangle, 1)
	dg := mustConstruct(t, reg, element.DiscontinuousLagrange, element.Triangle, 1)

	sigma := NewTrialFunction(bdm, 0)
	tau := NewTestFunction(bdm, 0)
	u := NewTrialFunction(dg, 0)

	t.Run("dot of equal-rank vectors", func(t *testing.T) {
		d, err := DotProduct(sigma, tau)
		if err != nil {
			t.Fatalf("DotProduct failed: %v", err)
		}
		if d.Rank() != 0 {
			t.Errorf("dot rank = %d, want 0", d.Rank())
		}
	})

	t.Run("dot of mixed ranks rejected", func(t *testing.T) {
		if _, err := DotProduct(sigma, u); !errors.Is(err, ErrRankMismatch) {
			t.Errorf("expected ErrRankMismatch, got %v", err)
		}
	})

	t.Run("dot of two scalars rejected", func(t *testing.T) {
		if _, err := DotProduct(u, u); !errors.Is(err, ErrRankMismatch) {
			t.Errorf("expected ErrRankMismatch, got %v", err)
		}
	})

	t.Run("product of two vectors rejected", func(t *testing.T) {
		if _, err := Multiply(sigma, tau); !errors.Is(err, ErrRankMismatch) {
			t.Errorf("expected ErrRankMismatch, got %v", err)
		}
	})

	t.Run("scalar times vector allowed", func(t *testing.T) {
		p, err := Multiply(u, sigma)
		if err != nil {
			t.Fatalf("Multiply failed: %v", err)
		}
		if p.Rank() != 1 {
			t.Errorf("rank = %d, want 1", p.Rank())
		}
	})

	t.Run("add rank mismatch rejected", func(t *testing.T) {
		if _, err := Add(sigma, u); !errors.Is(err, ErrRankMismatch) {
			t.Errorf("expected ErrRankMismatch, got %v", err)
		}
	})

	t.Run("div lowers rank", func(t *testing.T) {
		d, err := Divergence(sigma)
		if err != nil {
			t.Fatalf("Divergence failed: %v", err)
		}
		if d.Rank() != 0 {
			t.Errorf("rank = %d, want 0", d.Rank())
		}
		if _, err := Divergence(u); !errors.Is(err, ErrRankMismatch) {
			t.Errorf("expected ErrRankMismatch for div of scalar, got %v", err)
		}
	})

	t.Run("grad raises rank", func(t *testing.T) {
		g, err := Gradient(u)
		if err != nil {
			t.Fatalf("Gradient failed: %v", err)
		}
		if g.Rank() != 1 {
			t.Errorf("rank = %d, want 1", g.Rank())
		}
	})
}

func TestDegreeBounds(t *testing.T) {
	reg := element.NewRegistry()
	bdm := mustConstruct(t, reg, element.BrezziDouglasMarini, element.Triangle, 2)
	dg := mustConstruct(t, reg, element.DiscontinuousLagrange, element.Triangle, 1)

	sigma := NewTrialFunction(bdm, 0)
	tau := NewTestFunction(bdm, 0)
	v := NewTestFunction(dg, 0)

	dot, err := DotProduct(sigma, tau)
	if err != nil {
		t.Fatal(err)
	}
	// Product chains sum degrees
	if got := dot.DegreeBound(); got != 4 {
		t.Errorf("dot(sigma, tau) degree = %d, want 4", got)
	}

	divSigma, err := Divergence(sigma)
	if err != nil {
		t.Fatal(err)
	}
	prod, err := Multiply(divSigma, v)
	if err != nil {
		t.Fatal(err)
	}
	// div drops a degree: 1 + 1
	if got := prod.DegreeBound(); got != 2 {
		t.Errorf("div(sigma)*v degree = %d, want 2", got)
	}

	// Sums take the max over branches
	sum, err := Add(dot, prod)
	if err != nil {
		t.Fatal(err)
	}
	if got := sum.DegreeBound(); got != 4 {
		t.Errorf("sum degree = %d, want 4", got)
	}
}

func TestUnmeasuredIntegrand(t *testing.T) {
	reg := element.NewRegistry()
	dg := mustConstruct(t, reg, element.DiscontinuousLagrange, element.Triangle, 1)

	v := NewTestFunction(dg, 0)
	u := NewTrialFunction(dg, 0)
	vu, err := Multiply(v, u)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := NewForm("a", vu); !errors.Is(err, ErrUnmeasuredIntegrand) {
		t.Errorf("expected ErrUnmeasuredIntegrand, got %v", err)
	}

	integral, err := Integrate(vu, CellMeasure, -1)
	if err != nil {
		t.Fatal(err)
	}
	f, err := NewForm("a", integral)
	if err != nil {
		t.Fatalf("NewForm failed: %v", err)
	}
	if len(f.Terms) != 1 {
		t.Errorf("expected 1 term, got %d", len(f.Terms))
	}
}

func TestIntegrateRejectsVectorIntegrand(t *testing.T) {
	reg := element.NewRegistry()
	bdm := mustConstruct(t, reg, element.BrezziDouglasMarini, element.Triangle, 1)
	sigma := NewTrialFunction(bdm, 0)

	if _, err := Integrate(sigma, CellMeasure, -1); !errors.Is(err, ErrRankMismatch) {
		t.Errorf("expected ErrRankMismatch, got %v", err)
	}
}
