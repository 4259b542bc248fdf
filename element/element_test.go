package element

import (
	"errors"
	"testing"
)

// TestDofCounts verifies the closed-form dof formulas per family
func TestDofCounts(t *testing.T) {
	reg := NewRegistry()

	tests := []struct {
		name   string
		family Family
		shape  CellShape
		degree int
		want   int
	}{
		{"DG0 triangle", DiscontinuousLagrange, Triangle, 0, 1},
		{"DG1 triangle", DiscontinuousLagrange, Triangle, 1, 3},
		{"DG2 triangle", DiscontinuousLagrange, Triangle, 2, 6},
		{"CG1 triangle", Lagrange, Triangle, 1, 3},
		{"CG3 triangle", Lagrange, Triangle, 3, 10},
		{"CG2 interval", Lagrange, Interval, 2, 3},
		{"CG2 tetrahedron", Lagrange, Tetrahedron, 2, 10},
		{"BDM1 triangle", BrezziDouglasMarini, Triangle, 1, 6},
		{"BDM2 triangle", BrezziDouglasMarini, Triangle, 2, 9},
		{"RT1 triangle", RaviartThomas, Triangle, 1, 3},
		{"RT2 triangle", RaviartThomas, Triangle, 2, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			el, err := reg.Construct(tt.family, tt.shape, tt.degree)
			if err != nil {
				t.Fatalf("Construct failed: %v", err)
			}
			if got := el.DofCount(); got != tt.want {
				t.Errorf("DofCount() = %d, want %d", got, tt.want)
			}
			// Determinism: a second construction agrees
			el2, err := reg.Construct(tt.family, tt.shape, tt.degree)
			if err != nil {
				t.Fatalf("second Construct failed: %v", err)
			}
			if el2.DofCount() != el.DofCount() {
				t.Errorf("DofCount not deterministic: %d vs %d", el2.DofCount(), el.DofCount())
			}
		})
	}
}

// TestConstructRejectsInvalidCombinations checks the registry error
// taxonomy instead of crashes or silent defaults
func TestConstructRejectsInvalidCombinations(t *testing.T) {
	reg := NewRegistry()

	t.Run("BDM degree 0", func(t *testing.T) {
		_, err := reg.Construct(BrezziDouglasMarini, Triangle, 0)
		if !errors.Is(err, ErrUnsupportedDegree) {
			t.Errorf("expected ErrUnsupportedDegree, got %v", err)
		}
	})

	t.Run("BDM on tetrahedron", func(t *testing.T) {
		_, err := reg.Construct(BrezziDouglasMarini, Tetrahedron, 1)
		if !errors.Is(err, ErrUnknownFamily) {
			t.Errorf("expected ErrUnknownFamily, got %v", err)
		}
	})

	t.Run("unregistered family", func(t *testing.T) {
		_, err := reg.Construct(Family(200), Triangle, 1)
		if !errors.Is(err, ErrUnknownFamily) {
			t.Errorf("expected ErrUnknownFamily, got %v", err)
		}
	})

	t.Run("CG degree 0", func(t *testing.T) {
		_, err := reg.Construct(Lagrange, Triangle, 0)
		if !errors.Is(err, ErrUnsupportedDegree) {
			t.Errorf("expected ErrUnsupportedDegree, got %v", err)
		}
	})
}

func TestFamilyByName(t *testing.T) {
	tests := []struct {
		name string
		want Family
	}{
		{"BDM", BrezziDouglasMarini},
		{"Brezzi-Douglas-Marini", BrezziDouglasMarini},
		{"DG", DiscontinuousLagrange},
		{"Discontinuous Lagrange", DiscontinuousLagrange},
		{"CG", Lagrange},
		{"Lagrange", Lagrange},
		{"RT", RaviartThomas},
	}
	for _, tt := range tests {
		got, err := FamilyByName(tt.name)
		if err != nil {
			t.Fatalf("FamilyByName(%q) failed: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("FamilyByName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}

	if _, err := FamilyByName("Nedelec"); !errors.Is(err, ErrUnknownFamily) {
		t.Errorf("expected ErrUnknownFamily for unregistered name, got %v", err)
	}
}

func TestVectorElement(t *testing.T) {
	reg := NewRegistry()
	cg1, err := reg.Construct(Lagrange, Triangle, 1)
	if err != nil {
		t.Fatalf("Construct failed: %v", err)
	}

	t.Run("default dimension matches cell", func(t *testing.T) {
		v, err := NewVectorElement(cg1, 0)
		if err != nil {
			t.Fatalf("NewVectorElement failed: %v", err)
		}
		if v.Dim() != 2 {
			t.Errorf("Dim() = %d, want 2", v.Dim())
		}
		if v.DofCount() != 6 {
			t.Errorf("DofCount() = %d, want 6", v.DofCount())
		}
		if v.ValueRank() != 1 {
			t.Errorf("ValueRank() = %d, want 1", v.ValueRank())
		}
	})

	t.Run("vector of vector rejected", func(t *testing.T) {
		bdm, err := reg.Construct(BrezziDouglasMarini, Triangle, 1)
		if err != nil {
			t.Fatalf("Construct failed: %v", err)
		}
		if _, err := NewVectorElement(bdm, 0); err == nil {
			t.Error("expected error wrapping a vector-valued base, got nil")
		}
	})
}
