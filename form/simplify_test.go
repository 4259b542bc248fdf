package form

import (
	"testing"

	"github.com/varform/formc/element"
)

func scalarTestPair(t *testing.T) (*Argument, *Argument) {
	t.Helper()
	reg := element.NewRegistry()
	dg, err := reg.Construct(element.DiscontinuousLagrange, element.Triangle, 1)
	if err != nil {
		t.Fatal(err)
	}
	return NewTestFunction(dg, 0), NewTrialFunction(dg, 0)
}

func TestSimplifyConstantFolding(t *testing.T) {
	v, _ := scalarTestPair(t)

	two := &Constant{Value: 2}
	three := &Constant{Value: 3}

	p, err := Multiply(two, three)
	if err != nil {
		t.Fatal(err)
	}
	if got := Simplify(p); got.(*Constant).Value != 6 {
		t.Errorf("2*3 simplified to %s, want 6", got)
	}

	// 1*v -> v
	p, err = Multiply(&Constant{Value: 1}, v)
	if err != nil {
		t.Fatal(err)
	}
	if got := Simplify(p); got != v {
		t.Errorf("1*v simplified to %s, want v", got)
	}

	// v + 0 -> v
	s, err := Add(v, &Constant{Value: 0})
	if err != nil {
		t.Fatal(err)
	}
	if got := Simplify(s); got != v {
		t.Errorf("v + 0 simplified to %s, want v", got)
	}

	// 0*v -> 0
	p, err = Multiply(&Constant{Value: 0}, v)
	if err != nil {
		t.Fatal(err)
	}
	if got := Simplify(p).(*Constant); got.Value != 0 {
		t.Errorf("0*v simplified to %s, want 0", got)
	}
}

func TestSimplifyDistributesOverProduct(t *testing.T) {
	v, u := scalarTestPair(t)

	sum, err := Add(u, &Constant{Value: 2})
	if err != nil {
		t.Fatal(err)
	}
	p, err := Multiply(v, sum)
	if err != nil {
		t.Fatal(err)
	}

	out := Simplify(p)
	s, ok := out.(*Sum)
	if !ok {
		t.Fatalf("expected sum after distribution, got %T (%s)", out, out)
	}
	if len(s.Terms) != 2 {
		t.Fatalf("expected 2 terms, got %d (%s)", len(s.Terms), s)
	}
}

func TestSimplifyDistributesOverMeasure(t *testing.T) {
	v, u := scalarTestPair(t)

	uv, err := Multiply(u, v)
	if err != nil {
		t.Fatal(err)
	}
	sum, err := Add(uv, v)
	if err != nil {
		t.Fatal(err)
	}
	integral, err := Integrate(sum, CellMeasure, -1)
	if err != nil {
		t.Fatal(err)
	}
	f, err := NewForm("a", integral)
	if err != nil {
		t.Fatal(err)
	}

	out := SimplifyForm(f)
	if len(out.Terms) != 2 {
		t.Fatalf("expected 2 integral terms after distribution, got %d (%s)", len(out.Terms), out)
	}
	for _, term := range out.Terms {
		if term.M != CellMeasure {
			t.Errorf("term %s lost its measure", term)
		}
	}
}

// TestSimplifyIdempotent checks simplify(simplify(x)) == simplify(x)
// structurally on a representative set of expressions.
func TestSimplifyIdempotent(t *testing.T) {
	v, u := scalarTestPair(t)

	build := func() []Expr {
		uv, _ := Multiply(u, v)
		twoUV, _ := Multiply(&Constant{Value: 2}, uv)
		sum, _ := Add(twoUV, &Constant{Value: 0})
		nested, _ := Add(sum, v)
		dist, _ := Multiply(nested, &Constant{Value: 3})
		return []Expr{uv, twoUV, sum, nested, dist}
	}

	for _, e := range build() {
		once := Simplify(e)
		twice := Simplify(once)
		if once.String() != twice.String() {
			t.Errorf("not idempotent for %s: %s != %s", e, once, twice)
		}
		if once.Rank() != e.Rank() {
			t.Errorf("rank not preserved for %s: %d -> %d", e, e.Rank(), once.Rank())
		}
	}
}

// TestSimplifyPreservesArity: simplification must not change the
// analysis outcome of a form.
func TestSimplifyPreservesArity(t *testing.T) {
	f, _, _ := buildMixedPoisson(t)

	before, err := Analyze(f)
	if err != nil {
		t.Fatal(err)
	}
	after, err := Analyze(SimplifyForm(f))
	if err != nil {
		t.Fatal(err)
	}
	if before.Arity != after.Arity {
		t.Errorf("arity changed: %d -> %d", before.Arity, after.Arity)
	}
}

func TestSimplifyZeroVectorKeepsRank(t *testing.T) {
	reg := element.NewRegistry()
	bdm, err := reg.Construct(element.BrezziDouglasMarini, element.Triangle, 1)
	if err != nil {
		t.Fatal(err)
	}
	sigma := NewTrialFunction(bdm, 0)

	p, err := Multiply(&Constant{Value: 0}, sigma)
	if err != nil {
		t.Fatal(err)
	}
	out := Simplify(p)
	if out.Rank() != 1 {
		t.Errorf("rank = %d, want 1", out.Rank())
	}
}
