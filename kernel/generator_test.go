package kernel

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/varform/formc/element"
	"github.com/varform/formc/form"
)

func mustConstruct(t *testing.T, family element.Family, shape element.CellShape, degree int) element.Element {
	t.Helper()
	reg := element.NewRegistry()
	el, err := reg.Construct(family, shape, degree)
	if err != nil {
		t.Fatal(err)
	}
	return el
}

// buildMixedPoisson assembles a = (dot(sigma, tau) + div(tau)*u +
// div(sigma)*v) * dx over BDM2 x DG1.
func buildMixedPoisson(t *testing.T) *form.Form {
	t.Helper()
	bdm := mustConstruct(t, element.BrezziDouglasMarini, element.Triangle, 2)
	dg := mustConstruct(t, element.DiscontinuousLagrange, element.Triangle, 1)
	w, err := element.Compose(bdm, dg)
	if err != nil {
		t.Fatal(err)
	}
	trial := form.TrialFunctions(w, 0)
	test := form.TestFunctions(w, 0)
	sigma, u := trial[0], trial[1]
	tau, v := test[0], test[1]

	dot, err := form.DotProduct(sigma, tau)
	if err != nil {
		t.Fatal(err)
	}
	divTau, err := form.Divergence(tau)
	if err != nil {
		t.Fatal(err)
	}
	t1, err := form.Multiply(divTau, u)
	if err != nil {
		t.Fatal(err)
	}
	divSigma, err := form.Divergence(sigma)
	if err != nil {
		t.Fatal(err)
	}
	t2, err := form.Multiply(divSigma, v)
	if err != nil {
		t.Fatal(err)
	}
	sum, err := form.Add(dot, t1)
	if err != nil {
		t.Fatal(err)
	}
	sum, err = form.Add(sum, t2)
	if err != nil {
		t.Fatal(err)
	}
	integral, err := form.Integrate(sum, form.CellMeasure, -1)
	if err != nil {
		t.Fatal(err)
	}
	f, err := form.NewForm("a", integral)
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func generate(t *testing.T, f *form.Form) *LocalKernel {
	t.Helper()
	f = form.SimplifyForm(f)
	analysis, err := form.Analyze(f)
	if err != nil {
		t.Fatal(err)
	}
	lk, err := NewGenerator(Float64).Generate(f, analysis)
	if err != nil {
		t.Fatal(err)
	}
	return lk
}

func TestGenerateMixedPoisson(t *testing.T) {
	lk := generate(t, buildMixedPoisson(t))

	if lk.Arity != 2 {
		t.Errorf("arity = %d, want 2", lk.Arity)
	}
	if lk.TestDofs != 12 || lk.TrialDofs != 12 {
		t.Errorf("dofs = (%d, %d), want (12, 12)", lk.TestDofs, lk.TrialDofs)
	}
	if len(lk.Entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(lk.Entries))
	}
	entry := lk.Entries[0]
	if entry.Name != "a_cell" {
		t.Errorf("entry name = %q, want a_cell", entry.Name)
	}
	// The dot(sigma, tau) term dominates: degree 2 + 2.
	if entry.QuadratureDegree != 4 {
		t.Errorf("quadrature degree = %d, want 4", entry.QuadratureDegree)
	}
	if entry.NumQuadPoints != 9 {
		t.Errorf("quadrature points = %d, want 9", entry.NumQuadPoints)
	}

	if len(lk.TestLayout) != 2 {
		t.Fatalf("test layout has %d slots, want 2", len(lk.TestLayout))
	}
	if lk.TestLayout[0].Offset != 0 || lk.TestLayout[0].Dofs != 9 {
		t.Errorf("slot 0 layout = %+v", lk.TestLayout[0])
	}
	if lk.TestLayout[1].Offset != 9 || lk.TestLayout[1].Dofs != 3 {
		t.Errorf("slot 1 layout = %+v", lk.TestLayout[1])
	}

	src := lk.Source
	for _, want := range []string{
		"@kernel void a_cell(",
		"a_cell_QW",
		"DETJ(e)",
		// Piola transform of the H(div) arguments.
		"SY(e)",
		// div(sigma)*v accumulates into the pressure test block.
		"if (i >= 9 && i < 12)",
		// dot(sigma, tau) stays in the flux test block.
		"if (i < 9)",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("source missing %q", want)
		}
	}
	if strings.Contains(src, "FNX") {
		t.Error("cell kernel references facet geometry")
	}
}

func TestGenerateLinearWithBoundaryTerm(t *testing.T) {
	dg := mustConstruct(t, element.DiscontinuousLagrange, element.Triangle, 1)
	v := form.NewTestFunction(dg, 0)
	f := form.NewCoefficient("f", dg)
	g := form.NewCoefficient("g", dg)

	fv, err := form.Multiply(f, v)
	if err != nil {
		t.Fatal(err)
	}
	cell, err := form.Integrate(fv, form.CellMeasure, -1)
	if err != nil {
		t.Fatal(err)
	}
	gv, err := form.Multiply(g, v)
	if err != nil {
		t.Fatal(err)
	}
	facet, err := form.Integrate(gv, form.ExteriorFacetMeasure, 1)
	if err != nil {
		t.Fatal(err)
	}
	sum, err := form.Add(cell, facet)
	if err != nil {
		t.Fatal(err)
	}
	L, err := form.NewForm("L", sum)
	if err != nil {
		t.Fatal(err)
	}

	lk := generate(t, L)
	if lk.Arity != 1 {
		t.Errorf("arity = %d, want 1", lk.Arity)
	}
	if lk.TrialDofs != 0 {
		t.Errorf("trial dofs = %d, want 0", lk.TrialDofs)
	}
	require.Len(t, lk.Entries, 2)
	require.Equal(t, "L_cell", lk.Entries[0].Name)
	require.Equal(t, "L_exterior_facet_1", lk.Entries[1].Name)
	require.Equal(t, 1, lk.Entries[1].Subdomain)

	require.Equal(t, []CoefficientSpec{{Name: "f", Dofs: 3}, {Name: "g", Dofs: 3}}, lk.Coeffs)

	src := lk.Source
	for _, want := range []string{
		"const real_t *w_f",
		"const real_t *w_g",
		// Coefficient values hoisted out of the accumulation.
		"c_f +=",
		"c_g +=",
		"FSCALE(fi)",
		"fcell[fi]",
		"flocal[fi]",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("source missing %q", want)
		}
	}
}

// A boundary flux term pairs the facet normal against an H(div) test
// function.
func TestGenerateFacetNormalTerm(t *testing.T) {
	bdm := mustConstruct(t, element.BrezziDouglasMarini, element.Triangle, 1)
	tau := form.NewTestFunction(bdm, 0)
	n := &form.FacetNormal{Shape: element.Triangle}

	dot, err := form.DotProduct(n, tau)
	if err != nil {
		t.Fatal(err)
	}
	integral, err := form.Integrate(dot, form.ExteriorFacetMeasure, 2)
	if err != nil {
		t.Fatal(err)
	}
	L, err := form.NewForm("Lb", integral)
	if err != nil {
		t.Fatal(err)
	}

	lk := generate(t, L)
	require.Len(t, lk.Entries, 1)
	require.Equal(t, "Lb_exterior_facet_2", lk.Entries[0].Name)

	src := lk.Source
	for _, want := range []string{"FNX(fi)", "FNY(fi)", "SY(e)"} {
		if !strings.Contains(src, want) {
			t.Errorf("source missing %q", want)
		}
	}
}

func TestGenerateNormalInCellIntegralFails(t *testing.T) {
	bdm := mustConstruct(t, element.BrezziDouglasMarini, element.Triangle, 1)
	tau := form.NewTestFunction(bdm, 0)
	n := &form.FacetNormal{Shape: element.Triangle}

	dot, err := form.DotProduct(n, tau)
	if err != nil {
		t.Fatal(err)
	}
	integral, err := form.Integrate(dot, form.CellMeasure, -1)
	if err != nil {
		t.Fatal(err)
	}
	L, err := form.NewForm("bad", integral)
	if err != nil {
		t.Fatal(err)
	}
	analysis, err := form.Analyze(L)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewGenerator(Float64).Generate(L, analysis); err == nil {
		t.Fatal("expected error for facet normal in cell integral")
	}
}

func TestGenerateInteriorFacetUnsupported(t *testing.T) {
	dg := mustConstruct(t, element.DiscontinuousLagrange, element.Triangle, 1)
	v := form.NewTestFunction(dg, 0)
	u := form.NewTrialFunction(dg, 0)

	uv, err := form.Multiply(u, v)
	if err != nil {
		t.Fatal(err)
	}
	integral, err := form.Integrate(uv, form.InteriorFacetMeasure, -1)
	if err != nil {
		t.Fatal(err)
	}
	f, err := form.NewForm("jump", integral)
	if err != nil {
		t.Fatal(err)
	}
	analysis, err := form.Analyze(f)
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewGenerator(Float64).Generate(f, analysis)
	if err == nil || !strings.Contains(err.Error(), "not supported") {
		t.Fatalf("expected interior facet rejection, got %v", err)
	}
}

func TestGenerateFunctionalRejected(t *testing.T) {
	dg := mustConstruct(t, element.DiscontinuousLagrange, element.Triangle, 1)
	f := form.NewCoefficient("f", dg)

	integral, err := form.Integrate(f, form.CellMeasure, -1)
	if err != nil {
		t.Fatal(err)
	}
	J, err := form.NewForm("J", integral)
	if err != nil {
		t.Fatal(err)
	}
	analysis, err := form.Analyze(J)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewGenerator(Float64).Generate(J, analysis); err == nil {
		t.Fatal("expected error for form without test function")
	}
}

// Arity one with only a trial function is a linearity violation, not a
// functional.
func TestGenerateTrialOnlyFormRejected(t *testing.T) {
	dg := mustConstruct(t, element.DiscontinuousLagrange, element.Triangle, 1)
	u := form.NewTrialFunction(dg, 0)
	f := form.NewCoefficient("f", dg)

	fu, err := form.Multiply(f, u)
	if err != nil {
		t.Fatal(err)
	}
	integral, err := form.Integrate(fu, form.CellMeasure, -1)
	if err != nil {
		t.Fatal(err)
	}
	bad, err := form.NewForm("bad", integral)
	if err != nil {
		t.Fatal(err)
	}
	analysis, err := form.Analyze(bad)
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewGenerator(Float64).Generate(bad, analysis)
	if !errors.Is(err, form.ErrNonLinearForm) {
		t.Fatalf("error = %v, want ErrNonLinearForm", err)
	}
}

func TestGenerateFloat32Types(t *testing.T) {
	lk := generate(t, buildMixedPoisson(t))
	if !strings.Contains(lk.Source, "typedef double real_t;") {
		t.Error("float64 kernel missing double typedef")
	}

	f := buildMixedPoisson(t)
	f = form.SimplifyForm(f)
	analysis, err := form.Analyze(f)
	if err != nil {
		t.Fatal(err)
	}
	lk32, err := NewGenerator(Float32).Generate(f, analysis)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(lk32.Source, "typedef float real_t;") {
		t.Error("float32 kernel missing float typedef")
	}
	if !strings.Contains(lk32.Source, "#define REAL_ZERO 0.0f") {
		t.Error("float32 kernel missing literal suffix")
	}
}

func TestManifestRoundTrip(t *testing.T) {
	lk := generate(t, buildMixedPoisson(t))
	m := NewManifest(lk, Float64)
	require.NotEmpty(t, m.ID)
	require.Equal(t, "float64", m.Precision)
	require.Equal(t, numGeo, m.Geometry.CellStride)

	var buf bytes.Buffer
	require.NoError(t, m.Encode(&buf))
	got, err := DecodeManifest(&buf)
	require.NoError(t, err)
	require.Equal(t, m, got)
}
