package kernel

import (
	"fmt"
	"strings"

	"github.com/notargets/gocfd/utils"

	"github.com/varform/formc/element"
	"github.com/varform/formc/form"
	"github.com/varform/formc/quadrature"
)

// DataType represents the precision of numerical data in generated
// kernels.
type DataType int

const (
	Float32 DataType = iota + 1
	Float64
)

// Geometry array layout per cell: the runtime passes detJ and the
// inverse-Jacobian entries of the affine cell map.
const (
	geoDetJ = 0
	geoRx   = 1
	geoRy   = 2
	geoSx   = 3
	geoSy   = 4
	numGeo  = 5
)

// Facet geometry layout per boundary facet: measure scale and outward
// unit normal.
const (
	fgeoScale = 0
	fgeoNx    = 1
	fgeoNy    = 2
	numFgeo   = 3
)

// SlotLayout describes one contiguous dof block of a kernel's local
// tensor axis.
type SlotLayout struct {
	Slot    int    `yaml:"slot"`
	Element string `yaml:"element"`
	Offset  int    `yaml:"offset"`
	Dofs    int    `yaml:"dofs"`
}

// CoefficientSpec describes one coefficient argument of a kernel.
type CoefficientSpec struct {
	Name string `yaml:"name"`
	Dofs int    `yaml:"dofs"`
}

// EntryPoint is one generated @kernel function: the cell terms or one
// exterior-facet subdomain of a form.
type EntryPoint struct {
	Name             string `yaml:"name"`
	Measure          string `yaml:"measure"`
	Subdomain        int    `yaml:"subdomain"`
	QuadratureDegree int    `yaml:"quadrature_degree"`
	NumQuadPoints    int    `yaml:"quadrature_points"`
}

// LocalKernel is the generated per-cell computation for one form: OCCA
// source with one entry point per (measure, subdomain) group, plus the
// layout metadata the assembly runtime needs.
type LocalKernel struct {
	FormName    string
	Arity       int
	Source      string
	Entries     []EntryPoint
	TestDofs    int
	TrialDofs   int // 0 for linear forms
	TestLayout  []SlotLayout
	TrialLayout []SlotLayout
	Coeffs      []CoefficientSpec
}

// Generator emits OCCA kernel source for analyzed forms.
type Generator struct {
	FloatType DataType
}

// NewGenerator returns a generator with the given precision; 0 defaults
// to Float64.
func NewGenerator(floatType DataType) *Generator {
	if floatType == 0 {
		floatType = Float64
	}
	return &Generator{FloatType: floatType}
}

// space is the resolved function space of one argument axis: either a
// single element or the block layout of a mixed element.
type space struct {
	slots []slotInfo
	total int
}

type slotInfo struct {
	slot   int
	el     element.Element
	offset int
	dofs   int
}

func spaceOf(arg *form.Argument) *space {
	if parent := arg.MixedParent(); parent != nil {
		sp := &space{total: parent.DofCount()}
		for i := 0; i < parent.NumSlots(); i++ {
			sub := parent.Sub(i)
			sp.slots = append(sp.slots, slotInfo{
				slot:   i,
				el:     sub,
				offset: parent.Offset(i),
				dofs:   sub.DofCount(),
			})
		}
		return sp
	}
	el := arg.Element()
	return &space{
		total: el.DofCount(),
		slots: []slotInfo{{slot: 0, el: el, offset: 0, dofs: el.DofCount()}},
	}
}

func (sp *space) layout() []SlotLayout {
	out := make([]SlotLayout, len(sp.slots))
	for i, s := range sp.slots {
		out[i] = SlotLayout{Slot: s.slot, Element: s.el.Name(), Offset: s.offset, Dofs: s.dofs}
	}
	return out
}

func (sp *space) bySlot(slot int) slotInfo {
	if slot < 0 {
		return sp.slots[0]
	}
	for _, s := range sp.slots {
		if s.slot == slot {
			return s
		}
	}
	panic(fmt.Sprintf("slot %d not in space", slot))
}

// Generate compiles a simplified, analyzed form into a local kernel.
// Every failure is reported: a form that cannot be translated yields an
// error, never a silently wrong kernel.
func (g *Generator) Generate(f *form.Form, analysis *form.Analysis) (*LocalKernel, error) {
	if analysis.Arity > 2 {
		return nil, fmt.Errorf("form %q: arity %d has no kernel shape", f.Name, analysis.Arity)
	}
	testArg, hasTest := analysis.Arguments[form.ArgumentSlot{Role: form.TestRole, Index: 0}]
	trialArg, hasTrial := analysis.Arguments[form.ArgumentSlot{Role: form.TrialRole, Index: 0}]
	for slot := range analysis.Arguments {
		if slot.Index != 0 {
			return nil, fmt.Errorf("form %q: argument index %d is not supported, one test and one trial space per form", f.Name, slot.Index)
		}
	}
	if !hasTest {
		if hasTrial {
			return nil, fmt.Errorf("form %q: %w: trial function without a test function", f.Name, form.ErrNonLinearForm)
		}
		return nil, fmt.Errorf("form %q: no test function, functionals have no local kernel", f.Name)
	}

	lk := &LocalKernel{FormName: f.Name, Arity: analysis.Arity}

	testSpace := spaceOf(testArg)
	lk.TestDofs = testSpace.total
	lk.TestLayout = testSpace.layout()

	var trialSpace *space
	if hasTrial {
		trialSpace = spaceOf(trialArg)
		lk.TrialDofs = trialSpace.total
		lk.TrialLayout = trialSpace.layout()
	}

	for _, c := range analysis.Coefficients {
		dofs := c.Element().DofCount()
		if p := c.MixedParent(); p != nil {
			dofs = p.DofCount()
		}
		lk.Coeffs = append(lk.Coeffs, CoefficientSpec{Name: coeffBase(c), Dofs: dofs})
	}

	var sb strings.Builder
	sb.WriteString(g.generateTypeDefinitions())
	sb.WriteString(g.generateGeometryMacros())

	for _, group := range groupTerms(f) {
		entry, source, err := g.generateEntry(f, group, testSpace, trialSpace, analysis)
		if err != nil {
			return nil, err
		}
		lk.Entries = append(lk.Entries, entry)
		sb.WriteString(source)
	}

	lk.Source = sb.String()
	return lk, nil
}

// generateTypeDefinitions creates type definitions based on precision
// settings.
func (g *Generator) generateTypeDefinitions() string {
	var sb strings.Builder

	floatTypeStr := "double"
	floatSuffix := ""
	if g.FloatType == Float32 {
		floatTypeStr = "float"
		floatSuffix = "f"
	}

	sb.WriteString(fmt.Sprintf("typedef %s real_t;\n", floatTypeStr))
	sb.WriteString("typedef long int_t;\n")
	sb.WriteString(fmt.Sprintf("#define REAL_ZERO 0.0%s\n", floatSuffix))
	sb.WriteString(fmt.Sprintf("#define REAL_ONE 1.0%s\n", floatSuffix))
	sb.WriteString("\n")
	return sb.String()
}

// generateGeometryMacros defines the accessors into the per-cell and
// per-facet geometry arrays.
func (g *Generator) generateGeometryMacros() string {
	var sb strings.Builder
	sb.WriteString("// Geometry access macros\n")
	sb.WriteString(fmt.Sprintf("#define DETJ(e) geo[(e) * %d + %d]\n", numGeo, geoDetJ))
	sb.WriteString(fmt.Sprintf("#define RX(e) geo[(e) * %d + %d]\n", numGeo, geoRx))
	sb.WriteString(fmt.Sprintf("#define RY(e) geo[(e) * %d + %d]\n", numGeo, geoRy))
	sb.WriteString(fmt.Sprintf("#define SX(e) geo[(e) * %d + %d]\n", numGeo, geoSx))
	sb.WriteString(fmt.Sprintf("#define SY(e) geo[(e) * %d + %d]\n", numGeo, geoSy))
	sb.WriteString(fmt.Sprintf("#define FSCALE(f) fgeo[(f) * %d + %d]\n", numFgeo, fgeoScale))
	sb.WriteString(fmt.Sprintf("#define FNX(f) fgeo[(f) * %d + %d]\n", numFgeo, fgeoNx))
	sb.WriteString(fmt.Sprintf("#define FNY(f) fgeo[(f) * %d + %d]\n", numFgeo, fgeoNy))
	sb.WriteString("\n")
	return sb.String()
}

// matrixLike covers both gonum and gocfd matrices for static embedding.
type matrixLike interface {
	Dims() (r, c int)
	At(i, j int) float64
}

// formatStaticMatrix formats a matrix as a static C array in
// column-major layout: declared name[cols][rows] and accessed
// name[col][row], consistent with the tables' [point][dof] indexing.
func (g *Generator) formatStaticMatrix(name string, m matrixLike) string {
	rows, cols := m.Dims()
	var sb strings.Builder

	typeStr := "double"
	if g.FloatType == Float32 {
		typeStr = "float"
	}

	sb.WriteString(fmt.Sprintf("// Table %s stored in column-major format\n", name))
	sb.WriteString(fmt.Sprintf("const %s %s[%d][%d] = {\n", typeStr, name, cols, rows))
	for j := 0; j < cols; j++ {
		sb.WriteString("    {")
		for i := 0; i < rows; i++ {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(g.formatFloat(m.At(i, j)))
		}
		sb.WriteString("}")
		if j < cols-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("};\n\n")
	return sb.String()
}

// formatStaticVector formats a slice as a one-dimensional static array.
func (g *Generator) formatStaticVector(name string, v []float64) string {
	typeStr := "double"
	if g.FloatType == Float32 {
		typeStr = "float"
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("const %s %s[%d] = {", typeStr, name, len(v)))
	for i, x := range v {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(g.formatFloat(x))
	}
	sb.WriteString("};\n\n")
	return sb.String()
}

func (g *Generator) formatFloat(val float64) string {
	if g.FloatType == Float32 {
		return fmt.Sprintf("%.7ef", val)
	}
	return fmt.Sprintf("%.15e", val)
}

// generateEntry emits one @kernel function for a (measure, subdomain)
// term group.
func (g *Generator) generateEntry(f *form.Form, group *termGroup, testSpace, trialSpace *space, analysis *form.Analysis) (EntryPoint, string, error) {
	degree := group.requiredDegree()

	var suffix string
	switch group.measure {
	case form.CellMeasure:
		suffix = "cell"
	case form.ExteriorFacetMeasure:
		suffix = "exterior_facet"
		if group.subdomain >= 0 {
			suffix = fmt.Sprintf("exterior_facet_%d", group.subdomain)
		}
	case form.InteriorFacetMeasure:
		return EntryPoint{}, "", fmt.Errorf("form %q: interior facet (dS) integrals are not supported by the occa backend", f.Name)
	}
	entryName := fmt.Sprintf("%s_%s", f.Name, suffix)

	shape := testSpace.slots[0].el.Shape()
	var rule *quadrature.Rule
	var err error
	onFacet := group.measure == form.ExteriorFacetMeasure
	if onFacet {
		rule, err = quadrature.SelectFacet(shape, degree)
	} else {
		rule, err = quadrature.Select(shape, degree)
	}
	if err != nil {
		return EntryPoint{}, "", fmt.Errorf("form %q, measure %s: %w", f.Name, group.measure, err)
	}

	em := &emitter{
		gen:        g,
		prefix:     entryName,
		rule:       rule,
		onFacet:    onFacet,
		cellShape:  shape,
		testSpace:  testSpace,
		trialSpace: trialSpace,
		coeffs:     analysis.Coefficients,
		tables:     make(map[string]*tableRef),
	}

	body, err := em.emitEntryBody(group)
	if err != nil {
		return EntryPoint{}, "", fmt.Errorf("form %q, kernel %s: %w", f.Name, entryName, err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("// %s: %s terms of form %s, quadrature degree %d\n",
		entryName, group.measure, f.Name, degree))
	sb.WriteString(em.staticData())
	sb.WriteString(em.signature(entryName))
	sb.WriteString(body)
	sb.WriteString("\n")

	entry := EntryPoint{
		Name:             entryName,
		Measure:          group.measure.String(),
		Subdomain:        group.subdomain,
		QuadratureDegree: degree,
		NumQuadPoints:    rule.NumPoints(),
	}
	return entry, sb.String(), nil
}

// tableRef tracks one static basis table scheduled for embedding.
type tableRef struct {
	name string
	m    matrixLike
}

// emitter holds the state of one entry point's code generation.
type emitter struct {
	gen        *Generator
	prefix     string
	rule       *quadrature.Rule
	onFacet    bool
	cellShape  element.CellShape
	testSpace  *space
	trialSpace *space
	coeffs     []*form.Argument

	tables     map[string]*tableRef
	tableOrder []string

	tabCache map[string]*element.Tabulation
}

// tabulate returns the basis tables of el at this entry's quadrature
// points: directly at the rule points for cell kernels, or stacked per
// facet for facet kernels (rows ordered facet-major, dof-minor).
func (em *emitter) tabulate(el element.Element) (*element.Tabulation, error) {
	if em.tabCache == nil {
		em.tabCache = make(map[string]*element.Tabulation)
	}
	key := el.Name()
	if tab, ok := em.tabCache[key]; ok {
		return tab, nil
	}

	var tab *element.Tabulation
	if !em.onFacet {
		t, err := element.Tabulate(el, em.rule.R, em.rule.S)
		if err != nil {
			return nil, err
		}
		tab = t
	} else {
		t, err := em.tabulateFacets(el)
		if err != nil {
			return nil, err
		}
		tab = t
	}
	em.tabCache[key] = tab
	return tab, nil
}

// tabulateFacets evaluates el at the quadrature points of every facet
// and stacks the per-facet tables vertically.
func (em *emitter) tabulateFacets(el element.Element) (*element.Tabulation, error) {
	if em.cellShape != element.Triangle {
		return nil, fmt.Errorf("facet tabulation only supported on triangles, not %s", em.cellShape)
	}
	nf := em.cellShape.NumFacets()
	nq := em.rule.NumPoints()
	nd := el.DofCount()

	var stacked *element.Tabulation
	for fi := 0; fi < nf; fi++ {
		r, s, _, err := element.TriangleFacetPoints(fi, em.rule.R)
		if err != nil {
			return nil, err
		}
		tab, err := element.Tabulate(el, r, s)
		if err != nil {
			return nil, err
		}
		if stacked == nil {
			stacked = &element.Tabulation{
				NumDofs:   nf * nd,
				NumPoints: nq,
				HDiv:      tab.HDiv,
			}
			for range tab.Values {
				stacked.Values = append(stacked.Values, utils.NewMatrix(nf*nd, nq))
			}
			for range tab.GradR {
				stacked.GradR = append(stacked.GradR, utils.NewMatrix(nf*nd, nq))
				stacked.GradS = append(stacked.GradS, utils.NewMatrix(nf*nd, nq))
			}
			if tab.HDiv {
				stacked.Div = utils.NewMatrix(nf*nd, nq)
			}
		}
		for c := range tab.Values {
			stackRows(stacked.Values[c], tab.Values[c], fi, nd, nq)
		}
		for c := range tab.GradR {
			stackRows(stacked.GradR[c], tab.GradR[c], fi, nd, nq)
			stackRows(stacked.GradS[c], tab.GradS[c], fi, nd, nq)
		}
		if tab.HDiv {
			stackRows(stacked.Div, tab.Div, fi, nd, nq)
		}
	}
	return stacked, nil
}

// stackRows copies an (nd x nq) block into rows [fi*nd, (fi+1)*nd).
func stackRows(dst utils.Matrix, src utils.Matrix, fi, nd, nq int) {
	for i := 0; i < nd; i++ {
		for q := 0; q < nq; q++ {
			dst.Set(fi*nd+i, q, src.At(i, q))
		}
	}
}

// addTable schedules a static table for embedding and returns its name.
func (em *emitter) addTable(key string, m matrixLike) string {
	name := em.prefix + "_" + key
	if _, ok := em.tables[name]; !ok {
		em.tables[name] = &tableRef{name: name, m: m}
		em.tableOrder = append(em.tableOrder, name)
	}
	return name
}

// staticData emits the quadrature weights and every scheduled table.
func (em *emitter) staticData() string {
	var sb strings.Builder
	sb.WriteString(em.gen.formatStaticVector(em.prefix+"_QW", em.rule.W))
	for _, name := range em.tableOrder {
		sb.WriteString(em.gen.formatStaticMatrix(name, em.tables[name].m))
	}
	return sb.String()
}

// signature emits the @kernel declaration. Cell kernels take the cell
// count, cell geometry, coefficient dof arrays and the output tensor;
// facet kernels additionally take the facet-to-cell map and facet
// geometry.
func (em *emitter) signature(entryName string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("@kernel void %s(\n", entryName))
	if em.onFacet {
		sb.WriteString("    const int_t Kf,\n")
		sb.WriteString("    const int_t *fcell,\n")
		sb.WriteString("    const int_t *flocal,\n")
		sb.WriteString("    const real_t *fgeo,\n")
	} else {
		sb.WriteString("    const int_t K,\n")
	}
	sb.WriteString("    const real_t *geo,\n")
	for _, c := range em.coeffs {
		sb.WriteString(fmt.Sprintf("    const real_t *w_%s,\n", cIdent(coeffBase(c))))
	}
	sb.WriteString("    real_t *A\n")
	sb.WriteString(") ")
	return sb.String()
}
