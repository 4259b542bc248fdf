package kernel

import (
	"fmt"
	"sort"
	"strings"

	"github.com/varform/formc/form"
)

// termInfo describes the argument structure of one integrand term:
// which test and trial dof blocks it touches.
type termInfo struct {
	testSlot  slotInfo
	trialSlot slotInfo
	hasTrial  bool
}

// analyzeTerm validates that the integrand is affine in each argument
// role: exactly one test occurrence, and for bilinear forms exactly one
// trial occurrence.
func (em *emitter) analyzeTerm(e form.Expr) (*termInfo, error) {
	var testArgs, trialArgs []*form.Argument
	collectArguments(e, &testArgs, &trialArgs)

	if len(testArgs) != 1 {
		return nil, fmt.Errorf("term %s: expected exactly one test function occurrence, found %d", e, len(testArgs))
	}
	bilinear := em.trialSpace != nil
	if bilinear && len(trialArgs) != 1 {
		return nil, fmt.Errorf("term %s: expected exactly one trial function occurrence, found %d", e, len(trialArgs))
	}
	if !bilinear && len(trialArgs) != 0 {
		return nil, fmt.Errorf("term %s: trial function in a linear form", e)
	}

	info := &termInfo{testSlot: em.testSpace.bySlot(testArgs[0].Slot())}
	if bilinear {
		info.hasTrial = true
		info.trialSlot = em.trialSpace.bySlot(trialArgs[0].Slot())
	}
	return info, nil
}

func collectArguments(e form.Expr, test, trial *[]*form.Argument) {
	switch v := e.(type) {
	case *form.Argument:
		switch v.Role() {
		case form.TestRole:
			*test = append(*test, v)
		case form.TrialRole:
			*trial = append(*trial, v)
		}
	case *form.Sum:
		for _, t := range v.Terms {
			collectArguments(t, test, trial)
		}
	case *form.Product:
		for _, f := range v.Factors {
			collectArguments(f, test, trial)
		}
	case *form.Dot:
		collectArguments(v.A, test, trial)
		collectArguments(v.B, test, trial)
	case *form.Grad:
		collectArguments(v.Arg, test, trial)
	case *form.Div:
		collectArguments(v.Arg, test, trial)
	}
}

// coeffNeed records which derived quantities of a coefficient a term
// uses, so the hoisting block computes only those.
type coeffNeed struct {
	arg   *form.Argument
	value bool
	div   bool
	grad  bool
}

func collectCoefficientNeeds(e form.Expr, needs map[string]*coeffNeed) {
	record := func(a *form.Argument) *coeffNeed {
		n, ok := needs[a.Name()]
		if !ok {
			n = &coeffNeed{arg: a}
			needs[a.Name()] = n
		}
		return n
	}
	switch v := e.(type) {
	case *form.Argument:
		if v.Role() == form.CoefficientRole {
			record(v).value = true
		}
	case *form.Div:
		if a, ok := v.Arg.(*form.Argument); ok && a.Role() == form.CoefficientRole {
			record(a).div = true
			return
		}
		collectCoefficientNeeds(v.Arg, needs)
	case *form.Grad:
		if a, ok := v.Arg.(*form.Argument); ok && a.Role() == form.CoefficientRole {
			record(a).grad = true
			return
		}
		collectCoefficientNeeds(v.Arg, needs)
	case *form.Sum:
		for _, t := range v.Terms {
			collectCoefficientNeeds(t, needs)
		}
	case *form.Product:
		for _, f := range v.Factors {
			collectCoefficientNeeds(f, needs)
		}
	case *form.Dot:
		collectCoefficientNeeds(v.A, needs)
		collectCoefficientNeeds(v.B, needs)
	}
}

// emitEntryBody generates the body of one @kernel function: an @outer
// loop over cells (or boundary facets), a zeroing @inner pass, and one
// @inner accumulation pass per integrand term.
func (em *emitter) emitEntryBody(group *termGroup) (string, error) {
	bilinear := em.trialSpace != nil
	ntest := em.testSpace.total
	ntrial := 0
	if bilinear {
		ntrial = em.trialSpace.total
	}

	var sb strings.Builder
	sb.WriteString("{\n")
	if em.onFacet {
		sb.WriteString("    for (int_t fi = 0; fi < Kf; ++fi; @outer) {\n")
	} else {
		sb.WriteString("    for (int_t e = 0; e < K; ++e; @outer) {\n")
	}

	// Zero the local tensor before accumulation.
	sb.WriteString(fmt.Sprintf("        for (int i = 0; i < %d; ++i; @inner) {\n", ntest))
	out := "e"
	if em.onFacet {
		out = "fi"
	}
	if bilinear {
		sb.WriteString(fmt.Sprintf("            for (int j = 0; j < %d; ++j) {\n", ntrial))
		sb.WriteString(fmt.Sprintf("                A[(%s * %d + i) * %d + j] = REAL_ZERO;\n", out, ntest, ntrial))
		sb.WriteString("            }\n")
	} else {
		sb.WriteString(fmt.Sprintf("            A[%s * %d + i] = REAL_ZERO;\n", out, ntest))
	}
	sb.WriteString("        }\n")

	for _, term := range group.terms {
		code, err := em.emitTerm(term)
		if err != nil {
			return "", err
		}
		sb.WriteString(code)
	}

	sb.WriteString("    }\n")
	sb.WriteString("}\n")
	return sb.String(), nil
}

// emitTerm generates one accumulation pass. The @inner loop runs over
// the full test axis with a guard restricting work to the term's test
// dof block, mirroring the cell-count guards used when strides exceed
// the data size.
func (em *emitter) emitTerm(term *form.Integral) (string, error) {
	info, err := em.analyzeTerm(term.Integrand)
	if err != nil {
		return "", err
	}

	ntest := em.testSpace.total
	ntrial := 0
	if info.hasTrial {
		ntrial = em.trialSpace.total
	}
	ts := info.testSlot

	ctx := &evalCtx{dof: map[form.Role]string{form.TestRole: "it", form.TrialRole: "ju"}}

	needs := make(map[string]*coeffNeed)
	collectCoefficientNeeds(term.Integrand, needs)
	hoist, err := em.emitHoists(needs)
	if err != nil {
		return "", err
	}

	integrand, err := em.scalar(term.Integrand, ctx)
	if err != nil {
		return "", fmt.Errorf("term %s: %w", term.Integrand, err)
	}

	out := "e"
	weight := fmt.Sprintf("%s_QW[q] * DETJ(e)", em.prefix)
	if em.onFacet {
		out = "fi"
		weight = fmt.Sprintf("%s_QW[q] * FSCALE(fi)", em.prefix)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("        // term: %s\n", term.Integrand))
	sb.WriteString(fmt.Sprintf("        for (int i = 0; i < %d; ++i; @inner) {\n", ntest))
	if em.onFacet {
		sb.WriteString("            const int_t e = fcell[fi];\n")
		sb.WriteString("            const int fl = (int)flocal[fi];\n")
	}
	guard := fmt.Sprintf("i < %d", ts.offset+ts.dofs)
	if ts.offset > 0 {
		guard = fmt.Sprintf("i >= %d && %s", ts.offset, guard)
	}
	sb.WriteString(fmt.Sprintf("            if (%s) {\n", guard))
	if ts.offset > 0 {
		sb.WriteString(fmt.Sprintf("                const int it = i - %d;\n", ts.offset))
	} else {
		sb.WriteString("                const int it = i;\n")
	}
	sb.WriteString(fmt.Sprintf("                for (int q = 0; q < %d; ++q) {\n", em.rule.NumPoints()))
	sb.WriteString(indentBlock(hoist, "                    "))
	sb.WriteString(fmt.Sprintf("                    const real_t wq = %s;\n", weight))
	if info.hasTrial {
		us := info.trialSlot
		sb.WriteString(fmt.Sprintf("                    for (int ju = 0; ju < %d; ++ju) {\n", us.dofs))
		sb.WriteString(fmt.Sprintf("                        A[(%s * %d + i) * %d + (ju + %d)] += wq * %s;\n",
			out, ntest, ntrial, us.offset, integrand))
		sb.WriteString("                    }\n")
	} else {
		sb.WriteString(fmt.Sprintf("                    A[%s * %d + i] += wq * %s;\n", out, ntest, integrand))
	}
	sb.WriteString("                }\n")
	sb.WriteString("            }\n")
	sb.WriteString("        }\n")
	return sb.String(), nil
}

func indentBlock(block, indent string) string {
	if block == "" {
		return ""
	}
	lines := strings.Split(strings.TrimRight(block, "\n"), "\n")
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(indent)
		sb.WriteString(l)
		sb.WriteString("\n")
	}
	return sb.String()
}

// emitHoists computes coefficient values at the current quadrature
// point into local variables, shared by the inner trial loop.
func (em *emitter) emitHoists(needs map[string]*coeffNeed) (string, error) {
	names := make([]string, 0, len(needs))
	for name := range needs {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, key := range names {
		n := needs[key]
		tab, err := em.tabulate(n.arg.Element())
		if err != nil {
			return "", err
		}
		nd := n.arg.Element().DofCount()
		idx := "d"
		if em.onFacet {
			idx = fmt.Sprintf("fl * %d + d", nd)
		}
		name := cIdent(key)
		total, off := nd, 0
		if p := n.arg.MixedParent(); p != nil {
			total = p.DofCount()
			off = p.Offset(n.arg.Slot())
		}
		wref := fmt.Sprintf("w_%s[e * %d + d]", cIdent(coeffBase(n.arg)), total)
		if off > 0 {
			wref = fmt.Sprintf("w_%s[e * %d + %d + d]", cIdent(coeffBase(n.arg)), total, off)
		}

		if n.value {
			switch len(tab.Values) {
			case 1:
				tbl := em.addTable("Bc_"+name, tab.Values[0])
				sb.WriteString(fmt.Sprintf("real_t c_%s = REAL_ZERO;\n", name))
				sb.WriteString(fmt.Sprintf("for (int d = 0; d < %d; ++d) {\n", nd))
				sb.WriteString(fmt.Sprintf("    c_%s += %s[q][%s] * %s;\n", name, tbl, idx, wref))
				sb.WriteString("}\n")
			case 2:
				tx := em.addTable("Bc_"+name+"_x", tab.Values[0])
				ty := em.addTable("Bc_"+name+"_y", tab.Values[1])
				sb.WriteString(fmt.Sprintf("real_t c_%s_rx = REAL_ZERO;\n", name))
				sb.WriteString(fmt.Sprintf("real_t c_%s_ry = REAL_ZERO;\n", name))
				sb.WriteString(fmt.Sprintf("for (int d = 0; d < %d; ++d) {\n", nd))
				sb.WriteString(fmt.Sprintf("    c_%s_rx += %s[q][%s] * %s;\n", name, tx, idx, wref))
				sb.WriteString(fmt.Sprintf("    c_%s_ry += %s[q][%s] * %s;\n", name, ty, idx, wref))
				sb.WriteString("}\n")
				if tab.HDiv {
					sb.WriteString(fmt.Sprintf("const real_t c_%s_x = SY(e) * c_%s_rx - RY(e) * c_%s_ry;\n", name, name, name))
					sb.WriteString(fmt.Sprintf("const real_t c_%s_y = RX(e) * c_%s_ry - SX(e) * c_%s_rx;\n", name, name, name))
				} else {
					sb.WriteString(fmt.Sprintf("const real_t c_%s_x = c_%s_rx;\n", name, name))
					sb.WriteString(fmt.Sprintf("const real_t c_%s_y = c_%s_ry;\n", name, name))
				}
			default:
				return "", fmt.Errorf("coefficient %s: unsupported component count %d", key, len(tab.Values))
			}
		}
		if n.div {
			if !tab.HDiv {
				return "", fmt.Errorf("coefficient %s: divergence requires an H(div) element", key)
			}
			tbl := em.addTable("Dc_"+name, tab.Div)
			sb.WriteString(fmt.Sprintf("real_t c_%s_rdiv = REAL_ZERO;\n", name))
			sb.WriteString(fmt.Sprintf("for (int d = 0; d < %d; ++d) {\n", nd))
			sb.WriteString(fmt.Sprintf("    c_%s_rdiv += %s[q][%s] * %s;\n", name, tbl, idx, wref))
			sb.WriteString("}\n")
			sb.WriteString(fmt.Sprintf("const real_t c_%s_div = c_%s_rdiv / DETJ(e);\n", name, name))
		}
		if n.grad {
			if len(tab.GradR) != 1 {
				return "", fmt.Errorf("coefficient %s: gradient requires a scalar nodal element", key)
			}
			tr := em.addTable("Gc_"+name+"_r", tab.GradR[0])
			ts := em.addTable("Gc_"+name+"_s", tab.GradS[0])
			sb.WriteString(fmt.Sprintf("real_t c_%s_dr = REAL_ZERO;\n", name))
			sb.WriteString(fmt.Sprintf("real_t c_%s_ds = REAL_ZERO;\n", name))
			sb.WriteString(fmt.Sprintf("for (int d = 0; d < %d; ++d) {\n", nd))
			sb.WriteString(fmt.Sprintf("    c_%s_dr += %s[q][%s] * %s;\n", name, tr, idx, wref))
			sb.WriteString(fmt.Sprintf("    c_%s_ds += %s[q][%s] * %s;\n", name, ts, idx, wref))
			sb.WriteString("}\n")
			sb.WriteString(fmt.Sprintf("const real_t c_%s_gx = RX(e) * c_%s_dr + SX(e) * c_%s_ds;\n", name, name, name))
			sb.WriteString(fmt.Sprintf("const real_t c_%s_gy = RY(e) * c_%s_dr + SY(e) * c_%s_ds;\n", name, name, name))
		}
	}
	return sb.String(), nil
}

// coeffBase is the dof-array identity of a coefficient: sub-handles of
// one mixed coefficient share their parent's array.
func coeffBase(a *form.Argument) string {
	name := a.Name()
	if a.MixedParent() == nil {
		return name
	}
	if i := strings.IndexByte(name, '['); i >= 0 {
		return name[:i]
	}
	return name
}

// cIdent maps a coefficient name to a C identifier fragment.
func cIdent(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		case r == ']':
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// evalCtx maps argument roles to the dof index variable of the
// surrounding loops.
type evalCtx struct {
	dof map[form.Role]string
}

// dofIndex is the table column expression for an argument reference;
// facet tables are stacked facet-major.
func (em *emitter) dofIndex(arg *form.Argument, ctx *evalCtx) string {
	base := ctx.dof[arg.Role()]
	if em.onFacet {
		return fmt.Sprintf("fl * %d + %s", arg.Element().DofCount(), base)
	}
	return base
}

func argTablePrefix(arg *form.Argument) string {
	slot := arg.Slot()
	if slot < 0 {
		slot = 0
	}
	tag := "t"
	if arg.Role() == form.TrialRole {
		tag = "u"
	}
	return fmt.Sprintf("%s%d", tag, slot)
}

// scalar emits a C expression for a rank-0 node.
func (em *emitter) scalar(e form.Expr, ctx *evalCtx) (string, error) {
	switch v := e.(type) {
	case *form.Constant:
		return em.gen.formatFloat(v.Value), nil

	case *form.Argument:
		if v.Rank() != 0 {
			return "", fmt.Errorf("%s: rank %d value in scalar position", v, v.Rank())
		}
		if v.Role() == form.CoefficientRole {
			return "c_" + cIdent(v.Name()), nil
		}
		tab, err := em.tabulate(v.Element())
		if err != nil {
			return "", err
		}
		tbl := em.addTable("B"+argTablePrefix(v), tab.Values[0])
		return fmt.Sprintf("%s[q][%s]", tbl, em.dofIndex(v, ctx)), nil

	case *form.Div:
		a, ok := v.Arg.(*form.Argument)
		if !ok {
			return "", fmt.Errorf("div of %s: divergence is only supported on function arguments", v.Arg)
		}
		if a.Role() == form.CoefficientRole {
			return fmt.Sprintf("c_%s_div", cIdent(a.Name())), nil
		}
		tab, err := em.tabulate(a.Element())
		if err != nil {
			return "", err
		}
		if !tab.HDiv {
			return "", fmt.Errorf("div(%s): divergence requires an H(div) element", a)
		}
		tbl := em.addTable("D"+argTablePrefix(a), tab.Div)
		return fmt.Sprintf("(%s[q][%s] / DETJ(e))", tbl, em.dofIndex(a, ctx)), nil

	case *form.Dot:
		ax, err := em.vector(v.A, ctx)
		if err != nil {
			return "", err
		}
		bx, err := em.vector(v.B, ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s * %s + %s * %s)", ax[0], bx[0], ax[1], bx[1]), nil

	case *form.Product:
		parts := make([]string, len(v.Factors))
		for i, f := range v.Factors {
			s, err := em.scalar(f, ctx)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "(" + strings.Join(parts, " * ") + ")", nil

	case *form.Sum:
		parts := make([]string, len(v.Terms))
		for i, t := range v.Terms {
			s, err := em.scalar(t, ctx)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "(" + strings.Join(parts, " + ") + ")", nil
	}
	return "", fmt.Errorf("%s: no scalar translation for %T", e, e)
}

// vector emits the two physical components of a rank-1 node. H(div)
// arguments transform by the contravariant Piola map; nodal vector
// arguments map componentwise.
func (em *emitter) vector(e form.Expr, ctx *evalCtx) ([2]string, error) {
	var none [2]string
	switch v := e.(type) {
	case *form.Argument:
		if v.Rank() != 1 {
			return none, fmt.Errorf("%s: rank %d value in vector position", v, v.Rank())
		}
		if v.Role() == form.CoefficientRole {
			id := cIdent(v.Name())
			return [2]string{"c_" + id + "_x", "c_" + id + "_y"}, nil
		}
		tab, err := em.tabulate(v.Element())
		if err != nil {
			return none, err
		}
		if len(tab.Values) != 2 {
			return none, fmt.Errorf("%s: expected 2 value components, got %d", v, len(tab.Values))
		}
		idx := em.dofIndex(v, ctx)
		tx := em.addTable("B"+argTablePrefix(v)+"_x", tab.Values[0])
		ty := em.addTable("B"+argTablePrefix(v)+"_y", tab.Values[1])
		rx := fmt.Sprintf("%s[q][%s]", tx, idx)
		ry := fmt.Sprintf("%s[q][%s]", ty, idx)
		if tab.HDiv {
			return [2]string{
				fmt.Sprintf("(SY(e) * %s - RY(e) * %s)", rx, ry),
				fmt.Sprintf("(RX(e) * %s - SX(e) * %s)", ry, rx),
			}, nil
		}
		return [2]string{rx, ry}, nil

	case *form.Grad:
		a, ok := v.Arg.(*form.Argument)
		if !ok {
			return none, fmt.Errorf("grad of %s: gradient is only supported on function arguments", v.Arg)
		}
		if a.Rank() != 0 {
			return none, fmt.Errorf("grad(%s): only scalar gradients are supported", a)
		}
		if a.Role() == form.CoefficientRole {
			id := cIdent(a.Name())
			return [2]string{"c_" + id + "_gx", "c_" + id + "_gy"}, nil
		}
		tab, err := em.tabulate(a.Element())
		if err != nil {
			return none, err
		}
		if len(tab.GradR) != 1 {
			return none, fmt.Errorf("grad(%s): no gradient tables for this element", a)
		}
		idx := em.dofIndex(a, ctx)
		tr := em.addTable("G"+argTablePrefix(a)+"r", tab.GradR[0])
		ts := em.addTable("G"+argTablePrefix(a)+"s", tab.GradS[0])
		dr := fmt.Sprintf("%s[q][%s]", tr, idx)
		ds := fmt.Sprintf("%s[q][%s]", ts, idx)
		return [2]string{
			fmt.Sprintf("(RX(e) * %s + SX(e) * %s)", dr, ds),
			fmt.Sprintf("(RY(e) * %s + SY(e) * %s)", dr, ds),
		}, nil

	case *form.FacetNormal:
		if !em.onFacet {
			return none, fmt.Errorf("facet normal in a cell integral")
		}
		return [2]string{"FNX(fi)", "FNY(fi)"}, nil

	case *form.Product:
		// At most one vector factor; the rest scale it.
		var vec *[2]string
		scale := make([]string, 0, len(v.Factors))
		for _, f := range v.Factors {
			if f.Rank() == 0 {
				s, err := em.scalar(f, ctx)
				if err != nil {
					return none, err
				}
				scale = append(scale, s)
				continue
			}
			if vec != nil {
				return none, fmt.Errorf("%s: more than one vector factor", v)
			}
			c, err := em.vector(f, ctx)
			if err != nil {
				return none, err
			}
			vec = &c
		}
		if vec == nil {
			return none, fmt.Errorf("%s: no vector factor in vector position", v)
		}
		if len(scale) == 0 {
			return *vec, nil
		}
		s := strings.Join(scale, " * ")
		return [2]string{
			fmt.Sprintf("(%s * %s)", s, vec[0]),
			fmt.Sprintf("(%s * %s)", s, vec[1]),
		}, nil

	case *form.Sum:
		xs := make([]string, len(v.Terms))
		ys := make([]string, len(v.Terms))
		for i, t := range v.Terms {
			c, err := em.vector(t, ctx)
			if err != nil {
				return none, err
			}
			xs[i] = c[0]
			ys[i] = c[1]
		}
		return [2]string{
			"(" + strings.Join(xs, " + ") + ")",
			"(" + strings.Join(ys, " + ") + ")",
		}, nil
	}
	return none, fmt.Errorf("%s: no vector translation for %T", e, e)
}
