package parse

import (
	"github.com/varform/formc/element"
	"github.com/varform/formc/form"
)

// call dispatches the fixed constructor and operator vocabulary.
func (p *parser) call(name token, args []any) (any, error) {
	switch name.value {
	case "FiniteElement":
		el, err := p.finiteElement(name, args)
		if err != nil {
			return nil, err
		}
		return el, nil

	case "VectorElement":
		return p.vectorElement(name, args)

	case "MixedElement":
		if len(args) == 0 {
			return nil, p.errf(name, "MixedElement needs at least one element")
		}
		subs := make([]element.Element, len(args))
		for i, a := range args {
			el, ok := asElement(a)
			if !ok {
				return nil, p.errf(name, "MixedElement argument %d is not an element", i+1)
			}
			subs[i] = el
		}
		m, err := element.Compose(subs...)
		if err != nil {
			return nil, p.wrap(name, err)
		}
		return m, nil

	case "TestFunction", "TrialFunction":
		el, index, err := p.functionArgs(name, args)
		if err != nil {
			return nil, err
		}
		if name.value == "TestFunction" {
			return form.NewTestFunction(el, index), nil
		}
		return form.NewTrialFunction(el, index), nil

	case "TestFunctions", "TrialFunctions":
		el, index, err := p.functionArgs(name, args)
		if err != nil {
			return nil, err
		}
		m, ok := el.(*element.MixedElement)
		if !ok {
			return nil, p.errf(name, "%s needs a mixed element", name.value)
		}
		var handles []*form.Argument
		if name.value == "TestFunctions" {
			handles = form.TestFunctions(m, index)
		} else {
			handles = form.TrialFunctions(m, index)
		}
		tup := make(tupleValue, len(handles))
		for i, h := range handles {
			tup[i] = h
		}
		return tup, nil

	case "Functions":
		if len(args) != 1 {
			return nil, p.errf(name, "Functions takes one mixed element")
		}
		m, ok := args[0].(*element.MixedElement)
		if !ok {
			return nil, p.errf(name, "Functions needs a mixed element")
		}
		handles := form.Functions(p.pendingName, m)
		tup := make(tupleValue, len(handles))
		for i, h := range handles {
			tup[i] = h
		}
		return tup, nil

	case "Coefficient":
		if len(args) != 1 {
			return nil, p.errf(name, "Coefficient takes one element")
		}
		el, ok := asElement(args[0])
		if !ok {
			return nil, p.errf(name, "Coefficient needs an element")
		}
		return form.NewCoefficient(p.pendingName, el), nil

	case "FacetNormal":
		switch len(args) {
		case 0:
			if !p.shapeSet {
				return nil, p.errf(name, "FacetNormal() before any element declaration; pass a cell shape")
			}
			return form.NewFacetNormal(p.shape), nil
		case 1:
			s, ok := args[0].(string)
			if !ok {
				return nil, p.errf(name, "FacetNormal shape must be a string")
			}
			shape, err := element.ShapeByName(s)
			if err != nil {
				return nil, p.wrap(name, err)
			}
			return form.NewFacetNormal(shape), nil
		}
		return nil, p.errf(name, "FacetNormal takes at most one cell shape")

	case "dot", "inner":
		if len(args) != 2 {
			return nil, p.errf(name, "%s takes two expressions", name.value)
		}
		a, ok := asExpr(args[0])
		if !ok {
			return nil, p.errf(name, "%s: first argument is not an expression", name.value)
		}
		b, ok := asExpr(args[1])
		if !ok {
			return nil, p.errf(name, "%s: second argument is not an expression", name.value)
		}
		res, err := form.DotProduct(a, b)
		if err != nil {
			return nil, p.wrap(name, err)
		}
		return res, nil

	case "grad", "div":
		if len(args) != 1 {
			return nil, p.errf(name, "%s takes one expression", name.value)
		}
		a, ok := asExpr(args[0])
		if !ok {
			return nil, p.errf(name, "%s: argument is not an expression", name.value)
		}
		var (
			res form.Expr
			err error
		)
		if name.value == "grad" {
			res, err = form.Gradient(a)
		} else {
			res, err = form.Divergence(a)
		}
		if err != nil {
			return nil, p.wrap(name, err)
		}
		return res, nil

	case "dx", "ds", "dS":
		m, _ := form.MeasureByName(name.value)
		if len(args) == 0 {
			return measureValue{m: m, subdomain: -1}, nil
		}
		if len(args) != 1 {
			return nil, p.errf(name, "%s takes at most one subdomain id", name.value)
		}
		id, ok := asInt(args[0])
		if !ok || id < 0 {
			return nil, p.errf(name, "%s subdomain id must be a non-negative integer", name.value)
		}
		return measureValue{m: m, subdomain: id}, nil
	}
	return nil, p.errf(name, "unknown function %q", name.value)
}

func (p *parser) finiteElement(name token, args []any) (*element.FiniteElement, error) {
	if len(args) != 3 {
		return nil, p.errf(name, "FiniteElement takes (family, cell_shape, degree)")
	}
	famName, ok := args[0].(string)
	if !ok {
		return nil, p.errf(name, "FiniteElement family must be a string")
	}
	shapeName, ok := args[1].(string)
	if !ok {
		return nil, p.errf(name, "FiniteElement cell shape must be a string")
	}
	degree, ok := asInt(args[2])
	if !ok {
		return nil, p.errf(name, "FiniteElement degree must be an integer")
	}
	fam, err := element.FamilyByName(famName)
	if err != nil {
		return nil, p.wrap(name, err)
	}
	shape, err := element.ShapeByName(shapeName)
	if err != nil {
		return nil, p.wrap(name, err)
	}
	el, err := p.reg.Construct(fam, shape, degree)
	if err != nil {
		return nil, p.wrap(name, err)
	}
	if !p.shapeSet {
		p.shape = shape
		p.shapeSet = true
	}
	return el, nil
}

// vectorElement accepts either (family, cell_shape, degree[, dim]) or
// (scalar_element[, dim]).
func (p *parser) vectorElement(name token, args []any) (any, error) {
	var (
		base *element.FiniteElement
		dim  int
		rest []any
	)
	if len(args) >= 3 {
		el, err := p.finiteElement(name, args[:3])
		if err != nil {
			return nil, err
		}
		base = el
		rest = args[3:]
	} else if len(args) >= 1 {
		el, ok := args[0].(*element.FiniteElement)
		if !ok {
			return nil, p.errf(name, "VectorElement needs a scalar element or (family, cell_shape, degree)")
		}
		base = el
		rest = args[1:]
	} else {
		return nil, p.errf(name, "VectorElement needs arguments")
	}
	switch len(rest) {
	case 0:
	case 1:
		d, ok := asInt(rest[0])
		if !ok {
			return nil, p.errf(name, "VectorElement dimension must be an integer")
		}
		dim = d
	default:
		return nil, p.errf(name, "too many arguments to VectorElement")
	}
	vec, err := element.NewVectorElement(base, dim)
	if err != nil {
		return nil, p.wrap(name, err)
	}
	return vec, nil
}

func (p *parser) functionArgs(name token, args []any) (element.Element, int, error) {
	if len(args) == 0 || len(args) > 2 {
		return nil, 0, p.errf(name, "%s takes an element and an optional argument index", name.value)
	}
	el, ok := asElement(args[0])
	if !ok {
		return nil, 0, p.errf(name, "%s needs an element", name.value)
	}
	index := 0
	if len(args) == 2 {
		i, ok := asInt(args[1])
		if !ok || i < 0 {
			return nil, 0, p.errf(name, "%s argument index must be a non-negative integer", name.value)
		}
		index = i
	}
	return el, index, nil
}
