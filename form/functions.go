package form

import (
	"fmt"

	"github.com/varform/formc/element"
)

// NewTestFunction creates a test-function handle over el with the given
// argument index. Distinct calls produce distinct argument identities.
func NewTestFunction(el element.Element, index int) *Argument {
	return newArgument(fmt.Sprintf("v%d", index), el, TestRole, index)
}

// NewTrialFunction creates a trial-function handle over el.
func NewTrialFunction(el element.Element, index int) *Argument {
	return newArgument(fmt.Sprintf("u%d", index), el, TrialRole, index)
}

// NewCoefficient creates a named coefficient-function handle over el.
func NewCoefficient(name string, el element.Element) *Argument {
	return newArgument(name, el, CoefficientRole, 0)
}

func newArgument(name string, el element.Element, role Role, index int) *Argument {
	return &Argument{
		name:  name,
		el:    el,
		role:  role,
		index: index,
		id:    argumentIDs.Add(1),
		slot:  -1,
	}
}

// TestFunctions declares one test function over the mixed element and
// unpacks it into per-slot sub-handles in declaration order. The
// sub-handles share one argument identity: they are components of a
// single function, not separate arguments.
func TestFunctions(m *element.MixedElement, index int) []*Argument {
	return unpack(m, TestRole, index, fmt.Sprintf("v%d", index))
}

// TrialFunctions is the trial-role counterpart of TestFunctions.
func TrialFunctions(m *element.MixedElement, index int) []*Argument {
	return unpack(m, TrialRole, index, fmt.Sprintf("u%d", index))
}

// Functions declares a coefficient function over the mixed element and
// unpacks it into per-slot sub-handles.
func Functions(name string, m *element.MixedElement) []*Argument {
	return unpack(m, CoefficientRole, 0, name)
}

func unpack(m *element.MixedElement, role Role, index int, name string) []*Argument {
	id := argumentIDs.Add(1)
	slots := m.Unpack()
	args := make([]*Argument, len(slots))
	for i, slot := range slots {
		args[i] = &Argument{
			name:   fmt.Sprintf("%s[%d]", name, i),
			el:     slot.Element(),
			role:   role,
			index:  index,
			id:     id,
			slot:   slot.Index,
			parent: m,
		}
	}
	return args
}

// NewFacetNormal returns the outward unit normal terminal for cells of
// the given shape.
func NewFacetNormal(shape element.CellShape) *FacetNormal {
	return &FacetNormal{Shape: shape}
}
