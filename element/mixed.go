package element

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyComposition is returned by Compose when given no sub-elements.
var ErrEmptyComposition = errors.New("mixed element requires at least one sub-element")

// MixedElement is an ordered composition of sub-elements sharing one
// cell. The declaration order is significant: it fixes the slot index
// of each sub-element and the contiguous dof range assigned to it in
// the local block layout.
type MixedElement struct {
	subs    []Element
	offsets []int // offsets[i] is the first local dof of slot i
	total   int
}

// Compose builds a mixed element from sub-elements in declaration
// order, prefix-summing their dof counts into slot offsets. All
// sub-elements must live on the same cell shape.
func Compose(subs ...Element) (*MixedElement, error) {
	if len(subs) == 0 {
		return nil, ErrEmptyComposition
	}
	shape := subs[0].Shape()
	offsets := make([]int, len(subs))
	total := 0
	for i, sub := range subs {
		if sub.Shape() != shape {
			return nil, fmt.Errorf("mixed element: sub-element %d is on %s, expected %s",
				i, sub.Shape(), shape)
		}
		offsets[i] = total
		total += sub.DofCount()
	}
	owned := make([]Element, len(subs))
	copy(owned, subs)
	return &MixedElement{subs: owned, offsets: offsets, total: total}, nil
}

func (m *MixedElement) Name() string {
	names := make([]string, len(m.subs))
	for i, sub := range m.subs {
		names[i] = sub.Name()
	}
	return "Mixed[" + strings.Join(names, " x ") + "]"
}

func (m *MixedElement) Shape() CellShape { return m.subs[0].Shape() }
func (m *MixedElement) DofCount() int    { return m.total }
func (m *MixedElement) NumSlots() int    { return len(m.subs) }

// Degree returns the maximum sub-element degree, the bound relevant for
// quadrature selection on the composed space.
func (m *MixedElement) Degree() int {
	deg := 0
	for _, sub := range m.subs {
		if d := sub.Degree(); d > deg {
			deg = d
		}
	}
	return deg
}

// ValueRank of a mixed element is not a single number; by convention it
// reports 0 and callers inspect the slots instead.
func (m *MixedElement) ValueRank() int { return 0 }

// Sub returns the sub-element at the given slot.
func (m *MixedElement) Sub(slot int) Element { return m.subs[slot] }

// Offset returns the first local dof of the given slot.
func (m *MixedElement) Offset(slot int) int { return m.offsets[slot] }

// Slot is a lightweight non-owning handle to one sub-element of a
// mixed element: the parent reference plus the slot index. It carries
// no storage of its own.
type Slot struct {
	Parent *MixedElement
	Index  int
}

// Element returns the sub-element this slot refers to.
func (s Slot) Element() Element { return s.Parent.Sub(s.Index) }

// Offset returns the first local dof of this slot in the parent layout.
func (s Slot) Offset() int { return s.Parent.Offset(s.Index) }

// Unpack returns one slot handle per sub-element, in declaration order.
func (m *MixedElement) Unpack() []Slot {
	slots := make([]Slot, len(m.subs))
	for i := range m.subs {
		slots[i] = Slot{Parent: m, Index: i}
	}
	return slots
}
