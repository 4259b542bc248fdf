package form

import "errors"

var (
	// ErrRankMismatch is returned when operand tensor ranks are
	// incompatible for an operator.
	ErrRankMismatch = errors.New("operand rank mismatch")

	// ErrUnmeasuredIntegrand is returned when a form term is not
	// wrapped in an integration measure.
	ErrUnmeasuredIntegrand = errors.New("form term lacks an integration measure")

	// ErrArityConflict is returned when two distinct function objects
	// claim the same (role, argument index) slot of a form.
	ErrArityConflict = errors.New("conflicting argument slots")

	// ErrNonBilinearForm is returned when a binding expecting a
	// bilinear form receives a form of arity != 2.
	ErrNonBilinearForm = errors.New("form is not bilinear")

	// ErrNonLinearForm is returned when a binding expecting a linear
	// form receives a form of arity != 1.
	ErrNonLinearForm = errors.New("form is not linear")
)
