package form

import "fmt"

// Add builds the sum a + b. Operand ranks must agree.
func Add(a, b Expr) (Expr, error) {
	if a.Rank() != b.Rank() {
		return nil, fmt.Errorf("%w: cannot add rank %d to rank %d (%s + %s)",
			ErrRankMismatch, a.Rank(), b.Rank(), a, b)
	}
	return &Sum{Terms: []Expr{a, b}, rank: a.Rank()}, nil
}

// Sub builds the difference a - b as a + (-1)*b.
func Sub(a, b Expr) (Expr, error) {
	nb, err := Multiply(&Constant{Value: -1}, b)
	if err != nil {
		return nil, err
	}
	return Add(a, nb)
}

// Negate builds -a.
func Negate(a Expr) Expr {
	neg, err := Multiply(&Constant{Value: -1}, a)
	if err != nil {
		// A constant factor is always rank-compatible
		panic(err)
	}
	return neg
}

// Multiply builds the product a*b. At least one operand must be scalar;
// contraction of equal-rank operands goes through Dot instead.
func Multiply(a, b Expr) (Expr, error) {
	if a.Rank() != 0 && b.Rank() != 0 {
		return nil, fmt.Errorf("%w: product needs a scalar operand, got ranks %d and %d (use dot for %s*%s)",
			ErrRankMismatch, a.Rank(), b.Rank(), a, b)
	}
	rank := a.Rank()
	if rank == 0 {
		rank = b.Rank()
	}
	return &Product{Factors: []Expr{a, b}, rank: rank}, nil
}

// DotProduct builds the full contraction dot(a, b) of two equal-rank
// operands of rank at least 1.
func DotProduct(a, b Expr) (Expr, error) {
	if a.Rank() < 1 || a.Rank() != b.Rank() {
		return nil, fmt.Errorf("%w: dot requires equal ranks >= 1, got %d and %d (dot(%s, %s))",
			ErrRankMismatch, a.Rank(), b.Rank(), a, b)
	}
	return &Dot{A: a, B: b}, nil
}

// Gradient builds grad(a), raising rank by one. Ranks above 2 have no
// representation here.
func Gradient(a Expr) (Expr, error) {
	if a.Rank() >= 2 {
		return nil, fmt.Errorf("%w: grad of rank-%d operand exceeds tensor rank 2 (grad(%s))",
			ErrRankMismatch, a.Rank(), a)
	}
	return &Grad{Arg: a}, nil
}

// Divergence builds div(a), lowering rank by one; a must have rank
// at least 1.
func Divergence(a Expr) (Expr, error) {
	if a.Rank() < 1 {
		return nil, fmt.Errorf("%w: div requires rank >= 1, got %d (div(%s))",
			ErrRankMismatch, a.Rank(), a)
	}
	return &Div{Arg: a}, nil
}
