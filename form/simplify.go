package form

import "fmt"

// Simplify normalizes an expression tree: it folds numeric constants,
// flattens nested sums and products, cancels additive zeros and
// multiplicative ones, and distributes sums over products and over
// integral measures. The input is never mutated; the result is a new
// tree. Simplify is idempotent and rank-preserving.
func Simplify(e Expr) Expr {
	out := simplify(e)
	if out.Rank() != e.Rank() {
		panic(fmt.Sprintf("simplify changed rank of %s: %d -> %d", e, e.Rank(), out.Rank()))
	}
	return out
}

// SimplifyForm simplifies every term of a form, splitting terms whose
// integrand simplifies to a sum and dropping terms that vanish.
func SimplifyForm(f *Form) *Form {
	out := &Form{Name: f.Name}
	for _, term := range f.Terms {
		for _, t := range splitIntegral(simplify(term)) {
			if c, ok := t.Integrand.(*Constant); ok && c.Value == 0 {
				continue
			}
			out.Terms = append(out.Terms, t)
		}
	}
	return out
}

func splitIntegral(e Expr) []*Integral {
	switch n := e.(type) {
	case *Integral:
		return []*Integral{n}
	case *Sum:
		var out []*Integral
		for _, t := range n.Terms {
			out = append(out, splitIntegral(t)...)
		}
		return out
	}
	panic(fmt.Sprintf("form term simplified to non-integral %s", e))
}

func simplify(e Expr) Expr {
	switch n := e.(type) {
	case *Sum:
		return simplifySum(n)
	case *Product:
		return simplifyProduct(n)
	case *Dot:
		return &Dot{A: simplify(n.A), B: simplify(n.B)}
	case *Grad:
		return &Grad{Arg: simplify(n.Arg)}
	case *Div:
		return &Div{Arg: simplify(n.Arg)}
	case *Integral:
		integrand := simplify(n.Integrand)
		if s, ok := integrand.(*Sum); ok {
			// Distribute the measure over the sum
			terms := make([]Expr, len(s.Terms))
			for i, t := range s.Terms {
				terms[i] = &Integral{Integrand: t, M: n.M, Subdomain: n.Subdomain}
			}
			return &Sum{Terms: terms, rank: 0}
		}
		return &Integral{Integrand: integrand, M: n.M, Subdomain: n.Subdomain}
	}
	return e
}

func simplifySum(s *Sum) Expr {
	var terms []Expr
	constant := 0.0
	for _, t := range s.Terms {
		st := simplify(t)
		switch v := st.(type) {
		case *Constant:
			constant += v.Value
		case *Sum:
			for _, inner := range v.Terms {
				if c, ok := inner.(*Constant); ok {
					constant += c.Value
				} else {
					terms = append(terms, inner)
				}
			}
		default:
			terms = append(terms, st)
		}
	}

	if len(terms) == 0 {
		return &Constant{Value: constant}
	}
	if constant != 0 {
		terms = append(terms, &Constant{Value: constant})
	}
	if len(terms) == 1 {
		return terms[0]
	}
	return &Sum{Terms: terms, rank: s.rank}
}

func simplifyProduct(p *Product) Expr {
	var flat []Expr
	coeff := 1.0
	for _, f := range p.Factors {
		sf := simplify(f)
		switch v := sf.(type) {
		case *Constant:
			coeff *= v.Value
		case *Product:
			for _, g := range v.Factors {
				if c, ok := g.(*Constant); ok {
					coeff *= c.Value
				} else {
					flat = append(flat, g)
				}
			}
		default:
			flat = append(flat, sf)
		}
	}

	// Distribute over the first sum factor
	for i, f := range flat {
		if s, ok := f.(*Sum); ok {
			terms := make([]Expr, len(s.Terms))
			for j, t := range s.Terms {
				factors := make([]Expr, 0, len(flat)+1)
				if coeff != 1 {
					factors = append(factors, &Constant{Value: coeff})
				}
				factors = append(factors, flat[:i]...)
				factors = append(factors, t)
				factors = append(factors, flat[i+1:]...)
				terms[j] = simplify(productOf(factors))
			}
			return simplify(&Sum{Terms: terms, rank: p.rank})
		}
	}

	// A scalar constant times a single integral folds into the integrand
	if len(flat) == 1 {
		if integral, ok := flat[0].(*Integral); ok {
			integrand := simplify(productOf([]Expr{&Constant{Value: coeff}, integral.Integrand}))
			return &Integral{Integrand: integrand, M: integral.M, Subdomain: integral.Subdomain}
		}
	}

	switch {
	case len(flat) == 0:
		return &Constant{Value: coeff}
	case coeff == 0 && p.rank == 0:
		return &Constant{Value: 0}
	case coeff == 0:
		// Zero times a non-scalar keeps the factor to preserve rank
		return &Product{Factors: append([]Expr{&Constant{Value: 0}}, flat...), rank: p.rank}
	case coeff == 1 && len(flat) == 1:
		return flat[0]
	case coeff == 1:
		return &Product{Factors: flat, rank: p.rank}
	}
	return &Product{Factors: append([]Expr{&Constant{Value: coeff}}, flat...), rank: p.rank}
}

func productOf(factors []Expr) *Product {
	rank := 0
	for _, f := range factors {
		if r := f.Rank(); r > rank {
			rank = r
		}
	}
	return &Product{Factors: factors, rank: rank}
}
