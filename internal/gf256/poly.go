package gf256

import (
	"errors"
	"fmt"
	"strings"
)

// Poly is a polynomial over a Field. Coefficients run from the highest degree
// term to the constant term, with no leading zeros except for the zero
// polynomial itself.
type Poly struct {
	field        *Field
	coefficients []int
}

// NewPoly builds a polynomial from coefficients, highest degree first, and
// strips leading zeros. It panics on an empty slice.
func NewPoly(field *Field, coefficients []int) *Poly {
	if len(coefficients) == 0 {
		panic("gf256: polynomial needs at least one coefficient")
	}
	if len(coefficients) > 1 && coefficients[0] == 0 {
		firstNonZero := 1
		for firstNonZero < len(coefficients) && coefficients[firstNonZero] == 0 {
			firstNonZero++
		}
		if firstNonZero == len(coefficients) {
			return field.zero
		}
		coefficients = append([]int(nil), coefficients[firstNonZero:]...)
	}
	return &Poly{field: field, coefficients: coefficients}
}

// Field returns the field the polynomial is defined over.
func (p *Poly) Field() *Field { return p.field }

// Coefficients returns a copy of the coefficients, highest degree first.
func (p *Poly) Coefficients() []int { return append([]int(nil), p.coefficients...) }

// Degree returns the degree of the polynomial.
func (p *Poly) Degree() int { return len(p.coefficients) - 1 }

// IsZero reports whether this is the zero polynomial.
func (p *Poly) IsZero() bool { return p.coefficients[0] == 0 }

// Coefficient returns the coefficient of x^degree.
func (p *Poly) Coefficient(degree int) int {
	return p.coefficients[len(p.coefficients)-1-degree]
}

// EvaluateAt evaluates the polynomial at a using Horner's method.
func (p *Poly) EvaluateAt(a int) int {
	if a == 0 {
		return p.Coefficient(0)
	}
	if a == 1 {
		result := 0
		for _, c := range p.coefficients {
			result = AddOrSubtract(result, c)
		}
		return result
	}
	result := p.coefficients[0]
	for _, c := range p.coefficients[1:] {
		result = AddOrSubtract(p.field.Multiply(a, result), c)
	}
	return result
}

// Add returns p + other, which is also p - other.
func (p *Poly) Add(other *Poly) *Poly {
	p.mustShareField(other)
	if p.IsZero() {
		return other
	}
	if other.IsZero() {
		return p
	}
	smaller, larger := p.coefficients, other.coefficients
	if len(smaller) > len(larger) {
		smaller, larger = larger, smaller
	}
	sum := make([]int, len(larger))
	lengthDiff := len(larger) - len(smaller)
	copy(sum, larger[:lengthDiff])
	for i := lengthDiff; i < len(larger); i++ {
		sum[i] = AddOrSubtract(smaller[i-lengthDiff], larger[i])
	}
	return NewPoly(p.field, sum)
}

// Multiply returns p * other.
func (p *Poly) Multiply(other *Poly) *Poly {
	p.mustShareField(other)
	if p.IsZero() || other.IsZero() {
		return p.field.zero
	}
	a, b := p.coefficients, other.coefficients
	product := make([]int, len(a)+len(b)-1)
	for i, ac := range a {
		for j, bc := range b {
			product[i+j] = AddOrSubtract(product[i+j], p.field.Multiply(ac, bc))
		}
	}
	return NewPoly(p.field, product)
}

// MultiplyScalar returns scalar * p.
func (p *Poly) MultiplyScalar(scalar int) *Poly {
	switch scalar {
	case 0:
		return p.field.zero
	case 1:
		return p
	}
	product := make([]int, len(p.coefficients))
	for i, c := range p.coefficients {
		product[i] = p.field.Multiply(c, scalar)
	}
	return NewPoly(p.field, product)
}

// MultiplyByMonomial returns p * coefficient * x^degree.
func (p *Poly) MultiplyByMonomial(degree, coefficient int) *Poly {
	if degree < 0 {
		panic(fmt.Sprintf("gf256: negative monomial degree %d", degree))
	}
	if coefficient == 0 {
		return p.field.zero
	}
	product := make([]int, len(p.coefficients)+degree)
	for i, c := range p.coefficients {
		product[i] = p.field.Multiply(c, coefficient)
	}
	return NewPoly(p.field, product)
}

// Divide returns the quotient and remainder of p / other.
func (p *Poly) Divide(other *Poly) (quotient, remainder *Poly, err error) {
	p.mustShareField(other)
	if other.IsZero() {
		return nil, nil, errors.New("gf256: division by zero polynomial")
	}
	quotient = p.field.zero
	remainder = p
	denominatorLeadingTerm := other.Coefficient(other.Degree())
	inverseDenominatorLeadingTerm, err := p.field.Inverse(denominatorLeadingTerm)
	if err != nil {
		return nil, nil, err
	}
	for remainder.Degree() >= other.Degree() && !remainder.IsZero() {
		degreeDifference := remainder.Degree() - other.Degree()
		scale := p.field.Multiply(remainder.Coefficient(remainder.Degree()), inverseDenominatorLeadingTerm)
		term := other.MultiplyByMonomial(degreeDifference, scale)
		quotient = quotient.Add(p.field.BuildMonomial(degreeDifference, scale))
		remainder = remainder.Add(term)
	}
	return quotient, remainder, nil
}

func (p *Poly) mustShareField(other *Poly) {
	if p.field != other.field {
		panic("gf256: polynomials are over different fields")
	}
}

// String renders the polynomial with a^n exponent notation for coefficients.
func (p *Poly) String() string {
	if p.IsZero() {
		return "0"
	}
	var sb strings.Builder
	for degree := p.Degree(); degree >= 0; degree-- {
		c := p.Coefficient(degree)
		if c == 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(" + ")
		}
		if degree == 0 || c != 1 {
			if l, _ := p.field.Log(c); l == 0 {
				sb.WriteString("1")
			} else {
				fmt.Fprintf(&sb, "a^%d", l)
			}
		}
		switch degree {
		case 0:
		case 1:
			sb.WriteString("x")
		default:
			fmt.Fprintf(&sb, "x^%d", degree)
		}
	}
	return sb.String()
}
