// Package gf256 implements arithmetic in GF(2^8) and polynomials over it.
package gf256

import (
	"errors"
	"fmt"
)

// ErrZeroElement is returned when an operation has no answer for zero.
var ErrZeroElement = errors.New("gf256: operation undefined for zero")

// Field is GF(256) built from a primitive polynomial. A Field is immutable
// once constructed and safe for concurrent use.
type Field struct {
	primitive int
	exp       [256]int
	log       [256]int
	zero      *Poly
	one       *Poly
}

// The two fields are built at package initialization and never mutated.
var (
	// QRCodeField is x^8 + x^4 + x^3 + x^2 + 1.
	QRCodeField = NewField(0x011D)
	// DataMatrixField is x^8 + x^5 + x^3 + x^2 + 1.
	DataMatrixField = NewField(0x012D)
)

// NewField builds the exp and log tables for primitive.
func NewField(primitive int) *Field {
	f := &Field{primitive: primitive}
	x := 1
	for i := range 256 {
		f.exp[i] = x
		x <<= 1
		if x >= 0x100 {
			x ^= primitive
		}
	}
	for i := range 255 {
		f.log[f.exp[i]] = i
	}
	// log[0] is undefined and stays 0.
	f.zero = &Poly{field: f, coefficients: []int{0}}
	f.one = &Poly{field: f, coefficients: []int{1}}
	return f
}

// Primitive returns the polynomial the field was built from.
func (f *Field) Primitive() int { return f.primitive }

// Zero returns the zero polynomial.
func (f *Field) Zero() *Poly { return f.zero }

// One returns the constant polynomial 1.
func (f *Field) One() *Poly { return f.one }

// BuildMonomial returns coefficient * x^degree.
func (f *Field) BuildMonomial(degree, coefficient int) *Poly {
	if degree < 0 {
		panic(fmt.Sprintf("gf256: negative monomial degree %d", degree))
	}
	if coefficient == 0 {
		return f.zero
	}
	coefficients := make([]int, degree+1)
	coefficients[0] = coefficient
	return &Poly{field: f, coefficients: coefficients}
}

// AddOrSubtract is addition and subtraction in GF(256).
func AddOrSubtract(a, b int) int { return a ^ b }

// Exp returns 2^a.
func (f *Field) Exp(a int) int { return f.exp[a] }

// Log returns the base 2 logarithm of a.
func (f *Field) Log(a int) (int, error) {
	if a == 0 {
		return 0, ErrZeroElement
	}
	return f.log[a], nil
}

// Inverse returns the multiplicative inverse of a.
func (f *Field) Inverse(a int) (int, error) {
	if a == 0 {
		return 0, ErrZeroElement
	}
	return f.exp[255-f.log[a]], nil
}

// Multiply returns a * b.
func (f *Field) Multiply(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	return f.exp[(f.log[a]+f.log[b])%255]
}

func (f *Field) String() string { return fmt.Sprintf("GF(0x%X)", f.primitive) }
