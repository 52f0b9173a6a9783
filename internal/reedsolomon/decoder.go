// Package reedsolomon corrects codeword errors with the Euclidean algorithm
// for the error locator and Forney's formula for the error magnitudes.
package reedsolomon

import (
	"github.com/MeKo-Tech/qrscan/internal/gf256"
	"github.com/MeKo-Tech/qrscan/internal/qrerr"
)

const op = "reedsolomon"

// Decoder corrects Reed-Solomon codewords over a single field. It holds no
// mutable state and may be shared.
type Decoder struct {
	field *gf256.Field
	// generatorBase is the first exponent of the generator polynomial roots.
	// QR codes use 0.
	generatorBase int
}

// NewDecoder returns a decoder over field whose generator roots start at 2^0.
func NewDecoder(field *gf256.Field) *Decoder {
	return &Decoder{field: field}
}

// NewDecoderWithBase returns a decoder whose generator roots start at
// 2^generatorBase.
func NewDecoderWithBase(field *gf256.Field, generatorBase int) *Decoder {
	return &Decoder{field: field, generatorBase: generatorBase}
}

// Decode corrects received in place given twoS error-correction codewords
// and returns how many codewords were changed. Every failure is a checksum
// error and leaves received unspecified.
func (d *Decoder) Decode(received []int, twoS int) (int, error) {
	if twoS <= 0 {
		return 0, nil
	}
	if len(received) <= twoS {
		return 0, qrerr.Checksum(op, "%d codewords cannot carry %d check symbols", len(received), twoS)
	}
	poly := gf256.NewPoly(d.field, received)
	syndromeCoefficients := make([]int, twoS)
	noError := true
	for i := range twoS {
		eval := poly.EvaluateAt(d.field.Exp(i + d.generatorBase))
		syndromeCoefficients[len(syndromeCoefficients)-1-i] = eval
		if eval != 0 {
			noError = false
		}
	}
	if noError {
		return 0, nil
	}

	syndrome := gf256.NewPoly(d.field, syndromeCoefficients)
	sigma, omega, err := d.runEuclideanAlgorithm(d.field.BuildMonomial(twoS, 1), syndrome, twoS)
	if err != nil {
		return 0, err
	}
	errorLocations, err := d.findErrorLocations(sigma)
	if err != nil {
		return 0, err
	}
	errorMagnitudes, err := d.findErrorMagnitudes(omega, errorLocations)
	if err != nil {
		return 0, err
	}
	for i, location := range errorLocations {
		l, err := d.field.Log(location)
		if err != nil {
			return 0, qrerr.Checksum(op, "zero error location")
		}
		position := len(received) - 1 - l
		if position < 0 {
			return 0, qrerr.Checksum(op, "error location %d outside %d codewords", l, len(received))
		}
		received[position] = gf256.AddOrSubtract(received[position], errorMagnitudes[i])
	}
	// A locator that fits too many errors can still produce roots; only a
	// corrected word with clean syndromes is accepted.
	if !d.syndromesClear(received, twoS) {
		return 0, qrerr.Checksum(op, "correction did not yield a valid codeword")
	}
	return len(errorLocations), nil
}

func (d *Decoder) syndromesClear(codewords []int, twoS int) bool {
	poly := gf256.NewPoly(d.field, codewords)
	for i := range twoS {
		if poly.EvaluateAt(d.field.Exp(i+d.generatorBase)) != 0 {
			return false
		}
	}
	return true
}

func (d *Decoder) runEuclideanAlgorithm(a, b *gf256.Poly, r int) (sigma, omega *gf256.Poly, err error) {
	if a.Degree() < b.Degree() {
		a, b = b, a
	}
	rLast, rCur := a, b
	tLast, tCur := d.field.Zero(), d.field.One()

	// Stop once the remainder degree drops below r/2.
	for 2*rCur.Degree() >= r {
		rLastLast, tLastLast := rLast, tLast
		rLast, tLast = rCur, tCur

		if rLast.IsZero() {
			return nil, nil, qrerr.Checksum(op, "remainder vanished before reaching degree %d", r/2)
		}
		rCur = rLastLast
		q := d.field.Zero()
		denominatorLeadingTerm := rLast.Coefficient(rLast.Degree())
		dltInverse, err := d.field.Inverse(denominatorLeadingTerm)
		if err != nil {
			return nil, nil, qrerr.Checksum(op, "zero leading remainder term")
		}
		for rCur.Degree() >= rLast.Degree() && !rCur.IsZero() {
			degreeDiff := rCur.Degree() - rLast.Degree()
			scale := d.field.Multiply(rCur.Coefficient(rCur.Degree()), dltInverse)
			q = q.Add(d.field.BuildMonomial(degreeDiff, scale))
			rCur = rCur.Add(rLast.MultiplyByMonomial(degreeDiff, scale))
		}
		tCur = q.Multiply(tLast).Add(tLastLast)

		if rCur.Degree() >= rLast.Degree() {
			return nil, nil, qrerr.Checksum(op, "division failed to reduce remainder degree")
		}
	}

	sigmaTildeAtZero := tCur.Coefficient(0)
	inverse, err := d.field.Inverse(sigmaTildeAtZero)
	if err != nil {
		return nil, nil, qrerr.Checksum(op, "error locator has zero constant term")
	}
	return tCur.MultiplyScalar(inverse), rCur.MultiplyScalar(inverse), nil
}

// findErrorLocations runs a Chien search over every nonzero element.
func (d *Decoder) findErrorLocations(errorLocator *gf256.Poly) ([]int, error) {
	numErrors := errorLocator.Degree()
	if numErrors == 0 {
		return nil, qrerr.Checksum(op, "nonzero syndromes but no error locator roots")
	}
	if numErrors == 1 {
		return []int{errorLocator.Coefficient(1)}, nil
	}
	result := make([]int, 0, numErrors)
	for i := 1; i < 256 && len(result) < numErrors; i++ {
		if errorLocator.EvaluateAt(i) == 0 {
			inv, _ := d.field.Inverse(i)
			result = append(result, inv)
		}
	}
	if len(result) != numErrors {
		return nil, qrerr.Checksum(op, "error locator degree %d does not match %d roots", numErrors, len(result))
	}
	return result, nil
}

// findErrorMagnitudes applies Forney's formula.
func (d *Decoder) findErrorMagnitudes(errorEvaluator *gf256.Poly, errorLocations []int) ([]int, error) {
	s := len(errorLocations)
	result := make([]int, s)
	for i := range s {
		xiInverse, err := d.field.Inverse(errorLocations[i])
		if err != nil {
			return nil, qrerr.Checksum(op, "zero error location")
		}
		denominator := 1
		for j := range s {
			if i == j {
				continue
			}
			term := d.field.Multiply(errorLocations[j], xiInverse)
			termPlus1 := term ^ 1
			denominator = d.field.Multiply(denominator, termPlus1)
		}
		denominatorInverse, err := d.field.Inverse(denominator)
		if err != nil {
			return nil, qrerr.Checksum(op, "repeated error location")
		}
		result[i] = d.field.Multiply(errorEvaluator.EvaluateAt(xiInverse), denominatorInverse)
		if d.generatorBase != 0 {
			result[i] = d.field.Multiply(result[i], xiInverse)
		}
	}
	return result, nil
}
