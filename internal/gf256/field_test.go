package gf256

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	rscgf "rsc.io/qr/gf256"
)

func TestFieldTables(t *testing.T) {
	for _, f := range []*Field{QRCodeField, DataMatrixField} {
		t.Run(f.String(), func(t *testing.T) {
			seen := make(map[int]bool, 255)
			for i := range 255 {
				v := f.Exp(i)
				require.NotZero(t, v)
				require.False(t, seen[v], "exp table repeats %d", v)
				seen[v] = true
				l, err := f.Log(v)
				require.NoError(t, err)
				assert.Equal(t, i, l)
			}
			assert.Equal(t, 1, f.Exp(0))
			assert.Equal(t, 2, f.Exp(1))
			assert.Equal(t, f.Exp(0), f.Exp(255))
		})
	}
}

func TestQRCodeFieldKnownValues(t *testing.T) {
	f := QRCodeField
	assert.Equal(t, 0x11D, f.Primitive())
	// 2^8 reduces by 0x11D to 0x1D.
	assert.Equal(t, 0x1D, f.Exp(8))
	assert.Equal(t, 0x3A, f.Exp(9))
	_, err := f.Log(0)
	assert.ErrorIs(t, err, ErrZeroElement)
	_, err = f.Inverse(0)
	assert.ErrorIs(t, err, ErrZeroElement)
}

func TestMultiplyMatchesReference(t *testing.T) {
	ref := rscgf.NewField(0x11d, 2)
	for a := range 256 {
		for b := range 256 {
			want := int(ref.Mul(byte(a), byte(b)))
			if got := QRCodeField.Multiply(a, b); got != want {
				t.Fatalf("Multiply(%d,%d)=%d want %d", a, b, got, want)
			}
		}
	}
}

func TestFieldProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)
	fields := gen.OneConstOf(QRCodeField, DataMatrixField)

	properties.Property("a * inverse(a) == 1 for nonzero a", prop.ForAll(
		func(f *Field, a int) bool {
			inv, err := f.Inverse(a)
			return err == nil && f.Multiply(a, inv) == 1
		},
		fields, gen.IntRange(1, 255),
	))

	properties.Property("a * 0 == 0", prop.ForAll(
		func(f *Field, a int) bool {
			return f.Multiply(a, 0) == 0 && f.Multiply(0, a) == 0
		},
		fields, gen.IntRange(0, 255),
	))

	properties.Property("addition is its own inverse", prop.ForAll(
		func(a, b int) bool {
			return AddOrSubtract(AddOrSubtract(a, b), b) == a
		},
		gen.IntRange(0, 255), gen.IntRange(0, 255),
	))

	properties.Property("multiplication is commutative and associative", prop.ForAll(
		func(f *Field, a, b, c int) bool {
			return f.Multiply(a, b) == f.Multiply(b, a) &&
				f.Multiply(f.Multiply(a, b), c) == f.Multiply(a, f.Multiply(b, c))
		},
		fields, gen.IntRange(0, 255), gen.IntRange(0, 255), gen.IntRange(0, 255),
	))

	properties.Property("multiplication distributes over addition", prop.ForAll(
		func(f *Field, a, b, c int) bool {
			return f.Multiply(a, AddOrSubtract(b, c)) == AddOrSubtract(f.Multiply(a, b), f.Multiply(a, c))
		},
		fields, gen.IntRange(0, 255), gen.IntRange(0, 255), gen.IntRange(0, 255),
	))

	properties.TestingRun(t)
}

func TestBuildMonomial(t *testing.T) {
	m := QRCodeField.BuildMonomial(3, 7)
	assert.Equal(t, 3, m.Degree())
	assert.Equal(t, []int{7, 0, 0, 0}, m.Coefficients())
	assert.True(t, QRCodeField.BuildMonomial(5, 0).IsZero())
	assert.Panics(t, func() { QRCodeField.BuildMonomial(-1, 1) })
}
