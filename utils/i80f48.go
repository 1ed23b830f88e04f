package utils

import (
	"encoding/binary"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	I80F48_FRACTIONAL_BITS = 48
	I80F48_SIZE            = 16
)

var (
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
	ErrDivisionByZero     = errors.New("division by zero")
	ErrInvalidLength      = errors.New("invalid fixed point length")
)

var (
	// 2^-48 == 5^48 * 10^-48
	fractionalScale = new(big.Int).Exp(big.NewInt(5), big.NewInt(I80F48_FRACTIONAL_BITS), nil)
	oneShifted      = decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), I80F48_FRACTIONAL_BITS), 0)
)

// I80F48 is a signed fixed point number with 80 integer and 48 fractional bits,
// the layout the lending program stores its share values, weights and rates in.
//
// The value is kept sign-extended in a 256 bit word so products of two 128 bit
// operands never wrap before the range check.
type I80F48 struct {
	v uint256.Int
}

type WrappedI80F48 struct {
	Value [I80F48_SIZE]byte `json:"value"`
}

func (w WrappedI80F48) Unwrap() I80F48 {
	return I80F48FromBytes(w.Value)
}

func (w WrappedI80F48) Decimal() decimal.Decimal {
	return w.Unwrap().Decimal()
}

func NewWrappedI80F48(f I80F48) WrappedI80F48 {
	return WrappedI80F48{Value: f.Encode()}
}

func I80F48FromBytes(b [I80F48_SIZE]byte) I80F48 {
	var f I80F48
	f.v[0] = binary.LittleEndian.Uint64(b[0:8])
	f.v[1] = binary.LittleEndian.Uint64(b[8:16])
	if f.v[1]>>63 == 1 {
		f.v[2] = ^uint64(0)
		f.v[3] = ^uint64(0)
	}
	return f
}

func DecodeI80F48(b []byte) (I80F48, error) {
	if len(b) != I80F48_SIZE {
		return I80F48{}, errors.Wrapf(ErrInvalidLength, "got %d bytes", len(b))
	}
	var buf [I80F48_SIZE]byte
	copy(buf[:], b)
	return I80F48FromBytes(buf), nil
}

func I80F48FromInt64(n int64) I80F48 {
	var f I80F48
	f.v.SetUint64(uint64(n))
	if n < 0 {
		f.v[1] = ^uint64(0)
		f.v[2] = ^uint64(0)
		f.v[3] = ^uint64(0)
	}
	f.v.Lsh(&f.v, I80F48_FRACTIONAL_BITS)
	return f
}

// I80F48FromDecimal rounds towards negative infinity to the nearest 2^-48.
func I80F48FromDecimal(d decimal.Decimal) (I80F48, error) {
	raw := d.Mul(oneShifted).Floor().BigInt()
	neg := raw.Sign() < 0
	if neg {
		raw.Neg(raw)
	}
	abs, overflow := uint256.FromBig(raw)
	if overflow {
		return I80F48{}, ErrArithmeticOverflow
	}
	var f I80F48
	if neg {
		f.v.Neg(abs)
	} else {
		f.v.Set(abs)
	}
	return f.checked()
}

func MustI80F48FromDecimal(d decimal.Decimal) I80F48 {
	f, err := I80F48FromDecimal(d)
	if err != nil {
		panic(err)
	}
	return f
}

func (f I80F48) Encode() [I80F48_SIZE]byte {
	var b [I80F48_SIZE]byte
	binary.LittleEndian.PutUint64(b[0:8], f.v[0])
	binary.LittleEndian.PutUint64(b[8:16], f.v[1])
	return b
}

func (f I80F48) checked() (I80F48, error) {
	// in range iff bits 127..255 are all equal
	var top uint256.Int
	top.SRsh(&f.v, 127)
	if top.IsZero() {
		return f, nil
	}
	var inv uint256.Int
	inv.Not(&top)
	if inv.IsZero() {
		return f, nil
	}
	return I80F48{}, ErrArithmeticOverflow
}

func (f I80F48) Add(o I80F48) (I80F48, error) {
	var r I80F48
	r.v.Add(&f.v, &o.v)
	return r.checked()
}

func (f I80F48) Sub(o I80F48) (I80F48, error) {
	var r I80F48
	r.v.Sub(&f.v, &o.v)
	return r.checked()
}

func (f I80F48) Mul(o I80F48) (I80F48, error) {
	var r I80F48
	r.v.Mul(&f.v, &o.v)
	r.v.SRsh(&r.v, I80F48_FRACTIONAL_BITS)
	return r.checked()
}

func (f I80F48) Div(o I80F48) (I80F48, error) {
	if o.IsZero() {
		return I80F48{}, ErrDivisionByZero
	}
	var r I80F48
	r.v.Lsh(&f.v, I80F48_FRACTIONAL_BITS)
	r.v.SDiv(&r.v, &o.v)
	return r.checked()
}

func (f I80F48) Neg() (I80F48, error) {
	var r I80F48
	r.v.Neg(&f.v)
	return r.checked()
}

func (f I80F48) Cmp(o I80F48) int {
	switch {
	case f.v.Slt(&o.v):
		return -1
	case f.v.Sgt(&o.v):
		return 1
	default:
		return 0
	}
}

func (f I80F48) Equal(o I80F48) bool {
	return f.v.Eq(&o.v)
}

func (f I80F48) IsZero() bool {
	return f.v.IsZero()
}

func (f I80F48) IsNeg() bool {
	return f.v.Sign() < 0
}

func MinI80F48(a, b I80F48) I80F48 {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

func MaxI80F48(a, b I80F48) I80F48 {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

// Decimal converts without loss: every I80F48 has a finite decimal expansion
// of at most 48 fractional digits.
func (f I80F48) Decimal() decimal.Decimal {
	neg := f.IsNeg()
	abs := f.v
	if neg {
		abs.Neg(&f.v)
	}
	n := abs.ToBig()
	n.Mul(n, fractionalScale)
	if neg {
		n.Neg(n)
	}
	return decimal.NewFromBigInt(n, -I80F48_FRACTIONAL_BITS)
}

func (f I80F48) String() string {
	return f.Decimal().String()
}
