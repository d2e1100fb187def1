package codec

import (
	"math/big"

	"github.com/cockroachdb/errors"
	"github.com/ssargent/objektdb/pkg/format"
)

// Int128 is a two's complement signed 128-bit integer.
type Int128 struct {
	Hi int64
	Lo uint64
}

// Uint128 is an unsigned 128-bit integer.
type Uint128 struct {
	Hi uint64
	Lo uint64
}

var (
	two64      = new(big.Int).Lsh(big.NewInt(1), 64)
	two128     = new(big.Int).Lsh(big.NewInt(1), 128)
	maxInt128  = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minInt128  = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	maxUint128 = new(big.Int).Sub(two128, big.NewInt(1))
)

// Int128From64 sign-extends v.
func Int128From64(v int64) Int128 {
	hi := int64(0)
	if v < 0 {
		hi = -1
	}
	return Int128{Hi: hi, Lo: uint64(v)}
}

// Uint128From64 zero-extends v.
func Uint128From64(v uint64) Uint128 {
	return Uint128{Lo: v}
}

// Big returns v as a big.Int.
func (v Int128) Big() *big.Int {
	b := new(big.Int).SetUint64(uint64(v.Hi))
	b.Lsh(b, 64)
	b.Or(b, new(big.Int).SetUint64(v.Lo))
	if v.Hi < 0 {
		b.Sub(b, two128)
	}
	return b
}

func (v Int128) String() string { return v.Big().String() }

// Big returns v as a big.Int.
func (v Uint128) Big() *big.Int {
	b := new(big.Int).SetUint64(v.Hi)
	b.Lsh(b, 64)
	return b.Or(b, new(big.Int).SetUint64(v.Lo))
}

func (v Uint128) String() string { return v.Big().String() }

// Int128FromBig converts b, failing when it does not fit in 128 signed bits.
func Int128FromBig(b *big.Int) (Int128, error) {
	if b.Cmp(minInt128) < 0 || b.Cmp(maxInt128) > 0 {
		return Int128{}, errors.Wrapf(format.ErrCapacityExceeded, "%s overflows i128", b)
	}
	u := new(big.Int).Set(b)
	if u.Sign() < 0 {
		u.Add(u, two128)
	}
	hi := new(big.Int).Rsh(u, 64)
	lo := new(big.Int).Mod(u, two64)
	return Int128{Hi: int64(hi.Uint64()), Lo: lo.Uint64()}, nil
}

// Uint128FromBig converts b, failing when it is negative or wider than 128 bits.
func Uint128FromBig(b *big.Int) (Uint128, error) {
	if b.Sign() < 0 || b.Cmp(maxUint128) > 0 {
		return Uint128{}, errors.Wrapf(format.ErrCapacityExceeded, "%s overflows u128", b)
	}
	hi := new(big.Int).Rsh(b, 64)
	lo := new(big.Int).Mod(b, two64)
	return Uint128{Hi: hi.Uint64(), Lo: lo.Uint64()}, nil
}
