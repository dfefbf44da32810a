package fixedpoint

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"liquidityEngine/internal/errcode"
)

var (
	// Q96 is 1.0 in Q64.96.
	Q96 = new(uint256.Int).Lsh(uint256.NewInt(1), 96)
	// Q128 is 1.0 in the fee-growth fixed-point format.
	Q128 = new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	// MaxUint128 bounds liquidity so that liquidity*Q96 and liquidity*price products fit.
	MaxUint128 = new(uint256.Int).Sub(Q128, uint256.NewInt(1))
)

// MulDiv returns a*b/denom computed with a 512-bit intermediate product.
func MulDiv(a, b, denom *uint256.Int, roundUp bool) (*uint256.Int, error) {
	if denom.IsZero() {
		return nil, errcode.Wrap(errcode.ErrArithmeticOverflow, "division by zero")
	}
	z, overflow := new(uint256.Int).MulDivOverflow(a, b, denom)
	if overflow {
		return nil, errcode.Wrap(errcode.ErrArithmeticOverflow, "mul div %s*%s/%s", FormatAmount(a), FormatAmount(b), FormatAmount(denom))
	}
	if roundUp && !new(uint256.Int).MulMod(a, b, denom).IsZero() {
		return Add(z, uint256.NewInt(1))
	}
	return z, nil
}

// DivRoundingUp returns ceil(a/b).
func DivRoundingUp(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, errcode.Wrap(errcode.ErrArithmeticOverflow, "division by zero")
	}
	q := new(uint256.Int).Div(a, b)
	if !new(uint256.Int).Mod(a, b).IsZero() {
		q.AddUint64(q, 1)
	}
	return q, nil
}

// Mul returns a*b or ArithmeticOverflow.
func Mul(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, errcode.Wrap(errcode.ErrArithmeticOverflow, "mul %s*%s", FormatAmount(a), FormatAmount(b))
	}
	return z, nil
}

// Add returns a+b or ArithmeticOverflow.
func Add(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, errcode.Wrap(errcode.ErrArithmeticOverflow, "add %s+%s", FormatAmount(a), FormatAmount(b))
	}
	return z, nil
}

// Sub returns a-b, failing instead of wrapping when b > a.
func Sub(a, b *uint256.Int) (*uint256.Int, error) {
	z, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		return nil, errcode.Wrap(errcode.ErrArithmeticOverflow, "sub %s-%s", FormatAmount(a), FormatAmount(b))
	}
	return z, nil
}

// Sqrt returns floor(sqrt(x)).
func Sqrt(x *uint256.Int) *uint256.Int {
	return new(uint256.Int).Sqrt(x)
}

// Pow10 returns 10^n.
func Pow10(n uint8) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(n)))
}

// ParseAmount parses a non-negative base-10 integer.
func ParseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	b, ok := new(big.Int).SetString(s, 10)
	if !ok || b.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	z, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("amount %q exceeds 256 bits", s)
	}
	return z, nil
}

// FormatAmount renders x in base 10.
func FormatAmount(x *uint256.Int) string {
	if x == nil {
		return "0"
	}
	return x.ToBig().String()
}
