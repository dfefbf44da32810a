package tick

import (
	"github.com/holiman/uint256"

	"liquidityEngine/internal/errcode"
	"liquidityEngine/internal/fixedpoint"
)

// Growth is a pair of Q128 fee-growth values, one per pool side.
type Growth struct {
	X uint256.Int
	Y uint256.Int
}

// Sub returns g - other per side, modulo 2^256. Fee-growth values are only ever
// compared through differences, so wrapping is the intended arithmetic.
func (g Growth) Sub(other Growth) Growth {
	var out Growth
	out.X.Sub(&g.X, &other.X)
	out.Y.Sub(&g.Y, &other.Y)
	return out
}

// Tick is an initialized boundary on the price grid.
type Tick struct {
	Index          int32
	LiquidityGross uint256.Int
	// LiquidityNet is signed, stored in two's complement.
	LiquidityNet     uint256.Int
	FeeGrowthOutside Growth
}

// NetIsNegative reports the sign of LiquidityNet.
func (t Tick) NetIsNegative() bool {
	return isNegative(&t.LiquidityNet)
}

func isNegative(x *uint256.Int) bool {
	return x[3]>>63 == 1
}

// ApplyNet returns liquidity after crossing a tick with the given net delta.
// Crossing upward adds net, crossing downward subtracts it.
func ApplyNet(liquidity, net *uint256.Int, upward bool) (*uint256.Int, error) {
	delta := new(uint256.Int).Set(net)
	if !upward {
		delta.Neg(delta)
	}
	if isNegative(delta) {
		return fixedpoint.Sub(liquidity, new(uint256.Int).Neg(delta))
	}
	out, err := fixedpoint.Add(liquidity, delta)
	if err != nil {
		return nil, err
	}
	if out.Gt(fixedpoint.MaxUint128) {
		return nil, errcode.Wrap(errcode.ErrArithmeticOverflow, "active liquidity exceeds 128 bits")
	}
	return out, nil
}

// CheckRange validates a position range. Ordering is checked before alignment so an
// inverted misaligned range reports RangeInvalid.
func CheckRange(lower, upper, spacing int32) error {
	if lower >= upper {
		return errcode.Wrap(errcode.ErrRangeInvalid, "tick lower %d >= tick upper %d", lower, upper)
	}
	if spacing <= 0 {
		return errcode.Wrap(errcode.ErrInvalidParameters, "tick spacing %d", spacing)
	}
	if lower%spacing != 0 || upper%spacing != 0 {
		return errcode.Wrap(errcode.ErrInvalidParameters, "ticks %d, %d not multiples of spacing %d", lower, upper, spacing)
	}
	if lower < fixedpoint.MinTick || upper > fixedpoint.MaxTick {
		return errcode.Wrap(errcode.ErrInvalidParameters, "ticks %d, %d outside [%d, %d]", lower, upper, fixedpoint.MinTick, fixedpoint.MaxTick)
	}
	return nil
}

// CheckOrder reports RangeInvalid for an empty or inverted range.
func CheckOrder(lower, upper int32) error {
	if lower >= upper {
		return errcode.Wrap(errcode.ErrRangeInvalid, "tick lower %d >= tick upper %d", lower, upper)
	}
	return nil
}
