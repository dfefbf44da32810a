package curve

import (
	"github.com/holiman/uint256"

	"liquidityEngine/internal/errcode"
	"liquidityEngine/internal/fixedpoint"
)

// MaxTickSpacing bounds the tick grid of concentrated pools.
const MaxTickSpacing = 16384

// concentrated prices one step of a ranged swap: from the current sqrt price
// toward the next tick boundary using the active liquidity. The tick engine
// repeats steps and crosses ticks until the order is filled.
type concentrated struct {
	initialTick int32
}

func newConcentrated(cfg Config) (*concentrated, error) {
	if cfg.TickSpacing < 1 || cfg.TickSpacing > MaxTickSpacing {
		return nil, errcode.Wrap(errcode.ErrInvalidCurveParameters, "tick spacing %d outside [1, %d]", cfg.TickSpacing, MaxTickSpacing)
	}
	if cfg.FeeBP >= MaxFeeBP {
		return nil, errcode.Wrap(errcode.ErrInvalidCurveParameters, "concentrated fee must be below %d bp", MaxFeeBP)
	}
	initial := cfg.Params[0]
	if initial < int64(fixedpoint.MinTick) || initial >= int64(fixedpoint.MaxTick) {
		return nil, errcode.Wrap(errcode.ErrInvalidCurveParameters, "initial tick %d outside [%d, %d)", initial, fixedpoint.MinTick, fixedpoint.MaxTick)
	}
	if err := requireZero(cfg.Params, 1); err != nil {
		return nil, err
	}
	return &concentrated{initialTick: int32(initial)}, nil
}

func (c *concentrated) Kind() Kind { return KindConcentrated }

// InitialSqrtPrice is the price a new pool starts at.
func (c *concentrated) InitialSqrtPrice() (*uint256.Int, error) {
	return fixedpoint.SqrtPriceAtTick(c.initialTick)
}

func (c *concentrated) QuoteOutput(s State, amountIn *uint256.Int, feeBP uint32) (Quote, error) {
	return swapStep(s, amountIn, feeBP, true)
}

func (c *concentrated) QuoteInput(s State, amountOut *uint256.Int, feeBP uint32) (Quote, error) {
	return swapStep(s, amountOut, feeBP, false)
}

// Invariant is L^2 of the active range.
func (c *concentrated) Invariant(s State) (*uint256.Int, error) {
	return fixedpoint.Mul(&s.Liquidity, &s.Liquidity)
}

// InitialSqrtPricer is implemented by curves that carry a starting price.
type InitialSqrtPricer interface {
	InitialSqrtPrice() (*uint256.Int, error)
}

func swapStep(s State, remaining *uint256.Int, feeBP uint32, exactIn bool) (Quote, error) {
	cur, target, liquidity := &s.SqrtPrice, &s.SqrtTarget, &s.Liquidity
	zeroForOne := !cur.Lt(target)
	feeLeft := uint256.NewInt(uint64(MaxFeeBP - feeBP))

	var (
		next      *uint256.Int
		amountIn  *uint256.Int
		amountOut *uint256.Int
		err       error
	)

	if exactIn {
		remainingLessFee, err := fixedpoint.MulDiv(remaining, feeLeft, feeDenominator, false)
		if err != nil {
			return Quote{}, err
		}
		if zeroForOne {
			amountIn, err = fixedpoint.Amount0Delta(target, cur, liquidity, true)
		} else {
			amountIn, err = fixedpoint.Amount1Delta(cur, target, liquidity, true)
		}
		if err != nil {
			return Quote{}, err
		}
		if !remainingLessFee.Lt(amountIn) {
			next = new(uint256.Int).Set(target)
		} else if next, err = fixedpoint.NextSqrtPriceFromInput(cur, liquidity, remainingLessFee, zeroForOne); err != nil {
			return Quote{}, err
		}
	} else {
		if zeroForOne {
			amountOut, err = fixedpoint.Amount1Delta(target, cur, liquidity, false)
		} else {
			amountOut, err = fixedpoint.Amount0Delta(cur, target, liquidity, false)
		}
		if err != nil {
			return Quote{}, err
		}
		if !remaining.Lt(amountOut) {
			next = new(uint256.Int).Set(target)
		} else if next, err = fixedpoint.NextSqrtPriceFromOutput(cur, liquidity, remaining, zeroForOne); err != nil {
			return Quote{}, err
		}
	}

	reachedTarget := next.Eq(target)

	if zeroForOne {
		if !(reachedTarget && exactIn) {
			if amountIn, err = fixedpoint.Amount0Delta(next, cur, liquidity, true); err != nil {
				return Quote{}, err
			}
		}
		if !(reachedTarget && !exactIn) {
			if amountOut, err = fixedpoint.Amount1Delta(next, cur, liquidity, false); err != nil {
				return Quote{}, err
			}
		}
	} else {
		if !(reachedTarget && exactIn) {
			if amountIn, err = fixedpoint.Amount1Delta(cur, next, liquidity, true); err != nil {
				return Quote{}, err
			}
		}
		if !(reachedTarget && !exactIn) {
			if amountOut, err = fixedpoint.Amount0Delta(cur, next, liquidity, false); err != nil {
				return Quote{}, err
			}
		}
	}

	if !exactIn && amountOut.Gt(remaining) {
		amountOut = new(uint256.Int).Set(remaining)
	}

	var fee *uint256.Int
	if exactIn && !reachedTarget {
		// the price could not absorb the whole remainder, so the rest is fee
		fee = new(uint256.Int).Sub(remaining, amountIn)
	} else if fee, err = fixedpoint.MulDiv(amountIn, uint256.NewInt(uint64(feeBP)), feeLeft, true); err != nil {
		return Quote{}, err
	}

	var q Quote
	q.AmountIn.Set(amountIn)
	q.Fee.Set(fee)
	q.AmountOut.Set(amountOut)
	q.SqrtPriceNext.Set(next)
	return q, nil
}
