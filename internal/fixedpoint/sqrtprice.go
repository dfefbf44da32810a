package fixedpoint

import (
	"github.com/holiman/uint256"

	"liquidityEngine/internal/errcode"
)

var maxUint160 = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 160), uint256.NewInt(1))

func sortPrices(a, b *uint256.Int) (*uint256.Int, *uint256.Int) {
	if a.Gt(b) {
		return b, a
	}
	return a, b
}

// Amount0Delta returns the token0 amount spanned by liquidity between two sqrt prices:
// liquidity * (sqrtB - sqrtA) / (sqrtA * sqrtB).
func Amount0Delta(sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	sqrtA, sqrtB = sortPrices(sqrtA, sqrtB)
	if sqrtA.IsZero() {
		return nil, errcode.Wrap(errcode.ErrInvalidParameters, "zero sqrt price")
	}

	numerator1 := new(uint256.Int).Lsh(liquidity, 96)
	numerator2 := new(uint256.Int).Sub(sqrtB, sqrtA)

	if roundUp {
		inner, err := MulDiv(numerator1, numerator2, sqrtB, true)
		if err != nil {
			return nil, err
		}
		return DivRoundingUp(inner, sqrtA)
	}
	inner, err := MulDiv(numerator1, numerator2, sqrtB, false)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).Div(inner, sqrtA), nil
}

// Amount1Delta returns the token1 amount spanned by liquidity between two sqrt prices:
// liquidity * (sqrtB - sqrtA).
func Amount1Delta(sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	sqrtA, sqrtB = sortPrices(sqrtA, sqrtB)
	return MulDiv(liquidity, new(uint256.Int).Sub(sqrtB, sqrtA), Q96, roundUp)
}

// NextSqrtPriceFromInput returns the price after adding amountIn of the input token.
// zeroForOne means token0 in, so the price moves down.
func NextSqrtPriceFromInput(sqrtPrice, liquidity, amountIn *uint256.Int, zeroForOne bool) (*uint256.Int, error) {
	if sqrtPrice.IsZero() || liquidity.IsZero() {
		return nil, errcode.Wrap(errcode.ErrInsufficientLiquidity, "zero price or liquidity")
	}
	if zeroForOne {
		return nextFromAmount0RoundingUp(sqrtPrice, liquidity, amountIn, true)
	}
	return nextFromAmount1RoundingDown(sqrtPrice, liquidity, amountIn, true)
}

// NextSqrtPriceFromOutput returns the price after removing amountOut of the output token.
func NextSqrtPriceFromOutput(sqrtPrice, liquidity, amountOut *uint256.Int, zeroForOne bool) (*uint256.Int, error) {
	if sqrtPrice.IsZero() || liquidity.IsZero() {
		return nil, errcode.Wrap(errcode.ErrInsufficientLiquidity, "zero price or liquidity")
	}
	if zeroForOne {
		return nextFromAmount1RoundingDown(sqrtPrice, liquidity, amountOut, false)
	}
	return nextFromAmount0RoundingUp(sqrtPrice, liquidity, amountOut, false)
}

func nextFromAmount0RoundingUp(sqrtPrice, liquidity, amount *uint256.Int, add bool) (*uint256.Int, error) {
	if amount.IsZero() {
		return new(uint256.Int).Set(sqrtPrice), nil
	}
	numerator1 := new(uint256.Int).Lsh(liquidity, 96)
	product, overflow := new(uint256.Int).MulOverflow(amount, sqrtPrice)

	if add {
		if !overflow {
			denominator, carry := new(uint256.Int).AddOverflow(numerator1, product)
			if !carry {
				return MulDiv(numerator1, sqrtPrice, denominator, true)
			}
		}
		denominator, err := Add(new(uint256.Int).Div(numerator1, sqrtPrice), amount)
		if err != nil {
			return nil, err
		}
		return DivRoundingUp(numerator1, denominator)
	}

	if overflow || !numerator1.Gt(product) {
		return nil, errcode.Wrap(errcode.ErrInsufficientLiquidity, "output exceeds token0 liquidity")
	}
	next, err := MulDiv(numerator1, sqrtPrice, new(uint256.Int).Sub(numerator1, product), true)
	if err != nil {
		return nil, err
	}
	if next.Gt(maxUint160) {
		return nil, errcode.Wrap(errcode.ErrArithmeticOverflow, "sqrt price exceeds 160 bits")
	}
	return next, nil
}

func nextFromAmount1RoundingDown(sqrtPrice, liquidity, amount *uint256.Int, add bool) (*uint256.Int, error) {
	if add {
		quotient, err := MulDiv(amount, Q96, liquidity, false)
		if err != nil {
			return nil, err
		}
		next, err := Add(sqrtPrice, quotient)
		if err != nil {
			return nil, err
		}
		if next.Gt(maxUint160) {
			return nil, errcode.Wrap(errcode.ErrArithmeticOverflow, "sqrt price exceeds 160 bits")
		}
		return next, nil
	}

	quotient, err := MulDiv(amount, Q96, liquidity, true)
	if err != nil {
		return nil, err
	}
	if !sqrtPrice.Gt(quotient) {
		return nil, errcode.Wrap(errcode.ErrInsufficientLiquidity, "output exceeds token1 liquidity")
	}
	return new(uint256.Int).Sub(sqrtPrice, quotient), nil
}

// LiquidityForAmounts returns the largest liquidity that amount0 and amount1 can fund for
// the range [sqrtA, sqrtB] at the current price.
func LiquidityForAmounts(sqrtPrice, sqrtA, sqrtB, amount0, amount1 *uint256.Int) (*uint256.Int, error) {
	sqrtA, sqrtB = sortPrices(sqrtA, sqrtB)

	switch {
	case !sqrtPrice.Gt(sqrtA):
		return liquidityForAmount0(sqrtA, sqrtB, amount0)
	case sqrtPrice.Lt(sqrtB):
		l0, err := liquidityForAmount0(sqrtPrice, sqrtB, amount0)
		if err != nil {
			return nil, err
		}
		l1, err := liquidityForAmount1(sqrtA, sqrtPrice, amount1)
		if err != nil {
			return nil, err
		}
		if l0.Lt(l1) {
			return l0, nil
		}
		return l1, nil
	default:
		return liquidityForAmount1(sqrtA, sqrtB, amount1)
	}
}

func liquidityForAmount0(sqrtA, sqrtB, amount0 *uint256.Int) (*uint256.Int, error) {
	intermediate, err := MulDiv(sqrtA, sqrtB, Q96, false)
	if err != nil {
		return nil, err
	}
	return MulDiv(amount0, intermediate, new(uint256.Int).Sub(sqrtB, sqrtA), false)
}

func liquidityForAmount1(sqrtA, sqrtB, amount1 *uint256.Int) (*uint256.Int, error) {
	return MulDiv(amount1, Q96, new(uint256.Int).Sub(sqrtB, sqrtA), false)
}
