package curve

import (
	"github.com/holiman/uint256"

	"liquidityEngine/internal/errcode"
	"liquidityEngine/internal/fixedpoint"
)

const (
	maxNewtonIterations = 255
	maxAmplification    = 1_000_000
	normalizedDecimals  = 18
)

var (
	two   = uint256.NewInt(2)
	three = uint256.NewInt(3)
)

// stableSwap is the two-coin StableSwap invariant
// A*n^n*(x+y) + D = A*n^n*D + D^(n+1)/(n^n*x*y) with n=2,
// evaluated on reserves scaled to a common 18-decimal precision.
type stableSwap struct {
	amp        uint64
	rateX      *uint256.Int
	rateY      *uint256.Int
	iterations int
}

func newStableSwap(cfg Config) (*stableSwap, error) {
	amp := cfg.Params[0]
	if amp <= 0 || amp > maxAmplification {
		return nil, errcode.Wrap(errcode.ErrInvalidCurveParameters, "amplification %d outside (0, %d]", amp, maxAmplification)
	}
	if err := requireZero(cfg.Params, 1); err != nil {
		return nil, err
	}
	if cfg.DecimalsX > normalizedDecimals || cfg.DecimalsY > normalizedDecimals {
		return nil, errcode.Wrap(errcode.ErrInvalidCurveParameters, "token decimals above %d", normalizedDecimals)
	}
	return &stableSwap{
		amp:        uint64(amp),
		rateX:      fixedpoint.Pow10(normalizedDecimals - cfg.DecimalsX),
		rateY:      fixedpoint.Pow10(normalizedDecimals - cfg.DecimalsY),
		iterations: maxNewtonIterations,
	}, nil
}

func (c *stableSwap) Kind() Kind { return KindStableSwap }

func (c *stableSwap) rates(zeroForOne bool) (*uint256.Int, *uint256.Int) {
	if zeroForOne {
		return c.rateX, c.rateY
	}
	return c.rateY, c.rateX
}

func (c *stableSwap) scaled(s State) (*uint256.Int, *uint256.Int, error) {
	rateIn, rateOut := c.rates(s.ZeroForOne)
	xpIn, err := fixedpoint.Mul(&s.ReserveIn, rateIn)
	if err != nil {
		return nil, nil, err
	}
	xpOut, err := fixedpoint.Mul(&s.ReserveOut, rateOut)
	if err != nil {
		return nil, nil, err
	}
	return xpIn, xpOut, nil
}

func (c *stableSwap) QuoteOutput(s State, amountIn *uint256.Int, feeBP uint32) (Quote, error) {
	if s.ReserveIn.IsZero() || s.ReserveOut.IsZero() {
		return Quote{}, errcode.Wrap(errcode.ErrInsufficientLiquidity, "empty reserves")
	}
	xpIn, xpOut, err := c.scaled(s)
	if err != nil {
		return Quote{}, err
	}
	d, err := c.computeD(xpIn, xpOut)
	if err != nil {
		return Quote{}, err
	}

	fee, net, err := feeOnInput(amountIn, feeBP)
	if err != nil {
		return Quote{}, err
	}
	rateIn, rateOut := c.rates(s.ZeroForOne)
	netScaled, err := fixedpoint.Mul(net, rateIn)
	if err != nil {
		return Quote{}, err
	}
	xNew, err := fixedpoint.Add(xpIn, netScaled)
	if err != nil {
		return Quote{}, err
	}
	y, err := c.computeY(xNew, d)
	if err != nil {
		return Quote{}, err
	}

	var q Quote
	q.AmountIn.Set(net)
	q.Fee.Set(fee)
	// one unit below the exact solution stays with the pool
	y.AddUint64(y, 1)
	if xpOut.Gt(y) {
		dy := new(uint256.Int).Sub(xpOut, y)
		q.AmountOut.Div(dy, rateOut)
	}
	return q, nil
}

func (c *stableSwap) QuoteInput(s State, amountOut *uint256.Int, feeBP uint32) (Quote, error) {
	if s.ReserveIn.IsZero() || !amountOut.Lt(&s.ReserveOut) {
		return Quote{}, errcode.Wrap(errcode.ErrInsufficientLiquidity, "output %s exceeds reserve %s",
			fixedpoint.FormatAmount(amountOut), fixedpoint.FormatAmount(&s.ReserveOut))
	}
	xpIn, xpOut, err := c.scaled(s)
	if err != nil {
		return Quote{}, err
	}
	d, err := c.computeD(xpIn, xpOut)
	if err != nil {
		return Quote{}, err
	}

	rateIn, rateOut := c.rates(s.ZeroForOne)
	outScaled, err := fixedpoint.Mul(amountOut, rateOut)
	if err != nil {
		return Quote{}, err
	}
	yNew := new(uint256.Int).Sub(xpOut, outScaled)
	x, err := c.computeY(yNew, d)
	if err != nil {
		return Quote{}, err
	}

	dx := uint256.NewInt(1)
	if x.Gt(xpIn) {
		dx.Add(dx, new(uint256.Int).Sub(x, xpIn))
	}
	net, err := fixedpoint.DivRoundingUp(dx, rateIn)
	if err != nil {
		return Quote{}, err
	}
	gross, err := grossUp(net, feeBP)
	if err != nil {
		return Quote{}, err
	}

	var q Quote
	q.AmountIn.Set(net)
	q.Fee.Sub(gross, net)
	q.AmountOut.Set(amountOut)
	return q, nil
}

func (c *stableSwap) Invariant(s State) (*uint256.Int, error) {
	xpIn, xpOut, err := c.scaled(s)
	if err != nil {
		return nil, err
	}
	return c.computeD(xpIn, xpOut)
}

// computeD solves the invariant for D by Newton iteration.
func (c *stableSwap) computeD(x, y *uint256.Int) (*uint256.Int, error) {
	sum, err := fixedpoint.Add(x, y)
	if err != nil {
		return nil, err
	}
	if sum.IsZero() {
		return new(uint256.Int), nil
	}
	if x.IsZero() || y.IsZero() {
		return nil, errcode.Wrap(errcode.ErrInsufficientLiquidity, "one-sided stable reserves")
	}

	ann := uint256.NewInt(c.amp * 2)
	annMinusOne := uint256.NewInt(c.amp*2 - 1)
	x2, err := fixedpoint.Mul(x, two)
	if err != nil {
		return nil, err
	}
	y2, err := fixedpoint.Mul(y, two)
	if err != nil {
		return nil, err
	}
	annSum, err := fixedpoint.Mul(ann, sum)
	if err != nil {
		return nil, err
	}

	d := new(uint256.Int).Set(sum)
	for i := 0; i < c.iterations; i++ {
		dp, err := fixedpoint.MulDiv(d, d, x2, false)
		if err != nil {
			return nil, err
		}
		if dp, err = fixedpoint.MulDiv(dp, d, y2, false); err != nil {
			return nil, err
		}

		// d = (ann*sum + 2*dp) * d / ((ann-1)*d + 3*dp)
		num, err := fixedpoint.Add(annSum, new(uint256.Int).Lsh(dp, 1))
		if err != nil {
			return nil, err
		}
		left, err := fixedpoint.Mul(annMinusOne, d)
		if err != nil {
			return nil, err
		}
		right, err := fixedpoint.Mul(three, dp)
		if err != nil {
			return nil, err
		}
		den, err := fixedpoint.Add(left, right)
		if err != nil {
			return nil, err
		}
		next, err := fixedpoint.MulDiv(num, d, den, false)
		if err != nil {
			return nil, err
		}

		if within1(next, d) {
			return next, nil
		}
		d = next
	}
	return nil, errcode.Wrap(errcode.ErrConvergence, "D after %d iterations", c.iterations)
}

// computeY solves the invariant for the other reserve given one reserve and D.
func (c *stableSwap) computeY(x, d *uint256.Int) (*uint256.Int, error) {
	if x.IsZero() {
		return nil, errcode.Wrap(errcode.ErrInsufficientLiquidity, "zero stable reserve")
	}
	ann := uint256.NewInt(c.amp * 2)

	x2, err := fixedpoint.Mul(x, two)
	if err != nil {
		return nil, err
	}
	cc, err := fixedpoint.MulDiv(d, d, x2, false)
	if err != nil {
		return nil, err
	}
	ann2, err := fixedpoint.Mul(ann, two)
	if err != nil {
		return nil, err
	}
	if cc, err = fixedpoint.MulDiv(cc, d, ann2, false); err != nil {
		return nil, err
	}
	b, err := fixedpoint.Add(x, new(uint256.Int).Div(d, ann))
	if err != nil {
		return nil, err
	}

	y := new(uint256.Int).Set(d)
	for i := 0; i < c.iterations; i++ {
		// y = (y^2 + c) / (2y + b - D)
		ySq, err := fixedpoint.Mul(y, y)
		if err != nil {
			return nil, err
		}
		num, err := fixedpoint.Add(ySq, cc)
		if err != nil {
			return nil, err
		}
		den, err := fixedpoint.Add(new(uint256.Int).Lsh(y, 1), b)
		if err != nil {
			return nil, err
		}
		if !den.Gt(d) {
			return nil, errcode.Wrap(errcode.ErrConvergence, "non-positive newton denominator")
		}
		den.Sub(den, d)
		next := new(uint256.Int).Div(num, den)

		if within1(next, y) {
			return next, nil
		}
		y = next
	}
	return nil, errcode.Wrap(errcode.ErrConvergence, "y after %d iterations", c.iterations)
}

func within1(a, b *uint256.Int) bool {
	if a.Gt(b) {
		return new(uint256.Int).Sub(a, b).Lt(two)
	}
	return new(uint256.Int).Sub(b, a).Lt(two)
}
