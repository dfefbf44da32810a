package curve

import (
	"github.com/holiman/uint256"

	"liquidityEngine/internal/errcode"
	"liquidityEngine/internal/fixedpoint"
)

// constantProduct keeps x*y=k with the fee deducted from the input first.
type constantProduct struct{}

func (constantProduct) Kind() Kind { return KindConstantProduct }

func (constantProduct) QuoteOutput(s State, amountIn *uint256.Int, feeBP uint32) (Quote, error) {
	if s.ReserveIn.IsZero() || s.ReserveOut.IsZero() {
		return Quote{}, errcode.Wrap(errcode.ErrInsufficientLiquidity, "empty reserves")
	}
	fee, net, err := feeOnInput(amountIn, feeBP)
	if err != nil {
		return Quote{}, err
	}

	denominator, err := fixedpoint.Add(&s.ReserveIn, net)
	if err != nil {
		return Quote{}, err
	}
	remaining, err := fixedpoint.MulDiv(&s.ReserveIn, &s.ReserveOut, denominator, true)
	if err != nil {
		return Quote{}, err
	}

	var q Quote
	q.AmountIn.Set(net)
	q.Fee.Set(fee)
	q.AmountOut.Sub(&s.ReserveOut, remaining)
	return q, nil
}

func (constantProduct) QuoteInput(s State, amountOut *uint256.Int, feeBP uint32) (Quote, error) {
	if s.ReserveIn.IsZero() || !amountOut.Lt(&s.ReserveOut) {
		return Quote{}, errcode.Wrap(errcode.ErrInsufficientLiquidity, "output %s exceeds reserve %s",
			fixedpoint.FormatAmount(amountOut), fixedpoint.FormatAmount(&s.ReserveOut))
	}

	left := new(uint256.Int).Sub(&s.ReserveOut, amountOut)
	net, err := fixedpoint.MulDiv(&s.ReserveIn, amountOut, left, true)
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

func (constantProduct) Invariant(s State) (*uint256.Int, error) {
	return fixedpoint.Mul(&s.ReserveIn, &s.ReserveOut)
}
