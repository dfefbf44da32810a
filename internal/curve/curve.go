package curve

import (
	"fmt"

	"github.com/holiman/uint256"

	"liquidityEngine/internal/errcode"
	"liquidityEngine/internal/fixedpoint"
)

// Kind tags the pricing function of a pool.
type Kind uint8

const (
	KindConstantProduct Kind = iota + 1
	KindStableSwap
	KindConcentrated
)

const (
	// MaxFeeBP is a 100% fee in basis points.
	MaxFeeBP = 10000
	// ParamCount is the size of the per-pool parameter vector.
	ParamCount = 4
)

var feeDenominator = uint256.NewInt(MaxFeeBP)

func (k Kind) String() string {
	switch k {
	case KindConstantProduct:
		return "constant_product"
	case KindStableSwap:
		return "stable_swap"
	case KindConcentrated:
		return "concentrated"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind maps the wire name of a curve to its Kind.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "constant_product":
		return KindConstantProduct, nil
	case "stable_swap":
		return KindStableSwap, nil
	case "concentrated":
		return KindConcentrated, nil
	default:
		return 0, errcode.Wrap(errcode.ErrInvalidCurveParameters, "unknown curve %q", name)
	}
}

// Params is the fixed-size parameter vector. Slot meaning depends on the Kind:
// stable-swap uses [0] as the amplification coefficient, concentrated uses [0]
// as the initial tick. Unused slots must be zero.
type Params [ParamCount]int64

// State is the market a quote is computed against. Reserves are in token units
// ordered by swap direction. The price fields are read by concentrated curves only.
type State struct {
	ReserveIn  uint256.Int
	ReserveOut uint256.Int
	ZeroForOne bool

	SqrtPrice  uint256.Int
	SqrtTarget uint256.Int
	Liquidity  uint256.Int
}

// Quote is the result of pricing one swap, or one step of a concentrated swap.
// AmountIn excludes Fee; the trader pays AmountIn+Fee.
type Quote struct {
	AmountIn      uint256.Int
	Fee           uint256.Int
	AmountOut     uint256.Int
	SqrtPriceNext uint256.Int
}

// Total returns AmountIn+Fee.
func (q Quote) Total() (*uint256.Int, error) {
	return fixedpoint.Add(&q.AmountIn, &q.Fee)
}

// Curve prices swaps for one pool.
type Curve interface {
	Kind() Kind
	QuoteOutput(s State, amountIn *uint256.Int, feeBP uint32) (Quote, error)
	QuoteInput(s State, amountOut *uint256.Int, feeBP uint32) (Quote, error)
	Invariant(s State) (*uint256.Int, error)
}

// Config is everything needed to build and validate a curve at pool creation.
type Config struct {
	Kind        Kind
	Params      Params
	FeeBP       uint32
	TickSpacing int32
	DecimalsX   uint8
	DecimalsY   uint8
}

// New validates cfg and returns the curve for its Kind.
func New(cfg Config) (Curve, error) {
	if cfg.FeeBP > MaxFeeBP {
		return nil, errcode.Wrap(errcode.ErrInvalidParameters, "fee %d bp exceeds %d", cfg.FeeBP, MaxFeeBP)
	}
	switch cfg.Kind {
	case KindConstantProduct:
		if err := requireZero(cfg.Params, 0); err != nil {
			return nil, err
		}
		return constantProduct{}, nil
	case KindStableSwap:
		return newStableSwap(cfg)
	case KindConcentrated:
		return newConcentrated(cfg)
	default:
		return nil, errcode.Wrap(errcode.ErrInvalidCurveParameters, "unknown curve kind %d", cfg.Kind)
	}
}

func requireZero(p Params, from int) error {
	for i := from; i < ParamCount; i++ {
		if p[i] != 0 {
			return errcode.Wrap(errcode.ErrInvalidCurveParameters, "param %d must be zero", i)
		}
	}
	return nil
}

// feeOnInput splits amountIn into the fee (rounded up) and the remainder.
func feeOnInput(amountIn *uint256.Int, feeBP uint32) (*uint256.Int, *uint256.Int, error) {
	fee, err := fixedpoint.MulDiv(amountIn, uint256.NewInt(uint64(feeBP)), feeDenominator, true)
	if err != nil {
		return nil, nil, err
	}
	return fee, new(uint256.Int).Sub(amountIn, fee), nil
}

// grossUp returns the smallest gross input whose post-fee remainder covers net.
func grossUp(net *uint256.Int, feeBP uint32) (*uint256.Int, error) {
	if feeBP >= MaxFeeBP {
		return nil, errcode.Wrap(errcode.ErrInsufficientLiquidity, "fee consumes the whole input")
	}
	return fixedpoint.MulDiv(net, feeDenominator, uint256.NewInt(uint64(MaxFeeBP-feeBP)), true)
}
