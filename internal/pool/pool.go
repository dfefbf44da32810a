package pool

import (
	"github.com/holiman/uint256"

	"liquidityEngine/internal/curve"
	"liquidityEngine/internal/fixedpoint"
	"liquidityEngine/internal/tick"
)

// Pool is the committed state of one market. Values are copied freely; the
// orchestrator stages changes on a copy and commits it with Registry.Put.
type Pool struct {
	ID          uint64
	TokenX      string
	TokenY      string
	Curve       curve.Kind
	Params      curve.Params
	FeeBP       uint32
	TickSpacing int32
	DecimalsX   uint8
	DecimalsY   uint8

	ReserveX uint256.Int
	ReserveY uint256.Int
	// FeeGrowth is the global fee per liquidity unit, Q128.
	FeeGrowth tick.Growth
	// FeesX and FeesY total every fee charged since creation.
	FeesX uint256.Int
	FeesY uint256.Int
	// Liquidity is the sum of all position liquidity.
	Liquidity uint256.Int

	// concentrated pools only
	ActiveLiquidity uint256.Int
	SqrtPrice       uint256.Int
}

// Concentrated reports whether positions in p carry tick ranges.
func (p Pool) Concentrated() bool {
	return p.Curve == curve.KindConcentrated
}

// CurveConfig is the configuration the pool's curve was built from.
func (p Pool) CurveConfig() curve.Config {
	return curve.Config{
		Kind:        p.Curve,
		Params:      p.Params,
		FeeBP:       p.FeeBP,
		TickSpacing: p.TickSpacing,
		DecimalsX:   p.DecimalsX,
		DecimalsY:   p.DecimalsY,
	}
}

// CurrentTick derives the tick from the sqrt price. It is never stored.
func (p Pool) CurrentTick() (int32, error) {
	return fixedpoint.TickAtSqrtPrice(&p.SqrtPrice)
}

// Reserves returns (in, out) for a swap direction.
func (p *Pool) Reserves(zeroForOne bool) (*uint256.Int, *uint256.Int) {
	if zeroForOne {
		return &p.ReserveX, &p.ReserveY
	}
	return &p.ReserveY, &p.ReserveX
}

// Token returns the token on one side.
func (p Pool) Token(x bool) string {
	if x {
		return p.TokenX
	}
	return p.TokenY
}
