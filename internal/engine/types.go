package engine

import (
	"github.com/holiman/uint256"
)

// SwapRequest trades one side of a pool for the other.
type SwapRequest struct {
	PoolID uint64
	// ZeroForOne sells TokenX for TokenY.
	ZeroForOne bool
	// Amount is the exact input for Swap and the exact output for SwapExactOutput.
	Amount uint256.Int
	// Limit is the minimum output for Swap and the maximum total input for
	// SwapExactOutput.
	Limit uint256.Int
	// SqrtPriceLimit bounds how far a concentrated swap may move the price.
	// Zero means no bound. Ignored by full-range pools.
	SqrtPriceLimit uint256.Int
}

// SwapResult is a filled swap. AmountIn excludes Fee; the trader paid AmountIn+Fee.
type SwapResult struct {
	PoolID    uint64
	AmountIn  uint256.Int
	Fee       uint256.Int
	AmountOut uint256.Int
	// concentrated pools only
	SqrtPrice    uint256.Int
	Tick         int32
	TicksCrossed int
}

// AddLiquidityRequest deposits into a full-range pool. PositionID zero opens a new
// position; otherwise the caller's existing position is augmented.
type AddLiquidityRequest struct {
	PoolID       uint64
	PositionID   uint64
	MaxX         uint256.Int
	MaxY         uint256.Int
	MinLiquidity uint256.Int
}

// AddConcentratedRequest deposits into [TickLower, TickUpper) of a concentrated pool.
type AddConcentratedRequest struct {
	PoolID       uint64
	PositionID   uint64
	TickLower    int32
	TickUpper    int32
	MaxX         uint256.Int
	MaxY         uint256.Int
	MinLiquidity uint256.Int
}

// LiquidityResult reports a deposit or withdrawal.
type LiquidityResult struct {
	PositionID uint64
	Liquidity  uint256.Int
	AmountX    uint256.Int
	AmountY    uint256.Int
}

// RemoveLiquidityRequest withdraws Liquidity units from a position.
type RemoveLiquidityRequest struct {
	PositionID uint64
	Liquidity  uint256.Int
	MinX       uint256.Int
	MinY       uint256.Int
}

// CollectResult reports fees paid out of a position.
type CollectResult struct {
	PositionID uint64
	AmountX    uint256.Int
	AmountY    uint256.Int
}
