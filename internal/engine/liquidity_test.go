package engine

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityEngine/internal/curve"
	"liquidityEngine/internal/errcode"
	"liquidityEngine/internal/fixedpoint"
	"liquidityEngine/internal/pool"
)

func TestFullRangeLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p, first := h.seedConstantProduct(t)

	assert.Equal(t, uint64(1), first.PositionID)
	assert.Equal(t, uint64(1_000_000), first.Liquidity.Uint64())

	// the scarcer side sets the mint, the other side is taken pro rata
	second, err := h.engine.AddLiquidity(ctx, bob, AddLiquidityRequest{
		PoolID:       p.ID,
		MaxX:         u(500_000),
		MaxY:         u(1_000_000),
		MinLiquidity: u(500_000),
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.PositionID)
	assert.Equal(t, uint64(500_000), second.Liquidity.Uint64())
	assert.Equal(t, uint64(500_000), second.AmountX.Uint64())
	assert.Equal(t, uint64(500_000), second.AmountY.Uint64())

	swapped, err := h.engine.Swap(ctx, carol, SwapRequest{PoolID: p.ID, ZeroForOne: true, Amount: u(10_000), Limit: u(9904)})
	require.NoError(t, err)
	assert.Equal(t, uint64(30), swapped.Fee.Uint64())
	assert.Equal(t, uint64(9970), swapped.AmountIn.Uint64())
	assert.Equal(t, uint64(9904), swapped.AmountOut.Uint64())

	got, err := h.engine.Pool(p.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_510_000), got.ReserveX.Uint64(), "fee compounds into the reserve")
	assert.Equal(t, uint64(1_490_096), got.ReserveY.Uint64())
	assert.Equal(t, uint64(30), got.FeesX.Uint64())
	assert.True(t, got.FeesY.IsZero())
	assert.Equal(t, dec("6805647338418769269267492148635364"), got.FeeGrowth.X)
	assert.Equal(t, got.ReserveX, *h.balance("STX", custodian))
	assert.Equal(t, got.ReserveY, *h.balance("USDA", custodian))

	removed, err := h.engine.RemoveLiquidity(ctx, bob, RemoveLiquidityRequest{
		PositionID: second.PositionID,
		Liquidity:  second.Liquidity,
		MinX:       u(503_333),
		MinY:       u(496_698),
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(503_333), removed.AmountX.Uint64())
	assert.Equal(t, uint64(496_698), removed.AmountY.Uint64())

	_, err = h.engine.Position(second.PositionID)
	assert.ErrorIs(t, err, errcode.ErrPositionNotFound)

	// alice's share of the fee is tracked on her position
	_, err = h.engine.AddLiquidity(ctx, alice, AddLiquidityRequest{
		PoolID:     p.ID,
		PositionID: first.PositionID,
		MaxX:       u(1000),
		MaxY:       u(1000),
	})
	require.NoError(t, err)
	pos, err := h.engine.Position(first.PositionID)
	require.NoError(t, err)
	assert.Equal(t, uint64(19), pos.EarnedX.Uint64())
	assert.True(t, pos.OwedX.IsZero(), "full-range fees are not collectable")
	assert.Equal(t, pos.Liquidity, h.poolLiquidity(t, p.ID))
}

func (h *harness) poolLiquidity(t *testing.T, id uint64) uint256.Int {
	t.Helper()
	p, err := h.engine.Pool(id)
	require.NoError(t, err)
	return p.Liquidity
}

func TestRemoveLiquidityErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, added := h.seedConstantProduct(t)
	before := h.engine.StateDigest()

	cases := []struct {
		name   string
		caller string
		req    RemoveLiquidityRequest
		want   *errcode.Error
	}{
		{
			name: "unknown position",
			req:  RemoveLiquidityRequest{PositionID: 99, Liquidity: u(1)},
			want: errcode.ErrPositionNotFound,
		},
		{
			name:   "not the owner",
			caller: "bob",
			req:    RemoveLiquidityRequest{PositionID: added.PositionID, Liquidity: u(1)},
			want:   errcode.ErrUnauthorized,
		},
		{
			name: "more than held",
			req:  RemoveLiquidityRequest{PositionID: added.PositionID, Liquidity: u(1_000_001)},
			want: errcode.ErrInsufficientLiquidity,
		},
		{
			name: "zero",
			req:  RemoveLiquidityRequest{PositionID: added.PositionID},
			want: errcode.ErrInvalidParameters,
		},
		{
			name: "minimum not met",
			req:  RemoveLiquidityRequest{PositionID: added.PositionID, Liquidity: u(1000), MinX: u(1001)},
			want: errcode.ErrSlippageExceeded,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			caller := alice
			if tc.caller == "bob" {
				caller = bob
			}
			_, err := h.engine.RemoveLiquidity(ctx, caller, tc.req)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, tc.want.Code, errcode.CodeOf(err))
		})
	}
	assert.Equal(t, before, h.engine.StateDigest())
}

func TestAddLiquidityErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p, added := h.seedConstantProduct(t)
	c := h.createPool(t, pool.Spec{TokenX: "STX", TokenY: "USDC", Curve: curve.KindConcentrated, TickSpacing: 10})

	_, err := h.engine.AddLiquidity(ctx, alice, AddLiquidityRequest{PoolID: 42, MaxX: u(1), MaxY: u(1)})
	assert.ErrorIs(t, err, errcode.ErrPoolNotFound)

	_, err = h.engine.AddLiquidity(ctx, alice, AddLiquidityRequest{PoolID: c.ID, MaxX: u(1), MaxY: u(1)})
	assert.ErrorIs(t, err, errcode.ErrInvalidParameters)

	_, err = h.engine.AddLiquidity(ctx, alice, AddLiquidityRequest{PoolID: p.ID, MaxX: u(1)})
	assert.ErrorIs(t, err, errcode.ErrInvalidParameters)

	_, err = h.engine.AddLiquidity(ctx, bob, AddLiquidityRequest{PoolID: p.ID, PositionID: added.PositionID, MaxX: u(10), MaxY: u(10)})
	assert.ErrorIs(t, err, errcode.ErrUnauthorized)

	_, err = h.engine.AddLiquidity(ctx, alice, AddLiquidityRequest{PoolID: p.ID, MaxX: u(10), MaxY: u(10), MinLiquidity: u(11)})
	assert.ErrorIs(t, err, errcode.ErrSlippageExceeded)

	_, err = h.engine.AddConcentratedLiquidity(ctx, alice, AddConcentratedRequest{
		PoolID: c.ID, PositionID: added.PositionID, TickLower: -10, TickUpper: 10, MaxX: u(10), MaxY: u(10),
	})
	assert.ErrorIs(t, err, errcode.ErrInvalidParameters, "position belongs to another pool")

	// nothing was charged for the rejected deposits
	assert.Equal(t, uint64(1_000_000), h.balance("STX", custodian).Uint64())
}

func TestStableSwapPool(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p := h.createPool(t, pool.Spec{TokenX: "USDC", TokenY: "USDA", Curve: curve.KindStableSwap, Params: curve.Params{100}, FeeBP: 4})
	require.Equal(t, "USDA", p.TokenX)

	added, err := h.engine.AddLiquidity(ctx, alice, AddLiquidityRequest{
		PoolID: p.ID,
		MaxX:   u(1_000_000_000_000),
		MaxY:   u(1_000_000_000_000),
	})
	require.NoError(t, err)
	assert.Equal(t, dec("2000000000000000000000000"), added.Liquidity, "first mint is D")

	swapped, err := h.engine.Swap(ctx, bob, SwapRequest{PoolID: p.ID, ZeroForOne: true, Amount: u(1_000_000_000)})
	require.NoError(t, err)
	assert.Equal(t, uint64(400_000), swapped.Fee.Uint64())
	assert.Equal(t, uint64(999_600_000), swapped.AmountIn.Uint64())
	assert.Equal(t, uint64(999_590_107), swapped.AmountOut.Uint64())

	got, err := h.engine.Pool(p.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_001_000_000_000), got.ReserveX.Uint64())
	assert.Equal(t, uint64(1_000_000_000_000-999_590_107), got.ReserveY.Uint64())
	assert.False(t, got.FeeGrowth.X.IsZero())
}

func TestFeeGrowthMonotonic(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p, _ := h.seedConstantProduct(t)

	var last pool.Pool
	for i := 0; i < 6; i++ {
		_, err := h.engine.Swap(ctx, carol, SwapRequest{PoolID: p.ID, ZeroForOne: i%2 == 0, Amount: u(2500)})
		require.NoError(t, err)
		got, err := h.engine.Pool(p.ID)
		require.NoError(t, err)
		assert.False(t, got.FeeGrowth.X.Lt(&last.FeeGrowth.X))
		assert.False(t, got.FeeGrowth.Y.Lt(&last.FeeGrowth.Y))
		last = got
	}

	// accrued fees never exceed what was charged
	pos := h.engine.PoolPositions(p.ID)[0]
	require.NoError(t, pos.Accrue(last.FeeGrowth, false))
	assert.False(t, pos.EarnedX.Gt(&last.FeesX))
	assert.False(t, pos.EarnedY.Gt(&last.FeesY))
	assert.False(t, pos.EarnedX.IsZero())
}

func TestRangeValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p, _ := h.seedConstantProduct(t)
	c := h.createPool(t, pool.Spec{TokenX: "STX", TokenY: "USDC", Curve: curve.KindConcentrated, TickSpacing: 10})

	cases := []struct {
		name  string
		pool  uint64
		lower int32
		upper int32
		want  *errcode.Error
	}{
		{name: "inverted", pool: c.ID, lower: 100, upper: -100, want: errcode.ErrRangeInvalid},
		{name: "inverted on constant product", pool: p.ID, lower: 100, upper: -100, want: errcode.ErrRangeInvalid},
		{name: "inverted on missing pool", pool: 42, lower: 100, upper: -100, want: errcode.ErrRangeInvalid},
		{name: "empty", pool: c.ID, lower: 10, upper: 10, want: errcode.ErrRangeInvalid},
		{name: "inverted and misaligned", pool: c.ID, lower: 105, upper: -105, want: errcode.ErrRangeInvalid},
		{name: "misaligned", pool: c.ID, lower: -105, upper: 100, want: errcode.ErrInvalidParameters},
		{name: "beyond max tick", pool: c.ID, lower: 0, upper: fixedpoint.MaxTick + 10, want: errcode.ErrInvalidParameters},
		{name: "missing pool", pool: 42, lower: -100, upper: 100, want: errcode.ErrPoolNotFound},
		{name: "constant product pool", pool: p.ID, lower: -100, upper: 100, want: errcode.ErrInvalidParameters},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.engine.AddConcentratedLiquidity(ctx, alice, AddConcentratedRequest{
				PoolID: tc.pool, TickLower: tc.lower, TickUpper: tc.upper, MaxX: u(1000), MaxY: u(1000),
			})
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, tc.want.Code, errcode.CodeOf(err))
		})
	}

	ticks, err := h.engine.Ticks(c.ID)
	require.NoError(t, err)
	assert.Empty(t, ticks)
}
