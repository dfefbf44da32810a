package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"liquidityEngine/internal/curve"
	"liquidityEngine/internal/errcode"
	"liquidityEngine/internal/pool"
)

type mockTransfer struct {
	mock.Mock
}

func (m *mockTransfer) Transfer(ctx context.Context, token string, amount uint256.Int, from, to common.Address) error {
	args := m.Called(token, amount.Uint64(), from, to)
	return args.Error(0)
}

type recordingMetrics struct {
	ops   map[string]int
	fails map[string]int
	swaps []string
}

func (r *recordingMetrics) ObserveOperation(op string, err error) {
	if err != nil {
		r.fails[op]++
		return
	}
	r.ops[op]++
}

func (r *recordingMetrics) ObserveSwap(_ uint64, kind string, _, _, _ uint256.Int) {
	r.swaps = append(r.swaps, kind)
}

func TestCreatePool(t *testing.T) {
	h := newHarness(t)
	p := h.createPool(t, pool.Spec{TokenX: "USDA", TokenY: "STX", Curve: curve.KindConstantProduct, FeeBP: 30})

	assert.Equal(t, uint64(1), p.ID)
	assert.Equal(t, "STX", p.TokenX)
	assert.Equal(t, "USDA", p.TokenY)
	assert.True(t, p.ReserveX.IsZero())
	assert.True(t, p.ReserveY.IsZero())
	assert.True(t, p.FeeGrowth.X.IsZero())

	got, err := h.engine.Pool(1)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = h.engine.Pool(2)
	assert.ErrorIs(t, err, errcode.ErrPoolNotFound)
}

func TestCreatePoolUnauthorizedFirst(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.CreatePool(context.Background(), alice, pool.Spec{TokenX: "NOPE", TokenY: "STX", Curve: curve.KindConstantProduct})
	assert.ErrorIs(t, err, errcode.ErrUnauthorized)
	assert.Equal(t, uint32(100), errcode.CodeOf(err))
	assert.Empty(t, h.engine.Pools())
}

func TestCreatePoolStableNeedsStableTokens(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.CreatePool(context.Background(), owner, pool.Spec{
		TokenX: "STX", TokenY: "USDA", Curve: curve.KindStableSwap, Params: curve.Params{100}, FeeBP: 4,
	})
	assert.ErrorIs(t, err, errcode.ErrInvalidCurveParameters)
}

func TestShutdownGating(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p, added := h.seedConstantProduct(t)
	require.NoError(t, h.shutdown.Set(owner, true))

	_, err := h.engine.Swap(ctx, bob, SwapRequest{PoolID: p.ID, ZeroForOne: true, Amount: u(1000)})
	assert.ErrorIs(t, err, errcode.ErrShutdownActive)
	assert.Equal(t, uint32(114), errcode.CodeOf(err))

	_, err = h.engine.SwapExactOutput(ctx, bob, SwapRequest{PoolID: p.ID, ZeroForOne: true, Amount: u(10), Limit: u(1000)})
	assert.ErrorIs(t, err, errcode.ErrShutdownActive)

	_, err = h.engine.AddLiquidity(ctx, bob, AddLiquidityRequest{PoolID: p.ID, MaxX: u(10), MaxY: u(10)})
	assert.ErrorIs(t, err, errcode.ErrShutdownActive)

	_, err = h.engine.AddConcentratedLiquidity(ctx, bob, AddConcentratedRequest{PoolID: p.ID, TickLower: -10, TickUpper: 10, MaxX: u(10)})
	assert.ErrorIs(t, err, errcode.ErrShutdownActive)

	// exits stay open
	collected, err := h.engine.CollectFees(ctx, alice, added.PositionID)
	require.NoError(t, err)
	assert.True(t, collected.AmountX.IsZero())

	removed, err := h.engine.RemoveLiquidity(ctx, alice, RemoveLiquidityRequest{PositionID: added.PositionID, Liquidity: added.Liquidity})
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000), removed.AmountX.Uint64())
	assert.Equal(t, uint64(1_000_000), removed.AmountY.Uint64())

	_, err = h.engine.Position(added.PositionID)
	assert.ErrorIs(t, err, errcode.ErrPositionNotFound, "emptied position is dropped")
}

func TestTransferFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	transfers := &mockTransfer{}
	e := New(Config{Custodian: custodian}, Deps{
		Tokens:   h.tokens,
		Access:   h.gov,
		Shutdown: h.shutdown,
		Transfer: transfers,
	}, zaptest.NewLogger(t))

	p, err := e.CreatePool(ctx, owner, pool.Spec{TokenX: "STX", TokenY: "USDA", Curve: curve.KindConstantProduct, FeeBP: 30})
	require.NoError(t, err)

	transfers.On("Transfer", "STX", uint64(1_000_000), alice, custodian).Return(nil).Once()
	transfers.On("Transfer", "USDA", uint64(1_000_000), alice, custodian).Return(nil).Once()
	_, err = e.AddLiquidity(ctx, alice, AddLiquidityRequest{PoolID: p.ID, MaxX: u(1_000_000), MaxY: u(1_000_000)})
	require.NoError(t, err)

	before := e.StateDigest()
	transfers.On("Transfer", "STX", uint64(10_000), bob, custodian).Return(nil).Once()
	transfers.On("Transfer", "USDA", uint64(9871), custodian, bob).Return(errors.New("custodian frozen")).Once()
	transfers.On("Transfer", "STX", uint64(10_000), custodian, bob).Return(nil).Once()

	_, err = e.Swap(ctx, bob, SwapRequest{PoolID: p.ID, ZeroForOne: true, Amount: u(10_000)})
	assert.ErrorIs(t, err, errcode.ErrTransferFailed)
	assert.Equal(t, uint32(109), errcode.CodeOf(err))
	assert.Equal(t, before, e.StateDigest())
	transfers.AssertExpectations(t)
}

// cancellingTransfer cancels the operation context right after the first transfer
// it forwards.
type cancellingTransfer struct {
	next   AssetTransfer
	cancel context.CancelFunc
}

func (c *cancellingTransfer) Transfer(ctx context.Context, token string, amount uint256.Int, from, to common.Address) error {
	err := c.next.Transfer(ctx, token, amount, from, to)
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	return err
}

func TestCancelBetweenLegsReversesFirstLeg(t *testing.T) {
	h := newHarness(t)
	transfers := &cancellingTransfer{next: h.ledger}
	e := New(Config{Custodian: custodian}, Deps{
		Tokens:   h.tokens,
		Access:   h.gov,
		Shutdown: h.shutdown,
		Transfer: transfers,
	}, zaptest.NewLogger(t))

	p, err := e.CreatePool(context.Background(), owner, pool.Spec{TokenX: "STX", TokenY: "USDA", Curve: curve.KindConstantProduct, FeeBP: 30})
	require.NoError(t, err)
	_, err = e.AddLiquidity(context.Background(), alice, AddLiquidityRequest{PoolID: p.ID, MaxX: u(1_000_000), MaxY: u(1_000_000)})
	require.NoError(t, err)

	before := e.StateDigest()
	bobSTX, bobUSDA := h.balance("STX", bob), h.balance("USDA", bob)
	heldSTX := h.balance("STX", custodian)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	transfers.cancel = cancel

	_, err = e.Swap(ctx, bob, SwapRequest{PoolID: p.ID, ZeroForOne: true, Amount: u(10_000)})
	assert.ErrorIs(t, err, errcode.ErrTransferFailed)
	assert.Equal(t, before, e.StateDigest())
	assert.Equal(t, bobSTX, h.balance("STX", bob), "first leg must be reversed")
	assert.Equal(t, bobUSDA, h.balance("USDA", bob))
	assert.Equal(t, heldSTX, h.balance("STX", custodian))
}

func TestCancelledContextMovesNothing(t *testing.T) {
	h := newHarness(t)
	p, _ := h.seedConstantProduct(t)
	before := h.engine.StateDigest()
	bobSTX := h.balance("STX", bob)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.engine.Swap(ctx, bob, SwapRequest{PoolID: p.ID, ZeroForOne: true, Amount: u(10_000)})
	assert.ErrorIs(t, err, errcode.ErrTransferFailed)
	assert.Equal(t, before, h.engine.StateDigest())
	assert.Equal(t, bobSTX, h.balance("STX", bob))
}

func TestNoTransferConfigured(t *testing.T) {
	h := newHarness(t)
	e := New(Config{Custodian: custodian}, Deps{Tokens: h.tokens, Access: h.gov}, nil)
	p, err := e.CreatePool(context.Background(), owner, pool.Spec{TokenX: "STX", TokenY: "USDA", Curve: curve.KindConstantProduct})
	require.NoError(t, err)

	_, err = e.AddLiquidity(context.Background(), alice, AddLiquidityRequest{PoolID: p.ID, MaxX: u(100), MaxY: u(100)})
	assert.ErrorIs(t, err, errcode.ErrTransferFailed)
	assert.Empty(t, e.PoolPositions(p.ID))
}

func TestMetricsObserved(t *testing.T) {
	h := newHarness(t)
	metrics := &recordingMetrics{ops: map[string]int{}, fails: map[string]int{}}
	e := New(Config{Custodian: custodian}, Deps{
		Tokens:   h.tokens,
		Access:   h.gov,
		Transfer: h.ledger,
		Metrics:  metrics,
	}, nil)
	ctx := context.Background()

	p, err := e.CreatePool(ctx, owner, pool.Spec{TokenX: "STX", TokenY: "USDA", Curve: curve.KindConstantProduct, FeeBP: 30})
	require.NoError(t, err)
	_, err = e.AddLiquidity(ctx, alice, AddLiquidityRequest{PoolID: p.ID, MaxX: u(1_000_000), MaxY: u(1_000_000)})
	require.NoError(t, err)
	_, err = e.Swap(ctx, bob, SwapRequest{PoolID: p.ID, ZeroForOne: true, Amount: u(10_000)})
	require.NoError(t, err)
	_, err = e.Swap(ctx, bob, SwapRequest{PoolID: 9, ZeroForOne: true, Amount: u(10_000)})
	require.Error(t, err)

	assert.Equal(t, 1, metrics.ops["create_pool"])
	assert.Equal(t, 1, metrics.ops["add_liquidity"])
	assert.Equal(t, 1, metrics.ops["swap"])
	assert.Equal(t, 1, metrics.fails["swap"])
	assert.Equal(t, []string{curve.KindConstantProduct.String()}, metrics.swaps)
}

func TestSnapshotRestore(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	p, _ := h.seedConstantProduct(t)
	c := h.createPool(t, pool.Spec{TokenX: "STX", TokenY: "USDC", Curve: curve.KindConcentrated, FeeBP: 30, TickSpacing: 10})
	_, err := h.engine.AddConcentratedLiquidity(ctx, bob, AddConcentratedRequest{
		PoolID: c.ID, TickLower: -100, TickUpper: 100, MaxX: u(1_000_000), MaxY: u(1_000_000),
	})
	require.NoError(t, err)
	_, err = h.engine.Swap(ctx, carol, SwapRequest{PoolID: c.ID, ZeroForOne: true, Amount: u(1000)})
	require.NoError(t, err)

	snap := h.engine.Snapshot()
	require.Len(t, snap.Pools, 2)
	require.Len(t, snap.Ticks[c.ID], 2)
	assert.Equal(t, uint64(2), snap.LastPositionID)

	other := newHarness(t)
	other.ledger.Restore(h.ledger.Balances())
	require.NoError(t, other.engine.Restore(snap))
	assert.Equal(t, h.engine.StateDigest(), other.engine.StateDigest())
	assert.Equal(t, snap.Digest(), other.engine.StateDigest())

	// both replicas keep evolving identically
	req := SwapRequest{PoolID: p.ID, ZeroForOne: false, Amount: u(5000)}
	first, err := h.engine.Swap(ctx, carol, req)
	require.NoError(t, err)
	second, err := other.engine.Swap(ctx, carol, req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, h.engine.StateDigest(), other.engine.StateDigest())

	// a fresh position on the restored engine continues the id sequence
	res, err := other.engine.AddLiquidity(ctx, carol, AddLiquidityRequest{PoolID: p.ID, MaxX: u(1000), MaxY: u(1000)})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), res.PositionID)
}

func TestRestoreRejectsOrphans(t *testing.T) {
	h := newHarness(t)
	h.seedConstantProduct(t)
	snap := h.engine.Snapshot()
	snap.Positions[0].PoolID = 7

	err := newHarness(t).engine.Restore(snap)
	assert.ErrorIs(t, err, errcode.ErrPoolNotFound)
}
