package engine

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityEngine/internal/curve"
	"liquidityEngine/internal/errcode"
	"liquidityEngine/internal/fixedpoint"
	"liquidityEngine/internal/pool"
	"liquidityEngine/internal/position"
	"liquidityEngine/internal/tick"
)

func liquidityFields(poolID uint64, res LiquidityResult) []zap.Field {
	return []zap.Field{
		zap.Uint64("pool_id", poolID),
		zap.Uint64("position_id", res.PositionID),
		zap.String("liquidity", fixedpoint.FormatAmount(&res.Liquidity)),
		zap.String("amount_x", fixedpoint.FormatAmount(&res.AmountX)),
		zap.String("amount_y", fixedpoint.FormatAmount(&res.AmountY)),
	}
}

// AddLiquidity deposits into a constant-product or stable-swap pool.
func (e *Engine) AddLiquidity(ctx context.Context, caller common.Address, req AddLiquidityRequest) (LiquidityResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.addLiquidity(ctx, caller, req)
	e.observe("add_liquidity", err, liquidityFields(req.PoolID, res)...)
	return res, err
}

func (e *Engine) addLiquidity(ctx context.Context, caller common.Address, req AddLiquidityRequest) (LiquidityResult, error) {
	if err := e.checkShutdown(); err != nil {
		return LiquidityResult{}, err
	}
	p, err := e.getPool(req.PoolID)
	if err != nil {
		return LiquidityResult{}, err
	}
	if p.Concentrated() {
		return LiquidityResult{}, errcode.Wrap(errcode.ErrInvalidParameters, "pool %d takes ranged liquidity", p.ID)
	}
	if req.MaxX.IsZero() || req.MaxY.IsZero() {
		return LiquidityResult{}, errcode.Wrap(errcode.ErrInvalidParameters, "both amounts are required")
	}
	pos, err := e.stagePosition(caller, req.PositionID, p, true, 0, 0)
	if err != nil {
		return LiquidityResult{}, err
	}

	liquidity, amountX, amountY, err := e.fullRangeDeposit(p, &req.MaxX, &req.MaxY)
	if err != nil {
		return LiquidityResult{}, err
	}
	if err := checkMinLiquidity(liquidity, &req.MinLiquidity); err != nil {
		return LiquidityResult{}, err
	}

	if err := pos.Accrue(p.FeeGrowth, false); err != nil {
		return LiquidityResult{}, err
	}
	if err := addTo(&pos.Liquidity, liquidity); err != nil {
		return LiquidityResult{}, err
	}
	if err := addTo(&p.Liquidity, liquidity); err != nil {
		return LiquidityResult{}, err
	}
	if err := addTo(&p.ReserveX, amountX); err != nil {
		return LiquidityResult{}, err
	}
	if err := addTo(&p.ReserveY, amountY); err != nil {
		return LiquidityResult{}, err
	}

	if err := e.settle(ctx,
		newLeg(p.TokenX, amountX, caller, e.cfg.Custodian),
		newLeg(p.TokenY, amountY, caller, e.cfg.Custodian),
	); err != nil {
		return LiquidityResult{}, err
	}

	if err := e.pools.Put(p); err != nil {
		return LiquidityResult{}, err
	}
	res := LiquidityResult{PositionID: e.commitPosition(pos)}
	res.Liquidity.Set(liquidity)
	res.AmountX.Set(amountX)
	res.AmountY.Set(amountY)
	return res, nil
}

// fullRangeDeposit sizes a deposit. The first deposit mints the invariant's natural
// liquidity measure (sqrt(x*y) or D); later ones mint pro rata to the scarcer side and
// pay the paired amounts rounded up.
func (e *Engine) fullRangeDeposit(p pool.Pool, maxX, maxY *uint256.Int) (liquidity, amountX, amountY *uint256.Int, err error) {
	if p.Liquidity.IsZero() {
		c, ok := e.pools.Curve(p.ID)
		if !ok {
			return nil, nil, nil, errcode.Wrap(errcode.ErrPoolNotFound, "curve of pool %d", p.ID)
		}
		x, err := fixedpoint.Add(&p.ReserveX, maxX)
		if err != nil {
			return nil, nil, nil, err
		}
		y, err := fixedpoint.Add(&p.ReserveY, maxY)
		if err != nil {
			return nil, nil, nil, err
		}
		s := curve.State{ZeroForOne: true}
		s.ReserveIn.Set(x)
		s.ReserveOut.Set(y)
		k, err := c.Invariant(s)
		if err != nil {
			return nil, nil, nil, err
		}
		liquidity = k
		if c.Kind() == curve.KindConstantProduct {
			liquidity = fixedpoint.Sqrt(k)
		}
		if liquidity.Gt(fixedpoint.MaxUint128) {
			return nil, nil, nil, errcode.Wrap(errcode.ErrArithmeticOverflow, "liquidity exceeds 128 bits")
		}
		return liquidity, new(uint256.Int).Set(maxX), new(uint256.Int).Set(maxY), nil
	}

	if p.ReserveX.IsZero() || p.ReserveY.IsZero() {
		return nil, nil, nil, errcode.Wrap(errcode.ErrInsufficientLiquidity, "pool %d has an empty side", p.ID)
	}
	fromX, err := fixedpoint.MulDiv(maxX, &p.Liquidity, &p.ReserveX, false)
	if err != nil {
		return nil, nil, nil, err
	}
	fromY, err := fixedpoint.MulDiv(maxY, &p.Liquidity, &p.ReserveY, false)
	if err != nil {
		return nil, nil, nil, err
	}
	liquidity = fromX
	if fromY.Lt(fromX) {
		liquidity = fromY
	}
	if liquidity.IsZero() {
		return nil, nil, nil, errcode.Wrap(errcode.ErrInvalidParameters, "deposit too small for pool %d", p.ID)
	}
	total, err := fixedpoint.Add(&p.Liquidity, liquidity)
	if err != nil {
		return nil, nil, nil, err
	}
	if total.Gt(fixedpoint.MaxUint128) {
		return nil, nil, nil, errcode.Wrap(errcode.ErrArithmeticOverflow, "liquidity exceeds 128 bits")
	}
	if amountX, err = fixedpoint.MulDiv(liquidity, &p.ReserveX, &p.Liquidity, true); err != nil {
		return nil, nil, nil, err
	}
	if amountY, err = fixedpoint.MulDiv(liquidity, &p.ReserveY, &p.Liquidity, true); err != nil {
		return nil, nil, nil, err
	}
	return liquidity, amountX, amountY, nil
}

// AddConcentratedLiquidity deposits into a tick range of a concentrated pool.
func (e *Engine) AddConcentratedLiquidity(ctx context.Context, caller common.Address, req AddConcentratedRequest) (LiquidityResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.addConcentratedLiquidity(ctx, caller, req)
	e.observe("add_concentrated_liquidity", err, append(liquidityFields(req.PoolID, res),
		zap.Int32("tick_lower", req.TickLower),
		zap.Int32("tick_upper", req.TickUpper),
	)...)
	return res, err
}

func (e *Engine) addConcentratedLiquidity(ctx context.Context, caller common.Address, req AddConcentratedRequest) (LiquidityResult, error) {
	if err := e.checkShutdown(); err != nil {
		return LiquidityResult{}, err
	}
	if err := tick.CheckOrder(req.TickLower, req.TickUpper); err != nil {
		return LiquidityResult{}, err
	}
	p, err := e.getPool(req.PoolID)
	if err != nil {
		return LiquidityResult{}, err
	}
	if !p.Concentrated() {
		return LiquidityResult{}, errcode.Wrap(errcode.ErrInvalidParameters, "pool %d is not concentrated", p.ID)
	}
	if err := tick.CheckRange(req.TickLower, req.TickUpper, p.TickSpacing); err != nil {
		return LiquidityResult{}, err
	}
	if req.MaxX.IsZero() && req.MaxY.IsZero() {
		return LiquidityResult{}, errcode.Wrap(errcode.ErrInvalidParameters, "no amounts")
	}
	pos, err := e.stagePosition(caller, req.PositionID, p, false, req.TickLower, req.TickUpper)
	if err != nil {
		return LiquidityResult{}, err
	}

	current, err := p.CurrentTick()
	if err != nil {
		return LiquidityResult{}, err
	}
	liquidity, amountX, amountY, err := rangeDeposit(p, req)
	if err != nil {
		return LiquidityResult{}, err
	}
	if err := checkMinLiquidity(liquidity, &req.MinLiquidity); err != nil {
		return LiquidityResult{}, err
	}
	if liquidity.IsZero() {
		return LiquidityResult{}, errcode.Wrap(errcode.ErrInvalidParameters, "deposit too small for range [%d, %d)", req.TickLower, req.TickUpper)
	}

	ix := e.tickIndex(p.ID).Clone()
	if err := ix.AddRange(req.TickLower, req.TickUpper, liquidity, current, p.FeeGrowth, &p.ActiveLiquidity); err != nil {
		return LiquidityResult{}, err
	}
	inside := ix.FeeGrowthInside(req.TickLower, req.TickUpper, current, p.FeeGrowth)
	if req.PositionID == 0 {
		pos.FeeGrowthInsideLast = inside
	}
	if err := pos.Accrue(inside, true); err != nil {
		return LiquidityResult{}, err
	}
	if err := addTo(&pos.Liquidity, liquidity); err != nil {
		return LiquidityResult{}, err
	}
	if err := addTo(&p.Liquidity, liquidity); err != nil {
		return LiquidityResult{}, err
	}
	if err := addTo(&p.ReserveX, amountX); err != nil {
		return LiquidityResult{}, err
	}
	if err := addTo(&p.ReserveY, amountY); err != nil {
		return LiquidityResult{}, err
	}

	if err := e.settle(ctx,
		newLeg(p.TokenX, amountX, caller, e.cfg.Custodian),
		newLeg(p.TokenY, amountY, caller, e.cfg.Custodian),
	); err != nil {
		return LiquidityResult{}, err
	}

	if err := e.pools.Put(p); err != nil {
		return LiquidityResult{}, err
	}
	e.ticks[p.ID] = ix
	res := LiquidityResult{PositionID: e.commitPosition(pos)}
	res.Liquidity.Set(liquidity)
	res.AmountX.Set(amountX)
	res.AmountY.Set(amountY)
	return res, nil
}

// rangeDeposit finds the largest liquidity the caps fund and the amounts it costs,
// rounded up. Rounding can push an amount one unit over its cap; the liquidity is
// then stepped down.
func rangeDeposit(p pool.Pool, req AddConcentratedRequest) (liquidity, amountX, amountY *uint256.Int, err error) {
	sqrtA, err := fixedpoint.SqrtPriceAtTick(req.TickLower)
	if err != nil {
		return nil, nil, nil, err
	}
	sqrtB, err := fixedpoint.SqrtPriceAtTick(req.TickUpper)
	if err != nil {
		return nil, nil, nil, err
	}
	liquidity, err = fixedpoint.LiquidityForAmounts(&p.SqrtPrice, sqrtA, sqrtB, &req.MaxX, &req.MaxY)
	if err != nil {
		return nil, nil, nil, err
	}
	if liquidity.Gt(fixedpoint.MaxUint128) {
		return nil, nil, nil, errcode.Wrap(errcode.ErrArithmeticOverflow, "liquidity exceeds 128 bits")
	}

	for attempt := 0; attempt < 3; attempt++ {
		amountX, amountY, err = rangeAmounts(&p.SqrtPrice, sqrtA, sqrtB, liquidity, true)
		if err != nil {
			return nil, nil, nil, err
		}
		if !amountX.Gt(&req.MaxX) && !amountY.Gt(&req.MaxY) {
			return liquidity, amountX, amountY, nil
		}
		if liquidity.IsZero() {
			break
		}
		liquidity = new(uint256.Int).Sub(liquidity, uint256.NewInt(1))
	}
	return nil, nil, nil, errcode.Wrap(errcode.ErrSlippageExceeded, "range [%d, %d) needs more than the amounts offered", req.TickLower, req.TickUpper)
}

// rangeAmounts returns the token amounts backing liquidity over [sqrtA, sqrtB) at the
// current price.
func rangeAmounts(sqrtPrice, sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (amountX, amountY *uint256.Int, err error) {
	switch {
	case !sqrtPrice.Gt(sqrtA):
		amountX, err = fixedpoint.Amount0Delta(sqrtA, sqrtB, liquidity, roundUp)
		return amountX, new(uint256.Int), err
	case sqrtPrice.Lt(sqrtB):
		if amountX, err = fixedpoint.Amount0Delta(sqrtPrice, sqrtB, liquidity, roundUp); err != nil {
			return nil, nil, err
		}
		amountY, err = fixedpoint.Amount1Delta(sqrtA, sqrtPrice, liquidity, roundUp)
		return amountX, amountY, err
	default:
		amountY, err = fixedpoint.Amount1Delta(sqrtA, sqrtB, liquidity, roundUp)
		return new(uint256.Int), amountY, err
	}
}

// RemoveLiquidity withdraws liquidity from the caller's position. It stays available
// during shutdown so providers can always exit.
func (e *Engine) RemoveLiquidity(ctx context.Context, caller common.Address, req RemoveLiquidityRequest) (LiquidityResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, poolID, err := e.removeLiquidity(ctx, caller, req)
	e.observe("remove_liquidity", err, liquidityFields(poolID, res)...)
	return res, err
}

func (e *Engine) removeLiquidity(ctx context.Context, caller common.Address, req RemoveLiquidityRequest) (LiquidityResult, uint64, error) {
	pos, err := e.ownedPosition(caller, req.PositionID)
	if err != nil {
		return LiquidityResult{}, 0, err
	}
	if req.Liquidity.IsZero() {
		return LiquidityResult{}, pos.PoolID, errcode.Wrap(errcode.ErrInvalidParameters, "zero liquidity")
	}
	if req.Liquidity.Gt(&pos.Liquidity) {
		return LiquidityResult{}, pos.PoolID, errcode.Wrap(errcode.ErrInsufficientLiquidity, "position %d holds %s, asked %s",
			pos.ID, fixedpoint.FormatAmount(&pos.Liquidity), fixedpoint.FormatAmount(&req.Liquidity))
	}
	p, err := e.getPool(pos.PoolID)
	if err != nil {
		return LiquidityResult{}, pos.PoolID, err
	}

	var (
		amountX, amountY *uint256.Int
		ix               *tick.Index
	)
	if p.Concentrated() {
		current, err := p.CurrentTick()
		if err != nil {
			return LiquidityResult{}, p.ID, err
		}
		ix = e.tickIndex(p.ID).Clone()
		if err := pos.Accrue(ix.FeeGrowthInside(pos.TickLower, pos.TickUpper, current, p.FeeGrowth), true); err != nil {
			return LiquidityResult{}, p.ID, err
		}
		sqrtA, err := fixedpoint.SqrtPriceAtTick(pos.TickLower)
		if err != nil {
			return LiquidityResult{}, p.ID, err
		}
		sqrtB, err := fixedpoint.SqrtPriceAtTick(pos.TickUpper)
		if err != nil {
			return LiquidityResult{}, p.ID, err
		}
		if amountX, amountY, err = rangeAmounts(&p.SqrtPrice, sqrtA, sqrtB, &req.Liquidity, false); err != nil {
			return LiquidityResult{}, p.ID, err
		}
		if err := ix.RemoveRange(pos.TickLower, pos.TickUpper, &req.Liquidity, current, &p.ActiveLiquidity); err != nil {
			return LiquidityResult{}, p.ID, err
		}
	} else {
		if err := pos.Accrue(p.FeeGrowth, false); err != nil {
			return LiquidityResult{}, p.ID, err
		}
		if amountX, err = fixedpoint.MulDiv(&req.Liquidity, &p.ReserveX, &p.Liquidity, false); err != nil {
			return LiquidityResult{}, p.ID, err
		}
		if amountY, err = fixedpoint.MulDiv(&req.Liquidity, &p.ReserveY, &p.Liquidity, false); err != nil {
			return LiquidityResult{}, p.ID, err
		}
	}

	if amountX.Lt(&req.MinX) || amountY.Lt(&req.MinY) {
		return LiquidityResult{}, p.ID, errcode.Wrap(errcode.ErrSlippageExceeded, "withdrawal %s/%s below minimum %s/%s",
			fixedpoint.FormatAmount(amountX), fixedpoint.FormatAmount(amountY),
			fixedpoint.FormatAmount(&req.MinX), fixedpoint.FormatAmount(&req.MinY))
	}
	if err := subFrom(&pos.Liquidity, &req.Liquidity); err != nil {
		return LiquidityResult{}, p.ID, err
	}
	if err := subFrom(&p.Liquidity, &req.Liquidity); err != nil {
		return LiquidityResult{}, p.ID, err
	}
	if err := subFrom(&p.ReserveX, amountX); err != nil {
		return LiquidityResult{}, p.ID, err
	}
	if err := subFrom(&p.ReserveY, amountY); err != nil {
		return LiquidityResult{}, p.ID, err
	}

	if err := e.settle(ctx,
		newLeg(p.TokenX, amountX, e.cfg.Custodian, caller),
		newLeg(p.TokenY, amountY, e.cfg.Custodian, caller),
	); err != nil {
		return LiquidityResult{}, p.ID, err
	}

	if err := e.pools.Put(p); err != nil {
		return LiquidityResult{}, p.ID, err
	}
	if ix != nil {
		e.ticks[p.ID] = ix
	}
	e.positions.Put(pos)

	res := LiquidityResult{PositionID: pos.ID}
	res.Liquidity.Set(&req.Liquidity)
	res.AmountX.Set(amountX)
	res.AmountY.Set(amountY)
	return res, p.ID, nil
}

// CollectFees pays out the fees owed to a concentrated position. Full-range
// positions have nothing to collect: their fees compound into reserves.
func (e *Engine) CollectFees(ctx context.Context, caller common.Address, positionID uint64) (CollectResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.collectFees(ctx, caller, positionID)
	e.observe("collect_fees", err,
		zap.Uint64("position_id", positionID),
		zap.String("amount_x", fixedpoint.FormatAmount(&res.AmountX)),
		zap.String("amount_y", fixedpoint.FormatAmount(&res.AmountY)),
	)
	return res, err
}

func (e *Engine) collectFees(ctx context.Context, caller common.Address, positionID uint64) (CollectResult, error) {
	pos, err := e.ownedPosition(caller, positionID)
	if err != nil {
		return CollectResult{}, err
	}
	p, err := e.getPool(pos.PoolID)
	if err != nil {
		return CollectResult{}, err
	}
	res := CollectResult{PositionID: pos.ID}
	if !p.Concentrated() {
		return res, nil
	}

	current, err := p.CurrentTick()
	if err != nil {
		return CollectResult{}, err
	}
	inside := e.tickIndex(p.ID).FeeGrowthInside(pos.TickLower, pos.TickUpper, current, p.FeeGrowth)
	if err := pos.Accrue(inside, true); err != nil {
		return CollectResult{}, err
	}
	res.AmountX.Set(&pos.OwedX)
	res.AmountY.Set(&pos.OwedY)
	pos.OwedX.Clear()
	pos.OwedY.Clear()

	if err := e.settle(ctx,
		newLeg(p.TokenX, &res.AmountX, e.cfg.Custodian, caller),
		newLeg(p.TokenY, &res.AmountY, e.cfg.Custodian, caller),
	); err != nil {
		return CollectResult{}, err
	}
	e.positions.Put(pos)
	return res, nil
}

// stagePosition returns a working copy of the caller's position, or a fresh one when
// id is zero.
func (e *Engine) stagePosition(caller common.Address, id uint64, p pool.Pool, fullRange bool, lower, upper int32) (position.Position, error) {
	if id == 0 {
		return position.Position{
			Owner:               caller,
			PoolID:              p.ID,
			FullRange:           fullRange,
			TickLower:           lower,
			TickUpper:           upper,
			FeeGrowthInsideLast: p.FeeGrowth,
		}, nil
	}
	pos, err := e.ownedPosition(caller, id)
	if err != nil {
		return position.Position{}, err
	}
	if pos.PoolID != p.ID || pos.FullRange != fullRange || pos.TickLower != lower || pos.TickUpper != upper {
		return position.Position{}, errcode.Wrap(errcode.ErrInvalidParameters, "position %d does not match pool %d range [%d, %d)", id, p.ID, lower, upper)
	}
	return pos, nil
}

func (e *Engine) commitPosition(pos position.Position) uint64 {
	if pos.ID == 0 {
		return e.positions.Insert(pos)
	}
	e.positions.Put(pos)
	return pos.ID
}

func checkMinLiquidity(liquidity, min *uint256.Int) error {
	if liquidity.Lt(min) {
		return errcode.Wrap(errcode.ErrSlippageExceeded, "liquidity %s below minimum %s",
			fixedpoint.FormatAmount(liquidity), fixedpoint.FormatAmount(min))
	}
	return nil
}

func addTo(dst, v *uint256.Int) error {
	sum, err := fixedpoint.Add(dst, v)
	if err != nil {
		return err
	}
	dst.Set(sum)
	return nil
}

func subFrom(dst, v *uint256.Int) error {
	diff, err := fixedpoint.Sub(dst, v)
	if err != nil {
		return errcode.Wrap(errcode.ErrInsufficientLiquidity, "%v", err)
	}
	dst.Set(diff)
	return nil
}
