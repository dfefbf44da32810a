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
	"liquidityEngine/internal/tick"
)

type swapPlan struct {
	pool   pool.Pool
	ticks  *tick.Index
	result SwapResult
}

// Swap sells exactly req.Amount and fails unless at least req.Limit comes out.
func (e *Engine) Swap(ctx context.Context, caller common.Address, req SwapRequest) (SwapResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.swap(ctx, caller, req, true)
	e.observe("swap", err, swapFields(req, res)...)
	return res, err
}

// SwapExactOutput buys exactly req.Amount and fails if it costs more than req.Limit.
func (e *Engine) SwapExactOutput(ctx context.Context, caller common.Address, req SwapRequest) (SwapResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.swap(ctx, caller, req, false)
	e.observe("swap_exact_output", err, swapFields(req, res)...)
	return res, err
}

// Quote prices a swap against current state without settling or committing it.
func (e *Engine) Quote(req SwapRequest, exactIn bool) (SwapResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	plan, err := e.planSwap(req, exactIn)
	if err != nil {
		return SwapResult{}, err
	}
	return plan.result, nil
}

func swapFields(req SwapRequest, res SwapResult) []zap.Field {
	return []zap.Field{
		zap.Uint64("pool_id", req.PoolID),
		zap.Bool("zero_for_one", req.ZeroForOne),
		zap.String("amount", fixedpoint.FormatAmount(&req.Amount)),
		zap.String("amount_in", fixedpoint.FormatAmount(&res.AmountIn)),
		zap.String("amount_out", fixedpoint.FormatAmount(&res.AmountOut)),
		zap.String("fee", fixedpoint.FormatAmount(&res.Fee)),
	}
}

func (e *Engine) swap(ctx context.Context, caller common.Address, req SwapRequest, exactIn bool) (SwapResult, error) {
	if err := e.checkShutdown(); err != nil {
		return SwapResult{}, err
	}
	plan, err := e.planSwap(req, exactIn)
	if err != nil {
		return SwapResult{}, err
	}
	res := plan.result

	total, err := fixedpoint.Add(&res.AmountIn, &res.Fee)
	if err != nil {
		return SwapResult{}, err
	}
	if exactIn && res.AmountOut.Lt(&req.Limit) {
		return SwapResult{}, errcode.Wrap(errcode.ErrSlippageExceeded, "output %s below minimum %s",
			fixedpoint.FormatAmount(&res.AmountOut), fixedpoint.FormatAmount(&req.Limit))
	}
	if !exactIn && total.Gt(&req.Limit) {
		return SwapResult{}, errcode.Wrap(errcode.ErrSlippageExceeded, "input %s above maximum %s",
			fixedpoint.FormatAmount(total), fixedpoint.FormatAmount(&req.Limit))
	}

	tokenIn, tokenOut := plan.pool.Token(req.ZeroForOne), plan.pool.Token(!req.ZeroForOne)
	if err := e.settle(ctx,
		newLeg(tokenIn, total, caller, e.cfg.Custodian),
		newLeg(tokenOut, &res.AmountOut, e.cfg.Custodian, caller),
	); err != nil {
		return SwapResult{}, err
	}

	if err := e.pools.Put(plan.pool); err != nil {
		return SwapResult{}, err
	}
	if plan.ticks != nil {
		e.ticks[plan.pool.ID] = plan.ticks
	}
	e.metrics.ObserveSwap(plan.pool.ID, plan.pool.Curve.String(), *total, res.AmountOut, res.Fee)
	return res, nil
}

func (e *Engine) planSwap(req SwapRequest, exactIn bool) (swapPlan, error) {
	p, err := e.getPool(req.PoolID)
	if err != nil {
		return swapPlan{}, err
	}
	if req.Amount.IsZero() {
		return swapPlan{}, errcode.Wrap(errcode.ErrInvalidParameters, "zero swap amount")
	}
	c, ok := e.pools.Curve(p.ID)
	if !ok {
		return swapPlan{}, errcode.Wrap(errcode.ErrPoolNotFound, "curve of pool %d", p.ID)
	}
	if p.Concentrated() {
		return e.planConcentratedSwap(p, c, req, exactIn)
	}
	return planFullRangeSwap(p, c, req, exactIn)
}

func quote(c curve.Curve, s curve.State, amount *uint256.Int, feeBP uint32, exactIn bool) (curve.Quote, error) {
	if exactIn {
		return c.QuoteOutput(s, amount, feeBP)
	}
	return c.QuoteInput(s, amount, feeBP)
}

// planFullRangeSwap prices a constant-product or stable-swap trade. The fee stays in
// the input reserve and grows every position's share.
func planFullRangeSwap(p pool.Pool, c curve.Curve, req SwapRequest, exactIn bool) (swapPlan, error) {
	reserveIn, reserveOut := p.Reserves(req.ZeroForOne)
	s := curve.State{ZeroForOne: req.ZeroForOne}
	s.ReserveIn.Set(reserveIn)
	s.ReserveOut.Set(reserveOut)

	q, err := quote(c, s, &req.Amount, p.FeeBP, exactIn)
	if err != nil {
		return swapPlan{}, err
	}
	if q.AmountOut.IsZero() || !q.AmountOut.Lt(reserveOut) {
		return swapPlan{}, errcode.Wrap(errcode.ErrInsufficientLiquidity, "output %s against reserve %s",
			fixedpoint.FormatAmount(&q.AmountOut), fixedpoint.FormatAmount(reserveOut))
	}
	total, err := q.Total()
	if err != nil {
		return swapPlan{}, err
	}

	newIn, err := fixedpoint.Add(reserveIn, total)
	if err != nil {
		return swapPlan{}, err
	}
	reserveIn.Set(newIn)
	reserveOut.Sub(reserveOut, &q.AmountOut)
	if err := accrueSwapFee(&p, req.ZeroForOne, &q.Fee, &p.Liquidity); err != nil {
		return swapPlan{}, err
	}

	plan := swapPlan{pool: p}
	plan.result.PoolID = p.ID
	plan.result.AmountIn.Set(&q.AmountIn)
	plan.result.Fee.Set(&q.Fee)
	plan.result.AmountOut.Set(&q.AmountOut)
	return plan, nil
}

// accrueSwapFee books a fee on the input side: the running total and, when liquidity
// is present, the global growth per unit.
func accrueSwapFee(p *pool.Pool, zeroForOne bool, fee, liquidity *uint256.Int) error {
	if fee.IsZero() {
		return nil
	}
	total, growth := &p.FeesY, &p.FeeGrowth.Y
	if zeroForOne {
		total, growth = &p.FeesX, &p.FeeGrowth.X
	}
	sum, err := fixedpoint.Add(total, fee)
	if err != nil {
		return err
	}
	total.Set(sum)
	if liquidity.IsZero() {
		return nil
	}
	delta, err := fixedpoint.MulDiv(fee, fixedpoint.Q128, liquidity, false)
	if err != nil {
		return err
	}
	next, err := fixedpoint.Add(growth, delta)
	if err != nil {
		return err
	}
	growth.Set(next)
	return nil
}

func priceLimit(current, requested *uint256.Int, zeroForOne bool) (*uint256.Int, error) {
	if requested.IsZero() {
		if zeroForOne {
			return fixedpoint.MinSqrtPrice, nil
		}
		return fixedpoint.MaxSqrtPrice, nil
	}
	if zeroForOne && (!requested.Lt(current) || requested.Lt(fixedpoint.MinSqrtPrice)) {
		return nil, errcode.Wrap(errcode.ErrInvalidParameters, "price limit %s not below current %s",
			fixedpoint.FormatAmount(requested), fixedpoint.FormatAmount(current))
	}
	if !zeroForOne && (!requested.Gt(current) || requested.Gt(fixedpoint.MaxSqrtPrice)) {
		return nil, errcode.Wrap(errcode.ErrInvalidParameters, "price limit %s not above current %s",
			fixedpoint.FormatAmount(requested), fixedpoint.FormatAmount(current))
	}
	return requested, nil
}

// planConcentratedSwap walks the price across initialized ticks until the order is
// filled, the price limit is hit, or the price can no longer move.
//
// A boundary is crossed upward as soon as the price reaches it. Downward, the price
// may rest exactly on a boundary with the boundary still active; it is crossed only
// by a step that takes the price below it. Either way the active liquidity always
// matches TickAtSqrtPrice of the stored price.
func (e *Engine) planConcentratedSwap(p pool.Pool, c curve.Curve, req SwapRequest, exactIn bool) (swapPlan, error) {
	limit, err := priceLimit(&p.SqrtPrice, &req.SqrtPriceLimit, req.ZeroForOne)
	if err != nil {
		return swapPlan{}, err
	}
	ix := e.tickIndex(p.ID).Clone()
	remaining := new(uint256.Int).Set(&req.Amount)

	plan := swapPlan{pool: p, ticks: ix}
	res := &plan.result
	res.PoolID = p.ID
	pp := &plan.pool

	for !remaining.IsZero() && !pp.SqrtPrice.Eq(limit) {
		current, err := pp.CurrentTick()
		if err != nil {
			return swapPlan{}, err
		}

		liquidity := new(uint256.Int).Set(&pp.ActiveLiquidity)
		var (
			next        tick.Tick
			nextPrice   *uint256.Int
			hasNext     bool
			pendingDown *tick.Tick
		)

		if req.ZeroForOne {
			next, hasNext = ix.NextAtOrBelow(current)
			if hasNext {
				if nextPrice, err = fixedpoint.SqrtPriceAtTick(next.Index); err != nil {
					return swapPlan{}, err
				}
				if pp.SqrtPrice.Eq(nextPrice) {
					// resting on an active boundary: the step below runs on the liquidity past it
					boundary := next
					pendingDown = &boundary
					if liquidity, err = tick.ApplyNet(liquidity, &boundary.LiquidityNet, false); err != nil {
						return swapPlan{}, err
					}
					next, hasNext = ix.NextBelow(boundary.Index)
				}
			}
		} else {
			next, hasNext = ix.NextAbove(current)
		}

		target := new(uint256.Int).Set(limit)
		if hasNext {
			if nextPrice, err = fixedpoint.SqrtPriceAtTick(next.Index); err != nil {
				return swapPlan{}, err
			}
			if (req.ZeroForOne && nextPrice.Gt(limit)) || (!req.ZeroForOne && nextPrice.Lt(limit)) {
				target.Set(nextPrice)
			}
		}

		s := curve.State{ZeroForOne: req.ZeroForOne}
		s.SqrtPrice.Set(&pp.SqrtPrice)
		s.SqrtTarget.Set(target)
		s.Liquidity.Set(liquidity)
		q, err := quote(c, s, remaining, pp.FeeBP, exactIn)
		if err != nil {
			return swapPlan{}, err
		}
		if q.SqrtPriceNext.Eq(&pp.SqrtPrice) {
			break
		}

		if pendingDown != nil {
			if err := ix.Cross(pendingDown.Index, pp.FeeGrowth, false, &pp.ActiveLiquidity); err != nil {
				return swapPlan{}, err
			}
			res.TicksCrossed++
		}

		if err := addStep(res, q); err != nil {
			return swapPlan{}, err
		}
		consumed := &q.AmountOut
		if exactIn {
			if consumed, err = q.Total(); err != nil {
				return swapPlan{}, err
			}
		}
		if consumed.Gt(remaining) {
			remaining.Clear()
		} else {
			remaining.Sub(remaining, consumed)
		}
		if err := accrueSwapFee(pp, req.ZeroForOne, &q.Fee, &pp.ActiveLiquidity); err != nil {
			return swapPlan{}, err
		}
		pp.SqrtPrice.Set(&q.SqrtPriceNext)

		if !req.ZeroForOne && hasNext && q.SqrtPriceNext.Eq(nextPrice) {
			if err := ix.Cross(next.Index, pp.FeeGrowth, true, &pp.ActiveLiquidity); err != nil {
				return swapPlan{}, err
			}
			res.TicksCrossed++
		}
	}

	if res.AmountOut.IsZero() {
		return swapPlan{}, errcode.Wrap(errcode.ErrInsufficientLiquidity, "no output from pool %d", pp.ID)
	}
	if !exactIn && !remaining.IsZero() {
		return swapPlan{}, errcode.Wrap(errcode.ErrInsufficientLiquidity, "pool %d short of %s output",
			pp.ID, fixedpoint.FormatAmount(remaining))
	}

	reserveIn, reserveOut := pp.Reserves(req.ZeroForOne)
	newIn, err := fixedpoint.Add(reserveIn, &res.AmountIn)
	if err != nil {
		return swapPlan{}, err
	}
	newOut, err := fixedpoint.Sub(reserveOut, &res.AmountOut)
	if err != nil {
		return swapPlan{}, errcode.Wrap(errcode.ErrInsufficientLiquidity, "output above pool %d reserve", pp.ID)
	}
	reserveIn.Set(newIn)
	reserveOut.Set(newOut)

	res.SqrtPrice.Set(&pp.SqrtPrice)
	if res.Tick, err = pp.CurrentTick(); err != nil {
		return swapPlan{}, err
	}
	return plan, nil
}

func addStep(res *SwapResult, q curve.Quote) error {
	in, err := fixedpoint.Add(&res.AmountIn, &q.AmountIn)
	if err != nil {
		return err
	}
	fee, err := fixedpoint.Add(&res.Fee, &q.Fee)
	if err != nil {
		return err
	}
	out, err := fixedpoint.Add(&res.AmountOut, &q.AmountOut)
	if err != nil {
		return err
	}
	res.AmountIn.Set(in)
	res.Fee.Set(fee)
	res.AmountOut.Set(out)
	return nil
}
