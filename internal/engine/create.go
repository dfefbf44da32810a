package engine

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityEngine/internal/errcode"
	"liquidityEngine/internal/pool"
	"liquidityEngine/internal/tick"
)

// CreatePool registers a pool for a token pair. Governance only.
func (e *Engine) CreatePool(ctx context.Context, caller common.Address, spec pool.Spec) (pool.Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.createPool(caller, spec)
	e.observe("create_pool", err,
		zap.String("token_x", spec.TokenX),
		zap.String("token_y", spec.TokenY),
		zap.Stringer("curve", spec.Curve),
		zap.Uint64("pool_id", p.ID),
	)
	return p, err
}

func (e *Engine) createPool(caller common.Address, spec pool.Spec) (pool.Pool, error) {
	if e.access == nil || !e.access.IsGovernance(caller) {
		return pool.Pool{}, errcode.Wrap(errcode.ErrUnauthorized, "%s cannot create pools", caller.Hex())
	}
	if e.tokens == nil {
		return pool.Pool{}, errcode.Wrap(errcode.ErrTokenNotFound, "no token registry")
	}
	p, _, err := e.pools.Create(spec, e.tokens)
	if err != nil {
		return pool.Pool{}, err
	}
	if p.Concentrated() {
		e.ticks[p.ID] = tick.NewIndex()
	}
	return p, nil
}
