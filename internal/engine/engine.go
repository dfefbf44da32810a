package engine

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityEngine/internal/errcode"
	"liquidityEngine/internal/pool"
	"liquidityEngine/internal/position"
	"liquidityEngine/internal/tick"
)

// TokenRegistry answers questions about registered tokens. The engine never mutates it.
type TokenRegistry interface {
	TokenExists(id string) bool
	TokenDecimals(id string) (uint8, error)
	IsStable(id string) bool
}

// AccessControl decides which principals hold the governance capability.
type AccessControl interface {
	IsGovernance(caller common.Address) bool
}

// ShutdownFlag is read at the top of every gated operation.
type ShutdownFlag interface {
	IsShutdown() bool
}

// AssetTransfer moves tokens between principals.
type AssetTransfer interface {
	Transfer(ctx context.Context, token string, amount uint256.Int, from, to common.Address) error
}

// Metrics receives one observation per operation.
type Metrics interface {
	ObserveOperation(op string, err error)
	ObserveSwap(poolID uint64, kind string, amountIn, amountOut, fee uint256.Int)
}

type nopMetrics struct{}

func (nopMetrics) ObserveOperation(string, error) {}

func (nopMetrics) ObserveSwap(uint64, string, uint256.Int, uint256.Int, uint256.Int) {}

// Config holds engine settings.
type Config struct {
	// Custodian is the principal holding pool reserves and uncollected fees.
	Custodian common.Address
}

// Deps are the collaborators the engine consumes.
type Deps struct {
	Tokens   TokenRegistry
	Access   AccessControl
	Shutdown ShutdownFlag
	Transfer AssetTransfer
	Metrics  Metrics
}

// Engine is the swap and liquidity orchestrator. Every operation validates and prices
// against staged copies, settles transfers, then commits.
type Engine struct {
	mu sync.Mutex

	cfg      Config
	tokens   TokenRegistry
	access   AccessControl
	shutdown ShutdownFlag
	transfer AssetTransfer
	metrics  Metrics
	logger   *zap.Logger

	pools     *pool.Registry
	ticks     map[uint64]*tick.Index
	positions *position.Table
}

// New builds an Engine with its dependencies.
func New(cfg Config, deps Deps, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Engine{
		cfg:       cfg,
		tokens:    deps.Tokens,
		access:    deps.Access,
		shutdown:  deps.Shutdown,
		transfer:  deps.Transfer,
		metrics:   metrics,
		logger:    logger,
		pools:     pool.NewRegistry(),
		ticks:     make(map[uint64]*tick.Index),
		positions: position.NewTable(),
	}
}

func (e *Engine) observe(op string, err error, fields ...zap.Field) {
	e.metrics.ObserveOperation(op, err)
	if err != nil {
		e.logger.Debug(op+" rejected", append(fields, zap.Error(err), zap.Uint32("code", errcode.CodeOf(err)))...)
		return
	}
	e.logger.Debug(op+" committed", fields...)
}

func (e *Engine) checkShutdown() error {
	if e.shutdown != nil && e.shutdown.IsShutdown() {
		return errcode.ErrShutdownActive
	}
	return nil
}

func (e *Engine) getPool(id uint64) (pool.Pool, error) {
	p, ok := e.pools.Get(id)
	if !ok {
		return pool.Pool{}, errcode.Wrap(errcode.ErrPoolNotFound, "pool %d", id)
	}
	return p, nil
}

// tickIndex returns the committed index of poolID, or an empty detached one. It
// never writes to e.ticks; callers stage a Clone and commit it themselves.
func (e *Engine) tickIndex(poolID uint64) *tick.Index {
	if ix, ok := e.ticks[poolID]; ok {
		return ix
	}
	return tick.NewIndex()
}

// ownedPosition loads a position and checks the caller owns it.
func (e *Engine) ownedPosition(caller common.Address, id uint64) (position.Position, error) {
	pos, ok := e.positions.Get(id)
	if !ok {
		return position.Position{}, errcode.Wrap(errcode.ErrPositionNotFound, "position %d", id)
	}
	if pos.Owner != caller {
		return position.Position{}, errcode.Wrap(errcode.ErrUnauthorized, "position %d is not owned by %s", id, caller.Hex())
	}
	return pos, nil
}
