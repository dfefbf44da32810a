package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityEngine/internal/curve"
	"liquidityEngine/internal/engine"
	"liquidityEngine/internal/errcode"
	"liquidityEngine/internal/ledger"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/pool"
	"liquidityEngine/internal/registry"
)

// World is an engine wired to in-memory collaborators: governance, the token
// registry, the shutdown flag and a ledger acting as the asset transfer.
type World struct {
	owner     common.Address
	custodian common.Address

	gov      *registry.Governance
	tokens   *registry.Tokens
	shutdown *registry.Shutdown
	ledger   *ledger.Ledger
	engine   *engine.Engine
}

// NewWorld builds an empty world. owner holds the governance capability and
// custodian holds pool reserves.
func NewWorld(owner, custodian common.Address, metrics engine.Metrics, logger *zap.Logger) *World {
	gov := registry.NewGovernance(owner)
	tokens := registry.NewTokens(gov)
	shutdown := registry.NewShutdown(gov)
	book := ledger.New()
	eng := engine.New(engine.Config{Custodian: custodian}, engine.Deps{
		Tokens:   tokens,
		Access:   gov,
		Shutdown: shutdown,
		Transfer: book,
		Metrics:  metrics,
	}, logger)
	return &World{
		owner:     owner,
		custodian: custodian,
		gov:       gov,
		tokens:    tokens,
		shutdown:  shutdown,
		ledger:    book,
		engine:    eng,
	}
}

func (w *World) Engine() *engine.Engine {
	return w.engine
}

func (w *World) Ledger() *ledger.Ledger {
	return w.ledger
}

// Digest is the hex state digest of the engine.
func (w *World) Digest() string {
	return w.engine.StateDigest().Hex()
}

func invalid(format string, args ...interface{}) error {
	return errcode.Wrap(errcode.ErrInvalidParameters, format, args...)
}

func parseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, invalid("%s: not an address: %q", field, s)
	}
	return common.HexToAddress(s), nil
}

func parseAmounts(fields ...amountField) error {
	if err := decodeAmounts(fields); err != nil {
		return invalid("%v", err)
	}
	return nil
}

// Apply executes one operation. The returned payload is the outcome to record; a
// non-nil error is a rejection and leaves the world unchanged.
func (w *World) Apply(ctx context.Context, op model.Operation) (interface{}, error) {
	caller, err := parseAddress("caller", op.Caller)
	if err != nil {
		return nil, err
	}

	switch op.Op {
	case model.OpInitGovernance:
		var p model.InitGovernancePayload
		if err := op.Decode(&p); err != nil {
			return nil, invalid("%v", err)
		}
		members := make([]common.Address, 0, len(p.Members))
		for _, m := range p.Members {
			addr, err := parseAddress("member", m)
			if err != nil {
				return nil, err
			}
			members = append(members, addr)
		}
		return nil, w.gov.Initialize(caller, members...)

	case model.OpRevokeGovernance:
		var p model.RevokeGovernancePayload
		if err := op.Decode(&p); err != nil {
			return nil, invalid("%v", err)
		}
		member, err := parseAddress("member", p.Member)
		if err != nil {
			return nil, err
		}
		return nil, w.gov.Revoke(caller, member)

	case model.OpRegisterToken:
		var p model.RegisterTokenPayload
		if err := op.Decode(&p); err != nil {
			return nil, invalid("%v", err)
		}
		return nil, w.tokens.Register(caller, p.Token, p.Decimals, p.Stable)

	case model.OpSetShutdown:
		var p model.SetShutdownPayload
		if err := op.Decode(&p); err != nil {
			return nil, invalid("%v", err)
		}
		return nil, w.shutdown.Set(caller, p.Active)

	case model.OpFund:
		return nil, w.fund(caller, op)

	case model.OpCreatePool:
		return w.createPool(ctx, caller, op)

	case model.OpSwap, model.OpSwapExactOutput:
		return w.swap(ctx, caller, op)

	case model.OpAddLiquidity, model.OpAddConcentratedLiquidity:
		return w.addLiquidity(ctx, caller, op)

	case model.OpRemoveLiquidity:
		var p model.RemoveLiquidityPayload
		if err := op.Decode(&p); err != nil {
			return nil, invalid("%v", err)
		}
		req := engine.RemoveLiquidityRequest{PositionID: p.PositionID}
		if err := parseAmounts(
			amountField{"liquidity", p.Liquidity, &req.Liquidity},
			amountField{"min_x", p.MinX, &req.MinX},
			amountField{"min_y", p.MinY, &req.MinY},
		); err != nil {
			return nil, err
		}
		res, err := w.engine.RemoveLiquidity(ctx, caller, req)
		if err != nil {
			return nil, err
		}
		return liquidityOutcome(res), nil

	case model.OpCollectFees:
		var p model.CollectFeesPayload
		if err := op.Decode(&p); err != nil {
			return nil, invalid("%v", err)
		}
		res, err := w.engine.CollectFees(ctx, caller, p.PositionID)
		if err != nil {
			return nil, err
		}
		return model.CollectOutcome{
			PositionID: res.PositionID,
			AmountX:    formatAmount(res.AmountX),
			AmountY:    formatAmount(res.AmountY),
		}, nil

	default:
		return nil, invalid("unknown operation %q", op.Op)
	}
}

// fund mints ledger balance. Only governance may fund accounts.
func (w *World) fund(caller common.Address, op model.Operation) error {
	var p model.FundPayload
	if err := op.Decode(&p); err != nil {
		return invalid("%v", err)
	}
	if !w.gov.IsGovernance(caller) {
		return errcode.Wrap(errcode.ErrUnauthorized, "%s may not fund accounts", caller.Hex())
	}
	if !w.tokens.TokenExists(p.Token) {
		return errcode.Wrap(errcode.ErrTokenNotFound, "token %q", p.Token)
	}
	account, err := parseAddress("account", p.Account)
	if err != nil {
		return err
	}
	var amount uint256.Int
	if err := parseAmounts(amountField{"amount", p.Amount, &amount}); err != nil {
		return err
	}
	if err := w.ledger.Mint(p.Token, account, &amount); err != nil {
		return errcode.Wrap(errcode.ErrArithmeticOverflow, "fund %s: %v", p.Token, err)
	}
	return nil
}

func (w *World) createPool(ctx context.Context, caller common.Address, op model.Operation) (interface{}, error) {
	var p model.CreatePoolPayload
	if err := op.Decode(&p); err != nil {
		return nil, invalid("%v", err)
	}
	kind, err := curve.ParseKind(p.Curve)
	if err != nil {
		return nil, err
	}
	params, err := paramsOf(p.Params)
	if err != nil {
		return nil, errcode.Wrap(errcode.ErrInvalidCurveParameters, "%v", err)
	}
	created, err := w.engine.CreatePool(ctx, caller, pool.Spec{
		TokenX:      p.TokenX,
		TokenY:      p.TokenY,
		Curve:       kind,
		Params:      params,
		FeeBP:       p.FeeBP,
		TickSpacing: p.TickSpacing,
	})
	if err != nil {
		return nil, err
	}
	return PoolRecord(created), nil
}

func (w *World) swap(ctx context.Context, caller common.Address, op model.Operation) (interface{}, error) {
	var p model.SwapPayload
	if err := op.Decode(&p); err != nil {
		return nil, invalid("%v", err)
	}
	req := engine.SwapRequest{PoolID: p.PoolID, ZeroForOne: p.ZeroForOne}
	if p.PoolID == 0 && p.TokenIn != "" {
		routed, err := w.engine.PoolByPair(p.TokenIn, p.TokenOut)
		if err != nil {
			return nil, err
		}
		req.PoolID = routed.ID
		req.ZeroForOne = routed.TokenX == p.TokenIn
	}
	if err := parseAmounts(
		amountField{"amount", p.Amount, &req.Amount},
		amountField{"limit", p.Limit, &req.Limit},
		amountField{"sqrt_price_limit", p.SqrtPriceLimit, &req.SqrtPriceLimit},
	); err != nil {
		return nil, err
	}

	var (
		res engine.SwapResult
		err error
	)
	if op.Op == model.OpSwapExactOutput {
		res, err = w.engine.SwapExactOutput(ctx, caller, req)
	} else {
		res, err = w.engine.Swap(ctx, caller, req)
	}
	if err != nil {
		return nil, err
	}
	out := model.SwapOutcome{
		PoolID:       res.PoolID,
		AmountIn:     formatAmount(res.AmountIn),
		Fee:          formatAmount(res.Fee),
		AmountOut:    formatAmount(res.AmountOut),
		Tick:         res.Tick,
		TicksCrossed: res.TicksCrossed,
	}
	if !res.SqrtPrice.IsZero() {
		out.SqrtPrice = formatAmount(res.SqrtPrice)
	}
	return out, nil
}

func (w *World) addLiquidity(ctx context.Context, caller common.Address, op model.Operation) (interface{}, error) {
	var p model.AddLiquidityPayload
	if err := op.Decode(&p); err != nil {
		return nil, invalid("%v", err)
	}
	var maxX, maxY, minLiquidity uint256.Int
	if err := parseAmounts(
		amountField{"max_x", p.MaxX, &maxX},
		amountField{"max_y", p.MaxY, &maxY},
		amountField{"min_liquidity", p.MinLiquidity, &minLiquidity},
	); err != nil {
		return nil, err
	}

	var (
		res engine.LiquidityResult
		err error
	)
	if op.Op == model.OpAddConcentratedLiquidity {
		res, err = w.engine.AddConcentratedLiquidity(ctx, caller, engine.AddConcentratedRequest{
			PoolID:       p.PoolID,
			PositionID:   p.PositionID,
			TickLower:    p.TickLower,
			TickUpper:    p.TickUpper,
			MaxX:         maxX,
			MaxY:         maxY,
			MinLiquidity: minLiquidity,
		})
	} else {
		res, err = w.engine.AddLiquidity(ctx, caller, engine.AddLiquidityRequest{
			PoolID:       p.PoolID,
			PositionID:   p.PositionID,
			MaxX:         maxX,
			MaxY:         maxY,
			MinLiquidity: minLiquidity,
		})
	}
	if err != nil {
		return nil, err
	}
	return liquidityOutcome(res), nil
}

func liquidityOutcome(res engine.LiquidityResult) model.LiquidityOutcome {
	return model.LiquidityOutcome{
		PositionID: res.PositionID,
		Liquidity:  formatAmount(res.Liquidity),
		AmountX:    formatAmount(res.AmountX),
		AmountY:    formatAmount(res.AmountY),
	}
}

// Snapshot captures the world after the operation with sequence number seq.
func (w *World) Snapshot(seq uint64) model.Snapshot {
	snap := model.Snapshot{
		LastSeq:   seq,
		Shutdown:  w.shutdown.IsShutdown(),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	for _, m := range w.gov.Members() {
		snap.Members = append(snap.Members, m.Hex())
	}
	for _, t := range w.tokens.List() {
		snap.Tokens = append(snap.Tokens, model.TokenRecord{ID: t.ID, Decimals: t.Decimals, Stable: t.Stable})
	}
	for _, b := range w.ledger.Balances() {
		snap.Balances = append(snap.Balances, model.BalanceRecord{
			Owner:  b.Owner.Hex(),
			Token:  b.Token,
			Amount: formatAmount(b.Amount),
		})
	}

	engineSnap := w.engine.Snapshot()
	encodeEngine(engineSnap, &snap)
	snap.Digest = engineSnap.Digest().Hex()
	return snap
}

// Restore loads snap into a freshly built world and checks it against the
// recorded digest.
func (w *World) Restore(snap model.Snapshot) error {
	members := make([]common.Address, 0, len(snap.Members))
	for _, m := range snap.Members {
		addr, err := parseAddress("member", m)
		if err != nil {
			return err
		}
		members = append(members, addr)
	}

	tokens := make([]registry.Token, 0, len(snap.Tokens))
	for _, t := range snap.Tokens {
		tokens = append(tokens, registry.Token{ID: t.ID, Decimals: t.Decimals, Stable: t.Stable})
	}

	balances := make([]ledger.Balance, 0, len(snap.Balances))
	for _, b := range snap.Balances {
		owner, err := parseAddress("balance owner", b.Owner)
		if err != nil {
			return err
		}
		amount, err := parseAmount("balance", b.Amount)
		if err != nil {
			return err
		}
		balances = append(balances, ledger.Balance{Owner: owner, Token: b.Token, Amount: amount})
	}

	engineSnap, err := decodeEngine(snap)
	if err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Digest != "" {
		if got := engineSnap.Digest().Hex(); got != snap.Digest {
			return fmt.Errorf("snapshot digest mismatch: recorded %s, computed %s", snap.Digest, got)
		}
	}
	if err := w.engine.Restore(engineSnap); err != nil {
		return fmt.Errorf("restore engine: %w", err)
	}
	if err := w.gov.Initialize(w.owner, members...); err != nil {
		return err
	}
	w.tokens.Restore(tokens)
	w.shutdown.Restore(snap.Shutdown)
	w.ledger.Restore(balances)
	return nil
}
