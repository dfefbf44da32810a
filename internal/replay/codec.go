package replay

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityEngine/internal/curve"
	"liquidityEngine/internal/engine"
	"liquidityEngine/internal/fixedpoint"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/pool"
	"liquidityEngine/internal/position"
	"liquidityEngine/internal/tick"
)

func formatAmount(x uint256.Int) string {
	return fixedpoint.FormatAmount(&x)
}

func parseAmount(field, s string) (uint256.Int, error) {
	v, err := fixedpoint.ParseAmount(s)
	if err != nil {
		return uint256.Int{}, fmt.Errorf("%s: %w", field, err)
	}
	return *v, nil
}

// formatSigned renders a two's complement value as a signed decimal.
func formatSigned(x uint256.Int, negative bool) string {
	if !negative {
		return fixedpoint.FormatAmount(&x)
	}
	var abs uint256.Int
	abs.Neg(&x)
	return "-" + fixedpoint.FormatAmount(&abs)
}

type amountField struct {
	name string
	src  string
	dst  *uint256.Int
}

func decodeAmounts(fields []amountField) error {
	for _, f := range fields {
		v, err := parseAmount(f.name, f.src)
		if err != nil {
			return err
		}
		*f.dst = v
	}
	return nil
}

func parseSigned(field, s string) (uint256.Int, error) {
	neg := strings.HasPrefix(s, "-")
	v, err := parseAmount(field, strings.TrimPrefix(s, "-"))
	if err != nil {
		return uint256.Int{}, err
	}
	if neg {
		v.Neg(&v)
	}
	return v, nil
}

// PoolRecord converts a pool to its storage form.
func PoolRecord(p pool.Pool) model.PoolRecord {
	return model.PoolRecord{
		ID:              p.ID,
		TokenX:          p.TokenX,
		TokenY:          p.TokenY,
		Curve:           p.Curve.String(),
		Params:          append([]int64(nil), p.Params[:]...),
		FeeBP:           p.FeeBP,
		TickSpacing:     p.TickSpacing,
		DecimalsX:       p.DecimalsX,
		DecimalsY:       p.DecimalsY,
		ReserveX:        formatAmount(p.ReserveX),
		ReserveY:        formatAmount(p.ReserveY),
		FeeGrowthX:      formatAmount(p.FeeGrowth.X),
		FeeGrowthY:      formatAmount(p.FeeGrowth.Y),
		FeesX:           formatAmount(p.FeesX),
		FeesY:           formatAmount(p.FeesY),
		Liquidity:       formatAmount(p.Liquidity),
		ActiveLiquidity: formatAmount(p.ActiveLiquidity),
		SqrtPrice:       formatAmount(p.SqrtPrice),
	}
}

func paramsOf(values []int64) (curve.Params, error) {
	var params curve.Params
	if len(values) > len(params) {
		return params, fmt.Errorf("expected at most %d params, got %d", len(params), len(values))
	}
	copy(params[:], values)
	return params, nil
}

func poolFromRecord(r model.PoolRecord) (pool.Pool, error) {
	kind, err := curve.ParseKind(r.Curve)
	if err != nil {
		return pool.Pool{}, fmt.Errorf("pool %d: %w", r.ID, err)
	}
	params, err := paramsOf(r.Params)
	if err != nil {
		return pool.Pool{}, fmt.Errorf("pool %d: %w", r.ID, err)
	}
	p := pool.Pool{
		ID:          r.ID,
		TokenX:      r.TokenX,
		TokenY:      r.TokenY,
		Curve:       kind,
		Params:      params,
		FeeBP:       r.FeeBP,
		TickSpacing: r.TickSpacing,
		DecimalsX:   r.DecimalsX,
		DecimalsY:   r.DecimalsY,
	}
	fields := []amountField{
		{"reserve_x", r.ReserveX, &p.ReserveX},
		{"reserve_y", r.ReserveY, &p.ReserveY},
		{"fee_growth_x", r.FeeGrowthX, &p.FeeGrowth.X},
		{"fee_growth_y", r.FeeGrowthY, &p.FeeGrowth.Y},
		{"fees_x", r.FeesX, &p.FeesX},
		{"fees_y", r.FeesY, &p.FeesY},
		{"liquidity", r.Liquidity, &p.Liquidity},
		{"active_liquidity", r.ActiveLiquidity, &p.ActiveLiquidity},
		{"sqrt_price", r.SqrtPrice, &p.SqrtPrice},
	}
	if err := decodeAmounts(fields); err != nil {
		return pool.Pool{}, fmt.Errorf("pool %d: %w", r.ID, err)
	}
	return p, nil
}

func tickRecord(poolID uint64, t tick.Tick) model.TickRecord {
	return model.TickRecord{
		PoolID:            poolID,
		Index:             t.Index,
		LiquidityGross:    formatAmount(t.LiquidityGross),
		LiquidityNet:      formatSigned(t.LiquidityNet, t.NetIsNegative()),
		FeeGrowthOutsideX: formatAmount(t.FeeGrowthOutside.X),
		FeeGrowthOutsideY: formatAmount(t.FeeGrowthOutside.Y),
	}
}

func tickFromRecord(r model.TickRecord) (tick.Tick, error) {
	t := tick.Tick{Index: r.Index}
	var err error
	if t.LiquidityGross, err = parseAmount("liquidity_gross", r.LiquidityGross); err != nil {
		return t, err
	}
	if t.LiquidityNet, err = parseSigned("liquidity_net", r.LiquidityNet); err != nil {
		return t, err
	}
	if t.FeeGrowthOutside.X, err = parseAmount("fee_growth_outside_x", r.FeeGrowthOutsideX); err != nil {
		return t, err
	}
	if t.FeeGrowthOutside.Y, err = parseAmount("fee_growth_outside_y", r.FeeGrowthOutsideY); err != nil {
		return t, err
	}
	return t, nil
}

// PositionRecord converts a position to its storage form.
func PositionRecord(p position.Position) model.PositionRecord {
	return model.PositionRecord{
		ID:                   p.ID,
		Owner:                p.Owner.Hex(),
		PoolID:               p.PoolID,
		FullRange:            p.FullRange,
		TickLower:            p.TickLower,
		TickUpper:            p.TickUpper,
		Liquidity:            formatAmount(p.Liquidity),
		FeeGrowthInsideLastX: formatAmount(p.FeeGrowthInsideLast.X),
		FeeGrowthInsideLastY: formatAmount(p.FeeGrowthInsideLast.Y),
		OwedX:                formatAmount(p.OwedX),
		OwedY:                formatAmount(p.OwedY),
		EarnedX:              formatAmount(p.EarnedX),
		EarnedY:              formatAmount(p.EarnedY),
	}
}

func positionFromRecord(r model.PositionRecord) (position.Position, error) {
	if !common.IsHexAddress(r.Owner) {
		return position.Position{}, fmt.Errorf("position %d: invalid owner %q", r.ID, r.Owner)
	}
	p := position.Position{
		ID:        r.ID,
		Owner:     common.HexToAddress(r.Owner),
		PoolID:    r.PoolID,
		FullRange: r.FullRange,
		TickLower: r.TickLower,
		TickUpper: r.TickUpper,
	}
	fields := []amountField{
		{"liquidity", r.Liquidity, &p.Liquidity},
		{"fee_growth_inside_last_x", r.FeeGrowthInsideLastX, &p.FeeGrowthInsideLast.X},
		{"fee_growth_inside_last_y", r.FeeGrowthInsideLastY, &p.FeeGrowthInsideLast.Y},
		{"owed_x", r.OwedX, &p.OwedX},
		{"owed_y", r.OwedY, &p.OwedY},
		{"earned_x", r.EarnedX, &p.EarnedX},
		{"earned_y", r.EarnedY, &p.EarnedY},
	}
	if err := decodeAmounts(fields); err != nil {
		return position.Position{}, fmt.Errorf("position %d: %w", r.ID, err)
	}
	return p, nil
}

func encodeEngine(snap engine.Snapshot, out *model.Snapshot) {
	out.Pools = make([]model.PoolRecord, 0, len(snap.Pools))
	for _, p := range snap.Pools {
		out.Pools = append(out.Pools, PoolRecord(p))
	}

	poolIDs := make([]uint64, 0, len(snap.Ticks))
	for id := range snap.Ticks {
		poolIDs = append(poolIDs, id)
	}
	sort.Slice(poolIDs, func(i, j int) bool { return poolIDs[i] < poolIDs[j] })
	out.Ticks = nil
	for _, id := range poolIDs {
		for _, t := range snap.Ticks[id] {
			out.Ticks = append(out.Ticks, tickRecord(id, t))
		}
	}

	out.Positions = make([]model.PositionRecord, 0, len(snap.Positions))
	for _, p := range snap.Positions {
		out.Positions = append(out.Positions, PositionRecord(p))
	}
	out.LastPositionID = snap.LastPositionID
}

func decodeEngine(in model.Snapshot) (engine.Snapshot, error) {
	snap := engine.Snapshot{
		Pools:          make([]pool.Pool, 0, len(in.Pools)),
		Ticks:          make(map[uint64][]tick.Tick),
		Positions:      make([]position.Position, 0, len(in.Positions)),
		LastPositionID: in.LastPositionID,
	}
	for _, r := range in.Pools {
		p, err := poolFromRecord(r)
		if err != nil {
			return engine.Snapshot{}, err
		}
		snap.Pools = append(snap.Pools, p)
	}
	for _, r := range in.Ticks {
		t, err := tickFromRecord(r)
		if err != nil {
			return engine.Snapshot{}, fmt.Errorf("pool %d tick %d: %w", r.PoolID, r.Index, err)
		}
		snap.Ticks[r.PoolID] = append(snap.Ticks[r.PoolID], t)
	}
	for _, r := range in.Positions {
		p, err := positionFromRecord(r)
		if err != nil {
			return engine.Snapshot{}, err
		}
		snap.Positions = append(snap.Positions, p)
	}
	return snap, nil
}
