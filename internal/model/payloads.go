package model

// Amounts are base-10 strings so that 256-bit values survive JSON.

// InitGovernancePayload appoints governance members.
type InitGovernancePayload struct {
	Members []string `json:"members"`
}

// RegisterTokenPayload adds a token to the registry.
type RegisterTokenPayload struct {
	Token    string `json:"token"`
	Decimals uint8  `json:"decimals"`
	Stable   bool   `json:"stable"`
}

// RevokeGovernancePayload removes one governance member.
type RevokeGovernancePayload struct {
	Member string `json:"member"`
}

// SetShutdownPayload toggles the emergency stop.
type SetShutdownPayload struct {
	Active bool `json:"active"`
}

// FundPayload credits a holder in the ledger.
type FundPayload struct {
	Token   string `json:"token"`
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

// CreatePoolPayload creates a pool.
type CreatePoolPayload struct {
	TokenX      string  `json:"token_x"`
	TokenY      string  `json:"token_y"`
	Curve       string  `json:"curve"`
	Params      []int64 `json:"params,omitempty"`
	FeeBP       uint32  `json:"fee_bp"`
	TickSpacing int32   `json:"tick_spacing,omitempty"`
}

// SwapPayload covers swap and swap_exact_output. A zero PoolID routes by
// TokenIn and TokenOut instead, and the direction follows from them.
type SwapPayload struct {
	PoolID         uint64 `json:"pool_id,omitempty"`
	TokenIn        string `json:"token_in,omitempty"`
	TokenOut       string `json:"token_out,omitempty"`
	ZeroForOne     bool   `json:"zero_for_one"`
	Amount         string `json:"amount"`
	Limit          string `json:"limit,omitempty"`
	SqrtPriceLimit string `json:"sqrt_price_limit,omitempty"`
}

// AddLiquidityPayload covers add_liquidity and add_concentrated_liquidity.
type AddLiquidityPayload struct {
	PoolID       uint64 `json:"pool_id"`
	PositionID   uint64 `json:"position_id,omitempty"`
	TickLower    int32  `json:"tick_lower,omitempty"`
	TickUpper    int32  `json:"tick_upper,omitempty"`
	MaxX         string `json:"max_x"`
	MaxY         string `json:"max_y"`
	MinLiquidity string `json:"min_liquidity,omitempty"`
}

// RemoveLiquidityPayload withdraws from a position.
type RemoveLiquidityPayload struct {
	PositionID uint64 `json:"position_id"`
	Liquidity  string `json:"liquidity"`
	MinX       string `json:"min_x,omitempty"`
	MinY       string `json:"min_y,omitempty"`
}

// CollectFeesPayload pays out a position's fees.
type CollectFeesPayload struct {
	PositionID uint64 `json:"position_id"`
}

// SwapOutcome is the result payload of a swap.
type SwapOutcome struct {
	PoolID       uint64 `json:"pool_id"`
	AmountIn     string `json:"amount_in"`
	Fee          string `json:"fee"`
	AmountOut    string `json:"amount_out"`
	SqrtPrice    string `json:"sqrt_price,omitempty"`
	Tick         int32  `json:"tick,omitempty"`
	TicksCrossed int    `json:"ticks_crossed,omitempty"`
}

// LiquidityOutcome is the result payload of a deposit or withdrawal.
type LiquidityOutcome struct {
	PositionID uint64 `json:"position_id"`
	Liquidity  string `json:"liquidity"`
	AmountX    string `json:"amount_x"`
	AmountY    string `json:"amount_y"`
}

// CollectOutcome is the result payload of collect_fees.
type CollectOutcome struct {
	PositionID uint64 `json:"position_id"`
	AmountX    string `json:"amount_x"`
	AmountY    string `json:"amount_y"`
}
