package model

// PoolRecord is the storage form of a pool.
type PoolRecord struct {
	ID              uint64  `json:"id"`
	TokenX          string  `json:"token_x"`
	TokenY          string  `json:"token_y"`
	Curve           string  `json:"curve"`
	Params          []int64 `json:"params"`
	FeeBP           uint32  `json:"fee_bp"`
	TickSpacing     int32   `json:"tick_spacing"`
	DecimalsX       uint8   `json:"decimals_x"`
	DecimalsY       uint8   `json:"decimals_y"`
	ReserveX        string  `json:"reserve_x"`
	ReserveY        string  `json:"reserve_y"`
	FeeGrowthX      string  `json:"fee_growth_x"`
	FeeGrowthY      string  `json:"fee_growth_y"`
	FeesX           string  `json:"fees_x"`
	FeesY           string  `json:"fees_y"`
	Liquidity       string  `json:"liquidity"`
	ActiveLiquidity string  `json:"active_liquidity"`
	SqrtPrice       string  `json:"sqrt_price"`
}

// TickRecord is one initialized tick of a pool.
type TickRecord struct {
	PoolID            uint64 `json:"pool_id"`
	Index             int32  `json:"index"`
	LiquidityGross    string `json:"liquidity_gross"`
	LiquidityNet      string `json:"liquidity_net"`
	FeeGrowthOutsideX string `json:"fee_growth_outside_x"`
	FeeGrowthOutsideY string `json:"fee_growth_outside_y"`
}
