package model

// PositionRecord is the storage form of a liquidity position.
type PositionRecord struct {
	ID                   uint64 `json:"id"`
	Owner                string `json:"owner"`
	PoolID               uint64 `json:"pool_id"`
	FullRange            bool   `json:"full_range"`
	TickLower            int32  `json:"tick_lower"`
	TickUpper            int32  `json:"tick_upper"`
	Liquidity            string `json:"liquidity"`
	FeeGrowthInsideLastX string `json:"fee_growth_inside_last_x"`
	FeeGrowthInsideLastY string `json:"fee_growth_inside_last_y"`
	OwedX                string `json:"owed_x"`
	OwedY                string `json:"owed_y"`
	EarnedX              string `json:"earned_x"`
	EarnedY              string `json:"earned_y"`
}
