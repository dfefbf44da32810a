package model

// TokenRecord is a registered token.
type TokenRecord struct {
	ID       string `json:"id"`
	Decimals uint8  `json:"decimals"`
	Stable   bool   `json:"stable"`
}

// BalanceRecord is one holder's balance of one token.
type BalanceRecord struct {
	Owner  string `json:"owner"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

// Snapshot is the persisted state of a replay: the engine plus its collaborators,
// and the sequence number of the last operation applied.
type Snapshot struct {
	LastSeq        uint64           `json:"last_seq"`
	Digest         string           `json:"digest"`
	Members        []string         `json:"members,omitempty"`
	Shutdown       bool             `json:"shutdown"`
	Tokens         []TokenRecord    `json:"tokens"`
	Balances       []BalanceRecord  `json:"balances"`
	Pools          []PoolRecord     `json:"pools"`
	Ticks          []TickRecord     `json:"ticks"`
	Positions      []PositionRecord `json:"positions"`
	LastPositionID uint64           `json:"last_position_id"`
	UpdatedAt      string           `json:"updated_at"`
}
