package model

// TokenMeta captures ERC20 metadata read from chain.
type TokenMeta struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
}

// TokenID is the registry id for the token: its symbol, or the address when the
// contract has none.
func (m TokenMeta) TokenID() string {
	if m.Symbol != "" {
		return m.Symbol
	}
	return m.Address
}
