package registry

import (
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"liquidityEngine/internal/errcode"
)

// MaxDecimals bounds registered token precision.
const MaxDecimals = 36

// Token is a registered asset.
type Token struct {
	ID       string `json:"id"`
	Decimals uint8  `json:"decimals"`
	Stable   bool   `json:"stable"`
}

// Tokens is the token registry. Registration is restricted to governance.
type Tokens struct {
	mu     sync.RWMutex
	auth   Authorizer
	tokens map[string]Token
}

func NewTokens(auth Authorizer) *Tokens {
	return &Tokens{auth: auth, tokens: make(map[string]Token)}
}

// Register adds a token. Registering an id twice fails with TokenExists.
func (t *Tokens) Register(caller common.Address, id string, decimals uint8, stable bool) error {
	if t.auth == nil || !t.auth.IsGovernance(caller) {
		return errcode.Wrap(errcode.ErrUnauthorized, "%s cannot register tokens", caller.Hex())
	}
	if id == "" || decimals > MaxDecimals {
		return errcode.Wrap(errcode.ErrInvalidParameters, "token %q with %d decimals", id, decimals)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.tokens[id]; ok {
		return errcode.Wrap(errcode.ErrTokenExists, "token %q", id)
	}
	t.tokens[id] = Token{ID: id, Decimals: decimals, Stable: stable}
	return nil
}

func (t *Tokens) Get(id string) (Token, bool) {
	t.mu.RLock()
	token, ok := t.tokens[id]
	t.mu.RUnlock()
	return token, ok
}

func (t *Tokens) TokenExists(id string) bool {
	_, ok := t.Get(id)
	return ok
}

func (t *Tokens) TokenDecimals(id string) (uint8, error) {
	token, ok := t.Get(id)
	if !ok {
		return 0, errcode.Wrap(errcode.ErrTokenNotFound, "token %q", id)
	}
	return token.Decimals, nil
}

func (t *Tokens) IsStable(id string) bool {
	token, ok := t.Get(id)
	return ok && token.Stable
}

// List returns every token ordered by id.
func (t *Tokens) List() []Token {
	t.mu.RLock()
	out := make([]Token, 0, len(t.tokens))
	for _, token := range t.tokens {
		out = append(out, token)
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Restore replaces the registry content without authorization checks.
func (t *Tokens) Restore(tokens []Token) {
	next := make(map[string]Token, len(tokens))
	for _, token := range tokens {
		next[token.ID] = token
	}
	t.mu.Lock()
	t.tokens = next
	t.mu.Unlock()
}
