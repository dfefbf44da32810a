package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityEngine/internal/fixedpoint"
)

// ErrInsufficientBalance is returned when a sender cannot cover a transfer.
var ErrInsufficientBalance = errors.New("insufficient balance")

type account struct {
	owner common.Address
	token string
}

// Balance is one holder's amount of one token.
type Balance struct {
	Owner  common.Address
	Token  string
	Amount uint256.Int
}

// Ledger keeps token balances in memory.
type Ledger struct {
	mu       sync.Mutex
	balances map[account]uint256.Int
}

func New() *Ledger {
	return &Ledger{balances: make(map[account]uint256.Int)}
}

// Mint credits amount of token to owner.
func (l *Ledger) Mint(token string, owner common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := account{owner: owner, token: token}
	current := l.balances[key]
	next, err := fixedpoint.Add(&current, amount)
	if err != nil {
		return fmt.Errorf("mint %s to %s: %w", token, owner.Hex(), err)
	}
	l.balances[key] = *next
	return nil
}

func (l *Ledger) Balance(token string, owner common.Address) uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account{owner: owner, token: token}]
}

// Transfer moves amount of token between holders.
func (l *Ledger) Transfer(ctx context.Context, token string, amount uint256.Int, from, to common.Address) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	src := account{owner: from, token: token}
	dst := account{owner: to, token: token}
	fromBalance := l.balances[src]
	if fromBalance.Lt(&amount) {
		return fmt.Errorf("%w: %s holds %s %s, needs %s", ErrInsufficientBalance, from.Hex(),
			fixedpoint.FormatAmount(&fromBalance), token, fixedpoint.FormatAmount(&amount))
	}
	if src == dst {
		return nil
	}
	toBalance := l.balances[dst]
	credited, err := fixedpoint.Add(&toBalance, &amount)
	if err != nil {
		return fmt.Errorf("credit %s: %w", to.Hex(), err)
	}
	fromBalance.Sub(&fromBalance, &amount)

	l.balances[src] = fromBalance
	l.balances[dst] = *credited
	return nil
}

// Balances returns every non-zero balance ordered by owner then token.
func (l *Ledger) Balances() []Balance {
	l.mu.Lock()
	out := make([]Balance, 0, len(l.balances))
	for key, amount := range l.balances {
		if amount.IsZero() {
			continue
		}
		out = append(out, Balance{Owner: key.owner, Token: key.token, Amount: amount})
	}
	l.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Owner != out[j].Owner {
			return bytes.Compare(out[i].Owner[:], out[j].Owner[:]) < 0
		}
		return out[i].Token < out[j].Token
	})
	return out
}

// Restore replaces every balance.
func (l *Ledger) Restore(balances []Balance) {
	next := make(map[account]uint256.Int, len(balances))
	for _, b := range balances {
		next[account{owner: b.Owner, token: b.Token}] = b.Amount
	}
	l.mu.Lock()
	l.balances = next
	l.mu.Unlock()
}
