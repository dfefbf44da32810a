package registry

import (
	"bytes"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"liquidityEngine/internal/errcode"
)

// Authorizer reports whether a principal holds the governance capability.
type Authorizer interface {
	IsGovernance(caller common.Address) bool
}

// Governance is the access-control list: a fixed owner plus members the owner
// appoints.
type Governance struct {
	mu      sync.RWMutex
	owner   common.Address
	members map[common.Address]struct{}
}

func NewGovernance(owner common.Address) *Governance {
	return &Governance{owner: owner, members: make(map[common.Address]struct{})}
}

func (g *Governance) Owner() common.Address {
	return g.owner
}

// Initialize appoints members. Only the owner may call it.
func (g *Governance) Initialize(caller common.Address, members ...common.Address) error {
	if caller != g.owner {
		return errcode.Wrap(errcode.ErrUnauthorized, "%s is not the owner", caller.Hex())
	}
	g.mu.Lock()
	for _, m := range members {
		g.members[m] = struct{}{}
	}
	g.mu.Unlock()
	return nil
}

// Revoke removes a member. The owner cannot be revoked.
func (g *Governance) Revoke(caller, member common.Address) error {
	if caller != g.owner {
		return errcode.Wrap(errcode.ErrUnauthorized, "%s is not the owner", caller.Hex())
	}
	g.mu.Lock()
	delete(g.members, member)
	g.mu.Unlock()
	return nil
}

func (g *Governance) IsGovernance(caller common.Address) bool {
	if caller == g.owner {
		return true
	}
	g.mu.RLock()
	_, ok := g.members[caller]
	g.mu.RUnlock()
	return ok
}

// Members returns the appointed members in address order.
func (g *Governance) Members() []common.Address {
	g.mu.RLock()
	out := make([]common.Address, 0, len(g.members))
	for m := range g.members {
		out = append(out, m)
	}
	g.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}
