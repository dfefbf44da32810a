package registry

import (
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"

	"liquidityEngine/internal/errcode"
)

// Shutdown is the emergency stop flag.
type Shutdown struct {
	auth   Authorizer
	active atomic.Bool
}

func NewShutdown(auth Authorizer) *Shutdown {
	return &Shutdown{auth: auth}
}

// Set turns the flag on or off. Governance only.
func (s *Shutdown) Set(caller common.Address, active bool) error {
	if s.auth == nil || !s.auth.IsGovernance(caller) {
		return errcode.Wrap(errcode.ErrUnauthorized, "%s cannot toggle shutdown", caller.Hex())
	}
	s.active.Store(active)
	return nil
}

func (s *Shutdown) IsShutdown() bool {
	return s.active.Load()
}

// Restore sets the flag without authorization checks.
func (s *Shutdown) Restore(active bool) {
	s.active.Store(active)
}
