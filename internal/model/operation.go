package model

import (
	"encoding/json"
	"fmt"
)

// Operation names accepted in an operation log.
const (
	OpInitGovernance           = "init_governance"
	OpRevokeGovernance         = "revoke_governance"
	OpRegisterToken            = "register_token"
	OpSetShutdown              = "set_shutdown"
	OpFund                     = "fund"
	OpCreatePool               = "create_pool"
	OpSwap                     = "swap"
	OpSwapExactOutput          = "swap_exact_output"
	OpAddLiquidity             = "add_liquidity"
	OpAddConcentratedLiquidity = "add_concentrated_liquidity"
	OpRemoveLiquidity          = "remove_liquidity"
	OpCollectFees              = "collect_fees"
)

// Operation is one line of an operation log.
type Operation struct {
	Seq     uint64          `json:"seq"`
	Op      string          `json:"op"`
	Caller  string          `json:"caller"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewOperation encodes payload into an Operation.
func NewOperation(seq uint64, op, caller string, payload interface{}) (Operation, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Operation{}, fmt.Errorf("marshal %s payload: %w", op, err)
	}
	return Operation{Seq: seq, Op: op, Caller: caller, Payload: raw}, nil
}

// Decode unmarshals the payload into dst.
func (o Operation) Decode(dst interface{}) error {
	if len(o.Payload) == 0 {
		return fmt.Errorf("operation %d (%s): missing payload", o.Seq, o.Op)
	}
	if err := json.Unmarshal(o.Payload, dst); err != nil {
		return fmt.Errorf("operation %d (%s): %w", o.Seq, o.Op, err)
	}
	return nil
}
