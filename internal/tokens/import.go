package tokens

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityEngine/internal/model"
	"liquidityEngine/internal/registry"
)

// Importer turns on-chain ERC20 contracts into register_token operations.
type Importer struct {
	caller ContractCaller
	logger *zap.Logger
}

func NewImporter(caller ContractCaller, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{caller: caller, logger: logger}
}

// Operations reads every address and returns one register_token operation per
// token, numbered from startSeq and issued by owner. A token whose symbol is empty
// or already taken is registered under its address.
func (i *Importer) Operations(ctx context.Context, addresses []common.Address, stable map[common.Address]bool, owner common.Address, startSeq uint64) ([]model.Operation, error) {
	ops := make([]model.Operation, 0, len(addresses))
	taken := make(map[string]struct{}, len(addresses))
	seen := make(map[common.Address]struct{}, len(addresses))
	seq := startSeq
	for _, addr := range addresses {
		if _, dup := seen[addr]; dup {
			i.logger.Warn("duplicate address skipped", zap.String("token", addr.Hex()))
			continue
		}
		seen[addr] = struct{}{}

		meta, err := FetchMeta(ctx, i.caller, addr, i.logger)
		if err != nil {
			return nil, fmt.Errorf("token %s: %w", addr.Hex(), err)
		}
		if meta.Decimals > registry.MaxDecimals {
			return nil, fmt.Errorf("token %s: %d decimals exceeds %d", addr.Hex(), meta.Decimals, registry.MaxDecimals)
		}

		id := meta.TokenID()
		if _, dup := taken[id]; dup {
			i.logger.Warn("symbol already imported, using address", zap.String("symbol", id), zap.String("token", meta.Address))
			id = meta.Address
		}
		taken[id] = struct{}{}

		op, err := model.NewOperation(seq, model.OpRegisterToken, owner.Hex(), model.RegisterTokenPayload{
			Token:    id,
			Decimals: meta.Decimals,
			Stable:   stable[addr],
		})
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		seq++
		i.logger.Info("token imported",
			zap.String("id", id),
			zap.String("token", meta.Address),
			zap.String("name", meta.Name),
			zap.Uint8("decimals", meta.Decimals),
		)
	}
	return ops, nil
}

// WriteOperations writes ops as JSON lines.
func WriteOperations(w io.Writer, ops []model.Operation) error {
	enc := json.NewEncoder(w)
	for _, op := range ops {
		if err := enc.Encode(op); err != nil {
			return fmt.Errorf("encode operation %d: %w", op.Seq, err)
		}
	}
	return nil
}
