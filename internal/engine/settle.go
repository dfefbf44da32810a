package engine

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityEngine/internal/errcode"
	"liquidityEngine/internal/fixedpoint"
)

type leg struct {
	token  string
	amount uint256.Int
	from   common.Address
	to     common.Address
}

func newLeg(token string, amount *uint256.Int, from, to common.Address) leg {
	l := leg{token: token, from: from, to: to}
	l.amount.Set(amount)
	return l
}

// settle runs the legs in order. When one fails, the legs already done are
// reversed so that no partial settlement survives the call.
func (e *Engine) settle(ctx context.Context, legs ...leg) error {
	if e.transfer == nil {
		return errcode.Wrap(errcode.ErrTransferFailed, "no asset transfer configured")
	}
	if err := ctx.Err(); err != nil {
		return errcode.Wrap(errcode.ErrTransferFailed, "settlement not started: %v", err)
	}
	done := make([]leg, 0, len(legs))
	for _, l := range legs {
		if l.amount.IsZero() {
			continue
		}
		if err := e.transfer.Transfer(ctx, l.token, l.amount, l.from, l.to); err != nil {
			e.compensate(ctx, done)
			return errcode.Wrap(errcode.ErrTransferFailed, "%s %s from %s to %s: %v",
				fixedpoint.FormatAmount(&l.amount), l.token, l.from.Hex(), l.to.Hex(), err)
		}
		done = append(done, l)
	}
	return nil
}

// compensate reverses done legs. It ignores cancellation of ctx: a cancelled
// operation must still undo what it already moved.
func (e *Engine) compensate(ctx context.Context, done []leg) {
	ctx = context.WithoutCancel(ctx)
	for i := len(done) - 1; i >= 0; i-- {
		l := done[i]
		if err := e.transfer.Transfer(ctx, l.token, l.amount, l.to, l.from); err != nil {
			e.logger.Error("reverse transfer failed",
				zap.String("token", l.token),
				zap.String("amount", fixedpoint.FormatAmount(&l.amount)),
				zap.String("from", l.to.Hex()),
				zap.String("to", l.from.Hex()),
				zap.Error(err),
			)
		}
	}
}
