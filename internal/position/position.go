package position

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityEngine/internal/fixedpoint"
	"liquidityEngine/internal/tick"
)

// Position is a liquidity provider's stake in one pool. Full-range positions
// ignore the tick bounds.
type Position struct {
	ID        uint64
	Owner     common.Address
	PoolID    uint64
	FullRange bool
	TickLower int32
	TickUpper int32
	Liquidity uint256.Int

	FeeGrowthInsideLast tick.Growth
	// Owed is collectable by the owner.
	OwedX uint256.Int
	OwedY uint256.Int
	// Earned is every fee ever attributed, collected or compounded.
	EarnedX uint256.Int
	EarnedY uint256.Int
}

// Accrue credits fees grown inside the position's range since its last checkpoint and
// moves the checkpoint to inside. With collectable unset the fees are only recorded as
// earned, for positions whose fees compound into pool reserves.
func (p *Position) Accrue(inside tick.Growth, collectable bool) error {
	delta := inside.Sub(p.FeeGrowthInsideLast)

	feeX, err := fixedpoint.MulDiv(&delta.X, &p.Liquidity, fixedpoint.Q128, false)
	if err != nil {
		return err
	}
	feeY, err := fixedpoint.MulDiv(&delta.Y, &p.Liquidity, fixedpoint.Q128, false)
	if err != nil {
		return err
	}

	next := *p
	if err := addInto(&next.EarnedX, feeX); err != nil {
		return err
	}
	if err := addInto(&next.EarnedY, feeY); err != nil {
		return err
	}
	if collectable {
		if err := addInto(&next.OwedX, feeX); err != nil {
			return err
		}
		if err := addInto(&next.OwedY, feeY); err != nil {
			return err
		}
	}
	next.FeeGrowthInsideLast = inside
	*p = next
	return nil
}

// Closed reports whether nothing remains to withdraw or collect.
func (p *Position) Closed() bool {
	return p.Liquidity.IsZero() && p.OwedX.IsZero() && p.OwedY.IsZero()
}

func addInto(dst, v *uint256.Int) error {
	sum, err := fixedpoint.Add(dst, v)
	if err != nil {
		return err
	}
	dst.Set(sum)
	return nil
}
