package tick

import (
	"github.com/google/btree"
	"github.com/holiman/uint256"

	"liquidityEngine/internal/errcode"
	"liquidityEngine/internal/fixedpoint"
)

const btreeDegree = 32

// Index is the ordered set of initialized ticks of one pool.
type Index struct {
	tree *btree.BTreeG[Tick]
}

func lessTick(a, b Tick) bool {
	return a.Index < b.Index
}

func NewIndex() *Index {
	return &Index{tree: btree.NewG[Tick](btreeDegree, lessTick)}
}

// Clone returns a copy-on-write copy; writes to either side do not affect the other.
func (ix *Index) Clone() *Index {
	return &Index{tree: ix.tree.Clone()}
}

func (ix *Index) Len() int {
	return ix.tree.Len()
}

func (ix *Index) Get(index int32) (Tick, bool) {
	return ix.tree.Get(Tick{Index: index})
}

// Ticks returns all initialized ticks in ascending order.
func (ix *Index) Ticks() []Tick {
	out := make([]Tick, 0, ix.tree.Len())
	ix.tree.Ascend(func(t Tick) bool {
		out = append(out, t)
		return true
	})
	return out
}

// Restore replaces the content of the index.
func (ix *Index) Restore(ticks []Tick) {
	ix.tree.Clear(false)
	for _, t := range ticks {
		ix.tree.ReplaceOrInsert(t)
	}
}

// NextAbove returns the lowest initialized tick strictly above index.
func (ix *Index) NextAbove(index int32) (Tick, bool) {
	var (
		found Tick
		ok    bool
	)
	if index == fixedpoint.MaxTick {
		return found, false
	}
	ix.tree.AscendGreaterOrEqual(Tick{Index: index + 1}, func(t Tick) bool {
		found, ok = t, true
		return false
	})
	return found, ok
}

// NextAtOrBelow returns the highest initialized tick at or below index.
func (ix *Index) NextAtOrBelow(index int32) (Tick, bool) {
	var (
		found Tick
		ok    bool
	)
	ix.tree.DescendLessOrEqual(Tick{Index: index}, func(t Tick) bool {
		found, ok = t, true
		return false
	})
	return found, ok
}

// NextBelow returns the highest initialized tick strictly below index.
func (ix *Index) NextBelow(index int32) (Tick, bool) {
	if index == fixedpoint.MinTick {
		return Tick{}, false
	}
	return ix.NextAtOrBelow(index - 1)
}

// AddRange references [lower, upper) with liquidity. Boundaries are initialized on
// first reference; active is raised when current lies inside the range.
func (ix *Index) AddRange(lower, upper int32, liquidity *uint256.Int, current int32, global Growth, active *uint256.Int) error {
	if err := CheckOrder(lower, upper); err != nil {
		return err
	}
	if liquidity.IsZero() {
		return errcode.Wrap(errcode.ErrInvalidParameters, "zero liquidity")
	}

	lowerTick, err := ix.grow(lower, liquidity, current, global, false)
	if err != nil {
		return err
	}
	upperTick, err := ix.grow(upper, liquidity, current, global, true)
	if err != nil {
		return err
	}

	if lower <= current && current < upper {
		next, err := fixedpoint.Add(active, liquidity)
		if err != nil {
			return err
		}
		if next.Gt(fixedpoint.MaxUint128) {
			return errcode.Wrap(errcode.ErrArithmeticOverflow, "active liquidity exceeds 128 bits")
		}
		active.Set(next)
	}

	ix.tree.ReplaceOrInsert(lowerTick)
	ix.tree.ReplaceOrInsert(upperTick)
	return nil
}

func (ix *Index) grow(index int32, liquidity *uint256.Int, current int32, global Growth, upper bool) (Tick, error) {
	t, ok := ix.Get(index)
	if !ok {
		t = Tick{Index: index}
		// growth before initialization is attributed below the current price
		if index <= current {
			t.FeeGrowthOutside = global
		}
	}

	gross, err := fixedpoint.Add(&t.LiquidityGross, liquidity)
	if err != nil {
		return Tick{}, err
	}
	if gross.Gt(fixedpoint.MaxUint128) {
		return Tick{}, errcode.Wrap(errcode.ErrArithmeticOverflow, "tick %d liquidity exceeds 128 bits", index)
	}
	t.LiquidityGross.Set(gross)

	if upper {
		t.LiquidityNet.Sub(&t.LiquidityNet, liquidity)
	} else {
		t.LiquidityNet.Add(&t.LiquidityNet, liquidity)
	}
	return t, nil
}

// RemoveRange releases liquidity from [lower, upper). A boundary no longer referenced
// by any position is deleted.
func (ix *Index) RemoveRange(lower, upper int32, liquidity *uint256.Int, current int32, active *uint256.Int) error {
	if err := CheckOrder(lower, upper); err != nil {
		return err
	}

	lowerTick, err := ix.shrink(lower, liquidity, false)
	if err != nil {
		return err
	}
	upperTick, err := ix.shrink(upper, liquidity, true)
	if err != nil {
		return err
	}

	if lower <= current && current < upper {
		next, err := fixedpoint.Sub(active, liquidity)
		if err != nil {
			return err
		}
		active.Set(next)
	}

	for _, t := range []Tick{lowerTick, upperTick} {
		if t.LiquidityGross.IsZero() {
			ix.tree.Delete(t)
			continue
		}
		ix.tree.ReplaceOrInsert(t)
	}
	return nil
}

func (ix *Index) shrink(index int32, liquidity *uint256.Int, upper bool) (Tick, error) {
	t, ok := ix.Get(index)
	if !ok {
		return Tick{}, errcode.Wrap(errcode.ErrInsufficientLiquidity, "tick %d not initialized", index)
	}
	gross, err := fixedpoint.Sub(&t.LiquidityGross, liquidity)
	if err != nil {
		return Tick{}, errcode.Wrap(errcode.ErrInsufficientLiquidity, "tick %d: %v", index, err)
	}
	t.LiquidityGross.Set(gross)

	if upper {
		t.LiquidityNet.Add(&t.LiquidityNet, liquidity)
	} else {
		t.LiquidityNet.Sub(&t.LiquidityNet, liquidity)
	}
	return t, nil
}

// Cross moves the price across an initialized tick: the outside growth flips to the
// other side and active liquidity takes the tick's net delta.
func (ix *Index) Cross(index int32, global Growth, upward bool, active *uint256.Int) error {
	t, ok := ix.Get(index)
	if !ok {
		return errcode.Wrap(errcode.ErrInvalidParameters, "tick %d not initialized", index)
	}

	next, err := ApplyNet(active, &t.LiquidityNet, upward)
	if err != nil {
		return err
	}

	t.FeeGrowthOutside = global.Sub(t.FeeGrowthOutside)
	ix.tree.ReplaceOrInsert(t)
	active.Set(next)
	return nil
}

// FeeGrowthInside returns the fee growth accumulated inside [lower, upper).
func (ix *Index) FeeGrowthInside(lower, upper, current int32, global Growth) Growth {
	lowerTick, _ := ix.Get(lower)
	upperTick, _ := ix.Get(upper)

	below := lowerTick.FeeGrowthOutside
	if current < lower {
		below = global.Sub(lowerTick.FeeGrowthOutside)
	}
	above := upperTick.FeeGrowthOutside
	if current >= upper {
		above = global.Sub(upperTick.FeeGrowthOutside)
	}
	return global.Sub(below).Sub(above)
}
