package position

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityEngine/internal/fixedpoint"
	"liquidityEngine/internal/tick"
)

var alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")

func q128Times(n uint64) uint256.Int {
	var v uint256.Int
	v.Mul(fixedpoint.Q128, uint256.NewInt(n))
	return v
}

func TestAccrueCollectable(t *testing.T) {
	p := Position{Owner: alice, Liquidity: *uint256.NewInt(1000)}
	inside := tick.Growth{X: q128Times(3), Y: q128Times(0)}
	inside.Y.Rsh(fixedpoint.Q128, 1) // half a unit per liquidity

	require.NoError(t, p.Accrue(inside, true))
	assert.Equal(t, uint64(3000), p.OwedX.Uint64())
	assert.Equal(t, uint64(500), p.OwedY.Uint64())
	assert.Equal(t, uint64(3000), p.EarnedX.Uint64())
	assert.Equal(t, inside, p.FeeGrowthInsideLast)

	// accruing again at the same growth is a no-op
	require.NoError(t, p.Accrue(inside, true))
	assert.Equal(t, uint64(3000), p.OwedX.Uint64())
}

func TestAccrueCompounding(t *testing.T) {
	p := Position{FullRange: true, Liquidity: *uint256.NewInt(10)}
	require.NoError(t, p.Accrue(tick.Growth{X: q128Times(7)}, false))
	assert.True(t, p.OwedX.IsZero())
	assert.Equal(t, uint64(70), p.EarnedX.Uint64())
}

func TestAccrueAcrossWrap(t *testing.T) {
	var last tick.Growth
	last.X.Neg(fixedpoint.Q128) // 2^256 - 2^128
	p := Position{Liquidity: *uint256.NewInt(4), FeeGrowthInsideLast: last}

	require.NoError(t, p.Accrue(tick.Growth{X: q128Times(1)}, true))
	assert.Equal(t, uint64(8), p.OwedX.Uint64())
}

func TestAccrueFloors(t *testing.T) {
	p := Position{Liquidity: *uint256.NewInt(3)}
	var inside tick.Growth
	inside.X.Rsh(fixedpoint.Q128, 2) // 0.25 per unit

	require.NoError(t, p.Accrue(inside, true))
	assert.Equal(t, uint64(0), p.OwedX.Uint64())
}

func TestTableSequentialIDs(t *testing.T) {
	tbl := NewTable()
	assert.Equal(t, uint64(1), tbl.nextID())

	a := tbl.Insert(Position{Owner: alice, PoolID: 1, Liquidity: *uint256.NewInt(1)})
	b := tbl.Insert(Position{Owner: alice, PoolID: 2, Liquidity: *uint256.NewInt(1)})
	c := tbl.Insert(Position{Owner: alice, PoolID: 1, Liquidity: *uint256.NewInt(1)})
	assert.Equal(t, []uint64{1, 2, 3}, []uint64{a, b, c})

	var pool1 []uint64
	for _, p := range tbl.ByPool(1) {
		pool1 = append(pool1, p.ID)
	}
	assert.Equal(t, []uint64{1, 3}, pool1)

	tbl.Delete(a)
	assert.Equal(t, uint64(4), tbl.nextID(), "ids are not reused")
	assert.Len(t, tbl.ByPool(1), 1)
	assert.Equal(t, 2, tbl.Len())
}

func TestTablePutDropsClosedPositions(t *testing.T) {
	tbl := NewTable()
	id := tbl.Insert(Position{PoolID: 1, Liquidity: *uint256.NewInt(5)})

	p, ok := tbl.Get(id)
	require.True(t, ok)
	p.Liquidity.Clear()
	p.OwedY.SetUint64(1)
	tbl.Put(p)
	_, ok = tbl.Get(id)
	assert.True(t, ok, "owed fees keep the position open")

	p.OwedY.Clear()
	tbl.Put(p)
	_, ok = tbl.Get(id)
	assert.False(t, ok)
	assert.Empty(t, tbl.ByPool(1))
}

func TestTableRestore(t *testing.T) {
	tbl := NewTable()
	tbl.Insert(Position{PoolID: 1, Liquidity: *uint256.NewInt(5)})
	tbl.Insert(Position{PoolID: 1, Liquidity: *uint256.NewInt(6)})
	saved, last := tbl.All(), tbl.LastID()

	other := NewTable()
	other.Restore(saved, last)
	assert.Equal(t, saved, other.All())
	assert.Equal(t, uint64(3), other.nextID())

	other.Restore(saved[:1], 9)
	assert.Equal(t, uint64(10), other.nextID())
}
