package fixedpoint

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityEngine/internal/errcode"
)

func u(s string) *uint256.Int {
	return uint256.MustFromDecimal(s)
}

func TestMulDivRounding(t *testing.T) {
	down, err := MulDiv(uint256.NewInt(7), uint256.NewInt(3), uint256.NewInt(2), false)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), down.Uint64())

	up, err := MulDiv(uint256.NewInt(7), uint256.NewInt(3), uint256.NewInt(2), true)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), up.Uint64())

	exact, err := MulDiv(uint256.NewInt(8), uint256.NewInt(3), uint256.NewInt(2), true)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), exact.Uint64())
}

func TestMulDivWideIntermediate(t *testing.T) {
	max := new(uint256.Int).SetAllOne()
	got, err := MulDiv(max, max, max, false)
	require.NoError(t, err)
	assert.True(t, got.Eq(max))

	got, err = MulDiv(Q128, Q128, Q128, true)
	require.NoError(t, err)
	assert.True(t, got.Eq(Q128))
}

func TestMulDivOverflow(t *testing.T) {
	max := new(uint256.Int).SetAllOne()
	_, err := MulDiv(max, uint256.NewInt(2), uint256.NewInt(1), false)
	require.ErrorIs(t, err, errcode.ErrArithmeticOverflow)

	_, err = MulDiv(uint256.NewInt(1), uint256.NewInt(1), uint256.NewInt(0), false)
	require.ErrorIs(t, err, errcode.ErrArithmeticOverflow)

	_, err = MulDiv(max, max, new(uint256.Int).Sub(max, uint256.NewInt(1)), false)
	require.ErrorIs(t, err, errcode.ErrArithmeticOverflow)
}

func TestCheckedArithmetic(t *testing.T) {
	_, err := Sub(uint256.NewInt(1), uint256.NewInt(2))
	require.ErrorIs(t, err, errcode.ErrArithmeticOverflow)

	_, err = Add(new(uint256.Int).SetAllOne(), uint256.NewInt(1))
	require.ErrorIs(t, err, errcode.ErrArithmeticOverflow)

	_, err = Mul(Q128, Q128)
	require.ErrorIs(t, err, errcode.ErrArithmeticOverflow)

	got, err := DivRoundingUp(uint256.NewInt(10), uint256.NewInt(3))
	require.NoError(t, err)
	assert.Equal(t, uint64(4), got.Uint64())
}

func TestSqrtFloor(t *testing.T) {
	cases := map[uint64]uint64{0: 0, 1: 1, 15: 3, 16: 4, 17: 4, 1_000_000: 1000, 999_999: 999}
	for in, want := range cases {
		assert.Equal(t, want, Sqrt(uint256.NewInt(in)).Uint64(), "sqrt(%d)", in)
	}
}

func TestSqrtPriceAtTickKnownValues(t *testing.T) {
	cases := []struct {
		tick int32
		want string
	}{
		{0, "79228162514264337593543950336"},
		{1, "79232123823359799118286999568"},
		{-1, "79224201403219477170569942574"},
		{60, "79466191966197645195421774833"},
		{-60, "78990846045029531151608375686"},
		{6932, "112046559425783515914356180039"},
		{MinTick, "4295128739"},
		{MaxTick, "1461446703485210103287273052203988822378723970342"},
	}
	for _, tc := range cases {
		got, err := SqrtPriceAtTick(tc.tick)
		require.NoError(t, err)
		assert.Equal(t, tc.want, FormatAmount(got), "tick %d", tc.tick)
	}

	_, err := SqrtPriceAtTick(MaxTick + 1)
	require.ErrorIs(t, err, errcode.ErrInvalidParameters)
	_, err = SqrtPriceAtTick(MinTick - 1)
	require.ErrorIs(t, err, errcode.ErrInvalidParameters)
}

func TestTickPriceRoundTrip(t *testing.T) {
	ticks := []int32{MinTick, MinTick + 1, MaxTick - 1, MaxTick}
	for tick := int32(-2000); tick <= 2000; tick++ {
		ticks = append(ticks, tick)
	}
	for tick := MinTick; tick <= MaxTick; tick += 997 {
		ticks = append(ticks, tick)
	}

	for _, tick := range ticks {
		price, err := SqrtPriceAtTick(tick)
		require.NoError(t, err)
		got, err := TickAtSqrtPrice(price)
		require.NoError(t, err)
		require.Equal(t, tick, got, "round trip for tick %d", tick)
	}
}

func TestTickAtSqrtPriceBetweenTicks(t *testing.T) {
	lower, err := SqrtPriceAtTick(100)
	require.NoError(t, err)
	upper, err := SqrtPriceAtTick(101)
	require.NoError(t, err)

	mid := new(uint256.Int).Add(lower, upper)
	mid.Rsh(mid, 1)
	got, err := TickAtSqrtPrice(mid)
	require.NoError(t, err)
	assert.Equal(t, int32(100), got)

	below := new(uint256.Int).Sub(upper, uint256.NewInt(1))
	got, err = TickAtSqrtPrice(below)
	require.NoError(t, err)
	assert.Equal(t, int32(100), got)

	_, err = TickAtSqrtPrice(new(uint256.Int).Sub(MinSqrtPrice, uint256.NewInt(1)))
	require.ErrorIs(t, err, errcode.ErrInvalidParameters)
}

func TestSqrtPriceMonotonic(t *testing.T) {
	prev, err := SqrtPriceAtTick(-500)
	require.NoError(t, err)
	for tick := int32(-499); tick <= 500; tick++ {
		cur, err := SqrtPriceAtTick(tick)
		require.NoError(t, err)
		require.True(t, cur.Gt(prev), "tick %d", tick)
		prev = cur
	}
}

func TestAmountDeltas(t *testing.T) {
	one := u("79228162514264337593543950336")
	oneTwentyOne := u("87150978765690771352898345369")
	liquidity := u("1000000000000000000")

	a0Up, err := Amount0Delta(one, oneTwentyOne, liquidity, true)
	require.NoError(t, err)
	assert.Equal(t, "90909090909090910", FormatAmount(a0Up))

	a0Down, err := Amount0Delta(oneTwentyOne, one, liquidity, false)
	require.NoError(t, err)
	assert.Equal(t, "90909090909090909", FormatAmount(a0Down))

	a1Up, err := Amount1Delta(one, oneTwentyOne, liquidity, true)
	require.NoError(t, err)
	assert.Equal(t, "100000000000000000", FormatAmount(a1Up))

	a1Down, err := Amount1Delta(one, oneTwentyOne, liquidity, false)
	require.NoError(t, err)
	assert.Equal(t, "99999999999999999", FormatAmount(a1Down))
}

func TestNextSqrtPriceDirection(t *testing.T) {
	price := new(uint256.Int).Set(Q96)
	liquidity := u("1000000000000000000")
	amount := u("100000000000000000")

	down, err := NextSqrtPriceFromInput(price, liquidity, amount, true)
	require.NoError(t, err)
	assert.True(t, down.Lt(price))

	up, err := NextSqrtPriceFromInput(price, liquidity, amount, false)
	require.NoError(t, err)
	assert.True(t, up.Gt(price))
	// token1 in moves the price by exactly amount/liquidity
	assert.Equal(t, "87150978765690771352898345369", FormatAmount(up))

	same, err := NextSqrtPriceFromInput(price, liquidity, new(uint256.Int), true)
	require.NoError(t, err)
	assert.True(t, same.Eq(price))

	_, err = NextSqrtPriceFromOutput(price, liquidity, u("1000000000000000001"), false)
	require.ErrorIs(t, err, errcode.ErrInsufficientLiquidity)

	_, err = NextSqrtPriceFromInput(price, new(uint256.Int), amount, true)
	require.ErrorIs(t, err, errcode.ErrInsufficientLiquidity)
}

func TestLiquidityForAmounts(t *testing.T) {
	lower, err := SqrtPriceAtTick(-600)
	require.NoError(t, err)
	upper, err := SqrtPriceAtTick(600)
	require.NoError(t, err)
	amount := u("1000000")

	liquidity, err := LiquidityForAmounts(Q96, lower, upper, amount, amount)
	require.NoError(t, err)
	require.False(t, liquidity.IsZero())

	need0, err := Amount0Delta(Q96, upper, liquidity, true)
	require.NoError(t, err)
	need1, err := Amount1Delta(lower, Q96, liquidity, true)
	require.NoError(t, err)
	assert.False(t, need0.Gt(amount))
	assert.False(t, need1.Gt(amount))

	// below the range only token0 is needed
	below, err := SqrtPriceAtTick(-1200)
	require.NoError(t, err)
	onlyX, err := LiquidityForAmounts(below, lower, upper, amount, new(uint256.Int))
	require.NoError(t, err)
	assert.False(t, onlyX.IsZero())
}

func TestParseFormatAmount(t *testing.T) {
	x, err := ParseAmount("115792089237316195423570985008687907853269984665640564039457584007913129639935")
	require.NoError(t, err)
	assert.True(t, x.Eq(new(uint256.Int).SetAllOne()))

	_, err = ParseAmount("115792089237316195423570985008687907853269984665640564039457584007913129639936")
	require.Error(t, err)
	_, err = ParseAmount("-1")
	require.Error(t, err)
	_, err = ParseAmount("12a")
	require.Error(t, err)

	zero, err := ParseAmount("")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())
	assert.Equal(t, "0", FormatAmount(nil))
}
