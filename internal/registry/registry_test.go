package registry

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityEngine/internal/errcode"
)

var (
	owner    = common.HexToAddress("0x0000000000000000000000000000000000000001")
	member   = common.HexToAddress("0x0000000000000000000000000000000000000002")
	stranger = common.HexToAddress("0x0000000000000000000000000000000000000003")
)

func TestGovernanceInitialize(t *testing.T) {
	g := NewGovernance(owner)
	assert.True(t, g.IsGovernance(owner))
	assert.False(t, g.IsGovernance(member))

	err := g.Initialize(stranger, stranger)
	assert.ErrorIs(t, err, errcode.ErrUnauthorized)
	assert.Equal(t, uint32(100), errcode.CodeOf(err))
	assert.False(t, g.IsGovernance(stranger))

	require.NoError(t, g.Initialize(owner, member))
	assert.True(t, g.IsGovernance(member))
	assert.Equal(t, []common.Address{member}, g.Members())

	assert.ErrorIs(t, g.Revoke(member, member), errcode.ErrUnauthorized)
	require.NoError(t, g.Revoke(owner, member))
	assert.False(t, g.IsGovernance(member))
}

func TestRegisterTokenTwice(t *testing.T) {
	tokens := NewTokens(NewGovernance(owner))

	require.NoError(t, tokens.Register(owner, "STX", 6, false))
	err := tokens.Register(owner, "STX", 6, false)
	assert.ErrorIs(t, err, errcode.ErrAlreadyExists)
	assert.Equal(t, uint32(104), errcode.CodeOf(err))
}

func TestRegisterToken(t *testing.T) {
	tokens := NewTokens(NewGovernance(owner))

	assert.ErrorIs(t, tokens.Register(stranger, "STX", 6, false), errcode.ErrUnauthorized)
	assert.ErrorIs(t, tokens.Register(owner, "", 6, false), errcode.ErrInvalidParameters)
	assert.ErrorIs(t, tokens.Register(owner, "HUGE", MaxDecimals+1, false), errcode.ErrInvalidParameters)

	require.NoError(t, tokens.Register(owner, "USDA", 6, true))
	require.NoError(t, tokens.Register(owner, "STX", 6, false))

	assert.True(t, tokens.TokenExists("USDA"))
	assert.True(t, tokens.IsStable("USDA"))
	assert.False(t, tokens.IsStable("STX"))
	assert.False(t, tokens.IsStable("NOPE"))

	decimals, err := tokens.TokenDecimals("STX")
	require.NoError(t, err)
	assert.Equal(t, uint8(6), decimals)
	_, err = tokens.TokenDecimals("NOPE")
	assert.ErrorIs(t, err, errcode.ErrTokenNotFound)

	list := tokens.List()
	require.Len(t, list, 2)
	assert.Equal(t, "STX", list[0].ID)

	restored := NewTokens(nil)
	restored.Restore(list)
	assert.Equal(t, list, restored.List())
}

func TestShutdown(t *testing.T) {
	s := NewShutdown(NewGovernance(owner))
	assert.False(t, s.IsShutdown())

	assert.ErrorIs(t, s.Set(stranger, true), errcode.ErrUnauthorized)
	assert.False(t, s.IsShutdown())

	require.NoError(t, s.Set(owner, true))
	assert.True(t, s.IsShutdown())
	require.NoError(t, s.Set(owner, false))
	assert.False(t, s.IsShutdown())
}
