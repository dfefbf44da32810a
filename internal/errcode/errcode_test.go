package errcode

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorsMatchByCode(t *testing.T) {
	assert.ErrorIs(t, ErrPoolExists, ErrAlreadyExists)
	assert.ErrorIs(t, ErrInvalidCurveParameters, ErrInvalidParameters)
	assert.NotErrorIs(t, ErrRangeInvalid, ErrInvalidParameters)
	assert.NotErrorIs(t, ErrConvergence, ErrArithmeticOverflow)
}

func TestWrapKeepsCode(t *testing.T) {
	err := Wrap(ErrRangeInvalid, "lower %d >= upper %d", 100, -100)
	require.ErrorIs(t, err, ErrRangeInvalid)
	assert.Equal(t, uint32(112), CodeOf(err))
	assert.Contains(t, err.Error(), "lower 100 >= upper -100")

	outer := fmt.Errorf("add concentrated liquidity: %w", err)
	assert.Equal(t, uint32(112), CodeOf(outer))
	kind, ok := KindOf(outer)
	require.True(t, ok)
	assert.Equal(t, KindValidation, kind)
}

func TestCodeOfUncoded(t *testing.T) {
	assert.Zero(t, CodeOf(errors.New("plain")))
	assert.Zero(t, CodeOf(nil))
	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestObservedCodes(t *testing.T) {
	cases := map[*Error]uint32{
		ErrUnauthorized:      100,
		ErrAlreadyExists:     104,
		ErrInvalidParameters: 111,
		ErrRangeInvalid:      112,
		ErrShutdownActive:    114,
	}
	for e, code := range cases {
		assert.Equal(t, code, e.Code, e.Message)
	}
}
