package leveldb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityEngine/internal/model"
)

func TestSnapshotLatestAndHistory(t *testing.T) {
	s, err := OpenMemory(3)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	_, ok, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	for seq := uint64(10); seq <= 50; seq += 10 {
		require.NoError(t, s.SaveSnapshot(ctx, model.Snapshot{LastSeq: seq, Digest: "d"}))
	}

	latest, ok, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(50), latest.LastSeq)

	history, err := s.History()
	require.NoError(t, err)
	assert.Equal(t, []uint64{30, 40, 50}, history)

	_, ok, err = s.At(10)
	require.NoError(t, err)
	assert.False(t, ok, "pruned")
	at, ok, err := s.At(40)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(40), at.LastSeq)
}

func TestSnapshotResaveSameSeq(t *testing.T) {
	s, err := OpenMemory(2)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.SaveSnapshot(ctx, model.Snapshot{LastSeq: 1}))
	require.NoError(t, s.SaveSnapshot(ctx, model.Snapshot{LastSeq: 2, Digest: "a"}))
	require.NoError(t, s.SaveSnapshot(ctx, model.Snapshot{LastSeq: 2, Digest: "b"}))

	history, err := s.History()
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, history)
	at, _, err := s.At(2)
	require.NoError(t, err)
	assert.Equal(t, "b", at.Digest)
}
