package engine

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"liquidityEngine/internal/errcode"
	"liquidityEngine/internal/pool"
	"liquidityEngine/internal/position"
	"liquidityEngine/internal/tick"
)

// Snapshot is the complete committed state of an engine.
type Snapshot struct {
	Pools          []pool.Pool
	Ticks          map[uint64][]tick.Tick
	Positions      []position.Position
	LastPositionID uint64
}

func (e *Engine) Pool(id uint64) (pool.Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.getPool(id)
}

// PoolByPair finds the pool trading a and b, in either order.
func (e *Engine) PoolByPair(a, b string) (pool.Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.pools.Lookup(a, b)
	if !ok {
		return pool.Pool{}, errcode.Wrap(errcode.ErrPoolNotFound, "pair %s/%s", a, b)
	}
	return p, nil
}

func (e *Engine) Pools() []pool.Pool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pools.List()
}

func (e *Engine) Position(id uint64) (position.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pos, ok := e.positions.Get(id)
	if !ok {
		return position.Position{}, errcode.Wrap(errcode.ErrPositionNotFound, "position %d", id)
	}
	return pos, nil
}

// PoolPositions returns the open positions of one pool.
func (e *Engine) PoolPositions(poolID uint64) []position.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positions.ByPool(poolID)
}

// CurrentTick derives the tick of a concentrated pool from its price.
func (e *Engine) CurrentTick(poolID uint64) (int32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.getPool(poolID)
	if err != nil {
		return 0, err
	}
	if !p.Concentrated() {
		return 0, errcode.Wrap(errcode.ErrInvalidParameters, "pool %d has no ticks", poolID)
	}
	return p.CurrentTick()
}

// Ticks returns the initialized ticks of a pool in ascending order.
func (e *Engine) Ticks(poolID uint64) ([]tick.Tick, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.getPool(poolID); err != nil {
		return nil, err
	}
	ix, ok := e.ticks[poolID]
	if !ok {
		return nil, nil
	}
	return ix.Ticks(), nil
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot()
}

func (e *Engine) snapshot() Snapshot {
	snap := Snapshot{
		Pools:          e.pools.List(),
		Ticks:          make(map[uint64][]tick.Tick, len(e.ticks)),
		Positions:      e.positions.All(),
		LastPositionID: e.positions.LastID(),
	}
	for id, ix := range e.ticks {
		if ix.Len() > 0 {
			snap.Ticks[id] = ix.Ticks()
		}
	}
	return snap
}

// Restore replaces all engine state with snap.
func (e *Engine) Restore(snap Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	pools := pool.NewRegistry()
	if err := pools.Restore(snap.Pools); err != nil {
		return err
	}
	ticks := make(map[uint64]*tick.Index, len(snap.Ticks))
	for id, list := range snap.Ticks {
		if _, ok := pools.Get(id); !ok {
			return fmt.Errorf("restore ticks: %w", errcode.Wrap(errcode.ErrPoolNotFound, "pool %d", id))
		}
		ix := tick.NewIndex()
		ix.Restore(list)
		ticks[id] = ix
	}
	for _, p := range pools.List() {
		if _, ok := ticks[p.ID]; !ok && p.Concentrated() {
			ticks[p.ID] = tick.NewIndex()
		}
	}
	for _, pos := range snap.Positions {
		if _, ok := pools.Get(pos.PoolID); !ok {
			return fmt.Errorf("restore position %d: %w", pos.ID, errcode.Wrap(errcode.ErrPoolNotFound, "pool %d", pos.PoolID))
		}
	}
	positions := position.NewTable()
	positions.Restore(snap.Positions, snap.LastPositionID)

	e.pools = pools
	e.ticks = ticks
	e.positions = positions
	return nil
}

// StateDigest is a keccak256 over a canonical encoding of the committed state. Two
// engines that applied the same operations produce the same digest.
func (e *Engine) StateDigest() common.Hash {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot().Digest()
}

// Digest hashes the snapshot in a fixed order.
func (s Snapshot) Digest() common.Hash {
	var w digestWriter
	w.putUint64(uint64(len(s.Pools)))
	for _, p := range s.Pools {
		w.putUint64(p.ID)
		w.putString(p.TokenX)
		w.putString(p.TokenY)
		w.putUint64(uint64(p.Curve))
		for _, v := range p.Params {
			w.putUint64(uint64(v))
		}
		w.putUint64(uint64(p.FeeBP))
		w.putUint64(uint64(uint32(p.TickSpacing)))
		w.putUint64(uint64(p.DecimalsX)<<8 | uint64(p.DecimalsY))
		w.putInts(&p.ReserveX, &p.ReserveY, &p.FeeGrowth.X, &p.FeeGrowth.Y, &p.FeesX, &p.FeesY,
			&p.Liquidity, &p.ActiveLiquidity, &p.SqrtPrice)
	}

	ids := make([]uint64, 0, len(s.Ticks))
	for id, list := range s.Ticks {
		if len(list) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	w.putUint64(uint64(len(ids)))
	for _, id := range ids {
		list := s.Ticks[id]
		w.putUint64(id)
		w.putUint64(uint64(len(list)))
		for _, t := range list {
			w.putUint64(uint64(uint32(t.Index)))
			w.putInts(&t.LiquidityGross, &t.LiquidityNet, &t.FeeGrowthOutside.X, &t.FeeGrowthOutside.Y)
		}
	}

	w.putUint64(uint64(len(s.Positions)))
	for _, pos := range s.Positions {
		w.putUint64(pos.ID)
		w.buf = append(w.buf, pos.Owner.Bytes()...)
		w.putUint64(pos.PoolID)
		if pos.FullRange {
			w.putUint64(1)
		} else {
			w.putUint64(0)
		}
		w.putUint64(uint64(uint32(pos.TickLower)))
		w.putUint64(uint64(uint32(pos.TickUpper)))
		w.putInts(&pos.Liquidity, &pos.FeeGrowthInsideLast.X, &pos.FeeGrowthInsideLast.Y,
			&pos.OwedX, &pos.OwedY, &pos.EarnedX, &pos.EarnedY)
	}
	w.putUint64(s.LastPositionID)
	return crypto.Keccak256Hash(w.buf)
}

type digestWriter struct {
	buf []byte
}

func (w *digestWriter) putUint64(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

func (w *digestWriter) putString(s string) {
	w.putUint64(uint64(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *digestWriter) putInts(values ...*uint256.Int) {
	for _, v := range values {
		b := v.Bytes32()
		w.buf = append(w.buf, b[:]...)
	}
}
