package leveldb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"liquidityEngine/internal/model"
)

const defaultHistory = 16

var (
	latestKey     = []byte("snapshot/latest")
	historyPrefix = []byte("snapshot/seq/")
)

// Store keeps replay snapshots in a LevelDB database: the latest one under a fixed
// key and a bounded history keyed by sequence number.
type Store struct {
	db      *leveldb.DB
	history int
}

// Open opens or creates the database at path, keeping up to history snapshots.
func Open(path string, history int) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}
	return newStore(db, history), nil
}

// OpenMemory returns a store backed by memory, for tests and dry runs.
func OpenMemory(history int) (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open memory snapshot db: %w", err)
	}
	return newStore(db, history), nil
}

func newStore(db *leveldb.DB, history int) *Store {
	if history <= 0 {
		history = defaultHistory
	}
	return &Store{db: db, history: history}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func historyKey(seq uint64) []byte {
	key := make([]byte, 0, len(historyPrefix)+8)
	key = append(key, historyPrefix...)
	return binary.BigEndian.AppendUint64(key, seq)
}

func (s *Store) LoadSnapshot(_ context.Context) (model.Snapshot, bool, error) {
	data, err := s.db.Get(latestKey, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return model.Snapshot{}, false, nil
		}
		return model.Snapshot{}, false, fmt.Errorf("read snapshot: %w", err)
	}
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.Snapshot{}, false, fmt.Errorf("parse snapshot: %w", err)
	}
	return snap, true, nil
}

// SaveSnapshot writes snap as the latest snapshot and appends it to the history,
// dropping entries beyond the retention count.
func (s *Store) SaveSnapshot(_ context.Context, snap model.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	batch := new(leveldb.Batch)
	batch.Put(latestKey, data)
	batch.Put(historyKey(snap.LastSeq), data)

	keys, err := s.historyKeys()
	if err != nil {
		return err
	}
	// the key being written may already exist
	retained := 1
	for i := len(keys) - 1; i >= 0; i-- {
		if binary.BigEndian.Uint64(keys[i][len(historyPrefix):]) == snap.LastSeq {
			continue
		}
		if retained < s.history {
			retained++
			continue
		}
		batch.Delete(keys[i])
	}

	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// At returns the stored snapshot taken after operation seq.
func (s *Store) At(seq uint64) (model.Snapshot, bool, error) {
	data, err := s.db.Get(historyKey(seq), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return model.Snapshot{}, false, nil
		}
		return model.Snapshot{}, false, fmt.Errorf("read snapshot %d: %w", seq, err)
	}
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return model.Snapshot{}, false, fmt.Errorf("parse snapshot %d: %w", seq, err)
	}
	return snap, true, nil
}

// History lists the sequence numbers with a stored snapshot, ascending.
func (s *Store) History() ([]uint64, error) {
	keys, err := s.historyKeys()
	if err != nil {
		return nil, err
	}
	out := make([]uint64, 0, len(keys))
	for _, key := range keys {
		out = append(out, binary.BigEndian.Uint64(key[len(historyPrefix):]))
	}
	return out, nil
}

func (s *Store) historyKeys() ([][]byte, error) {
	iter := s.db.NewIterator(util.BytesPrefix(historyPrefix), nil)
	defer iter.Release()

	var keys [][]byte
	for iter.Next() {
		key := make([]byte, len(iter.Key()))
		copy(key, iter.Key())
		keys = append(keys, key)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("scan snapshot history: %w", err)
	}
	return keys, nil
}
