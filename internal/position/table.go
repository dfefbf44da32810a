package position

import "sort"

// Table holds open positions. Ids are sequential from 1 and never reused.
type Table struct {
	lastID uint64
	byID   map[uint64]Position
	byPool map[uint64]map[uint64]struct{}
}

func NewTable() *Table {
	return &Table{
		byID:   make(map[uint64]Position),
		byPool: make(map[uint64]map[uint64]struct{}),
	}
}

// nextID is the id the next Insert will assign.
func (t *Table) nextID() uint64 {
	return t.lastID + 1
}

// Insert stores p under a fresh id and returns it.
func (t *Table) Insert(p Position) uint64 {
	p.ID = t.nextID()
	t.lastID = p.ID
	t.put(p)
	return p.ID
}

func (t *Table) Get(id uint64) (Position, bool) {
	p, ok := t.byID[id]
	return p, ok
}

// Put replaces an existing position, or drops it once it is closed.
func (t *Table) Put(p Position) {
	if p.Closed() {
		t.Delete(p.ID)
		return
	}
	t.put(p)
}

func (t *Table) put(p Position) {
	t.byID[p.ID] = p
	ids, ok := t.byPool[p.PoolID]
	if !ok {
		ids = make(map[uint64]struct{})
		t.byPool[p.PoolID] = ids
	}
	ids[p.ID] = struct{}{}
}

func (t *Table) Delete(id uint64) {
	p, ok := t.byID[id]
	if !ok {
		return
	}
	delete(t.byID, id)
	if ids := t.byPool[p.PoolID]; ids != nil {
		delete(ids, id)
		if len(ids) == 0 {
			delete(t.byPool, p.PoolID)
		}
	}
}

func (t *Table) Len() int {
	return len(t.byID)
}

// ByPool returns the positions of one pool ordered by id.
func (t *Table) ByPool(poolID uint64) []Position {
	ids := t.byPool[poolID]
	out := make([]Position, 0, len(ids))
	for id := range ids {
		out = append(out, t.byID[id])
	}
	sortByID(out)
	return out
}

// All returns every position ordered by id.
func (t *Table) All() []Position {
	out := make([]Position, 0, len(t.byID))
	for _, p := range t.byID {
		out = append(out, p)
	}
	sortByID(out)
	return out
}

// Restore replaces the table content. lastID keeps ids of closed positions retired.
func (t *Table) Restore(positions []Position, lastID uint64) {
	t.byID = make(map[uint64]Position, len(positions))
	t.byPool = make(map[uint64]map[uint64]struct{})
	t.lastID = lastID
	for _, p := range positions {
		t.put(p)
		if p.ID > t.lastID {
			t.lastID = p.ID
		}
	}
}

// LastID is the most recently assigned id.
func (t *Table) LastID() uint64 {
	return t.lastID
}

func sortByID(ps []Position) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].ID < ps[j].ID })
}
