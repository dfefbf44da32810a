package pool

import (
	"fmt"
	"sort"

	"github.com/zeebo/blake3"

	"liquidityEngine/internal/curve"
	"liquidityEngine/internal/errcode"
)

// Tokens is the subset of the token registry pool creation reads.
type Tokens interface {
	TokenExists(id string) bool
	TokenDecimals(id string) (uint8, error)
	IsStable(id string) bool
}

// Spec describes a pool to create. Params and the initial price refer to the
// canonical token order, lower identifier first.
type Spec struct {
	TokenX      string
	TokenY      string
	Curve       curve.Kind
	Params      curve.Params
	FeeBP       uint32
	TickSpacing int32
}

// PairKey identifies an unordered token pair.
type PairKey [32]byte

// KeyOf hashes the canonical order of a and b.
func KeyOf(a, b string) PairKey {
	x, y := Canonical(a, b)
	h := blake3.New()
	_, _ = h.Write([]byte(x))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(y))
	var key PairKey
	copy(key[:], h.Sum(nil))
	return key
}

// Canonical orders a pair by identifier.
func Canonical(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// Registry owns every pool and its curve. It is not safe for concurrent use.
type Registry struct {
	lastID uint64
	pools  map[uint64]Pool
	curves map[uint64]curve.Curve
	pairs  map[PairKey]uint64
}

func NewRegistry() *Registry {
	return &Registry{
		pools:  make(map[uint64]Pool),
		curves: make(map[uint64]curve.Curve),
		pairs:  make(map[PairKey]uint64),
	}
}

// Create validates spec and registers a pool with zeroed reserves.
func (r *Registry) Create(spec Spec, tokens Tokens) (Pool, curve.Curve, error) {
	for _, id := range []string{spec.TokenX, spec.TokenY} {
		if !tokens.TokenExists(id) {
			return Pool{}, nil, errcode.Wrap(errcode.ErrTokenNotFound, "token %q", id)
		}
	}
	key := KeyOf(spec.TokenX, spec.TokenY)
	if existing, ok := r.pairs[key]; ok {
		return Pool{}, nil, errcode.Wrap(errcode.ErrPoolExists, "pair %s/%s is pool %d", spec.TokenX, spec.TokenY, existing)
	}
	if spec.TokenX == spec.TokenY {
		return Pool{}, nil, errcode.Wrap(errcode.ErrInvalidParameters, "pool of %q against itself", spec.TokenX)
	}
	if spec.FeeBP > curve.MaxFeeBP {
		return Pool{}, nil, errcode.Wrap(errcode.ErrInvalidParameters, "fee %d bp exceeds %d", spec.FeeBP, curve.MaxFeeBP)
	}

	tokenX, tokenY := Canonical(spec.TokenX, spec.TokenY)
	if spec.Curve == curve.KindStableSwap && !(tokens.IsStable(tokenX) && tokens.IsStable(tokenY)) {
		return Pool{}, nil, errcode.Wrap(errcode.ErrInvalidCurveParameters, "stable swap needs two stable tokens")
	}
	decimalsX, err := tokens.TokenDecimals(tokenX)
	if err != nil {
		return Pool{}, nil, fmt.Errorf("decimals of %s: %w", tokenX, err)
	}
	decimalsY, err := tokens.TokenDecimals(tokenY)
	if err != nil {
		return Pool{}, nil, fmt.Errorf("decimals of %s: %w", tokenY, err)
	}

	p := Pool{
		ID:          r.lastID + 1,
		TokenX:      tokenX,
		TokenY:      tokenY,
		Curve:       spec.Curve,
		Params:      spec.Params,
		FeeBP:       spec.FeeBP,
		TickSpacing: spec.TickSpacing,
		DecimalsX:   decimalsX,
		DecimalsY:   decimalsY,
	}
	c, err := curve.New(p.CurveConfig())
	if err != nil {
		return Pool{}, nil, err
	}
	if pricer, ok := c.(curve.InitialSqrtPricer); ok {
		price, err := pricer.InitialSqrtPrice()
		if err != nil {
			return Pool{}, nil, err
		}
		p.SqrtPrice.Set(price)
	}

	r.lastID = p.ID
	r.pools[p.ID] = p
	r.curves[p.ID] = c
	r.pairs[key] = p.ID
	return p, c, nil
}

func (r *Registry) Get(id uint64) (Pool, bool) {
	p, ok := r.pools[id]
	return p, ok
}

// Curve returns the curve built for pool id.
func (r *Registry) Curve(id uint64) (curve.Curve, bool) {
	c, ok := r.curves[id]
	return c, ok
}

// Lookup finds the pool of a pair in either order.
func (r *Registry) Lookup(a, b string) (Pool, bool) {
	id, ok := r.pairs[KeyOf(a, b)]
	if !ok {
		return Pool{}, false
	}
	return r.Get(id)
}

// Put commits a staged copy of an existing pool.
func (r *Registry) Put(p Pool) error {
	if _, ok := r.pools[p.ID]; !ok {
		return errcode.Wrap(errcode.ErrPoolNotFound, "pool %d", p.ID)
	}
	r.pools[p.ID] = p
	return nil
}

// List returns every pool ordered by id.
func (r *Registry) List() []Pool {
	out := make([]Pool, 0, len(r.pools))
	for _, p := range r.pools {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) Len() int {
	return len(r.pools)
}

// Restore replaces the registry content, rebuilding curves from stored configuration.
func (r *Registry) Restore(pools []Pool) error {
	next := NewRegistry()
	for _, p := range pools {
		c, err := curve.New(p.CurveConfig())
		if err != nil {
			return fmt.Errorf("restore pool %d: %w", p.ID, err)
		}
		key := KeyOf(p.TokenX, p.TokenY)
		if _, dup := next.pairs[key]; dup {
			return fmt.Errorf("restore pool %d: %w", p.ID, errcode.ErrPoolExists)
		}
		next.pools[p.ID] = p
		next.curves[p.ID] = c
		next.pairs[key] = p.ID
		if p.ID > next.lastID {
			next.lastID = p.ID
		}
	}
	*r = *next
	return nil
}
