package engine

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"liquidityEngine/internal/curve"
	"liquidityEngine/internal/ledger"
	"liquidityEngine/internal/pool"
	"liquidityEngine/internal/registry"
)

var (
	owner     = common.HexToAddress("0x0000000000000000000000000000000000000001")
	custodian = common.HexToAddress("0x0000000000000000000000000000000000c0ffee")
	alice     = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob       = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol     = common.HexToAddress("0x00000000000000000000000000000000000ca201")

	funding = uint256.MustFromDecimal("1000000000000000000000000")
)

type harness struct {
	engine   *Engine
	ledger   *ledger.Ledger
	gov      *registry.Governance
	tokens   *registry.Tokens
	shutdown *registry.Shutdown
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	gov := registry.NewGovernance(owner)
	tokens := registry.NewTokens(gov)
	require.NoError(t, tokens.Register(owner, "STX", 6, false))
	require.NoError(t, tokens.Register(owner, "USDA", 6, true))
	require.NoError(t, tokens.Register(owner, "USDC", 6, true))

	l := ledger.New()
	for _, who := range []common.Address{alice, bob, carol} {
		for _, token := range []string{"STX", "USDA", "USDC"} {
			require.NoError(t, l.Mint(token, who, funding))
		}
	}

	h := &harness{
		ledger:   l,
		gov:      gov,
		tokens:   tokens,
		shutdown: registry.NewShutdown(gov),
	}
	h.engine = New(Config{Custodian: custodian}, Deps{
		Tokens:   tokens,
		Access:   gov,
		Shutdown: h.shutdown,
		Transfer: l,
	}, zaptest.NewLogger(t))
	return h
}

func (h *harness) createPool(t *testing.T, spec pool.Spec) pool.Pool {
	t.Helper()
	p, err := h.engine.CreatePool(context.Background(), owner, spec)
	require.NoError(t, err)
	return p
}

// seedConstantProduct opens STX/USDA at 30 bp with 1e6 of each side from alice.
func (h *harness) seedConstantProduct(t *testing.T) (pool.Pool, LiquidityResult) {
	t.Helper()
	p := h.createPool(t, pool.Spec{TokenX: "STX", TokenY: "USDA", Curve: curve.KindConstantProduct, FeeBP: 30})
	res, err := h.engine.AddLiquidity(context.Background(), alice, AddLiquidityRequest{
		PoolID: p.ID,
		MaxX:   *uint256.NewInt(1_000_000),
		MaxY:   *uint256.NewInt(1_000_000),
	})
	require.NoError(t, err)
	return p, res
}

func (h *harness) balance(token string, who common.Address) *uint256.Int {
	b := h.ledger.Balance(token, who)
	return &b
}

func u(v uint64) uint256.Int {
	return *uint256.NewInt(v)
}

func dec(s string) uint256.Int {
	return *uint256.MustFromDecimal(s)
}
