package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquidityEngine/internal/errcode"
)

func counterValue(t *testing.T, g prometheus.Gatherer, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := g.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	metrics:
		for _, m := range f.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metrics
				}
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s %v not found", name, labels)
	return 0
}

func TestObservations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewWith(reg, reg)
	require.NoError(t, err)

	m.ObserveOperation("swap", nil)
	m.ObserveOperation("swap", nil)
	m.ObserveOperation("swap", errcode.Wrap(errcode.ErrSlippageExceeded, "too little out"))
	m.ObserveSwap(1, "constant_product", *uint256.NewInt(9970), *uint256.NewInt(9904), *uint256.NewInt(30))
	m.ObserveApplied("fund", 0)
	m.ObserveCheckpoint(42)

	assert.Equal(t, 2.0, counterValue(t, reg, "amm_engine_operations_total", map[string]string{"op": "swap", "code": "0"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "amm_engine_operations_total", map[string]string{"op": "swap", "code": "108"}))
	assert.Equal(t, 9970.0, counterValue(t, reg, "amm_swap_amount_in_total", map[string]string{"pool": "1"}))
	assert.Equal(t, 30.0, counterValue(t, reg, "amm_swap_fees_total", map[string]string{"pool": "1"}))
	assert.Equal(t, 42.0, counterValue(t, reg, "amm_replay_checkpoint_seq", nil))

	_, err = NewWith(reg, reg)
	assert.Error(t, err, "duplicate registration")
}

func TestHandlerServesText(t *testing.T) {
	m := New()
	m.ObserveApplied("swap", 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `amm_replay_operations_total{code="0",op="swap"} 1`)
}

func TestToFloatHandlesWideValues(t *testing.T) {
	max := new(uint256.Int).SetAllOne()
	assert.InDelta(t, 1.157920892373162e77, toFloat(*max), 1e62)
}
