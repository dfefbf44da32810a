package metrics

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"liquidityEngine/internal/errcode"
)

const namespace = "amm"

// Metrics collects engine and replay observations.
type Metrics struct {
	gatherer prometheus.Gatherer

	operations  *prometheus.CounterVec
	swaps       *prometheus.CounterVec
	swapIn      *prometheus.CounterVec
	swapOut     *prometheus.CounterVec
	swapFees    *prometheus.CounterVec
	applied     *prometheus.CounterVec
	checkpoints prometheus.Counter
	lastSeq     prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m, err := NewWith(reg, reg)
	if err != nil {
		// a fresh registry cannot hold duplicates
		panic(err)
	}
	return m
}

// NewWith registers the collectors on reg and serves them from gatherer.
func NewWith(reg prometheus.Registerer, gatherer prometheus.Gatherer) (*Metrics, error) {
	m := &Metrics{
		gatherer: gatherer,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_operations_total",
			Help:      "Engine operations by name and result code, 0 for success.",
		}, []string{"op", "code"}),
		swaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swaps_total",
			Help:      "Filled swaps per pool and kind.",
		}, []string{"pool", "kind"}),
		swapIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swap_amount_in_total",
			Help:      "Input amount of filled swaps, fee excluded, in base units.",
		}, []string{"pool"}),
		swapOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swap_amount_out_total",
			Help:      "Output amount of filled swaps in base units.",
		}, []string{"pool"}),
		swapFees: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swap_fees_total",
			Help:      "Fees charged by filled swaps in base units.",
		}, []string{"pool"}),
		applied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replay_operations_total",
			Help:      "Replayed log operations by name and result code.",
		}, []string{"op", "code"}),
		checkpoints: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replay_checkpoints_total",
			Help:      "Snapshots saved by the replay.",
		}),
		lastSeq: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "replay_checkpoint_seq",
			Help:      "Sequence number of the latest saved snapshot.",
		}),
	}
	for _, c := range []prometheus.Collector{
		m.operations, m.swaps, m.swapIn, m.swapOut, m.swapFees, m.applied, m.checkpoints, m.lastSeq,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) ObserveOperation(op string, err error) {
	m.operations.WithLabelValues(op, strconv.FormatUint(uint64(errcode.CodeOf(err)), 10)).Inc()
}

func (m *Metrics) ObserveSwap(poolID uint64, kind string, amountIn, amountOut, fee uint256.Int) {
	pool := strconv.FormatUint(poolID, 10)
	m.swaps.WithLabelValues(pool, kind).Inc()
	m.swapIn.WithLabelValues(pool).Add(toFloat(amountIn))
	m.swapOut.WithLabelValues(pool).Add(toFloat(amountOut))
	m.swapFees.WithLabelValues(pool).Add(toFloat(fee))
}

func (m *Metrics) ObserveApplied(op string, code uint32) {
	m.applied.WithLabelValues(op, strconv.FormatUint(uint64(code), 10)).Inc()
}

func (m *Metrics) ObserveCheckpoint(seq uint64) {
	m.checkpoints.Inc()
	m.lastSeq.Set(float64(seq))
}

// Handler exposes the collected metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Serve exposes Handler on addr under /metrics until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// toFloat is lossy above 2^53; counters only need magnitude.
func toFloat(x uint256.Int) float64 {
	f, _ := new(big.Float).SetInt(x.ToBig()).Float64()
	return f
}
