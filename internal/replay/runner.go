package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"liquidityEngine/internal/errcode"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/storage"
)

const maxLineBytes = 4 << 20

// RunConfig holds runtime settings for a replay.
type RunConfig struct {
	// Name keys the replay in the materialized state table.
	Name string
	// CheckpointEvery saves a snapshot after that many applied operations. Zero
	// saves only at the end of the run.
	CheckpointEvery int
	// BatchSize is the number of results buffered before they are written. Results
	// may reach the sink ahead of the next checkpoint; a resumed run trims them.
	BatchSize    int
	MaxRetries   int
	RetryBackoff time.Duration
}

// Materializer mirrors committed pools and positions into a queryable store. It is
// written after the snapshot of every checkpoint, so its state never runs ahead
// of the snapshot store.
type Materializer interface {
	LoadState(ctx context.Context, name string) (uint64, bool, error)
	UpsertPools(ctx context.Context, pools []model.PoolRecord) error
	ReplacePositions(ctx context.Context, positions []model.PositionRecord) error
	SaveState(ctx context.Context, name string, seq uint64, digest string) error
}

// Progress receives replay-level observations.
type Progress interface {
	ObserveApplied(op string, code uint32)
	ObserveCheckpoint(seq uint64)
}

// Sinks are the outputs of a Runner. Only Results is required.
type Sinks struct {
	Results      storage.Storage
	Snapshots    storage.SnapshotStore
	Materializer Materializer
	Progress     Progress
}

// Summary describes a finished run.
type Summary struct {
	RunID    string
	Applied  int
	Rejected int
	Skipped  int
	LastSeq  uint64
	Digest   string
}

// Runner applies an operation log to a World and records every outcome.
type Runner struct {
	cfg    RunConfig
	world  *World
	sinks  Sinks
	logger *zap.Logger
	runID  string

	pending []model.Result
	lastSeq uint64
	dirty   int
}

// NewRunner builds a Runner with its dependencies.
func NewRunner(cfg RunConfig, world *World, sinks Sinks, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	runID := uuid.NewString()
	return &Runner{
		cfg:    cfg,
		world:  world,
		sinks:  sinks,
		logger: logger.With(zap.String("run_id", runID)),
		runID:  runID,
	}
}

func (r *Runner) RunID() string {
	return r.runID
}

// Run reads one JSON operation per line from in. When a snapshot exists the world
// is restored from it first and operations at or below its sequence are skipped.
func (r *Runner) Run(ctx context.Context, in io.Reader) (Summary, error) {
	if r.world == nil {
		return Summary{}, fmt.Errorf("world is nil")
	}
	if r.sinks.Results == nil {
		return Summary{}, fmt.Errorf("results storage is nil")
	}
	summary := Summary{RunID: r.runID}

	if err := r.resume(ctx); err != nil {
		return summary, err
	}
	if err := r.checkMaterialized(ctx); err != nil {
		return summary, err
	}
	// results flushed after the last checkpoint are produced again below
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, r.warn("trim results"), func(context.Context) error {
		return r.sinks.Results.TrimAfter(r.lastSeq)
	})
	if err != nil {
		return summary, fmt.Errorf("trim results after %d: %w", r.lastSeq, err)
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var op model.Operation
		if err := json.Unmarshal(raw, &op); err != nil {
			return summary, fmt.Errorf("line %d: parse operation: %w", line, err)
		}
		if op.Seq <= r.lastSeq {
			if summary.Applied > 0 || summary.Rejected > 0 {
				return summary, fmt.Errorf("line %d: sequence %d does not follow %d", line, op.Seq, r.lastSeq)
			}
			summary.Skipped++
			continue
		}

		result := r.apply(ctx, op)
		if result.OK {
			summary.Applied++
		} else {
			summary.Rejected++
		}
		if r.sinks.Progress != nil {
			r.sinks.Progress.ObserveApplied(op.Op, result.Code)
		}

		r.pending = append(r.pending, result)
		r.lastSeq = op.Seq
		r.dirty++

		if len(r.pending) >= r.cfg.BatchSize {
			if err := r.flush(ctx); err != nil {
				return summary, err
			}
		}
		if r.cfg.CheckpointEvery > 0 && r.dirty >= r.cfg.CheckpointEvery {
			if err := r.checkpoint(ctx); err != nil {
				return summary, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("read operations: %w", err)
	}

	if err := r.flush(ctx); err != nil {
		return summary, err
	}
	if r.dirty > 0 {
		if err := r.checkpoint(ctx); err != nil {
			return summary, err
		}
	}

	summary.LastSeq = r.lastSeq
	summary.Digest = r.world.Digest()
	r.logger.Info("replay complete",
		zap.Int("applied", summary.Applied),
		zap.Int("rejected", summary.Rejected),
		zap.Int("skipped", summary.Skipped),
		zap.Uint64("last_seq", summary.LastSeq),
		zap.String("digest", summary.Digest),
	)
	return summary, nil
}

func (r *Runner) resume(ctx context.Context) error {
	if r.sinks.Snapshots == nil {
		return nil
	}
	var (
		snap model.Snapshot
		ok   bool
	)
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, r.warn("load snapshot"), func(ctx context.Context) error {
		var err error
		snap, ok, err = r.sinks.Snapshots.LoadSnapshot(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		return nil
	}
	if err := r.world.Restore(snap); err != nil {
		return fmt.Errorf("restore snapshot at %d: %w", snap.LastSeq, err)
	}
	r.lastSeq = snap.LastSeq
	r.logger.Info("resume from snapshot", zap.Uint64("last_seq", snap.LastSeq), zap.String("digest", snap.Digest))
	return nil
}

// checkMaterialized compares the mirrored state with the resume point. A mirror
// behind the snapshot catches up at the next checkpoint. One ahead of it was
// written from another snapshot history and is refused.
func (r *Runner) checkMaterialized(ctx context.Context) error {
	if r.sinks.Materializer == nil {
		return nil
	}
	var (
		seq uint64
		ok  bool
	)
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, r.warn("load materialized state"), func(ctx context.Context) error {
		var err error
		seq, ok, err = r.sinks.Materializer.LoadState(ctx, r.cfg.Name)
		return err
	})
	if err != nil {
		return fmt.Errorf("load materialized state: %w", err)
	}
	switch {
	case !ok || seq == r.lastSeq:
		return nil
	case r.sinks.Snapshots != nil && seq > r.lastSeq:
		return fmt.Errorf("materialized state %q is at %d, ahead of snapshot at %d", r.cfg.Name, seq, r.lastSeq)
	default:
		r.logger.Warn("materialized state diverges from resume point",
			zap.String("name", r.cfg.Name),
			zap.Uint64("materialized_seq", seq),
			zap.Uint64("resume_seq", r.lastSeq),
		)
		return nil
	}
}

func (r *Runner) apply(ctx context.Context, op model.Operation) model.Result {
	result := model.Result{RunID: r.runID, Seq: op.Seq, Op: op.Op}
	payload, err := r.world.Apply(ctx, op)
	if err != nil {
		result.Code = errcode.CodeOf(err)
		result.Error = err.Error()
		r.logger.Debug("operation rejected", zap.Uint64("seq", op.Seq), zap.String("op", op.Op), zap.Error(err))
	} else {
		result.OK = true
		result.Payload = payload
	}
	result.StateDigest = r.world.Digest()
	result.AppliedAt = time.Now().UTC().Format(time.RFC3339Nano)
	return result
}

func (r *Runner) flush(ctx context.Context) error {
	if len(r.pending) == 0 {
		return nil
	}
	batch := r.pending
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, r.warn("store results"), func(context.Context) error {
		return r.sinks.Results.PutResults(batch)
	})
	if err != nil {
		return fmt.Errorf("store results: %w", err)
	}
	r.pending = nil
	return nil
}

// checkpoint persists the world after the last applied operation. Results are
// flushed first so a snapshot never runs ahead of the result log.
func (r *Runner) checkpoint(ctx context.Context) error {
	if err := r.flush(ctx); err != nil {
		return err
	}
	snap := r.world.Snapshot(r.lastSeq)

	if r.sinks.Snapshots != nil {
		err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, r.warn("save snapshot"), func(ctx context.Context) error {
			return r.sinks.Snapshots.SaveSnapshot(ctx, snap)
		})
		if err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
	}

	if r.sinks.Materializer != nil {
		err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, r.warn("materialize"), func(ctx context.Context) error {
			if err := r.sinks.Materializer.UpsertPools(ctx, snap.Pools); err != nil {
				return err
			}
			if err := r.sinks.Materializer.ReplacePositions(ctx, snap.Positions); err != nil {
				return err
			}
			return r.sinks.Materializer.SaveState(ctx, r.cfg.Name, snap.LastSeq, snap.Digest)
		})
		if err != nil {
			return fmt.Errorf("materialize: %w", err)
		}
	}

	if r.sinks.Progress != nil {
		r.sinks.Progress.ObserveCheckpoint(snap.LastSeq)
	}
	r.dirty = 0
	r.logger.Info("checkpoint saved", zap.Uint64("last_seq", snap.LastSeq), zap.String("digest", snap.Digest))
	return nil
}

func (r *Runner) warn(what string) func(int, error) {
	return func(attempt int, err error) {
		r.logger.Warn(what+" failed", zap.Int("attempt", attempt), zap.Error(err))
	}
}
