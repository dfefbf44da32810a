package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquidityEngine/internal/model"
)

//go:embed schema.sql
var schema string

// Store materializes pools and positions in Postgres and tracks replay progress.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables when they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// UpsertPools inserts or updates pool rows.
func (s *Store) UpsertPools(ctx context.Context, pools []model.PoolRecord) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (
				pool_id, token_x, token_y, curve, params, fee_bp, tick_spacing,
				reserve_x, reserve_y, fee_growth_x, fee_growth_y, fees_x, fees_y,
				liquidity, active_liquidity, sqrt_price, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,now(),now())
			ON CONFLICT (pool_id)
			DO UPDATE SET
				reserve_x = EXCLUDED.reserve_x,
				reserve_y = EXCLUDED.reserve_y,
				fee_growth_x = EXCLUDED.fee_growth_x,
				fee_growth_y = EXCLUDED.fee_growth_y,
				fees_x = EXCLUDED.fees_x,
				fees_y = EXCLUDED.fees_y,
				liquidity = EXCLUDED.liquidity,
				active_liquidity = EXCLUDED.active_liquidity,
				sqrt_price = EXCLUDED.sqrt_price,
				updated_at = now()
		`,
			int64(pool.ID),
			pool.TokenX,
			pool.TokenY,
			pool.Curve,
			pool.Params,
			int32(pool.FeeBP),
			pool.TickSpacing,
			pool.ReserveX,
			pool.ReserveY,
			pool.FeeGrowthX,
			pool.FeeGrowthY,
			pool.FeesX,
			pool.FeesY,
			pool.Liquidity,
			pool.ActiveLiquidity,
			pool.SqrtPrice,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pools {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ReplacePositions rewrites the open positions. Positions that closed since the last
// call are removed.
func (s *Store) ReplacePositions(ctx context.Context, positions []model.PositionRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM positions`); err != nil {
		return fmt.Errorf("clear positions: %w", err)
	}
	if len(positions) > 0 {
		batch := &pgx.Batch{}
		for _, p := range positions {
			batch.Queue(`
				INSERT INTO positions (
					position_id, owner, pool_id, full_range, tick_lower, tick_upper,
					liquidity, owed_x, owed_y, earned_x, earned_y
				) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			`,
				int64(p.ID), p.Owner, int64(p.PoolID), p.FullRange, p.TickLower, p.TickUpper,
				p.Liquidity, p.OwedX, p.OwedY, p.EarnedX, p.EarnedY,
			)
		}
		br := tx.SendBatch(ctx, batch)
		for range positions {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("insert positions: %w", err)
			}
		}
		if err := br.Close(); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// LoadState returns the last applied operation sequence for a run name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var seq int64
	row := s.pool.QueryRow(ctx, `SELECT last_seq FROM replay_state WHERE name=$1`, name)
	if err := row.Scan(&seq); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(seq), true, nil
}

// SaveState upserts the last applied operation sequence for a run name.
func (s *Store) SaveState(ctx context.Context, name string, seq uint64, digest string) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO replay_state (name, last_seq, state_digest, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (name) DO UPDATE
		SET last_seq = EXCLUDED.last_seq, state_digest = EXCLUDED.state_digest, updated_at = now()
	`, name, int64(seq), digest)
	return err
}
