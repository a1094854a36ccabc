package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pricefleet/repricer/internal/metrics"
	"github.com/pricefleet/repricer/pkg/model"
)

// Store defines the contract for persisting pricing proposals and reading
// minimum (floor) prices. UpdateStatus is the sole writer of ApprovalStatus.
type Store interface {
	// Get returns the proposal for key, or model.ErrNotFound.
	Get(ctx context.Context, key model.Key) (*model.Proposal, error)
	// Put inserts or overwrites a proposal record.
	Put(ctx context.Context, p model.Proposal) error
	// UpdateStatus atomically moves a proposal to status `to` if its current
	// status is in `from`. reviewer is recorded when non-empty. Returns the
	// updated record, model.ErrNotFound if the key is absent, or
	// model.ErrInvalidTransition if the current status is not in `from`.
	UpdateStatus(ctx context.Context, key model.Key, from []model.Status, to model.Status, reviewer string) (*model.Proposal, error)
	// ListByStatus returns every proposal in the given status. Paging against
	// the backend is drained internally; callers always see the full set.
	ListByStatus(ctx context.Context, status model.Status) ([]model.Proposal, error)
	// GetFloor returns the minimum allowed price for a product, or
	// model.ErrFloorUnavailable when it cannot be resolved.
	GetFloor(ctx context.Context, productID string) (decimal.Decimal, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// scanPageSize bounds each keyset page pulled from Postgres during a status scan.
const scanPageSize = 200

type HybridStore struct {
	redis       *redis.Client
	PG          *pgxpool.Pool
	logger      *zap.Logger
	proposalTTL time.Duration
	floorTTL    time.Duration
}

type PGPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// NewHybrid creates a Redis-cached, Postgres-backed proposal store.
func NewHybrid(redisAddr string, redisDB int, pgURL string, pgPoolConfig PGPoolConfig, proposalTTL, floorTTL time.Duration, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
		DB:   redisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	var pgPool *pgxpool.Pool
	if pgURL != "" {
		cfg, err := pgxpool.ParseConfig(pgURL)
		if err != nil {
			return nil, fmt.Errorf("invalid pg config: %w", err)
		}
		if pgPoolConfig.MaxConns > 0 {
			cfg.MaxConns = pgPoolConfig.MaxConns
		}
		if pgPoolConfig.MinConns > 0 {
			cfg.MinConns = pgPoolConfig.MinConns
		}
		if pgPoolConfig.MaxConnLifetime > 0 {
			cfg.MaxConnLifetime = pgPoolConfig.MaxConnLifetime
		}
		if pgPoolConfig.MaxConnIdleTime > 0 {
			cfg.MaxConnIdleTime = pgPoolConfig.MaxConnIdleTime
		}
		if pgPoolConfig.HealthCheckPeriod > 0 {
			cfg.HealthCheckPeriod = pgPoolConfig.HealthCheckPeriod
		}
		pgPool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
	}

	return &HybridStore{
		redis:       rdb,
		PG:          pgPool,
		logger:      logger,
		proposalTTL: proposalTTL,
		floorTTL:    floorTTL,
	}, nil
}

func proposalCacheKey(key model.Key) string {
	return "proposal:" + key.ProductID + ":" + key.VariantID
}

func floorCacheKey(productID string) string {
	return "floor:" + productID
}

const proposalColumns = `product_id, variant_id, competitor_url, current_price,
	competitor_price, proposed_price, approval_status, reviewed_by, platform,
	created_at, updated_at`

func scanProposal(row pgx.Row) (*model.Proposal, error) {
	var p model.Proposal
	if err := row.Scan(&p.ProductID, &p.VariantID, &p.CompetitorURL,
		&p.CurrentPrice, &p.CompetitorPrice, &p.ProposedPrice,
		&p.ApprovalStatus, &p.ReviewedBy, &p.Platform,
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *HybridStore) Get(ctx context.Context, key model.Key) (*model.Proposal, error) {
	data, err := s.redis.Get(ctx, proposalCacheKey(key)).Bytes()
	if err == nil {
		var p model.Proposal
		if err := json.Unmarshal(data, &p); err == nil {
			metrics.IncCacheAccess("proposal", "hit")
			return &p, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		s.logger.Warn("store.redis.get_failed", zap.Error(err))
	}
	metrics.IncCacheAccess("proposal", "miss")

	if s.PG == nil {
		return nil, fmt.Errorf("%w: postgres not configured", model.ErrStoreUnavailable)
	}
	row := s.PG.QueryRow(ctx, `
		SELECT `+proposalColumns+`
		FROM pricing.proposals
		WHERE product_id = $1 AND variant_id = $2;
	`, key.ProductID, key.VariantID)

	p, err := scanProposal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", model.ErrNotFound, key)
	} else if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}

	s.cacheProposal(ctx, *p)
	return p, nil
}

func (s *HybridStore) Put(ctx context.Context, p model.Proposal) error {
	if s.PG == nil {
		return fmt.Errorf("%w: postgres not configured", model.ErrStoreUnavailable)
	}
	_, err := s.PG.Exec(ctx, `
		INSERT INTO pricing.proposals (
			product_id, variant_id, competitor_url, current_price,
			competitor_price, proposed_price, approval_status, reviewed_by,
			platform, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (product_id, variant_id)
		DO UPDATE SET
			competitor_url = EXCLUDED.competitor_url,
			current_price = EXCLUDED.current_price,
			competitor_price = EXCLUDED.competitor_price,
			proposed_price = EXCLUDED.proposed_price,
			approval_status = EXCLUDED.approval_status,
			reviewed_by = EXCLUDED.reviewed_by,
			platform = EXCLUDED.platform,
			updated_at = NOW();
	`, p.ProductID, p.VariantID, p.CompetitorURL, p.CurrentPrice,
		p.CompetitorPrice, p.ProposedPrice, p.ApprovalStatus, p.ReviewedBy,
		p.Platform)
	if err != nil {
		s.logger.Error("store.pg.put_failed", zap.String("key", p.Key().String()), zap.Error(err))
		return fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}

	s.invalidate(ctx, p.Key())
	return nil
}

func (s *HybridStore) UpdateStatus(ctx context.Context, key model.Key, from []model.Status, to model.Status, reviewer string) (*model.Proposal, error) {
	if s.PG == nil {
		return nil, fmt.Errorf("%w: postgres not configured", model.ErrStoreUnavailable)
	}

	allowed := make([]string, len(from))
	for i, st := range from {
		allowed[i] = string(st)
	}

	// Single conditional UPDATE so concurrent reviewers or cycles cannot race
	// past the transition guard.
	row := s.PG.QueryRow(ctx, `
		UPDATE pricing.proposals
		SET approval_status = $3,
		    reviewed_by = CASE WHEN $4 <> '' THEN $4 ELSE reviewed_by END,
		    updated_at = NOW()
		WHERE product_id = $1 AND variant_id = $2
		  AND approval_status = ANY($5)
		RETURNING `+proposalColumns+`;
	`, key.ProductID, key.VariantID, to, reviewer, allowed)

	p, err := scanProposal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the key is absent or its status is outside the allowed set.
		_, getErr := s.Get(ctx, key)
		if getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("%w: %s cannot move to %s", model.ErrInvalidTransition, key, to)
	} else if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}

	s.invalidate(ctx, key)
	return p, nil
}

func (s *HybridStore) ListByStatus(ctx context.Context, status model.Status) ([]model.Proposal, error) {
	if s.PG == nil {
		return nil, fmt.Errorf("%w: postgres not configured", model.ErrStoreUnavailable)
	}

	var (
		results          []model.Proposal
		lastProduct      string
		lastVariant      string
		continueScanning = true
	)

	// Keyset-paged scan; every page is drained before returning.
	for continueScanning {
		rows, err := s.PG.Query(ctx, `
			SELECT `+proposalColumns+`
			FROM pricing.proposals
			WHERE approval_status = $1
			  AND (product_id, variant_id) > ($2, $3)
			ORDER BY product_id, variant_id
			LIMIT $4;
		`, status, lastProduct, lastVariant, scanPageSize)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
		}

		n := 0
		for rows.Next() {
			p, err := scanProposal(rows)
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
			}
			results = append(results, *p)
			lastProduct, lastVariant = p.ProductID, p.VariantID
			n++
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
		}
		continueScanning = n == scanPageSize
	}

	return results, nil
}

func (s *HybridStore) GetFloor(ctx context.Context, productID string) (decimal.Decimal, error) {
	if cached, err := s.redis.Get(ctx, floorCacheKey(productID)).Result(); err == nil {
		if d, derr := decimal.NewFromString(cached); derr == nil {
			metrics.IncCacheAccess("floor", "hit")
			return d, nil
		}
	}
	metrics.IncCacheAccess("floor", "miss")

	if s.PG == nil {
		return decimal.Zero, fmt.Errorf("%w: postgres not configured", model.ErrFloorUnavailable)
	}
	var floor decimal.Decimal
	err := s.PG.QueryRow(ctx, `
		SELECT minimum_price
		FROM pricing.minimum_prices
		WHERE product_id = $1;
	`, productID).Scan(&floor)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%w: no floor for product %s", model.ErrFloorUnavailable, productID)
	} else if err != nil {
		return decimal.Zero, fmt.Errorf("%w: product %s: %v", model.ErrFloorUnavailable, productID, err)
	}

	if err := s.redis.Set(ctx, floorCacheKey(productID), floor.String(), s.floorTTL).Err(); err != nil {
		s.logger.Warn("store.redis.floor_cache_failed", zap.Error(err))
	}
	return floor, nil
}

func (s *HybridStore) HealthCheck(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if s.PG != nil {
		if err := s.PG.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	return nil
}

func (s *HybridStore) Close() error {
	if s.PG != nil {
		s.PG.Close()
	}
	return s.redis.Close()
}

func (s *HybridStore) cacheProposal(ctx context.Context, p model.Proposal) {
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, proposalCacheKey(p.Key()), data, s.proposalTTL).Err(); err != nil {
		s.logger.Warn("store.redis.cache_failed", zap.String("key", p.Key().String()), zap.Error(err))
	}
}

func (s *HybridStore) invalidate(ctx context.Context, key model.Key) {
	if err := s.redis.Del(ctx, proposalCacheKey(key)).Err(); err != nil {
		s.logger.Warn("store.redis.invalidate_failed", zap.String("key", key.String()), zap.Error(err))
	}
}
