package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pricefleet/repricer/pkg/model"
)

// MemoryStore is an in-memory Store implementation. It backs unit tests and
// local development without Postgres or Redis; the conditional-update semantics
// match HybridStore.
type MemoryStore struct {
	mu        sync.RWMutex
	proposals map[model.Key]model.Proposal
	floors    map[string]decimal.Decimal
	floorErr  error
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		proposals: make(map[model.Key]model.Proposal),
		floors:    make(map[string]decimal.Decimal),
	}
}

// SetFloor seeds a minimum price for a product.
func (s *MemoryStore) SetFloor(productID string, floor decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.floors[productID] = floor
}

// FailFloors makes every floor lookup return err (simulates an unreachable
// minimum-price table).
func (s *MemoryStore) FailFloors(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.floorErr = err
}

func (s *MemoryStore) Get(_ context.Context, key model.Key) (*model.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.proposals[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrNotFound, key)
	}
	return &p, nil
}

func (s *MemoryStore) Put(_ context.Context, p model.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := s.proposals[p.Key()]; ok {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.proposals[p.Key()] = p
	return nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, key model.Key, from []model.Status, to model.Status, reviewer string) (*model.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proposals[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrNotFound, key)
	}

	allowed := false
	for _, st := range from {
		if p.ApprovalStatus == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("%w: %s cannot move from %s to %s", model.ErrInvalidTransition, key, p.ApprovalStatus, to)
	}

	p.ApprovalStatus = to
	if reviewer != "" {
		p.ReviewedBy = reviewer
	}
	p.UpdatedAt = time.Now().UTC()
	s.proposals[key] = p
	return &p, nil
}

func (s *MemoryStore) ListByStatus(_ context.Context, status model.Status) ([]model.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []model.Proposal
	for _, p := range s.proposals {
		if p.ApprovalStatus == status {
			results = append(results, p)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Key().String() < results[j].Key().String()
	})
	return results, nil
}

func (s *MemoryStore) GetFloor(_ context.Context, productID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.floorErr != nil {
		return decimal.Zero, fmt.Errorf("%w: product %s: %v", model.ErrFloorUnavailable, productID, s.floorErr)
	}
	floor, ok := s.floors[productID]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no floor for product %s", model.ErrFloorUnavailable, productID)
	}
	return floor, nil
}

func (s *MemoryStore) HealthCheck(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
