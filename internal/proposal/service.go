// Package proposal implements the proposal lifecycle: ingestion of competitor
// observations into Pending records, reviewer decisions, and the completion
// transition used by the propagation dispatcher.
package proposal

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pricefleet/repricer/internal/metrics"
	"github.com/pricefleet/repricer/internal/pricing"
	"github.com/pricefleet/repricer/internal/store"
	"github.com/pricefleet/repricer/pkg/model"
)

// ChangePublisher receives insert and review events for the change feed.
// Publishing is best-effort; failures are logged, never surfaced to callers.
type ChangePublisher interface {
	ProposalCreated(ctx context.Context, p model.Proposal) error
	ProposalReviewed(ctx context.Context, old, updated model.Proposal) error
}

// Service owns all writes to the proposal store. Status changes go exclusively
// through applyTransition so the transition table cannot be bypassed.
type Service struct {
	logger          *zap.Logger
	store           store.Store
	publisher       ChangePublisher
	defaultPlatform model.Platform
}

// NewService constructs a proposal service. publisher may be nil (no change feed).
func NewService(logger *zap.Logger, st store.Store, publisher ChangePublisher, defaultPlatform model.Platform) *Service {
	if defaultPlatform == "" {
		defaultPlatform = model.PlatformShopify
	}
	return &Service{
		logger:          logger,
		store:           st,
		publisher:       publisher,
		defaultPlatform: defaultPlatform,
	}
}

// AddInput is a single manual proposal submission. ProposedPrice is optional;
// when absent it is computed with the degraded (floorless) policy.
type AddInput struct {
	ProductID       string
	VariantID       string
	CompetitorURL   string
	CurrentPrice    decimal.Decimal
	CompetitorPrice decimal.Decimal
	ProposedPrice   *decimal.Decimal
	Platform        string
}

func (in AddInput) validate() error {
	if err := (model.Key{ProductID: in.ProductID, VariantID: in.VariantID}).Validate(); err != nil {
		return err
	}
	if in.CurrentPrice.IsNegative() {
		return fmt.Errorf("%w: current_price must not be negative", model.ErrValidation)
	}
	if in.CompetitorPrice.IsNegative() {
		return fmt.Errorf("%w: competitor_price must not be negative", model.ErrValidation)
	}
	if in.ProposedPrice != nil && in.ProposedPrice.IsNegative() {
		return fmt.Errorf("%w: proposed_price must not be negative", model.ErrValidation)
	}
	return nil
}

// Add stores a single proposal in Pending. The identity key is overwritten
// idempotently if it already exists.
func (s *Service) Add(ctx context.Context, in AddInput) (*model.Proposal, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var proposed decimal.Decimal
	if in.ProposedPrice != nil {
		proposed = *in.ProposedPrice
	} else {
		proposed = pricing.ComputeDegraded(in.CurrentPrice, in.CompetitorPrice)
	}

	p := model.Proposal{
		ProductID:       strings.TrimSpace(in.ProductID),
		VariantID:       strings.TrimSpace(in.VariantID),
		CompetitorURL:   in.CompetitorURL,
		CurrentPrice:    in.CurrentPrice,
		CompetitorPrice: in.CompetitorPrice,
		ProposedPrice:   proposed,
		ApprovalStatus:  model.StatusPending,
		ReviewedBy:      model.ReviewerNone,
		Platform:        s.resolvePlatform(in.Platform),
	}

	if err := s.store.Put(ctx, p); err != nil {
		return nil, err
	}
	metrics.IncIngested("add")

	s.logger.Info("proposal.added",
		zap.String("key", p.Key().String()),
		zap.String("proposed_price", p.ProposedPrice.String()))

	s.publishCreated(ctx, p)
	return &p, nil
}

// SheetEntry is one competitor-scraped observation in a price sheet batch.
type SheetEntry struct {
	InternalProductID   string
	CompetitorProductID string
	CompetitorURL       string
	CompetitorPrice     decimal.Decimal
	CurrentPrice        decimal.Decimal
	Platform            string
}

// GenerateSheet ingests a batch of competitor observations using the strict
// floor-aware policy. A floor lookup failure aborts the whole batch so an
// under-floor price can never slip through unnoticed.
func (s *Service) GenerateSheet(ctx context.Context, entries []SheetEntry) (int, error) {
	if len(entries) == 0 {
		return 0, fmt.Errorf("%w: no pricing proposals provided", model.ErrValidation)
	}

	stored := 0
	for _, e := range entries {
		key := model.Key{ProductID: e.InternalProductID, VariantID: e.CompetitorProductID}
		if err := key.Validate(); err != nil {
			return stored, err
		}
		if e.CurrentPrice.IsNegative() || e.CompetitorPrice.IsNegative() {
			return stored, fmt.Errorf("%w: prices must not be negative for %s", model.ErrValidation, key)
		}

		floor, err := s.store.GetFloor(ctx, e.InternalProductID)
		if err != nil {
			s.logger.Error("proposal.floor_lookup_failed",
				zap.String("product_id", e.InternalProductID),
				zap.Error(err))
			return stored, err
		}

		p := model.Proposal{
			ProductID:       e.InternalProductID,
			VariantID:       e.CompetitorProductID,
			CompetitorURL:   e.CompetitorURL,
			CurrentPrice:    e.CurrentPrice,
			CompetitorPrice: e.CompetitorPrice,
			ProposedPrice:   pricing.ComputeProposedPrice(e.CurrentPrice, e.CompetitorPrice, floor),
			ApprovalStatus:  model.StatusPending,
			ReviewedBy:      model.ReviewerNone,
			Platform:        s.resolvePlatform(e.Platform),
		}

		if err := s.store.Put(ctx, p); err != nil {
			return stored, err
		}
		stored++
		metrics.IncIngested("sheet")
		s.publishCreated(ctx, p)
	}

	s.logger.Info("proposal.sheet_generated", zap.Int("stored", stored))
	return stored, nil
}

// ReviewInput is a reviewer decision on a pending proposal.
type ReviewInput struct {
	Action    string
	ProductID string
	VariantID string
	Reviewer  string
}

// Review applies an approve or reject decision. Re-applying the same decision
// is idempotent; decisions on terminal records fail with ErrInvalidTransition.
func (s *Service) Review(ctx context.Context, in ReviewInput) (*model.Proposal, error) {
	key := model.Key{ProductID: in.ProductID, VariantID: in.VariantID}
	if err := key.Validate(); err != nil {
		return nil, err
	}
	action, err := ParseAction(in.Action)
	if err != nil {
		return nil, err
	}
	reviewer := strings.TrimSpace(in.Reviewer)
	if reviewer == "" {
		reviewer = "Unknown"
	}

	old, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	updated, err := s.applyTransition(ctx, key, action, reviewer)
	if err != nil {
		return nil, err
	}
	metrics.IncReviewed(string(updated.ApprovalStatus))

	s.logger.Info("proposal.reviewed",
		zap.String("key", key.String()),
		zap.String("decision", string(updated.ApprovalStatus)),
		zap.String("reviewer", reviewer))

	s.publishReviewed(ctx, *old, *updated)
	return updated, nil
}

// Complete marks an Approved proposal as Completed. Only the dispatcher calls
// this, and only after a downstream adapter confirmed success.
func (s *Service) Complete(ctx context.Context, key model.Key) (*model.Proposal, error) {
	return s.applyTransition(ctx, key, ActionComplete, "")
}

// Get returns a proposal by identity.
func (s *Service) Get(ctx context.Context, key model.Key) (*model.Proposal, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, key)
}

// ListByStatus returns every proposal in the given status.
func (s *Service) ListByStatus(ctx context.Context, status model.Status) ([]model.Proposal, error) {
	return s.store.ListByStatus(ctx, status)
}

// applyTransition is the single gateway to ApprovalStatus writes.
func (s *Service) applyTransition(ctx context.Context, key model.Key, action Action, reviewer string) (*model.Proposal, error) {
	plan, err := Plan(action)
	if err != nil {
		return nil, err
	}
	return s.store.UpdateStatus(ctx, key, plan.AllowedFrom, plan.To, reviewer)
}

func (s *Service) resolvePlatform(v string) model.Platform {
	if strings.TrimSpace(v) == "" {
		return s.defaultPlatform
	}
	return model.ParsePlatform(v)
}

func (s *Service) publishCreated(ctx context.Context, p model.Proposal) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.ProposalCreated(ctx, p); err != nil {
		s.logger.Warn("proposal.publish_created_failed",
			zap.String("key", p.Key().String()),
			zap.Error(err))
	}
}

func (s *Service) publishReviewed(ctx context.Context, old, updated model.Proposal) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.ProposalReviewed(ctx, old, updated); err != nil {
		s.logger.Warn("proposal.publish_reviewed_failed",
			zap.String("key", updated.Key().String()),
			zap.Error(err))
	}
}
