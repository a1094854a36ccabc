package proposal

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pricefleet/repricer/internal/store"
	"github.com/pricefleet/repricer/pkg/model"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// recordingPublisher captures change-feed events for assertions.
type recordingPublisher struct {
	created  []model.Proposal
	reviewed []model.ProposalChange
	err      error
}

func (r *recordingPublisher) ProposalCreated(_ context.Context, p model.Proposal) error {
	if r.err != nil {
		return r.err
	}
	r.created = append(r.created, p)
	return nil
}

func (r *recordingPublisher) ProposalReviewed(_ context.Context, old, updated model.Proposal) error {
	if r.err != nil {
		return r.err
	}
	r.reviewed = append(r.reviewed, model.ProposalChange{Old: &old, New: updated})
	return nil
}

func newTestService(t *testing.T) (*Service, *store.MemoryStore, *recordingPublisher) {
	t.Helper()
	st := store.NewMemory()
	pub := &recordingPublisher{}
	svc := NewService(zap.NewNop(), st, pub, model.PlatformShopify)
	return svc, st, pub
}

func TestAdd_StartsPendingWithSentinelReviewer(t *testing.T) {
	svc, _, pub := newTestService(t)

	p, err := svc.Add(context.Background(), AddInput{
		ProductID:       "P1",
		VariantID:       "V1",
		CompetitorURL:   "http://x",
		CurrentPrice:    d("10.00"),
		CompetitorPrice: d("8.00"),
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusPending, p.ApprovalStatus)
	assert.Equal(t, model.ReviewerNone, p.ReviewedBy)
	assert.True(t, p.ProposedPrice.Equal(d("8.00")), "degraded policy should take min")
	assert.Equal(t, model.PlatformShopify, p.Platform, "default platform applied")
	assert.Len(t, pub.created, 1)
}

func TestAdd_ExplicitProposedPriceWins(t *testing.T) {
	svc, _, _ := newTestService(t)

	proposed := d("9.50")
	p, err := svc.Add(context.Background(), AddInput{
		ProductID:       "P1",
		VariantID:       "V1",
		CurrentPrice:    d("10.00"),
		CompetitorPrice: d("8.00"),
		ProposedPrice:   &proposed,
	})
	require.NoError(t, err)
	assert.True(t, p.ProposedPrice.Equal(d("9.50")))
}

func TestAdd_ValidationFailures(t *testing.T) {
	svc, st, _ := newTestService(t)

	tests := []struct {
		name string
		in   AddInput
	}{
		{"missing product_id", AddInput{VariantID: "V1", CurrentPrice: d("1"), CompetitorPrice: d("1")}},
		{"missing variant_id", AddInput{ProductID: "P1", CurrentPrice: d("1"), CompetitorPrice: d("1")}},
		{"negative current price", AddInput{ProductID: "P1", VariantID: "V1", CurrentPrice: d("-1"), CompetitorPrice: d("1")}},
		{"negative competitor price", AddInput{ProductID: "P1", VariantID: "V1", CurrentPrice: d("1"), CompetitorPrice: d("-1")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Add(context.Background(), tt.in)
			assert.ErrorIs(t, err, model.ErrValidation)
		})
	}

	// no record created by failed validation
	pending, err := st.ListByStatus(context.Background(), model.StatusPending)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestGenerateSheet_AppliesFloorPolicy(t *testing.T) {
	svc, st, _ := newTestService(t)
	st.SetFloor("P1", d("5.00"))

	stored, err := svc.GenerateSheet(context.Background(), []SheetEntry{{
		InternalProductID:   "P1",
		CompetitorProductID: "V1",
		CompetitorURL:       "http://x",
		CompetitorPrice:     d("8.00"),
		CurrentPrice:        d("10.00"),
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, stored)

	p, err := st.Get(context.Background(), model.Key{ProductID: "P1", VariantID: "V1"})
	require.NoError(t, err)
	assert.True(t, p.ProposedPrice.Equal(d("8.00")))
	assert.Equal(t, model.StatusPending, p.ApprovalStatus)
}

func TestGenerateSheet_CompetitorBelowFloorKeepsCurrent(t *testing.T) {
	svc, st, _ := newTestService(t)
	st.SetFloor("P1", d("9.00"))

	_, err := svc.GenerateSheet(context.Background(), []SheetEntry{{
		InternalProductID:   "P1",
		CompetitorProductID: "V1",
		CompetitorPrice:     d("8.00"),
		CurrentPrice:        d("10.00"),
	}})
	require.NoError(t, err)

	p, err := st.Get(context.Background(), model.Key{ProductID: "P1", VariantID: "V1"})
	require.NoError(t, err)
	assert.True(t, p.ProposedPrice.Equal(d("10.00")), "competitor below floor, current retained")
}

func TestGenerateSheet_FloorLookupFailureAbortsBatch(t *testing.T) {
	svc, st, _ := newTestService(t)
	st.SetFloor("P1", d("5.00"))
	st.FailFloors(errors.New("table offline"))

	stored, err := svc.GenerateSheet(context.Background(), []SheetEntry{{
		InternalProductID:   "P1",
		CompetitorProductID: "V1",
		CompetitorPrice:     d("8.00"),
		CurrentPrice:        d("10.00"),
	}})
	assert.ErrorIs(t, err, model.ErrFloorUnavailable)
	assert.Equal(t, 0, stored)

	_, err = st.Get(context.Background(), model.Key{ProductID: "P1", VariantID: "V1"})
	assert.ErrorIs(t, err, model.ErrNotFound, "no silent fallback to degraded policy")
}

func TestGenerateSheet_MissingFloorAbortsBatch(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.GenerateSheet(context.Background(), []SheetEntry{{
		InternalProductID:   "P-unknown",
		CompetitorProductID: "V1",
		CompetitorPrice:     d("8.00"),
		CurrentPrice:        d("10.00"),
	}})
	assert.ErrorIs(t, err, model.ErrFloorUnavailable)
}

func TestReview_Approve(t *testing.T) {
	svc, _, pub := newTestService(t)
	mustAdd(t, svc, "P1", "V1")

	p, err := svc.Review(context.Background(), ReviewInput{
		Action:    "approve",
		ProductID: "P1",
		VariantID: "V1",
		Reviewer:  "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, p.ApprovalStatus)
	assert.Equal(t, "alice", p.ReviewedBy)

	require.Len(t, pub.reviewed, 1)
	assert.Equal(t, model.StatusPending, pub.reviewed[0].Old.ApprovalStatus)
	assert.Equal(t, model.StatusApproved, pub.reviewed[0].New.ApprovalStatus)
}

func TestReview_Reject(t *testing.T) {
	svc, _, _ := newTestService(t)
	mustAdd(t, svc, "P1", "V1")

	p, err := svc.Review(context.Background(), ReviewInput{
		Action:    "reject",
		ProductID: "P1",
		VariantID: "V1",
		Reviewer:  "bob",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, p.ApprovalStatus)
	assert.Equal(t, "bob", p.ReviewedBy)
}

func TestReview_NotFound(t *testing.T) {
	svc, st, _ := newTestService(t)

	_, err := svc.Review(context.Background(), ReviewInput{
		Action:    "approve",
		ProductID: "ghost",
		VariantID: "V1",
		Reviewer:  "alice",
	})
	assert.ErrorIs(t, err, model.ErrNotFound)

	// no record created by the failed review
	pending, listErr := st.ListByStatus(context.Background(), model.StatusPending)
	require.NoError(t, listErr)
	assert.Empty(t, pending)
}

func TestReview_IdempotentReApprove(t *testing.T) {
	svc, _, _ := newTestService(t)
	mustAdd(t, svc, "P1", "V1")

	first, err := svc.Review(context.Background(), ReviewInput{Action: "approve", ProductID: "P1", VariantID: "V1", Reviewer: "alice"})
	require.NoError(t, err)

	second, err := svc.Review(context.Background(), ReviewInput{Action: "approve", ProductID: "P1", VariantID: "V1", Reviewer: "alice"})
	require.NoError(t, err)
	assert.Equal(t, first.ApprovalStatus, second.ApprovalStatus)
	assert.Equal(t, first.ReviewedBy, second.ReviewedBy)
}

func TestReview_TerminalStatesAreFinal(t *testing.T) {
	svc, _, _ := newTestService(t)

	// Rejected stays rejected
	mustAdd(t, svc, "P1", "V1")
	_, err := svc.Review(context.Background(), ReviewInput{Action: "reject", ProductID: "P1", VariantID: "V1", Reviewer: "alice"})
	require.NoError(t, err)
	_, err = svc.Review(context.Background(), ReviewInput{Action: "approve", ProductID: "P1", VariantID: "V1", Reviewer: "bob"})
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	// Completed stays completed
	mustAdd(t, svc, "P2", "V1")
	_, err = svc.Review(context.Background(), ReviewInput{Action: "approve", ProductID: "P2", VariantID: "V1", Reviewer: "alice"})
	require.NoError(t, err)
	_, err = svc.Complete(context.Background(), model.Key{ProductID: "P2", VariantID: "V1"})
	require.NoError(t, err)
	_, err = svc.Review(context.Background(), ReviewInput{Action: "reject", ProductID: "P2", VariantID: "V1", Reviewer: "bob"})
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

func TestReview_InvalidAction(t *testing.T) {
	svc, _, _ := newTestService(t)
	mustAdd(t, svc, "P1", "V1")

	_, err := svc.Review(context.Background(), ReviewInput{Action: "escalate", ProductID: "P1", VariantID: "V1"})
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

func TestComplete_OnlyFromApproved(t *testing.T) {
	svc, _, _ := newTestService(t)
	mustAdd(t, svc, "P1", "V1")

	_, err := svc.Complete(context.Background(), model.Key{ProductID: "P1", VariantID: "V1"})
	assert.ErrorIs(t, err, model.ErrInvalidTransition, "pending records cannot be completed")

	_, err = svc.Review(context.Background(), ReviewInput{Action: "approve", ProductID: "P1", VariantID: "V1", Reviewer: "alice"})
	require.NoError(t, err)

	p, err := svc.Complete(context.Background(), model.Key{ProductID: "P1", VariantID: "V1"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, p.ApprovalStatus)
	assert.Equal(t, "alice", p.ReviewedBy, "completion does not overwrite the reviewer")
}

func TestAdd_PublishFailureDoesNotFailIngestion(t *testing.T) {
	svc, st, pub := newTestService(t)
	pub.err = errors.New("nats down")

	_, err := svc.Add(context.Background(), AddInput{
		ProductID:       "P1",
		VariantID:       "V1",
		CurrentPrice:    d("10.00"),
		CompetitorPrice: d("8.00"),
	})
	require.NoError(t, err)

	_, err = st.Get(context.Background(), model.Key{ProductID: "P1", VariantID: "V1"})
	assert.NoError(t, err)
}

func mustAdd(t *testing.T, svc *Service, productID, variantID string) {
	t.Helper()
	_, err := svc.Add(context.Background(), AddInput{
		ProductID:       productID,
		VariantID:       variantID,
		CurrentPrice:    d("10.00"),
		CompetitorPrice: d("8.00"),
	})
	require.NoError(t, err)
}
