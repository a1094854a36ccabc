package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/pricefleet/repricer/internal/dispatch"
	"github.com/pricefleet/repricer/internal/proposal"
	"github.com/pricefleet/repricer/pkg/model"
)

// ProposalService defines the lifecycle operations needed by the handler.
type ProposalService interface {
	Add(ctx context.Context, in proposal.AddInput) (*model.Proposal, error)
	GenerateSheet(ctx context.Context, entries []proposal.SheetEntry) (int, error)
	Review(ctx context.Context, in proposal.ReviewInput) (*model.Proposal, error)
	Get(ctx context.Context, key model.Key) (*model.Proposal, error)
	ListByStatus(ctx context.Context, status model.Status) ([]model.Proposal, error)
}

// CycleRunner triggers one propagation cycle on demand.
type CycleRunner interface {
	RunCycle(ctx context.Context) (dispatch.Report, error)
}

// Handler serves the proposal lifecycle HTTP API.
type Handler struct {
	logger  *zap.Logger
	service ProposalService
	runner  CycleRunner
}

func NewHandler(logger *zap.Logger, service ProposalService, runner CycleRunner) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
		runner:  runner,
	}
}

// AddProposal handles single-proposal ingestion.
func (h *Handler) AddProposal(c *fiber.Ctx) error {
	var req AddProposalRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	p, err := h.service.Add(c.Context(), proposal.AddInput{
		ProductID:       req.ProductID,
		VariantID:       req.VariantID,
		CompetitorURL:   req.CompetitorURL,
		CurrentPrice:    req.CurrentPrice,
		CompetitorPrice: req.CompetitorPrice,
		ProposedPrice:   req.ProposedPrice,
		Platform:        req.Platform,
	})
	if err != nil {
		h.logger.Error("api.add_proposal_failed",
			zap.String("product_id", req.ProductID),
			zap.Error(err))
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  fmt.Sprintf("Product %s added successfully.", p.ProductID),
		"proposal": p,
	})
}

// GenerateSheet handles batch proposal generation (strict floor mode).
func (h *Handler) GenerateSheet(c *fiber.Ctx) error {
	var req GenerateSheetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	entries := make([]proposal.SheetEntry, len(req.Proposals))
	for i, p := range req.Proposals {
		entries[i] = proposal.SheetEntry{
			InternalProductID:   p.InternalProductID,
			CompetitorProductID: p.CompetitorProductID,
			CompetitorURL:       p.CompetitorURL,
			CompetitorPrice:     p.CompetitorPrice,
			CurrentPrice:        p.CurrentPrice,
			Platform:            p.Platform,
		}
	}

	stored, err := h.service.GenerateSheet(c.Context(), entries)
	if err != nil {
		h.logger.Error("api.generate_sheet_failed",
			zap.Int("stored", stored),
			zap.Error(err))
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Pricing sheet generated and stored successfully.",
		"stored":  stored,
	})
}

// Review handles approve/reject decisions.
func (h *Handler) Review(c *fiber.Ctx) error {
	var req ReviewRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	p, err := h.service.Review(c.Context(), proposal.ReviewInput{
		Action:    strings.ToLower(strings.TrimSpace(req.Action)),
		ProductID: req.ProductID,
		VariantID: req.VariantID,
		Reviewer:  req.Reviewer,
	})
	if err != nil {
		h.logger.Error("api.review_failed",
			zap.String("product_id", req.ProductID),
			zap.String("action", req.Action),
			zap.Error(err))
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": fmt.Sprintf("Price change for Product %s (Variant %s) has been %s by %s.",
			p.ProductID, p.VariantID, strings.ToLower(string(p.ApprovalStatus)), p.ReviewedBy),
		"updatedAttributes": p,
	})
}

// ListProposals returns proposals by status (default Pending).
func (h *Handler) ListProposals(c *fiber.Ctx) error {
	status := model.StatusPending
	if q := c.Query("status"); q != "" {
		parsed, err := model.ParseStatus(q)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		status = parsed
	}

	proposals, err := h.service.ListByStatus(c.Context(), status)
	if err != nil {
		h.logger.Error("api.list_proposals_failed", zap.Error(err))
		return respondError(c, err)
	}
	if proposals == nil {
		proposals = []model.Proposal{}
	}

	return c.Status(fiber.StatusOK).JSON(proposals)
}

// GetProposal returns one proposal by composite identity.
func (h *Handler) GetProposal(c *fiber.Ctx) error {
	key := model.Key{
		ProductID: c.Params("productId"),
		VariantID: c.Params("variantId"),
	}

	p, err := h.service.Get(c.Context(), key)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(p)
}

// RunPropagation triggers one propagation cycle and returns its report.
func (h *Handler) RunPropagation(c *fiber.Ctx) error {
	report, err := h.runner.RunCycle(c.Context())
	if err != nil {
		h.logger.Error("api.propagation_failed", zap.Error(err))
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Approved price changes applied.",
		"report":  report,
	})
}

// respondError maps the error taxonomy onto HTTP status codes.
func respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, model.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, model.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, model.ErrInvalidTransition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, model.ErrStoreUnavailable), errors.Is(err, model.ErrFloorUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}
