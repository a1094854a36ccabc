package api

import "github.com/shopspring/decimal"

// AddProposalRequest is the payload to submit a single pricing proposal.
// proposed_price is optional; when omitted the service computes it with the
// floorless min(current, competitor) policy.
type AddProposalRequest struct {
	ProductID       string           `json:"product_id" example:"P1"`
	VariantID       string           `json:"variant_id" example:"V1"`
	CompetitorURL   string           `json:"competitor_url,omitempty"`
	CurrentPrice    decimal.Decimal  `json:"current_price" example:"10.00"`
	CompetitorPrice decimal.Decimal  `json:"competitor_price" example:"8.00"`
	ProposedPrice   *decimal.Decimal `json:"proposed_price,omitempty"`
	Platform        string           `json:"platform,omitempty" example:"shopify"`
}

// SheetProposal is one competitor-scraped entry in a price sheet batch.
type SheetProposal struct {
	InternalProductID   string          `json:"internal_product_id"`
	CompetitorProductID string          `json:"competitor_product_id"`
	CompetitorURL       string          `json:"competitor_url"`
	CompetitorPrice     decimal.Decimal `json:"competitor_price"`
	CurrentPrice        decimal.Decimal `json:"current_price"`
	Platform            string          `json:"platform,omitempty"`
}

// GenerateSheetRequest is the payload for batch proposal generation with the
// strict floor-aware policy.
type GenerateSheetRequest struct {
	Proposals []SheetProposal `json:"proposals"`
}

// ReviewRequest is a reviewer decision on a pending proposal.
type ReviewRequest struct {
	Action    string `json:"action" example:"approve"`
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	Reviewer  string `json:"reviewer" example:"alice"`
}
