package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a pricing proposal.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusApproved  Status = "Approved"
	StatusRejected  Status = "Rejected"
	StatusCompleted Status = "Completed"
)

// Terminal reports whether no further lifecycle transition is permitted.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

// ParseStatus converts a string into a Status, case-insensitively.
func ParseStatus(v string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "pending":
		return StatusPending, nil
	case "approved":
		return StatusApproved, nil
	case "rejected":
		return StatusRejected, nil
	case "completed":
		return StatusCompleted, nil
	}
	return "", fmt.Errorf("unknown status %q", v)
}

// Platform identifies the downstream commerce system that owns a product's price.
type Platform string

const (
	PlatformShopify  Platform = "shopify"
	PlatformNetSuite Platform = "netsuite"
	PlatformZoey     Platform = "zoey"
)

// ParsePlatform normalizes a platform identifier. Unknown values are returned
// as-is (lowercased) so the dispatcher can skip them per item instead of failing.
func ParsePlatform(v string) Platform {
	return Platform(strings.ToLower(strings.TrimSpace(v)))
}

// ReviewerNone is the sentinel stored before any reviewer has acted on a proposal.
const ReviewerNone = "None"

// Key is the composite identity of a proposal.
type Key struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
}

func (k Key) String() string {
	return k.ProductID + ":" + k.VariantID
}

// Validate checks both halves of the composite key are present.
func (k Key) Validate() error {
	if strings.TrimSpace(k.ProductID) == "" {
		return fmt.Errorf("%w: product_id is required", ErrValidation)
	}
	if strings.TrimSpace(k.VariantID) == "" {
		return fmt.Errorf("%w: variant_id is required", ErrValidation)
	}
	return nil
}

// Proposal is a pending or decided price change for one product/variant pair.
type Proposal struct {
	ProductID       string          `json:"product_id"`
	VariantID       string          `json:"variant_id"`
	CompetitorURL   string          `json:"competitor_url,omitempty"`
	CurrentPrice    decimal.Decimal `json:"current_price"`
	CompetitorPrice decimal.Decimal `json:"competitor_price"`
	ProposedPrice   decimal.Decimal `json:"proposed_price"`
	ApprovalStatus  Status          `json:"approval_status"`
	ReviewedBy      string          `json:"reviewed_by"`
	Platform        Platform        `json:"platform,omitempty"`
	CreatedAt       time.Time       `json:"created_at,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at,omitempty"`
}

// Key returns the proposal's composite identity.
func (p Proposal) Key() Key {
	return Key{ProductID: p.ProductID, VariantID: p.VariantID}
}
