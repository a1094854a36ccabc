package api

import (
	"fmt"
	"strings"
)

func (r AddProposalRequest) Validate() error {
	if strings.TrimSpace(r.ProductID) == "" {
		return fmt.Errorf("product_id is required")
	}
	if strings.TrimSpace(r.VariantID) == "" {
		return fmt.Errorf("variant_id is required")
	}
	if r.CurrentPrice.IsNegative() {
		return fmt.Errorf("current_price must not be negative")
	}
	if r.CompetitorPrice.IsNegative() {
		return fmt.Errorf("competitor_price must not be negative")
	}
	if r.ProposedPrice != nil && r.ProposedPrice.IsNegative() {
		return fmt.Errorf("proposed_price must not be negative")
	}
	return nil
}

func (r GenerateSheetRequest) Validate() error {
	if len(r.Proposals) == 0 {
		return fmt.Errorf("proposals must not be empty")
	}
	for i, p := range r.Proposals {
		if strings.TrimSpace(p.InternalProductID) == "" {
			return fmt.Errorf("proposals[%d]: internal_product_id is required", i)
		}
		if strings.TrimSpace(p.CompetitorProductID) == "" {
			return fmt.Errorf("proposals[%d]: competitor_product_id is required", i)
		}
		if p.CurrentPrice.IsNegative() || p.CompetitorPrice.IsNegative() {
			return fmt.Errorf("proposals[%d]: prices must not be negative", i)
		}
	}
	return nil
}

func (r ReviewRequest) Validate() error {
	action := strings.ToLower(strings.TrimSpace(r.Action))
	if action != "approve" && action != "reject" {
		return fmt.Errorf("action must be 'approve' or 'reject'")
	}
	if strings.TrimSpace(r.ProductID) == "" {
		return fmt.Errorf("product_id is required")
	}
	if strings.TrimSpace(r.VariantID) == "" {
		return fmt.Errorf("variant_id is required")
	}
	return nil
}
