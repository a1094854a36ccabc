// Package pricing holds the price-computation policy that turns a competitor
// observation into a proposed price. The policy is pure: it never reads the
// store and never proposes an increase.
package pricing

import (
	"context"

	"github.com/shopspring/decimal"
)

// FloorSource resolves the minimum allowed price for a product.
// A lookup failure must surface as an error; strict-mode ingestion aborts on it
// instead of silently degrading.
type FloorSource interface {
	GetFloor(ctx context.Context, productID string) (decimal.Decimal, error)
}

// ComputeProposedPrice applies the floor-aware policy: match the competitor
// only when they undercut us without going below the floor. Otherwise the
// current price stands.
func ComputeProposedPrice(current, competitor, floor decimal.Decimal) decimal.Decimal {
	if competitor.LessThan(current) && competitor.GreaterThanOrEqual(floor) {
		return competitor
	}
	return current
}

// ComputeDegraded is the conservative fallback for ingestion paths that do not
// consult a floor at all: min(current, competitor). It still never proposes an
// increase, but it can go below an unknown floor, so it is only used when the
// caller explicitly chose the floorless mode.
func ComputeDegraded(current, competitor decimal.Decimal) decimal.Decimal {
	if competitor.LessThan(current) {
		return competitor
	}
	return current
}
