// Package platform holds the downstream commerce clients. Each platform
// implements the same narrow capability: push one price for one
// product/variant pair. The dispatcher resolves adapters through a Registry so
// an unknown platform degrades to a per-item skip instead of a crash.
package platform

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/pricefleet/repricer/pkg/model"
)

// Adapter pushes an approved price to one downstream commerce platform.
// UpdatePrice returns nil only when the platform confirmed the update.
type Adapter interface {
	Platform() model.Platform
	UpdatePrice(ctx context.Context, productID, variantID string, price decimal.Decimal) error
}

// Registry maps platform identifiers to their adapters.
type Registry struct {
	adapters map[model.Platform]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[model.Platform]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

func (r *Registry) Register(a Adapter) {
	r.adapters[a.Platform()] = a
}

// Resolve returns the adapter for p, or false when none is registered.
func (r *Registry) Resolve(p model.Platform) (Adapter, bool) {
	a, ok := r.adapters[p]
	return a, ok
}

// Platforms lists the registered platform identifiers.
func (r *Registry) Platforms() []model.Platform {
	out := make([]model.Platform, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	return out
}
