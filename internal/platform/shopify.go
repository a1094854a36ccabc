package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/pricefleet/repricer/internal/httpclient"
	"github.com/pricefleet/repricer/internal/metrics"
	"github.com/pricefleet/repricer/internal/rate"
	"github.com/pricefleet/repricer/pkg/model"
)

const shopifyAPIVersion = "2024-01"

// Shopify updates variant prices through the Shopify Admin REST API.
// PUT /admin/api/<version>/variants/{variant_id}.json
type Shopify struct {
	logger   *zap.Logger
	exec     *httpclient.Executor
	resolver CredentialResolver
}

type shopifyVariantPayload struct {
	Variant struct {
		ID    string `json:"id"`
		Price string `json:"price"`
	} `json:"variant"`
}

type shopifyErrorResponse struct {
	Errors any `json:"errors"`
}

func NewShopify(logger *zap.Logger, rateMgr *rate.Manager, resolver CredentialResolver) *Shopify {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	exec := httpclient.New(logger, rateMgr, httpClient, 2, "shopify", func(status int, body []byte) error {
		var errResp shopifyErrorResponse
		_ = json.Unmarshal(body, &errResp)
		logger.Warn("shopify.client_error",
			zap.Int("status", status),
			zap.Any("errors", errResp.Errors))
		return fmt.Errorf("shopify returned %d: %s", status, string(body))
	})
	return &Shopify{logger: logger, exec: exec, resolver: resolver}
}

func (s *Shopify) Platform() model.Platform { return model.PlatformShopify }

func (s *Shopify) UpdatePrice(ctx context.Context, productID, variantID string, price decimal.Decimal) error {
	creds, err := s.resolver.Resolve(ctx, s.Platform())
	if err != nil {
		return err
	}

	var payload shopifyVariantPayload
	payload.Variant.ID = variantID
	payload.Variant.Price = price.StringFixed(2)

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/admin/api/%s/variants/%s.json", creds.BaseURL, shopifyAPIVersion, variantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", creds.AccessToken)

	start := time.Now()
	err = s.exec.DoJSON(ctx, req, string(s.Platform()), nil)
	metrics.ObserveDuration(metrics.PlatformRequestDuration, start, string(s.Platform()))
	if err != nil {
		metrics.IncPlatformRequest(string(s.Platform()), "error")
		return fmt.Errorf("shopify price update for %s/%s: %w", productID, variantID, err)
	}

	metrics.IncPlatformRequest(string(s.Platform()), "ok")
	s.logger.Info("shopify.price_updated",
		zap.String("product_id", productID),
		zap.String("variant_id", variantID),
		zap.String("price", price.StringFixed(2)))
	return nil
}
