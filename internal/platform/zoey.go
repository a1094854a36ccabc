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

// Zoey updates product prices through the Zoey (Magento-style) REST API.
// PUT /api/rest/products/{product_id}
type Zoey struct {
	logger   *zap.Logger
	exec     *httpclient.Executor
	resolver CredentialResolver
}

type zoeyProductPayload struct {
	SKU   string `json:"sku,omitempty"`
	Price string `json:"price"`
}

type zoeyErrorResponse struct {
	Messages struct {
		Error []struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"messages"`
}

func NewZoey(logger *zap.Logger, rateMgr *rate.Manager, resolver CredentialResolver) *Zoey {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	exec := httpclient.New(logger, rateMgr, httpClient, 2, "zoey", func(status int, body []byte) error {
		var errResp zoeyErrorResponse
		_ = json.Unmarshal(body, &errResp)
		msg := string(body)
		if len(errResp.Messages.Error) > 0 {
			msg = errResp.Messages.Error[0].Message
		}
		logger.Warn("zoey.client_error",
			zap.Int("status", status),
			zap.String("message", msg))
		return fmt.Errorf("zoey returned %d: %s", status, msg)
	})
	return &Zoey{logger: logger, exec: exec, resolver: resolver}
}

func (z *Zoey) Platform() model.Platform { return model.PlatformZoey }

func (z *Zoey) UpdatePrice(ctx context.Context, productID, variantID string, price decimal.Decimal) error {
	creds, err := z.resolver.Resolve(ctx, z.Platform())
	if err != nil {
		return err
	}

	payload := zoeyProductPayload{
		SKU:   variantID,
		Price: price.StringFixed(2),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/rest/products/%s", creds.BaseURL, productID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)

	start := time.Now()
	err = z.exec.DoJSON(ctx, req, string(z.Platform()), nil)
	metrics.ObserveDuration(metrics.PlatformRequestDuration, start, string(z.Platform()))
	if err != nil {
		metrics.IncPlatformRequest(string(z.Platform()), "error")
		return fmt.Errorf("zoey price update for %s/%s: %w", productID, variantID, err)
	}

	metrics.IncPlatformRequest(string(z.Platform()), "ok")
	z.logger.Info("zoey.price_updated",
		zap.String("product_id", productID),
		zap.String("variant_id", variantID),
		zap.String("price", price.StringFixed(2)))
	return nil
}
