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

// NetSuite updates item prices through the SuiteTalk REST record API.
// PATCH /services/rest/record/v1/inventoryItem/{item_id}
type NetSuite struct {
	logger   *zap.Logger
	exec     *httpclient.Executor
	resolver CredentialResolver
}

type netsuitePricePayload struct {
	Price struct {
		Items []netsuitePriceItem `json:"items"`
	} `json:"price"`
}

type netsuitePriceItem struct {
	VariantID string  `json:"internalId"`
	UnitPrice float64 `json:"price"`
}

type netsuiteErrorResponse struct {
	Title  string `json:"title"`
	Detail string `json:"o:errorDetails,omitempty"`
	Status int    `json:"status"`
}

func NewNetSuite(logger *zap.Logger, rateMgr *rate.Manager, resolver CredentialResolver) *NetSuite {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	exec := httpclient.New(logger, rateMgr, httpClient, 2, "netsuite", func(status int, body []byte) error {
		var errResp netsuiteErrorResponse
		_ = json.Unmarshal(body, &errResp)
		msg := errResp.Title
		if msg == "" {
			msg = string(body)
		}
		logger.Warn("netsuite.client_error",
			zap.Int("status", status),
			zap.String("title", errResp.Title))
		return fmt.Errorf("netsuite returned %d: %s", status, msg)
	})
	return &NetSuite{logger: logger, exec: exec, resolver: resolver}
}

func (n *NetSuite) Platform() model.Platform { return model.PlatformNetSuite }

func (n *NetSuite) UpdatePrice(ctx context.Context, productID, variantID string, price decimal.Decimal) error {
	creds, err := n.resolver.Resolve(ctx, n.Platform())
	if err != nil {
		return err
	}

	var payload netsuitePricePayload
	priceValue, _ := price.Round(2).Float64()
	payload.Price.Items = []netsuitePriceItem{{
		VariantID: variantID,
		UnitPrice: priceValue,
	}}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/services/rest/record/v1/inventoryItem/%s", creds.BaseURL, productID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)

	start := time.Now()
	err = n.exec.DoJSON(ctx, req, string(n.Platform()), nil)
	metrics.ObserveDuration(metrics.PlatformRequestDuration, start, string(n.Platform()))
	if err != nil {
		metrics.IncPlatformRequest(string(n.Platform()), "error")
		return fmt.Errorf("netsuite price update for %s/%s: %w", productID, variantID, err)
	}

	metrics.IncPlatformRequest(string(n.Platform()), "ok")
	n.logger.Info("netsuite.price_updated",
		zap.String("product_id", productID),
		zap.String("variant_id", variantID),
		zap.String("price", price.StringFixed(2)))
	return nil
}
