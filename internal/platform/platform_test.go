package platform

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pricefleet/repricer/pkg/model"
)

func staticResolver(p model.Platform, baseURL string) *StaticResolver {
	return &StaticResolver{Creds: map[model.Platform]*Credentials{
		p: {BaseURL: baseURL, AccessToken: "token-123"},
	}}
}

type capturedRequest struct {
	method string
	path   string
	header http.Header
	body   []byte
}

func captureServer(t *testing.T, status int, response string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	var captured capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.method = r.Method
		captured.path = r.URL.Path
		captured.header = r.Header.Clone()
		captured.body, _ = io.ReadAll(r.Body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, &captured
}

func TestShopifyUpdatePrice(t *testing.T) {
	srv, captured := captureServer(t, http.StatusOK, `{"variant":{"id":"V1","price":"8.00"}}`)
	s := NewShopify(zap.NewNop(), nil, staticResolver(model.PlatformShopify, srv.URL))

	err := s.UpdatePrice(context.Background(), "P1", "V1", decimal.RequireFromString("8"))
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, captured.method)
	assert.Equal(t, "/admin/api/2024-01/variants/V1.json", captured.path)
	assert.Equal(t, "token-123", captured.header.Get("X-Shopify-Access-Token"))
	assert.JSONEq(t, `{"variant":{"id":"V1","price":"8.00"}}`, string(captured.body))
}

func TestShopifyUpdatePrice_ClientError(t *testing.T) {
	srv, _ := captureServer(t, http.StatusUnprocessableEntity, `{"errors":{"price":["invalid"]}}`)
	s := NewShopify(zap.NewNop(), nil, staticResolver(model.PlatformShopify, srv.URL))

	err := s.UpdatePrice(context.Background(), "P1", "V1", decimal.RequireFromString("8"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

func TestNetSuiteUpdatePrice(t *testing.T) {
	srv, captured := captureServer(t, http.StatusOK, `{}`)
	n := NewNetSuite(zap.NewNop(), nil, staticResolver(model.PlatformNetSuite, srv.URL))

	err := n.UpdatePrice(context.Background(), "P1", "V1", decimal.RequireFromString("8.50"))
	require.NoError(t, err)

	assert.Equal(t, http.MethodPatch, captured.method)
	assert.Equal(t, "/services/rest/record/v1/inventoryItem/P1", captured.path)
	assert.Equal(t, "Bearer token-123", captured.header.Get("Authorization"))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(captured.body, &payload))
	items := payload["price"].(map[string]any)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "V1", items[0].(map[string]any)["internalId"])
	assert.Equal(t, 8.5, items[0].(map[string]any)["price"])
}

func TestZoeyUpdatePrice(t *testing.T) {
	srv, captured := captureServer(t, http.StatusOK, `{}`)
	z := NewZoey(zap.NewNop(), nil, staticResolver(model.PlatformZoey, srv.URL))

	err := z.UpdatePrice(context.Background(), "P1", "V1", decimal.RequireFromString("12.3"))
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, captured.method)
	assert.Equal(t, "/api/rest/products/P1", captured.path)
	assert.Equal(t, "Bearer token-123", captured.header.Get("Authorization"))
	assert.JSONEq(t, `{"sku":"V1","price":"12.30"}`, string(captured.body))
}

func TestUpdatePrice_UnresolvedCredentials(t *testing.T) {
	s := NewShopify(zap.NewNop(), nil, &StaticResolver{})

	err := s.UpdatePrice(context.Background(), "P1", "V1", decimal.RequireFromString("8"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no credentials")
}

func TestRegistry(t *testing.T) {
	s := NewShopify(zap.NewNop(), nil, &StaticResolver{})
	z := NewZoey(zap.NewNop(), nil, &StaticResolver{})
	reg := NewRegistry(s, z)

	got, ok := reg.Resolve(model.PlatformShopify)
	require.True(t, ok)
	assert.Equal(t, model.PlatformShopify, got.Platform())

	_, ok = reg.Resolve(model.PlatformNetSuite)
	assert.False(t, ok)

	assert.Len(t, reg.Platforms(), 2)
}
