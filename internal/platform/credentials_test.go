package platform

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pricefleet/repricer/pkg/model"
	"github.com/pricefleet/repricer/pkg/secrets"
)

type fakeProvider struct {
	secrets map[string]map[string]string
	err     error
	calls   int
}

func (f *fakeProvider) GetSecret(_ context.Context, key string) (map[string]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.secrets[key]
	if !ok {
		return nil, errors.New("secret not found")
	}
	return s, nil
}

func (f *fakeProvider) ListSecrets(context.Context, string) ([]string, error) {
	return nil, nil
}

func newResolver(provider secrets.Provider) *SecretsResolver {
	return NewSecretsResolver(zap.NewNop(), "dev", provider, secrets.NewCache[Credentials](time.Minute))
}

func TestSecretsResolver_ResolvesFromProvider(t *testing.T) {
	provider := &fakeProvider{secrets: map[string]map[string]string{
		"dev/repricer/platform/shopify": {
			"base_url":     "https://shop.example.com",
			"access_token": "tok",
			"account_id":   "acct-1",
		},
	}}
	r := newResolver(provider)

	creds, err := r.Resolve(context.Background(), model.PlatformShopify)
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example.com", creds.BaseURL)
	assert.Equal(t, "tok", creds.AccessToken)
	assert.Equal(t, "acct-1", creds.AccountID)
}

func TestSecretsResolver_CachesLookups(t *testing.T) {
	provider := &fakeProvider{secrets: map[string]map[string]string{
		"dev/repricer/platform/zoey": {
			"base_url":     "https://zoey.example.com",
			"access_token": "tok",
		},
	}}
	r := newResolver(provider)

	_, err := r.Resolve(context.Background(), model.PlatformZoey)
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), model.PlatformZoey)
	require.NoError(t, err)

	assert.Equal(t, 1, provider.calls, "second resolve must hit the cache")
}

func TestSecretsResolver_EnvOverrideWins(t *testing.T) {
	t.Setenv("SHOPIFY_BASE_URL", "https://local.example.com")
	t.Setenv("SHOPIFY_ACCESS_TOKEN", "local-tok")

	provider := &fakeProvider{}
	r := newResolver(provider)

	creds, err := r.Resolve(context.Background(), model.PlatformShopify)
	require.NoError(t, err)
	assert.Equal(t, "https://local.example.com", creds.BaseURL)
	assert.Equal(t, "local-tok", creds.AccessToken)
	assert.Equal(t, 0, provider.calls, "env override must bypass the provider")
}

func TestSecretsResolver_IncompleteSecret(t *testing.T) {
	provider := &fakeProvider{secrets: map[string]map[string]string{
		"dev/repricer/platform/netsuite": {"base_url": "https://ns.example.com"},
	}}
	r := newResolver(provider)

	_, err := r.Resolve(context.Background(), model.PlatformNetSuite)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incomplete credentials")
}

func TestSecretsResolver_NilProvider(t *testing.T) {
	r := newResolver(nil)

	_, err := r.Resolve(context.Background(), model.PlatformShopify)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no credentials configured")
}

func TestSecretsResolver_ProviderError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("aws throttled")}
	r := newResolver(provider)

	_, err := r.Resolve(context.Background(), model.PlatformShopify)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aws throttled")
}
