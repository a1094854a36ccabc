package platform

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pricefleet/repricer/internal/metrics"
	pkgconfig "github.com/pricefleet/repricer/pkg/config"
	"github.com/pricefleet/repricer/pkg/model"
	"github.com/pricefleet/repricer/pkg/secrets"
)

// Credentials is the per-platform API configuration resolved at call time.
// Stored in AWS Secrets Manager as a JSON map under
// "<env>/repricer/platform/<platform>".
type Credentials struct {
	BaseURL     string `json:"base_url"`
	AccessToken string `json:"access_token"`
	AccountID   string `json:"account_id,omitempty"`
}

// CredentialResolver resolves API credentials for a platform.
type CredentialResolver interface {
	Resolve(ctx context.Context, platform model.Platform) (*Credentials, error)
}

// SecretsResolver resolves credentials from a secrets Provider with an
// in-memory TTL cache. Environment variables of the form
// <PLATFORM>_BASE_URL / <PLATFORM>_ACCESS_TOKEN take precedence, which keeps
// local development off AWS entirely.
type SecretsResolver struct {
	logger   *zap.Logger
	env      string
	provider secrets.Provider
	cache    *secrets.Cache[Credentials]
}

func NewSecretsResolver(logger *zap.Logger, env string, provider secrets.Provider, cache *secrets.Cache[Credentials]) *SecretsResolver {
	return &SecretsResolver{
		logger:   logger,
		env:      env,
		provider: provider,
		cache:    cache,
	}
}

func (r *SecretsResolver) secretName(platform model.Platform) string {
	return fmt.Sprintf("%s/repricer/platform/%s", r.env, platform)
}

func (r *SecretsResolver) Resolve(ctx context.Context, platform model.Platform) (*Credentials, error) {
	if creds, ok := r.envOverride(platform); ok {
		return creds, nil
	}

	name := r.secretName(platform)
	if cached, ok := r.cache.Get(name); ok {
		metrics.IncCacheAccess("credentials", "hit")
		return &cached, nil
	}
	metrics.IncCacheAccess("credentials", "miss")

	if r.provider == nil {
		return nil, fmt.Errorf("no credentials configured for platform %q", platform)
	}

	raw, err := r.provider.GetSecret(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("resolve credentials for %q: %w", platform, err)
	}

	creds := Credentials{
		BaseURL:     raw["base_url"],
		AccessToken: raw["access_token"],
		AccountID:   raw["account_id"],
	}
	if creds.BaseURL == "" || creds.AccessToken == "" {
		return nil, fmt.Errorf("incomplete credentials for platform %q", platform)
	}

	r.cache.Put(name, creds)
	return &creds, nil
}

func (r *SecretsResolver) envOverride(platform model.Platform) (*Credentials, bool) {
	prefix := envPrefix(platform)
	baseURL := pkgconfig.GetEnv(prefix+"_BASE_URL", "")
	token := pkgconfig.GetEnv(prefix+"_ACCESS_TOKEN", "")
	if baseURL == "" || token == "" {
		return nil, false
	}
	return &Credentials{
		BaseURL:     baseURL,
		AccessToken: token,
		AccountID:   pkgconfig.GetEnv(prefix+"_ACCOUNT_ID", ""),
	}, true
}

func envPrefix(platform model.Platform) string {
	switch platform {
	case model.PlatformShopify:
		return "SHOPIFY"
	case model.PlatformNetSuite:
		return "NETSUITE"
	case model.PlatformZoey:
		return "ZOEY"
	}
	return "PLATFORM"
}

// StaticResolver returns fixed credentials for every platform. Used in tests.
type StaticResolver struct {
	Creds map[model.Platform]*Credentials
}

func (s *StaticResolver) Resolve(_ context.Context, platform model.Platform) (*Credentials, error) {
	creds, ok := s.Creds[platform]
	if !ok {
		return nil, fmt.Errorf("no credentials configured for platform %q", platform)
	}
	return creds, nil
}
