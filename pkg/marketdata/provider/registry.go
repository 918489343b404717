package provider

import (
	"sort"

	"github.com/rxtech-lab/argo-ingest/internal/config"
	"github.com/rxtech-lab/argo-ingest/internal/logger"
	"github.com/rxtech-lab/argo-ingest/pkg/errors"
)

// ProviderInfo contains metadata about a market data provider.
type ProviderInfo struct {
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	Description  string `json:"description"`
	RequiresAuth bool   `json:"requiresAuth"`
}

// providerRegistry holds metadata about all supported providers.
var providerRegistry = map[ProviderType]ProviderInfo{
	ProviderIBKR: {
		Name:         string(ProviderIBKR),
		DisplayName:  "Interactive Brokers",
		Description:  "Historical bars through a locally running Client Portal Gateway",
		RequiresAuth: true,
	},
	ProviderPolygon: {
		Name:         string(ProviderPolygon),
		DisplayName:  "Polygon.io",
		Description:  "US stock market data provider with historical OHLCV aggregates",
		RequiresAuth: true,
	},
	ProviderBinance: {
		Name:         string(ProviderBinance),
		DisplayName:  "Binance",
		Description:  "Cryptocurrency exchange with spot klines for crypto trading pairs",
		RequiresAuth: false,
	},
	ProviderSaxo: {
		Name:         string(ProviderSaxo),
		DisplayName:  "Saxo Bank",
		Description:  "OpenAPI chart data for stocks, indices and CFDs (OAuth2 sign-in)",
		RequiresAuth: true,
	},
}

// GetSupportedProviders returns the names of all supported providers, sorted.
func GetSupportedProviders() []string {
	providers := make([]string, 0, len(providerRegistry))
	for providerType := range providerRegistry {
		providers = append(providers, string(providerType))
	}

	sort.Strings(providers)

	return providers
}

// GetProviderInfo returns metadata for a specific provider.
func GetProviderInfo(providerName string) (ProviderInfo, error) {
	info, exists := providerRegistry[ProviderType(providerName)]
	if !exists {
		return ProviderInfo{}, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported provider: %s", providerName)
	}

	return info, nil
}

// Factory creates a provider by name.
type Factory func(name string) (Provider, error)

// NewFactory returns a Factory building providers from cfg.
func NewFactory(cfg *config.Config, log *logger.Logger, saxoOpts ...SaxoOption) Factory {
	return func(name string) (Provider, error) {
		return NewMarketDataProvider(ProviderType(name), cfg, log, saxoOpts...)
	}
}

// NewMarketDataProvider creates a new market data provider based on the provider type.
func NewMarketDataProvider(providerType ProviderType, cfg *config.Config, log *logger.Logger, saxoOpts ...SaxoOption) (Provider, error) {
	var (
		p   Provider
		err error
	)

	switch providerType {
	case ProviderIBKR:
		p, err = NewIBKRClient(cfg.IBKR, log)
	case ProviderPolygon:
		p, err = NewPolygonClient(cfg.Polygon.APIKey, log)
	case ProviderBinance:
		p = NewBinanceClient(cfg.Binance.APIKey, cfg.Binance.SecretKey, log)
	case ProviderSaxo:
		p, err = NewSaxoClient(cfg.Saxo, log, saxoOpts...)
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported market data provider: %s", providerType)
	}

	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to create %s provider", providerType)
	}

	return p, nil
}
