package repository

import (
	"context"
	"fmt"
	"net/http"
	"nexatrade/config"
	"nexatrade/internal/apperr"
	"nexatrade/internal/dto"
	"nexatrade/pkg/cache"
	"nexatrade/pkg/httpclient"
	"nexatrade/pkg/logger"
	"nexatrade/pkg/ratelimit"

	"github.com/shopspring/decimal"
)

// PriceOracleRepository is the adapter for the external price oracle.
// Responses are cached for Oracle.CacheTTL; on upstream failure a stale
// cached price is served when one exists.
type PriceOracleRepository interface {
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

type priceOracleRepository struct {
	httpClient     httpclient.HTTPClient
	cfg            *config.Config
	log            *logger.Logger
	inmemoryCache  cache.Cache
	requestLimiter *ratelimit.TokenLimiter
}

func NewPriceOracleRepository(cfg *config.Config, log *logger.Logger, inmemoryCache cache.Cache) PriceOracleRepository {
	requestLimiter := ratelimit.NewTokenLimiter(cfg.Oracle.MaxRequestPerMin)

	return &priceOracleRepository{
		httpClient:     httpclient.New(cfg.Oracle.BaseURL, cfg.Oracle.Timeout, ""),
		cfg:            cfg,
		log:            log,
		inmemoryCache:  inmemoryCache,
		requestLimiter: requestLimiter,
	}
}

func oraclePriceCacheKey(symbol string) string {
	return "oracle_price_" + symbol
}

// The stale entry never expires; it backs the fallback path when the fresh
// entry has aged out and the oracle is down.
func oracleStaleCacheKey(symbol string) string {
	return "oracle_price_stale_" + symbol
}

func (r *priceOracleRepository) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if cached, found := r.inmemoryCache.Get(oraclePriceCacheKey(symbol)); found {
		if price, ok := cached.(decimal.Decimal); ok {
			return price, nil
		}
	}

	price, err := r.fetchPrice(ctx, symbol)
	if err != nil {
		if stale, found := r.inmemoryCache.Get(oracleStaleCacheKey(symbol)); found {
			if stalePrice, ok := stale.(decimal.Decimal); ok {
				r.log.WarnContext(ctx, "Oracle unavailable, serving stale price",
					logger.ErrorField(err),
					logger.StringField("symbol", symbol),
				)
				return stalePrice, nil
			}
		}
		return decimal.Zero, err
	}

	r.inmemoryCache.Set(oraclePriceCacheKey(symbol), price, r.cfg.Oracle.CacheTTL)
	r.inmemoryCache.Set(oracleStaleCacheKey(symbol), price, cache.NoExpiration)
	return price, nil
}

func (r *priceOracleRepository) fetchPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := r.requestLimiter.Wait(ctx, 1); err != nil {
		return decimal.Zero, fmt.Errorf("%w: oracle rate limit wait: %v", apperr.ErrExternalUnavailable, err)
	}

	var result dto.OraclePrice
	resp, err := r.httpClient.Get(ctx, "/v1/prices/"+symbol, nil, nil, &result)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: oracle request for %s: %v", apperr.ErrExternalUnavailable, symbol, err)
	}
	if resp.StatusCode != http.StatusOK {
		r.log.WarnContext(ctx, "Oracle returned non-200",
			logger.StringField("symbol", symbol),
			logger.IntField("status_code", resp.StatusCode),
		)
		return decimal.Zero, fmt.Errorf("%w: oracle status %d for %s", apperr.ErrExternalUnavailable, resp.StatusCode, symbol)
	}
	if result.Price.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("%w: oracle returned non-positive price for %s", apperr.ErrExternalUnavailable, symbol)
	}
	return result.Price, nil
}
