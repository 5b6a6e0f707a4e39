package repository

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"nexatrade/config"
	"nexatrade/internal/apperr"
	"nexatrade/internal/dto"
	"nexatrade/pkg/cache"
	"nexatrade/pkg/httpclient"
	"nexatrade/pkg/logger"
	"nexatrade/pkg/ratelimit"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type stubOracleClient struct {
	price decimal.Decimal
	fail  bool
	calls int
}

func (s *stubOracleClient) Get(ctx context.Context, endpoint string, queryParams map[string]string, headers map[string]string, result interface{}) (*httpclient.BaseResponse, error) {
	s.calls++
	if s.fail {
		return nil, fmt.Errorf("connection refused")
	}
	if out, ok := result.(*dto.OraclePrice); ok {
		out.Price = s.price
	}
	return &httpclient.BaseResponse{StatusCode: http.StatusOK}, nil
}

func (s *stubOracleClient) Post(ctx context.Context, endpoint string, body interface{}, headers map[string]string, result interface{}) (*httpclient.BaseResponse, error) {
	return nil, fmt.Errorf("not implemented")
}

func newOracleRepo(t *testing.T, client httpclient.HTTPClient, ttl time.Duration) (*priceOracleRepository, cache.Cache) {
	t.Helper()

	log, err := logger.New("error", "console")
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Oracle.CacheTTL = ttl
	cfg.Oracle.MaxRequestPerMin = 60

	c := cache.NewCache(time.Minute, time.Minute)
	return &priceOracleRepository{
		httpClient:     client,
		cfg:            cfg,
		log:            log,
		inmemoryCache:  c,
		requestLimiter: ratelimit.NewTokenLimiter(cfg.Oracle.MaxRequestPerMin),
	}, c
}

func TestGetPriceCachesResponses(t *testing.T) {
	stub := &stubOracleClient{price: decimal.NewFromInt(100)}
	repo, _ := newOracleRepo(t, stub, time.Minute)

	ctx := context.Background()
	price, err := repo.GetPrice(ctx, "BTC")
	require.NoError(t, err)
	require.True(t, price.Equal(decimal.NewFromInt(100)))

	// Second read is served from cache without touching the client.
	price, err = repo.GetPrice(ctx, "BTC")
	require.NoError(t, err)
	require.True(t, price.Equal(decimal.NewFromInt(100)))
	require.Equal(t, 1, stub.calls)
}

func TestGetPriceServesStaleOnFailure(t *testing.T) {
	stub := &stubOracleClient{price: decimal.NewFromInt(250)}
	repo, c := newOracleRepo(t, stub, time.Minute)

	ctx := context.Background()
	_, err := repo.GetPrice(ctx, "ETH")
	require.NoError(t, err)

	// Fresh entry expired, oracle down: the pinned stale price backs the read.
	c.Delete(oraclePriceCacheKey("ETH"))
	stub.fail = true

	price, err := repo.GetPrice(ctx, "ETH")
	require.NoError(t, err)
	require.True(t, price.Equal(decimal.NewFromInt(250)))
}

func TestGetPriceFailsWithoutStaleEntry(t *testing.T) {
	stub := &stubOracleClient{fail: true}
	repo, _ := newOracleRepo(t, stub, time.Minute)

	_, err := repo.GetPrice(context.Background(), "SOL")
	require.ErrorIs(t, err, apperr.ErrExternalUnavailable)
}
