package service

import (
	"context"
	"testing"

	"nexatrade/internal/apperr"
	"nexatrade/internal/dto"
	"nexatrade/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestOpenTradeDebitsMargin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.seedUser(t, decimal.NewFromInt(1000))
	market := env.seedMarket(t, "Bitcoin", "BTC", decimal.NewFromInt(100))

	trade, err := env.trading.OpenTrade(ctx, user.ID, dto.OpenTradeRequest{
		MarketID:  market.ID,
		TradeType: "buy",
		Amount:    decimal.NewFromInt(2),
		Leverage:  2,
	})
	require.NoError(t, err)
	require.Equal(t, model.TradeStatusOpen, trade.Status)
	require.Equal(t, model.ProfitModeAuto, trade.ProfitCalculationMode)

	// margin = 2 * 100 / 2 = 100
	requireDecimalEqual(t, decimal.NewFromInt(100), trade.Margin())
	requireDecimalEqual(t, decimal.NewFromInt(900), env.usdBalance(t, user.ID))
}

func TestOpenTradeInsufficientMargin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.seedUser(t, decimal.NewFromInt(50))
	market := env.seedMarket(t, "Bitcoin", "BTC", decimal.NewFromInt(100))

	_, err := env.trading.OpenTrade(ctx, user.ID, dto.OpenTradeRequest{
		MarketID:  market.ID,
		TradeType: "buy",
		Amount:    decimal.NewFromInt(2),
		Leverage:  2,
	})
	require.ErrorIs(t, err, apperr.ErrInsufficientMargin)

	// Rejection leaves no trade behind and the balance untouched.
	var count int64
	require.NoError(t, env.db.Model(&model.Trade{}).Where("user_id = ?", user.ID).Count(&count).Error)
	require.Zero(t, count)
	requireDecimalEqual(t, decimal.NewFromInt(50), env.usdBalance(t, user.ID))
}

func TestOpenTradeValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.seedUser(t, decimal.NewFromInt(1000))
	market := env.seedMarket(t, "Bitcoin", "BTC", decimal.NewFromInt(100))

	tests := []struct {
		name string
		req  dto.OpenTradeRequest
	}{
		{
			name: "zero amount",
			req:  dto.OpenTradeRequest{MarketID: market.ID, TradeType: "buy", Amount: decimal.Zero},
		},
		{
			name: "below market minimum",
			req:  dto.OpenTradeRequest{MarketID: market.ID, TradeType: "buy", Amount: decimal.RequireFromString("0.00001")},
		},
		{
			name: "unknown market",
			req:  dto.OpenTradeRequest{MarketID: 9999, TradeType: "buy", Amount: decimal.NewFromInt(1)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.trading.OpenTrade(ctx, user.ID, tt.req)
			require.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
}

func TestCloseTradeCreditsMarginPlusProfit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.seedUser(t, decimal.NewFromInt(1000))
	market := env.seedMarket(t, "Bitcoin", "BTC", decimal.NewFromInt(100))

	trade, err := env.trading.OpenTrade(ctx, user.ID, dto.OpenTradeRequest{
		MarketID:  market.ID,
		TradeType: "buy",
		Amount:    decimal.NewFromInt(2),
		Leverage:  2,
	})
	require.NoError(t, err)

	// Market moves from 100 to 110.
	require.NoError(t, env.repo.MarketRepo.UpdatePrice(ctx, market.ID, decimal.NewFromInt(110)))

	sub := env.broker.Subscribe(4)
	defer sub.Close()

	closed, err := env.trading.CloseTrade(ctx, user.ID, trade.ID)
	require.NoError(t, err)
	require.Equal(t, model.TradeStatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)

	// profit = 2 * 100 * 2 * ((110-100)/100) = 40
	requireDecimalEqual(t, decimal.NewFromInt(40), closed.CurrentProfit)
	// 900 + margin 100 + profit 40
	requireDecimalEqual(t, decimal.NewFromInt(1040), env.usdBalance(t, user.ID))

	select {
	case ev := <-sub.C:
		require.Equal(t, trade.ID, ev.TradeID)
		require.True(t, ev.Closed)
		requireDecimalEqual(t, decimal.NewFromInt(40), ev.Profit)
	default:
		t.Fatal("expected a profit update event")
	}
}

func TestCloseTradeIsExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.seedUser(t, decimal.NewFromInt(1000))
	market := env.seedMarket(t, "Bitcoin", "BTC", decimal.NewFromInt(100))

	trade, err := env.trading.OpenTrade(ctx, user.ID, dto.OpenTradeRequest{
		MarketID:  market.ID,
		TradeType: "buy",
		Amount:    decimal.NewFromInt(1),
		Leverage:  1,
	})
	require.NoError(t, err)

	_, err = env.trading.CloseTrade(ctx, user.ID, trade.ID)
	require.NoError(t, err)
	balance := env.usdBalance(t, user.ID)

	_, err = env.trading.CloseTrade(ctx, user.ID, trade.ID)
	require.ErrorIs(t, err, apperr.ErrStateConflict)
	requireDecimalEqual(t, balance, env.usdBalance(t, user.ID))
}

func TestCloseTradeFloorsLossAtMargin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.seedUser(t, decimal.NewFromInt(1000))
	market := env.seedMarket(t, "Bitcoin", "BTC", decimal.NewFromInt(100))

	trade, err := env.trading.OpenTrade(ctx, user.ID, dto.OpenTradeRequest{
		MarketID:  market.ID,
		TradeType: "buy",
		Amount:    decimal.NewFromInt(2),
		Leverage:  2,
	})
	require.NoError(t, err)

	// A 50% drop would mean a 200 loss on a 100 margin; the loss is
	// capped at the escrowed margin.
	require.NoError(t, env.repo.MarketRepo.UpdatePrice(ctx, market.ID, decimal.NewFromInt(50)))

	closed, err := env.trading.CloseTrade(ctx, user.ID, trade.ID)
	require.NoError(t, err)
	requireDecimalEqual(t, decimal.NewFromInt(-100), closed.CurrentProfit)
	requireDecimalEqual(t, decimal.NewFromInt(900), env.usdBalance(t, user.ID))
}

func TestCloseShortTradeProfitsOnDrop(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.seedUser(t, decimal.NewFromInt(1000))
	market := env.seedMarket(t, "Bitcoin", "BTC", decimal.NewFromInt(100))

	trade, err := env.trading.OpenTrade(ctx, user.ID, dto.OpenTradeRequest{
		MarketID:  market.ID,
		TradeType: "sell",
		Amount:    decimal.NewFromInt(1),
		Leverage:  1,
	})
	require.NoError(t, err)

	require.NoError(t, env.repo.MarketRepo.UpdatePrice(ctx, market.ID, decimal.NewFromInt(90)))

	closed, err := env.trading.CloseTrade(ctx, user.ID, trade.ID)
	require.NoError(t, err)
	// profit = 1 * 100 * 1 * -((90-100)/100) = 10
	requireDecimalEqual(t, decimal.NewFromInt(10), closed.CurrentProfit)
}

func TestCancelTradeRefundsMargin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.seedUser(t, decimal.NewFromInt(500))
	market := env.seedMarket(t, "Bitcoin", "BTC", decimal.NewFromInt(100))

	trade, err := env.trading.OpenTrade(ctx, user.ID, dto.OpenTradeRequest{
		MarketID:  market.ID,
		TradeType: "buy",
		Amount:    decimal.NewFromInt(2),
		Leverage:  2,
	})
	require.NoError(t, err)
	requireDecimalEqual(t, decimal.NewFromInt(400), env.usdBalance(t, user.ID))

	cancelled, err := env.trading.CancelTrade(ctx, user.ID, trade.ID)
	require.NoError(t, err)
	require.Equal(t, model.TradeStatusCancelled, cancelled.Status)
	requireDecimalEqual(t, decimal.NewFromInt(500), env.usdBalance(t, user.ID))

	_, err = env.trading.CloseTrade(ctx, user.ID, trade.ID)
	require.ErrorIs(t, err, apperr.ErrStateConflict)
}

func TestCloseTradeOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	owner := env.seedUser(t, decimal.NewFromInt(1000))
	other := env.seedUser(t, decimal.NewFromInt(1000))
	market := env.seedMarket(t, "Bitcoin", "BTC", decimal.NewFromInt(100))

	trade, err := env.trading.OpenTrade(ctx, owner.ID, dto.OpenTradeRequest{
		MarketID:  market.ID,
		TradeType: "buy",
		Amount:    decimal.NewFromInt(1),
		Leverage:  1,
	})
	require.NoError(t, err)

	_, err = env.trading.CloseTrade(ctx, other.ID, trade.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAdjustManualProfit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.seedUser(t, decimal.NewFromInt(1000))
	market := env.seedMarket(t, "Bitcoin", "BTC", decimal.NewFromInt(100))

	trade, err := env.trading.OpenTrade(ctx, user.ID, dto.OpenTradeRequest{
		MarketID:  market.ID,
		TradeType: "buy",
		Amount:    decimal.NewFromInt(1),
		Leverage:  1,
	})
	require.NoError(t, err)

	adjusted, err := env.trading.AdjustManualProfit(ctx, trade.ID, decimal.NewFromInt(25))
	require.NoError(t, err)
	require.Equal(t, model.ProfitModeManual, adjusted.ProfitCalculationMode)
	requireDecimalEqual(t, decimal.NewFromInt(25), adjusted.CurrentProfit)

	// Manual profit wins over market movement at close time.
	require.NoError(t, env.repo.MarketRepo.UpdatePrice(ctx, market.ID, decimal.NewFromInt(50)))
	closed, err := env.trading.CloseTrade(ctx, user.ID, trade.ID)
	require.NoError(t, err)
	requireDecimalEqual(t, decimal.NewFromInt(25), closed.CurrentProfit)

	_, err = env.trading.AdjustManualProfit(ctx, trade.ID, decimal.NewFromInt(50))
	require.ErrorIs(t, err, apperr.ErrStateConflict)
}

func TestRefreshOpenProfits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.seedUser(t, decimal.NewFromInt(1000))
	market := env.seedMarket(t, "Bitcoin", "BTC", decimal.NewFromInt(100))

	trade, err := env.trading.OpenTrade(ctx, user.ID, dto.OpenTradeRequest{
		MarketID:  market.ID,
		TradeType: "buy",
		Amount:    decimal.NewFromInt(2),
		Leverage:  2,
	})
	require.NoError(t, err)

	require.NoError(t, env.repo.MarketRepo.UpdatePrice(ctx, market.ID, decimal.NewFromInt(105)))

	sub := env.broker.Subscribe(4)
	defer sub.Close()

	updated, err := env.trading.RefreshOpenProfits(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, updated)

	fresh, err := env.repo.TradeRepo.FindByID(ctx, trade.ID)
	require.NoError(t, err)
	// profit = 2 * 100 * 2 * 0.05 = 20
	requireDecimalEqual(t, decimal.NewFromInt(20), fresh.CurrentProfit)
	require.Equal(t, model.TradeStatusOpen, fresh.Status)

	select {
	case ev := <-sub.C:
		require.False(t, ev.Closed)
		requireDecimalEqual(t, decimal.NewFromInt(20), ev.Profit)
	default:
		t.Fatal("expected a profit update event")
	}
}
