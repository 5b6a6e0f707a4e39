package service

import (
	"context"
	"testing"
	"time"

	"nexatrade/internal/apperr"
	"nexatrade/internal/dto"
	"nexatrade/internal/model"
	"nexatrade/pkg/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestSubscribe(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.seedUser(t, decimal.NewFromInt(2000))
	env.seedMarket(t, "Bitcoin", "BTC", decimal.NewFromInt(100))
	pkg := env.seedPackage(t, nil)

	before := utils.TimeNowUTC()
	sub, err := env.subscription.Subscribe(ctx, user.ID, dto.SubscribeRequest{
		PackageID:        pkg.ID,
		InvestmentAmount: decimal.NewFromInt(1000),
	})
	require.NoError(t, err)

	// 1000 * 8.5% = 85.00
	requireDecimalEqual(t, decimal.RequireFromString("85"), sub.ExpectedProfit)
	require.Equal(t, model.SubscriptionStatusActive, sub.Status)
	require.True(t, sub.IsAutoTradingActive)
	require.WithinDuration(t, before.AddDate(0, 0, 30), sub.EndDate, time.Minute)

	// Investment escrowed from the cash ledger.
	requireDecimalEqual(t, decimal.NewFromInt(1000), env.usdBalance(t, user.ID))

	// The first synthesized position opens immediately.
	var count int64
	require.NoError(t, env.db.Model(&model.AutoTrade{}).Where("subscription_id = ?", sub.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestSubscribeRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.seedUser(t, decimal.NewFromInt(200))
	pkg := env.seedPackage(t, nil)

	tests := []struct {
		name    string
		req     dto.SubscribeRequest
		wantErr error
	}{
		{
			name:    "below minimum investment",
			req:     dto.SubscribeRequest{PackageID: pkg.ID, InvestmentAmount: decimal.NewFromInt(50)},
			wantErr: apperr.ErrValidation,
		},
		{
			name:    "above maximum investment",
			req:     dto.SubscribeRequest{PackageID: pkg.ID, InvestmentAmount: decimal.NewFromInt(6000)},
			wantErr: apperr.ErrValidation,
		},
		{
			name:    "insufficient funds",
			req:     dto.SubscribeRequest{PackageID: pkg.ID, InvestmentAmount: decimal.NewFromInt(500)},
			wantErr: apperr.ErrInsufficientFunds,
		},
		{
			name:    "unknown package",
			req:     dto.SubscribeRequest{PackageID: 9999, InvestmentAmount: decimal.NewFromInt(500)},
			wantErr: apperr.ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.subscription.Subscribe(ctx, user.ID, tt.req)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	// No side effects from any rejection.
	requireDecimalEqual(t, decimal.NewFromInt(200), env.usdBalance(t, user.ID))
	var count int64
	require.NoError(t, env.db.Model(&model.PackageSubscription{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestFinalizeSettlesExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.seedUser(t, decimal.NewFromInt(0))
	pkg := env.seedPackage(t, nil)
	sub := env.seedSubscription(t, user.ID, pkg.ID, func(s *model.PackageSubscription) {
		s.EndDate = utils.TimeNowUTC().Add(-time.Hour)
	})

	finalized, err := env.subscription.Finalize(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, model.SubscriptionStatusCompleted, finalized.Status)
	require.False(t, finalized.IsAutoTradingActive)

	// investment 1000 + expected profit 85
	requireDecimalEqual(t, decimal.RequireFromString("1085"), env.usdBalance(t, user.ID))

	// Second finalize is a no-op: no second credit.
	again, err := env.subscription.Finalize(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, model.SubscriptionStatusCompleted, again.Status)
	requireDecimalEqual(t, decimal.RequireFromString("1085"), env.usdBalance(t, user.ID))
}

func TestFinalizeClosesOpenTradesFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.seedUser(t, decimal.NewFromInt(0))
	env.seedMarket(t, "Bitcoin", "BTC", decimal.NewFromInt(100))
	pkg := env.seedPackage(t, nil)
	sub := env.seedSubscription(t, user.ID, pkg.ID, nil)

	autoTrade, err := env.autoTrade.OpenPosition(ctx, sub)
	require.NoError(t, err)
	require.NotNil(t, autoTrade)

	finalized, err := env.subscription.Finalize(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, model.SubscriptionStatusCompleted, finalized.Status)

	// The linked trade was closed with a scheduler-assigned profit and its
	// closure schedule removed.
	trade, err := env.repo.TradeRepo.FindByID(ctx, autoTrade.TradeID)
	require.NoError(t, err)
	require.Equal(t, model.TradeStatusClosed, trade.Status)

	var count int64
	require.NoError(t, env.db.Model(&model.TradeClosure{}).Where("trade_id = ?", trade.ID).Count(&count).Error)
	require.Zero(t, count)

	// Ledger holds trade settlement plus subscription settlement.
	expected := trade.Margin().Add(trade.CurrentProfit).
		Add(sub.InvestmentAmount).Add(sub.ExpectedProfit)
	requireDecimalEqual(t, expected, env.usdBalance(t, user.ID))
}

func TestToggleAutoTrading(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.seedUser(t, decimal.NewFromInt(0))
	pkg := env.seedPackage(t, nil)
	sub := env.seedSubscription(t, user.ID, pkg.ID, nil)

	toggled, err := env.subscription.ToggleAutoTrading(ctx, user.ID, sub.ID)
	require.NoError(t, err)
	require.False(t, toggled.IsAutoTradingActive)

	toggled, err = env.subscription.ToggleAutoTrading(ctx, user.ID, sub.ID)
	require.NoError(t, err)
	require.True(t, toggled.IsAutoTradingActive)

	// Only active subscriptions can toggle.
	_, err = env.subscription.Finalize(ctx, sub.ID)
	require.NoError(t, err)
	_, err = env.subscription.ToggleAutoTrading(ctx, user.ID, sub.ID)
	require.ErrorIs(t, err, apperr.ErrStateConflict)
}

func TestGetPerformance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.seedUser(t, decimal.NewFromInt(0))
	env.seedMarket(t, "Bitcoin", "BTC", decimal.NewFromInt(100))
	pkg := env.seedPackage(t, func(p *model.TradingPackage) { p.TradeFrequencyHours = 0 })
	sub := env.seedSubscription(t, user.ID, pkg.ID, nil)

	first, err := env.autoTrade.OpenPosition(ctx, sub)
	require.NoError(t, err)
	_, err = env.autoTrade.OpenPosition(ctx, sub)
	require.NoError(t, err)

	trade, err := env.repo.TradeRepo.FindByID(ctx, first.TradeID)
	require.NoError(t, err)
	require.NoError(t, env.autoTrade.CloseAutoTrade(ctx, trade, sub))

	perf, err := env.subscription.GetPerformance(ctx, user.ID, sub.ID)
	require.NoError(t, err)

	// Only settled trades are scored; the still-open second position is
	// excluded from the counts.
	require.Equal(t, 1, perf.TotalTrades)
	require.True(t, perf.DaysRemaining >= 29 && perf.DaysRemaining <= 30)

	if trade.CurrentProfit.GreaterThan(decimal.Zero) {
		require.Equal(t, 1, perf.ProfitableTrades)
		requireDecimalEqual(t, decimal.NewFromInt(100), perf.WinRate)
	} else {
		require.Equal(t, 0, perf.ProfitableTrades)
		requireDecimalEqual(t, decimal.Zero, perf.WinRate)
	}
	requireDecimalEqual(t, trade.CurrentProfit, perf.TotalProfitEarned)
}

func TestFinalizeExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	userA := env.seedUser(t, decimal.NewFromInt(0))
	userB := env.seedUser(t, decimal.NewFromInt(0))
	pkg := env.seedPackage(t, nil)

	env.seedSubscription(t, userA.ID, pkg.ID, func(s *model.PackageSubscription) {
		s.EndDate = utils.TimeNowUTC().Add(-time.Hour)
	})
	env.seedSubscription(t, userB.ID, pkg.ID, nil)

	finalized, err := env.subscription.FinalizeExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, finalized)

	requireDecimalEqual(t, decimal.RequireFromString("1085"), env.usdBalance(t, userA.ID))
	requireDecimalEqual(t, decimal.Zero, env.usdBalance(t, userB.ID))
}
