package service

import (
	"context"
	"testing"
	"time"

	"nexatrade/internal/apperr"
	"nexatrade/internal/model"
	"nexatrade/pkg/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) seedSubscription(t *testing.T, userID, packageID uint, mutate func(*model.PackageSubscription)) *model.PackageSubscription {
	t.Helper()
	now := utils.TimeNowUTC()
	sub := &model.PackageSubscription{
		UserID:              userID,
		PackageID:           packageID,
		InvestmentAmount:    decimal.NewFromInt(1000),
		ExpectedProfit:      decimal.RequireFromString("85"),
		Status:              model.SubscriptionStatusActive,
		StartDate:           now,
		EndDate:             now.AddDate(0, 0, 30),
		TotalProfitEarned:   decimal.Zero,
		IsAutoTradingActive: true,
	}
	if mutate != nil {
		mutate(sub)
	}
	require.NoError(t, e.db.Create(sub).Error)
	loaded, err := e.repo.SubscriptionRepo.FindByID(context.Background(), sub.ID)
	require.NoError(t, err)
	return loaded
}

func TestSeededZeroValuesSurviveReload(t *testing.T) {
	env := newTestEnv(t)

	pkg := env.seedPackage(t, func(p *model.TradingPackage) {
		p.TradeFrequencyHours = 0
	})
	var freshPkg model.TradingPackage
	require.NoError(t, env.db.First(&freshPkg, pkg.ID).Error)
	require.Zero(t, freshPkg.TradeFrequencyHours)

	user := env.seedUser(t, decimal.Zero)
	sub := env.seedSubscription(t, user.ID, pkg.ID, func(s *model.PackageSubscription) {
		s.IsAutoTradingActive = false
	})
	require.False(t, sub.IsAutoTradingActive)
}

func TestShouldOpenNewPosition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	now := utils.TimeNowUTC()

	user := env.seedUser(t, decimal.NewFromInt(0))
	pkg := env.seedPackage(t, nil)

	tests := []struct {
		name   string
		mutate func(*model.PackageSubscription)
		want   bool
	}{
		{
			name: "eligible",
			want: true,
		},
		{
			name:   "completed status",
			mutate: func(s *model.PackageSubscription) { s.Status = model.SubscriptionStatusCompleted },
			want:   false,
		},
		{
			name:   "auto trading disabled",
			mutate: func(s *model.PackageSubscription) { s.IsAutoTradingActive = false },
			want:   false,
		},
		{
			name:   "expired",
			mutate: func(s *model.PackageSubscription) { s.EndDate = now.Add(-time.Hour) },
			want:   false,
		},
		{
			name:   "profit target reached",
			mutate: func(s *model.PackageSubscription) { s.TotalProfitEarned = decimal.RequireFromString("85") },
			want:   false,
		},
		{
			name: "frequency window not elapsed",
			mutate: func(s *model.PackageSubscription) {
				last := now.Add(-time.Hour)
				s.LastTradeTime = &last
			},
			want: false,
		},
		{
			name: "frequency window elapsed",
			mutate: func(s *model.PackageSubscription) {
				last := now.Add(-5 * time.Hour)
				s.LastTradeTime = &last
			},
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := env.seedSubscription(t, user.ID, pkg.ID, tt.mutate)
			got, err := env.autoTrade.ShouldOpenNewPosition(ctx, sub)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestDailyTradeCapIsNeverExceeded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.seedUser(t, decimal.NewFromInt(0))
	env.seedMarket(t, "Bitcoin", "BTC", decimal.NewFromInt(100))
	pkg := env.seedPackage(t, func(p *model.TradingPackage) {
		p.MaxTradesPerDay = 3
		p.TradeFrequencyHours = 0
	})
	sub := env.seedSubscription(t, user.ID, pkg.ID, nil)

	for i := 0; i < 3; i++ {
		autoTrade, err := env.autoTrade.OpenPosition(ctx, sub)
		require.NoError(t, err)
		require.NotNil(t, autoTrade, "open %d should succeed", i+1)
	}

	// The 4th attempt yields nothing regardless of elapsed frequency hours.
	autoTrade, err := env.autoTrade.OpenPosition(ctx, sub)
	require.NoError(t, err)
	require.Nil(t, autoTrade)

	var count int64
	require.NoError(t, env.db.Model(&model.AutoTrade{}).Where("subscription_id = ?", sub.ID).Count(&count).Error)
	require.EqualValues(t, 3, count)
}

func TestOpenPositionShape(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.seedUser(t, decimal.NewFromInt(0))
	market := env.seedMarket(t, "Bitcoin", "BTC", decimal.NewFromInt(100))
	pkg := env.seedPackage(t, nil)
	sub := env.seedSubscription(t, user.ID, pkg.ID, nil)

	autoTrade, err := env.autoTrade.OpenPosition(ctx, sub)
	require.NoError(t, err)
	require.NotNil(t, autoTrade)

	trade := autoTrade.Trade
	require.Equal(t, model.TradeStatusOpen, trade.Status)
	require.Equal(t, model.ProfitModeManual, trade.ProfitCalculationMode)
	require.Equal(t, 1, trade.Leverage)
	require.Equal(t, user.ID, trade.UserID)
	require.Equal(t, market.ID, trade.MarketID)
	require.NotNil(t, trade.TakeProfit)
	require.NotNil(t, trade.StopLoss)

	// Sized between 10% and 30% of the remaining investment.
	usdValue := trade.Amount.Mul(trade.Price)
	require.True(t, usdValue.GreaterThanOrEqual(decimal.NewFromInt(100)), "usd value %s", usdValue)
	require.True(t, usdValue.LessThanOrEqual(decimal.NewFromInt(300)), "usd value %s", usdValue)

	// Opening a synthesized position never touches the cash ledger.
	requireDecimalEqual(t, decimal.Zero, env.usdBalance(t, user.ID))

	// Closure scheduled 30 to 360 minutes out, durable.
	var closure model.TradeClosure
	require.NoError(t, env.db.Where("trade_id = ?", trade.ID).First(&closure).Error)
	delta := closure.CloseAt.Sub(closure.CreatedAt)
	require.GreaterOrEqual(t, delta, 29*time.Minute)
	require.LessOrEqual(t, delta, 361*time.Minute)

	// Last trade time recorded so the frequency window applies.
	fresh, err := env.repo.SubscriptionRepo.FindByID(ctx, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, fresh.LastTradeTime)
}

func TestComputeClosureProfit(t *testing.T) {
	env := newTestEnv(t)
	svc := env.autoTrade.(*autoTradeService)
	now := utils.TimeNowUTC()

	trade := &model.Trade{
		Amount: decimal.NewFromInt(2),
		Price:  decimal.NewFromInt(100),
	}
	notional := trade.Notional() // 200

	t.Run("past deadline targets remaining needed", func(t *testing.T) {
		sub := &model.PackageSubscription{
			ExpectedProfit:    decimal.RequireFromString("85"),
			TotalProfitEarned: decimal.RequireFromString("80"),
			EndDate:           now.Add(-time.Hour),
		}
		profit := svc.ComputeClosureProfit(trade, sub)
		requireDecimalEqual(t, decimal.NewFromInt(5), profit)
	})

	t.Run("gain clamped to ten percent of notional", func(t *testing.T) {
		sub := &model.PackageSubscription{
			ExpectedProfit:    decimal.NewFromInt(100000),
			TotalProfitEarned: decimal.Zero,
			EndDate:           now.Add(-time.Hour),
		}
		profit := svc.ComputeClosureProfit(trade, sub)
		requireDecimalEqual(t, notional.Mul(decimal.RequireFromString("0.1")), profit)
	})

	t.Run("loss clamped to two percent of notional", func(t *testing.T) {
		sub := &model.PackageSubscription{
			ExpectedProfit:    decimal.NewFromInt(10),
			TotalProfitEarned: decimal.NewFromInt(100000),
			EndDate:           now.Add(-time.Hour),
		}
		profit := svc.ComputeClosureProfit(trade, sub)
		requireDecimalEqual(t, notional.Mul(decimal.RequireFromString("0.02")).Neg(), profit)
	})

	t.Run("ahead of schedule stays within clamp", func(t *testing.T) {
		sub := &model.PackageSubscription{
			ExpectedProfit:    decimal.RequireFromString("85"),
			TotalProfitEarned: decimal.Zero,
			EndDate:           now.AddDate(0, 0, 30),
		}
		for i := 0; i < 50; i++ {
			profit := svc.ComputeClosureProfit(trade, sub)
			require.True(t, profit.GreaterThanOrEqual(notional.Mul(decimal.RequireFromString("0.02")).Neg()))
			require.True(t, profit.LessThanOrEqual(notional.Mul(decimal.RequireFromString("0.1"))))
		}
	})
}

func TestCloseAutoTradeSettlesLedgerAndSubscription(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.seedUser(t, decimal.NewFromInt(0))
	env.seedMarket(t, "Bitcoin", "BTC", decimal.NewFromInt(100))
	pkg := env.seedPackage(t, nil)
	sub := env.seedSubscription(t, user.ID, pkg.ID, nil)

	autoTrade, err := env.autoTrade.OpenPosition(ctx, sub)
	require.NoError(t, err)
	require.NotNil(t, autoTrade)

	trade, err := env.repo.TradeRepo.FindByID(ctx, autoTrade.TradeID)
	require.NoError(t, err)

	require.NoError(t, env.autoTrade.CloseAutoTrade(ctx, trade, sub))
	require.Equal(t, model.TradeStatusClosed, trade.Status)

	profit := trade.CurrentProfit
	margin := trade.Margin()

	// Wallet receives margin plus assigned profit.
	requireDecimalEqual(t, margin.Add(profit), env.usdBalance(t, user.ID))

	// Subscription accrues the assigned profit.
	fresh, err := env.repo.SubscriptionRepo.FindByID(ctx, sub.ID)
	require.NoError(t, err)
	requireDecimalEqual(t, profit, fresh.TotalProfitEarned)

	// Profit bound holds for synthesized trades.
	notional := trade.Notional()
	require.True(t, profit.GreaterThanOrEqual(notional.Mul(decimal.RequireFromString("0.02")).Neg()))
	require.True(t, profit.LessThanOrEqual(notional.Mul(decimal.RequireFromString("0.1"))))

	// Second close is rejected without a second credit.
	balance := env.usdBalance(t, user.ID)
	reloaded, err := env.repo.TradeRepo.FindByID(ctx, trade.ID)
	require.NoError(t, err)
	err = env.autoTrade.CloseAutoTrade(ctx, reloaded, sub)
	require.ErrorIs(t, err, apperr.ErrStateConflict)
	requireDecimalEqual(t, balance, env.usdBalance(t, user.ID))
}

func TestCloseAutoTradeHonorsManualZeroProfit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.seedUser(t, decimal.NewFromInt(0))
	env.seedMarket(t, "Bitcoin", "BTC", decimal.NewFromInt(100))
	pkg := env.seedPackage(t, nil)
	sub := env.seedSubscription(t, user.ID, pkg.ID, nil)

	autoTrade, err := env.autoTrade.OpenPosition(ctx, sub)
	require.NoError(t, err)
	require.NotNil(t, autoTrade)

	// An admin override to exactly zero is a deliberate outcome, not an
	// unassigned profit; closing must not recompute it.
	_, err = env.trading.AdjustManualProfit(ctx, autoTrade.TradeID, decimal.Zero)
	require.NoError(t, err)

	trade, err := env.repo.TradeRepo.FindByID(ctx, autoTrade.TradeID)
	require.NoError(t, err)
	require.NoError(t, env.autoTrade.CloseAutoTrade(ctx, trade, sub))

	requireDecimalEqual(t, decimal.Zero, trade.CurrentProfit)
	requireDecimalEqual(t, trade.Margin(), env.usdBalance(t, user.ID))

	fresh, err := env.repo.SubscriptionRepo.FindByID(ctx, sub.ID)
	require.NoError(t, err)
	requireDecimalEqual(t, decimal.Zero, fresh.TotalProfitEarned)
}

func TestSweepDueClosures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user := env.seedUser(t, decimal.NewFromInt(0))
	env.seedMarket(t, "Bitcoin", "BTC", decimal.NewFromInt(100))
	pkg := env.seedPackage(t, func(p *model.TradingPackage) { p.TradeFrequencyHours = 0 })
	sub := env.seedSubscription(t, user.ID, pkg.ID, nil)

	dueTrade, err := env.autoTrade.OpenPosition(ctx, sub)
	require.NoError(t, err)
	require.NotNil(t, dueTrade)
	futureTrade, err := env.autoTrade.OpenPosition(ctx, sub)
	require.NoError(t, err)
	require.NotNil(t, futureTrade)

	// Backdate the first closure so the sweep picks it up.
	require.NoError(t, env.db.Model(&model.TradeClosure{}).
		Where("trade_id = ?", dueTrade.TradeID).
		Update("close_at", utils.TimeNowUTC().Add(-time.Minute)).Error)

	closed, err := env.autoTrade.SweepDueClosures(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, closed)

	fresh, err := env.repo.TradeRepo.FindByID(ctx, dueTrade.TradeID)
	require.NoError(t, err)
	require.Equal(t, model.TradeStatusClosed, fresh.Status)

	// The settled schedule row is gone, the future one remains.
	var count int64
	require.NoError(t, env.db.Model(&model.TradeClosure{}).Where("trade_id = ?", dueTrade.TradeID).Count(&count).Error)
	require.Zero(t, count)
	require.NoError(t, env.db.Model(&model.TradeClosure{}).Where("trade_id = ?", futureTrade.TradeID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestProcessActiveSubscriptions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedMarket(t, "Bitcoin", "BTC", decimal.NewFromInt(100))
	pkg := env.seedPackage(t, nil)

	userA := env.seedUser(t, decimal.NewFromInt(0))
	userB := env.seedUser(t, decimal.NewFromInt(0))
	env.seedSubscription(t, userA.ID, pkg.ID, nil)
	env.seedSubscription(t, userB.ID, pkg.ID, func(s *model.PackageSubscription) {
		s.IsAutoTradingActive = false
	})

	opened, err := env.autoTrade.ProcessActiveSubscriptions(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, opened)
}
