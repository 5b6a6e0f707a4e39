package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"nexatrade/config"
	"nexatrade/internal/apperr"
	"nexatrade/internal/events"
	"nexatrade/internal/model"
	"nexatrade/internal/repository"
	"nexatrade/pkg/logger"
	"nexatrade/pkg/utils"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

var (
	maxSingleTradeLossPct = decimal.NewFromFloat(0.02)
	maxSingleTradeGainPct = decimal.NewFromFloat(0.10)
)

// AutoTradeService synthesizes positions for auto-trading subscriptions and
// assigns their closure profit so cumulative realized profit converges on the
// subscription's expected profit by its end date.
type AutoTradeService interface {
	ShouldOpenNewPosition(ctx context.Context, sub *model.PackageSubscription) (bool, error)
	OpenPosition(ctx context.Context, sub *model.PackageSubscription) (*model.AutoTrade, error)
	ComputeClosureProfit(trade *model.Trade, sub *model.PackageSubscription) decimal.Decimal
	CloseAutoTrade(ctx context.Context, trade *model.Trade, sub *model.PackageSubscription) error
	// ProcessActiveSubscriptions attempts one OpenPosition per eligible
	// subscription. Entity failures are logged, never propagated.
	ProcessActiveSubscriptions(ctx context.Context) (int, error)
	// SweepDueClosures closes trades whose closure deadline has elapsed and
	// removes the schedule record once the close succeeds.
	SweepDueClosures(ctx context.Context) (int, error)
}

type autoTradeService struct {
	cfg       *config.Config
	log       *logger.Logger
	repo      *repository.Repository
	publisher events.Publisher

	mu  sync.Mutex
	rng *rand.Rand
}

func NewAutoTradeService(cfg *config.Config, log *logger.Logger, repo *repository.Repository, publisher events.Publisher, rng *rand.Rand) AutoTradeService {
	if rng == nil {
		seed := cfg.Trading.RandomSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng = rand.New(rand.NewSource(seed))
	}
	return &autoTradeService{
		cfg:       cfg,
		log:       log,
		repo:      repo,
		publisher: publisher,
		rng:       rng,
	}
}

func (s *autoTradeService) ShouldOpenNewPosition(ctx context.Context, sub *model.PackageSubscription) (bool, error) {
	if !sub.IsActiveStatus() || !sub.IsAutoTradingActive {
		return false, nil
	}

	now := utils.TimeNowUTC()
	if sub.Expired(now) {
		return false, nil
	}
	if sub.ProfitTargetReached() {
		return false, nil
	}

	if sub.LastTradeTime != nil {
		hoursSince := now.Sub(*sub.LastTradeTime).Hours()
		if hoursSince < float64(sub.Package.TradeFrequencyHours) {
			return false, nil
		}
	}

	count, err := s.repo.SubscriptionRepo.CountAutoTradesSince(ctx, sub.ID, utils.StartOfDay(now))
	if err != nil {
		return false, fmt.Errorf("failed to count today's auto-trades: %w", err)
	}
	return count < int64(sub.Package.MaxTradesPerDay), nil
}

func (s *autoTradeService) OpenPosition(ctx context.Context, sub *model.PackageSubscription) (*model.AutoTrade, error) {
	ok, err := s.ShouldOpenNewPosition(ctx, sub)
	if err != nil || !ok {
		return nil, err
	}

	market, err := s.pickMarket(ctx, sub)
	if err != nil {
		return nil, err
	}
	if market == nil {
		s.log.WarnContext(ctx, "No active market available for subscription",
			logger.IntField("subscription_id", int(sub.ID)),
		)
		return nil, nil
	}
	if market.CurrentPrice.LessThanOrEqual(decimal.Zero) {
		// Stale market, the price sync has not run yet. Retry next tick.
		return nil, nil
	}

	amount := s.sizePosition(sub, market)
	tradeType := model.TradeTypeBuy
	if s.intn(2) == 1 {
		tradeType = model.TradeTypeSell
	}
	takeProfit, stopLoss := s.profitTargets(market.CurrentPrice, tradeType)

	now := utils.TimeNowUTC()
	trade := &model.Trade{
		UserID:    sub.UserID,
		MarketID:  market.ID,
		TradeType: tradeType,
		Amount:    amount,
		Price:     market.CurrentPrice,
		// Synthesized positions run unleveraged; the escrowed investment
		// already funds them, so opening takes no extra margin debit.
		Leverage:              1,
		TakeProfit:            &takeProfit,
		StopLoss:              &stopLoss,
		Status:                model.TradeStatusOpen,
		ProfitCalculationMode: model.ProfitModeManual,
		CurrentProfit:         decimal.Zero,
	}
	closeAt := now.Add(time.Duration(30+s.intn(331)) * time.Minute)

	autoTrade := &model.AutoTrade{SubscriptionID: sub.ID}
	err = s.repo.UnitOfWork.Run(func(opts ...utils.DBOption) error {
		// Re-validate the daily cap inside the transaction. A racing tick
		// may make us skip a window, but the cap is never exceeded.
		count, err := s.repo.SubscriptionRepo.CountAutoTradesSince(ctx, sub.ID, utils.StartOfDay(now), opts...)
		if err != nil {
			return fmt.Errorf("failed to recount today's auto-trades: %w", err)
		}
		if count >= int64(sub.Package.MaxTradesPerDay) {
			return fmt.Errorf("%w: daily trade limit reached", apperr.ErrStateConflict)
		}

		if err := s.repo.TradeRepo.Create(ctx, trade, opts...); err != nil {
			return fmt.Errorf("failed to create trade: %w", err)
		}
		autoTrade.TradeID = trade.ID
		if err := s.repo.SubscriptionRepo.CreateAutoTrade(ctx, autoTrade, opts...); err != nil {
			return fmt.Errorf("failed to link auto-trade: %w", err)
		}
		if err := s.repo.SubscriptionRepo.SetLastTradeTime(ctx, sub.ID, now, opts...); err != nil {
			return fmt.Errorf("failed to set last trade time: %w", err)
		}
		// Durable closure schedule; a missed sweep picks it up later.
		return s.repo.TradeClosureRepo.Create(ctx, &model.TradeClosure{
			TradeID:        trade.ID,
			SubscriptionID: sub.ID,
			CloseAt:        closeAt,
		}, opts...)
	})
	if err != nil {
		if errors.Is(err, apperr.ErrStateConflict) {
			return nil, nil
		}
		return nil, err
	}

	sub.LastTradeTime = &now
	autoTrade.Trade = *trade

	s.log.InfoContext(ctx, "Auto-trade opened",
		logger.IntField("subscription_id", int(sub.ID)),
		logger.IntField("trade_id", int(trade.ID)),
		logger.StringField("market", market.Name),
		logger.StringField("trade_type", string(tradeType)),
		logger.StringField("amount", amount.String()),
	)
	return autoTrade, nil
}

// pickMarket selects uniformly among the package's preferred markets, or all
// active markets when the package has no preference.
func (s *autoTradeService) pickMarket(ctx context.Context, sub *model.PackageSubscription) (*model.Market, error) {
	candidates := make([]model.Market, 0, len(sub.Package.PreferredMarkets))
	for _, m := range sub.Package.PreferredMarkets {
		if m.IsActive {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		all, err := s.repo.MarketRepo.Get(ctx, model.GetMarketsParam{IsActive: utils.ToPointer(true)})
		if err != nil {
			return nil, fmt.Errorf("failed to list markets: %w", err)
		}
		candidates = all
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	m := candidates[s.intn(len(candidates))]
	return &m, nil
}

// sizePosition converts a uniformly sampled fraction of the remaining
// investment into base-currency units, floored at the market minimum.
func (s *autoTradeService) sizePosition(sub *model.PackageSubscription, market *model.Market) decimal.Decimal {
	remaining := sub.RemainingInvestment()
	minFrac := sub.Package.MinTradeAmountPercentage.Div(decimal.NewFromInt(100))
	maxFrac := sub.Package.MaxTradeAmountPercentage.Div(decimal.NewFromInt(100))
	fraction := s.uniformDecimal(minFrac, maxFrac)

	usdAmount := remaining.Mul(fraction)
	amount := usdAmount.Div(market.CurrentPrice).Round(8)
	if amount.LessThan(market.MinTradeAmount) {
		amount = market.MinTradeAmount
	}
	return amount
}

// profitTargets shifts the entry price by a sampled favorable 2-8% and
// adverse 1-3%, oriented by direction. Informational only.
func (s *autoTradeService) profitTargets(price decimal.Decimal, tradeType model.TradeType) (decimal.Decimal, decimal.Decimal) {
	one := decimal.NewFromInt(1)
	favorable := s.uniformDecimal(decimal.NewFromFloat(0.02), decimal.NewFromFloat(0.08))
	adverse := s.uniformDecimal(decimal.NewFromFloat(0.01), decimal.NewFromFloat(0.03))

	if tradeType == model.TradeTypeBuy {
		return price.Mul(one.Add(favorable)).Round(8), price.Mul(one.Sub(adverse)).Round(8)
	}
	return price.Mul(one.Sub(favorable)).Round(8), price.Mul(one.Add(adverse)).Round(8)
}

func (s *autoTradeService) ComputeClosureProfit(trade *model.Trade, sub *model.PackageSubscription) decimal.Decimal {
	remainingNeeded := sub.ExpectedProfit.Sub(sub.TotalProfitEarned)
	now := utils.TimeNowUTC()
	daysRemaining := utils.DaysUntil(now, sub.EndDate)

	var profit decimal.Decimal
	if daysRemaining > 0 {
		base := remainingNeeded.Div(decimal.NewFromInt(int64(daysRemaining)))
		jitter := s.uniformDecimal(decimal.NewFromFloat(0.8), decimal.NewFromFloat(1.2))
		profit = base.Mul(jitter)
	} else {
		// Past the deadline the remaining target is assigned outright,
		// still subject to the per-trade clamp below.
		profit = remainingNeeded
	}

	notional := trade.Notional()
	minProfit := notional.Mul(maxSingleTradeLossPct).Neg()
	maxProfit := notional.Mul(maxSingleTradeGainPct)
	if profit.LessThan(minProfit) {
		profit = minProfit
	}
	if profit.GreaterThan(maxProfit) {
		profit = maxProfit
	}
	// Round to the ledger's numeric(24,8) scale so the assigned profit
	// survives a persistence round-trip unchanged.
	return profit.Round(8)
}

func (s *autoTradeService) CloseAutoTrade(ctx context.Context, trade *model.Trade, sub *model.PackageSubscription) error {
	if !trade.IsOpen() {
		return fmt.Errorf("%w: trade already settled", apperr.ErrStateConflict)
	}

	// An explicit manual override wins even at zero; otherwise a non-zero
	// running profit is settled as-is, and only an unassigned trade gets a
	// freshly computed closure profit.
	var profit decimal.Decimal
	switch {
	case trade.ManualProfit != nil:
		profit = *trade.ManualProfit
	case !trade.CurrentProfit.IsZero():
		profit = trade.CurrentProfit
	default:
		profit = s.ComputeClosureProfit(trade, sub)
	}
	profit = profit.Round(8)

	margin := trade.Margin()
	now := utils.TimeNowUTC()
	err := s.repo.UnitOfWork.Run(func(opts ...utils.DBOption) error {
		ok, err := s.repo.TradeRepo.TransitionToClosed(ctx, trade.ID, profit, now, opts...)
		if err != nil {
			return fmt.Errorf("failed to close trade: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: trade already closed", apperr.ErrStateConflict)
		}
		if err := s.repo.SubscriptionRepo.AddProfit(ctx, sub.ID, profit, opts...); err != nil {
			return fmt.Errorf("failed to record subscription profit: %w", err)
		}
		return s.repo.WalletRepo.CreditUSD(ctx, sub.UserID, margin.Add(profit), opts...)
	})
	if err != nil {
		return err
	}

	trade.Status = model.TradeStatusClosed
	trade.ManualProfit = &profit
	trade.CurrentProfit = profit
	trade.ClosedAt = &now
	sub.TotalProfitEarned = sub.TotalProfitEarned.Add(profit)

	if s.publisher != nil {
		s.publisher.PublishProfitUpdate(events.ProfitUpdate{
			TradeID:    trade.ID,
			UserID:     trade.UserID,
			MarketName: trade.Market.Name,
			Symbol:     trade.Market.BaseCurrency.Symbol,
			Profit:     profit,
			Closed:     true,
			At:         now,
		})
	}

	s.log.InfoContext(ctx, "Auto-trade closed",
		logger.IntField("trade_id", int(trade.ID)),
		logger.IntField("subscription_id", int(sub.ID)),
		logger.StringField("profit", profit.String()),
	)
	return nil
}

func (s *autoTradeService) ProcessActiveSubscriptions(ctx context.Context) (int, error) {
	now := utils.TimeNowUTC()
	subs, err := s.repo.SubscriptionRepo.Get(ctx, model.GetSubscriptionsParam{
		Status:              utils.ToPointer(model.SubscriptionStatusActive),
		IsAutoTradingActive: utils.ToPointer(true),
		EndDateAfter:        &now,
	}, utils.WithPreload("Package.PreferredMarkets"))
	if err != nil {
		return 0, fmt.Errorf("failed to list active subscriptions: %w", err)
	}

	var (
		mu     sync.Mutex
		opened int
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Scheduler.MaxConcurrency)
	for i := range subs {
		sub := subs[i]
		g.Go(func() error {
			autoTrade, err := s.OpenPosition(gCtx, &sub)
			if err != nil {
				// One subscription's failure never aborts the batch.
				s.log.ErrorContext(gCtx, "Failed to open auto-trade",
					logger.ErrorField(err),
					logger.IntField("subscription_id", int(sub.ID)),
				)
				return nil
			}
			if autoTrade != nil {
				mu.Lock()
				opened++
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return opened, err
	}
	return opened, nil
}

func (s *autoTradeService) SweepDueClosures(ctx context.Context) (int, error) {
	now := utils.TimeNowUTC()
	closures, err := s.repo.TradeClosureRepo.FindDue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to find due closures: %w", err)
	}

	closed := 0
	for _, closure := range closures {
		if !utils.ShouldContinue(ctx, s.log) {
			break
		}
		if err := s.closeScheduled(ctx, closure); err != nil {
			s.log.ErrorContext(ctx, "Failed to process scheduled closure",
				logger.ErrorField(err),
				logger.IntField("trade_id", int(closure.TradeID)),
			)
			continue
		}
		closed++
	}
	return closed, nil
}

func (s *autoTradeService) closeScheduled(ctx context.Context, closure model.TradeClosure) error {
	trade, err := s.repo.TradeRepo.FindByID(ctx, closure.TradeID)
	if err != nil {
		return fmt.Errorf("failed to load trade: %w", err)
	}
	sub, err := s.repo.SubscriptionRepo.FindByID(ctx, closure.SubscriptionID)
	if err != nil {
		return fmt.Errorf("failed to load subscription: %w", err)
	}
	if trade == nil || sub == nil || !trade.IsOpen() {
		// Already settled elsewhere; the schedule record is stale.
		return s.repo.TradeClosureRepo.Delete(ctx, closure.ID)
	}

	if err := s.CloseAutoTrade(ctx, trade, sub); err != nil {
		if errors.Is(err, apperr.ErrStateConflict) {
			return s.repo.TradeClosureRepo.Delete(ctx, closure.ID)
		}
		return err
	}
	// Delete only after a successful close so a crash retries the sweep.
	return s.repo.TradeClosureRepo.Delete(ctx, closure.ID)
}

func (s *autoTradeService) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// uniformDecimal samples uniformly in [min, max].
func (s *autoTradeService) uniformDecimal(min, max decimal.Decimal) decimal.Decimal {
	s.mu.Lock()
	f := s.rng.Float64()
	s.mu.Unlock()
	return min.Add(max.Sub(min).Mul(decimal.NewFromFloat(f)))
}
