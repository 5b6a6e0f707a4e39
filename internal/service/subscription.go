package service

import (
	"context"
	"errors"
	"fmt"

	"nexatrade/config"
	"nexatrade/internal/apperr"
	"nexatrade/internal/dto"
	"nexatrade/internal/model"
	"nexatrade/internal/repository"
	"nexatrade/pkg/logger"
	"nexatrade/pkg/utils"

	"github.com/shopspring/decimal"
)

// SubscriptionService manages the package subscription lifecycle:
// active -> completed on expiry or profit target, active -> cancelled on
// explicit request. Settlement is credited exactly once.
type SubscriptionService interface {
	Subscribe(ctx context.Context, userID uint, req dto.SubscribeRequest) (*model.PackageSubscription, error)
	Finalize(ctx context.Context, subscriptionID uint) (*model.PackageSubscription, error)
	ToggleAutoTrading(ctx context.Context, userID uint, subscriptionID uint) (*model.PackageSubscription, error)
	GetPerformance(ctx context.Context, userID uint, subscriptionID uint) (*dto.SubscriptionPerformance, error)
	GetSubscriptions(ctx context.Context, param model.GetSubscriptionsParam) ([]model.PackageSubscription, error)
	GetPackages(ctx context.Context, param model.GetTradingPackagesParam) ([]model.TradingPackage, error)
	// FinalizeExpired settles every active subscription past its end date.
	FinalizeExpired(ctx context.Context) (int, error)
}

type subscriptionService struct {
	cfg       *config.Config
	log       *logger.Logger
	repo      *repository.Repository
	autoTrade AutoTradeService
}

func NewSubscriptionService(cfg *config.Config, log *logger.Logger, repo *repository.Repository, autoTrade AutoTradeService) SubscriptionService {
	return &subscriptionService{
		cfg:       cfg,
		log:       log,
		repo:      repo,
		autoTrade: autoTrade,
	}
}

func (s *subscriptionService) Subscribe(ctx context.Context, userID uint, req dto.SubscribeRequest) (*model.PackageSubscription, error) {
	pkg, err := s.repo.TradingPackageRepo.FindByID(ctx, req.PackageID)
	if err != nil {
		return nil, fmt.Errorf("failed to load package: %w", err)
	}
	if pkg == nil || !pkg.IsActive {
		return nil, fmt.Errorf("%w: package %d", apperr.ErrNotFound, req.PackageID)
	}

	if req.InvestmentAmount.LessThan(pkg.MinInvestment) || req.InvestmentAmount.GreaterThan(pkg.MaxInvestment) {
		return nil, fmt.Errorf("%w: investment must be between %s and %s",
			apperr.ErrValidation, pkg.MinInvestment, pkg.MaxInvestment)
	}

	now := utils.TimeNowUTC()
	sub := &model.PackageSubscription{
		UserID:              userID,
		PackageID:           pkg.ID,
		InvestmentAmount:    req.InvestmentAmount,
		ExpectedProfit:      pkg.ExpectedProfit(req.InvestmentAmount),
		Status:              model.SubscriptionStatusActive,
		StartDate:           now,
		EndDate:             now.AddDate(0, 0, pkg.DurationDays),
		TotalProfitEarned:   decimal.Zero,
		IsAutoTradingActive: true,
	}

	// Investment debit and subscription creation commit together.
	err = s.repo.UnitOfWork.Run(func(opts ...utils.DBOption) error {
		ok, err := s.repo.WalletRepo.DebitUSD(ctx, userID, req.InvestmentAmount, opts...)
		if err != nil {
			return fmt.Errorf("failed to debit investment: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: balance below investment amount %s",
				apperr.ErrInsufficientFunds, req.InvestmentAmount)
		}
		return s.repo.SubscriptionRepo.Create(ctx, sub, opts...)
	})
	if err != nil {
		return nil, err
	}

	sub.Package = *pkg

	s.log.InfoContext(ctx, "Subscription created",
		logger.IntField("subscription_id", int(sub.ID)),
		logger.IntField("user_id", int(userID)),
		logger.StringField("package", pkg.Name),
		logger.StringField("investment", req.InvestmentAmount.String()),
		logger.StringField("expected_profit", sub.ExpectedProfit.String()),
	)

	// Best-effort first position; a failure here never unwinds the
	// subscription, the hourly tick retries.
	if _, err := s.autoTrade.OpenPosition(ctx, sub); err != nil {
		s.log.WarnContext(ctx, "Initial auto-trade failed",
			logger.ErrorField(err),
			logger.IntField("subscription_id", int(sub.ID)),
		)
	}

	return sub, nil
}

func (s *subscriptionService) Finalize(ctx context.Context, subscriptionID uint) (*model.PackageSubscription, error) {
	sub, err := s.repo.SubscriptionRepo.FindByID(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	if sub == nil {
		return nil, fmt.Errorf("%w: subscription %d", apperr.ErrNotFound, subscriptionID)
	}
	if !sub.IsActiveStatus() {
		// Already settled. Idempotent no-op.
		return sub, nil
	}

	// Settle open linked trades first so their profit lands on the
	// subscription before the status flip.
	openTrades, err := s.repo.SubscriptionRepo.GetOpenAutoTrades(ctx, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load open auto-trades: %w", err)
	}
	for _, at := range openTrades {
		trade := at.Trade
		if err := s.autoTrade.CloseAutoTrade(ctx, &trade, sub); err != nil {
			if errors.Is(err, apperr.ErrStateConflict) {
				continue
			}
			return nil, fmt.Errorf("failed to close trade %d: %w", trade.ID, err)
		}
		if err := s.repo.TradeClosureRepo.DeleteByTradeID(ctx, trade.ID); err != nil {
			s.log.WarnContext(ctx, "Failed to remove closure schedule",
				logger.ErrorField(err),
				logger.IntField("trade_id", int(trade.ID)),
			)
		}
	}

	settlement := sub.InvestmentAmount.Add(sub.ExpectedProfit)
	err = s.repo.UnitOfWork.Run(func(opts ...utils.DBOption) error {
		ok, err := s.repo.SubscriptionRepo.TransitionToCompleted(ctx, sub.ID, opts...)
		if err != nil {
			return fmt.Errorf("failed to complete subscription: %w", err)
		}
		if !ok {
			// A concurrent finalize won; it already credited the settlement.
			return fmt.Errorf("%w: subscription already settled", apperr.ErrStateConflict)
		}
		return s.repo.WalletRepo.CreditUSD(ctx, sub.UserID, settlement, opts...)
	})
	if err != nil {
		if errors.Is(err, apperr.ErrStateConflict) {
			return s.repo.SubscriptionRepo.FindByID(ctx, subscriptionID)
		}
		return nil, err
	}

	sub.Status = model.SubscriptionStatusCompleted
	sub.IsAutoTradingActive = false

	s.log.InfoContext(ctx, "Subscription finalized",
		logger.IntField("subscription_id", int(sub.ID)),
		logger.StringField("settlement", settlement.String()),
	)
	return sub, nil
}

func (s *subscriptionService) ToggleAutoTrading(ctx context.Context, userID uint, subscriptionID uint) (*model.PackageSubscription, error) {
	sub, err := s.repo.SubscriptionRepo.FindByID(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	if sub == nil || (userID != 0 && sub.UserID != userID) {
		return nil, fmt.Errorf("%w: subscription %d", apperr.ErrNotFound, subscriptionID)
	}
	if !sub.IsActiveStatus() {
		return nil, fmt.Errorf("%w: auto-trading can only be toggled on active subscriptions", apperr.ErrStateConflict)
	}

	next := !sub.IsAutoTradingActive
	if err := s.repo.SubscriptionRepo.SetAutoTrading(ctx, sub.ID, next); err != nil {
		return nil, fmt.Errorf("failed to toggle auto-trading: %w", err)
	}
	sub.IsAutoTradingActive = next
	return sub, nil
}

func (s *subscriptionService) GetPerformance(ctx context.Context, userID uint, subscriptionID uint) (*dto.SubscriptionPerformance, error) {
	sub, err := s.repo.SubscriptionRepo.FindByID(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	if sub == nil || (userID != 0 && sub.UserID != userID) {
		return nil, fmt.Errorf("%w: subscription %d", apperr.ErrNotFound, subscriptionID)
	}

	autoTrades, err := s.repo.SubscriptionRepo.GetAutoTrades(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load auto-trades: %w", err)
	}

	// Open positions do not count toward the trade statistics; only settled
	// outcomes are scored.
	total := 0
	profitable := 0
	for _, at := range autoTrades {
		if at.Trade.Status != model.TradeStatusClosed {
			continue
		}
		total++
		if at.Trade.CurrentProfit.GreaterThan(decimal.Zero) {
			profitable++
		}
	}

	winRate := decimal.Zero
	if total > 0 {
		winRate = decimal.NewFromInt(int64(profitable)).
			Div(decimal.NewFromInt(int64(total))).
			Mul(decimal.NewFromInt(100))
	}

	daysRemaining := utils.DaysUntil(utils.TimeNowUTC(), sub.EndDate)
	if daysRemaining < 0 {
		daysRemaining = 0
	}

	return &dto.SubscriptionPerformance{
		TotalTrades:         total,
		ProfitableTrades:    profitable,
		WinRate:             winRate,
		TotalProfitEarned:   sub.TotalProfitEarned,
		ExpectedProfit:      sub.ExpectedProfit,
		ProfitProgress:      sub.ProfitProgressPercentage(),
		DaysRemaining:       daysRemaining,
		IsAutoTradingActive: sub.IsAutoTradingActive,
	}, nil
}

func (s *subscriptionService) GetSubscriptions(ctx context.Context, param model.GetSubscriptionsParam) ([]model.PackageSubscription, error) {
	return s.repo.SubscriptionRepo.Get(ctx, param)
}

func (s *subscriptionService) GetPackages(ctx context.Context, param model.GetTradingPackagesParam) ([]model.TradingPackage, error) {
	return s.repo.TradingPackageRepo.Get(ctx, param)
}

func (s *subscriptionService) FinalizeExpired(ctx context.Context) (int, error) {
	now := utils.TimeNowUTC()
	subs, err := s.repo.SubscriptionRepo.Get(ctx, model.GetSubscriptionsParam{
		Status:        utils.ToPointer(model.SubscriptionStatusActive),
		EndDateBefore: &now,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list expired subscriptions: %w", err)
	}

	finalized := 0
	for _, sub := range subs {
		if !utils.ShouldContinue(ctx, s.log) {
			break
		}
		if _, err := s.Finalize(ctx, sub.ID); err != nil {
			s.log.ErrorContext(ctx, "Failed to finalize subscription",
				logger.ErrorField(err),
				logger.IntField("subscription_id", int(sub.ID)),
			)
			continue
		}
		finalized++
	}
	return finalized, nil
}
