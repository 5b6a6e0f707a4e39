package service

import (
	"context"
	"fmt"
	"nexatrade/config"
	"nexatrade/internal/apperr"
	"nexatrade/internal/dto"
	"nexatrade/internal/events"
	"nexatrade/internal/model"
	"nexatrade/internal/repository"
	"nexatrade/pkg/logger"
	"nexatrade/pkg/utils"

	"github.com/shopspring/decimal"
)

// TradingService is the position engine: it opens and closes leveraged
// trades and keeps the margin accounting on the cash ledger consistent with
// every status transition.
type TradingService interface {
	OpenTrade(ctx context.Context, userID uint, req dto.OpenTradeRequest) (*model.Trade, error)
	CloseTrade(ctx context.Context, userID uint, tradeID uint) (*model.Trade, error)
	CancelTrade(ctx context.Context, userID uint, tradeID uint) (*model.Trade, error)
	AdjustManualProfit(ctx context.Context, tradeID uint, profit decimal.Decimal) (*model.Trade, error)
	GetTrades(ctx context.Context, param model.GetTradesParam) ([]model.Trade, error)
	GetMarkets(ctx context.Context, param model.GetMarketsParam) ([]model.Market, error)
	// RefreshOpenProfits recomputes current profit for every open auto-mode
	// trade from its market price and emits a profit update per trade.
	RefreshOpenProfits(ctx context.Context) (int, error)
}

type tradingService struct {
	cfg       *config.Config
	log       *logger.Logger
	repo      *repository.Repository
	publisher events.Publisher
}

func NewTradingService(cfg *config.Config, log *logger.Logger, repo *repository.Repository, publisher events.Publisher) TradingService {
	return &tradingService{
		cfg:       cfg,
		log:       log,
		repo:      repo,
		publisher: publisher,
	}
}

func (s *tradingService) OpenTrade(ctx context.Context, userID uint, req dto.OpenTradeRequest) (*model.Trade, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: amount must be positive", apperr.ErrValidation)
	}
	leverage := req.Leverage
	if leverage == 0 {
		leverage = 1
	}
	if leverage < 1 {
		return nil, fmt.Errorf("%w: leverage must be at least 1", apperr.ErrValidation)
	}

	market, err := s.repo.MarketRepo.FindByID(ctx, req.MarketID)
	if err != nil {
		return nil, fmt.Errorf("failed to load market: %w", err)
	}
	if market == nil || !market.IsActive {
		return nil, fmt.Errorf("%w: invalid market", apperr.ErrValidation)
	}
	if req.Amount.LessThan(market.MinTradeAmount) {
		return nil, fmt.Errorf("%w: amount below market minimum %s", apperr.ErrValidation, market.MinTradeAmount)
	}

	trade := &model.Trade{
		UserID:                userID,
		MarketID:              market.ID,
		TradeType:             model.TradeType(req.TradeType),
		Amount:                req.Amount,
		Price:                 market.CurrentPrice,
		Leverage:              leverage,
		TakeProfit:            req.TakeProfit,
		StopLoss:              req.StopLoss,
		Status:                model.TradeStatusOpen,
		ProfitCalculationMode: model.ProfitModeAuto,
		CurrentProfit:         decimal.Zero,
	}
	margin := trade.Margin()

	// Margin debit and trade creation commit or roll back together.
	err = s.repo.UnitOfWork.Run(func(opts ...utils.DBOption) error {
		if err := s.ensureUSDWallet(ctx, userID, opts...); err != nil {
			return err
		}
		ok, err := s.repo.WalletRepo.DebitUSD(ctx, userID, margin, opts...)
		if err != nil {
			return fmt.Errorf("failed to debit margin: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: balance below required margin %s", apperr.ErrInsufficientMargin, margin)
		}
		return s.repo.TradeRepo.Create(ctx, trade, opts...)
	})
	if err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "Trade opened",
		logger.IntField("trade_id", int(trade.ID)),
		logger.IntField("user_id", int(userID)),
		logger.StringField("market", market.Name),
		logger.StringField("trade_type", string(trade.TradeType)),
		logger.StringField("margin", margin.String()),
	)
	trade.Market = *market
	return trade, nil
}

func (s *tradingService) CloseTrade(ctx context.Context, userID uint, tradeID uint) (*model.Trade, error) {
	trade, err := s.repo.TradeRepo.FindByID(ctx, tradeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trade: %w", err)
	}
	if trade == nil || (userID != 0 && trade.UserID != userID) {
		return nil, fmt.Errorf("%w: trade %d", apperr.ErrNotFound, tradeID)
	}
	if !trade.IsOpen() {
		return nil, fmt.Errorf("%w: only open trades can be closed", apperr.ErrStateConflict)
	}

	profit := s.closingProfit(trade)
	margin := trade.Margin()

	// A losing trade never takes more than the escrowed margin.
	if profit.LessThan(margin.Neg()) {
		profit = margin.Neg()
	}

	now := utils.TimeNowUTC()
	err = s.repo.UnitOfWork.Run(func(opts ...utils.DBOption) error {
		ok, err := s.repo.TradeRepo.TransitionToClosed(ctx, trade.ID, profit, now, opts...)
		if err != nil {
			return fmt.Errorf("failed to close trade: %w", err)
		}
		if !ok {
			// A concurrent closer won; the ledger was already credited once.
			return fmt.Errorf("%w: trade already closed", apperr.ErrStateConflict)
		}
		return s.repo.WalletRepo.CreditUSD(ctx, trade.UserID, margin.Add(profit), opts...)
	})
	if err != nil {
		return nil, err
	}

	trade.Status = model.TradeStatusClosed
	trade.CurrentProfit = profit
	trade.ClosedAt = &now

	s.publishProfitUpdate(trade, true)
	s.log.InfoContext(ctx, "Trade closed",
		logger.IntField("trade_id", int(trade.ID)),
		logger.StringField("profit", profit.String()),
	)
	return trade, nil
}

// closingProfit computes the final profit for an open trade. Auto mode marks
// against the market's current price with leverage applied; manual mode uses
// the stored override.
func (s *tradingService) closingProfit(trade *model.Trade) decimal.Decimal {
	if trade.ProfitCalculationMode == model.ProfitModeManual {
		if trade.ManualProfit != nil {
			return *trade.ManualProfit
		}
		return trade.CurrentProfit
	}
	return autoProfit(trade, trade.Market.CurrentPrice)
}

// autoProfit is amount * entry_price * leverage * directional price delta.
func autoProfit(trade *model.Trade, currentPrice decimal.Decimal) decimal.Decimal {
	if trade.Price.IsZero() {
		return decimal.Zero
	}
	delta := currentPrice.Sub(trade.Price).Div(trade.Price)
	if trade.TradeType == model.TradeTypeSell {
		delta = delta.Neg()
	}
	profit := trade.Notional().Mul(decimal.NewFromInt(int64(trade.Leverage))).Mul(delta)
	// Profits persist as numeric(24,8); round here so in-memory values
	// match their stored form.
	return profit.Round(8)
}

func (s *tradingService) CancelTrade(ctx context.Context, userID uint, tradeID uint) (*model.Trade, error) {
	trade, err := s.repo.TradeRepo.FindByID(ctx, tradeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trade: %w", err)
	}
	if trade == nil || (userID != 0 && trade.UserID != userID) {
		return nil, fmt.Errorf("%w: trade %d", apperr.ErrNotFound, tradeID)
	}
	if !trade.IsOpen() {
		return nil, fmt.Errorf("%w: only open trades can be cancelled", apperr.ErrStateConflict)
	}

	margin := trade.Margin()
	now := utils.TimeNowUTC()
	err = s.repo.UnitOfWork.Run(func(opts ...utils.DBOption) error {
		ok, err := s.repo.TradeRepo.TransitionToCancelled(ctx, trade.ID, now, opts...)
		if err != nil {
			return fmt.Errorf("failed to cancel trade: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: trade already settled", apperr.ErrStateConflict)
		}
		// Cancellation releases the escrowed margin without profit.
		return s.repo.WalletRepo.CreditUSD(ctx, trade.UserID, margin, opts...)
	})
	if err != nil {
		return nil, err
	}

	trade.Status = model.TradeStatusCancelled
	trade.ClosedAt = &now
	return trade, nil
}

func (s *tradingService) AdjustManualProfit(ctx context.Context, tradeID uint, profit decimal.Decimal) (*model.Trade, error) {
	trade, err := s.repo.TradeRepo.FindByID(ctx, tradeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trade: %w", err)
	}
	if trade == nil {
		return nil, fmt.Errorf("%w: trade %d", apperr.ErrNotFound, tradeID)
	}

	profit = profit.Round(8)
	ok, err := s.repo.TradeRepo.SetManualProfit(ctx, tradeID, profit)
	if err != nil {
		return nil, fmt.Errorf("failed to set manual profit: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: profit can only be adjusted on open trades", apperr.ErrStateConflict)
	}

	trade.ProfitCalculationMode = model.ProfitModeManual
	trade.ManualProfit = &profit
	trade.CurrentProfit = profit
	s.publishProfitUpdate(trade, false)
	return trade, nil
}

func (s *tradingService) GetTrades(ctx context.Context, param model.GetTradesParam) ([]model.Trade, error) {
	return s.repo.TradeRepo.Get(ctx, param)
}

func (s *tradingService) GetMarkets(ctx context.Context, param model.GetMarketsParam) ([]model.Market, error) {
	return s.repo.MarketRepo.Get(ctx, param)
}

func (s *tradingService) RefreshOpenProfits(ctx context.Context) (int, error) {
	trades, err := s.repo.TradeRepo.Get(ctx, model.GetTradesParam{
		Status:     utils.ToPointer(model.TradeStatusOpen),
		ProfitMode: utils.ToPointer(model.ProfitModeAuto),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get open trades: %w", err)
	}

	updated := 0
	for _, trade := range trades {
		if !utils.ShouldContinue(ctx, s.log) {
			break
		}

		if trade.Market.CurrentPrice.LessThanOrEqual(decimal.Zero) {
			s.log.WarnContext(ctx, "Skipping profit refresh for market without a valid price",
				logger.IntField("trade_id", int(trade.ID)),
				logger.StringField("market", trade.Market.Name),
			)
			continue
		}

		profit := autoProfit(&trade, trade.Market.CurrentPrice)
		if err := s.repo.TradeRepo.UpdateCurrentProfit(ctx, trade.ID, profit); err != nil {
			s.log.ErrorContext(ctx, "Failed to update trade profit",
				logger.ErrorField(err),
				logger.IntField("trade_id", int(trade.ID)),
			)
			continue
		}

		trade.CurrentProfit = profit
		s.publishProfitUpdate(&trade, false)
		updated++
	}

	return updated, nil
}

func (s *tradingService) publishProfitUpdate(trade *model.Trade, closed bool) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishProfitUpdate(events.ProfitUpdate{
		TradeID:    trade.ID,
		UserID:     trade.UserID,
		MarketName: trade.Market.Name,
		Symbol:     trade.Market.BaseCurrency.Symbol,
		Profit:     trade.CurrentProfit,
		Closed:     closed,
		At:         utils.TimeNowUTC(),
	})
}

func (s *tradingService) ensureUSDWallet(ctx context.Context, userID uint, opts ...utils.DBOption) error {
	wallet, err := s.repo.WalletRepo.GetUSDWallet(ctx, userID, opts...)
	if err != nil {
		return fmt.Errorf("failed to load wallet: %w", err)
	}
	if wallet != nil {
		return nil
	}
	return s.repo.WalletRepo.CreateUSDWallet(ctx, &model.USDWallet{
		UserID:   userID,
		Balance:  decimal.Zero,
		IsActive: true,
	}, opts...)
}
