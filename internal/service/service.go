package service

import (
	"nexatrade/config"
	"nexatrade/internal/events"
	"nexatrade/internal/repository"
	"nexatrade/internal/strategy"
	"nexatrade/pkg/cache"
	"nexatrade/pkg/logger"
)

type Service struct {
	SchedulerService    SchedulerService
	TaskExecutor        TaskExecutor
	TradingService      TradingService
	AutoTradeService    AutoTradeService
	SubscriptionService SubscriptionService
	WalletService       WalletService
	UserService         UserService
}

func NewService(
	cfg *config.Config,
	log *logger.Logger,
	repo *repository.Repository,
	inmemoryCache cache.Cache,
	broker *events.Broker,
) *Service {
	tradingService := NewTradingService(cfg, log, repo, broker)
	autoTradeService := NewAutoTradeService(cfg, log, repo, broker, nil)
	subscriptionService := NewSubscriptionService(cfg, log, repo, autoTradeService)
	walletService := NewWalletService(cfg, log, repo)
	userService := NewUserService(cfg, log, repo, walletService)

	executorStrategies := make(map[strategy.JobType]strategy.JobExecutionStrategy)
	executorStrategies[strategy.JobTypeAutoTradeOpen] = strategy.NewAutoTradeOpenStrategy(cfg, log, autoTradeService)
	executorStrategies[strategy.JobTypeAutoTradeClose] = strategy.NewAutoTradeCloseStrategy(cfg, log, autoTradeService)
	executorStrategies[strategy.JobTypeSubscriptionFinalize] = strategy.NewSubscriptionFinalizeStrategy(cfg, log, subscriptionService)
	executorStrategies[strategy.JobTypeProfitRefresh] = strategy.NewProfitRefreshStrategy(cfg, log, tradingService)
	executorStrategies[strategy.JobTypeMarketPriceSync] = strategy.NewMarketPriceSyncStrategy(cfg, log, repo.MarketRepo, repo.PriceOracleRepo)
	executorStrategies[strategy.JobTypeDataCleanUp] = strategy.NewDataCleanUpStrategy(cfg, log, repo.JobRepo)

	taskExecutor := NewTaskExecutor(cfg, log, repo.JobRepo, executorStrategies)
	schedulerService := NewSchedulerService(cfg, log, repo.JobRepo, taskExecutor)

	return &Service{
		SchedulerService:    schedulerService,
		TaskExecutor:        taskExecutor,
		TradingService:      tradingService,
		AutoTradeService:    autoTradeService,
		SubscriptionService: subscriptionService,
		WalletService:       walletService,
		UserService:         userService,
	}
}
