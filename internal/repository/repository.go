package repository

import (
	"nexatrade/config"
	"nexatrade/pkg/cache"
	"nexatrade/pkg/logger"

	"gorm.io/gorm"
)

type Repository struct {
	JobRepo            JobRepository
	UserRepo           UserRepository
	MarketRepo         MarketRepository
	TradeRepo          TradeRepository
	WalletRepo         WalletRepository
	TradingPackageRepo TradingPackageRepository
	SubscriptionRepo   SubscriptionRepository
	TradeClosureRepo   TradeClosureRepository
	PriceOracleRepo    PriceOracleRepository
	UnitOfWork         UnitOfWork
}

func NewRepository(cfg *config.Config, inmemoryCache cache.Cache, db *gorm.DB, log *logger.Logger) (*Repository, error) {
	return &Repository{
		JobRepo:            NewJobRepository(db),
		UserRepo:           NewUserRepository(db),
		MarketRepo:         NewMarketRepository(db),
		TradeRepo:          NewTradeRepository(db),
		WalletRepo:         NewWalletRepository(db),
		TradingPackageRepo: NewTradingPackageRepository(db),
		SubscriptionRepo:   NewSubscriptionRepository(db),
		TradeClosureRepo:   NewTradeClosureRepository(db),
		PriceOracleRepo:    NewPriceOracleRepository(cfg, log, inmemoryCache),
		UnitOfWork:         NewUnitOfWork(db),
	}, nil
}
