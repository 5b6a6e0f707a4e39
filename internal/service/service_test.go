package service

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"nexatrade/config"
	"nexatrade/internal/events"
	"nexatrade/internal/model"
	"nexatrade/internal/repository"
	"nexatrade/pkg/cache"
	"nexatrade/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

type testEnv struct {
	db     *gorm.DB
	repo   *repository.Repository
	broker *events.Broker

	trading      TradingService
	autoTrade    AutoTradeService
	subscription SubscriptionService
	wallet       WalletService
	user         UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dbSeq++
	dsn := fmt.Sprintf("file:svc_test_%d?mode=memory&cache=shared&_fk=1", dbSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&model.User{},
		&model.CryptoType{},
		&model.Market{},
		&model.USDWallet{},
		&model.CryptoWallet{},
		&model.Trade{},
		&model.TradingPackage{},
		&model.PackageSubscription{},
		&model.AutoTrade{},
		&model.TradeClosure{},
		&model.Job{},
		&model.TaskSchedule{},
		&model.TaskExecutionHistory{},
	)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Scheduler.MaxConcurrency = 2
	cfg.Oracle.Timeout = time.Second
	cfg.Oracle.MaxRequestPerMin = 60
	cfg.Oracle.CacheTTL = time.Minute
	cfg.Trading.RandomSeed = 42
	cfg.Trading.WalletAddressPools = map[string][]string{
		"btc": {"bc1-pool-0", "bc1-pool-1"},
		"eth": {"0x-pool-0"},
	}

	log, err := logger.New("error", "console")
	require.NoError(t, err)

	inmemoryCache := cache.NewCache(time.Minute, time.Minute)
	repo, err := repository.NewRepository(cfg, inmemoryCache, db, log)
	require.NoError(t, err)

	broker := events.NewBroker()
	rng := rand.New(rand.NewSource(42))

	trading := NewTradingService(cfg, log, repo, broker)
	autoTrade := NewAutoTradeService(cfg, log, repo, broker, rng)
	subscription := NewSubscriptionService(cfg, log, repo, autoTrade)
	wallet := NewWalletService(cfg, log, repo)
	user := NewUserService(cfg, log, repo, wallet)

	env := &testEnv{
		db:           db,
		repo:         repo,
		broker:       broker,
		trading:      trading,
		autoTrade:    autoTrade,
		subscription: subscription,
		wallet:       wallet,
		user:         user,
	}
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	})
	return env
}

func (e *testEnv) seedUser(t *testing.T, balance decimal.Decimal) *model.User {
	t.Helper()
	user := &model.User{Email: randomEmail(), IsActive: true}
	require.NoError(t, e.db.Create(user).Error)
	require.NoError(t, e.db.Create(&model.USDWallet{
		UserID:   user.ID,
		Balance:  balance,
		IsActive: true,
	}).Error)
	return user
}

func (e *testEnv) seedMarket(t *testing.T, name, symbol string, price decimal.Decimal) *model.Market {
	t.Helper()
	ct := &model.CryptoType{Name: name, Symbol: symbol, IsActive: true}
	require.NoError(t, e.db.Create(ct).Error)
	market := &model.Market{
		Name:           name + "/USD",
		BaseCurrencyID: ct.ID,
		QuoteCurrency:  "USD",
		IsActive:       true,
		CurrentPrice:   price,
		MinTradeAmount: decimal.NewFromFloat(0.0001),
	}
	require.NoError(t, e.db.Create(market).Error)
	market.BaseCurrency = *ct
	return market
}

func (e *testEnv) seedPackage(t *testing.T, mutate func(*model.TradingPackage)) *model.TradingPackage {
	t.Helper()
	pkg := &model.TradingPackage{
		Name:                     "Starter",
		MinInvestment:            decimal.NewFromInt(100),
		MaxInvestment:            decimal.NewFromInt(5000),
		DurationDays:             30,
		ProfitPercentage:         decimal.RequireFromString("8.5"),
		IsActive:                 true,
		MaxTradesPerDay:          5,
		MinTradeAmountPercentage: decimal.NewFromInt(10),
		MaxTradeAmountPercentage: decimal.NewFromInt(30),
		TradeFrequencyHours:      4,
	}
	if mutate != nil {
		mutate(pkg)
	}
	require.NoError(t, e.db.Create(pkg).Error)
	return pkg
}

func (e *testEnv) usdBalance(t *testing.T, userID uint) decimal.Decimal {
	t.Helper()
	var wallet model.USDWallet
	require.NoError(t, e.db.Where("user_id = ?", userID).First(&wallet).Error)
	return wallet.Balance
}

var (
	dbSeq    int
	emailSeq int
)

func randomEmail() string {
	emailSeq++
	return time.Now().Format("150405.000000") + "-" + string(rune('a'+emailSeq%26)) + "@test.local"
}

func requireDecimalEqual(t *testing.T, want, got decimal.Decimal) {
	t.Helper()
	require.True(t, want.Equal(got), "expected %s, got %s", want, got)
}
