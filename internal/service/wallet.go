package service

import (
	"context"
	"fmt"
	"strings"

	"nexatrade/config"
	"nexatrade/internal/model"
	"nexatrade/internal/repository"
	"nexatrade/pkg/logger"
	"nexatrade/pkg/utils"

	"github.com/shopspring/decimal"
)

// WalletService provisions accounts and reads balances. Provisioning is
// idempotent: one USD wallet plus one wallet per active crypto type, with
// deposit addresses assigned from the configured per-symbol pools.
type WalletService interface {
	EnsureWallets(ctx context.Context, userID uint) error
	GetBalances(ctx context.Context, userID uint) (*model.USDWallet, []model.CryptoWallet, error)
}

type walletService struct {
	cfg  *config.Config
	log  *logger.Logger
	repo *repository.Repository
}

func NewWalletService(cfg *config.Config, log *logger.Logger, repo *repository.Repository) WalletService {
	return &walletService{
		cfg:  cfg,
		log:  log,
		repo: repo,
	}
}

func (s *walletService) EnsureWallets(ctx context.Context, userID uint) error {
	cryptoTypes, err := s.repo.WalletRepo.GetActiveCryptoTypes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list crypto types: %w", err)
	}

	return s.repo.UnitOfWork.Run(func(opts ...utils.DBOption) error {
		usd, err := s.repo.WalletRepo.GetUSDWallet(ctx, userID, opts...)
		if err != nil {
			return fmt.Errorf("failed to load usd wallet: %w", err)
		}
		if usd == nil {
			if err := s.repo.WalletRepo.CreateUSDWallet(ctx, &model.USDWallet{
				UserID:   userID,
				Balance:  decimal.Zero,
				IsActive: true,
			}, opts...); err != nil {
				return fmt.Errorf("failed to create usd wallet: %w", err)
			}
		}

		existing, err := s.repo.WalletRepo.GetCryptoWallets(ctx, userID, opts...)
		if err != nil {
			return fmt.Errorf("failed to load crypto wallets: %w", err)
		}
		owned := make(map[uint]bool, len(existing))
		for _, w := range existing {
			owned[w.CryptoTypeID] = true
		}

		for _, ct := range cryptoTypes {
			if owned[ct.ID] {
				continue
			}
			if err := s.repo.WalletRepo.CreateCryptoWallet(ctx, &model.CryptoWallet{
				UserID:        userID,
				CryptoTypeID:  ct.ID,
				Balance:       decimal.Zero,
				WalletAddress: s.depositAddress(ct.Symbol, userID),
				IsActive:      true,
			}, opts...); err != nil {
				return fmt.Errorf("failed to create %s wallet: %w", ct.Symbol, err)
			}
		}
		return nil
	})
}

// depositAddress assigns an address from the symbol's configured pool,
// spreading users across it. Empty when no pool is configured.
func (s *walletService) depositAddress(symbol string, userID uint) string {
	pool := s.cfg.Trading.WalletAddressPools[strings.ToLower(symbol)]
	if len(pool) == 0 {
		return ""
	}
	return pool[int(userID)%len(pool)]
}

func (s *walletService) GetBalances(ctx context.Context, userID uint) (*model.USDWallet, []model.CryptoWallet, error) {
	usd, err := s.repo.WalletRepo.GetUSDWallet(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load usd wallet: %w", err)
	}
	if usd == nil {
		usd = &model.USDWallet{UserID: userID, Balance: decimal.Zero}
	}
	cryptos, err := s.repo.WalletRepo.GetCryptoWallets(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load crypto wallets: %w", err)
	}
	return usd, cryptos, nil
}
