package service

import (
	"context"
	"fmt"

	"nexatrade/config"
	"nexatrade/internal/apperr"
	"nexatrade/internal/model"
	"nexatrade/internal/repository"
	"nexatrade/pkg/logger"
)

// UserService resolves identity for ownership and staff checks and registers
// new users. Registration provisions wallets synchronously so every user has
// accounts before their first operation.
type UserService interface {
	Register(ctx context.Context, email string) (*model.User, error)
	IsStaff(ctx context.Context, userID uint) (bool, error)
}

type userService struct {
	cfg    *config.Config
	log    *logger.Logger
	repo   *repository.Repository
	wallet WalletService
}

func NewUserService(cfg *config.Config, log *logger.Logger, repo *repository.Repository, wallet WalletService) UserService {
	return &userService{
		cfg:    cfg,
		log:    log,
		repo:   repo,
		wallet: wallet,
	}
}

func (s *userService) Register(ctx context.Context, email string) (*model.User, error) {
	existing, err := s.repo.UserRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: email already registered", apperr.ErrStateConflict)
	}

	user := &model.User{Email: email, IsActive: true}
	if err := s.repo.UserRepo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.wallet.EnsureWallets(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("failed to provision wallets: %w", err)
	}

	s.log.InfoContext(ctx, "User registered",
		logger.IntField("user_id", int(user.ID)),
		logger.StringField("email", email),
	)
	return user, nil
}

func (s *userService) IsStaff(ctx context.Context, userID uint) (bool, error) {
	user, err := s.repo.UserRepo.GetByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return false, fmt.Errorf("%w: user %d", apperr.ErrNotFound, userID)
	}
	return user.IsStaff, nil
}
