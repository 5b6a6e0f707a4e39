package repository

import (
	"context"
	"nexatrade/internal/model"
	"nexatrade/pkg/utils"
	"time"

	"gorm.io/gorm"
)

type TradeClosureRepository interface {
	Create(ctx context.Context, closure *model.TradeClosure, opts ...utils.DBOption) error
	// FindDue returns closure records whose deadline has elapsed.
	FindDue(ctx context.Context, now time.Time, opts ...utils.DBOption) ([]model.TradeClosure, error)
	Delete(ctx context.Context, id uint, opts ...utils.DBOption) error
	DeleteByTradeID(ctx context.Context, tradeID uint, opts ...utils.DBOption) error
}

type tradeClosureRepository struct {
	db *gorm.DB
}

func NewTradeClosureRepository(db *gorm.DB) TradeClosureRepository {
	return &tradeClosureRepository{
		db: db,
	}
}

func (r *tradeClosureRepository) Create(ctx context.Context, closure *model.TradeClosure, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(closure).Error
}

func (r *tradeClosureRepository) FindDue(ctx context.Context, now time.Time, opts ...utils.DBOption) ([]model.TradeClosure, error) {
	var closures []model.TradeClosure
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	if err := db.Where("close_at <= ?", now).Order("close_at ASC").Find(&closures).Error; err != nil {
		return nil, err
	}
	return closures, nil
}

func (r *tradeClosureRepository) Delete(ctx context.Context, id uint, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Delete(&model.TradeClosure{}, id).Error
}

func (r *tradeClosureRepository) DeleteByTradeID(ctx context.Context, tradeID uint, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).
		Where("trade_id = ?", tradeID).Delete(&model.TradeClosure{}).Error
}
