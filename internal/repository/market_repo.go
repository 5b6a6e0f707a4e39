package repository

import (
	"context"
	"fmt"
	"nexatrade/internal/model"
	"nexatrade/pkg/utils"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type MarketRepository interface {
	Get(ctx context.Context, param model.GetMarketsParam, opts ...utils.DBOption) ([]model.Market, error)
	FindByID(ctx context.Context, id uint, opts ...utils.DBOption) (*model.Market, error)
	UpdatePrice(ctx context.Context, marketID uint, price decimal.Decimal, opts ...utils.DBOption) error
}

type marketRepository struct {
	db *gorm.DB
}

func NewMarketRepository(db *gorm.DB) MarketRepository {
	return &marketRepository{
		db: db,
	}
}

func (r *marketRepository) Get(ctx context.Context, param model.GetMarketsParam, opts ...utils.DBOption) ([]model.Market, error) {
	var markets []model.Market

	qFilter := []string{}
	qFilterParam := []interface{}{}

	if len(param.IDs) > 0 {
		qFilter = append(qFilter, "id IN (?)")
		qFilterParam = append(qFilterParam, param.IDs)
	}

	if param.IsActive != nil {
		qFilter = append(qFilter, "is_active = ?")
		qFilterParam = append(qFilterParam, *param.IsActive)
	}

	if len(qFilter) == 0 {
		return nil, fmt.Errorf("no filter provided")
	}

	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	if err := db.Preload("BaseCurrency").Where(strings.Join(qFilter, " AND "), qFilterParam...).Find(&markets).Error; err != nil {
		return nil, err
	}

	return markets, nil
}

func (r *marketRepository) FindByID(ctx context.Context, id uint, opts ...utils.DBOption) (*model.Market, error) {
	var market model.Market
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := db.Preload("BaseCurrency").First(&market, id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &market, nil
}

func (r *marketRepository) UpdatePrice(ctx context.Context, marketID uint, price decimal.Decimal, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return db.Model(&model.Market{}).Where("id = ?", marketID).Update("current_price", price).Error
}
