package repository

import (
	"context"
	"fmt"
	"nexatrade/internal/model"
	"nexatrade/pkg/utils"
	"strings"

	"gorm.io/gorm"
)

type TradingPackageRepository interface {
	Get(ctx context.Context, param model.GetTradingPackagesParam, opts ...utils.DBOption) ([]model.TradingPackage, error)
	FindByID(ctx context.Context, id uint, opts ...utils.DBOption) (*model.TradingPackage, error)
}

type tradingPackageRepository struct {
	db *gorm.DB
}

func NewTradingPackageRepository(db *gorm.DB) TradingPackageRepository {
	return &tradingPackageRepository{
		db: db,
	}
}

func (r *tradingPackageRepository) Get(ctx context.Context, param model.GetTradingPackagesParam, opts ...utils.DBOption) ([]model.TradingPackage, error) {
	var packages []model.TradingPackage

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
	if err := db.Preload("PreferredMarkets").Where(strings.Join(qFilter, " AND "), qFilterParam...).Find(&packages).Error; err != nil {
		return nil, err
	}

	return packages, nil
}

func (r *tradingPackageRepository) FindByID(ctx context.Context, id uint, opts ...utils.DBOption) (*model.TradingPackage, error) {
	var pkg model.TradingPackage
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := db.Preload("PreferredMarkets").First(&pkg, id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &pkg, nil
}
