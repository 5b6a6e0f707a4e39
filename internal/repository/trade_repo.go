package repository

import (
	"context"
	"fmt"
	"nexatrade/internal/model"
	"nexatrade/pkg/utils"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TradeRepository interface {
	Get(ctx context.Context, param model.GetTradesParam, opts ...utils.DBOption) ([]model.Trade, error)
	FindByID(ctx context.Context, id uint, opts ...utils.DBOption) (*model.Trade, error)
	Create(ctx context.Context, trade *model.Trade, opts ...utils.DBOption) error
	Update(ctx context.Context, trade *model.Trade, opts ...utils.DBOption) error
	UpdateCurrentProfit(ctx context.Context, tradeID uint, profit decimal.Decimal, opts ...utils.DBOption) error
	// TransitionToClosed flips an open trade to closed with its final profit.
	// Returns false when the trade was not open anymore, without touching it.
	TransitionToClosed(ctx context.Context, tradeID uint, profit decimal.Decimal, closedAt time.Time, opts ...utils.DBOption) (bool, error)
	// TransitionToCancelled releases an open trade without profit.
	TransitionToCancelled(ctx context.Context, tradeID uint, closedAt time.Time, opts ...utils.DBOption) (bool, error)
	SetManualProfit(ctx context.Context, tradeID uint, profit decimal.Decimal, opts ...utils.DBOption) (bool, error)
}

type tradeRepository struct {
	db *gorm.DB
}

func NewTradeRepository(db *gorm.DB) TradeRepository {
	return &tradeRepository{
		db: db,
	}
}

func (r *tradeRepository) Get(ctx context.Context, param model.GetTradesParam, opts ...utils.DBOption) ([]model.Trade, error) {
	var trades []model.Trade

	qFilter := []string{}
	qFilterParam := []interface{}{}

	if len(param.IDs) > 0 {
		qFilter = append(qFilter, "id IN (?)")
		qFilterParam = append(qFilterParam, param.IDs)
	}

	if param.UserID != nil {
		qFilter = append(qFilter, "user_id = ?")
		qFilterParam = append(qFilterParam, *param.UserID)
	}

	if param.Status != nil {
		qFilter = append(qFilter, "status = ?")
		qFilterParam = append(qFilterParam, *param.Status)
	}

	if param.ProfitMode != nil {
		qFilter = append(qFilter, "profit_calculation_mode = ?")
		qFilterParam = append(qFilterParam, *param.ProfitMode)
	}

	if len(qFilter) == 0 {
		return nil, fmt.Errorf("no filter provided")
	}

	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	if err := db.Preload("Market").Preload("Market.BaseCurrency").Where(strings.Join(qFilter, " AND "), qFilterParam...).Order("created_at DESC").Find(&trades).Error; err != nil {
		return nil, err
	}

	return trades, nil
}

func (r *tradeRepository) FindByID(ctx context.Context, id uint, opts ...utils.DBOption) (*model.Trade, error) {
	var trade model.Trade
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := db.Preload("Market").Preload("Market.BaseCurrency").First(&trade, id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &trade, nil
}

func (r *tradeRepository) Create(ctx context.Context, trade *model.Trade, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Create(trade).Error
}

func (r *tradeRepository) Update(ctx context.Context, trade *model.Trade, opts ...utils.DBOption) error {
	return utils.ApplyOptions(r.db.WithContext(ctx), opts...).Updates(trade).Error
}

func (r *tradeRepository) UpdateCurrentProfit(ctx context.Context, tradeID uint, profit decimal.Decimal, opts ...utils.DBOption) error {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	return db.Model(&model.Trade{}).
		Where("id = ? AND status = ?", tradeID, model.TradeStatusOpen).
		Update("current_profit", profit).Error
}

func (r *tradeRepository) TransitionToClosed(ctx context.Context, tradeID uint, profit decimal.Decimal, closedAt time.Time, opts ...utils.DBOption) (bool, error) {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := db.Model(&model.Trade{}).
		Where("id = ? AND status = ?", tradeID, model.TradeStatusOpen).
		Updates(map[string]interface{}{
			"status":         model.TradeStatusClosed,
			"current_profit": profit,
			"closed_at":      closedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *tradeRepository) TransitionToCancelled(ctx context.Context, tradeID uint, closedAt time.Time, opts ...utils.DBOption) (bool, error) {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := db.Model(&model.Trade{}).
		Where("id = ? AND status = ?", tradeID, model.TradeStatusOpen).
		Updates(map[string]interface{}{
			"status":    model.TradeStatusCancelled,
			"closed_at": closedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *tradeRepository) SetManualProfit(ctx context.Context, tradeID uint, profit decimal.Decimal, opts ...utils.DBOption) (bool, error) {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := db.Model(&model.Trade{}).
		Where("id = ? AND status = ?", tradeID, model.TradeStatusOpen).
		Updates(map[string]interface{}{
			"profit_calculation_mode": model.ProfitModeManual,
			"manual_profit":           profit,
			"current_profit":          profit,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
