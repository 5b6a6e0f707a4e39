package strategy

import (
	"context"
	"nexatrade/internal/model"
)

const (
	JOB_EXIT_CODE_SUCCESS         = 200
	JOB_EXIT_CODE_FAILED          = 500
	JOB_EXIT_CODE_SKIPPED         = 204
	JOB_EXIT_CODE_PARTIAL_SUCCESS = 206
)

type JobType string

const (
	JobTypeAutoTradeOpen        JobType = "auto_trade_open"
	JobTypeAutoTradeClose       JobType = "auto_trade_close"
	JobTypeSubscriptionFinalize JobType = "subscription_finalize"
	JobTypeProfitRefresh        JobType = "profit_refresh"
	JobTypeMarketPriceSync      JobType = "market_price_sync"
	JobTypeDataCleanUp          JobType = "data_clean_up"
)

type JobResult struct {
	ExitCode int32  `json:"exit_code"`
	Output   string `json:"output"`
}

// JobExecutionStrategy defines the interface for different job execution strategies.
type JobExecutionStrategy interface {
	Execute(ctx context.Context, job *model.Job) (JobResult, error)
	GetType() JobType
}
