package strategy

import (
	"context"
	"fmt"
	"nexatrade/config"
	"nexatrade/internal/model"
	"nexatrade/pkg/logger"
)

// ProfitRefresher recomputes the current profit of open auto-mode trades.
type ProfitRefresher interface {
	RefreshOpenProfits(ctx context.Context) (int, error)
}

type ProfitRefreshStrategy struct {
	cfg       *config.Config
	log       *logger.Logger
	refresher ProfitRefresher
}

func NewProfitRefreshStrategy(cfg *config.Config, log *logger.Logger, refresher ProfitRefresher) JobExecutionStrategy {
	return &ProfitRefreshStrategy{
		cfg:       cfg,
		log:       log,
		refresher: refresher,
	}
}

func (s *ProfitRefreshStrategy) Execute(ctx context.Context, job *model.Job) (JobResult, error) {
	updated, err := s.refresher.RefreshOpenProfits(ctx)
	if err != nil {
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: fmt.Sprintf("failed to refresh profits: %v", err)}, err
	}
	if updated == 0 {
		return JobResult{ExitCode: JOB_EXIT_CODE_SKIPPED, Output: "no open auto-mode trades"}, nil
	}
	return JobResult{ExitCode: JOB_EXIT_CODE_SUCCESS, Output: fmt.Sprintf("refreshed %d trades", updated)}, nil
}

func (s *ProfitRefreshStrategy) GetType() JobType {
	return JobTypeProfitRefresh
}
