package strategy

import (
	"context"
	"fmt"
	"nexatrade/config"
	"nexatrade/internal/model"
	"nexatrade/pkg/logger"
)

// ClosureSweeper closes trades whose scheduled closure deadline has elapsed.
type ClosureSweeper interface {
	SweepDueClosures(ctx context.Context) (int, error)
}

type AutoTradeCloseStrategy struct {
	cfg     *config.Config
	log     *logger.Logger
	sweeper ClosureSweeper
}

func NewAutoTradeCloseStrategy(cfg *config.Config, log *logger.Logger, sweeper ClosureSweeper) JobExecutionStrategy {
	return &AutoTradeCloseStrategy{
		cfg:     cfg,
		log:     log,
		sweeper: sweeper,
	}
}

func (s *AutoTradeCloseStrategy) Execute(ctx context.Context, job *model.Job) (JobResult, error) {
	s.log.InfoContext(ctx, "Starting auto-trade closure sweep")

	closed, err := s.sweeper.SweepDueClosures(ctx)
	if err != nil {
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: fmt.Sprintf("failed to sweep closures: %v", err)}, err
	}
	if closed == 0 {
		return JobResult{ExitCode: JOB_EXIT_CODE_SKIPPED, Output: "no due closures"}, nil
	}
	return JobResult{ExitCode: JOB_EXIT_CODE_SUCCESS, Output: fmt.Sprintf("closed %d auto-trades", closed)}, nil
}

func (s *AutoTradeCloseStrategy) GetType() JobType {
	return JobTypeAutoTradeClose
}
