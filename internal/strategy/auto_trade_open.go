package strategy

import (
	"context"
	"fmt"
	"nexatrade/config"
	"nexatrade/internal/model"
	"nexatrade/pkg/logger"
)

// SubscriptionProcessor attempts one synthesized position per eligible
// subscription and reports how many were opened.
type SubscriptionProcessor interface {
	ProcessActiveSubscriptions(ctx context.Context) (int, error)
}

type AutoTradeOpenStrategy struct {
	cfg       *config.Config
	log       *logger.Logger
	processor SubscriptionProcessor
}

func NewAutoTradeOpenStrategy(cfg *config.Config, log *logger.Logger, processor SubscriptionProcessor) JobExecutionStrategy {
	return &AutoTradeOpenStrategy{
		cfg:       cfg,
		log:       log,
		processor: processor,
	}
}

func (s *AutoTradeOpenStrategy) Execute(ctx context.Context, job *model.Job) (JobResult, error) {
	s.log.InfoContext(ctx, "Starting auto-trade open run")

	opened, err := s.processor.ProcessActiveSubscriptions(ctx)
	if err != nil {
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: fmt.Sprintf("failed to process subscriptions: %v", err)}, err
	}
	if opened == 0 {
		return JobResult{ExitCode: JOB_EXIT_CODE_SKIPPED, Output: "no eligible subscriptions"}, nil
	}
	return JobResult{ExitCode: JOB_EXIT_CODE_SUCCESS, Output: fmt.Sprintf("opened %d auto-trades", opened)}, nil
}

func (s *AutoTradeOpenStrategy) GetType() JobType {
	return JobTypeAutoTradeOpen
}
