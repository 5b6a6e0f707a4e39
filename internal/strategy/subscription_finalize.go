package strategy

import (
	"context"
	"fmt"
	"nexatrade/config"
	"nexatrade/internal/model"
	"nexatrade/pkg/logger"
)

// SubscriptionFinalizer settles active subscriptions past their end date.
type SubscriptionFinalizer interface {
	FinalizeExpired(ctx context.Context) (int, error)
}

type SubscriptionFinalizeStrategy struct {
	cfg       *config.Config
	log       *logger.Logger
	finalizer SubscriptionFinalizer
}

func NewSubscriptionFinalizeStrategy(cfg *config.Config, log *logger.Logger, finalizer SubscriptionFinalizer) JobExecutionStrategy {
	return &SubscriptionFinalizeStrategy{
		cfg:       cfg,
		log:       log,
		finalizer: finalizer,
	}
}

func (s *SubscriptionFinalizeStrategy) Execute(ctx context.Context, job *model.Job) (JobResult, error) {
	s.log.InfoContext(ctx, "Starting subscription finalize run")

	finalized, err := s.finalizer.FinalizeExpired(ctx)
	if err != nil {
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: fmt.Sprintf("failed to finalize subscriptions: %v", err)}, err
	}
	if finalized == 0 {
		return JobResult{ExitCode: JOB_EXIT_CODE_SKIPPED, Output: "no expired subscriptions"}, nil
	}
	return JobResult{ExitCode: JOB_EXIT_CODE_SUCCESS, Output: fmt.Sprintf("finalized %d subscriptions", finalized)}, nil
}

func (s *SubscriptionFinalizeStrategy) GetType() JobType {
	return JobTypeSubscriptionFinalize
}
