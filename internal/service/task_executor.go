package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"nexatrade/config"
	"nexatrade/internal/model"
	"nexatrade/internal/repository"
	"nexatrade/internal/strategy"
	"nexatrade/pkg/logger"
	"nexatrade/pkg/utils"
)

type TaskExecutor interface {
	Execute(ctx context.Context, taskHistory *model.TaskExecutionHistory) error
}

type taskExecutor struct {
	cfg                *config.Config
	log                *logger.Logger
	jobRepo            repository.JobRepository
	executorStrategies map[strategy.JobType]strategy.JobExecutionStrategy
}

func NewTaskExecutor(cfg *config.Config, log *logger.Logger, jobRepo repository.JobRepository, executorStrategies map[strategy.JobType]strategy.JobExecutionStrategy) TaskExecutor {
	return &taskExecutor{
		jobRepo:            jobRepo,
		cfg:                cfg,
		log:                log,
		executorStrategies: executorStrategies,
	}
}

// Execute runs the strategy for the job behind taskHistory and persists the
// outcome. The history row is always finalized, even when the strategy fails.
func (t *taskExecutor) Execute(ctx context.Context, taskHistory *model.TaskExecutionHistory) error {
	t.log.InfoContext(ctx, "Processing job",
		logger.IntField("job_id", int(taskHistory.JobID)),
		logger.IntField("history_id", int(taskHistory.ID)),
	)

	job, err := t.jobRepo.FindByID(ctx, taskHistory.JobID)
	if err != nil {
		return fmt.Errorf("failed to find job: %w", err)
	}

	strat, ok := t.executorStrategies[strategy.JobType(job.Type)]
	if !ok {
		taskHistory.Status = model.StatusFailed
		taskHistory.ErrorMessage = sql.NullString{String: fmt.Sprintf("no strategy registered for job type %q", job.Type), Valid: true}
		return t.finalize(ctx, taskHistory)
	}

	result, execErr := strat.Execute(ctx, job)
	switch {
	case errors.Is(execErr, context.DeadlineExceeded):
		taskHistory.Status = model.StatusTimeout
		taskHistory.ErrorMessage = sql.NullString{String: execErr.Error(), Valid: true}
	case execErr != nil:
		t.log.ErrorContext(ctx, "Job failed",
			logger.ErrorField(execErr),
			logger.IntField("job_id", int(taskHistory.JobID)),
		)
		taskHistory.Status = model.StatusFailed
		taskHistory.ErrorMessage = sql.NullString{String: execErr.Error(), Valid: true}
	default:
		taskHistory.Status = model.StatusCompleted
	}
	taskHistory.ExitCode = sql.NullInt32{Int32: result.ExitCode, Valid: true}
	taskHistory.Output = sql.NullString{String: result.Output, Valid: true}

	return t.finalize(ctx, taskHistory)
}

func (t *taskExecutor) finalize(ctx context.Context, taskHistory *model.TaskExecutionHistory) error {
	taskHistory.CompletedAt = sql.NullTime{Time: utils.TimeNowUTC(), Valid: true}
	if err := t.jobRepo.UpdateTaskExecutionHistory(ctx, taskHistory); err != nil {
		return fmt.Errorf("failed to update task execution history: %w", err)
	}
	return nil
}
