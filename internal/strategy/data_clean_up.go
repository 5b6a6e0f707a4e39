package strategy

import (
	"context"
	"encoding/json"
	"fmt"

	"nexatrade/config"
	"nexatrade/internal/model"
	"nexatrade/internal/repository"
	"nexatrade/pkg/logger"
	"nexatrade/pkg/utils"
)

type DataCleanUpPayload struct {
	RetentionDays int `json:"retention_days"`
}

type DataCleanUpResult struct {
	Table string `json:"table"`
	Total int64  `json:"total"`
	Error string `json:"error,omitempty"`
}

// DataCleanUpStrategy prunes task execution history past the retention
// window carried in the job payload.
type DataCleanUpStrategy struct {
	cfg     *config.Config
	log     *logger.Logger
	jobRepo repository.JobRepository
}

func NewDataCleanUpStrategy(cfg *config.Config, log *logger.Logger, jobRepo repository.JobRepository) JobExecutionStrategy {
	return &DataCleanUpStrategy{
		cfg:     cfg,
		log:     log,
		jobRepo: jobRepo,
	}
}

func (s *DataCleanUpStrategy) Execute(ctx context.Context, job *model.Job) (JobResult, error) {
	var payload DataCleanUpPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: fmt.Sprintf("failed to unmarshal job payload: %v", err)}, fmt.Errorf("failed to unmarshal job payload: %w", err)
	}
	if payload.RetentionDays <= 0 {
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: "retention_days must be positive"}, fmt.Errorf("invalid retention_days %d", payload.RetentionDays)
	}

	cutoff := utils.TimeNowUTC().AddDate(0, 0, -payload.RetentionDays)
	results := []DataCleanUpResult{}

	deleted, err := s.jobRepo.DeleteTaskHistoryOlderThan(ctx, cutoff)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to prune task history",
			logger.ErrorField(err),
			logger.IntField("job_id", int(job.ID)),
		)
		results = append(results, DataCleanUpResult{
			Table: "task_execution_history",
			Total: deleted,
			Error: fmt.Sprintf("failed to delete history older than %v: %v", cutoff, err),
		})
	} else {
		results = append(results, DataCleanUpResult{
			Table: "task_execution_history",
			Total: deleted,
		})
	}

	out, marshalErr := json.Marshal(results)
	if marshalErr != nil {
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: fmt.Sprintf("failed to marshal output: %v", marshalErr)}, fmt.Errorf("failed to marshal output: %w", marshalErr)
	}
	if err != nil {
		return JobResult{ExitCode: JOB_EXIT_CODE_FAILED, Output: string(out)}, err
	}
	return JobResult{ExitCode: JOB_EXIT_CODE_SUCCESS, Output: string(out)}, nil
}

func (s *DataCleanUpStrategy) GetType() JobType {
	return JobTypeDataCleanUp
}
