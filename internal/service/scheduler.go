package service

import (
	"context"
	"database/sql"
	"fmt"
	"nexatrade/config"
	"nexatrade/internal/model"
	"nexatrade/internal/repository"
	"nexatrade/pkg/logger"
	"nexatrade/pkg/utils"
	"time"

	"github.com/robfig/cron/v3"
)

type SchedulerService interface {
	Execute(ctx context.Context) error
	GetJobSchedule(ctx context.Context, param model.GetJobParam) ([]model.Job, error)
	RunJobTask(ctx context.Context, jobID uint) error
}

// schedulerService polls task_schedules for due entries and dispatches each
// one to the task executor. Dispatch is bounded by a semaphore; the loop
// itself advances next_execution synchronously so a crash mid-run never
// double-schedules a job.
type schedulerService struct {
	cfg          *config.Config
	log          *logger.Logger
	cronParser   cron.Parser
	jobRepo      repository.JobRepository
	taskExecutor TaskExecutor
	semaphore    chan struct{}
}

func NewSchedulerService(
	cfg *config.Config,
	log *logger.Logger,
	jobRepo repository.JobRepository,
	taskExecutor TaskExecutor,
) *schedulerService {
	return &schedulerService{
		cfg:          cfg,
		log:          log,
		jobRepo:      jobRepo,
		cronParser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		taskExecutor: taskExecutor,
		semaphore:    make(chan struct{}, cfg.Scheduler.MaxConcurrency),
	}
}

func (s *schedulerService) Execute(ctx context.Context) error {
	due, err := s.jobRepo.FindJobsToSchedule(ctx, utils.WithPreload("Job"))
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to find due schedules", logger.ErrorField(err))
		return fmt.Errorf("failed to find due schedules: %w", err)
	}
	if len(due) == 0 {
		s.log.DebugContext(ctx, "No due schedules")
		return nil
	}

	s.log.InfoContext(ctx, "Dispatching due schedules",
		logger.IntField("count", len(due)),
		logger.IntField("max_concurrency", cap(s.semaphore)),
	)

	for _, schedule := range due {
		if ctx.Err() != nil {
			s.log.WarnContext(ctx, "Scheduler pass cancelled", logger.ErrorField(ctx.Err()))
			return nil
		}
		if err := s.dispatch(ctx, schedule); err != nil {
			s.log.ErrorContext(ctx, "Failed to dispatch schedule",
				logger.ErrorField(err),
				logger.IntField("schedule_id", int(schedule.ID)),
				logger.StringField("job_name", schedule.Job.Name),
			)
		}
	}
	return nil
}

// dispatch records the run, advances the schedule, and hands the job to the
// executor on a bounded goroutine. The executor gets a fresh context so a
// finished HTTP request cannot cancel an in-flight job.
func (s *schedulerService) dispatch(ctx context.Context, schedule model.TaskSchedule) error {
	cronSchedule, err := s.cronParser.Parse(schedule.CronExpression)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", schedule.CronExpression, err)
	}

	now := utils.TimeNowUTC()
	history := &model.TaskExecutionHistory{
		JobID:      schedule.JobID,
		ScheduleID: schedule.ID,
		Status:     model.StatusRunning,
		StartedAt:  now,
	}
	if err := s.jobRepo.CreateTaskExecutionHistory(ctx, history); err != nil {
		return fmt.Errorf("failed to create task history: %w", err)
	}

	schedule.LastExecution = sql.NullTime{Time: now, Valid: true}
	schedule.NextExecution = sql.NullTime{Time: cronSchedule.Next(now), Valid: true}
	if err := s.jobRepo.UpdateTaskSchedule(ctx, &schedule); err != nil {
		return fmt.Errorf("failed to update task schedule: %w", err)
	}

	s.log.DebugContext(ctx, "Running job",
		logger.StringField("job_name", schedule.Job.Name),
		logger.StringField("job_type", schedule.Job.Type),
		logger.IntField("schedule_id", int(schedule.ID)),
		logger.IntField("in_flight", len(s.semaphore)),
	)

	s.semaphore <- struct{}{}
	timeout := time.Duration(schedule.Job.Timeout) * time.Second
	utils.GoSafe(func() {
		defer func() { <-s.semaphore }()

		runCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := s.taskExecutor.Execute(runCtx, history); err != nil {
			s.log.ErrorContext(runCtx, "Task execution failed",
				logger.ErrorField(err),
				logger.IntField("schedule_id", int(schedule.ID)),
			)
		}
	})
	return nil
}

func (s *schedulerService) GetJobSchedule(ctx context.Context, param model.GetJobParam) ([]model.Job, error) {
	return s.jobRepo.Get(ctx, &param)
}

// RunJobTask runs a single job immediately using its first schedule.
func (s *schedulerService) RunJobTask(ctx context.Context, jobID uint) error {
	s.log.InfoContext(ctx, "Running job on demand", logger.IntField("job_id", int(jobID)))

	jobs, err := s.jobRepo.Get(ctx, &model.GetJobParam{IDs: []uint{jobID}})
	if err != nil {
		return fmt.Errorf("failed to find job: %w", err)
	}
	if len(jobs) == 0 {
		return fmt.Errorf("job %d not found", jobID)
	}
	if len(jobs[0].Schedules) == 0 {
		return fmt.Errorf("job %d has no schedule", jobID)
	}
	return s.dispatch(ctx, jobs[0].Schedules[0])
}
