package model

import (
	"database/sql"
	"time"
)

// TaskSchedule is a cron entry for a job. NextExecution is advanced by the
// scheduler after each run so schedules survive restarts.
type TaskSchedule struct {
	ID             uint   `gorm:"primaryKey"`
	JobID          uint   `gorm:"not null"`
	CronExpression string `gorm:"type:varchar(100)"`
	NextExecution  sql.NullTime
	LastExecution  sql.NullTime
	IsActive       bool
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`

	Job Job `gorm:"foreignKey:JobID;references:ID"`
}

func (TaskSchedule) TableName() string {
	return "task_schedules"
}
