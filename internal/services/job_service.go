package services

import (
	"context"
	"time"

	"github.com/sjperalta/fintera-posting/internal/jobs"
)

// Scheduled job names
const (
	JobPurgeStatistics = "statistics-cache-purge"
)

type JobService struct {
	worker   *jobs.Worker
	statsSvc *StatisticsService
}

func NewJobService(worker *jobs.Worker, statsSvc *StatisticsService) *JobService {
	return &JobService{
		worker:   worker,
		statsSvc: statsSvc,
	}
}

// StartSchedules registers the recurring maintenance jobs
func (s *JobService) StartSchedules(purgeEvery time.Duration) {
	s.worker.ScheduleEveryImmediate(JobPurgeStatistics, purgeEvery, func(ctx context.Context) error {
		return s.statsSvc.PurgeExpired(ctx)
	})
}

func (s *JobService) GetStatus() map[string]interface{} {
	stats := s.worker.GetStats()
	return map[string]interface{}{
		"active_jobs":    stats.ActiveJobs,
		"completed_jobs": stats.CompletedJobs,
		"failed_jobs":    stats.FailedJobs,
		"queue_length":   stats.QueueLength,
		"workers":        stats.Workers,
	}
}
