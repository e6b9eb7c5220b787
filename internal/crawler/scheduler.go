package crawler

import (
	"context"
	"time"

	"skyquery-bot/internal/logger"

	"github.com/go-co-op/gocron"
)

// RecrawlTag identifies the periodic recrawl job.
const RecrawlTag = "recrawl"

// Scheduler manages scheduled crawling jobs
type Scheduler struct {
	scheduler *gocron.Scheduler
	cancel    context.CancelFunc
	ctx       context.Context
}

// NewScheduler creates a new crawler scheduler
func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	s.SingletonModeAll()

	return &Scheduler{
		scheduler: s,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop stops the scheduler and cancels the context handed to running jobs
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	if s.cancel != nil {
		s.cancel()
	}
}

// ScheduleJob schedules a job on a cron expression. Job errors are logged.
func (s *Scheduler) ScheduleJob(tag, cronExpr string, job func(ctx context.Context) error) error {
	_, err := s.scheduler.Cron(cronExpr).Tag(tag).Do(s.wrap(tag, job))
	return err
}

// ScheduleInterval schedules a job to run at regular intervals
func (s *Scheduler) ScheduleInterval(tag string, every time.Duration, job func(ctx context.Context) error) error {
	_, err := s.scheduler.Every(every).Tag(tag).Do(s.wrap(tag, job))
	return err
}

// RemoveJob removes a scheduled job by tag
func (s *Scheduler) RemoveJob(tag string) error {
	return s.scheduler.RemoveByTag(tag)
}

// Jobs returns all scheduled jobs
func (s *Scheduler) Jobs() []*gocron.Job {
	return s.scheduler.Jobs()
}

func (s *Scheduler) wrap(tag string, job func(ctx context.Context) error) func() {
	return func() {
		start := time.Now()
		if err := job(s.ctx); err != nil {
			logger.Error("Scheduled job failed", "job", tag, "error", err, "duration", time.Since(start))
			return
		}
		logger.Info("Scheduled job finished", "job", tag, "duration", time.Since(start))
	}
}

// ScheduleRecrawl starts a scheduler that runs enqueue on cronExpr.
func ScheduleRecrawl(cronExpr string, enqueue func(ctx context.Context) error) (*Scheduler, error) {
	scheduler := NewScheduler()
	if err := scheduler.ScheduleJob(RecrawlTag, cronExpr, enqueue); err != nil {
		return nil, err
	}
	scheduler.Start()
	logger.Info("Recrawl scheduled", "cron", cronExpr)
	return scheduler, nil
}
