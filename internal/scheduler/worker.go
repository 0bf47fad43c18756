package scheduler

import (
	"context"
	"fmt"
	"time"

	"fantopark_backend/platform/config"
	"fantopark_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
)

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	followUps *FollowUps
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, followUps *FollowUps, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		mux:       mux,
		followUps: followUps,
		log:       log,
	}

	mux.HandleFunc(TaskLeadFollowUpDue, w.handleLeadFollowUpDue)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleLeadFollowUpDue(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseLeadFollowUpDuePayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	return w.followUps.HandleDue(ctx, leadID, payload.FollowUpAt)
}

// Sweeper runs the overdue follow-up sweep on a cron schedule.
type Sweeper struct {
	cron      *cron.Cron
	followUps *FollowUps
	log       *logger.Logger
	timeout   time.Duration
}

func NewSweeper(cfg config.SchedulerConfig, followUps *FollowUps, log *logger.Logger) (*Sweeper, error) {
	s := &Sweeper{
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		followUps: followUps,
		log:       log,
		timeout:   5 * time.Minute,
	}
	spec := cfg.GetFollowUpSweepSchedule()
	if _, err := s.cron.AddFunc(spec, s.sweep); err != nil {
		return nil, fmt.Errorf("invalid follow-up sweep schedule %q: %w", spec, err)
	}
	return s, nil
}

// Run sweeps once, then on schedule until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	if s == nil {
		return
	}
	s.sweep()
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.followUps.Sweep(ctx); err != nil {
		s.log.Warn("follow-up sweep failed", "error", err)
	}
}
