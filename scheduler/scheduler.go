package scheduler

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"dealfinder/config"
)

// Triggerable allows workers to be triggered manually
type Triggerable interface {
	Trigger()
}

// Scheduler fires registered workers on the configured cron schedule
type Scheduler struct {
	cfg  config.JobsConfig
	cron *cron.Cron

	retentionWorker Triggerable
}

func New(cfg config.JobsConfig, retention Triggerable) *Scheduler {
	return &Scheduler{
		cfg:             cfg,
		cron:            cron.New(),
		retentionWorker: retention,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.SweepCron == "" || s.retentionWorker == nil {
		log.Println("No sweep schedule configured, finished jobs are kept until restart")
		return nil
	}

	log.Printf("Starting scheduler with sweep cron: %s", s.cfg.SweepCron)
	_, err := s.cron.AddFunc(s.cfg.SweepCron, func() {
		if ctx.Err() != nil {
			return
		}
		s.retentionWorker.Trigger()
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}
