package session

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// FlushScheduler runs periodic inactive-session flushes on a cron
// schedule.
type FlushScheduler struct {
	manager *Manager
	runner  *cron.Cron
}

// NewFlushScheduler validates the expression and builds the scheduler.
// Standard five-field cron expressions.
func NewFlushScheduler(manager *Manager, expr string) (*FlushScheduler, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(expr); err != nil {
		return nil, fmt.Errorf("invalid flush schedule: %w", err)
	}

	runner := cron.New()
	fs := &FlushScheduler{manager: manager, runner: runner}
	if _, err := runner.AddFunc(expr, fs.flushInactive); err != nil {
		return nil, fmt.Errorf("failed to schedule flush: %w", err)
	}
	return fs, nil
}

// Start begins running scheduled flushes.
func (fs *FlushScheduler) Start() {
	fs.runner.Start()
}

// Stop halts the schedule, waiting for a running flush to finish.
func (fs *FlushScheduler) Stop() {
	<-fs.runner.Stop().Done()
}

func (fs *FlushScheduler) flushInactive() {
	log.Info().Msg("Running scheduled flush of inactive sessions")
	if err := fs.manager.Flush(context.Background(), true); err != nil {
		log.Error().Err(err).Msg("Scheduled flush failed")
	}
}
