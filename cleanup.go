package auth

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultCleanupSchedule runs the purge hourly.
const DefaultCleanupSchedule = "@every 1h"

// Cleanup periodically purges expired refresh tokens and stale reset tokens.
type Cleanup struct {
	refresh *RefreshTokens
	resets  *PasswordResets
	logger  Logger
	now     func() time.Time
	cron    *cron.Cron
}

// NewCleanup creates the job. Call Start to schedule it.
func NewCleanup(refresh *RefreshTokens, resets *PasswordResets, logger Logger) *Cleanup {
	return &Cleanup{
		refresh: refresh,
		resets:  resets,
		logger:  loggerOrDefault(logger),
		now:     time.Now,
		cron:    cron.New(),
	}
}

// Start schedules the job. An empty schedule uses DefaultCleanupSchedule.
func (c *Cleanup) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultCleanupSchedule
	}
	if _, err := c.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		c.Run(ctx)
	}); err != nil {
		return Internal(err, "invalid cleanup schedule")
	}
	c.cron.Start()
	return nil
}

// Stop waits for a running purge to finish.
func (c *Cleanup) Stop() {
	<-c.cron.Stop().Done()
}

// Run purges once and returns the number of rows removed.
func (c *Cleanup) Run(ctx context.Context) int64 {
	now := c.now()
	var total int64

	if c.refresh != nil {
		n, err := c.refresh.PurgeExpired(ctx, now)
		if err != nil {
			c.logger.Error("failed to purge refresh tokens", "error", err)
		}
		total += n
	}

	if c.resets != nil {
		n, err := c.resets.PurgeExpired(ctx, now)
		if err != nil {
			c.logger.Error("failed to purge password reset tokens", "error", err)
		}
		total += n
	}

	c.logger.Info("auth cleanup finished", "removed", total)
	return total
}
