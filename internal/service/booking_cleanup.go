package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// BookingCleanup periodically deletes drafts that were abandoned before an
// appointment got scheduled
type BookingCleanup struct {
	store BookingStore
	ttl   time.Duration
	cron  *cron.Cron
	now   func() time.Time
}

// NewBookingCleanup schedules the cleanup with a standard five field cron
// expression. Drafts untouched for longer than ttl are removed
func NewBookingCleanup(store BookingStore, schedule string, ttl time.Duration) (*BookingCleanup, error) {
	c := &BookingCleanup{
		store: store,
		ttl:   ttl,
		cron:  cron.New(),
		now:   time.Now,
	}

	if _, err := c.cron.AddFunc(schedule, c.run); err != nil {
		return nil, fmt.Errorf("failed to parse cleanup schedule %q, %w", schedule, err)
	}

	zap.L().Debug("Booking cleanup attached", zap.String("schedule", schedule), zap.Duration("draft_ttl", ttl))

	return c, nil
}

func (c *BookingCleanup) Start() {
	c.cron.Start()
}

// Stop waits for a running cleanup to finish
func (c *BookingCleanup) Stop() {
	<-c.cron.Stop().Done()
}

func (c *BookingCleanup) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := c.Run(ctx); err != nil {
		zap.L().Error("Failed to cleanup booking drafts", zap.Error(err))
	}
}

// Run performs one cleanup pass and returns the number of deleted drafts
func (c *BookingCleanup) Run(ctx context.Context) (int64, error) {
	n, err := c.store.DeleteStale(ctx, c.now().Add(-c.ttl))
	if err != nil {
		return 0, err
	}

	if n > 0 {
		zap.L().Debug("Cleaned up abandoned booking drafts", zap.Int64("deleted", n))
	}

	return n, nil
}
