package processor

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/consultdesk/bookingagent/internal/database"
	"github.com/consultdesk/bookingagent/internal/logging"
	"github.com/consultdesk/bookingagent/internal/slotcache"
)

const (
	defaultCleanupSchedule = "@every 1h"
	accumulatorMaxAge      = 24 * time.Hour
	historyKeep            = 500
)

// CleanupStats counts the rows removed by one cleanup run.
type CleanupStats struct {
	Accumulators int64
	SlotCaches   int64
	Messages     int64
}

// Janitor periodically removes stale per-conversation state.
type Janitor struct {
	db       *database.DB
	logger   *zap.Logger
	schedule string
	now      func() time.Time
	cron     *cron.Cron
}

// NewJanitor creates a janitor running on a cron schedule such as "@every 1h".
func NewJanitor(db *database.DB, schedule string, logger *zap.Logger) *Janitor {
	if schedule == "" {
		schedule = defaultCleanupSchedule
	}
	return &Janitor{
		db:       db,
		logger:   logging.OrNop(logger),
		schedule: schedule,
		now:      time.Now,
	}
}

// Start registers the cleanup job and starts the scheduler.
func (j *Janitor) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(j.schedule, func() { j.RunOnce() }); err != nil {
		return fmt.Errorf("failed to schedule cleanup %q: %w", j.schedule, err)
	}
	j.cron = c
	c.Start()
	j.logger.Info("Cleanup scheduler started", zap.String("schedule", j.schedule))
	return nil
}

// Stop waits for a running cleanup to finish.
func (j *Janitor) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
}

// RunOnce prunes accumulators idle for a day, slot caches past their TTL
// and conversation history beyond the newest messages.
func (j *Janitor) RunOnce() CleanupStats {
	var stats CleanupStats
	now := j.now().UTC()

	n, err := j.db.PruneStaleAccumulators(now.Add(-accumulatorMaxAge))
	if err != nil {
		j.logger.Warn("Failed to prune accumulators", zap.Error(err))
	}
	stats.Accumulators = n

	n, err = j.db.ClearExpiredSlotCaches(now.Add(-slotcache.TTL))
	if err != nil {
		j.logger.Warn("Failed to clear slot caches", zap.Error(err))
	}
	stats.SlotCaches = n

	n, err = j.db.PruneConversationHistory(historyKeep)
	if err != nil {
		j.logger.Warn("Failed to prune conversation history", zap.Error(err))
	}
	stats.Messages = n

	j.logger.Debug("Cleanup finished",
		zap.Int64("accumulators", stats.Accumulators),
		zap.Int64("slot_caches", stats.SlotCaches),
		zap.Int64("messages", stats.Messages))
	return stats
}
