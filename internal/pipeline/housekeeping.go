package pipeline

import (
	"context"
	"time"

	"scenecast/internal/logging"
)

// PurgeExpired removes completed jobs older than the configured retention.
// A zero retention keeps completed jobs forever.
func (c *Controller) PurgeExpired(ctx context.Context) (int64, error) {
	retention := c.cfg.CompletedRetention()
	if retention <= 0 {
		return 0, nil
	}
	removed, err := c.store.PurgeCompletedBefore(ctx, c.now().Add(-retention))
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		c.logger.Info("expired jobs purged",
			logging.String(logging.FieldEventType, "jobs_expired"),
			logging.Int64("removed", removed),
			logging.Duration("retention", retention),
		)
	}
	return removed, nil
}

// RunHousekeeping purges expired jobs on the configured interval until ctx
// is done. It returns immediately when housekeeping is disabled.
func (c *Controller) RunHousekeeping(ctx context.Context) {
	interval := c.cfg.PurgeInterval()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.PurgeExpired(ctx); err != nil && ctx.Err() == nil {
				logging.WarnWithContext(c.logger, "housekeeping purge failed", "housekeeping_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "expired jobs remain until the next run"),
				)
			}
		}
	}
}
