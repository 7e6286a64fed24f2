package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// newQueueExpiryTask evicts customers who waited longer than routing.queue_ttl and tells
// them to pick a language again. It does nothing while the TTL is zero.
func newQueueExpiryTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", TaskQueueExpiry)

	return func(ctx context.Context) error {
		expired := deps.Router.ExpireQueue(ctx, time.Now())
		if len(expired) == 0 {
			log.DebugContext(ctx, "No expired queue entries")
			return nil
		}

		var errs []error
		for _, entry := range expired {
			err := deps.Notifier.SendMenu(ctx, entry.ParticipantID, deps.Config.Messages.QueueExpired, deps.Config.Routing.Languages)
			if err != nil {
				log.ErrorContext(ctx, "Failed to notify expired customer", "error", err, "participant_id", entry.ParticipantID)
				errs = append(errs, err)
			}
		}

		log.InfoContext(ctx, "Queue expiry completed", "expired", len(expired), "notify_failures", len(errs))
		if len(errs) > 0 {
			return fmt.Errorf("queue expiry: %w", errors.Join(errs...))
		}
		return nil
	}
}
