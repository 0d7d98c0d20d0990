package fetcher

import (
	"context"
	"time"

	"github.com/tjfontaine/record-review-gateway/internal/coordinator"
)

// WaitForInitializer blocks until the frontend hands this process its rank
// and account. A zero timeout waits indefinitely.
func WaitForInitializer(ctx context.Context, jobs *coordinator.Jobs, timeout time.Duration) (*coordinator.Initializer, error) {
	return jobs.NextInitializer(ctx, timeout)
}

// PushInitializers queues one bootstrap per account, ranked in order.
func PushInitializers(ctx context.Context, jobs *coordinator.Jobs, accounts []string) error {
	for rank, account := range accounts {
		if err := jobs.PushInitializer(ctx, coordinator.Initializer{ProcessRank: rank, EmailAddress: account}); err != nil {
			return err
		}
	}
	return nil
}
