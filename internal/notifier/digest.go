package notifier

import (
	"context"
	"time"

	"github.com/yourusername/milemarker/internal/tracker"
)

// RunDigest sends a progress digest every DigestInterval until ctx is done.
// snapshot must be safe to call concurrently with the job. Send errors go to
// onError, which may be nil.
func (n *Notifier) RunDigest(ctx context.Context, runID string, snapshot func() tracker.Snapshot, onError func(error)) {
	interval := n.Config.DigestInterval
	if interval <= 0 || !n.Active() {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := n.SendDigest(runID, snapshot()); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}
