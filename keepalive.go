package raop

import (
	"context"
	"time"

	"github.com/airraop/raop/metrics"
	"github.com/rs/zerolog"
)

// runKeepAlive issues FEEDBACK every interval until ctx is cancelled.
// Protocol errors are logged and do not stop the task.
func runKeepAlive(ctx context.Context, rtsp RTSPCollaborator, interval time.Duration, reg *metrics.Registry, log zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := rtsp.Feedback(ctx, true); err != nil {
				log.Warn().Err(err).Msg("keep-alive feedback failed")
				if reg != nil {
					reg.KeepAliveFailures.Inc()
				}
			}
		}
	}
}
