package server

import (
	"context"
	"time"
)

// RunSweeper removes idle sessions and runs the store cleanups every interval until ctx is done.
func (s *Server) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.deps.Sessions.IdleTimeout()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Server) sweep(ctx context.Context) {
	n, err := s.deps.Sessions.SweepExpired(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("session sweep failed")
	}
	s.deps.Metrics.SessionsSwept(n)

	for _, cleanup := range s.deps.Cleanups {
		cleanup(ctx)
	}
	s.throttle.prune(time.Now().Add(-time.Hour))
}
