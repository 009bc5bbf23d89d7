package matching

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"amoria/internal/store"
)

// ExpireOldMatches sweeps due matches into the expired state and
// returns how many transitioned. Complements the lazy per-read expiry
// so aggregate counts do not drift forever.
func (s *Service) ExpireOldMatches(ctx context.Context) (int, error) {
	return s.matches.ExpireDueMatches(ctx, s.now())
}

// Health reports system-wide ledger counts for the admin surface.
func (s *Service) Health(ctx context.Context) (*store.MatchHealth, error) {
	return s.matches.MatchHealthCounts(ctx, s.now())
}

// StartJanitor runs the expiry sweep on a fixed interval until the
// context is cancelled.
func (s *Service) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.ExpireOldMatches(ctx)
				if err != nil {
					log.Error().Err(err).Msg("match expiry sweep failed")
					continue
				}
				if n > 0 {
					log.Info().Int("expired", n).Msg("match expiry sweep")
				}
			}
		}
	}()
}
