package sweeper

import (
	"context"
	"log"
	"time"

	"github.com/aridsondez/SHARE-RELAY/internal/queue"
)

// Sweeper periodically removes expired shares so stale work is purged even
// when no flush trigger fires for a long time.
type Sweeper struct {
	mgr      *queue.Manager
	interval time.Duration
	stopCh   chan struct{}
}

func New(mgr *queue.Manager, interval time.Duration) *Sweeper {
	return &Sweeper{
		mgr:      mgr,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("sweeper started, interval: %s", s.interval)

	for {
		select {
		case <-ctx.Done():
			log.Printf("sweeper stopped (context cancelled)")
			return

		case <-s.stopCh:
			log.Printf("sweeper stopped (stop signal)")
			return

		case <-ticker.C:
			if removed := s.mgr.ClearExpired(ctx); removed > 0 {
				log.Printf("sweeper removed %d expired share(s)", removed)
			}
		}
	}
}

func (s *Sweeper) Stop() {
	close(s.stopCh)
}
