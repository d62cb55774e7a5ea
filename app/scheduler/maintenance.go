// Package scheduler runs periodic background maintenance over the
// serving state: expiring stale impression reservations and completing
// campaigns whose date window has closed.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/videostreampro/adserver/repository"
)

// MaintenanceScheduler sweeps the impression and campaign tables on a
// fixed interval. Nothing here is load-bearing for correctness: confirm
// rejects stale tokens on its own, and the candidate fetcher excludes
// ended campaigns by date. The sweeps keep stored statuses aligned with
// reality for the analytics read side.
type MaintenanceScheduler struct {
	impressionRepo repository.ImpressionRepository
	campaignRepo   repository.CampaignRepository
	clk            clock.Clock
	logger         *log.Logger
	interval       time.Duration
}

// NewMaintenanceScheduler creates a new maintenance scheduler
func NewMaintenanceScheduler(
	impressionRepo repository.ImpressionRepository,
	campaignRepo repository.CampaignRepository,
	clk clock.Clock,
	logger *log.Logger,
	interval time.Duration,
) *MaintenanceScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &MaintenanceScheduler{
		impressionRepo: impressionRepo,
		campaignRepo:   campaignRepo,
		clk:            clk,
		logger:         logger,
		interval:       interval,
	}
}

// Start launches the sweep loop and returns a cancel function that
// stops it.
func (s *MaintenanceScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (s *MaintenanceScheduler) runOnce(ctx context.Context) {
	now := s.clk.Now().UTC()

	expired, err := s.impressionRepo.ExpireStale(ctx, now)
	if err != nil {
		s.logger.Printf("maintenance: failed to expire stale impressions: %v", err)
	} else if expired > 0 {
		s.logger.Printf("maintenance: expired %d stale impression reservations", expired)
	}

	completed, err := s.campaignRepo.CompleteEnded(ctx, now)
	if err != nil {
		s.logger.Printf("maintenance: failed to complete ended campaigns: %v", err)
	} else if completed > 0 {
		s.logger.Printf("maintenance: completed %d ended campaigns", completed)
	}
}
