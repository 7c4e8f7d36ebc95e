// Package backfill retries geocoding for help requests whose location could
// not be resolved at submit time. Requests are never blocked on the
// geocoder, so a Nominatim outage leaves null-coordinate rows behind; this
// poller sweeps them up once the geocoder recovers.
package backfill

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"reliefnet/internal/geocode"
	"reliefnet/internal/models"
	"reliefnet/internal/repository"
	"reliefnet/internal/worker"
)

const batchSize = 50

type Poller struct {
	repo     repository.HelpRequestRepository
	resolver geocode.Resolver
	interval time.Duration
	pool     *worker.Pool[models.HelpRequest]
	wg       sync.WaitGroup
}

func NewPoller(repo repository.HelpRequestRepository, resolver geocode.Resolver, interval time.Duration, workers, bufferSize int) *Poller {
	p := &Poller{
		repo:     repo,
		resolver: resolver,
		interval: interval,
	}
	p.pool = worker.NewPool(workers, bufferSize, p.process)
	return p
}

func (p *Poller) Start(ctx context.Context) {
	p.pool.Start(ctx)

	p.wg.Add(1)
	go p.run(ctx)
}

func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()
	slog.Info("starting geocode backfill poller", "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Initial sweep
	p.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("backfill poller shutting down")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	pending, err := p.repo.ListHelpRequests(ctx, repository.HelpRequestFilter{
		Ungeocoded: true,
		Limit:      batchSize,
	})
	if err != nil {
		slog.Error("backfill poll failed", "error", err)
		return
	}

	for _, r := range pending {
		p.pool.Submit(r)
	}

	slog.Debug("backfill poll complete", "pending", len(pending))
}

func (p *Poller) process(ctx context.Context, r models.HelpRequest) error {
	coords := p.resolver.Resolve(ctx, r.Location)
	if !coords.Resolved() {
		// Still unresolvable; a later sweep will retry
		return nil
	}

	if err := p.repo.UpdateCoordinates(ctx, r.ID, coords); err != nil {
		slog.Error("error updating backfilled coordinates", "id", r.ID, "error", err)
		return err
	}

	slog.Info("backfilled coordinates", "id", r.ID, "location", r.Location)
	return nil
}

func (p *Poller) Stop() {
	p.wg.Wait()
	p.pool.Stop()
	slog.Info("backfill poller stopped")
}
