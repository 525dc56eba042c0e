package flagpole

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/flagpole-io/flagpole-go-client/flagengine"
)

// DefinitionsFetcher retrieves a full flag definitions snapshot from the
// Flagpole API. Implementations must honor ctx cancellation.
type DefinitionsFetcher interface {
	FetchDefinitions(ctx context.Context) (*flagengine.Snapshot, error)
}

// FlagPoller refreshes a FlagCache from a DefinitionsFetcher on a background
// goroutine. Start performs one synchronous best-effort fetch before the
// periodic loop begins; each later fetch runs under its own timeout so a slow
// server cannot starve the next tick. Fetch failures are logged and the
// previous snapshot is retained: stale definitions beat none.
type FlagPoller struct {
	fetcher  DefinitionsFetcher
	cache    *FlagCache
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewFlagPoller creates a poller publishing into cache. It does not start
// polling until Start is called.
func NewFlagPoller(fetcher DefinitionsFetcher, cache *FlagCache, interval, timeout time.Duration, log *slog.Logger) *FlagPoller {
	if log == nil {
		log = slog.Default()
	}
	return &FlagPoller{
		fetcher:  fetcher,
		cache:    cache,
		interval: interval,
		timeout:  timeout,
		log:      log.With(slog.String("worker", "flag_poller")),
	}
}

// Start fetches definitions once and launches the periodic refresh loop.
// A failed initial fetch is logged, not fatal; the cache keeps its prior
// contents. Calling Start on a running poller is a no-op.
func (p *FlagPoller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true

	p.log.Info("starting flag poller", slog.Duration("interval", p.interval))
	if err := p.refresh(ctx); err != nil {
		p.log.Warn("initial definitions fetch failed, will retry on next tick", "error", err)
	}

	go p.run(ctx)
}

// Stop cancels the refresh loop and waits for it to exit. No cache writes
// occur after Stop returns. Calling Stop on a stopped poller is a no-op.
func (p *FlagPoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.cancel()
	<-p.done
	p.running = false
	p.log.Info("stopped")
}

// IsRunning reports whether the refresh loop is active.
func (p *FlagPoller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *FlagPoller) run(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.refresh(ctx); err != nil {
				p.log.Warn("failed to refresh definitions, keeping previous snapshot", "error", err)
			}
		}
	}
}

// refresh fetches one snapshot and publishes it. The network call happens
// outside any cache lock; only the final swap is guarded.
func (p *FlagPoller) refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	snapshot, err := p.fetcher.FetchDefinitions(ctx)
	if err != nil {
		return err
	}
	p.cache.Replace(snapshot)
	p.log.Debug("updated flag cache", slog.Int("flag_count", len(snapshot.Flags)))
	return nil
}
