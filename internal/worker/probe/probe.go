// Package probe checks registry backend availability in the background.
package probe

import (
	"context"
	"log/slog"
	"time"

	"github.com/stvsteam/regconsole/internal/model"
)

// Pinger checks whether the backend answers. Implemented by the registry
// client; the probe only needs a yes or no.
type Pinger interface {
	Ping(ctx context.Context) *model.APIError
}

// StatusSink receives the latest availability outcome. Implemented by the
// metrics collector.
type StatusSink interface {
	SetBackendUp(up bool)
}

// Prober pings the backend on an interval and reports the outcome. Failed
// probes back off exponentially up to maxBackoff so a long outage does not
// hammer the backend during recovery.
type Prober struct {
	pinger     Pinger
	sink       StatusSink
	logger     *slog.Logger
	interval   time.Duration
	maxBackoff time.Duration
}

// NewProber creates a Prober with the given healthy-state interval.
func NewProber(pinger Pinger, sink StatusSink, logger *slog.Logger, interval time.Duration) *Prober {
	return &Prober{
		pinger:     pinger,
		sink:       sink,
		logger:     logger,
		interval:   interval,
		maxBackoff: 10 * interval,
	}
}

// Start probes until the context is done. The first probe runs immediately.
func (p *Prober) Start(ctx context.Context) {
	wait := p.interval
	consecutiveFailures := 0

	for {
		if err := p.probe(ctx); err != nil {
			consecutiveFailures++
			wait = p.backoff(consecutiveFailures)
			p.logger.Warn("backend probe failed",
				slog.String("error", err.Error()),
				slog.Int("consecutive_failures", consecutiveFailures),
				slog.Duration("next_probe_in", wait),
			)
		} else {
			if consecutiveFailures > 0 {
				p.logger.Info("backend recovered",
					slog.Int("failures_during_outage", consecutiveFailures),
				)
			}
			consecutiveFailures = 0
			wait = p.interval
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// probe performs one availability check and reports it to the sink.
func (p *Prober) probe(ctx context.Context) error {
	apiErr := p.pinger.Ping(ctx)
	if p.sink != nil {
		p.sink.SetBackendUp(apiErr == nil)
	}
	if apiErr != nil {
		return apiErr
	}
	return nil
}

// backoff returns the wait after the given number of consecutive failures.
func (p *Prober) backoff(failures int) time.Duration {
	wait := p.interval
	for i := 1; i < failures; i++ {
		wait *= 2
		if wait >= p.maxBackoff {
			return p.maxBackoff
		}
	}
	return wait
}
