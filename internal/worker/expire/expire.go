// Package expire purges expired sessions from durable storage and from the
// store's in-memory map.
package expire

import (
	"context"
	"log/slog"
	"time"

	"github.com/stvsteam/regconsole/internal/repository"
)

// MemoryPurger evicts expired in-memory session snapshots.
// Implemented by the session store.
type MemoryPurger interface {
	PurgeExpired() int
}

// Job deletes sessions whose expiry has passed, both the durable rows and
// the in-memory snapshots. The store already refuses expired sessions on
// read, but a session that is never read again would otherwise stay in
// memory and inflate the active-session gauge.
type Job struct {
	repo   repository.SessionRepository
	memory MemoryPurger
	logger *slog.Logger
}

// NewJob creates a purge job.
func NewJob(repo repository.SessionRepository, memory MemoryPurger, logger *slog.Logger) *Job {
	return &Job{repo: repo, memory: memory, logger: logger}
}

// Run performs one purge pass.
func (j *Job) Run(ctx context.Context) error {
	evicted := j.memory.PurgeExpired()

	n, err := j.repo.DeleteExpired(ctx, time.Now())
	if err != nil {
		return err
	}

	if n > 0 || evicted > 0 {
		j.logger.Info("expired sessions purged",
			slog.Int64("rows", n),
			slog.Int("in_memory", evicted),
		)
	}
	return nil
}

// Start runs the purge on the given interval until the context is done.
// A pass runs immediately on start.
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("session purge failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("session purge failed", slog.String("error", err.Error()))
			}
		}
	}
}
