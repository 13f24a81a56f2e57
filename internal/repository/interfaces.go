// Package repository defines the persistence interfaces of the console.
package repository

import (
	"context"
	"time"

	"github.com/stvsteam/regconsole/internal/model"
)

// SessionRepository is the durable storage behind the session store.
// Sessions survive console restarts; the stored token is trusted as-is on
// rehydration and only re-checked when a proxied backend request fails.
type SessionRepository interface {
	// Create persists a session.
	Create(ctx context.Context, session *model.Session) error

	// FindByID returns the session with the given ID, or nil when it does
	// not exist or has expired.
	FindByID(ctx context.Context, id string) (*model.Session, error)

	// DeleteByID removes the session. Deleting an absent session is a no-op.
	DeleteByID(ctx context.Context, id string) error

	// DeleteExpired removes all sessions that expired before the cutoff and
	// returns the number of rows removed.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
