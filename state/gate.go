package state

import (
	"log/slog"
	"time"

	"mixer-link/nvs"
)

// SaveThrottle is the minimum time between two persisted writes.
const SaveThrottle = 10000 * time.Millisecond

// Gate persists the store only when it is dirty and at most once per
// SaveThrottle, to bound flash wear.
type Gate struct {
	store    *Store
	kv       nvs.Store
	log      *slog.Logger
	lastSave time.Time
}

// NewGate creates a gate whose throttle window starts at now.
func NewGate(store *Store, kv nvs.Store, now time.Time, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{store: store, kv: kv, log: logger, lastSave: now}
}

// Tick saves if the state is dirty and the throttle interval has elapsed.
// It reports whether a write happened.
func (g *Gate) Tick(now time.Time) bool {
	if !g.store.Snapshot().Dirty || now.Sub(g.lastSave) < SaveThrottle {
		return false
	}
	return g.save(now)
}

// Flush saves immediately regardless of the throttle.
func (g *Gate) Flush(now time.Time) bool {
	return g.save(now)
}

func (g *Gate) save(now time.Time) bool {
	// Failed saves also restart the window so a broken store is not hammered.
	g.lastSave = now
	if err := g.store.Save(g.kv); err != nil {
		g.log.Error("error saving state", "err", err)
		return false
	}
	g.log.Debug("state saved")
	return true
}
