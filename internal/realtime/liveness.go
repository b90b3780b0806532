package realtime

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"chat-sync-service/internal/config"
)

// evictFunc tears down a session, but only while connectionID still holds the
// registry entry. Stale calls are expected and no-op.
type evictFunc func(userID uint, connectionID string, reason string)

// Liveness tracks last-activity per user and evicts sessions that stop
// heartbeating. Two paths lead to eviction: the periodic sweep (no activity
// for longer than IdleTimeout) and a backgrounded grace timer. Both re-check
// the registry before acting, so a session that reconnected or disconnected
// through another path is left alone.
type Liveness struct {
	mu       sync.Mutex
	activity map[uint]time.Time
	pending  map[uint]*time.Timer

	cfg      config.LivenessConfig
	registry *Registry
	evict    evictFunc
}

func NewLiveness(cfg config.LivenessConfig, registry *Registry, evict evictFunc) *Liveness {
	return &Liveness{
		activity: make(map[uint]time.Time),
		pending:  make(map[uint]*time.Timer),
		cfg:      cfg,
		registry: registry,
		evict:    evict,
	}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (l *Liveness) Run(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.Sweep()
		case <-ctx.Done():
			slog.Info("Liveness monitor shutting down")
			return
		}
	}
}

// Touch records activity for the user and cancels any pending grace-period
// eviction. Every heartbeat, setup, and room join lands here.
func (l *Liveness) Touch(userID uint) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.activity[userID] = time.Now()
	l.cancelPending(userID)
}

// Backgrounded schedules a one-shot eviction after the grace period. At most
// one pending timer per user: scheduling again restarts the clock.
func (l *Liveness) Backgrounded(userID uint) {
	conn, ok := l.registry.Resolve(userID)
	if !ok {
		return
	}
	connID := conn.id

	l.mu.Lock()
	defer l.mu.Unlock()

	l.cancelPending(userID)

	var t *time.Timer
	t = time.AfterFunc(l.cfg.BackgroundGrace, func() {
		// Drop the handle first so a late Touch cannot cancel a timer that
		// already fired, then let the conn-id guard decide if this is stale.
		l.mu.Lock()
		if l.pending[userID] == t {
			delete(l.pending, userID)
		}
		l.mu.Unlock()

		l.evict(userID, connID, "background grace expired")
	})
	l.pending[userID] = t

	slog.Debug("Eviction scheduled", "userID", userID, "grace", l.cfg.BackgroundGrace)
}

// Forget drops all liveness state for a user. Called on disconnect.
func (l *Liveness) Forget(userID uint) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.activity, userID)
	l.cancelPending(userID)
}

// cancelPending stops and removes the user's grace timer. Caller holds mu.
// Removal at cancellation keeps a late cancel from racing a newer timer.
func (l *Liveness) cancelPending(userID uint) {
	if t, ok := l.pending[userID]; ok {
		t.Stop()
		delete(l.pending, userID)
	}
}

// Sweep force-evicts every session idle for longer than IdleTimeout.
// Snapshot-then-verify: the connection id is captured in the same critical
// section that determines staleness, and staleness is re-checked under the
// lock right before each evict. A session that heartbeats or re-registers
// while earlier evictions run is skipped, and one that re-registers after the
// re-check carries a different conn id and fails the eviction guard instead.
func (l *Liveness) Sweep() {
	cutoff := time.Now().Add(-l.cfg.IdleTimeout)

	type candidate struct {
		userID uint
		connID string
	}

	l.mu.Lock()
	stale := make([]candidate, 0)
	for userID, last := range l.activity {
		if !last.Before(cutoff) {
			continue
		}
		conn, ok := l.registry.Resolve(userID)
		if !ok {
			// Already gone through another path; drop the orphaned record
			delete(l.activity, userID)
			continue
		}
		stale = append(stale, candidate{userID: userID, connID: conn.id})
	}
	l.mu.Unlock()

	for _, c := range stale {
		l.mu.Lock()
		last, tracked := l.activity[c.userID]
		l.mu.Unlock()
		if !tracked || !last.Before(cutoff) {
			continue
		}

		slog.Info("Evicting idle session", "userID", c.userID, "connectionID", c.connID)
		l.evict(c.userID, c.connID, "idle timeout")
	}
}

// PendingEvictions reports how many grace timers are armed.
func (l *Liveness) PendingEvictions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}
