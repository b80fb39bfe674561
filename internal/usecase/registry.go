package usecase

import (
	"fmt"
	"sync"
	"time"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
)

const (
	defaultFinishedRetention = time.Minute
	defaultIdleTimeout       = time.Hour
)

type registryEntry struct {
	session *Session
	seen    time.Time
}

// SessionRegistry keeps the live sessions of this process, keyed by session id.
// Finished sessions are dropped once nobody has read them for the retention window,
// unfinished ones after the idle timeout. The sweep runs on Add.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*registryEntry

	finishedRetention time.Duration
	idleTimeout       time.Duration
	now               func() time.Time
}

type RegistryOption func(*SessionRegistry)

func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(that *SessionRegistry) {
		that.now = now
	}
}

// WithRegistryRetention sets how long finished and idle sessions are kept.
func WithRegistryRetention(finished, idle time.Duration) RegistryOption {
	return func(that *SessionRegistry) {
		that.finishedRetention = finished
		that.idleTimeout = idle
	}
}

func NewSessionRegistry(opts ...RegistryOption) *SessionRegistry {
	registry := &SessionRegistry{
		sessions:          make(map[string]*registryEntry),
		finishedRetention: defaultFinishedRetention,
		idleTimeout:       defaultIdleTimeout,
		now:               time.Now,
	}

	for _, opt := range opts {
		opt(registry)
	}

	return registry
}

func (that *SessionRegistry) Add(session *Session) {
	that.mu.Lock()
	now := that.now()
	evicted := that.sweepLocked(now)
	that.sessions[session.id] = &registryEntry{session: session, seen: now}
	that.mu.Unlock()

	for _, old := range evicted {
		old.stopWatch()
	}
}

// Get returns the session only to the user that owns it.
func (that *SessionRegistry) Get(id, userID string) (*Session, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	entry, ok := that.sessions[id]
	if !ok || entry.session.user.ID != userID {
		return nil, fmt.Errorf("%w: %s", apperror.ErrSessionNotFound, id)
	}

	entry.seen = that.now()

	return entry.session, nil
}

func (that *SessionRegistry) Remove(id string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.sessions, id)
}

func (that *SessionRegistry) Len() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.sessions)
}

// Sweep drops expired sessions and reports how many were removed.
func (that *SessionRegistry) Sweep() int {
	that.mu.Lock()
	evicted := that.sweepLocked(that.now())
	that.mu.Unlock()

	for _, old := range evicted {
		old.stopWatch()
	}

	return len(evicted)
}

func (that *SessionRegistry) sweepLocked(now time.Time) []*Session {
	var evicted []*Session

	for id, entry := range that.sessions {
		idle := now.Sub(entry.seen)

		expired := idle >= that.idleTimeout
		if !expired && idle >= that.finishedRetention {
			expired = entry.session.IsFinished()
		}

		if expired {
			delete(that.sessions, id)
			evicted = append(evicted, entry.session)
		}
	}

	return evicted
}
