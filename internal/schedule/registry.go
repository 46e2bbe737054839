package schedule

import (
	"sync"
	"time"
)

// Registry holds the current schedule snapshot per channel. Reads return the
// snapshot pointer; a refresh replaces it atomically, so readers holding an
// older snapshot continue uninterrupted.
//
// Refreshes of the same channel serialize through a per-channel mutex while
// different channels refresh concurrently.
type Registry struct {
	mu        sync.RWMutex
	schedules map[string]*Schedule

	lockMu       sync.Mutex
	refreshLocks map[string]*sync.Mutex
}

// NewRegistry creates an empty schedule registry.
func NewRegistry() *Registry {
	return &Registry{
		schedules:    make(map[string]*Schedule),
		refreshLocks: make(map[string]*sync.Mutex),
	}
}

// Get returns the current snapshot for the channel, or nil.
func (r *Registry) Get(channelID string) *Schedule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.schedules[channelID]
}

// Set atomically replaces the channel's snapshot.
func (r *Registry) Set(s *Schedule) {
	r.mu.Lock()
	r.schedules[s.ChannelID] = s
	r.mu.Unlock()
}

// Snapshot returns the current snapshots of all channels.
func (r *Registry) Snapshot() map[string]*Schedule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*Schedule, len(r.schedules))
	for id, s := range r.schedules {
		out[id] = s
	}
	return out
}

// RefreshLock returns the mutex serializing refreshes of one channel.
func (r *Registry) RefreshLock(channelID string) *sync.Mutex {
	r.lockMu.Lock()
	defer r.lockMu.Unlock()
	lock, ok := r.refreshLocks[channelID]
	if !ok {
		lock = &sync.Mutex{}
		r.refreshLocks[channelID] = lock
	}
	return lock
}

// Resolve resolves the airing entry for a channel at now.
func (r *Registry) Resolve(channelID string, now time.Time) (Entry, time.Duration, error) {
	s := r.Get(channelID)
	if s == nil {
		return Entry{}, 0, ErrNoSchedule
	}
	return s.Resolve(now)
}
