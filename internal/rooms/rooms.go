package rooms

import "sync"

// Channel names are opaque strings: "rider-{id}" and "driver-{id}" for
// private channels, plus the shared broadcast group below.
const Drivers = "drivers"

// Private builds the private channel name for a user.
func Private(userType, userID string) string {
	return userType + "-" + userID
}

// Registry tracks which connection belongs to which logical channel.
// A connection may sit in several channels at once; membership is kept in
// both directions so LeaveAll on disconnect never leaves orphans behind.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]map[string]struct{} // channel -> set of connection ids
	joined   map[string]map[string]struct{} // connection id -> set of channels
}

func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]map[string]struct{}),
		joined:   make(map[string]map[string]struct{}),
	}
}

// Join adds the connection to the channel. Joining twice is the same as
// joining once.
func (r *Registry) Join(connID, channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.channels[channel] == nil {
		r.channels[channel] = make(map[string]struct{})
	}
	r.channels[channel][connID] = struct{}{}
	if r.joined[connID] == nil {
		r.joined[connID] = make(map[string]struct{})
	}
	r.joined[connID][channel] = struct{}{}
}

func (r *Registry) Leave(connID, channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(connID, channel)
}

// LeaveAll removes the connection from every channel it joined. It is the
// only cleanup path on disconnect.
func (r *Registry) LeaveAll(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for channel := range r.joined[connID] {
		r.leaveLocked(connID, channel)
	}
}

func (r *Registry) leaveLocked(connID, channel string) {
	if members, ok := r.channels[channel]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.channels, channel)
		}
	}
	if chans, ok := r.joined[connID]; ok {
		delete(chans, channel)
		if len(chans) == 0 {
			delete(r.joined, connID)
		}
	}
}

// MembersOf returns the connection ids currently in the channel.
func (r *Registry) MembersOf(channel string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.channels[channel]
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}
