package participant

import (
	"fmt"
	"sort"
	"sync"
)

// Registry tracks every participant currently joined to a single space.
type Registry struct {
	mu      sync.RWMutex
	members map[string]*Participant
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{members: make(map[string]*Participant)}
}

// ErrDuplicate is returned by Add when id is already registered and
// currently connected.
var ErrDuplicate = fmt.Errorf("participant: duplicate id")

// Add registers p. If a participant with the same id already exists and is
// connected, Add fails with ErrDuplicate per the spec's duplicate-identity
// rule; a disconnected placeholder (e.g. one created for lazy auto-connect)
// is replaced.
func (r *Registry) Add(p *Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.members[p.ID]; ok && existing.Connected() {
		return ErrDuplicate
	}
	r.members[p.ID] = p
	return nil
}

// Get returns the participant with id, if present.
func (r *Registry) Get(id string) (*Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.members[id]
	return p, ok
}

// GetOrCreate returns the existing participant with id, or creates and
// registers a disconnected one with baseCapabilities if none exists yet.
func (r *Registry) GetOrCreate(id string, baseCapabilities []string) (*Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.members[id]; ok {
		return p, nil
	}
	p, err := New(id, baseCapabilities)
	if err != nil {
		return nil, err
	}
	r.members[id] = p
	return p, nil
}

// Remove deletes id from the registry.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, id)
}

// All returns a stable-ordered snapshot of every registered participant.
func (r *Registry) All() []*Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Participant, 0, len(r.members))
	for _, p := range r.members {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ConnectedCount returns the number of participants with a live sink.
func (r *Registry) ConnectedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, p := range r.members {
		if p.Connected() {
			n++
		}
	}
	return n
}
