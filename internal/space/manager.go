package space

import "sync"

// Manager owns every live space, creating one on first join and deleting
// it once its last participant leaves.
type Manager struct {
	mu     sync.Mutex
	cfg    Config
	logger LoggerFn
	hist   HistorySink
	metrics MetricsSink
	spaces map[string]*Space
}

// NewManager constructs a Manager that will apply cfg to every space it
// creates.
func NewManager(cfg Config, logger LoggerFn, hist HistorySink, metrics MetricsSink) *Manager {
	return &Manager{cfg: cfg, logger: logger, hist: hist, metrics: metrics, spaces: make(map[string]*Space)}
}

// GetOrCreate returns the space with id, creating it if necessary.
func (m *Manager) GetOrCreate(id string) *Space {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sp, ok := m.spaces[id]; ok {
		return sp
	}
	sp := New(id, m.cfg, m.logger, m.hist, m.metrics)
	m.spaces[id] = sp
	return sp
}

// Get returns the space with id, if it exists.
func (m *Manager) Get(id string) (*Space, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sp, ok := m.spaces[id]
	return sp, ok
}

// ReleaseIfEmpty deletes the space with id from the manager if it has no
// registered participants, called after a participant leaves.
func (m *Manager) ReleaseIfEmpty(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sp, ok := m.spaces[id]
	if !ok {
		return
	}
	if len(sp.Roster()) == 0 {
		delete(m.spaces, id)
	}
}

// All returns a snapshot of every live space.
func (m *Manager) All() []*Space {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Space, 0, len(m.spaces))
	for _, sp := range m.spaces {
		out = append(out, sp)
	}
	return out
}
