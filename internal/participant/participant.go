// Package participant models a connected (or lazily-connected) MEW
// participant and the registry of participants per space.
package participant

import (
	"sync"

	"github.com/mewprotocol/gateway/internal/capability"
)

// Sink is the delivery side of a participant's connection, abstracting
// over a live WebSocket, a buffered write channel, or a log-backed virtual
// connection created by lazy auto-connect.
type Sink interface {
	// Send delivers one serialized envelope frame. It must not block
	// indefinitely; slow consumers are the caller's backpressure problem.
	Send(frame []byte) error
	// Close releases any resources held by the sink.
	Close() error
}

// Participant is one member of a space.
type Participant struct {
	ID      string
	Matcher *capability.Matcher

	mu          sync.Mutex
	sink        Sink
	granted     map[string][]string // grantor id -> raw capability strings granted by them
	connected   bool
}

// New constructs a Participant with a compiled capability matcher for its
// base capabilities.
func New(id string, baseCapabilities []string) (*Participant, error) {
	m, err := capability.NewMatcher(baseCapabilities)
	if err != nil {
		return nil, err
	}
	return &Participant{
		ID:      id,
		Matcher: m,
		granted: make(map[string][]string),
	}, nil
}

// Attach binds a live sink to the participant, marking it connected.
func (p *Participant) Attach(sink Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sink = sink
	p.connected = true
}

// Detach removes the participant's sink, marking it disconnected. It
// returns the previously attached sink (or nil) so the caller can close it.
func (p *Participant) Detach() Sink {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.sink
	p.sink = nil
	p.connected = false
	return s
}

// Connected reports whether the participant currently has a live sink.
func (p *Participant) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Send delivers frame to the participant's current sink, if any. It
// returns false when there is no live sink to deliver to (the router
// treats that as a deliverable-but-offline condition, not an error).
func (p *Participant) Send(frame []byte) (bool, error) {
	p.mu.Lock()
	sink := p.sink
	p.mu.Unlock()
	if sink == nil {
		return false, nil
	}
	if err := sink.Send(frame); err != nil {
		return true, err
	}
	return true, nil
}

// Grant records that grantor gave this participant an additional set of
// raw capability strings, and recompiles the participant's effective
// matcher to include them.
func (p *Participant) Grant(grantorID string, rawCaps []string, base []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.granted[grantorID] = append(p.granted[grantorID], rawCaps...)
	return p.recompileLocked(base)
}

// Revoke removes every capability granted by grantorID and recompiles the
// effective matcher.
func (p *Participant) Revoke(grantorID string, base []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.granted, grantorID)
	return p.recompileLocked(base)
}

func (p *Participant) recompileLocked(base []string) error {
	all := make([]string, 0, len(base)+4*len(p.granted))
	all = append(all, base...)
	for _, caps := range p.granted {
		all = append(all, caps...)
	}
	return p.Matcher.Reset(all)
}

// Capabilities returns the participant's current effective capability
// patterns (static plus granted), for reporting in system/welcome payloads.
func (p *Participant) Capabilities() []string {
	return p.Matcher.Capabilities()
}

// GrantedBy returns a snapshot of capabilities currently granted to this
// participant by grantorID.
func (p *Participant) GrantedBy(grantorID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.granted[grantorID]))
	copy(out, p.granted[grantorID])
	return out
}
