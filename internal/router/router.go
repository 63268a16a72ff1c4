// Package router is the connection-facing entry point for inbound frames:
// it parses and authenticates (step 1 of the pipeline), then delegates the
// remaining, atomic steps to the envelope's space, which serializes them
// under its own mutex (see internal/space).
package router

import (
	"fmt"
	"time"

	"github.com/mewprotocol/gateway/internal/envelope"
	"github.com/mewprotocol/gateway/internal/space"
)

// Dispatcher wires a space manager and protocol tag to the per-connection
// inbound handling path.
type Dispatcher struct {
	Manager  *space.Manager
	Protocol string
	MaxBytes int
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(mgr *space.Manager, protocol string, maxBytes int) *Dispatcher {
	return &Dispatcher{Manager: mgr, Protocol: protocol, MaxBytes: maxBytes}
}

// HandleInbound parses a raw frame from an already-authenticated
// connection (senderID is the verified identity, never trusted from the
// frame's own "from" field) and routes it within spaceID. A client-supplied
// "from" that disagrees with the authenticated identity is a mid-session
// mismatch: the envelope is dropped with an auth_violation system/error to
// the sender, and the connection is left open.
func (d *Dispatcher) HandleInbound(spaceID, senderID string, raw []byte) []error {
	e, err := envelope.Parse(raw, d.MaxBytes)
	if err != nil {
		return []error{err}
	}

	sp, ok := d.Manager.Get(spaceID)
	if !ok {
		return []error{fmt.Errorf("router: unknown space %q", spaceID)}
	}

	if e.From != "" && e.From != senderID {
		return []error{sp.RejectForgedSender(senderID, e.From, e.ID)}
	}

	envelope.Stamp(e, d.Protocol, senderID, time.Now())
	return sp.Route(e)
}
