package space

import (
	"fmt"
	"time"

	"github.com/mewprotocol/gateway/internal/envelope"
)

type streamState string

const (
	streamRequested streamState = "requested"
	streamOpen      streamState = "open"
	streamActive    streamState = "active"
	streamClosed    streamState = "closed"
)

// stream tracks one stream's lifecycle and monotonic sequence counter.
type stream struct {
	ID         string
	RequesterID string
	OwnerID    string
	State      streamState
	Sequence   uint64
	LastActive time.Time
}

type streamRequestPayload struct {
	StreamID string `json:"stream_id"`
	Owner    string `json:"owner,omitempty"`
}

type streamOpenPayload struct {
	StreamID string `json:"stream_id"`
}

type streamDataPayload struct {
	StreamID string `json:"stream_id"`
	Sequence uint64 `json:"sequence"`
}

type streamClosePayload struct {
	StreamID string `json:"stream_id"`
	Reason   string `json:"reason,omitempty"`
}

// handleStreamLocked implements the stream/* state machine transitions.
// It is called with the space mutex already held.
func (s *Space) handleStreamLocked(e *envelope.Envelope) error {
	switch e.Kind {
	case envelope.KindStreamRequest:
		var p streamRequestPayload
		if err := envelope.DecodePayload(e, &p); err != nil {
			return err
		}
		if p.StreamID == "" {
			return fmt.Errorf("stream/request: missing stream_id")
		}
		if _, exists := s.streams[p.StreamID]; exists {
			return fmt.Errorf("stream/request: stream %s already exists", p.StreamID)
		}
		owner := p.Owner
		if owner == "" && !e.Broadcast() && len(e.To) == 1 {
			owner = e.To[0]
		}
		s.streams[p.StreamID] = &stream{
			ID:          p.StreamID,
			RequesterID: e.From,
			OwnerID:     owner,
			State:       streamRequested,
			LastActive:  time.Now(),
		}
		return nil

	case envelope.KindStreamOpen:
		var p streamOpenPayload
		if err := envelope.DecodePayload(e, &p); err != nil {
			return err
		}
		st, ok := s.streams[p.StreamID]
		if !ok {
			return fmt.Errorf("stream/open: unknown stream %s", p.StreamID)
		}
		if st.State != streamRequested {
			return fmt.Errorf("stream/open: stream %s not in requested state", p.StreamID)
		}
		st.State = streamOpen
		st.OwnerID = e.From
		st.LastActive = time.Now()
		return nil

	case envelope.KindStreamData:
		var p streamDataPayload
		if err := envelope.DecodePayload(e, &p); err != nil {
			return err
		}
		st, ok := s.streams[p.StreamID]
		if !ok {
			return fmt.Errorf("stream/data: unknown stream %s", p.StreamID)
		}
		if st.State == streamClosed {
			return fmt.Errorf("stream/data: stream %s is closed", p.StreamID)
		}
		if st.State == streamOpen {
			st.State = streamActive
		}
		if p.Sequence != st.Sequence+1 {
			return fmt.Errorf("%s: stream %s expected sequence %d, got %d",
				envelope.ErrStreamSequenceViolation, p.StreamID, st.Sequence+1, p.Sequence)
		}
		st.Sequence = p.Sequence
		st.LastActive = time.Now()
		return nil

	case envelope.KindStreamClose:
		var p streamClosePayload
		if err := envelope.DecodePayload(e, &p); err != nil {
			return err
		}
		st, ok := s.streams[p.StreamID]
		if !ok {
			return fmt.Errorf("stream/close: unknown stream %s", p.StreamID)
		}
		st.State = streamClosed
		st.LastActive = time.Now()
		return nil
	}
	return nil
}

// SweepInactiveStreams closes streams that have had no activity for
// longer than inactivity, when inactivity > 0. Intended to be called
// periodically by cmd/gateway.
func (s *Space) SweepInactiveStreams(inactivity time.Duration) {
	if inactivity <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-inactivity)
	for _, st := range s.streams {
		if st.State != streamClosed && st.LastActive.Before(cutoff) {
			st.State = streamClosed
		}
	}
}

// StreamState returns the current state and sequence of a stream, for
// tests and metrics.
func (s *Space) StreamState(id string) (state string, sequence uint64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, found := s.streams[id]
	if !found {
		return "", 0, false
	}
	return string(st.State), st.Sequence, true
}

// ActiveStreamInfo is the shape of one entry in a system/welcome payload's
// active_streams list.
type ActiveStreamInfo struct {
	StreamID string `json:"stream_id"`
	OwnerID  string `json:"owner"`
	State    string `json:"state"`
	Sequence uint64 `json:"sequence"`
}

// ActiveStreams returns a snapshot of every stream not in the closed
// state, for reporting to late joiners in system/welcome.
func (s *Space) ActiveStreams() []ActiveStreamInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeStreamsLocked()
}

func (s *Space) activeStreamsLocked() []ActiveStreamInfo {
	out := make([]ActiveStreamInfo, 0, len(s.streams))
	for _, st := range s.streams {
		if st.State == streamClosed {
			continue
		}
		out = append(out, ActiveStreamInfo{
			StreamID: st.ID,
			OwnerID:  st.OwnerID,
			State:    string(st.State),
			Sequence: st.Sequence,
		})
	}
	return out
}

// ActiveStreamCount returns the number of streams not in the closed state.
func (s *Space) ActiveStreamCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, st := range s.streams {
		if st.State != streamClosed {
			n++
		}
	}
	return n
}
