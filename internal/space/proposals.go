package space

import (
	"fmt"
	"time"

	"github.com/mewprotocol/gateway/internal/envelope"
)

// proposal tracks one pending mcp/proposal awaiting fulfillment or expiry.
// It is keyed by the proposal envelope's own id, not a bespoke identifier.
type proposal struct {
	ID         string
	ProposerID string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// handleProposalLocked implements the proposal engine described for
// mcp/proposal: routing an envelope of that kind records it; routing any
// later envelope whose correlation_id references a pending proposal id
// fulfills (and drops) that record, regardless of the fulfilling envelope's
// own kind. It is bookkeeping only, except that it rejects an mcp/proposal
// whose id is already pending.
func (s *Space) handleProposalLocked(e *envelope.Envelope) error {
	if e.Kind == envelope.KindMCPProposal {
		if _, exists := s.proposals[e.ID]; exists {
			return fmt.Errorf("mcp/proposal: proposal %s already exists", e.ID)
		}
		now := time.Now()
		s.proposals[e.ID] = &proposal{
			ID:         e.ID,
			ProposerID: e.From,
			CreatedAt:  now,
			ExpiresAt:  now.Add(s.cfg.ProposalExpiry),
		}
		return nil
	}

	for _, id := range e.CorrelationID {
		delete(s.proposals, id)
	}
	return nil
}

// ExpiredProposal is an mcp/proposal that aged out before being fulfilled.
type ExpiredProposal struct {
	ID         string
	ProposerID string
}

// SweepExpiredProposals removes proposals past their expiry and returns
// each one's id and proposer, so the caller can send a system/notice to
// the proposer.
func (s *Space) SweepExpiredProposals() []ExpiredProposal {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var expired []ExpiredProposal
	for id, p := range s.proposals {
		if now.After(p.ExpiresAt) {
			expired = append(expired, ExpiredProposal{ID: id, ProposerID: p.ProposerID})
			delete(s.proposals, id)
		}
	}
	return expired
}

// PendingProposalCount returns the number of currently tracked proposals.
func (s *Space) PendingProposalCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.proposals)
}
