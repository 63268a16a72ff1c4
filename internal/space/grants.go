package space

import (
	"fmt"

	"github.com/mewprotocol/gateway/internal/envelope"
)

// grant records one capability grant from GrantorID to RecipientID, so it
// can be revoked when the grantor disconnects.
type grant struct {
	GrantorID   string
	RecipientID string
	Capabilities []string
}

type capabilityGrantPayload struct {
	To           string   `json:"to"`
	Capabilities []string `json:"capabilities"`
	GrantID      string   `json:"grant_id,omitempty"`
}

type capabilityRevokePayload struct {
	GrantID string `json:"grant_id"`
}

// handleGrantLocked implements capability/grant and capability/revoke.
func (s *Space) handleGrantLocked(e *envelope.Envelope) error {
	switch e.Kind {
	case envelope.KindCapabilityGrant:
		var p capabilityGrantPayload
		if err := envelope.DecodePayload(e, &p); err != nil {
			return err
		}
		if p.To == "" || len(p.Capabilities) == 0 {
			return fmt.Errorf("capability/grant: to and capabilities are required")
		}
		if len(s.grants) >= s.cfg.GrantsPerParticipant*max(len(s.registry.All()), 1) {
			return fmt.Errorf("capability/grant: grant table full")
		}
		recipient, ok := s.registry.Get(p.To)
		if !ok {
			return fmt.Errorf("%s: %s", envelope.ErrUnknownRecipient, p.To)
		}
		if err := recipient.Grant(e.From, p.Capabilities, s.cfg.DefaultCapabilities); err != nil {
			return err
		}
		id := p.GrantID
		if id == "" {
			id = e.From + "->" + p.To + ":" + e.ID
		}
		s.grants[id] = &grant{GrantorID: e.From, RecipientID: p.To, Capabilities: p.Capabilities}
		return nil

	case envelope.KindCapabilityRevoke:
		var p capabilityRevokePayload
		if err := envelope.DecodePayload(e, &p); err != nil {
			return err
		}
		g, ok := s.grants[p.GrantID]
		if !ok {
			return fmt.Errorf("capability/revoke: unknown grant %s", p.GrantID)
		}
		if g.GrantorID != e.From {
			return fmt.Errorf("%s: only the grantor may revoke a grant", envelope.ErrAuthViolation)
		}
		recipient, ok := s.registry.Get(g.RecipientID)
		if ok {
			if err := recipient.Revoke(g.GrantorID, s.cfg.DefaultCapabilities); err != nil {
				return err
			}
		}
		delete(s.grants, p.GrantID)
		return nil
	}
	return nil
}

// PendingGrantCount returns the number of currently tracked grants.
func (s *Space) PendingGrantCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.grants)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
