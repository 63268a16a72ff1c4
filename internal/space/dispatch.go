package space

import "github.com/mewprotocol/gateway/internal/envelope"

// dispatchSpecialLocked routes envelope kinds that mutate space state
// beyond plain history-and-deliver to their dedicated engine. Called with
// the space mutex already held, before the envelope is appended to
// history and delivered.
//
// The proposal engine runs for every envelope, not just mcp/proposal: it
// must inspect every envelope's correlation_id to detect fulfillment of a
// pending proposal.
func (s *Space) dispatchSpecialLocked(e *envelope.Envelope) error {
	if err := s.handleProposalLocked(e); err != nil {
		return err
	}
	switch {
	case e.Kind == envelope.KindCapabilityGrant || e.Kind == envelope.KindCapabilityRevoke:
		return s.handleGrantLocked(e)
	case envelope.IsStreamKind(e.Kind):
		return s.handleStreamLocked(e)
	}
	return nil
}
