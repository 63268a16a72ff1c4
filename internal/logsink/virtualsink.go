package logsink

// VirtualSink implements participant.Sink by appending every delivered
// frame to a participant's log file instead of a live socket. It backs
// the lazy auto-connect path: an HTTP POST to a participant with no live
// connection still needs somewhere for the gateway to deliver replies.
type VirtualSink struct {
	sink          *Sink
	spaceID       string
	participantID string
}

// NewVirtualSink constructs a VirtualSink bound to one participant.
func NewVirtualSink(sink *Sink, spaceID, participantID string) *VirtualSink {
	return &VirtualSink{sink: sink, spaceID: spaceID, participantID: participantID}
}

// Send appends frame to the participant's jsonl log.
func (v *VirtualSink) Send(frame []byte) error {
	return v.sink.AppendParticipantFrame(v.spaceID, v.participantID, frame)
}

// Close is a no-op; the underlying log file is shared and owned by Sink.
func (v *VirtualSink) Close() error { return nil }
